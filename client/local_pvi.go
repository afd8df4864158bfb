//
// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package client

import (
	"github.com/DPBayes/DPPVI/dataset"
	"github.com/DPBayes/DPPVI/distribution"
)

// LocalPVIMechanism partitions the shard into pseudo-clients with their own
// persistent factors. Each round it runs one sequential PVI sweep over the
// pseudo-clients, starting from the global posterior, and clips and noises
// the aggregate change. Each pseudo-factor absorbs its share of the clipped,
// damped change; the noise is not attributed to any pseudo-client.
type LocalPVIMechanism struct {
	c       *Client
	parts   []dataset.Dataset
	factors []distribution.Factor
}

func newLocalPVI(c *Client) *LocalPVIMechanism {
	parts := dataset.DisjointParts(c.data, c.cfg.parts(c.data.Len()), c.sampling)
	factors := make([]distribution.Factor, len(parts))
	for i := range factors {
		factors[i] = distribution.NewNeutralFactor(c.t.Dim())
	}
	return &LocalPVIMechanism{c: c, parts: parts, factors: factors}
}

// Mode implements Mechanism.
func (*LocalPVIMechanism) Mode() Mode { return LocalPVI }

// PseudoFactors returns copies of the pseudo-client factors.
func (m *LocalPVIMechanism) PseudoFactors() []distribution.Factor {
	out := make([]distribution.Factor, len(m.factors))
	for i, f := range m.factors {
		out[i] = distribution.Factor{NaturalParams: f.Clone()}
	}
	return out
}

func (m *LocalPVIMechanism) update(q, _ distribution.NaturalParams, steps int, rl *RoundLog) (distribution.NaturalParams, error) {
	c := m.c
	local := q.Clone()
	deltas := make([]distribution.NaturalParams, len(m.parts))
	trained := 0
	for j, part := range m.parts {
		if part.Len() == 0 {
			continue
		}
		run, err := c.newRun(local, local.Subtract(m.factors[j].NaturalParams), rl)
		if err != nil {
			return distribution.NaturalParams{}, err
		}
		n := float64(part.Len())
		for s := 0; s < steps; s++ {
			batch := part
			if c.cfg.PseudoClientQ > 0 {
				batch = dataset.PoissonSample(part, c.cfg.PseudoClientQ, c.sampling)
			}
			run.step(batch, n)
		}
		if run.taken == 0 {
			continue
		}
		next, err := run.natural()
		if err != nil {
			return distribution.NaturalParams{}, err
		}
		deltas[j] = next.Subtract(local)
		local = next
		trained++
	}
	if trained == 0 {
		return distribution.ZeroNatural(q.Dim()), nil
	}
	delta, rel := c.release(local.Subtract(q))
	share := c.cfg.Damping
	if rel.PreClipNorm > 0 {
		share *= rel.PostClipNorm / rel.PreClipNorm
	}
	for j, d := range deltas {
		if d.Dim() > 0 {
			m.factors[j] = m.factors[j].Apply(d.Scale(share))
		}
	}
	return delta, nil
}
