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
	"github.com/DPBayes/DPPVI/noise"
)

// Mechanism is a client update strategy. The set of mechanisms is closed:
// Baseline, DPSGDMechanism, ParamDP, LFAMechanism and LocalPVIMechanism.
type Mechanism interface {
	// Mode returns the dp_mode the mechanism implements.
	Mode() Mode
	// update returns the released natural-parameter change for one round of
	// the given number of epochs or local steps.
	update(q, cavity distribution.NaturalParams, steps int, rl *RoundLog) (distribution.NaturalParams, error)
}

func newMechanism(c *Client) Mechanism {
	switch c.cfg.Mode {
	case DPSGD:
		return &DPSGDMechanism{c: c}
	case Param, ParamFixed:
		return &ParamDP{c: c, Fixed: c.cfg.Mode == ParamFixed}
	case LFA:
		return &LFAMechanism{c: c}
	case LocalPVI:
		return newLocalPVI(c)
	}
	return &Baseline{c: c}
}

// release clips and noises raw, records the norms and applies damping after
// the noise.
func (c *Client) release(raw distribution.NaturalParams) (distribution.NaturalParams, noise.Release) {
	rel := c.cfg.mechanism().Release(raw.Vector(), c.noise)
	c.PreClipNorms = append(c.PreClipNorms, rel.PreClipNorm)
	c.PostClipNorms = append(c.PostClipNorms, rel.PostClipNorm)
	c.NoiseNorms = append(c.NoiseNorms, rel.NoiseNorm)
	return distribution.FromVector(rel.Released).Scale(c.cfg.Damping), rel
}

// Baseline trains without any privacy mechanism.
type Baseline struct {
	c *Client
}

// Mode implements Mechanism.
func (b *Baseline) Mode() Mode { return b.c.cfg.Mode }

func (b *Baseline) update(q, cavity distribution.NaturalParams, steps int, rl *RoundLog) (distribution.NaturalParams, error) {
	c := b.c
	run, err := c.newRun(q, cavity, rl)
	if err != nil {
		return distribution.NaturalParams{}, err
	}
	n := float64(c.data.Len())
	switch c.cfg.Mode {
	case NonDPEpochs:
		for e := 0; e < steps; e++ {
			for _, batch := range dataset.EpochBatches(c.data, c.cfg.BatchSize, c.sampling) {
				run.step(batch, n)
			}
		}
	default:
		for s := 0; s < steps; s++ {
			run.step(dataset.FixedSample(c.data, c.cfg.BatchSize, c.sampling), n)
		}
	}
	if run.taken == 0 {
		return distribution.ZeroNatural(q.Dim()), nil
	}
	next, err := run.natural()
	if err != nil {
		return distribution.NaturalParams{}, err
	}
	return next.Subtract(q).Scale(c.cfg.Damping), nil
}

// DPSGDMechanism runs DP-SGD for the local steps and releases the resulting
// change of the posterior as is.
type DPSGDMechanism struct {
	c *Client
}

// Mode implements Mechanism.
func (*DPSGDMechanism) Mode() Mode { return DPSGD }

func (m *DPSGDMechanism) update(q, cavity distribution.NaturalParams, steps int, rl *RoundLog) (distribution.NaturalParams, error) {
	c := m.c
	run, err := c.newRun(q, cavity, rl)
	if err != nil {
		return distribution.NaturalParams{}, err
	}
	n, expected := float64(c.data.Len()), c.expectedBatch()
	mech := c.cfg.mechanism()
	mech.PreClipSigma = 0
	for s := 0; s < steps; s++ {
		run.privateStep(c.sample(c.data), n, expected, mech)
	}
	if run.taken == 0 {
		return distribution.ZeroNatural(q.Dim()), nil
	}
	next, err := run.natural()
	if err != nil {
		return distribution.NaturalParams{}, err
	}
	return next.Subtract(q).Scale(c.cfg.Damping), nil
}

// ParamDP trains non-privately and clips and noises the natural-parameter
// change of the whole local pass once. With Fixed, one minibatch is sampled
// per round and reused by every local step.
type ParamDP struct {
	c     *Client
	Fixed bool
}

// Mode implements Mechanism.
func (m *ParamDP) Mode() Mode {
	if m.Fixed {
		return ParamFixed
	}
	return Param
}

func (m *ParamDP) update(q, cavity distribution.NaturalParams, steps int, rl *RoundLog) (distribution.NaturalParams, error) {
	c := m.c
	run, err := c.newRun(q, cavity, rl)
	if err != nil {
		return distribution.NaturalParams{}, err
	}
	n := float64(c.data.Len())
	var fixed dataset.Dataset
	if m.Fixed {
		fixed = c.sample(c.data)
	}
	for s := 0; s < steps; s++ {
		batch := fixed
		if !m.Fixed {
			batch = c.sample(c.data)
		}
		run.step(batch, n)
	}
	if run.taken == 0 {
		return distribution.ZeroNatural(q.Dim()), nil
	}
	next, err := run.natural()
	if err != nil {
		return distribution.NaturalParams{}, err
	}
	delta, _ := c.release(next.Subtract(q))
	return delta, nil
}

// LFAMechanism splits the shard into disjoint sub-batches, trains on each from
// the same starting posterior, and clips and noises the average change.
type LFAMechanism struct {
	c *Client
}

// Mode implements Mechanism.
func (*LFAMechanism) Mode() Mode { return LFA }

func (m *LFAMechanism) update(q, cavity distribution.NaturalParams, steps int, rl *RoundLog) (distribution.NaturalParams, error) {
	c := m.c
	n := float64(c.data.Len())
	sum := distribution.ZeroNatural(q.Dim())
	trained := 0
	for _, part := range dataset.DisjointParts(c.data, c.cfg.parts(c.data.Len()), c.sampling) {
		if part.Len() == 0 {
			continue
		}
		run, err := c.newRun(q, cavity, rl)
		if err != nil {
			return distribution.NaturalParams{}, err
		}
		for s := 0; s < steps; s++ {
			run.step(part, n)
		}
		next, err := run.natural()
		if err != nil {
			return distribution.NaturalParams{}, err
		}
		sum = sum.Add(next.Subtract(q))
		trained++
	}
	if trained == 0 {
		return distribution.ZeroNatural(q.Dim()), nil
	}
	delta, _ := c.release(sum.Scale(1 / float64(trained)))
	return delta, nil
}
