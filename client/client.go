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

// Package client implements a PVI client: the owner of one data shard and
// one factor, which turns the current global posterior into a factor update
// using one of five local training and privatisation strategies.
package client

import (
	"github.com/DPBayes/DPPVI/dataset"
	"github.com/DPBayes/DPPVI/distribution"
	"github.com/DPBayes/DPPVI/dperr"
	"github.com/DPBayes/DPPVI/model"
	"github.com/DPBayes/DPPVI/rand"
	log "github.com/golang/glog"
)

// Delta is the natural-parameter change of a client factor. The server adds
// it to the global posterior.
type Delta struct {
	NP distribution.NaturalParams
}

// Norm returns the L2 norm of the change.
func (d Delta) Norm() float64 {
	return d.NP.Norm()
}

// RoundLog holds the diagnostics of one Update call, one entry per local step.
type RoundLog struct {
	Round int
	Mode  Mode
	ELBO  []float64
	LL    []float64
	KL    []float64
	// Skipped counts local steps skipped because their minibatch was empty.
	Skipped int
}

// Client owns an immutable data shard and the factor t approximating its
// likelihood contribution. It is not safe for concurrent use.
type Client struct {
	ID int

	data  dataset.Dataset
	model model.Model
	cfg   Config
	mech  Mechanism
	t     distribution.Factor

	updates int

	// Separate streams keep minibatch sampling, Monte-Carlo estimates and DP
	// noise independent of each other.
	sampling *rand.Rand
	mc       *rand.Rand
	noise    *rand.Rand

	Log           []RoundLog
	PreClipNorms  []float64
	PostClipNorms []float64
	NoiseNorms    []float64
}

// New validates cfg and returns a client with a neutral factor of dimension
// dim. The client takes its random streams from r.
func New(id int, data dataset.Dataset, m model.Model, dim int, cfg Config, r *rand.Rand) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if data.Len() > 0 && m.ParamDim(data.Dim()) != dim {
		return nil, dperr.Configurationf("client %d: model has %d parameters for %d features, posterior has %d", id, m.ParamDim(data.Dim()), data.Dim(), dim)
	}
	c := &Client{
		ID:       id,
		data:     data,
		model:    m,
		cfg:      cfg,
		t:        distribution.NewNeutralFactor(dim),
		sampling: r.Split(),
		mc:       r.Split(),
		noise:    r.Split(),
	}
	c.mech = newMechanism(c)
	return c, nil
}

// WithConfig returns a client with the same data, factor, update counter,
// logs and random streams as c, running the mechanism of cfg.
func (c *Client) WithConfig(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	next := &Client{
		ID:            c.ID,
		data:          c.data,
		model:         c.model,
		cfg:           cfg,
		t:             distribution.Factor{NaturalParams: c.t.Clone()},
		updates:       c.updates,
		sampling:      c.sampling,
		mc:            c.mc,
		noise:         c.noise,
		Log:           append([]RoundLog(nil), c.Log...),
		PreClipNorms:  append([]float64(nil), c.PreClipNorms...),
		PostClipNorms: append([]float64(nil), c.PostClipNorms...),
		NoiseNorms:    append([]float64(nil), c.NoiseNorms...),
	}
	next.mech = newMechanism(next)
	return next, nil
}

// Factor returns a copy of the client's current factor.
func (c *Client) Factor() distribution.Factor {
	return distribution.Factor{NaturalParams: c.t.Clone()}
}

// Updates returns the number of completed Update calls.
func (c *Client) Updates() int {
	return c.updates
}

// Config returns the client's configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Len returns the number of examples in the client's shard.
func (c *Client) Len() int {
	return c.data.Len()
}

// Update runs one round of local training against the posterior q and
// returns the released change of the client's factor. The factor is advanced
// by the same change, so the caller must add it to q to keep
// q = prior + Σ t_i. q is not modified.
func (c *Client) Update(q distribution.NaturalParams) (Delta, error) {
	return c.update(q, q.Subtract(c.t.NaturalParams))
}

// UpdateWithCavity is Update with an explicit cavity distribution in place of
// q - t, as used by committee-machine baselines.
func (c *Client) UpdateWithCavity(q, cavity distribution.NaturalParams) (Delta, error) {
	return c.update(q, cavity)
}

func (c *Client) update(q, cavity distribution.NaturalParams) (Delta, error) {
	if q.Dim() != c.t.Dim() || cavity.Dim() != c.t.Dim() {
		return Delta{}, dperr.Configurationf("client %d: posterior has dimension %d, factor has %d", c.ID, q.Dim(), c.t.Dim())
	}
	rl := RoundLog{Round: c.updates, Mode: c.cfg.Mode}
	np, err := c.mech.update(q, cavity, c.cfg.steps(c.updates), &rl)
	if err != nil {
		return Delta{}, err
	}
	if c.updates < c.cfg.FreezeVarUpdates {
		for i := range np.NP2 {
			np.NP2[i] = 0
		}
	}
	c.t = c.t.Apply(np)
	c.updates++
	c.Log = append(c.Log, rl)
	if rl.Skipped > 0 {
		log.Warningf("client %d round %d: skipped %d local steps with empty minibatches", c.ID, rl.Round, rl.Skipped)
	}
	d := Delta{NP: np}
	log.V(1).Infof("client %d round %d (%v): delta norm %v", c.ID, rl.Round, c.cfg.Mode, d.Norm())
	return d, nil
}

// sample draws one minibatch: Poisson with the sampling fraction if set,
// otherwise a fixed-size sample without replacement.
func (c *Client) sample(d dataset.Dataset) dataset.Dataset {
	if c.cfg.SamplingFrac > 0 && c.cfg.Mode.Private() {
		return dataset.PoissonSample(d, c.cfg.SamplingFrac, c.sampling)
	}
	return dataset.FixedSample(d, c.cfg.BatchSize, c.sampling)
}

// expectedBatch returns the expected size of a minibatch from sample.
func (c *Client) expectedBatch() float64 {
	if c.cfg.SamplingFrac > 0 && c.cfg.Mode.Private() {
		return c.cfg.SamplingFrac * float64(c.data.Len())
	}
	return float64(min(c.cfg.BatchSize, c.data.Len()))
}
