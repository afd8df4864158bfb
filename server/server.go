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

// Package server orchestrates PVI rounds. A server owns the global posterior
// and the client list; every Tick runs one global round under one of the
// aggregation disciplines and folds the released client deltas into the
// posterior so that it always equals the prior plus the sum of client factors.
package server

import (
	"context"
	"fmt"

	"github.com/DPBayes/DPPVI/client"
	"github.com/DPBayes/DPPVI/distribution"
	"github.com/DPBayes/DPPVI/dperr"
	log "github.com/golang/glog"
)

// Server runs global rounds until it is stopped.
type Server interface {
	// Tick runs one global round. It returns ErrStopped on a stopped server.
	Tick(ctx context.Context) error
	// Posterior returns a copy of the global posterior.
	Posterior() distribution.NaturalParams
	// State returns the lifecycle state.
	State() State
	Iterations() int
	Clients() []*client.Client
	// History returns the per-round log.
	History() []RoundLog
	// CheckConsistency verifies that the posterior is the prior plus the sum
	// of client factors.
	CheckConsistency(tol float64) error
	ReplaceClients(cfg client.Config) error
	ReplaceClient(i int, cfg client.Config) error
}

// RoundLog records one global round.
type RoundLog struct {
	Iteration int
	// UpdateNorm is the L2 norm of the round's total natural-parameter change.
	UpdateNorm float64
	// Communications is the running count of client updates.
	Communications int
	Posterior      distribution.NaturalParams
}

// Base holds the state shared by all server disciplines: the prior, the
// global posterior, the clients and the iteration counter.
type Base struct {
	prior   distribution.NaturalParams
	q       distribution.NaturalParams
	clients []*client.Client

	iterations     int
	maxIterations  int
	communications int
	state          State

	Log []RoundLog
}

func newBase(prior distribution.NaturalParams, clients []*client.Client, maxIterations int) (*Base, error) {
	if maxIterations <= 0 {
		return nil, dperr.Configurationf("max iterations is %d, must be strictly positive", maxIterations)
	}
	if len(clients) == 0 {
		return nil, dperr.Configurationf("server has no clients")
	}
	for _, c := range clients {
		if c.Factor().Dim() != prior.Dim() {
			return nil, dperr.Configurationf("client %d factor has dimension %d, prior has %d", c.ID, c.Factor().Dim(), prior.Dim())
		}
	}
	b := &Base{
		prior:         prior.Clone(),
		clients:       append([]*client.Client(nil), clients...),
		maxIterations: maxIterations,
	}
	// Clients may already carry factors, e.g. after ReplaceClients on a
	// previous server.
	b.q = prior.Clone()
	for _, c := range clients {
		b.q = b.q.Add(c.Factor().NaturalParams)
	}
	return b, nil
}

// New returns a server of discipline d over the given clients. GlobalVI
// servers are built with NewGlobalVI.
func New(d Discipline, prior distribution.NaturalParams, clients []*client.Client, maxIterations int) (Server, error) {
	var s Server
	switch d {
	case Sequential, Synchronous:
		b, err := newBase(prior, clients, maxIterations)
		if err != nil {
			return nil, err
		}
		if d == Sequential {
			s = &SequentialServer{b}
		} else {
			s = &SynchronousServer{b}
		}
	case BCMSame, BCMSplit:
		// Committee machines run a single round.
		b, err := newBase(prior, clients, 1)
		if err != nil {
			return nil, err
		}
		s = &BCMServer{Base: b, Same: d == BCMSame}
	case GlobalVI:
		return nil, dperr.Configurationf("global_vi servers are built with NewGlobalVI")
	default:
		return nil, dperr.Configurationf("unknown server %v", d)
	}
	log.Infof("%v server: %d clients", d, len(clients))
	return s, nil
}

// Posterior returns a copy of the global posterior.
func (b *Base) Posterior() distribution.NaturalParams {
	return b.q.Clone()
}

// Prior returns a copy of the prior.
func (b *Base) Prior() distribution.NaturalParams {
	return b.prior.Clone()
}

// Clients returns the server's clients in update order.
func (b *Base) Clients() []*client.Client {
	return append([]*client.Client(nil), b.clients...)
}

// Iterations returns the number of completed rounds.
func (b *Base) Iterations() int {
	return b.iterations
}

// Communications returns the number of client updates run so far.
func (b *Base) Communications() int {
	return b.communications
}

// History returns a copy of the per-round log.
func (b *Base) History() []RoundLog {
	return append([]RoundLog(nil), b.Log...)
}

// State returns the lifecycle state.
func (b *Base) State() State {
	return b.state
}

// CheckConsistency returns an error if the global posterior differs from the
// prior plus the sum of client factors by more than tol in any coordinate.
func (b *Base) CheckConsistency(tol float64) error {
	want := b.prior.Clone()
	for _, c := range b.clients {
		want = want.Add(c.Factor().NaturalParams)
	}
	if !b.q.EqualApprox(want, tol) {
		return dperr.NumericalInstabilityf("global posterior %v differs from prior plus client factors %v", b.q, want)
	}
	return nil
}

// ReplaceClients switches every client to cfg, carrying over factors, update
// counters and logs. Either all clients are replaced or none is.
func (b *Base) ReplaceClients(cfg client.Config) error {
	next := make([]*client.Client, len(b.clients))
	for i, c := range b.clients {
		nc, err := c.WithConfig(cfg)
		if err != nil {
			return fmt.Errorf("replacing client %d: %w", c.ID, err)
		}
		next[i] = nc
	}
	b.clients = next
	log.Infof("replaced %d clients with dp_mode %v", len(next), cfg.Mode)
	return nil
}

// ReplaceClient switches the i-th client to cfg, carrying over its state.
func (b *Base) ReplaceClient(i int, cfg client.Config) error {
	if i < 0 || i >= len(b.clients) {
		return dperr.Configurationf("client index %d out of range [0, %d)", i, len(b.clients))
	}
	nc, err := b.clients[i].WithConfig(cfg)
	if err != nil {
		return fmt.Errorf("replacing client %d: %w", b.clients[i].ID, err)
	}
	b.clients[i] = nc
	return nil
}

// begin checks that a round may start.
func (b *Base) begin(ctx context.Context) error {
	if b.state == Stopped {
		return fmt.Errorf("tick after %d of %d iterations: %w", b.iterations, b.maxIterations, ErrStopped)
	}
	return ctx.Err()
}

// fold adds one client delta to the global posterior.
func (b *Base) fold(d client.Delta) {
	b.q = b.q.Add(d.NP)
	b.communications++
}

// finish closes a round whose total change is total.
func (b *Base) finish(total distribution.NaturalParams) {
	b.iterations++
	rl := RoundLog{
		Iteration:      b.iterations,
		UpdateNorm:     total.Norm(),
		Communications: b.communications,
		Posterior:      b.q.Clone(),
	}
	b.Log = append(b.Log, rl)
	if b.iterations >= b.maxIterations {
		b.state = Stopped
	}
	log.Infof("round %d/%d: update norm %v, %d communications", b.iterations, b.maxIterations, rl.UpdateNorm, b.communications)
}
