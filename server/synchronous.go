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

package server

import (
	"context"
	"fmt"

	"github.com/DPBayes/DPPVI/client"
	"github.com/DPBayes/DPPVI/distribution"
	"golang.org/x/sync/errgroup"
)

// SynchronousServer runs every client concurrently against the same posterior
// snapshot and folds the deltas in client order once all have finished.
type SynchronousServer struct {
	*Base
}

// Tick runs one round. Clients own their random streams, so the parallel
// phase touches no shared state. If a client fails, the deltas of the
// clients that succeeded are still folded so the posterior stays consistent
// with the factors, and the first error is returned.
func (s *SynchronousServer) Tick(ctx context.Context) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	deltas, err := updateAll(ctx, s.clients, func(*client.Client) (distribution.NaturalParams, distribution.NaturalParams) {
		return s.q.Clone(), distribution.NaturalParams{}
	})
	total := s.foldAll(deltas)
	if err != nil {
		return err
	}
	s.finish(total)
	return nil
}

// foldAll folds the finished deltas in client order and returns their sum.
func (b *Base) foldAll(deltas []*client.Delta) distribution.NaturalParams {
	total := distribution.ZeroNatural(b.q.Dim())
	for _, d := range deltas {
		if d == nil {
			continue
		}
		b.fold(*d)
		total = total.Add(d.NP)
	}
	return total
}

// updateAll runs the clients concurrently. inputs returns the posterior and
// cavity for a client; an empty cavity means the client's own q - t. The
// result holds nil for clients that did not finish.
func updateAll(ctx context.Context, clients []*client.Client, inputs func(*client.Client) (q, cavity distribution.NaturalParams)) ([]*client.Delta, error) {
	deltas := make([]*client.Delta, len(clients))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range clients {
		q, cavity := inputs(c)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var (
				d   client.Delta
				err error
			)
			if cavity.Dim() == 0 {
				d, err = c.Update(q)
			} else {
				d, err = c.UpdateWithCavity(q, cavity)
			}
			if err != nil {
				return fmt.Errorf("client %d update: %w", c.ID, err)
			}
			deltas[i] = &d
			return nil
		})
	}
	return deltas, g.Wait()
}
