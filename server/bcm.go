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

	"github.com/DPBayes/DPPVI/client"
	"github.com/DPBayes/DPPVI/distribution"
)

// BCMServer is the Bayesian committee machine baseline. In its single round
// every client trains independently against the prior, and the deltas are
// combined once.
//
// With Same, each client's cavity and starting point is the prior scaled by
// 1/M, so the combined posterior is the sum of the client posteriors. Without
// it, each client starts from the prior and the combined posterior is
// Σ q_i - (M-1)·prior.
type BCMServer struct {
	*Base
	Same bool
}

// Tick runs the committee-machine round.
func (s *BCMServer) Tick(ctx context.Context) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	start := s.prior.Clone()
	if s.Same {
		start = start.Scale(1 / float64(len(s.clients)))
	}
	deltas, err := updateAll(ctx, s.clients, func(*client.Client) (distribution.NaturalParams, distribution.NaturalParams) {
		return start.Clone(), start.Clone()
	})
	total := s.foldAll(deltas)
	if err != nil {
		return err
	}
	s.finish(total)
	return nil
}
