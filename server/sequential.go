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

	"github.com/DPBayes/DPPVI/distribution"
	log "github.com/golang/glog"
)

// SequentialServer updates clients in a fixed order, folding each delta
// before the next client runs, so later clients see an updated posterior.
type SequentialServer struct {
	*Base
}

// Tick runs one round. If a client fails, the deltas of the clients before
// it stay folded in and the error is returned.
func (s *SequentialServer) Tick(ctx context.Context) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	total := distribution.ZeroNatural(s.q.Dim())
	for _, c := range s.clients {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, err := c.Update(s.q.Clone())
		if err != nil {
			return fmt.Errorf("client %d update: %w", c.ID, err)
		}
		s.fold(d)
		total = total.Add(d.NP)
		log.V(1).Infof("sequential round %d: folded client %d", s.iterations, c.ID)
	}
	s.finish(total)
	return nil
}
