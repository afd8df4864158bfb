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
	"github.com/DPBayes/DPPVI/dataset"
	"github.com/DPBayes/DPPVI/distribution"
	"github.com/DPBayes/DPPVI/dperr"
	"github.com/DPBayes/DPPVI/model"
	"github.com/DPBayes/DPPVI/rand"
	log "github.com/golang/glog"
)

// GlobalVIServer is the centralised baseline: a single client holds the
// concatenation of all shards and optimises the free energy against the
// prior directly, with or without DP-SGD.
type GlobalVIServer struct {
	*Base
}

// NewGlobalVI returns a global VI server over the union of shards. cfg must
// use one of the non-private modes or dpsgd.
func NewGlobalVI(prior distribution.NaturalParams, shards []dataset.Dataset, m model.Model, cfg client.Config, maxIterations int, r *rand.Rand) (*GlobalVIServer, error) {
	switch cfg.Mode {
	case client.NonDPEpochs, client.NonDPBatches, client.DPSGD:
	default:
		return nil, dperr.Configurationf("global_vi server does not support dp_mode %v", cfg.Mode)
	}
	all := dataset.Concat(shards...)
	if all.Len() == 0 {
		return nil, dperr.InsufficientDataf("global_vi server has no data")
	}
	c, err := client.New(0, all, m, prior.Dim(), cfg, r)
	if err != nil {
		return nil, err
	}
	b, err := newBase(prior, []*client.Client{c}, maxIterations)
	if err != nil {
		return nil, err
	}
	log.Infof("%v server: %d examples, %d iterations", GlobalVI, all.Len(), maxIterations)
	return &GlobalVIServer{b}, nil
}

// Tick runs one round of centralised training. The single factor is the
// whole likelihood, so its cavity is the prior.
func (s *GlobalVIServer) Tick(ctx context.Context) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	c := s.clients[0]
	d, err := c.Update(s.q.Clone())
	if err != nil {
		return fmt.Errorf("global update: %w", err)
	}
	s.fold(d)
	s.finish(d.NP)
	return nil
}
