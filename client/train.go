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
	"math"

	"github.com/DPBayes/DPPVI/dataset"
	"github.com/DPBayes/DPPVI/distribution"
	"github.com/DPBayes/DPPVI/noise"
	"github.com/DPBayes/DPPVI/optim"
	log "github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
)

// localRun optimises the unconstrained parameters (loc, log scale) of a local
// posterior against the free energy KL(q ‖ cavity)/n − mean log-likelihood.
type localRun struct {
	c      *Client
	cavity distribution.NaturalParams
	params []float64
	opt    optim.Optimizer
	log    *RoundLog
	taken  int
}

func (c *Client) newRun(start, cavity distribution.NaturalParams, rl *RoundLog) (*localRun, error) {
	s, _, err := distribution.ToStandard(start, c.cfg.EnforcePosVar)
	if err != nil {
		return nil, err
	}
	params := make([]float64, 0, 2*len(s.Loc))
	params = append(params, s.Loc...)
	for _, v := range s.Scale {
		params = append(params, math.Log(v))
	}
	return &localRun{
		c:      c,
		cavity: cavity,
		params: params,
		opt:    optim.New(c.cfg.Optimizer, c.cfg.LearningRate, c.cfg.Schedule),
		log:    rl,
	}, nil
}

func (r *localRun) standard() distribution.StandardParams {
	d := len(r.params) / 2
	s := distribution.StandardParams{Loc: append([]float64(nil), r.params[:d]...), Scale: make([]float64, d)}
	for i, v := range r.params[d:] {
		s.Scale[i] = math.Exp(v)
	}
	return s
}

// natural returns the natural parameters of the current local posterior.
func (r *localRun) natural() (distribution.NaturalParams, error) {
	return distribution.ToNatural(r.standard())
}

func (r *localRun) draws() [][]float64 {
	eps := make([][]float64, r.c.cfg.NumELBOSamples)
	for i := range eps {
		eps[i] = r.c.mc.Normals(len(r.params) / 2)
	}
	return eps
}

// klTerm returns KL(q ‖ cavity)/n and its gradient.
func (r *localRun) klTerm(q distribution.StandardParams, n float64) (float64, []float64) {
	kl := distribution.KL(q, r.cavity)
	gLoc, gLogScale := distribution.KLGradient(q, r.cavity)
	g := append(gLoc, gLogScale...)
	floats.Scale(1/n, g)
	return kl, g
}

func (r *localRun) record(meanLL, kl, n float64) {
	r.log.ELBO = append(r.log.ELBO, meanLL-kl/n)
	r.log.LL = append(r.log.LL, meanLL)
	r.log.KL = append(r.log.KL, kl)
	log.V(2).Infof("client %d round %d step %d: elbo %v, ll %v, kl %v", r.c.ID, r.log.Round, r.taken, meanLL-kl/n, meanLL, kl)
}

// step takes one non-private step on batch, with the KL amortised over n
// examples. An empty batch is skipped.
func (r *localRun) step(batch dataset.Dataset, n float64) {
	if batch.Len() == 0 {
		r.log.Skipped++
		return
	}
	q := r.standard()
	grads, lls := r.c.model.ExampleGradients(batch, q, r.draws())
	kl, g := r.klTerm(q, n)
	inv := 1 / float64(batch.Len())
	for _, eg := range grads {
		floats.AddScaled(g, -inv, eg.Vector())
	}
	r.opt.Step(r.params, g)
	r.record(floats.Sum(lls)*inv, kl, n)
	r.taken++
}

// privateStep takes one DP-SGD step: per-example gradients are clipped, summed
// and noised, then divided by the expected batch size.
func (r *localRun) privateStep(batch dataset.Dataset, n, expected float64, m noise.Mechanism) {
	if batch.Len() == 0 {
		r.log.Skipped++
		return
	}
	q := r.standard()
	grads, lls := r.c.model.ExampleGradients(batch, q, r.draws())
	vs := make([][]float64, len(grads))
	for i, eg := range grads {
		vs[i] = eg.Vector()
	}
	sum, pre, post := noise.ClipEach(vs, m.ClipNorm)
	nz := m.Noise(len(sum), r.c.noise)
	floats.Add(sum, nz)
	kl, g := r.klTerm(q, n)
	floats.AddScaled(g, -1/expected, sum)
	r.opt.Step(r.params, g)

	r.c.PreClipNorms = append(r.c.PreClipNorms, pre)
	r.c.PostClipNorms = append(r.c.PostClipNorms, post)
	r.c.NoiseNorms = append(r.c.NoiseNorms, floats.Norm(nz, 2))
	r.record(floats.Sum(lls)/float64(batch.Len()), kl, n)
	r.taken++
}
