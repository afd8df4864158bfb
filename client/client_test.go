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
	"errors"
	"math"
	"testing"

	"github.com/DPBayes/DPPVI/dataset"
	"github.com/DPBayes/DPPVI/distribution"
	"github.com/DPBayes/DPPVI/dperr"
	"github.com/DPBayes/DPPVI/model"
	"github.com/DPBayes/DPPVI/rand"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// balanced returns n two-dimensional points with alternating labels.
func balanced(n int, r *rand.Rand) dataset.Dataset {
	d := dataset.Dataset{X: make([][]float64, n), Y: make([]float64, n)}
	for i := 0; i < n; i++ {
		y := float64(i % 2)
		d.X[i] = []float64{r.Normal() + 2*y - 1, r.Normal() - 2*y + 1}
		d.Y[i] = y
	}
	return d
}

func stdPrior(t *testing.T, dim int) distribution.NaturalParams {
	t.Helper()
	s := distribution.StandardParams{Loc: make([]float64, dim), Scale: make([]float64, dim)}
	for i := range s.Scale {
		s.Scale[i] = 1
	}
	n, err := distribution.ToNatural(s)
	if err != nil {
		t.Fatalf("ToNatural: got err %v", err)
	}
	return n
}

func newClient(t *testing.T, d dataset.Dataset, cfg Config, seed uint64) *Client {
	t.Helper()
	c, err := New(0, d, model.LogisticRegression{}, 2, cfg, rand.New(seed))
	if err != nil {
		t.Fatalf("New(%v): got err %v", cfg.Mode, err)
	}
	return c
}

func privateConfig(mode Mode) Config {
	cfg := DefaultConfig()
	cfg.Mode = mode
	cfg.BatchSize = 20
	cfg.Epochs = 3
	cfg.LearningRate = 0.1
	cfg.NoiseMultiplier = 0.05
	cfg.EnforcePosVar = true
	return cfg
}

func TestParseMode(t *testing.T) {
	for m := range modeNames {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v, want %v", m.String(), got, err, m)
		}
	}
	if _, err := ParseMode("dp_everything"); !errors.Is(err, dperr.ErrConfiguration) {
		t.Errorf("ParseMode: unknown mode got err %v, want ErrConfiguration", err)
	}
}

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		desc   string
		modify func(*Config)
		want   error
	}{
		{"default", func(c *Config) {}, nil},
		{"nondp without batch size", func(c *Config) { c.BatchSize = 0 }, dperr.ErrConfiguration},
		{"dpsgd with sampling fraction", func(c *Config) { c.Mode, c.BatchSize, c.SamplingFrac = DPSGD, 0, 0.1 }, nil},
		{"dpsgd with neither", func(c *Config) { c.Mode, c.BatchSize = DPSGD, 0 }, dperr.ErrConfiguration},
		{"dpsgd with both", func(c *Config) { c.Mode, c.SamplingFrac = DPSGD, 0.1 }, dperr.ErrUnimplemented},
		{"param_fixed with both", func(c *Config) { c.Mode, c.SamplingFrac = ParamFixed, 0.1 }, dperr.ErrUnimplemented},
		{"param with both", func(c *Config) { c.Mode, c.SamplingFrac = Param, 0.1 }, dperr.ErrConfiguration},
		{"lfa with neither", func(c *Config) { c.Mode, c.BatchSize = LFA, 0 }, dperr.ErrConfiguration},
		{"local_pvi with both", func(c *Config) { c.Mode, c.SamplingFrac = LocalPVI, 0.2 }, dperr.ErrConfiguration},
		{"local_pvi with bad pseudo q", func(c *Config) { c.Mode, c.PseudoClientQ = LocalPVI, 1.5 }, dperr.ErrConfiguration},
		{"sampling fraction above one", func(c *Config) { c.Mode, c.BatchSize, c.SamplingFrac = Param, 0, 2 }, dperr.ErrConfiguration},
		{"zero clip norm", func(c *Config) { c.Mode, c.ClipNorm = Param, 0 }, dperr.ErrConfiguration},
		{"negative noise", func(c *Config) { c.Mode, c.NoiseMultiplier = LFA, -1 }, dperr.ErrConfiguration},
		{"damping zero", func(c *Config) { c.Damping = 0 }, dperr.ErrConfiguration},
		{"damping above one", func(c *Config) { c.Damping = 1.5 }, dperr.ErrConfiguration},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }, dperr.ErrConfiguration},
		{"bad n_step_dict", func(c *Config) { c.NStepDict = map[int]int{2: 0} }, dperr.ErrConfiguration},
		{"zero learning rate", func(c *Config) { c.LearningRate = 0 }, dperr.ErrConfiguration},
		{"zero elbo samples", func(c *Config) { c.NumELBOSamples = 0 }, dperr.ErrConfiguration},
		{"unknown mode", func(c *Config) { c.Mode = Mode(42) }, dperr.ErrConfiguration},
	} {
		cfg := DefaultConfig()
		tc.modify(&cfg)
		err := cfg.Validate()
		if tc.want == nil {
			if err != nil {
				t.Errorf("Validate: when %s got err %v, want nil", tc.desc, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Errorf("Validate: when %s got err %v, want %v", tc.desc, err, tc.want)
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := privateConfig(Param)
	cfg.SamplingFrac = 0.1
	if _, err := New(0, balanced(10, rand.New(1)), model.LogisticRegression{}, 2, cfg, rand.New(1)); !errors.Is(err, dperr.ErrConfiguration) {
		t.Errorf("New: got err %v, want ErrConfiguration", err)
	}
	if _, err := New(0, balanced(10, rand.New(1)), model.LogisticRegression{}, 5, DefaultConfig(), rand.New(1)); !errors.Is(err, dperr.ErrConfiguration) {
		t.Errorf("New: with wrong dimension got err %v, want ErrConfiguration", err)
	}
}

func TestClipBound(t *testing.T) {
	const clip = 0.05
	for _, mode := range []Mode{DPSGD, Param, ParamFixed, LFA, LocalPVI} {
		cfg := privateConfig(mode)
		cfg.ClipNorm = clip
		cfg.NoiseMultiplier = 0.5
		c := newClient(t, balanced(100, rand.New(2)), cfg, 3)
		q := stdPrior(t, 2)
		for round := 0; round < 3; round++ {
			d, err := c.Update(q)
			if err != nil {
				t.Fatalf("Update(%v): got err %v", mode, err)
			}
			q = q.Add(d.NP)
		}
		if len(c.PostClipNorms) == 0 {
			t.Fatalf("Update(%v): recorded no post-clip norms", mode)
		}
		if len(c.PreClipNorms) != len(c.PostClipNorms) || len(c.NoiseNorms) != len(c.PostClipNorms) {
			t.Errorf("Update(%v): got %d pre-clip, %d post-clip and %d noise norms, want equal counts", mode, len(c.PreClipNorms), len(c.PostClipNorms), len(c.NoiseNorms))
		}
		for i, post := range c.PostClipNorms {
			if post > clip*(1+1e-12) {
				t.Errorf("Update(%v): post-clip norm %d is %v, above %v", mode, i, post, clip)
			}
		}
	}
}

func TestParamDPWithoutNoise(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = Param
	cfg.BatchSize = 100
	cfg.ClipNorm = 1
	cfg.NoiseMultiplier = 0
	cfg.Epochs = 1
	cfg.LearningRate = 0.5
	c := newClient(t, balanced(100, rand.New(4)), cfg, 5)
	d, err := c.Update(stdPrior(t, 2))
	if err != nil {
		t.Fatalf("Update: got err %v", err)
	}
	if len(c.PreClipNorms) != 1 {
		t.Fatalf("Update: recorded %d pre-clip norms, want 1", len(c.PreClipNorms))
	}
	pre, post := c.PreClipNorms[0], c.PostClipNorms[0]
	if want := math.Min(pre, 1); math.Abs(post-want) > 1e-12 {
		t.Errorf("Update: post-clip norm %v, want min(%v, 1)", post, pre)
	}
	if c.NoiseNorms[0] != 0 {
		t.Errorf("Update: noise norm %v, want exactly 0", c.NoiseNorms[0])
	}
	if math.Abs(d.Norm()-post) > 1e-12 {
		t.Errorf("Update: released norm %v, want post-clip norm %v", d.Norm(), post)
	}
}

func TestZeroNoiseLFAMatchesBaseline(t *testing.T) {
	data := balanced(60, rand.New(6))
	base := DefaultConfig()
	base.Mode = NonDPEpochs
	base.BatchSize = 60
	base.Epochs = 3
	base.LearningRate = 0.1

	lfa := base
	lfa.Mode = LFA
	lfa.ClipNorm = 1e6
	lfa.NoiseMultiplier = 0

	prior := stdPrior(t, 2)
	got, err := newClient(t, data, lfa, 7).Update(prior)
	if err != nil {
		t.Fatalf("Update(lfa): got err %v", err)
	}
	want, err := newClient(t, data, base, 7).Update(prior)
	if err != nil {
		t.Fatalf("Update(nondp_epochs): got err %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("LFA with one sub-batch and no noise differs from baseline (-want +got):\n%s", diff)
	}
}

func TestEmptyMinibatchRoundIsZero(t *testing.T) {
	for _, mode := range []Mode{DPSGD, Param, ParamFixed} {
		cfg := privateConfig(mode)
		cfg.BatchSize = 0
		cfg.SamplingFrac = 1e-12
		c := newClient(t, balanced(5, rand.New(8)), cfg, 9)
		d, err := c.Update(stdPrior(t, 2))
		if err != nil {
			t.Fatalf("Update(%v): got err %v", mode, err)
		}
		if d.Norm() != 0 {
			t.Errorf("Update(%v): got delta norm %v, want 0", mode, d.Norm())
		}
		if got := c.Log[0].Skipped; got != cfg.Epochs {
			t.Errorf("Update(%v): skipped %d steps, want %d", mode, got, cfg.Epochs)
		}
		if c.Updates() != 1 {
			t.Errorf("Update(%v): counter is %d, want 1", mode, c.Updates())
		}
	}
}

func TestFactorAccumulatesDeltas(t *testing.T) {
	for _, mode := range []Mode{NonDPEpochs, NonDPBatches, DPSGD, LFA, LocalPVI} {
		c := newClient(t, balanced(50, rand.New(10)), privateConfig(mode), 11)
		q := stdPrior(t, 2)
		sum := distribution.ZeroNatural(2)
		for round := 0; round < 3; round++ {
			d, err := c.Update(q)
			if err != nil {
				t.Fatalf("Update(%v): got err %v", mode, err)
			}
			q = q.Add(d.NP)
			sum = sum.Add(d.NP)
		}
		if f := c.Factor(); !f.EqualApprox(sum, 1e-12) {
			t.Errorf("Update(%v): factor %v is not the sum of deltas %v", mode, f.NaturalParams, sum)
		}
		if len(c.Log) != 3 {
			t.Errorf("Update(%v): got %d round logs, want 3", mode, len(c.Log))
		}
	}
}

func TestUpdateLogsEverySteps(t *testing.T) {
	cfg := privateConfig(DPSGD)
	cfg.NStepDict = map[int]int{0: 5}
	c := newClient(t, balanced(40, rand.New(12)), cfg, 13)
	q := stdPrior(t, 2)
	for round := 0; round < 2; round++ {
		d, err := c.Update(q)
		if err != nil {
			t.Fatalf("Update: got err %v", err)
		}
		q = q.Add(d.NP)
	}
	if got := len(c.Log[0].ELBO); got != 5 {
		t.Errorf("Update: round 0 logged %d steps, want 5 from n_step_dict", got)
	}
	if got := len(c.Log[1].KL); got != cfg.Epochs {
		t.Errorf("Update: round 1 logged %d steps, want %d", got, cfg.Epochs)
	}
	if got := len(c.PreClipNorms); got != 5+cfg.Epochs {
		t.Errorf("Update: recorded %d per-step pre-clip norms, want %d", got, 5+cfg.Epochs)
	}
}

func TestFreezeVarUpdates(t *testing.T) {
	cfg := privateConfig(NonDPEpochs)
	cfg.FreezeVarUpdates = 1
	c := newClient(t, balanced(40, rand.New(14)), cfg, 15)
	q := stdPrior(t, 2)
	first, err := c.Update(q)
	if err != nil {
		t.Fatalf("Update: got err %v", err)
	}
	if diff := cmp.Diff([]float64{0, 0}, first.NP.NP2); diff != "" {
		t.Errorf("Update: np2 change in a frozen round (-want +got):\n%s", diff)
	}
	second, err := c.Update(q.Add(first.NP))
	if err != nil {
		t.Fatalf("Update: got err %v", err)
	}
	if second.NP.NP2[0] == 0 && second.NP.NP2[1] == 0 {
		t.Errorf("Update: np2 change is zero after the frozen rounds")
	}
}

func TestLocalPVIPseudoFactorsSumToFactor(t *testing.T) {
	cfg := privateConfig(LocalPVI)
	cfg.ClipNorm = 1e6
	cfg.NoiseMultiplier = 0
	cfg.PseudoClientQ = 0.5
	c := newClient(t, balanced(60, rand.New(16)), cfg, 17)
	q := stdPrior(t, 2)
	for round := 0; round < 2; round++ {
		d, err := c.Update(q)
		if err != nil {
			t.Fatalf("Update: got err %v", err)
		}
		q = q.Add(d.NP)
	}
	pseudo := c.mech.(*LocalPVIMechanism).PseudoFactors()
	if len(pseudo) != 3 {
		t.Fatalf("PseudoFactors: got %d, want 3", len(pseudo))
	}
	sum := distribution.ZeroNatural(2)
	for _, f := range pseudo {
		sum = sum.Add(f.NaturalParams)
	}
	if f := c.Factor(); !f.EqualApprox(sum, 1e-9) {
		t.Errorf("pseudo-factors sum to %v, factor is %v", sum, f.NaturalParams)
	}
}

func TestWithConfigCarriesState(t *testing.T) {
	c := newClient(t, balanced(40, rand.New(18)), privateConfig(NonDPEpochs), 19)
	q := stdPrior(t, 2)
	d, err := c.Update(q)
	if err != nil {
		t.Fatalf("Update: got err %v", err)
	}
	next, err := c.WithConfig(privateConfig(DPSGD))
	if err != nil {
		t.Fatalf("WithConfig: got err %v", err)
	}
	if next.Updates() != 1 || len(next.Log) != 1 {
		t.Errorf("WithConfig: got %d updates and %d logs, want 1 and 1", next.Updates(), len(next.Log))
	}
	if diff := cmp.Diff(c.Factor(), next.Factor()); diff != "" {
		t.Errorf("WithConfig: factor changed (-old +new):\n%s", diff)
	}
	if next.mech.Mode() != DPSGD {
		t.Errorf("WithConfig: mechanism mode %v, want %v", next.mech.Mode(), DPSGD)
	}
	if _, err := next.Update(q.Add(d.NP)); err != nil {
		t.Errorf("Update after WithConfig: got err %v", err)
	}
	bad := privateConfig(LFA)
	bad.SamplingFrac = 0.5
	if _, err := c.WithConfig(bad); !errors.Is(err, dperr.ErrConfiguration) {
		t.Errorf("WithConfig: invalid config got err %v, want ErrConfiguration", err)
	}
}

func TestBaselineImprovesELBO(t *testing.T) {
	cfg := privateConfig(NonDPBatches)
	cfg.BatchSize = 200
	cfg.Epochs = 60
	cfg.LearningRate = 0.05
	c := newClient(t, dataset.SyntheticLogistic(200, []float64{3, -3}, 0, rand.New(20)), cfg, 21)
	if _, err := c.Update(stdPrior(t, 2)); err != nil {
		t.Fatalf("Update: got err %v", err)
	}
	elbo := c.Log[0].ELBO
	first := (elbo[0] + elbo[1] + elbo[2]) / 3
	last := (elbo[len(elbo)-1] + elbo[len(elbo)-2] + elbo[len(elbo)-3]) / 3
	if !(last > first) {
		t.Errorf("Update: ELBO went from %v to %v, want an increase", first, last)
	}
}
