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
	"fmt"
	"math"

	"github.com/DPBayes/DPPVI/checks"
	"github.com/DPBayes/DPPVI/dperr"
	"github.com/DPBayes/DPPVI/noise"
	"github.com/DPBayes/DPPVI/optim"
)

// Mode is an enum type. Its values are the client update strategies.
type Mode int

const (
	// NonDPEpochs trains for full passes over shuffled minibatches.
	NonDPEpochs Mode = iota
	// NonDPBatches trains on independently sampled fixed-size minibatches.
	NonDPBatches
	// DPSGD clips per-example gradients and noises their sum every step.
	DPSGD
	// Param clips and noises the natural-parameter change of a local pass,
	// sampling a new minibatch every step.
	Param
	// ParamFixed is Param with one minibatch sampled per round.
	ParamFixed
	// LFA averages the changes of several disjoint sub-batches and clips and
	// noises the average.
	LFA
	// LocalPVI runs PVI among pseudo-clients and clips and noises the
	// aggregate change.
	LocalPVI
)

var modeNames = map[Mode]string{
	NonDPEpochs:  "nondp_epochs",
	NonDPBatches: "nondp_batches",
	DPSGD:        "dpsgd",
	Param:        "param",
	ParamFixed:   "param_fixed",
	LFA:          "lfa",
	LocalPVI:     "local_pvi",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a dp_mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, dperr.Configurationf("unknown dp_mode %q", s)
}

// Private reports whether m applies a DP mechanism.
func (m Mode) Private() bool {
	return m != NonDPEpochs && m != NonDPBatches
}

// Config holds everything a client needs to run its update. A zero BatchSize
// or SamplingFrac means the option is unset.
type Config struct {
	Mode Mode

	BatchSize    int
	SamplingFrac float64
	// PseudoClientQ is the Poisson minibatch fraction within a LocalPVI
	// pseudo-client. Zero uses the whole pseudo-client data every step.
	PseudoClientQ float64

	ClipNorm        float64
	NoiseMultiplier float64
	PreClipSigma    float64
	NoiseKind       noise.Kind

	Damping       float64
	EnforcePosVar bool

	// Epochs is the number of epochs or local steps per round.
	Epochs int
	// NStepDict overrides Epochs for the listed zero-based rounds.
	NStepDict map[int]int
	// FreezeVarUpdates zeroes the np2 part of the update during the first
	// FreezeVarUpdates rounds.
	FreezeVarUpdates int

	Optimizer      optim.Kind
	LearningRate   float64
	Schedule       optim.Schedule
	NumELBOSamples int
}

// DefaultConfig returns the configuration used when no option is given.
func DefaultConfig() Config {
	return Config{
		Mode:            NonDPEpochs,
		BatchSize:       100,
		ClipNorm:        1,
		NoiseMultiplier: 1,
		Damping:         1,
		Epochs:          1,
		Optimizer:       optim.AdamKind,
		LearningRate:    1e-2,
		NumELBOSamples:  10,
	}
}

// Validate checks the configuration for its mode. It is run by New, before
// any training.
func (c Config) Validate() error {
	if _, ok := modeNames[c.Mode]; !ok {
		return dperr.Configurationf("unknown dp_mode %v", c.Mode)
	}
	hasBatch, hasQ := c.BatchSize != 0, c.SamplingFrac != 0
	switch c.Mode {
	case NonDPEpochs, NonDPBatches:
		if !hasBatch {
			return dperr.Configurationf("dp_mode %v requires batch_size", c.Mode)
		}
	case DPSGD, ParamFixed:
		if !hasBatch && !hasQ {
			return dperr.Configurationf("dp_mode %v requires one of batch_size and sampling_frac_q", c.Mode)
		}
		if hasBatch && hasQ {
			return dperr.Unimplementedf("user-level DP-SGD sampling: dp_mode %v with both batch_size and sampling_frac_q", c.Mode)
		}
	case Param, LFA, LocalPVI:
		if hasBatch == hasQ {
			return dperr.Configurationf("dp_mode %v requires exactly one of batch_size (%d) and sampling_frac_q (%v)", c.Mode, c.BatchSize, c.SamplingFrac)
		}
	}
	if hasBatch {
		if err := checks.CheckPositiveInt(c.BatchSize, "batch_size"); err != nil {
			return dperr.Configurationf("%v", err)
		}
	}
	if hasQ && c.Mode.Private() {
		if err := checks.CheckSamplingFraction(c.SamplingFrac); err != nil {
			return dperr.Configurationf("%v", err)
		}
	}
	if c.Mode == LocalPVI && c.PseudoClientQ != 0 {
		if err := checks.CheckSamplingFraction(c.PseudoClientQ, "pseudo_client_q"); err != nil {
			return dperr.Configurationf("%v", err)
		}
	}
	if c.Mode.Private() {
		m := noise.Mechanism{ClipNorm: c.ClipNorm, NoiseMultiplier: c.NoiseMultiplier, PreClipSigma: c.PreClipSigma, Kind: c.NoiseKind}
		if err := m.Validate(); err != nil {
			return dperr.Configurationf("%v", err)
		}
	}
	if err := checks.CheckDampingFactor(c.Damping); err != nil {
		return dperr.Configurationf("%v", err)
	}
	if err := checks.CheckPositiveInt(c.Epochs, "epochs"); err != nil {
		return dperr.Configurationf("%v", err)
	}
	for round, n := range c.NStepDict {
		if round < 0 || n <= 0 {
			return dperr.Configurationf("n_step_dict entry %d: %d is invalid", round, n)
		}
	}
	if c.FreezeVarUpdates < 0 {
		return dperr.Configurationf("freeze_var_updates is %d, must be nonnegative", c.FreezeVarUpdates)
	}
	if !(c.LearningRate > 0) || math.IsInf(c.LearningRate, 0) {
		return dperr.Configurationf("learning_rate is %v, must be strictly positive and finite", c.LearningRate)
	}
	if err := c.Schedule.Validate(); err != nil {
		return dperr.Configurationf("%v", err)
	}
	if err := checks.CheckPositiveInt(c.NumELBOSamples, "num_elbo_samples"); err != nil {
		return dperr.Configurationf("%v", err)
	}
	return nil
}

// steps returns the number of epochs or local steps for the given round.
func (c Config) steps(round int) int {
	if n, ok := c.NStepDict[round]; ok {
		return n
	}
	return c.Epochs
}

// mechanism returns the noise mechanism of a private mode.
func (c Config) mechanism() noise.Mechanism {
	return noise.Mechanism{ClipNorm: c.ClipNorm, NoiseMultiplier: c.NoiseMultiplier, PreClipSigma: c.PreClipSigma, Kind: c.NoiseKind}
}

// parts returns the number of disjoint sub-batches of an n-example shard:
// ⌈n/batch_size⌉ or ⌈1/q⌉.
func (c Config) parts(n int) int {
	if c.BatchSize > 0 {
		return max(1, (n+c.BatchSize-1)/c.BatchSize)
	}
	return max(1, int(math.Ceil(1/c.SamplingFrac)))
}
