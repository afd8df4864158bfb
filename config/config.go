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

// Package config holds the run configuration of a DP-PVI experiment. A run is
// configured from a single YAML file layered over Default; every option has a
// default and unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/DPBayes/DPPVI/accountant"
	"github.com/DPBayes/DPPVI/checks"
	"github.com/DPBayes/DPPVI/client"
	"github.com/DPBayes/DPPVI/dperr"
	"github.com/DPBayes/DPPVI/model"
	"github.com/DPBayes/DPPVI/noise"
	"github.com/DPBayes/DPPVI/optim"
	"github.com/DPBayes/DPPVI/server"
	log "github.com/golang/glog"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of one run.
type Config struct {
	// DPMode selects the client mechanism: nondp_epochs, nondp_batches,
	// dpsgd, param, param_fixed, lfa or local_pvi.
	DPMode string `yaml:"dp_mode"`

	BatchSize     int     `yaml:"batch_size"`
	SamplingFracQ float64 `yaml:"sampling_frac_q"`
	PseudoClientQ float64 `yaml:"pseudo_client_q"`

	DPC          float64 `yaml:"dp_C"`
	DPSigma      float64 `yaml:"dp_sigma"`
	PreClipSigma float64 `yaml:"pre_clip_sigma"`
	// NoiseKind is float or secure.
	NoiseKind string `yaml:"noise_kind"`

	DampingFactor  float64 `yaml:"damping_factor"`
	EnforcePosVar  bool    `yaml:"enforce_pos_var"`
	NGlobalUpdates int     `yaml:"n_global_updates"`
	// Epochs is the number of local epochs or steps per global update.
	Epochs           int         `yaml:"epochs"`
	NStepDict        map[int]int `yaml:"n_step_dict"`
	FreezeVarUpdates int         `yaml:"freeze_var_updates"`

	Optimizer      string   `yaml:"optimizer"`
	LearningRate   float64  `yaml:"learning_rate"`
	LRSchedule     Schedule `yaml:"lr_schedule"`
	NumELBOSamples int      `yaml:"num_elbo_samples"`

	Clients      int     `yaml:"clients"`
	DataBalRho   float64 `yaml:"data_bal_rho"`
	DataBalKappa float64 `yaml:"data_bal_kappa"`

	// Server is sequential or synchronous; it is used when Model is pvi.
	Server string `yaml:"server"`
	// Model is pvi, bcm_same, bcm_split or global_vi.
	Model string `yaml:"model"`
	// Likelihood names the statistical model, see model.New.
	Likelihood string `yaml:"likelihood"`

	Seed        uint64 `yaml:"seed"`
	TrackParams bool   `yaml:"track_params"`

	Data Data `yaml:"data"`

	// Privacy, when set, replaces DPSigma with the noise multiplier that
	// meets the target budget.
	Privacy *Privacy `yaml:"privacy,omitempty"`
}

// Schedule configures the local learning-rate schedule.
type Schedule struct {
	// Kind is constant, multistep, multiplicative or halving. halving
	// multiplies the rate by 0.5 half-way through and two steps before the
	// end of a local optimisation of more than five steps.
	Kind       string  `yaml:"kind"`
	Gamma      float64 `yaml:"gamma"`
	Milestones []int   `yaml:"milestones"`
}

// Data configures the dataset and its split.
type Data struct {
	// CSV is the path of a CSV file. When empty, synthetic logistic data is
	// generated.
	CSV         string `yaml:"csv"`
	LabelColumn int    `yaml:"label_column"`

	// Folds and Fold select the validation fold of a k-fold split.
	Folds int `yaml:"folds"`
	Fold  int `yaml:"fold"`

	SyntheticExamples int       `yaml:"synthetic_examples"`
	SyntheticWeights  []float64 `yaml:"synthetic_weights"`
	SyntheticBias     float64   `yaml:"synthetic_bias"`

	// Split is imbalanced (size and class imbalance) or round_robin.
	Split string `yaml:"split"`
}

// Privacy is a target privacy budget.
type Privacy struct {
	TargetEpsilon float64 `yaml:"target_epsilon"`
	TargetDelta   float64 `yaml:"target_delta"`
	// Accountant is rdp or analytic.
	Accountant string  `yaml:"accountant"`
	Lower      float64 `yaml:"lower"`
	Upper      float64 `yaml:"upper"`
	Tolerance  float64 `yaml:"tolerance"`
	MaxIters   int     `yaml:"max_iters"`
}

// Default returns the default configuration: ten clients running DP-SGD with
// sampling fraction 0.1 and no noise.
func Default() *Config {
	return &Config{
		DPMode:         "dpsgd",
		SamplingFracQ:  0.1,
		PseudoClientQ:  1,
		DPC:            1000,
		NoiseKind:      "float",
		DampingFactor:  0.1,
		NGlobalUpdates: 10,
		Epochs:         10,
		Optimizer:      "adam",
		LearningRate:   1e-2,
		LRSchedule:     Schedule{Kind: "constant"},
		NumELBOSamples: 10,
		Clients:        10,
		Server:         "sequential",
		Model:          "pvi",
		Likelihood:     "logistic_regression",
		Seed:           2303,
		Data: Data{
			LabelColumn:       -1,
			Folds:             10,
			SyntheticExamples: 2000,
			SyntheticWeights:  []float64{1.5, -2, 0.5},
			SyntheticBias:     -0.5,
			Split:             "imbalanced",
		},
	}
}

func defaultPrivacy() Privacy {
	return Privacy{Accountant: "rdp", Lower: 0.1, Upper: 50, Tolerance: 1e-3, MaxIters: 200}
}

// Load reads the YAML file at path over Default.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Parse reads YAML content over Default.
func Parse(data []byte) (*Config, error) {
	return decode(bytes.NewReader(data))
}

func decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, dperr.Configurationf("%v", err)
	}
	cfg.fillPrivacy()
	return cfg, nil
}

// fillPrivacy defaults the unset fields of a privacy block.
func (c *Config) fillPrivacy() {
	if c.Privacy == nil {
		return
	}
	def := defaultPrivacy()
	if c.Privacy.Accountant == "" {
		c.Privacy.Accountant = def.Accountant
	}
	if c.Privacy.Lower == 0 && c.Privacy.Upper == 0 {
		c.Privacy.Lower, c.Privacy.Upper = def.Lower, def.Upper
	}
	if c.Privacy.Tolerance == 0 {
		c.Privacy.Tolerance = def.Tolerance
	}
	if c.Privacy.MaxIters == 0 {
		c.Privacy.MaxIters = def.MaxIters
	}
}

// Validate checks the configuration. It returns every problem found, wrapped
// in dperr.ErrConfiguration or dperr.ErrUnimplemented.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Discipline(); err != nil {
		errs = append(errs, err)
	}
	if _, err := model.New(c.Likelihood); err != nil {
		errs = append(errs, err)
	}
	if err := checks.CheckPositiveInt(c.NGlobalUpdates, "n_global_updates"); err != nil {
		errs = append(errs, err)
	}
	if err := checks.CheckPositiveInt(c.Clients, "clients"); err != nil {
		errs = append(errs, err)
	}
	if err := checks.CheckUnitInterval(c.DataBalRho, "data_bal_rho"); err != nil {
		errs = append(errs, err)
	}
	if err := checks.CheckUnitInterval(c.DataBalKappa, "data_bal_kappa"); err != nil {
		errs = append(errs, err)
	}
	switch c.Data.Split {
	case "imbalanced":
		if c.Clients > 1 && c.Clients%2 != 0 {
			errs = append(errs, fmt.Errorf("imbalanced split needs an even number of clients, got %d", c.Clients))
		}
	case "round_robin":
	default:
		errs = append(errs, fmt.Errorf("unknown data split %q", c.Data.Split))
	}
	if c.Data.Folds != 0 {
		if c.Data.Folds < 2 {
			errs = append(errs, fmt.Errorf("data.folds is %d, must be 0 or at least 2", c.Data.Folds))
		} else if c.Data.Fold < 0 || c.Data.Fold >= c.Data.Folds {
			errs = append(errs, fmt.Errorf("data.fold is %d, must be in [0, %d)", c.Data.Fold, c.Data.Folds))
		}
	}
	if c.Data.CSV == "" {
		if err := checks.CheckPositiveInt(c.Data.SyntheticExamples, "data.synthetic_examples"); err != nil {
			errs = append(errs, err)
		}
		if len(c.Data.SyntheticWeights) == 0 {
			errs = append(errs, errors.New("data.synthetic_weights is empty"))
		}
	}
	if c.Privacy != nil {
		errs = append(errs, c.Privacy.validate(c.DPMode)...)
	}
	cc, err := c.ClientConfig()
	if err == nil {
		err = cc.Validate()
	}
	if err != nil {
		if errors.Is(err, dperr.ErrUnimplemented) {
			return err
		}
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", dperr.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

func (p *Privacy) validate(mode string) []error {
	var errs []error
	if m, err := client.ParseMode(mode); err == nil && !m.Private() {
		errs = append(errs, fmt.Errorf("privacy block set for non-private dp_mode %s", mode))
	}
	if err := checks.CheckEpsilonStrict(p.TargetEpsilon, "privacy.target_epsilon"); err != nil {
		errs = append(errs, err)
	}
	if err := checks.CheckDeltaStrict(p.TargetDelta, "privacy.target_delta"); err != nil {
		errs = append(errs, err)
	}
	if err := checks.CheckBracket(p.Lower, p.Upper); err != nil {
		errs = append(errs, err)
	}
	if !(p.Tolerance > 0) {
		errs = append(errs, fmt.Errorf("privacy.tolerance is %v, must be strictly positive", p.Tolerance))
	}
	if err := checks.CheckPositiveInt(p.MaxIters, "privacy.max_iters"); err != nil {
		errs = append(errs, err)
	}
	if _, err := p.accountant(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (p *Privacy) accountant() (accountant.Accountant, error) {
	switch p.Accountant {
	case "rdp":
		return accountant.RDP{}, nil
	case "analytic":
		return accountant.AnalyticGaussian{}, nil
	}
	return nil, fmt.Errorf("unknown accountant %q", p.Accountant)
}

// Discipline returns the server discipline selected by Model and Server.
func (c *Config) Discipline() (server.Discipline, error) {
	name := c.Model
	if c.Model == "pvi" {
		if c.Server != "sequential" && c.Server != "synchronous" {
			return 0, fmt.Errorf("unknown server type %q", c.Server)
		}
		name = c.Server
	}
	d, err := server.ParseDiscipline(name)
	if err != nil {
		return 0, fmt.Errorf("unknown model %q", c.Model)
	}
	return d, nil
}

// Iterations returns the number of global rounds the server runs.
func (c *Config) Iterations() int {
	d, err := c.Discipline()
	if err == nil && (d == server.BCMSame || d == server.BCMSplit) {
		return 1
	}
	return c.NGlobalUpdates
}

// ClientConfig converts c into a client configuration.
func (c *Config) ClientConfig() (client.Config, error) {
	mode, err := client.ParseMode(c.DPMode)
	if err != nil {
		return client.Config{}, err
	}
	opt, err := optim.ParseKind(c.Optimizer)
	if err != nil {
		return client.Config{}, dperr.Configurationf("%v", err)
	}
	kind, err := noise.ParseKind(c.NoiseKind)
	if err != nil {
		return client.Config{}, dperr.Configurationf("%v", err)
	}
	sched, err := c.schedule()
	if err != nil {
		return client.Config{}, dperr.Configurationf("%v", err)
	}
	steps := make(map[int]int, len(c.NStepDict))
	for k, v := range c.NStepDict {
		steps[k] = v
	}
	return client.Config{
		Mode:             mode,
		BatchSize:        c.BatchSize,
		SamplingFrac:     c.SamplingFracQ,
		PseudoClientQ:    c.PseudoClientQ,
		ClipNorm:         c.DPC,
		NoiseMultiplier:  c.DPSigma,
		PreClipSigma:     c.PreClipSigma,
		NoiseKind:        kind,
		Damping:          c.DampingFactor,
		EnforcePosVar:    c.EnforcePosVar,
		Epochs:           c.Epochs,
		NStepDict:        steps,
		FreezeVarUpdates: c.FreezeVarUpdates,
		Optimizer:        opt,
		LearningRate:     c.LearningRate,
		Schedule:         sched,
		NumELBOSamples:   c.NumELBOSamples,
	}, nil
}

func (c *Config) schedule() (optim.Schedule, error) {
	if c.LRSchedule.Kind == "halving" {
		if c.Epochs <= 5 {
			log.Warningf("disabling the halving learning rate schedule for %d local steps", c.Epochs)
			return optim.Schedule{}, nil
		}
		return optim.HalvingSchedule(c.Epochs), nil
	}
	kind, err := optim.ParseScheduleKind(c.LRSchedule.Kind)
	if err != nil {
		return optim.Schedule{}, err
	}
	return optim.Schedule{Kind: kind, Gamma: c.LRSchedule.Gamma, Milestones: append([]int(nil), c.LRSchedule.Milestones...)}, nil
}

// steps returns the number of local steps in round r.
func (c *Config) steps(r int) int {
	if n, ok := c.NStepDict[r]; ok {
		return n
	}
	return c.Epochs
}

// Releases returns the sampling ratio and the number of noisy releases of one
// client over the run, given the size of its shard. DP-SGD releases a noisy
// gradient every local step; the other private modes release one noisy
// update per global round from the whole shard.
func (c *Config) Releases(shardSize int) (q float64, compositions int, err error) {
	mode, err := client.ParseMode(c.DPMode)
	if err != nil {
		return 0, 0, err
	}
	if !mode.Private() {
		return 0, 0, dperr.Configurationf("dp_mode %v releases nothing private", mode)
	}
	rounds := c.Iterations()
	if mode != client.DPSGD {
		return 1, rounds, nil
	}
	for r := 0; r < rounds; r++ {
		compositions += c.steps(r)
	}
	switch {
	case c.SamplingFracQ > 0:
		q = c.SamplingFracQ
	case shardSize > 0:
		q = math.Min(1, float64(c.BatchSize)/float64(shardSize))
	default:
		return 0, 0, dperr.InsufficientDataf("cannot derive a sampling ratio for an empty shard")
	}
	return q, compositions, nil
}

// Calibrate replaces DPSigma with the smallest noise multiplier that meets
// the privacy block for a client holding shardSize examples. Without a
// privacy block it returns DPSigma unchanged.
func (c *Config) Calibrate(shardSize int) (float64, error) {
	if c.Privacy == nil {
		return c.DPSigma, nil
	}
	acc, err := c.Privacy.accountant()
	if err != nil {
		return 0, dperr.Configurationf("%v", err)
	}
	q, n, err := c.Releases(shardSize)
	if err != nil {
		return 0, err
	}
	sigma, err := accountant.Calibrate(acc, accountant.CalibrationOptions{
		TargetEpsilon: c.Privacy.TargetEpsilon,
		TargetDelta:   c.Privacy.TargetDelta,
		SamplingRatio: q,
		Compositions:  n,
		Lower:         c.Privacy.Lower,
		Upper:         c.Privacy.Upper,
		Tolerance:     c.Privacy.Tolerance,
		MaxIters:      c.Privacy.MaxIters,
	})
	if err != nil {
		return 0, err
	}
	log.Infof("calibrated dp_sigma %v for (%v, %v)-DP over %d releases at sampling ratio %v", sigma, c.Privacy.TargetEpsilon, c.Privacy.TargetDelta, n, q)
	c.DPSigma = sigma
	return sigma, nil
}
