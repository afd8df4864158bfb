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

package accountant

import (
	"math"

	"github.com/DPBayes/DPPVI/checks"
	"github.com/DPBayes/DPPVI/dperr"
	log "github.com/golang/glog"
)

// CalibrationOptions configures Calibrate.
type CalibrationOptions struct {
	TargetEpsilon float64
	TargetDelta   float64
	SamplingRatio float64
	Compositions  int
	// Lower and Upper bracket the noise multiplier. The caller must choose
	// them so that ε(Lower) > TargetEpsilon > ε(Upper); this is not checked.
	Lower     float64
	Upper     float64
	Tolerance float64
	MaxIters  int
}

// Calibrate bisects the noise multiplier σ until the accountant's ε is
// within Tolerance of TargetEpsilon. If MaxIters iterations pass without
// meeting the tolerance it returns dperr.ErrCalibrationNonConvergence and no
// σ.
//
// When the bracket does not straddle the target, the search walks towards
// one end of the bracket and may report a σ near that end whose ε happens to
// be within Tolerance, which is not the σ for TargetEpsilon.
func Calibrate(acc Accountant, opt CalibrationOptions) (float64, error) {
	if err := checks.CheckEpsilonStrict(opt.TargetEpsilon, "target_epsilon"); err != nil {
		return 0, dperr.Configurationf("%v", err)
	}
	if err := checks.CheckBracket(opt.Lower, opt.Upper); err != nil {
		return 0, dperr.Configurationf("%v", err)
	}
	if !(opt.Tolerance > 0) || math.IsInf(opt.Tolerance, 0) {
		return 0, dperr.Configurationf("calibration tolerance is %v, must be strictly positive and finite", opt.Tolerance)
	}
	if err := checks.CheckPositiveInt(opt.MaxIters, "max_iters"); err != nil {
		return 0, dperr.Configurationf("%v", err)
	}

	lower, upper := opt.Lower, opt.Upper
	var eps float64
	for i := 0; i < opt.MaxIters; i++ {
		cur := (lower + upper) / 2
		var err error
		eps, err = acc.Epsilon(opt.TargetDelta, cur, opt.SamplingRatio, opt.Compositions)
		if err != nil {
			return 0, err
		}
		log.V(2).Infof("Calibrate: iter %d, sigma=%v, eps=%.5f, lower=%v, upper=%v", i, cur, eps, lower, upper)
		if math.Abs(eps-opt.TargetEpsilon) <= opt.Tolerance {
			log.V(1).Infof("Calibrate: found eps=%.5f with sigma=%.5f", eps, cur)
			return cur, nil
		}
		if eps < opt.TargetEpsilon {
			upper = cur
		} else {
			lower = cur
		}
	}
	log.Warningf("Calibrate: no sigma within tolerance %v of epsilon %v after %d iterations, last eps=%v", opt.Tolerance, opt.TargetEpsilon, opt.MaxIters, eps)
	return 0, dperr.CalibrationNonConvergencef("no sigma within tolerance %v of target epsilon %v after %d iterations (last epsilon %v, bracket [%v, %v])",
		opt.Tolerance, opt.TargetEpsilon, opt.MaxIters, eps, lower, upper)
}
