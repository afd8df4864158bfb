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

	"github.com/DPBayes/DPPVI/dperr"
	"github.com/DPBayes/DPPVI/noise"
)

// epsilonAccuracy is the absolute accuracy of the ε returned by
// AnalyticGaussian.
const epsilonAccuracy = 1e-9

// AnalyticGaussian is the tight accountant for composed Gaussian releases
// without subsampling. n releases with noise multiplier σ on a unit-sensitivity
// query compose to one release with multiplier σ/√n, whose ε for a given δ is
// found by inverting the Balle–Wang δ(ε) curve.
type AnalyticGaussian struct{}

// Epsilon implements Accountant. Only q = 1 is supported.
func (AnalyticGaussian) Epsilon(delta, sigma, q float64, compositions int) (float64, error) {
	if err := checkArgs(delta, sigma, q, compositions); err != nil {
		return 0, err
	}
	if q != 1 {
		return 0, dperr.Unimplementedf("analytic Gaussian accounting with sampling ratio %v, only q = 1 is supported", q)
	}
	if sigma == 0 {
		return math.Inf(1), nil
	}
	s := sigma / math.Sqrt(float64(compositions))
	if noise.DeltaForGaussian(s, 1, 0) <= delta {
		return 0, nil
	}
	// δ(ε) is decreasing in ε; grow the bracket until it holds the root.
	lower, upper := 0.0, 1.0
	for noise.DeltaForGaussian(s, 1, upper) > delta {
		lower, upper = upper, 2*upper
		if math.IsInf(upper, 1) {
			return math.Inf(1), nil
		}
	}
	for upper-lower > epsilonAccuracy {
		middle := lower*0.5 + upper*0.5
		if noise.DeltaForGaussian(s, 1, middle) > delta {
			lower = middle
		} else {
			upper = middle
		}
	}
	return upper, nil
}
