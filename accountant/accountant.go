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

// Package accountant computes the privacy loss of repeated Gaussian releases
// and calibrates the noise multiplier to a target (ε, δ) budget.
package accountant

import (
	"github.com/DPBayes/DPPVI/checks"
	"github.com/DPBayes/DPPVI/dperr"
)

// Accountant maps a noise multiplier to the ε guaranteed for a fixed δ after
// the given number of compositions of a Gaussian mechanism with sampling
// ratio q. Epsilon must be decreasing in sigma.
type Accountant interface {
	Epsilon(delta, sigma, q float64, compositions int) (float64, error)
}

func checkArgs(delta, sigma, q float64, compositions int) error {
	if err := checks.CheckDeltaStrict(delta); err != nil {
		return dperr.Configurationf("%v", err)
	}
	if err := checks.CheckNoiseMultiplier(sigma); err != nil {
		return dperr.Configurationf("%v", err)
	}
	if err := checks.CheckSamplingFraction(q); err != nil {
		return dperr.Configurationf("%v", err)
	}
	if err := checks.CheckPositiveInt(compositions, "compositions"); err != nil {
		return dperr.Configurationf("%v", err)
	}
	return nil
}
