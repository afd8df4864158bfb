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

// Package checks contains parameter checks for the private PVI protocol.
package checks

import (
	"fmt"
	"math"
)

const (
	epsilonName  = "Epsilon"
	deltaName    = "Delta"
	clipName     = "dp_C"
	sigmaName    = "dp_sigma"
	samplingName = "sampling_frac_q"
	dampingName  = "damping_factor"
)

func verifyName(defaultName string, nameSlice []string) (string, error) {
	switch len(nameSlice) {
	case 0:
		return defaultName, nil
	case 1:
		return nameSlice[0], nil
	default:
		return "", fmt.Errorf("There should be 0 or 1 'name' parameter, got %d", len(nameSlice))
	}
}

func isFinite(x float64) bool {
	return !math.IsInf(x, 0) && !math.IsNaN(x)
}

// CheckEpsilonStrict returns an error if ε is nonpositive or +∞.
func CheckEpsilonStrict(epsilon float64, name ...string) error {
	epsName, err := verifyName(epsilonName, name)
	if err != nil {
		return err
	}
	if epsilon <= 0 || !isFinite(epsilon) {
		return fmt.Errorf("%s is %f, must be strictly positive and finite", epsName, epsilon)
	}
	return nil
}

// CheckDeltaStrict returns an error if δ is nonpositive or greater than or equal to 1.
func CheckDeltaStrict(delta float64, name ...string) error {
	delName, err := verifyName(deltaName, name)
	if err != nil {
		return err
	}
	if math.IsNaN(delta) {
		return fmt.Errorf("%s is %e, cannot be NaN", delName, delta)
	}
	if delta <= 0 {
		return fmt.Errorf("%s is %e, must be strictly positive", delName, delta)
	}
	if delta >= 1 {
		return fmt.Errorf("%s is %e, must be strictly less than 1", delName, delta)
	}
	return nil
}

// CheckClipNorm returns an error if the L2 clipping bound is nonpositive or not finite.
func CheckClipNorm(c float64, name ...string) error {
	cName, err := verifyName(clipName, name)
	if err != nil {
		return err
	}
	if c <= 0 || !isFinite(c) {
		return fmt.Errorf("%s is %f, must be strictly positive and finite", cName, c)
	}
	return nil
}

// CheckNoiseMultiplier returns an error if σ is negative or not finite. A
// zero multiplier is allowed and disables noise.
func CheckNoiseMultiplier(sigma float64, name ...string) error {
	sName, err := verifyName(sigmaName, name)
	if err != nil {
		return err
	}
	if sigma < 0 || !isFinite(sigma) {
		return fmt.Errorf("%s is %f, must be nonnegative and finite", sName, sigma)
	}
	return nil
}

// CheckSamplingFraction returns an error if q is not within (0, 1].
func CheckSamplingFraction(q float64, name ...string) error {
	qName, err := verifyName(samplingName, name)
	if err != nil {
		return err
	}
	if math.IsNaN(q) || q <= 0 || q > 1 {
		return fmt.Errorf("%s is %f, must be within (0, 1]", qName, q)
	}
	return nil
}

// CheckDampingFactor returns an error if the damping factor is not within (0, 1].
func CheckDampingFactor(rho float64, name ...string) error {
	dName, err := verifyName(dampingName, name)
	if err != nil {
		return err
	}
	if math.IsNaN(rho) || rho <= 0 || rho > 1 {
		return fmt.Errorf("%s is %f, must be within (0, 1]", dName, rho)
	}
	return nil
}

// CheckPositiveInt returns an error if n is not strictly positive.
func CheckPositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s is %d, must be strictly positive", name, n)
	}
	return nil
}

// CheckUnitInterval returns an error if x is not within [0, 1).
func CheckUnitInterval(x float64, name string) error {
	if math.IsNaN(x) || x < 0 || x >= 1 {
		return fmt.Errorf("%s is %f, must be within [0, 1)", name, x)
	}
	return nil
}

// CheckBracket returns an error if the bisection bracket is empty, inverted
// or not finite. It does not check that the bracket straddles the target.
func CheckBracket(lower, upper float64) error {
	if !isFinite(lower) || !isFinite(upper) {
		return fmt.Errorf("Bracket [%f, %f] must be finite", lower, upper)
	}
	if lower < 0 {
		return fmt.Errorf("Lower bound (%f) must be nonnegative", lower)
	}
	if lower >= upper {
		return fmt.Errorf("Upper bound (%f) must be larger than lower bound (%f)", upper, lower)
	}
	return nil
}
