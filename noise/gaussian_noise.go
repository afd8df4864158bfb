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

package noise

import (
	"fmt"
	"math"

	"github.com/DPBayes/DPPVI/checks"
	"github.com/DPBayes/DPPVI/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// The square root of the maximum number n of Bernoulli trials from which a binomial
	// sample is drawn. Larger values result in more fine-grained noise, but increase the
	// chance of sampling inaccuracies due to overflows. The probability of such an event
	// will be roughly 2⁻⁴⁵ or less, if the square root is set to 2⁵⁷.
	binomialBound float64 = math.Exp2(57.0)
	// The absolute bound of the two-sided geometric samples k that are used for creating
	// a binomial sample is m + n / 2. m is obtained via rejection sampling, which sets
	//   m = (k + l) * (sqrt(2 * n) + 1),
	// where l is a uniform random sample between 0 and 1. Bounding k prevents m from
	// overflowing.
	geometricBound int64 = (math.MaxInt64 / int64(math.Round(math.Sqrt2*binomialBound+1.0))) - 1
	// gaussianSigmaAccuracy is the relative accuracy of SigmaForGaussian.
	gaussianSigmaAccuracy = 1e-3
)

// addGaussian adds Gaussian noise of scale σ to x using the binomial sampler.
// The result is a multiple of a power-of-two granularity.
func addGaussian(x, sigma float64, r *rand.Rand) float64 {
	granularity := ceilPowerOfTwo(2.0 * sigma / binomialBound)

	// sqrtN is chosen in a way that places it in the interval between binomialBound
	// and binomialBound / 2.
	sqrtN := 2.0 * sigma / granularity
	sample := symmetricBinomial(sqrtN, r)
	return roundToMultipleOfPowerOfTwo(x, granularity) + float64(sample)*granularity
}

// symmetricBinomial returns a random sample m where the term m + n / 2 is drawn from
// a binomial distribution of n Bernoulli trials that have a success probability of
// 0.5 each. The sampling technique is based on Bringmann et al.'s rejection sampling
// approach proposed in "Internal DLA: Efficient Simulation of a Physical Growth Model"
// (https://people.mpi-inf.mpg.de/~kbringma/paper/2014ICALP.pdf).
func symmetricBinomial(sqrtN float64, r *rand.Rand) int64 {
	stepSize := int64(math.Round(math.Sqrt2*sqrtN + 1.0))
	for {
		// 1 is subtracted from the geometric sample to count the number of Bernoulli fails
		// rather than the number of trials until the first success.
		boundedGeometricSample := int64(math.Min(r.Geometric()-1.0, float64(geometricBound)))
		twoSidedGeometricSample := boundedGeometricSample
		if r.Boolean() {
			twoSidedGeometricSample = -twoSidedGeometricSample - 1
		}

		result := stepSize*twoSidedGeometricSample + r.I63n(stepSize)
		resultProbability := binomialProbability(sqrtN, result)
		rejectProbability := r.Uniform()
		if resultProbability > 0.0 &&
			rejectProbability < resultProbability*float64(stepSize)*math.Pow(2.0, float64(boundedGeometricSample))/4.0 {
			return result
		}
	}
}

// binomialProbability approximates the probability of a random sample m + n / 2
// drawn from a binomial distribution of n Bernoulli trials that have a success
// probability of 1 / 2 each.
func binomialProbability(sqrtN float64, m int64) float64 {
	if math.Abs(float64(m)) > sqrtN*math.Sqrt(math.Log(sqrtN)/2.0) {
		return 0.0
	}
	return (math.Sqrt(2.0/math.Pi) / sqrtN) *
		math.Exp((-2.0*float64(m)*float64(m))/(sqrtN*sqrtN)) *
		(1 - 0.4*math.Pow(2.0, 1.5)*math.Pow(math.Log(sqrtN), 1.5)/sqrtN)
}

// ceilPowerOfTwo returns the smallest power of 2 larger or equal to x, or NaN
// if x is not a finite positive number.
func ceilPowerOfTwo(x float64) float64 {
	if x <= 0.0 || math.IsInf(x, 0) || math.IsNaN(x) {
		return math.NaN()
	}
	frac, exp := math.Frexp(x)
	if frac == 0.5 {
		return x
	}
	return math.Ldexp(1, exp)
}

// roundToMultipleOfPowerOfTwo returns a multiple of granularity that is
// closest to x.
func roundToMultipleOfPowerOfTwo(x, granularity float64) float64 {
	return math.Round(x/granularity) * granularity
}

// DeltaForGaussian computes the smallest δ such that the Gaussian mechanism
// with standard deviation σ applied to data of L2 sensitivity s is
// (ε,δ)-differentially private. The calculation is based on Theorem 8 of
// Balle and Wang's "Improving the Gaussian Mechanism for Differential
// Privacy: Analytical Calibration and Optimal Denoising"
// (https://arxiv.org/abs/1805.06530v2).
func DeltaForGaussian(sigma, l2Sensitivity, epsilon float64) float64 {
	// δ(σ,s,ε) := Φ(s/(2σ) - εσ/s) - exp(ε)Φ(-s/(2σ) - εσ/s)
	// With a := s/(2σ), b := εσ/s, c := exp(ε) this is δ = Φ(a - b) - cΦ(-a - b).
	a := l2Sensitivity / (2 * sigma)
	b := epsilon * sigma / l2Sensitivity
	c := math.Exp(epsilon)

	if math.IsInf(c, +1) {
		// δ(σ,s,ε) –> 0 as ε –> ∞.
		return 0
	}
	if math.IsInf(b, +1) {
		// δ(σ,s,ε) –> 0 as the L2 sensitivity –> 0.
		return 0
	}
	return distuv.UnitNormal.CDF(a-b) - c*distuv.UnitNormal.CDF(-a-b)
}

// SigmaForGaussian returns the standard deviation σ of Gaussian noise needed
// for a single release of L2 sensitivity l2Sensitivity to be
// (ε,δ)-differentially private. The result exceeds the tight value by at most
// a relative gaussianSigmaAccuracy.
func SigmaForGaussian(l2Sensitivity, epsilon, delta float64) (float64, error) {
	if err := checks.CheckClipNorm(l2Sensitivity, "l2Sensitivity"); err != nil {
		return 0, err
	}
	if epsilon < 0 || math.IsNaN(epsilon) || math.IsInf(epsilon, 0) {
		return 0, fmt.Errorf("Epsilon is %f, must be nonnegative and finite", epsilon)
	}
	if delta >= 1 {
		return 0, nil
	}
	if err := checks.CheckDeltaStrict(delta); err != nil {
		return 0, err
	}

	// The required noise grows linearly with sensitivity, so start there and
	// double until the bracket holds σ_tight.
	upperBound := l2Sensitivity
	var lowerBound float64
	for DeltaForGaussian(upperBound, l2Sensitivity, epsilon) > delta {
		lowerBound = upperBound
		upperBound = upperBound * 2
	}
	for upperBound-lowerBound > gaussianSigmaAccuracy*lowerBound {
		middle := lowerBound*0.5 + upperBound*0.5
		if DeltaForGaussian(middle, l2Sensitivity, epsilon) > delta {
			lowerBound = middle
		} else {
			upperBound = middle
		}
	}
	return upperBound, nil
}
