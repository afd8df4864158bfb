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

// Package stattestutils provides statistical helpers for tests of randomised
// mechanisms.
//
// This package is not optimized for performance or speed and is only intended
// to be used in tests.
package stattestutils

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// quantile99995 is the 99.9995% quantile of the standard normal distribution.
// A tolerance of quantile99995 standard errors falsely rejects with
// probability 10⁻⁵.
const quantile99995 = 4.41717

// SampleMean returns the average over the values in the slice, or 0 for an
// empty slice.
func SampleMean(values []float64) float64 {
	return floats.Sum(values) / math.Max(1, float64(len(values)))
}

// SampleVariance returns the sum of squared distances to the mean divided by
// the number of values.
func SampleVariance(values []float64) float64 {
	mean := SampleMean(values)
	var sumOfSquares float64
	for _, v := range values {
		sumOfSquares += (v - mean) * (v - mean)
	}
	return sumOfSquares / math.Max(1, float64(len(values)))
}

// Coordinate returns the i-th coordinate of every sample vector.
func Coordinate(samples [][]float64, i int) []float64 {
	out := make([]float64, len(samples))
	for j, s := range samples {
		out[j] = s[i]
	}
	return out
}

// MeanTolerance returns the rejection bound for the sample mean of n draws
// with standard deviation stdDev.
func MeanTolerance(stdDev float64, n int) float64 {
	return quantile99995 * stdDev / math.Sqrt(float64(n))
}

// VarianceTolerance returns the rejection bound for the sample variance of n
// Gaussian draws with standard deviation stdDev, whose own standard deviation
// is approximately sqrt(2)·stdDev²/sqrt(n).
func VarianceTolerance(stdDev float64, n int) float64 {
	return quantile99995 * math.Sqrt2 * stdDev * stdDev / math.Sqrt(float64(n))
}

// NearEqual reports whether |a-b| <= tol.
func NearEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
