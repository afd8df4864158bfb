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

	"gonum.org/v1/gonum/floats"
)

// DefaultOrders are the Rényi orders over which RDP is converted to (ε, δ).
var DefaultOrders = func() []int {
	orders := make([]int, 0, 67)
	for a := 2; a <= 64; a++ {
		orders = append(orders, a)
	}
	return append(orders, 80, 96, 128, 256)
}()

// RDP accounts for the sampled Gaussian mechanism with Rényi differential
// privacy at integer orders, composes linearly over releases and converts to
// (ε, δ) with ε = min_α RDP(α) + log(1/δ)/(α-1).
type RDP struct {
	// Orders defaults to DefaultOrders when empty.
	Orders []int
}

// Epsilon implements Accountant.
func (a RDP) Epsilon(delta, sigma, q float64, compositions int) (float64, error) {
	if err := checkArgs(delta, sigma, q, compositions); err != nil {
		return 0, err
	}
	if sigma == 0 {
		return math.Inf(1), nil
	}
	orders := a.Orders
	if len(orders) == 0 {
		orders = DefaultOrders
	}
	eps := math.Inf(1)
	for _, alpha := range orders {
		rdp := float64(compositions) * sampledGaussianRDP(q, sigma, alpha)
		eps = math.Min(eps, rdp+math.Log(1/delta)/float64(alpha-1))
	}
	return eps, nil
}

// sampledGaussianRDP returns the RDP of one release of the sampled Gaussian
// mechanism at integer order alpha >= 2:
//
//	(1/(α-1))·log Σ_k C(α,k) q^k (1-q)^(α-k) exp((k²-k)/(2σ²))
func sampledGaussianRDP(q, sigma float64, alpha int) float64 {
	if q == 1 {
		return float64(alpha) / (2 * sigma * sigma)
	}
	terms := make([]float64, alpha+1)
	for k := 0; k <= alpha; k++ {
		kf := float64(k)
		terms[k] = logBinomial(alpha, k) + kf*math.Log(q) + float64(alpha-k)*math.Log1p(-q) +
			(kf*kf-kf)/(2*sigma*sigma)
	}
	return floats.LogSumExp(terms) / float64(alpha-1)
}

func logBinomial(n, k int) float64 {
	a, _ := math.Lgamma(float64(n + 1))
	b, _ := math.Lgamma(float64(k + 1))
	c, _ := math.Lgamma(float64(n - k + 1))
	return a - b - c
}
