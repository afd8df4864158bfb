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

package model

import (
	"math"

	"github.com/DPBayes/DPPVI/dataset"
	"github.com/DPBayes/DPPVI/distribution"
	"gonum.org/v1/gonum/floats"
)

// LogisticRegression is Bayesian logistic regression with labels in {0, 1}.
// With IncludeBias the last parameter is an intercept.
type LogisticRegression struct {
	IncludeBias bool
}

// ParamDim implements Model.
func (m LogisticRegression) ParamDim(featureDim int) int {
	if m.IncludeBias {
		return featureDim + 1
	}
	return featureDim
}

func (m LogisticRegression) input(x []float64) []float64 {
	if !m.IncludeBias {
		return x
	}
	return append(append(make([]float64, 0, len(x)+1), x...), 1)
}

// ExampleGradients implements Model. For θ = loc + scale·ε the gradient of
// log σ(y'·θ·x), with y' = 2y - 1, is (y - σ(θ·x))·x with respect to θ; the
// chain rule gives ε·scale on top of that for the log-scale.
func (m LogisticRegression) ExampleGradients(batch dataset.Dataset, q distribution.StandardParams, eps [][]float64) ([]Gradient, []float64) {
	thetas := make([][]float64, len(eps))
	for s, e := range eps {
		thetas[s] = distribution.Reparameterize(q, e)
	}
	grads := make([]Gradient, batch.Len())
	lls := make([]float64, batch.Len())
	ns := float64(len(eps))
	for i, row := range batch.X {
		x := m.input(row)
		y := batch.Y[i]
		g := Gradient{Loc: make([]float64, len(x)), LogScale: make([]float64, len(x))}
		var ll float64
		for s, theta := range thetas {
			z := floats.Dot(theta, x)
			ll += logSigmoid((2*y - 1) * z)
			r := y - sigmoid(z)
			for j, xj := range x {
				g.Loc[j] += r * xj
				g.LogScale[j] += r * xj * eps[s][j] * q.Scale[j]
			}
		}
		floats.Scale(1/ns, g.Loc)
		floats.Scale(1/ns, g.LogScale)
		grads[i] = g
		lls[i] = ll / ns
	}
	return grads, lls
}

// Predict implements Model using the probit approximation
// p ≈ σ(μ / sqrt(1 + π·v/8)) for a logit with mean μ and variance v.
func (m LogisticRegression) Predict(x [][]float64, q distribution.StandardParams) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		in := m.input(row)
		mean := floats.Dot(q.Loc, in)
		var v float64
		for j, xj := range in {
			v += q.Scale[j] * q.Scale[j] * xj * xj
		}
		out[i] = sigmoid(mean / math.Sqrt(1+math.Pi*v/8))
	}
	return out
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// logSigmoid returns log σ(z) without overflow for large |z|.
func logSigmoid(z float64) float64 {
	if z >= 0 {
		return -math.Log1p(math.Exp(-z))
	}
	return z - math.Log1p(math.Exp(z))
}
