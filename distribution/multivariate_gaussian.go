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

package distribution

import (
	"github.com/DPBayes/DPPVI/dperr"
	"gonum.org/v1/gonum/mat"
)

// MultivariateGaussianStandard holds the mean and covariance of a full-rank
// Gaussian.
type MultivariateGaussianStandard struct {
	Loc        []float64
	Covariance *mat.SymDense
}

// MultivariateGaussianNatural holds np1 = Σ⁻¹μ and np2 = -½Σ⁻¹.
type MultivariateGaussianNatural struct {
	NP1 []float64
	NP2 *mat.SymDense
}

// MultivariateToNatural converts a full-covariance Gaussian to natural
// parameters. The covariance must be positive definite.
func MultivariateToNatural(s MultivariateGaussianStandard) (MultivariateGaussianNatural, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(s.Covariance); !ok {
		return MultivariateGaussianNatural{}, dperr.NumericalInstabilityf("covariance matrix is not positive definite")
	}
	prec := mat.NewSymDense(len(s.Loc), nil)
	if err := chol.InverseTo(prec); err != nil {
		return MultivariateGaussianNatural{}, dperr.NumericalInstabilityf("inverting covariance: %v", err)
	}
	np1 := mat.NewVecDense(len(s.Loc), nil)
	if err := chol.SolveVecTo(np1, mat.NewVecDense(len(s.Loc), append([]float64(nil), s.Loc...))); err != nil {
		return MultivariateGaussianNatural{}, dperr.NumericalInstabilityf("solving for np1: %v", err)
	}
	np2 := mat.NewSymDense(len(s.Loc), nil)
	np2.ScaleSym(-0.5, prec)
	return MultivariateGaussianNatural{NP1: np1.RawVector().Data, NP2: np2}, nil
}

// MultivariateToStandard converts natural parameters back to mean and
// covariance. The precision -2·np2 must be positive definite.
func MultivariateToStandard(n MultivariateGaussianNatural) (MultivariateGaussianStandard, error) {
	d := len(n.NP1)
	prec := mat.NewSymDense(d, nil)
	prec.ScaleSym(-2, n.NP2)
	var chol mat.Cholesky
	if ok := chol.Factorize(prec); !ok {
		return MultivariateGaussianStandard{}, dperr.NumericalInstabilityf("precision matrix -2·np2 is not positive definite")
	}
	cov := mat.NewSymDense(d, nil)
	if err := chol.InverseTo(cov); err != nil {
		return MultivariateGaussianStandard{}, dperr.NumericalInstabilityf("inverting precision: %v", err)
	}
	loc := mat.NewVecDense(d, nil)
	if err := chol.SolveVecTo(loc, mat.NewVecDense(d, append([]float64(nil), n.NP1...))); err != nil {
		return MultivariateGaussianStandard{}, dperr.NumericalInstabilityf("solving for loc: %v", err)
	}
	return MultivariateGaussianStandard{Loc: loc.RawVector().Data, Covariance: cov}, nil
}
