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
	"math"

	"github.com/DPBayes/DPPVI/dperr"
)

// GammaStandard holds the concentration α and rate β of independent Gamma
// distributions.
type GammaStandard struct {
	Concentration []float64
	Rate          []float64
}

// GammaToNatural returns np1 = α - 1, np2 = -β.
func GammaToNatural(s GammaStandard) (NaturalParams, error) {
	n := ZeroNatural(len(s.Concentration))
	for i := range s.Concentration {
		if !(s.Concentration[i] > 0) || !(s.Rate[i] > 0) {
			return NaturalParams{}, dperr.NumericalInstabilityf("gamma coordinate %d has concentration %v and rate %v, both must be positive", i, s.Concentration[i], s.Rate[i])
		}
		n.NP1[i] = s.Concentration[i] - 1
		n.NP2[i] = -s.Rate[i]
	}
	return n, nil
}

// GammaToStandard returns α = np1 + 1, β = -np2.
func GammaToStandard(n NaturalParams) (GammaStandard, error) {
	s := GammaStandard{Concentration: make([]float64, n.Dim()), Rate: make([]float64, n.Dim())}
	for i := range n.NP1 {
		s.Concentration[i] = n.NP1[i] + 1
		s.Rate[i] = -n.NP2[i]
		if !(s.Concentration[i] > 0) || !(s.Rate[i] > 0) {
			return GammaStandard{}, dperr.NumericalInstabilityf("gamma coordinate %d maps to concentration %v and rate %v", i, s.Concentration[i], s.Rate[i])
		}
	}
	return s, nil
}

// DirichletToNatural returns np1 = α - 1 for a concentration vector α.
func DirichletToNatural(concentration []float64) ([]float64, error) {
	np1 := make([]float64, len(concentration))
	for i, a := range concentration {
		if !(a > 0) || math.IsInf(a, 0) {
			return nil, dperr.NumericalInstabilityf("dirichlet concentration[%d] is %v, must be positive", i, a)
		}
		np1[i] = a - 1
	}
	return np1, nil
}

// DirichletToStandard returns α = np1 + 1.
func DirichletToStandard(np1 []float64) ([]float64, error) {
	conc := make([]float64, len(np1))
	for i, v := range np1 {
		conc[i] = v + 1
		if !(conc[i] > 0) {
			return nil, dperr.NumericalInstabilityf("dirichlet np1[%d] is %v, concentration would be %v", i, v, conc[i])
		}
	}
	return conc, nil
}

// LogNormalToNatural converts the parameters of the underlying normal of a
// log-normal distribution; the map is the mean-field Gaussian one.
func LogNormalToNatural(s StandardParams) (NaturalParams, error) {
	return ToNatural(s)
}

// LogNormalToStandard is the inverse of LogNormalToNatural.
func LogNormalToStandard(n NaturalParams, enforcePosVar bool) (StandardParams, int, error) {
	return ToStandard(n, enforcePosVar)
}
