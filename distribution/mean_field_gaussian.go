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
	log "github.com/golang/glog"
)

// minCoercedPrecision replaces a zero np2 coordinate under the enforce_pos_var
// policy, where the absolute value alone would give an infinite variance.
const minCoercedPrecision = 1e-12

// StandardParams holds the location and scale of a mean-field Gaussian.
type StandardParams struct {
	Loc   []float64
	Scale []float64
}

// Clone returns a deep copy of s.
func (s StandardParams) Clone() StandardParams {
	return StandardParams{
		Loc:   append([]float64(nil), s.Loc...),
		Scale: append([]float64(nil), s.Scale...),
	}
}

// ToNatural converts mean-field Gaussian standard parameters to natural
// parameters: np1 = loc/scale², np2 = -1/(2·scale²). Every scale must be
// strictly positive and finite.
func ToNatural(s StandardParams) (NaturalParams, error) {
	if len(s.Loc) != len(s.Scale) {
		return NaturalParams{}, dperr.Configurationf("loc has %d coordinates, scale has %d", len(s.Loc), len(s.Scale))
	}
	n := ZeroNatural(len(s.Loc))
	for i, scale := range s.Scale {
		if !(scale > 0) || math.IsInf(scale, 0) {
			return NaturalParams{}, dperr.NumericalInstabilityf("scale[%d] is %v, must be strictly positive and finite", i, scale)
		}
		prec := 1 / (scale * scale)
		n.NP1[i] = s.Loc[i] * prec
		n.NP2[i] = -0.5 * prec
	}
	return n, nil
}

// ToStandard converts mean-field Gaussian natural parameters to standard
// parameters: scale² = -1/(2·np2), loc = np1·scale².
//
// A coordinate with np2 >= 0 has no valid variance. Without enforcePosVar this
// is reported as dperr.ErrNumericalInstability. With enforcePosVar the
// magnitude |np2| is used instead, a warning is logged and the number of
// coerced coordinates is returned; the coercion masks the cause of the
// instability rather than fixing it.
func ToStandard(n NaturalParams, enforcePosVar bool) (StandardParams, int, error) {
	s := StandardParams{Loc: make([]float64, n.Dim()), Scale: make([]float64, n.Dim())}
	coerced := 0
	for i := range n.NP1 {
		np2 := n.NP2[i]
		if !(np2 < 0) {
			if !enforcePosVar {
				return StandardParams{}, 0, dperr.NumericalInstabilityf("np2[%d] is %v, variance would not be positive", i, np2)
			}
			np2 = -math.Max(math.Abs(np2), minCoercedPrecision)
			coerced++
		}
		variance := -0.5 / np2
		s.Scale[i] = math.Sqrt(variance)
		s.Loc[i] = n.NP1[i] * variance
	}
	if coerced > 0 {
		log.Warningf("ToStandard: coerced %d of %d non-positive variances by taking absolute values", coerced, n.Dim())
	}
	return s, coerced, nil
}

// MeanFieldGaussian is a fully factorised Gaussian stored by its natural
// parameters.
type MeanFieldGaussian struct {
	NP            NaturalParams
	EnforcePosVar bool
}

// NewMeanFieldGaussian builds a distribution from standard parameters.
func NewMeanFieldGaussian(s StandardParams, enforcePosVar bool) (MeanFieldGaussian, error) {
	n, err := ToNatural(s)
	if err != nil {
		return MeanFieldGaussian{}, err
	}
	return MeanFieldGaussian{NP: n, EnforcePosVar: enforcePosVar}, nil
}

// Standard returns the standard parameters of q under its variance policy.
func (q MeanFieldGaussian) Standard() (StandardParams, error) {
	s, _, err := ToStandard(q.NP, q.EnforcePosVar)
	return s, err
}

// Add returns q with other's natural parameters added.
func (q MeanFieldGaussian) Add(other NaturalParams) MeanFieldGaussian {
	return MeanFieldGaussian{NP: q.NP.Add(other), EnforcePosVar: q.EnforcePosVar}
}

// Subtract returns q with other's natural parameters subtracted.
func (q MeanFieldGaussian) Subtract(other NaturalParams) MeanFieldGaussian {
	return MeanFieldGaussian{NP: q.NP.Subtract(other), EnforcePosVar: q.EnforcePosVar}
}

// LogPartition returns the log-normaliser
// A(η) = Σ -np1²/(4·np2) - ½·log(-2·np2) + ½·log(2π). It requires np2 < 0
// everywhere.
func LogPartition(n NaturalParams) float64 {
	var a float64
	for i := range n.NP1 {
		a += -n.NP1[i]*n.NP1[i]/(4*n.NP2[i]) - 0.5*math.Log(-2*n.NP2[i]) + 0.5*math.Log(2*math.Pi)
	}
	return a
}

// IsProper reports whether every coordinate has np2 < 0.
func IsProper(n NaturalParams) bool {
	for _, np2 := range n.NP2 {
		if !(np2 < 0) {
			return false
		}
	}
	return true
}

// KL returns KL(q ‖ p) where p is given by natural parameters. If p is
// improper, as a PVI cavity may be, the p-dependent normaliser is dropped and
// the result is only defined up to a constant; the gradient with respect to q
// is unaffected.
func KL(q StandardParams, p NaturalParams) float64 {
	var kl float64
	for i := range q.Loc {
		m, s2 := q.Loc[i], q.Scale[i]*q.Scale[i]
		// -H(q) - E_q[η_p·T(θ)], with T(θ) = (θ, θ²).
		kl += -0.5*math.Log(2*math.Pi*math.E*s2) - p.NP1[i]*m - p.NP2[i]*(s2+m*m)
	}
	if IsProper(p) {
		kl += LogPartition(p)
	}
	return kl
}

// KLGradient returns the gradient of KL(q ‖ p) with respect to q's location
// and log-scale.
func KLGradient(q StandardParams, p NaturalParams) (gLoc, gLogScale []float64) {
	gLoc = make([]float64, len(q.Loc))
	gLogScale = make([]float64, len(q.Loc))
	for i := range q.Loc {
		m, s2 := q.Loc[i], q.Scale[i]*q.Scale[i]
		gLoc[i] = -p.NP1[i] - 2*p.NP2[i]*m
		gLogScale[i] = -1 - 2*p.NP2[i]*s2
	}
	return gLoc, gLogScale
}

// Reparameterize returns the draw θ = loc + scale·ε for a standard normal ε.
func Reparameterize(q StandardParams, eps []float64) []float64 {
	theta := make([]float64, len(q.Loc))
	for i := range theta {
		theta[i] = q.Loc[i] + q.Scale[i]*eps[i]
	}
	return theta
}
