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

// Package distribution implements the exponential-family distributions used
// by PVI, in natural-parameter and standard-parameter form.
//
// Natural parameters are the canonical representation: products and quotients
// of densities become sums and differences of parameter vectors, which is what
// makes the bookkeeping global = prior + Σ factors exact. Standard parameters
// are derived on demand.
package distribution

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// NaturalParams holds the two natural-parameter vectors of a two-parameter
// exponential family. Both vectors have the same length.
type NaturalParams struct {
	NP1 []float64
	NP2 []float64
}

// ZeroNatural returns the neutral natural parameters of dimension dim.
func ZeroNatural(dim int) NaturalParams {
	return NaturalParams{NP1: make([]float64, dim), NP2: make([]float64, dim)}
}

// Dim returns the number of coordinates.
func (n NaturalParams) Dim() int {
	return len(n.NP1)
}

// Clone returns a deep copy of n.
func (n NaturalParams) Clone() NaturalParams {
	return NaturalParams{
		NP1: append([]float64(nil), n.NP1...),
		NP2: append([]float64(nil), n.NP2...),
	}
}

// Add returns n + other.
func (n NaturalParams) Add(other NaturalParams) NaturalParams {
	mustMatch(n, other)
	out := n.Clone()
	floats.Add(out.NP1, other.NP1)
	floats.Add(out.NP2, other.NP2)
	return out
}

// Subtract returns n - other.
func (n NaturalParams) Subtract(other NaturalParams) NaturalParams {
	mustMatch(n, other)
	out := n.Clone()
	floats.Sub(out.NP1, other.NP1)
	floats.Sub(out.NP2, other.NP2)
	return out
}

// Scale returns c·n.
func (n NaturalParams) Scale(c float64) NaturalParams {
	out := n.Clone()
	floats.Scale(c, out.NP1)
	floats.Scale(c, out.NP2)
	return out
}

// Vector returns NP1 followed by NP2 as one flat vector.
func (n NaturalParams) Vector() []float64 {
	v := make([]float64, 0, 2*n.Dim())
	v = append(v, n.NP1...)
	return append(v, n.NP2...)
}

// FromVector is the inverse of Vector.
func FromVector(v []float64) NaturalParams {
	if len(v)%2 != 0 {
		panic(fmt.Sprintf("distribution: natural-parameter vector has odd length %d", len(v)))
	}
	d := len(v) / 2
	return NaturalParams{
		NP1: append([]float64(nil), v[:d]...),
		NP2: append([]float64(nil), v[d:]...),
	}
}

// Norm returns the L2 norm of the flattened parameters.
func (n NaturalParams) Norm() float64 {
	return floats.Norm(n.Vector(), 2)
}

// EqualApprox reports whether n and other agree coordinate-wise up to tol.
func (n NaturalParams) EqualApprox(other NaturalParams, tol float64) bool {
	if n.Dim() != other.Dim() {
		return false
	}
	return floats.EqualApprox(n.NP1, other.NP1, tol) && floats.EqualApprox(n.NP2, other.NP2, tol)
}

func mustMatch(a, b NaturalParams) {
	if a.Dim() != b.Dim() || len(a.NP2) != len(b.NP2) {
		panic(fmt.Sprintf("distribution: dimension mismatch %d vs %d", a.Dim(), b.Dim()))
	}
}
