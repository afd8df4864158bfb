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
	"gonum.org/v1/gonum/floats"
)

// ClipL2 returns a copy of v scaled down so that its L2 norm is at most c,
// together with the norm of v. Vectors already within the bound are returned
// unchanged; the direction is always preserved.
func ClipL2(v []float64, c float64) (clipped []float64, norm float64) {
	clipped = append([]float64(nil), v...)
	norm = floats.Norm(v, 2)
	if norm > c {
		floats.Scale(c/norm, clipped)
	}
	return clipped, norm
}

// ClipEach clips every vector in vs to norm c and returns their sum, the mean
// pre-clip norm and the mean post-clip norm.
func ClipEach(vs [][]float64, c float64) (sum []float64, meanPre, meanPost float64) {
	if len(vs) == 0 {
		return nil, 0, 0
	}
	sum = make([]float64, len(vs[0]))
	for _, v := range vs {
		clipped, pre := ClipL2(v, c)
		floats.Add(sum, clipped)
		meanPre += pre
		meanPost += floats.Norm(clipped, 2)
	}
	n := float64(len(vs))
	return sum, meanPre / n, meanPost / n
}
