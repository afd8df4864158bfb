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

package dataset

import (
	"math"

	"github.com/DPBayes/DPPVI/rand"
	"gonum.org/v1/gonum/floats"
)

// SyntheticLogistic draws n examples with standard normal features and
// labels y ~ Bernoulli(σ(w·x + bias)), with labels in {0, 1}.
func SyntheticLogistic(n int, weights []float64, bias float64, r *rand.Rand) Dataset {
	d := Dataset{X: make([][]float64, n), Y: make([]float64, n)}
	for i := 0; i < n; i++ {
		d.X[i] = r.Normals(len(weights))
		p := 1 / (1 + math.Exp(-(floats.Dot(weights, d.X[i]) + bias)))
		if r.Bernoulli(p) {
			d.Y[i] = 1
		}
	}
	return d
}
