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

// Factor is a client's approximation t_i to its own likelihood contribution.
// It lives purely in natural-parameter space.
type Factor struct {
	NaturalParams
}

// NewNeutralFactor returns the all-zero factor of dimension dim, meaning "no
// contribution yet".
func NewNeutralFactor(dim int) Factor {
	return Factor{ZeroNatural(dim)}
}

// Apply returns a new factor t + delta.
func (t Factor) Apply(delta NaturalParams) Factor {
	return Factor{t.Add(delta)}
}
