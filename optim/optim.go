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

package optim

import (
	"fmt"
	"math"
	"strings"
)

// Optimizer minimises a loss given its gradient. Step updates params in
// place.
type Optimizer interface {
	Step(params, grad []float64)
}

// Kind is an enum type for the supported optimisers.
type Kind int

// Supported optimisers.
const (
	AdamKind Kind = iota
	SGDKind
)

func (k Kind) String() string {
	switch k {
	case AdamKind:
		return "adam"
	case SGDKind:
		return "sgd"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts the names returned by Kind.String back to a Kind. The
// empty string means Adam.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "", "adam":
		return AdamKind, nil
	case "sgd":
		return SGDKind, nil
	}
	return AdamKind, fmt.Errorf("unknown optimizer %q", s)
}

// New returns a fresh optimiser of kind k.
func New(k Kind, lr float64, s Schedule) Optimizer {
	if k == SGDKind {
		return &SGD{LR: lr, Schedule: s}
	}
	return NewAdam(lr, s)
}

// SGD is plain gradient descent.
type SGD struct {
	LR       float64
	Schedule Schedule
	t        int
}

// Step implements Optimizer.
func (o *SGD) Step(params, grad []float64) {
	lr := o.Schedule.Rate(o.LR, o.t)
	for i := range params {
		params[i] -= lr * grad[i]
	}
	o.t++
}

// Adam is the optimiser of Kingma and Ba with bias-corrected moments.
type Adam struct {
	LR       float64
	Beta1    float64
	Beta2    float64
	Epsilon  float64
	Schedule Schedule

	m, v []float64
	t    int
}

// NewAdam returns Adam with the customary β₁ = 0.9, β₂ = 0.999, ε = 1e-8.
func NewAdam(lr float64, s Schedule) *Adam {
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8, Schedule: s}
}

// Step implements Optimizer.
func (o *Adam) Step(params, grad []float64) {
	if o.m == nil {
		o.m = make([]float64, len(params))
		o.v = make([]float64, len(params))
	}
	lr := o.Schedule.Rate(o.LR, o.t)
	o.t++
	c1 := 1 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.Beta2, float64(o.t))
	for i, g := range grad {
		o.m[i] = o.Beta1*o.m[i] + (1-o.Beta1)*g
		o.v[i] = o.Beta2*o.v[i] + (1-o.Beta2)*g*g
		params[i] -= lr * (o.m[i] / c1) / (math.Sqrt(o.v[i]/c2) + o.Epsilon)
	}
}
