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
	"math"
	"testing"
)

func TestScheduleRate(t *testing.T) {
	for _, tc := range []struct {
		desc string
		s    Schedule
		step int
		want float64
	}{
		{"constant", Schedule{}, 100, 0.1},
		{"multistep before first milestone", HalvingSchedule(10), 4, 0.1},
		{"multistep at first milestone", HalvingSchedule(10), 5, 0.05},
		{"multistep after both milestones", HalvingSchedule(10), 9, 0.025},
		{"multiplicative", Schedule{Kind: Multiplicative, Gamma: 0.9}, 2, 0.1 * 0.81},
	} {
		if got := tc.s.Rate(0.1, tc.step); math.Abs(got-tc.want) > 1e-15 {
			t.Errorf("Rate: when %s got %v, want %v", tc.desc, got, tc.want)
		}
	}
}

func TestScheduleValidate(t *testing.T) {
	if err := (Schedule{Kind: MultiStep}).Validate(); err == nil {
		t.Errorf("Validate: multistep with zero gamma got nil err")
	}
	if err := HalvingSchedule(8).Validate(); err != nil {
		t.Errorf("Validate: halving schedule got err %v", err)
	}
}

func TestParse(t *testing.T) {
	for _, k := range []ScheduleKind{Constant, MultiStep, Multiplicative} {
		if got, err := ParseScheduleKind(k.String()); err != nil || got != k {
			t.Errorf("ParseScheduleKind(%q) = %v, %v, want %v", k.String(), got, err, k)
		}
	}
	for _, k := range []Kind{AdamKind, SGDKind} {
		if got, err := ParseKind(k.String()); err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v, want %v", k.String(), got, err, k)
		}
	}
	if _, err := ParseKind("lbfgs"); err == nil {
		t.Errorf("ParseKind(\"lbfgs\"): got nil err")
	}
}

// quadratic has gradient 2(x - 3) per coordinate and minimum at 3.
func quadraticGrad(x []float64) []float64 {
	g := make([]float64, len(x))
	for i := range x {
		g[i] = 2 * (x[i] - 3)
	}
	return g
}

func TestOptimizersMinimiseQuadratic(t *testing.T) {
	for _, k := range []Kind{AdamKind, SGDKind} {
		o := New(k, 0.1, Schedule{})
		x := []float64{-2, 10}
		for i := 0; i < 2000; i++ {
			o.Step(x, quadraticGrad(x))
		}
		for i, v := range x {
			if math.Abs(v-3) > 1e-2 {
				t.Errorf("%v: x[%d] = %v after 2000 steps, want 3", k, i, v)
			}
		}
	}
}

func TestAdamFirstStepIsLearningRate(t *testing.T) {
	x := []float64{0}
	NewAdam(0.01, Schedule{}).Step(x, []float64{123})
	// Bias correction makes the first step lr·sign(g).
	if math.Abs(x[0]+0.01) > 1e-9 {
		t.Errorf("Adam first step: got %v, want -0.01", x[0])
	}
}
