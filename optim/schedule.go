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

// Package optim provides the first-order optimisers and learning-rate
// schedules used for local optimisation on a client.
package optim

import (
	"fmt"
	"math"
	"strings"
)

// ScheduleKind is an enum type for learning-rate schedules.
type ScheduleKind int

const (
	// Constant keeps the base learning rate.
	Constant ScheduleKind = iota
	// MultiStep multiplies the rate by Gamma at every milestone step passed.
	MultiStep
	// Multiplicative multiplies the rate by Gamma after every step.
	Multiplicative
)

func (k ScheduleKind) String() string {
	switch k {
	case Constant:
		return "constant"
	case MultiStep:
		return "multistep"
	case Multiplicative:
		return "multiplicative"
	}
	return fmt.Sprintf("ScheduleKind(%d)", int(k))
}

// ParseScheduleKind converts the names returned by ScheduleKind.String back
// to a ScheduleKind. The empty string means Constant.
func ParseScheduleKind(s string) (ScheduleKind, error) {
	switch strings.ToLower(s) {
	case "", "constant":
		return Constant, nil
	case "multistep", "multi_step":
		return MultiStep, nil
	case "multiplicative":
		return Multiplicative, nil
	}
	return Constant, fmt.Errorf("unknown learning rate schedule %q", s)
}

// Schedule is a learning-rate schedule evaluated per local step.
type Schedule struct {
	Kind       ScheduleKind
	Gamma      float64
	Milestones []int
}

// HalvingSchedule returns the multi-step schedule that halves the rate at
// steps n/2 and n-2 of an n-step local optimisation.
func HalvingSchedule(n int) Schedule {
	return Schedule{Kind: MultiStep, Gamma: 0.5, Milestones: []int{n / 2, n - 2}}
}

// Rate returns the learning rate for the given zero-based step.
func (s Schedule) Rate(base float64, step int) float64 {
	switch s.Kind {
	case MultiStep:
		passed := 0
		for _, m := range s.Milestones {
			if step >= m {
				passed++
			}
		}
		return base * math.Pow(s.Gamma, float64(passed))
	case Multiplicative:
		return base * math.Pow(s.Gamma, float64(step))
	}
	return base
}

// Validate checks Gamma and Milestones for the schedules that use them.
func (s Schedule) Validate() error {
	switch s.Kind {
	case Constant:
		return nil
	case MultiStep, Multiplicative:
		if !(s.Gamma > 0) || math.IsInf(s.Gamma, 0) {
			return fmt.Errorf("lr_schedule gamma is %v, must be strictly positive and finite", s.Gamma)
		}
		return nil
	}
	return fmt.Errorf("unknown learning rate schedule %v", s.Kind)
}
