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

package checks

import (
	"math"
	"testing"
)

func TestCheckEpsilonStrict(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		epsilon float64
		wantErr bool
	}{
		{"negative epsilon",
			-2,
			true},
		{"zero epsilon",
			0,
			true},
		{"epsilon is NaN",
			math.NaN(),
			true},
		{"epsilon is positive infinity",
			math.Inf(1),
			true},
		{"positive epsilon",
			2,
			false},
	} {
		if err := CheckEpsilonStrict(tc.epsilon); (err != nil) != tc.wantErr {
			t.Errorf("CheckEpsilonStrict: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestCheckDeltaStrict(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		delta   float64
		wantErr bool
	}{
		{"negative delta",
			-2,
			true},
		{"zero delta",
			0,
			true},
		{"delta == 1",
			1,
			true},
		{"0 < delta < 1",
			1e-5,
			false},
		{"delta is NaN",
			math.NaN(),
			true},
	} {
		if err := CheckDeltaStrict(tc.delta); (err != nil) != tc.wantErr {
			t.Errorf("CheckDeltaStrict: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestCheckClipNorm(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		c       float64
		wantErr bool
	}{
		{"negative bound", -1, true},
		{"zero bound", 0, true},
		{"infinite bound", math.Inf(1), true},
		{"positive bound", 1, false},
	} {
		if err := CheckClipNorm(tc.c); (err != nil) != tc.wantErr {
			t.Errorf("CheckClipNorm: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestCheckNoiseMultiplier(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		sigma   float64
		wantErr bool
	}{
		{"negative sigma", -0.1, true},
		{"zero sigma", 0, false},
		{"NaN sigma", math.NaN(), true},
		{"positive sigma", 1.3, false},
	} {
		if err := CheckNoiseMultiplier(tc.sigma); (err != nil) != tc.wantErr {
			t.Errorf("CheckNoiseMultiplier: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestCheckSamplingFractionAndDamping(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		x       float64
		wantErr bool
	}{
		{"zero", 0, true},
		{"one", 1, false},
		{"above one", 1.01, true},
		{"inside", 0.2, false},
		{"NaN", math.NaN(), true},
	} {
		if err := CheckSamplingFraction(tc.x); (err != nil) != tc.wantErr {
			t.Errorf("CheckSamplingFraction: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
		if err := CheckDampingFactor(tc.x); (err != nil) != tc.wantErr {
			t.Errorf("CheckDampingFactor: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestCheckBracket(t *testing.T) {
	for _, tc := range []struct {
		desc         string
		lower, upper float64
		wantErr      bool
	}{
		{"valid bracket", 0.7, 300, false},
		{"inverted bracket", 3, 1, true},
		{"empty bracket", 1, 1, true},
		{"negative lower bound", -1, 1, true},
		{"infinite upper bound", 1, math.Inf(1), true},
	} {
		if err := CheckBracket(tc.lower, tc.upper); (err != nil) != tc.wantErr {
			t.Errorf("CheckBracket: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestVerifyNameOverride(t *testing.T) {
	err := CheckClipNorm(-1, "C")
	if err == nil || err.Error()[:1] != "C" {
		t.Errorf("CheckClipNorm: with name override got %v, want message starting with C", err)
	}
	if err := CheckClipNorm(1, "a", "b"); err == nil {
		t.Errorf("CheckClipNorm: with two names got nil error, want error")
	}
}
