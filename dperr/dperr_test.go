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

package dperr

import (
	"errors"
	"testing"
)

func TestWrappedErrorsMatchSentinel(t *testing.T) {
	for _, tc := range []struct {
		desc     string
		err      error
		sentinel error
	}{
		{"configuration", Configurationf("dp_mode %q", "foo"), ErrConfiguration},
		{"numerical instability", NumericalInstabilityf("np2[%d] = %f", 1, 0.5), ErrNumericalInstability},
		{"insufficient data", InsufficientDataf("need %d positives", 10), ErrInsufficientData},
		{"calibration", CalibrationNonConvergencef("after %d iterations", 30), ErrCalibrationNonConvergence},
		{"unimplemented", Unimplementedf("user-level DP-SGD"), ErrUnimplemented},
	} {
		if !errors.Is(tc.err, tc.sentinel) {
			t.Errorf("errors.Is: when %s got false for %v, want true", tc.desc, tc.err)
		}
		if errors.Is(tc.err, errors.New(tc.sentinel.Error())) {
			t.Errorf("errors.Is: when %s matched a fresh error with the same text", tc.desc)
		}
	}
}

func TestWrappedErrorMessage(t *testing.T) {
	got := Configurationf("batch_size is %d", 0).Error()
	want := "configuration error: batch_size is 0"
	if got != want {
		t.Errorf("Configurationf: got %q, want %q", got, want)
	}
}
