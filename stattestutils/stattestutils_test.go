// Copyright 2023 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stattestutils

import (
	"math"
	"testing"
)

func TestSampleMean(t *testing.T) {
	for _, tc := range []struct {
		input    []float64
		wantMean float64
	}{
		{
			input:    []float64{},
			wantMean: 0,
		},
		{
			input:    []float64{100.123},
			wantMean: 100.123,
		},
		{
			input:    []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			wantMean: 5,
		},
	} {
		output := SampleMean(tc.input)
		if math.Abs(output-tc.wantMean) > 10e-10 {
			t.Errorf("got sampleMean(%v)=%f, want %f", tc.input, output, tc.wantMean)
		}
	}
}

func TestSampleVariance(t *testing.T) {
	for _, tc := range []struct {
		input        []float64
		wantVariance float64
	}{
		{
			input:        []float64{},
			wantVariance: 0,
		},
		{
			input:        []float64{100.123},
			wantVariance: 0,
		},
		{
			input:        []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			wantVariance: 10,
		},
	} {
		output := SampleVariance(tc.input)
		if math.Abs(output-tc.wantVariance) > 10e-10 {
			t.Errorf("got sampleVariance(%v)=%f, want %f", tc.input, output, tc.wantVariance)
		}
	}
}

func TestCoordinate(t *testing.T) {
	got := Coordinate([][]float64{{1, 2}, {3, 4}, {5, 6}}, 1)
	want := []float64{2, 4, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Coordinate: got %v, want %v", got, want)
			break
		}
	}
}

func TestTolerances(t *testing.T) {
	if got, want := MeanTolerance(2, 100), 4.41717*0.2; math.Abs(got-want) > 1e-12 {
		t.Errorf("MeanTolerance(2, 100) = %v, want %v", got, want)
	}
	if got, want := VarianceTolerance(1, 100), 4.41717*math.Sqrt2/10; math.Abs(got-want) > 1e-12 {
		t.Errorf("VarianceTolerance(1, 100) = %v, want %v", got, want)
	}
	if !NearEqual(1, 1.5, 0.5) || NearEqual(1, 1.6, 0.5) {
		t.Errorf("NearEqual: boundary handling is wrong")
	}
}
