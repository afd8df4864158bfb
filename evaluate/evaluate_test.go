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

package evaluate

import (
	"errors"
	"math"
	"testing"

	"github.com/DPBayes/DPPVI/dataset"
	"github.com/DPBayes/DPPVI/distribution"
	"github.com/DPBayes/DPPVI/dperr"
	"github.com/DPBayes/DPPVI/model"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestFromProbabilities(t *testing.T) {
	y := []float64{1, 0, 1, 0}
	p := []float64{0.9, 0.2, 0.4, 0.6}
	got, err := FromProbabilities(y, p, 3)
	if err != nil {
		t.Fatalf("FromProbabilities: got err %v", err)
	}
	want := Metrics{
		Accuracy: 0.5,
		LogLik:   (math.Log(0.9) + math.Log(0.8) + math.Log(0.4) + math.Log(0.4)) / 4,
		PosNeg: &PosNeg{
			Thresholds: []float64{0, 0.5, 1},
			TP:         []int{2, 1, 0},
			FP:         []int{2, 1, 0},
			TN:         []int{0, 1, 2},
			FN:         []int{0, 1, 2},
		},
		BalancedAccuracy: 0.5,
		F1:               0.5,
		AveragePrecision: 0.5 + 1.0/3,
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("FromProbabilities: (-want +got):\n%s", diff)
	}
}

func TestFromProbabilitiesSingleThreshold(t *testing.T) {
	got, err := FromProbabilities([]float64{1, 1, 0}, []float64{0.7, 0.3, 0.1}, 1)
	if err != nil {
		t.Fatalf("FromProbabilities: got err %v", err)
	}
	want := &PosNeg{Thresholds: []float64{0.5}, TP: []int{1}, FP: []int{0}, TN: []int{1}, FN: []int{1}}
	if diff := cmp.Diff(want, got.PosNeg); diff != "" {
		t.Errorf("FromProbabilities: PosNeg (-want +got):\n%s", diff)
	}
	if got.F1 != 2.0/3 {
		t.Errorf("FromProbabilities: F1 %v, want %v", got.F1, 2.0/3)
	}
	if got.BalancedAccuracy != 0.75 {
		t.Errorf("FromProbabilities: balanced accuracy %v, want 0.75", got.BalancedAccuracy)
	}
}

func TestFromProbabilitiesEdgeCases(t *testing.T) {
	for _, tc := range []struct {
		desc string
		y, p []float64
		n    int
		want error
	}{
		{"mismatched lengths", []float64{1}, []float64{0.5, 0.5}, 3, dperr.ErrConfiguration},
		{"empty", nil, nil, 3, dperr.ErrInsufficientData},
		{"zero points", []float64{1}, []float64{0.5}, 0, dperr.ErrConfiguration},
	} {
		if _, err := FromProbabilities(tc.y, tc.p, tc.n); !errors.Is(err, tc.want) {
			t.Errorf("FromProbabilities: when %s got err %v, want %v", tc.desc, err, tc.want)
		}
	}

	// Saturated predictions stay finite and one-class labels have no counts.
	got, err := FromProbabilities([]float64{1, 1}, []float64{0, 1}, 5)
	if err != nil {
		t.Fatalf("FromProbabilities: got err %v", err)
	}
	if math.IsInf(got.LogLik, 0) || math.IsNaN(got.LogLik) {
		t.Errorf("FromProbabilities: log-likelihood %v, want finite", got.LogLik)
	}
	if got.PosNeg != nil {
		t.Errorf("FromProbabilities: one-class labels got PosNeg %v, want nil", got.PosNeg)
	}
}

func TestClassificationUsesModel(t *testing.T) {
	d := dataset.Dataset{X: [][]float64{{3}, {-3}, {2}, {-2}}, Y: []float64{1, 0, 1, 0}}
	q := distribution.StandardParams{Loc: []float64{2}, Scale: []float64{0.1}}
	got, err := Classification(model.LogisticRegression{}, q, d, 11)
	if err != nil {
		t.Fatalf("Classification: got err %v", err)
	}
	if got.Accuracy != 1 || got.AveragePrecision != 1 || got.F1 != 1 {
		t.Errorf("Classification: got accuracy %v, AP %v, F1 %v, want all 1", got.Accuracy, got.AveragePrecision, got.F1)
	}
	if len(got.PosNeg.TP) != 11 {
		t.Errorf("Classification: got %d thresholds, want 11", len(got.PosNeg.TP))
	}
	if _, err := Classification(model.LogisticRegression{}, q, dataset.Dataset{}, 11); !errors.Is(err, dperr.ErrInsufficientData) {
		t.Errorf("Classification: empty dataset got err %v, want ErrInsufficientData", err)
	}
}

func TestRegression(t *testing.T) {
	d := dataset.Dataset{X: [][]float64{{0}, {0}}, Y: []float64{1, 0}}
	q := distribution.StandardParams{Loc: []float64{0}, Scale: []float64{1}}
	// The predictive mean at x = 0 is exactly 0.5.
	got, err := Regression(model.LogisticRegression{}, q, d)
	if err != nil {
		t.Fatalf("Regression: got err %v", err)
	}
	if got != 0.25 {
		t.Errorf("Regression: got %v, want 0.25", got)
	}
}
