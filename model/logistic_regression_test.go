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

package model

import (
	"math"
	"testing"

	"github.com/DPBayes/DPPVI/dataset"
	"github.com/DPBayes/DPPVI/distribution"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func meanLL(m LogisticRegression, d dataset.Dataset, q distribution.StandardParams, eps [][]float64) float64 {
	_, lls := m.ExampleGradients(d, q, eps)
	var sum float64
	for _, ll := range lls {
		sum += ll
	}
	return sum / float64(len(lls))
}

func TestExampleGradientsMatchFiniteDifferences(t *testing.T) {
	m := LogisticRegression{IncludeBias: true}
	d := dataset.Dataset{X: [][]float64{{0.5, -1}, {2, 0.3}, {-1, -1}}, Y: []float64{1, 0, 1}}
	q := distribution.StandardParams{Loc: []float64{0.2, -0.4, 0.1}, Scale: []float64{0.5, 0.8, 0.3}}
	eps := [][]float64{{0.3, -1.1, 0.7}, {-0.2, 0.4, 1.5}}

	grads, _ := m.ExampleGradients(d, q, eps)
	want := make([]float64, 2*len(q.Loc))
	for _, g := range grads {
		for j, v := range g.Vector() {
			want[j] += v / float64(len(grads))
		}
	}
	const h = 1e-6
	for j := range q.Loc {
		up, down := q.Clone(), q.Clone()
		up.Loc[j] += h
		down.Loc[j] -= h
		if fd := (meanLL(m, d, up, eps) - meanLL(m, d, down, eps)) / (2 * h); math.Abs(fd-want[j]) > 1e-6 {
			t.Errorf("ExampleGradients: loc[%d] got %v, finite difference %v", j, want[j], fd)
		}
		up, down = q.Clone(), q.Clone()
		up.Scale[j] *= math.Exp(h)
		down.Scale[j] *= math.Exp(-h)
		if fd := (meanLL(m, d, up, eps) - meanLL(m, d, down, eps)) / (2 * h); math.Abs(fd-want[len(q.Loc)+j]) > 1e-6 {
			t.Errorf("ExampleGradients: logScale[%d] got %v, finite difference %v", j, want[len(q.Loc)+j], fd)
		}
	}
}

func TestPredict(t *testing.T) {
	m := LogisticRegression{}
	q := distribution.StandardParams{Loc: []float64{2, 0}, Scale: []float64{1e-8, 1e-8}}
	got := m.Predict([][]float64{{0, 5}, {1, 0}, {-1, 0}}, q)
	want := []float64{0.5, 1 / (1 + math.Exp(-2)), 1 / (1 + math.Exp(2))}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Predict: (-want +got):\n%s", diff)
	}
	// Posterior uncertainty pulls predictions towards 0.5.
	wide := m.Predict([][]float64{{1, 0}}, distribution.StandardParams{Loc: []float64{2, 0}, Scale: []float64{3, 3}})
	if !(wide[0] > 0.5 && wide[0] < want[1]) {
		t.Errorf("Predict: with wide posterior got %v, want within (0.5, %v)", wide[0], want[1])
	}
}

func TestLogSigmoidStable(t *testing.T) {
	for _, z := range []float64{-800, -30, 0, 30, 800} {
		got := logSigmoid(z)
		if math.IsInf(got, 0) || math.IsNaN(got) || got > 0 {
			t.Errorf("logSigmoid(%v) = %v, want finite and nonpositive", z, got)
		}
	}
}

func TestNew(t *testing.T) {
	m, err := New("logistic_regression")
	if err != nil {
		t.Fatalf("New: got err %v", err)
	}
	if got := m.ParamDim(3); got != 4 {
		t.Errorf("ParamDim(3) = %d, want 4", got)
	}
	if _, err := New("bnn"); err == nil {
		t.Errorf("New(\"bnn\"): got nil err")
	}
}
