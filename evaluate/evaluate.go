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

// Package evaluate computes the predictive metrics reported after every
// global round.
package evaluate

import (
	"math"
	"sort"

	"github.com/DPBayes/DPPVI/dataset"
	"github.com/DPBayes/DPPVI/distribution"
	"github.com/DPBayes/DPPVI/dperr"
	"github.com/DPBayes/DPPVI/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// probEpsilon keeps log-probabilities of saturated predictions finite.
const probEpsilon = 1e-12

// PosNeg holds confusion counts of binary predictions at each threshold. A
// prediction is positive when its probability exceeds the threshold.
type PosNeg struct {
	Thresholds     []float64
	TP, FP, TN, FN []int
}

// Metrics are the classification metrics of one posterior on one dataset.
type Metrics struct {
	Accuracy float64
	// LogLik is the mean Bernoulli log-likelihood of the labels.
	LogLik float64
	// PosNeg, BalancedAccuracy, F1 and AveragePrecision are only set when the
	// labels contain both classes.
	PosNeg           *PosNeg
	BalancedAccuracy float64
	F1               float64
	AveragePrecision float64
}

// Classification evaluates the predictive distribution of q on d. Confusion
// counts are computed at nPoints thresholds spaced evenly on [0, 1], or at
// 0.5 when nPoints is 1.
func Classification(m model.Model, q distribution.StandardParams, d dataset.Dataset, nPoints int) (Metrics, error) {
	if d.Len() == 0 {
		return Metrics{}, dperr.InsufficientDataf("cannot evaluate on an empty dataset")
	}
	return FromProbabilities(d.Y, m.Predict(d.X, q), nPoints)
}

// FromProbabilities computes Metrics from labels in {0, 1} and predicted
// probabilities of the positive class.
func FromProbabilities(y, p []float64, nPoints int) (Metrics, error) {
	if len(y) != len(p) {
		return Metrics{}, dperr.Configurationf("%d labels and %d predictions", len(y), len(p))
	}
	if len(y) == 0 {
		return Metrics{}, dperr.InsufficientDataf("cannot evaluate on an empty dataset")
	}
	if nPoints < 1 {
		return Metrics{}, dperr.Configurationf("number of threshold points is %d, must be strictly positive", nPoints)
	}
	correct := make([]float64, len(y))
	ll := make([]float64, len(y))
	var positives int
	for i, yi := range y {
		if (p[i] > 0.5) == (yi == 1) {
			correct[i] = 1
		}
		pi := math.Min(math.Max(p[i], probEpsilon), 1-probEpsilon)
		if yi == 1 {
			ll[i] = math.Log(pi)
			positives++
		} else {
			ll[i] = math.Log1p(-pi)
		}
	}
	res := Metrics{
		Accuracy: stat.Mean(correct, nil),
		LogLik:   stat.Mean(ll, nil),
	}
	if positives == 0 || positives == len(y) {
		return res, nil
	}

	thresholds := []float64{0.5}
	if nPoints > 1 {
		thresholds = floats.Span(make([]float64, nPoints), 0, 1)
	}
	res.PosNeg = posNeg(y, p, thresholds)
	tp, fp, tn, fn := confusion(y, p, 0.5)
	res.BalancedAccuracy = (float64(tp)/float64(tp+fn) + float64(tn)/float64(tn+fp)) / 2
	if denom := 2*tp + fp + fn; denom > 0 {
		res.F1 = float64(2*tp) / float64(denom)
	}
	res.AveragePrecision = averagePrecision(y, p, positives)
	return res, nil
}

func confusion(y, p []float64, thr float64) (tp, fp, tn, fn int) {
	for i, yi := range y {
		switch pos := p[i] > thr; {
		case pos && yi == 1:
			tp++
		case pos:
			fp++
		case yi == 1:
			fn++
		default:
			tn++
		}
	}
	return tp, fp, tn, fn
}

func posNeg(y, p, thresholds []float64) *PosNeg {
	n := len(thresholds)
	pn := &PosNeg{
		Thresholds: thresholds,
		TP:         make([]int, n),
		FP:         make([]int, n),
		TN:         make([]int, n),
		FN:         make([]int, n),
	}
	for i, thr := range thresholds {
		pn.TP[i], pn.FP[i], pn.TN[i], pn.FN[i] = confusion(y, p, thr)
	}
	return pn
}

// averagePrecision is Σ_k (R_k - R_{k-1}) P_k over the distinct scores in
// decreasing order.
func averagePrecision(y, p []float64, positives int) float64 {
	idx := make([]int, len(p))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] > p[idx[b]] })
	var ap, prevRecall float64
	var tp, seen int
	for k := 0; k < len(idx); {
		score := p[idx[k]]
		for ; k < len(idx) && p[idx[k]] == score; k++ {
			seen++
			if y[idx[k]] == 1 {
				tp++
			}
		}
		recall := float64(tp) / float64(positives)
		ap += (recall - prevRecall) * float64(tp) / float64(seen)
		prevRecall = recall
	}
	return ap
}

// Regression returns the mean squared error of the predictive mean of q on d.
func Regression(m model.Model, q distribution.StandardParams, d dataset.Dataset) (float64, error) {
	if d.Len() == 0 {
		return 0, dperr.InsufficientDataf("cannot evaluate on an empty dataset")
	}
	pred := m.Predict(d.X, q)
	floats.Sub(pred, d.Y)
	floats.Mul(pred, pred)
	return stat.Mean(pred, nil), nil
}
