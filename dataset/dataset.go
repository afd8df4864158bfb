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

// Package dataset provides the per-client data shard type and the minibatch
// samplers used by local optimisation.
package dataset

import (
	"fmt"

	"github.com/DPBayes/DPPVI/dperr"
	"github.com/DPBayes/DPPVI/rand"
)

// Dataset is a pair of equal-length feature and label containers. Rows of X
// are examples.
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len returns the number of examples.
func (d Dataset) Len() int {
	return len(d.Y)
}

// Dim returns the number of features, or 0 for an empty dataset.
func (d Dataset) Dim() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// Validate checks that X and Y have the same length and that all rows have
// the same width.
func (d Dataset) Validate() error {
	if len(d.X) != len(d.Y) {
		return dperr.Configurationf("dataset has %d feature rows and %d labels", len(d.X), len(d.Y))
	}
	for i, row := range d.X {
		if len(row) != d.Dim() {
			return dperr.Configurationf("dataset row %d has %d features, want %d", i, len(row), d.Dim())
		}
	}
	return nil
}

// Subset returns the examples at idx, in that order. Rows are shared with d.
func (d Dataset) Subset(idx []int) Dataset {
	out := Dataset{X: make([][]float64, len(idx)), Y: make([]float64, len(idx))}
	for i, j := range idx {
		out.X[i] = d.X[j]
		out.Y[i] = d.Y[j]
	}
	return out
}

// Slice returns examples [from, to).
func (d Dataset) Slice(from, to int) Dataset {
	return Dataset{X: d.X[from:to], Y: d.Y[from:to]}
}

// Concat joins datasets in order.
func Concat(ds ...Dataset) Dataset {
	var out Dataset
	for _, d := range ds {
		out.X = append(out.X, d.X...)
		out.Y = append(out.Y, d.Y...)
	}
	return out
}

// PositiveFraction returns the share of examples with a label > 0.
func (d Dataset) PositiveFraction() float64 {
	if d.Len() == 0 {
		return 0
	}
	pos := 0
	for _, y := range d.Y {
		if y > 0 {
			pos++
		}
	}
	return float64(pos) / float64(d.Len())
}

// PoissonSample includes each example independently with probability q. The
// result may be empty.
func PoissonSample(d Dataset, q float64, r *rand.Rand) Dataset {
	var idx []int
	for i := 0; i < d.Len(); i++ {
		if r.Bernoulli(q) {
			idx = append(idx, i)
		}
	}
	return d.Subset(idx)
}

// FixedSample draws min(size, d.Len()) examples without replacement.
func FixedSample(d Dataset, size int, r *rand.Rand) Dataset {
	if size > d.Len() {
		size = d.Len()
	}
	return d.Subset(r.Perm(d.Len())[:size])
}

// EpochBatches shuffles d and cuts it into consecutive batches of batchSize;
// the last batch holds the remainder.
func EpochBatches(d Dataset, batchSize int, r *rand.Rand) []Dataset {
	if batchSize <= 0 {
		panic(fmt.Sprintf("dataset: batch size %d must be positive", batchSize))
	}
	perm := r.Perm(d.Len())
	var batches []Dataset
	for from := 0; from < len(perm); from += batchSize {
		to := min(from+batchSize, len(perm))
		batches = append(batches, d.Subset(perm[from:to]))
	}
	return batches
}

// DisjointParts shuffles d and splits it into k parts whose sizes differ by at
// most one. Parts are empty when k exceeds d.Len().
func DisjointParts(d Dataset, k int, r *rand.Rand) []Dataset {
	if k <= 0 {
		panic(fmt.Sprintf("dataset: part count %d must be positive", k))
	}
	perm := r.Perm(d.Len())
	parts := make([]Dataset, k)
	from := 0
	for i := 0; i < k; i++ {
		size := d.Len() / k
		if i < d.Len()%k {
			size++
		}
		parts[i] = d.Subset(perm[from : from+size])
		from += size
	}
	return parts
}

// KFold returns the n-th of k contiguous, unshuffled folds as validation
// data and the rest as training data. The first d.Len()%k folds hold one
// extra example.
func KFold(d Dataset, k, n int) (train, valid Dataset, err error) {
	if k < 2 || n < 0 || n >= k {
		return Dataset{}, Dataset{}, dperr.Configurationf("k-fold split %d of %d is invalid", n, k)
	}
	if d.Len() < k {
		return Dataset{}, Dataset{}, dperr.InsufficientDataf("%d examples cannot form %d folds", d.Len(), k)
	}
	from := 0
	for i := 0; i < n; i++ {
		from += foldSize(d.Len(), k, i)
	}
	to := from + foldSize(d.Len(), k, n)
	train = Concat(d.Slice(0, from), d.Slice(to, d.Len()))
	return train, d.Slice(from, to), nil
}

func foldSize(n, k, i int) int {
	if i < n%k {
		return n/k + 1
	}
	return n / k
}
