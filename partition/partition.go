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

// Package partition splits a training set into client shards with a
// requested size and class imbalance.
package partition

import (
	"math"

	"github.com/DPBayes/DPPVI/checks"
	"github.com/DPBayes/DPPVI/dataset"
	"github.com/DPBayes/DPPVI/dperr"
	"github.com/DPBayes/DPPVI/rand"
	log "github.com/golang/glog"
)

// Options configures Split.
type Options struct {
	// Clients is the number of shards M. It must be 1 or even.
	Clients int
	// SizeFactor ρ in [0, 1): half of the clients hold floor((1-ρ)N/M)
	// examples, the other half floor((1+ρ)N/M).
	SizeFactor float64
	// ClassBalanceFactor κ in [0, 1): the small clients hold a negative-class
	// share of b + (1-b)κ, where b is the global negative share.
	ClassBalanceFactor float64
}

// Result holds the shards together with their sizes and positive-class
// fractions.
type Result struct {
	Shards            []dataset.Dataset
	Sizes             []int
	PositiveFractions []float64
}

func newResult(shards []dataset.Dataset) Result {
	r := Result{Shards: shards}
	for _, s := range shards {
		r.Sizes = append(r.Sizes, s.Len())
		r.PositiveFractions = append(r.PositiveFractions, s.PositiveFraction())
	}
	return r
}

// Split partitions ds into opt.Clients shards. The first M/2 shards are the
// small clients, filled with positives then negatives taken in order from the
// front of ds and shuffled. The remaining examples are shuffled within each
// class and dealt, stratified by class, to the M/2 big clients; examples left
// over after the big clients are full are dropped. The result depends only on
// ds, opt and the state of r.
func Split(ds dataset.Dataset, opt Options, r *rand.Rand) (Result, error) {
	if err := checks.CheckPositiveInt(opt.Clients, "clients"); err != nil {
		return Result{}, dperr.Configurationf("%v", err)
	}
	if err := checks.CheckUnitInterval(opt.SizeFactor, "data_bal_rho"); err != nil {
		return Result{}, dperr.Configurationf("%v", err)
	}
	if err := checks.CheckUnitInterval(opt.ClassBalanceFactor, "data_bal_kappa"); err != nil {
		return Result{}, dperr.Configurationf("%v", err)
	}
	if opt.Clients == 1 {
		return newResult([]dataset.Dataset{ds}), nil
	}
	if opt.Clients%2 != 0 {
		return Result{}, dperr.Configurationf("number of clients %d must be even", opt.Clients)
	}

	n, m := ds.Len(), opt.Clients
	if n < m {
		return Result{}, dperr.InsufficientDataf("%d examples cannot fill %d clients", n, m)
	}
	half := m / 2
	smallSize := int(math.Floor((1 - opt.SizeFactor) * float64(n) / float64(m)))
	bigSize := int(math.Floor((1 + opt.SizeFactor) * float64(n) / float64(m)))

	var pos, neg []int
	for i, y := range ds.Y {
		if y > 0 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	negShare := float64(len(neg)) / float64(n)
	smallNegShare := negShare + (1-negShare)*opt.ClassBalanceFactor
	smallNeg := int(math.Floor(float64(smallSize) * smallNegShare))
	smallPos := smallSize - smallNeg

	if smallNeg*half > len(neg) {
		return Result{}, dperr.InsufficientDataf("not enough negative examples to fill the small clients: need %d, have %d (size factor %v, class balance factor %v)", smallNeg*half, len(neg), opt.SizeFactor, opt.ClassBalanceFactor)
	}
	if smallPos*half > len(pos) {
		return Result{}, dperr.InsufficientDataf("not enough positive examples to fill the small clients: need %d, have %d (size factor %v, class balance factor %v)", smallPos*half, len(pos), opt.SizeFactor, opt.ClassBalanceFactor)
	}
	if remaining := n - smallSize*half; bigSize*half > remaining {
		return Result{}, dperr.InsufficientDataf("not enough examples to fill the big clients: need %d, have %d", bigSize*half, remaining)
	}

	shards := make([]dataset.Dataset, 0, m)
	for i := 0; i < half; i++ {
		idx := append(append([]int(nil), pos[:smallPos]...), neg[:smallNeg]...)
		pos, neg = pos[smallPos:], neg[smallNeg:]
		shards = append(shards, ds.Subset(shuffled(idx, r)))
	}

	rest := interleave(shuffled(pos, r), shuffled(neg, r))
	for i := 0; i < half; i++ {
		shards = append(shards, ds.Subset(shuffled(rest[:bigSize], r)))
		rest = rest[bigSize:]
	}
	if len(rest) > 0 {
		log.V(1).Infof("partition.Split: dropped %d examples left after filling %d big clients", len(rest), half)
	}
	return newResult(shards), nil
}

// RoundRobin shuffles ds and deals it to m shards in turn, so shard sizes
// differ by at most one.
func RoundRobin(ds dataset.Dataset, m int, r *rand.Rand) (Result, error) {
	if err := checks.CheckPositiveInt(m, "clients"); err != nil {
		return Result{}, dperr.Configurationf("%v", err)
	}
	if ds.Len() < m {
		return Result{}, dperr.InsufficientDataf("%d examples cannot fill %d clients", ds.Len(), m)
	}
	idx := make([][]int, m)
	for k, i := range r.Perm(ds.Len()) {
		idx[k%m] = append(idx[k%m], i)
	}
	shards := make([]dataset.Dataset, m)
	for i := range idx {
		shards[i] = ds.Subset(idx[i])
	}
	return newResult(shards), nil
}

func shuffled(idx []int, r *rand.Rand) []int {
	out := make([]int, len(idx))
	for i, j := range r.Perm(len(idx)) {
		out[i] = idx[j]
	}
	return out
}

// interleave merges pos and neg so that every prefix of length k holds
// floor(k·|pos|/total) positives. Consecutive chunks of the result then have
// positive counts within one of each other.
func interleave(pos, neg []int) []int {
	total := len(pos) + len(neg)
	out := make([]int, 0, total)
	p, q := 0, 0
	for k := 1; k <= total; k++ {
		if p < len(pos) && p < k*len(pos)/total {
			out = append(out, pos[p])
			p++
		} else {
			out = append(out, neg[q])
			q++
		}
	}
	return out
}
