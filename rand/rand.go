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

// Package rand provides the explicit random streams used by a PVI run.
//
// A run owns one root stream; every component that needs randomness (the
// partitioner, each client's minibatch sampler, Monte-Carlo ELBO estimates and
// the noise generator) receives its own child stream obtained with Split. No
// process-wide random state is consulted, so two runs with the same seed
// produce the same trajectory.
package rand

import (
	"bufio"
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math"
	"math/bits"
	"sync"

	log "github.com/golang/glog"
	xrand "golang.org/x/exp/rand"
)

var (
	randBufLock sync.Mutex
	randBuf     io.Reader = bufio.NewReaderSize(cryptorand.Reader, 65536)
)

func readRandBuf(b []byte) (int, error) {
	randBufLock.Lock()
	defer randBufLock.Unlock()
	return io.ReadFull(randBuf, b)
}

// Rand is a stream of random numbers. It is not safe for concurrent use;
// concurrent callers must each hold a stream obtained with Split.
type Rand struct {
	src    xrand.Source
	r      *xrand.Rand
	secure bool
}

// New returns a deterministic stream seeded with seed. The underlying source
// is the PCG generator that gonum's distributions consume.
func New(seed uint64) *Rand {
	src := xrand.NewSource(seed)
	return &Rand{src: src, r: xrand.New(src)}
}

// NewSecure returns a stream backed by crypto/rand. It cannot be seeded and
// is meant for noise generation outside of reproducible experiments.
func NewSecure() *Rand {
	src := secureSource{}
	return &Rand{src: src, r: xrand.New(src), secure: true}
}

// Source returns the underlying source, for use with gonum's distuv types.
func (r *Rand) Source() xrand.Source {
	return r.src
}

// Split returns a new stream whose seed is drawn from r. The child is
// independent of any later draws from r.
func (r *Rand) Split() *Rand {
	if r.secure {
		return NewSecure()
	}
	return New(r.r.Uint64())
}

// Normal returns a normally distributed float with mean 0 and standard deviation 1.
func (r *Rand) Normal() float64 {
	return r.r.NormFloat64()
}

// Normals fills a new slice of length n with standard normal samples.
func (r *Rand) Normals(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r.r.NormFloat64()
	}
	return out
}

// Uniform returns a float64 from [0, 1).
func (r *Rand) Uniform() float64 {
	return r.r.Float64()
}

// Bernoulli returns true with probability p.
func (r *Rand) Bernoulli(p float64) bool {
	return r.r.Float64() < p
}

// Intn returns an integer from {0,...,n-1} uniformly at random. The value of
// n must be positive.
func (r *Rand) Intn(n int) int {
	return r.r.Intn(n)
}

// Perm returns a uniformly random permutation of {0,...,n-1}.
func (r *Rand) Perm(n int) []int {
	return r.r.Perm(n)
}

// Uint64 returns a uniformly random uint64.
func (r *Rand) Uint64() uint64 {
	return r.r.Uint64()
}

// Boolean returns true or false with equal probability.
func (r *Rand) Boolean() bool {
	return r.r.Uint64()&1 == 1
}

// I63n returns an integer from the set {0,...,n-1} uniformly at random.
// The value of n must be positive.
func (r *Rand) I63n(n int64) int64 {
	largestMultipleOfN := (math.MaxInt64 / n) * n
	for {
		// Draw random 64 bit sequence and set sign bit to 0.
		v := int64(r.r.Uint64()) & 0x7fffffffffffffff
		if v < largestMultipleOfN {
			return v % n
		}
	}
}

// Geometric returns a float64 that counts the number of Bernoulli trials until
// the first success for a success probability of 0.5.
func (r *Rand) Geometric() float64 {
	// 1 plus the number of leading zeros from an infinite stream of random bits
	// follows the desired geometric distribution.
	b := 1
	for {
		u := r.r.Uint64()
		b += bits.LeadingZeros64(u)
		if u != 0 {
			return float64(b)
		}
	}
}

// secureSource implements a cryptographically secure xrand.Source.
type secureSource struct{}

// Uint64 returns a uniformly random uint64.
func (secureSource) Uint64() uint64 {
	var b [8]uint8
	if _, err := readRandBuf(b[:]); err != nil {
		log.Fatalf("out of randomness, should never happen: %v", err)
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Seed is a no-op.
func (secureSource) Seed(_ uint64) {}
