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

// Package noise contains the clipping and Gaussian noise primitives used to
// privatise client updates.
package noise

import (
	"fmt"
	"strings"

	"github.com/DPBayes/DPPVI/checks"
	"github.com/DPBayes/DPPVI/rand"
	"gonum.org/v1/gonum/floats"
)

// Kind is an enum type. Its values are the supported ways of sampling
// Gaussian noise.
type Kind int

const (
	// FloatNormal scales the stream's standard normal draws.
	FloatNormal Kind = iota
	// SecureBinomial uses the binomial sampler, which is robust against
	// privacy leaks due to artifacts of floating-point arithmetic.
	SecureBinomial
)

func (k Kind) String() string {
	switch k {
	case FloatNormal:
		return "float"
	case SecureBinomial:
		return "secure"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts the names returned by Kind.String back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "", "float":
		return FloatNormal, nil
	case "secure":
		return SecureBinomial, nil
	}
	return FloatNormal, fmt.Errorf("unknown noise kind %q", s)
}

// Mechanism clips a vector to L2 norm ClipNorm and adds i.i.d. Gaussian noise
// of standard deviation ClipNorm·NoiseMultiplier to every coordinate. When
// PreClipSigma is positive, N(0, PreClipSigma²) noise is added before
// clipping as well.
type Mechanism struct {
	ClipNorm        float64
	NoiseMultiplier float64
	PreClipSigma    float64
	Kind            Kind
}

// Validate checks the mechanism parameters.
func (m Mechanism) Validate() error {
	if err := checks.CheckClipNorm(m.ClipNorm); err != nil {
		return err
	}
	if err := checks.CheckNoiseMultiplier(m.NoiseMultiplier); err != nil {
		return err
	}
	return checks.CheckNoiseMultiplier(m.PreClipSigma, "pre_clip_sigma")
}

// StdDev returns the standard deviation of the post-clip noise.
func (m Mechanism) StdDev() float64 {
	return m.ClipNorm * m.NoiseMultiplier
}

// Noise returns a vector of dim i.i.d. N(0, StdDev()²) samples. It is all
// zero when the noise multiplier is zero.
func (m Mechanism) Noise(dim int, r *rand.Rand) []float64 {
	return gaussianVector(dim, m.StdDev(), m.Kind, r)
}

// Release is the outcome of privatising one vector.
type Release struct {
	// Clipped is the post-clip, pre-noise vector.
	Clipped []float64
	Noise   []float64
	// Released is Clipped + Noise.
	Released     []float64
	PreClipNorm  float64
	PostClipNorm float64
	NoiseNorm    float64
}

// Release privatises v. v is not modified.
func (m Mechanism) Release(v []float64, r *rand.Rand) Release {
	in := append([]float64(nil), v...)
	if m.PreClipSigma > 0 {
		floats.Add(in, gaussianVector(len(in), m.PreClipSigma, m.Kind, r))
	}
	clipped, pre := ClipL2(in, m.ClipNorm)
	noise := m.Noise(len(clipped), r)
	released := make([]float64, len(clipped))
	floats.AddTo(released, clipped, noise)
	return Release{
		Clipped:      clipped,
		Noise:        noise,
		Released:     released,
		PreClipNorm:  pre,
		PostClipNorm: floats.Norm(clipped, 2),
		NoiseNorm:    floats.Norm(noise, 2),
	}
}

func gaussianVector(dim int, sigma float64, k Kind, r *rand.Rand) []float64 {
	out := make([]float64, dim)
	if sigma == 0 {
		return out
	}
	for i := range out {
		switch k {
		case SecureBinomial:
			out[i] = addGaussian(0, sigma, r)
		default:
			out[i] = sigma * r.Normal()
		}
	}
	return out
}
