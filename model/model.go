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

// Package model defines the capability a statistical model must offer to be
// trained with PVI, and provides Bayesian logistic regression.
package model

import (
	"fmt"
	"strings"

	"github.com/DPBayes/DPPVI/dataset"
	"github.com/DPBayes/DPPVI/distribution"
)

// Gradient is the gradient of an example's expected log-likelihood with
// respect to the variational location and log-scale.
type Gradient struct {
	Loc      []float64
	LogScale []float64
}

// Vector returns Loc followed by LogScale.
func (g Gradient) Vector() []float64 {
	v := make([]float64, 0, 2*len(g.Loc))
	v = append(v, g.Loc...)
	return append(v, g.LogScale...)
}

// Model is the contract between the PVI core and a model family.
type Model interface {
	// ParamDim returns the number of model parameters for inputs with
	// featureDim features.
	ParamDim(featureDim int) int
	// ExampleGradients returns, for every example of batch, the
	// reparameterised gradient of its expected log-likelihood under q and the
	// Monte-Carlo estimate of that log-likelihood. eps holds one standard
	// normal vector per Monte-Carlo sample.
	ExampleGradients(batch dataset.Dataset, q distribution.StandardParams, eps [][]float64) ([]Gradient, []float64)
	// Predict returns the predictive mean for every row of x.
	Predict(x [][]float64, q distribution.StandardParams) []float64
}

// New returns the model registered under name.
func New(name string) (Model, error) {
	switch strings.ToLower(name) {
	case "logistic_regression", "logistic":
		return LogisticRegression{IncludeBias: true}, nil
	case "logistic_regression_nobias":
		return LogisticRegression{}, nil
	}
	return nil, fmt.Errorf("unknown model %q", name)
}
