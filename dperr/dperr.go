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

// Package dperr defines the error categories reported by the PVI protocol.
//
// Errors returned by this module wrap one of the sentinels below, so callers
// can classify a failure with errors.Is.
package dperr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks an invalid or inconsistent configuration. It is
	// always reported before any training step runs.
	ErrConfiguration = errors.New("configuration error")

	// ErrNumericalInstability marks a non-positive variance met while
	// converting natural parameters to standard parameters.
	ErrNumericalInstability = errors.New("numerical instability")

	// ErrInsufficientData marks a partitioning request that cannot be served
	// by the available positive or negative examples.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrCalibrationNonConvergence marks a noise calibration that ran out of
	// iterations before reaching the requested tolerance.
	ErrCalibrationNonConvergence = errors.New("calibration did not converge")

	// ErrUnimplemented marks a recognised but unsupported combination of
	// options.
	ErrUnimplemented = errors.New("unimplemented configuration")
)

// Configurationf returns an error wrapping ErrConfiguration.
func Configurationf(format string, args ...any) error {
	return wrap(ErrConfiguration, format, args...)
}

// NumericalInstabilityf returns an error wrapping ErrNumericalInstability.
func NumericalInstabilityf(format string, args ...any) error {
	return wrap(ErrNumericalInstability, format, args...)
}

// InsufficientDataf returns an error wrapping ErrInsufficientData.
func InsufficientDataf(format string, args ...any) error {
	return wrap(ErrInsufficientData, format, args...)
}

// CalibrationNonConvergencef returns an error wrapping ErrCalibrationNonConvergence.
func CalibrationNonConvergencef(format string, args ...any) error {
	return wrap(ErrCalibrationNonConvergence, format, args...)
}

// Unimplementedf returns an error wrapping ErrUnimplemented.
func Unimplementedf(format string, args ...any) error {
	return wrap(ErrUnimplemented, format, args...)
}

func wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
