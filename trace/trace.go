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

// Package trace stores the history of a run: per-round metrics, posterior
// snapshots and per-client privacy diagnostics. Histories are encoded as
// deterministic CBOR inside a zstd stream, so equal histories produce equal
// files.
package trace

import (
	"fmt"
	"io"
	"os"

	"github.com/DPBayes/DPPVI/client"
	"github.com/DPBayes/DPPVI/evaluate"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Counts are the confusion counts of one evaluation at each threshold.
type Counts struct {
	Thresholds []float64 `cbor:"thresholds,omitempty"`
	TP         []int     `cbor:"tp,omitempty"`
	FP         []int     `cbor:"fp,omitempty"`
	TN         []int     `cbor:"tn,omitempty"`
	FN         []int     `cbor:"fn,omitempty"`
}

// Round is the record of one global round.
type Round struct {
	Iteration      int     `cbor:"iteration"`
	Communications int     `cbor:"communications"`
	UpdateNorm     float64 `cbor:"update_norm"`

	TrainAccuracy float64 `cbor:"train_accuracy"`
	TrainLogLik   float64 `cbor:"train_loglik"`
	ValidAccuracy float64 `cbor:"valid_accuracy"`
	ValidLogLik   float64 `cbor:"valid_loglik"`
	ValidCounts   *Counts `cbor:"valid_counts,omitempty"`

	// Loc and Scale snapshot the posterior when parameter tracking is on.
	Loc   []float64 `cbor:"loc,omitempty"`
	Scale []float64 `cbor:"scale,omitempty"`
}

// ClientTrace holds the diagnostics one client accumulated over a run.
type ClientTrace struct {
	ID            int         `cbor:"id"`
	Mode          string      `cbor:"mode"`
	PreClipNorms  []float64   `cbor:"pre_clip_norms,omitempty"`
	PostClipNorms []float64   `cbor:"post_clip_norms,omitempty"`
	NoiseNorms    []float64   `cbor:"noise_norms,omitempty"`
	ELBO          [][]float64 `cbor:"elbo,omitempty"`
	Skipped       []int       `cbor:"skipped,omitempty"`
}

// History is the full record of a run.
type History struct {
	Seed    uint64        `cbor:"seed"`
	Server  string        `cbor:"server"`
	Sigma   float64       `cbor:"sigma"`
	Rounds  []Round       `cbor:"rounds"`
	Clients []ClientTrace `cbor:"clients"`
}

// FromClient collects the diagnostics of c.
func FromClient(c *client.Client) ClientTrace {
	ct := ClientTrace{
		ID:            c.ID,
		Mode:          c.Config().Mode.String(),
		PreClipNorms:  append([]float64(nil), c.PreClipNorms...),
		PostClipNorms: append([]float64(nil), c.PostClipNorms...),
		NoiseNorms:    append([]float64(nil), c.NoiseNorms...),
	}
	for _, rl := range c.Log {
		ct.ELBO = append(ct.ELBO, append([]float64(nil), rl.ELBO...))
		ct.Skipped = append(ct.Skipped, rl.Skipped)
	}
	return ct
}

// CountsFrom converts evaluation counts; it returns nil for nil.
func CountsFrom(pn *evaluate.PosNeg) *Counts {
	if pn == nil {
		return nil
	}
	return &Counts{Thresholds: pn.Thresholds, TP: pn.TP, FP: pn.FP, TN: pn.TN, FN: pn.FN}
}

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
// smallest encodings, no indefinite-length items.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("trace: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("trace: CBOR decoder initialization failed: " + err.Error())
	}
}

// Write encodes h to w.
func Write(w io.Writer, h History) error {
	data, err := encMode.Marshal(h)
	if err != nil {
		return fmt.Errorf("trace: encoding history: %w", err)
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return fmt.Errorf("trace: compressing history: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("trace: compressing history: %w", err)
	}
	return nil
}

// Read decodes a history written by Write.
func Read(r io.Reader) (History, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return History{}, fmt.Errorf("trace: %w", err)
	}
	defer zr.Close()
	var h History
	if err := decMode.NewDecoder(zr).Decode(&h); err != nil {
		return History{}, fmt.Errorf("trace: decoding history: %w", err)
	}
	return h, nil
}

// WriteFile writes h to the named file, creating or truncating it.
func WriteFile(path string, h History) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("trace: %w", cerr)
		}
	}()
	return Write(f, h)
}

// ReadFile reads a history from the named file.
func ReadFile(path string) (History, error) {
	f, err := os.Open(path)
	if err != nil {
		return History{}, fmt.Errorf("trace: %w", err)
	}
	defer f.Close()
	return Read(f)
}
