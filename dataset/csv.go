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

package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ReadCSV reads a numeric CSV file with a header line. The column at
// labelColumn holds the label, every other column is a feature. A negative
// labelColumn counts from the end.
func ReadCSV(inputFile string, labelColumn int) (Dataset, error) {
	csvFile, err := os.Open(inputFile)
	if err != nil {
		return Dataset{}, fmt.Errorf("couldn't open the csv file = %q, err = %v", inputFile, err)
	}
	defer csvFile.Close()

	d, err := DecodeCSV(csvFile, labelColumn)
	if err != nil {
		return Dataset{}, fmt.Errorf("couldn't read the csv file = %q, err = %v", inputFile, err)
	}
	return d, nil
}

// DecodeCSV is ReadCSV over an open reader.
func DecodeCSV(in io.Reader, labelColumn int) (Dataset, error) {
	r := csv.NewReader(in)
	var d Dataset
	skipLine := false
	line := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, err
		}
		line++

		// Skip the first line which contains the header.
		if !skipLine {
			skipLine = true
			continue
		}

		col := labelColumn
		if col < 0 {
			col += len(record)
		}
		if col < 0 || col >= len(record) {
			return Dataset{}, fmt.Errorf("line %d has %d columns, label column %d is out of range", line, len(record), labelColumn)
		}
		x := make([]float64, 0, len(record)-1)
		var y float64
		for i, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Dataset{}, fmt.Errorf("couldn't read column %d = %q on line %d as float64, err = %v", i, field, line, err)
			}
			if i == col {
				y = v
				continue
			}
			x = append(x, v)
		}
		d.X = append(d.X, x)
		d.Y = append(d.Y, y)
	}
	if err := d.Validate(); err != nil {
		return Dataset{}, err
	}
	return d, nil
}
