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

package server

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by Tick once a server has run its last round.
var ErrStopped = errors.New("server is stopped")

// State is the lifecycle state of a server.
type State int

const (
	// Running servers accept Tick calls.
	Running State = iota
	// Stopped is terminal: the server has reached its iteration limit.
	Stopped
)

var stateNames = map[State]string{
	Running: "Running",
	Stopped: "Stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Discipline is an enum type. Its values are the server aggregation orders and
// the single-round baselines.
type Discipline int

const (
	// Sequential folds each client delta before the next client runs.
	Sequential Discipline = iota
	// Synchronous runs every client against the same posterior and folds the
	// deltas afterwards.
	Synchronous
	// BCMSame is the committee-machine baseline for clients that all see the
	// same data distribution: each client's cavity is the prior raised to 1/M.
	BCMSame
	// BCMSplit is the committee-machine baseline for split data: each
	// client's cavity is the prior.
	BCMSplit
	// GlobalVI trains one client on the concatenation of all shards.
	GlobalVI
)

var disciplineNames = map[Discipline]string{
	Sequential:  "sequential",
	Synchronous: "synchronous",
	BCMSame:     "bcm_same",
	BCMSplit:    "bcm_split",
	GlobalVI:    "global_vi",
}

func (d Discipline) String() string {
	if name, ok := disciplineNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Discipline(%d)", int(d))
}

// ParseDiscipline converts a server name to a Discipline.
func ParseDiscipline(s string) (Discipline, error) {
	for d, name := range disciplineNames {
		if name == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown server %q", s)
}
