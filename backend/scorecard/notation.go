// Copyright (c) 2026 TTBT Enterprises LLC
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

package scorecard

import (
	"fmt"
	"strings"
)

var outcomeCodes = map[Outcome]string{
	OutcomeSingle:            "S",
	OutcomeDouble:            "D",
	OutcomeTriple:            "T",
	OutcomeHomeRun:           "HR",
	OutcomeWalk:              "W",
	OutcomeHitByPitch:        "HP",
	OutcomeStrikeoutSwinging: "K",
	OutcomeStrikeoutLooking:  "Kc",
	OutcomeGroundOut:         "G",
	OutcomeFlyOut:            "F",
	OutcomeSacrificeFly:      "SF",
	OutcomeReachOnError:      "E",
	OutcomeFieldersChoice:    "FC",
}

var outcomeVerbs = map[Outcome]string{
	OutcomeSingle:            "singles",
	OutcomeDouble:            "doubles",
	OutcomeTriple:            "triples",
	OutcomeHomeRun:           "homers",
	OutcomeWalk:              "walks",
	OutcomeHitByPitch:        "is hit by a pitch",
	OutcomeStrikeoutSwinging: "strikes out swinging",
	OutcomeStrikeoutLooking:  "strikes out looking",
	OutcomeGroundOut:         "grounds out",
	OutcomeFlyOut:            "flies out",
	OutcomeSacrificeFly:      "hits a sacrifice fly",
	OutcomeReachOnError:      "reaches on an error",
	OutcomeFieldersChoice:    "reaches on a fielder's choice",
}

var baseCodes = map[Base]string{
	BaseBatter: "B",
	BaseFirst:  "1",
	BaseSecond: "2",
	BaseThird:  "3",
	BaseHome:   "H",
	BaseOut:    "X",
}

var actionCodes = map[RunnerAction]string{
	ActionStolenBase:     "SB",
	ActionCaughtStealing: "CS",
	ActionPickoff:        "PO",
	ActionAdvance:        "ADV",
}

var roleCodes = map[SubRole]string{
	RoleBatter:  "SUBB",
	RoleRunner:  "SUBR",
	RolePitcher: "SUBP",
	RoleFielder: "SUBF",
}

// Code returns the scorebook abbreviation of o, or "?" if o is unknown.
func (o Outcome) Code() string {
	if c, ok := outcomeCodes[o]; ok {
		return c
	}
	return "?"
}

func baseCode(b Base) string {
	if c, ok := baseCodes[b]; ok {
		return c
	}
	return "?"
}

// FormatAdvances renders advances as start-end pairs joined by ';', in the
// order given.
func FormatAdvances(advances []RunnerAdvance) string {
	parts := make([]string, 0, len(advances))
	for _, a := range advances {
		parts = append(parts, baseCode(a.Start)+"-"+baseCode(a.End))
	}
	return strings.Join(parts, ";")
}

// Notation returns the compact scorebook string for in.
func Notation(in Input) string {
	var f formatter
	if in == nil || in.Accept(&f) != nil {
		return ""
	}
	return f.notation
}

// Summary returns a one-line human description of in.
func Summary(in Input) string {
	var f formatter
	if in == nil || in.Accept(&f) != nil {
		return ""
	}
	return f.summary
}

type formatter struct {
	notation string
	summary  string
}

func (f *formatter) VisitAtBat(in *AtBatInput) error {
	parts := []string{in.Result.Code()}
	if len(in.Advances) > 0 {
		parts = append(parts, FormatAdvances(in.Advances))
	}
	f.notation = strings.Join(parts, ";")

	verb, ok := outcomeVerbs[in.Result]
	if !ok {
		verb = "completes the plate appearance"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s.", playerName(in.Batter, "Batter"), verb)
	if n := runsHome(in.Advances); n == 1 {
		sb.WriteString(" 1 run scores.")
	} else if n > 1 {
		fmt.Fprintf(&sb, " %d runs score.", n)
	}
	f.summary = sb.String()
	return nil
}

func (f *formatter) VisitRunner(in *RunnerInput) error {
	prefix, ok := actionCodes[in.Action]
	if !ok {
		prefix = actionCodes[ActionAdvance]
	}
	f.notation = prefix + ";" + baseCode(in.From) + "-" + baseCode(in.To)

	name := playerName(in.Runner, "Runner")
	switch {
	case in.To == BaseOut && in.Action == ActionCaughtStealing:
		f.summary = fmt.Sprintf("%s is caught stealing.", name)
	case in.To == BaseOut && in.Action == ActionPickoff:
		f.summary = fmt.Sprintf("%s is picked off %s.", name, in.From)
	case in.To == BaseOut:
		f.summary = fmt.Sprintf("%s is out on the bases.", name)
	case in.To == BaseHome && in.Action == ActionStolenBase:
		f.summary = fmt.Sprintf("%s steals home.", name)
	case in.To == BaseHome:
		f.summary = fmt.Sprintf("%s scores.", name)
	case in.Action == ActionStolenBase:
		f.summary = fmt.Sprintf("%s steals %s.", name, in.To)
	default:
		f.summary = fmt.Sprintf("%s advances to %s.", name, in.To)
	}
	return nil
}

func (f *formatter) VisitSubstitution(in *SubstitutionInput) error {
	prefix, ok := roleCodes[in.Role]
	if !ok {
		prefix = "SUB"
	}
	f.notation = prefix
	if in.Position != "" {
		f.notation += ";" + in.Position
	}

	incoming := playerName(in.Incoming, "New player")
	var sb strings.Builder
	if in.Outgoing != nil {
		fmt.Fprintf(&sb, "%s replaces %s", incoming, playerName(*in.Outgoing, "player"))
	} else {
		fmt.Fprintf(&sb, "%s enters", incoming)
	}
	switch in.Role {
	case RoleBatter:
		sb.WriteString(" as a pinch hitter")
	case RoleRunner:
		sb.WriteString(" as a pinch runner")
	case RolePitcher:
		sb.WriteString(" on the mound")
	}
	if in.Position != "" {
		fmt.Fprintf(&sb, " at %s", in.Position)
	}
	sb.WriteString(".")
	f.summary = sb.String()
	return nil
}

func playerName(r RunnerState, fallback string) string {
	if r.Name != "" {
		return r.Name
	}
	if r.ID != "" {
		return r.ID
	}
	return fallback
}

func runsHome(advances []RunnerAdvance) int {
	n := 0
	for _, a := range advances {
		if a.End == BaseHome {
			n++
		}
	}
	return n
}
