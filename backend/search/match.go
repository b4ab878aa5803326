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

package search

import (
	"slices"
	"strconv"
	"strings"

	"github.com/ttbt-io/scorecard/backend/scorecard"
	"github.com/ttbt-io/scorecard/backend/syncqueue"
)

// EventKeys are the filter keys MatchEvent understands.
var EventKeys = []string{"inning", "half", "type", "result", "batter", "player", "seq", "sync", "notation", "by", "device", "date", "outs"}

// MutationKeys are the filter keys MatchMutation understands.
var MutationKeys = []string{"status", "type", "game", "account", "event", "attempts", "seq"}

// UnknownKeys returns the filter keys of q that are not in known.
func UnknownKeys(q Query, known []string) []string {
	var out []string
	for _, f := range q.Filters {
		if !slices.Contains(known, f.Key) && !slices.Contains(out, f.Key) {
			out = append(out, f.Key)
		}
	}
	return out
}

// MatchEvent reports whether e satisfies every filter and free-text term.
// Free text matches the notation, the summary or a player's name.
func MatchEvent(q Query, e scorecard.ScoreEvent) bool {
	for _, f := range q.Filters {
		if !matchEventFilter(f, e) {
			return false
		}
	}
	for _, term := range q.FreeText {
		term = strings.ToLower(term)
		hit := strings.Contains(strings.ToLower(e.Notation), term) || strings.Contains(strings.ToLower(e.Summary), term)
		for _, p := range players(e.Input) {
			hit = hit || strings.Contains(strings.ToLower(p.Name), term)
		}
		if !hit {
			return false
		}
	}
	return true
}

func matchEventFilter(f Filter, e scorecard.ScoreEvent) bool {
	switch f.Key {
	case "inning":
		return compareInt(f, int64(e.Inning))
	case "outs":
		return compareInt(f, int64(e.OutsAfter))
	case "seq":
		return compareInt(f, e.Sequence)
	case "half":
		return equalFold(f, string(e.Half))
	case "type":
		return e.Input != nil && equalFold(f, string(e.Input.Kind()))
	case "result":
		return equalFold(f, resultOf(e.Input))
	case "batter":
		in, ok := e.Input.(*scorecard.AtBatInput)
		return ok && matchPlayer(f, in.Batter)
	case "player":
		return slices.ContainsFunc(players(e.Input), func(p scorecard.RunnerState) bool { return matchPlayer(f, p) })
	case "sync":
		return equalFold(f, string(e.SyncStatus))
	case "notation":
		return equalFold(f, e.Notation)
	case "by":
		return equalFold(f, e.CreatedBy)
	case "device":
		return equalFold(f, e.DeviceID)
	case "date":
		if e.CreatedAt.IsZero() {
			return false
		}
		return compareText(f, e.CreatedAt.UTC().Format("2006-01-02"))
	}
	return false
}

// MatchMutation reports whether m satisfies every filter. Free text matches
// the last error.
func MatchMutation(q Query, m syncqueue.Mutation) bool {
	for _, f := range q.Filters {
		var ok bool
		switch f.Key {
		case "status":
			ok = equalFold(f, string(m.Status))
		case "type":
			ok = equalFold(f, string(m.Type))
		case "game":
			ok = equalFold(f, m.GameID)
		case "account":
			ok = equalFold(f, m.AccountID)
		case "event":
			ok = equalFold(f, m.EventID) || (m.ServerID != "" && equalFold(f, m.ServerID))
		case "attempts":
			ok = compareInt(f, int64(m.Attempts))
		case "seq":
			ok = compareInt(f, m.Sequence)
		}
		if !ok {
			return false
		}
	}
	for _, term := range q.FreeText {
		if !strings.Contains(strings.ToLower(m.LastError), strings.ToLower(term)) {
			return false
		}
	}
	return true
}

func resultOf(in scorecard.Input) string {
	switch in := in.(type) {
	case *scorecard.AtBatInput:
		return string(in.Result)
	case *scorecard.RunnerInput:
		return string(in.Action)
	case *scorecard.SubstitutionInput:
		return string(in.Role)
	}
	return ""
}

// players lists everyone an input involves, batter first.
func players(in scorecard.Input) []scorecard.RunnerState {
	var out []scorecard.RunnerState
	add := func(r scorecard.RunnerState) {
		if r.ID != "" && !slices.ContainsFunc(out, r.Same) {
			out = append(out, r)
		}
	}
	switch in := in.(type) {
	case *scorecard.AtBatInput:
		add(in.Batter)
		for _, a := range in.Advances {
			add(a.Runner)
		}
	case *scorecard.RunnerInput:
		add(in.Runner)
	case *scorecard.SubstitutionInput:
		add(in.Incoming)
		if in.Outgoing != nil {
			add(*in.Outgoing)
		}
	}
	return out
}

func matchPlayer(f Filter, p scorecard.RunnerState) bool {
	return equalFold(f, p.ID) || (p.Name != "" && equalFold(f, p.Name))
}

// equalFold handles OpEqual only; ordering a name is meaningless.
func equalFold(f Filter, v string) bool {
	return f.Operator == OpEqual && strings.EqualFold(f.Value, v)
}

func compareInt(f Filter, v int64) bool {
	want, err := strconv.ParseInt(f.Value, 10, 64)
	if err != nil {
		return false
	}
	switch f.Operator {
	case OpEqual:
		return v == want
	case OpGreater:
		return v > want
	case OpGreaterOrEqual:
		return v >= want
	case OpLess:
		return v < want
	case OpLessOrEqual:
		return v <= want
	case OpRange:
		hi, err := strconv.ParseInt(f.MaxValue, 10, 64)
		return err == nil && v >= want && v <= hi
	}
	return false
}

// compareText orders ISO dates as strings. A bound matches every value it
// prefixes, so date:2026-04 covers the whole month.
func compareText(f Filter, v string) bool {
	switch f.Operator {
	case OpEqual:
		return strings.HasPrefix(v, f.Value)
	case OpGreater:
		return v > f.Value && !strings.HasPrefix(v, f.Value)
	case OpGreaterOrEqual:
		return v >= f.Value
	case OpLess:
		return v < f.Value
	case OpLessOrEqual:
		return v <= f.Value || strings.HasPrefix(v, f.Value)
	case OpRange:
		return v >= f.Value && (v <= f.MaxValue || strings.HasPrefix(v, f.MaxValue))
	}
	return false
}
