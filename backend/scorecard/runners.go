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

// OnBase pairs a bag with the runner standing on it.
type OnBase struct {
	Base   Base        `json:"base"`
	Runner RunnerState `json:"runner"`
}

// RunnersOnBase lists the occupied bags, lead runner last.
func RunnersOnBase(bases Bases) []OnBase {
	var out []OnBase
	for _, b := range Bags {
		if r := bases.Get(b); r != nil {
			out = append(out, OnBase{Base: b, Runner: *r})
		}
	}
	return out
}

// NextBase returns the base after b in running order. Third leads home.
func NextBase(b Base) Base {
	switch b {
	case BaseBatter:
		return BaseFirst
	case BaseFirst:
		return BaseSecond
	case BaseSecond:
		return BaseThird
	case BaseThird:
		return BaseHome
	}
	return b
}

func advanceBy(b Base, n int) Base {
	for ; n > 0 && b != BaseHome; n-- {
		b = NextBase(b)
	}
	return b
}

// DefaultAdvances proposes a complete advance list for outcome, suitable as
// the starting point of a runner-selection screen. Hits move every runner
// as many bases as the batter; walks, hit batters, errors and fielder's
// choices move only forced runners. Outs propose nothing.
func DefaultAdvances(bases Bases, batter RunnerState, outcome Outcome) []RunnerAdvance {
	dest, ok := outcome.batterDestination()
	if !ok {
		return nil
	}

	advances := []RunnerAdvance{{Runner: batter, Start: BaseBatter, End: dest}}
	if outcome.IsHit() {
		n := map[Base]int{BaseFirst: 1, BaseSecond: 2, BaseThird: 3, BaseHome: 4}[dest]
		for _, ob := range RunnersOnBase(bases) {
			advances = append(advances, RunnerAdvance{Runner: ob.Runner, Start: ob.Base, End: advanceBy(ob.Base, n)})
		}
		return advances
	}

	// Forced runners: each runner moves up only while every base behind him
	// is occupied.
	forced := true
	for _, b := range Bags {
		r := bases.Get(b)
		if r == nil {
			forced = false
		}
		if r != nil && forced {
			advances = append(advances, RunnerAdvance{Runner: *r, Start: b, End: NextBase(b)})
		}
	}
	return advances
}
