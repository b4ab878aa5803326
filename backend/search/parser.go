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

// Package search parses filter queries such as `inning:>=7 result:home_run`
// and matches them against score events and queued mutations.
package search

import (
	"strings"
	"unicode"
)

// Operator defines the type of comparison for a filter.
type Operator string

const (
	OpEqual          Operator = "="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpRange          Operator = ".." // inning:3..5
)

// Filter is one key:value criterion.
type Filter struct {
	Key      string // e.g. "inning", "result", "sync"
	Value    string
	MaxValue string // Used only for OpRange
	Operator Operator
}

// Query is a parsed search query. Every filter and every free-text term
// must match.
type Query struct {
	Filters  []Filter
	FreeText []string
}

// Empty reports whether the query matches everything.
func (q Query) Empty() bool {
	return len(q.Filters) == 0 && len(q.FreeText) == 0
}

// prefixOps is checked in order so that ">=" wins over ">".
var prefixOps = []Operator{OpGreaterOrEqual, OpLessOrEqual, OpGreater, OpLess}

// Parse parses a search query. It handles quoted values (key:"two words"),
// comparison prefixes (seq:>=10), ranges (inning:3..5) and free text.
// Keys are lower-cased; a value with an unquoted colon is free text.
func Parse(input string) Query {
	q := Query{
		Filters:  make([]Filter, 0),
		FreeText: make([]string, 0),
	}
	for _, token := range tokenize(input) {
		f, ok := parseFilter(token)
		if !ok {
			q.FreeText = append(q.FreeText, removeQuotes(token))
			continue
		}
		q.Filters = append(q.Filters, f)
	}
	return q
}

func parseFilter(token string) (Filter, bool) {
	key, val, found := strings.Cut(token, ":")
	if !found {
		return Filter{}, false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	val = strings.TrimSpace(val)
	if key == "" || val == "" || strings.HasPrefix(key, "\"") || strings.HasPrefix(key, "'") {
		return Filter{}, false
	}
	quoted := strings.HasPrefix(val, "\"") || strings.HasPrefix(val, "'")
	if strings.Contains(val, ":") && !quoted {
		return Filter{}, false
	}

	if lo, hi, ok := strings.Cut(val, ".."); ok && !quoted {
		return Filter{Key: key, Value: lo, MaxValue: hi, Operator: OpRange}, true
	}
	for _, op := range prefixOps {
		if rest, ok := strings.CutPrefix(val, string(op)); ok {
			return Filter{Key: key, Value: removeQuotes(rest), Operator: op}, true
		}
	}
	return Filter{Key: key, Value: removeQuotes(val), Operator: OpEqual}, true
}

// tokenize splits the string by spaces, respecting quotes.
func tokenize(input string) []string {
	var tokens []string
	var current strings.Builder
	quote := rune(0)

	for _, r := range input {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			current.WriteRune(r)
		case unicode.IsSpace(r):
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		case r == '"' || r == '\'':
			quote = r
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func removeQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
