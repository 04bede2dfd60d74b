// Package domain defines the core interfaces and types for Kestrel.
package domain

import "strings"

// Answer is a single checklist leaf value with intake provenance.
type Answer struct {
	Value  any    `json:"value"`
	Status string `json:"status,omitempty"`
}

// Answer status constants as produced by the intake wizard.
const (
	AnswerStatusAnswered = "answered"
	AnswerStatusSkipped  = "skipped"
	AnswerStatusFlagged  = "flagged"
)

// ExtractAnswer resolves a dotted path against a nested answer map and
// unwraps {value} envelopes until a primitive is reached. Returns nil when
// any path segment is missing.
func ExtractAnswer(answers map[string]any, path string) any {
	if path == "" {
		return nil
	}

	var current any = answers
	for _, seg := range strings.Split(path, ".") {
		current = UnwrapAnswer(current)
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[seg]
		if !ok {
			return nil
		}
	}

	return UnwrapAnswer(current)
}

// UnwrapAnswer peels nested {value} envelopes recursively. A map counts as
// an envelope only when it carries a "value" key; other maps are returned
// as-is so dotted traversal can continue into them.
func UnwrapAnswer(v any) any {
	for {
		switch t := v.(type) {
		case Answer:
			v = t.Value
		case *Answer:
			if t == nil {
				return nil
			}
			v = t.Value
		case map[string]any:
			inner, ok := t["value"]
			if !ok {
				return t
			}
			v = inner
		default:
			return v
		}
	}
}

// UnwrapAnswers returns a deep copy of the answer map with every {value}
// envelope unwrapped. Used to build the activation environment for
// expression-based mapping rules.
func UnwrapAnswers(answers map[string]any) map[string]any {
	out := make(map[string]any, len(answers))
	for k, v := range answers {
		unwrapped := UnwrapAnswer(v)
		if m, ok := unwrapped.(map[string]any); ok {
			out[k] = UnwrapAnswers(m)
			continue
		}
		out[k] = unwrapped
	}
	return out
}
