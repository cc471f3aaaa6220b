// Package rules builds the ordered filter rule set attached to a job
// submission. Order is preserved: the server evaluates rules as given.
package rules

import (
	"encoding/json"

	"extractor/internal/apperrors"
)

// Rule is one filter expression. Tag is advisory metadata carried through
// to matched activities; Value is the expression itself.
type Rule struct {
	Value string `json:"value" toml:"value"`
	Tag   string `json:"tag,omitempty" toml:"tag"`
}

// Set is an ordered collection of rules with unique values.
type Set struct {
	rules []Rule
	seen  map[string]struct{}
}

// NewSet creates an empty rule set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// FromRules builds a Set from a slice, preserving order.
func FromRules(rs []Rule) (*Set, error) {
	s := NewSet()
	for _, r := range rs {
		if err := s.Add(r.Value, r.Tag); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a rule. Empty and duplicate values are rejected.
func (s *Set) Add(value, tag string) error {
	if value == "" {
		return apperrors.Validation("rules", "rule value must not be empty")
	}
	if _, dup := s.seen[value]; dup {
		return apperrors.Validation("rules", "duplicate rule value: "+value)
	}
	s.seen[value] = struct{}{}
	s.rules = append(s.rules, Rule{Value: value, Tag: tag})
	return nil
}

// Rules returns the rules in insertion order.
func (s *Set) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of rules.
func (s *Set) Len() int {
	return len(s.rules)
}

// MarshalJSON serializes the set as a bare rule array, the shape the
// submission payload embeds.
func (s *Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.rules)
}

// Payload serializes the set as a standalone rules document.
func (s *Set) Payload() ([]byte, error) {
	return json.Marshal(struct {
		Rules []Rule `json:"rules"`
	}{Rules: s.rules})
}
