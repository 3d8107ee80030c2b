package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the energy-source class attached to every normalized record.
// The set is closed: anything outside Categories is rejected when a catalog is loaded.
type Category string

const (
	CategoryNuclear     Category = "Nuclear"
	CategoryGreen       Category = "Green"
	CategoryTraditional Category = "Traditional"
)

// Categories lists the tracked categories in display order
var Categories = []Category{CategoryNuclear, CategoryGreen, CategoryTraditional}

// ParseCategory matches s case-insensitively against the closed category set
func ParseCategory(s string) (Category, error) {
	trimmed := strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(trimmed, string(c)) {
			return c, nil
		}
	}
	return "", &ValidationError{
		Field:   "category",
		Value:   s,
		Message: fmt.Sprintf("unknown category %q, expected one of %v", s, Categories),
	}
}

// Valid reports whether c belongs to the closed category set
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// NormalizedRecord is one long-format row: entity, category, value.
// Records are created by the normalizer and never mutated afterwards.
type NormalizedRecord struct {
	Country  string   `json:"country" db:"country"`
	Category Category `json:"category" db:"category"`
	Value    float64  `json:"value" db:"value"`
	Source   string   `json:"source" db:"source"`
}

// GroupKey identifies an entity x category group
type GroupKey struct {
	Key      string
	Category Category
}

// SummaryKind names the reduction a SummaryRecord came from
type SummaryKind string

const (
	SummaryCategoryMean    SummaryKind = "category_mean"
	SummaryKeyCategoryMean SummaryKind = "key_category_mean"
	SummaryFocusKeys       SummaryKind = "focus_keys"
)

// SummaryRecord is one row of a grouped reduction. Key is empty for category-only groupings.
type SummaryRecord struct {
	Key      string   `json:"key,omitempty" db:"group_key"`
	Category Category `json:"category,omitempty" db:"category"`
	Metric   float64  `json:"metric" db:"metric"`
}

// KeySet is an insertion-ordered set of entity keys
type KeySet struct {
	keys  []string
	index map[string]struct{}
}

// NewKeySet builds a set from keys, dropping duplicates but keeping first-seen order
func NewKeySet(keys ...string) KeySet {
	var s KeySet
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add inserts k and reports whether it was new
func (s *KeySet) Add(k string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = struct{}{}
	s.keys = append(s.keys, k)
	return true
}

// Contains reports membership
func (s KeySet) Contains(k string) bool {
	_, ok := s.index[k]
	return ok
}

// Len returns the number of keys
func (s KeySet) Len() int {
	return len(s.keys)
}

// Keys returns a copy of the keys in insertion order
func (s KeySet) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// MarshalJSON encodes the set as an ordered array
func (s KeySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Keys())
}
