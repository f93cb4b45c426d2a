package store

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sashu2310/streamgate/internal/manifest"
)

// RuleStore holds processor rules in insertion order, unique by ID.
type RuleStore struct {
	mu    sync.RWMutex
	rules []manifest.ProcessorRule
	ids   map[string]struct{}
}

// NewRuleStore creates an empty RuleStore.
func NewRuleStore() *RuleStore {
	return &RuleStore{ids: make(map[string]struct{})}
}

// List returns a copy of all rules in insertion order.
func (s *RuleStore) List() []manifest.ProcessorRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]manifest.ProcessorRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r.Clone())
	}
	return out
}

// Len returns the number of stored rules.
func (s *RuleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// Add appends rule unless its ID is already present.
func (s *RuleStore) Add(rule manifest.ProcessorRule) (manifest.ProcessorRule, error) {
	if err := validateRule(rule); err != nil {
		return manifest.ProcessorRule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ids[rule.ID]; exists {
		return manifest.ProcessorRule{}, invalid("id", ErrDuplicateID, "rule id %s already exists", rule.ID)
	}
	stored := rule.Clone()
	s.rules = append(s.rules, stored)
	s.ids[rule.ID] = struct{}{}
	return stored.Clone(), nil
}

// Remove deletes the rule with the given id, keeping the order of the rest.
func (s *RuleStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ids[id]; !exists {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	for i, r := range s.rules {
		if r.ID == id {
			s.rules = append(s.rules[:i:i], s.rules[i+1:]...)
			break
		}
	}
	delete(s.ids, id)
	return nil
}

func validateRule(r manifest.ProcessorRule) error {
	if strings.TrimSpace(r.ID) == "" {
		return invalid("id", ErrInvalid, "rule id is required")
	}
	if _, ok := manifest.LookupRuleType(r.Type); !ok {
		return invalid("type", ErrInvalid, "unknown rule type %q", r.Type)
	}
	if r.Params == nil {
		return invalid("params", ErrInvalid, "params are required")
	}
	return nil
}
