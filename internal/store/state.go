package store

import (
	"sync"

	"github.com/sashu2310/streamgate/internal/manifest"
	"github.com/sashu2310/streamgate/internal/metrics"
)

// Snapshot is the content of all three stores at a single instant.
type Snapshot struct {
	Rules     []manifest.ProcessorRule
	Outputs   []manifest.OutputTarget
	BatchSize int
}

// State is the control plane's application state. Individual operations
// share the gate; Snapshot and Replace hold it exclusively, so a snapshot
// never interleaves with a mutation.
type State struct {
	gate     sync.RWMutex
	rules    *RuleStore
	outputs  *OutputStore
	settings *SettingsStore
}

// NewState creates empty stores with the given initial batch size.
func NewState(batchSize int) *State {
	s := &State{
		rules:    NewRuleStore(),
		outputs:  NewOutputStore(),
		settings: NewSettingsStore(batchSize),
	}
	s.observe()
	return s
}

func (s *State) Rules() []manifest.ProcessorRule {
	s.gate.RLock()
	defer s.gate.RUnlock()
	return s.rules.List()
}

func (s *State) AddRule(r manifest.ProcessorRule) (manifest.ProcessorRule, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	stored, err := s.rules.Add(r)
	if err == nil {
		metrics.RulesConfigured.Set(float64(s.rules.Len()))
	}
	return stored, err
}

func (s *State) RemoveRule(id string) error {
	s.gate.RLock()
	defer s.gate.RUnlock()
	err := s.rules.Remove(id)
	if err == nil {
		metrics.RulesConfigured.Set(float64(s.rules.Len()))
	}
	return err
}

func (s *State) Outputs() []manifest.OutputTarget {
	s.gate.RLock()
	defer s.gate.RUnlock()
	return s.outputs.List()
}

func (s *State) AddOutput(o manifest.OutputTarget) (manifest.OutputTarget, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	stored, err := s.outputs.Add(o)
	if err == nil {
		metrics.OutputsConfigured.Set(float64(s.outputs.Len()))
	}
	return stored, err
}

func (s *State) ClearOutputs() {
	s.gate.RLock()
	defer s.gate.RUnlock()
	s.outputs.Clear()
	metrics.OutputsConfigured.Set(0)
}

func (s *State) BatchSize() int {
	s.gate.RLock()
	defer s.gate.RUnlock()
	return s.settings.BatchSize()
}

func (s *State) SetBatchSize(n int) error {
	s.gate.RLock()
	defer s.gate.RUnlock()
	err := s.settings.SetBatchSize(n)
	if err == nil {
		metrics.BatchSize.Set(float64(n))
	}
	return err
}

// Snapshot copies all three stores atomically.
func (s *State) Snapshot() Snapshot {
	s.gate.Lock()
	defer s.gate.Unlock()
	return Snapshot{
		Rules:     s.rules.List(),
		Outputs:   s.outputs.List(),
		BatchSize: s.settings.BatchSize(),
	}
}

// Replace swaps the whole state for snap. Every rule, output and the batch
// size are validated first; on error nothing changes.
func (s *State) Replace(snap Snapshot) error {
	rules := NewRuleStore()
	for _, r := range snap.Rules {
		if _, err := rules.Add(r); err != nil {
			return err
		}
	}
	outputs := NewOutputStore()
	for _, o := range snap.Outputs {
		if _, err := outputs.Add(o); err != nil {
			return err
		}
	}
	if err := checkBatchSize(snap.BatchSize); err != nil {
		return err
	}

	s.gate.Lock()
	s.rules = rules
	s.outputs = outputs
	s.settings = NewSettingsStore(snap.BatchSize)
	s.gate.Unlock()
	s.observe()
	return nil
}

func (s *State) observe() {
	s.gate.RLock()
	defer s.gate.RUnlock()
	metrics.RulesConfigured.Set(float64(s.rules.Len()))
	metrics.OutputsConfigured.Set(float64(s.outputs.Len()))
	metrics.BatchSize.Set(float64(s.settings.BatchSize()))
}
