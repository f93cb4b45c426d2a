package store

import (
	"net/url"
	"sync"

	"github.com/sashu2310/streamgate/internal/manifest"
)

// OutputStore holds output targets in insertion order. HTTP targets are
// unique by URL; console targets may repeat.
type OutputStore struct {
	mu      sync.RWMutex
	outputs []manifest.OutputTarget
}

// NewOutputStore creates an empty OutputStore.
func NewOutputStore() *OutputStore {
	return &OutputStore{}
}

// List returns a copy of all outputs in insertion order.
func (s *OutputStore) List() []manifest.OutputTarget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]manifest.OutputTarget, 0, len(s.outputs))
	for _, o := range s.outputs {
		out = append(out, o.Clone())
	}
	return out
}

// Len returns the number of stored outputs.
func (s *OutputStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outputs)
}

// Add appends output. Console targets drop any url and headers.
func (s *OutputStore) Add(output manifest.OutputTarget) (manifest.OutputTarget, error) {
	output, err := normalizeOutput(output)
	if err != nil {
		return manifest.OutputTarget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if output.Type == manifest.OutputHTTP && output.URL != "" {
		for _, existing := range s.outputs {
			if existing.Type == manifest.OutputHTTP && existing.URL == output.URL {
				return manifest.OutputTarget{}, invalid("url", ErrDuplicateURL, "http output %s already exists", output.URL)
			}
		}
	}
	stored := output.Clone()
	s.outputs = append(s.outputs, stored)
	return stored.Clone(), nil
}

// Clear removes every output.
func (s *OutputStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = nil
}

func normalizeOutput(o manifest.OutputTarget) (manifest.OutputTarget, error) {
	if !o.Type.Valid() {
		return o, invalid("type", ErrInvalid, "unknown output type %q", o.Type)
	}
	if o.Type == manifest.OutputConsole {
		return manifest.OutputTarget{Type: manifest.OutputConsole}, nil
	}
	// http outputs always carry a url, so the duplicate check in Add sees them all.
	if o.URL == "" {
		return o, invalid("url", ErrInvalid, "url is required for http outputs")
	}
	u, err := url.Parse(o.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return o, invalid("url", ErrInvalid, "url %q must be an absolute http(s) url", o.URL)
	}
	return o, nil
}
