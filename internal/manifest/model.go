package manifest

import "fmt"

const (
	// FormatVersion is the manifest wire-format revision understood by agents.
	FormatVersion = "1.0"
	// DefaultPipelineName names the single pipeline every manifest carries.
	DefaultPipelineName = "default_pipeline"

	MinBatchSize     = 1
	MaxBatchSize     = 10000
	DefaultBatchSize = 100
)

// RuleType selects which processor an agent builds for a rule.
type RuleType string

const (
	RuleFilter          RuleType = "filter"
	RuleRedact          RuleType = "redact"
	RuleAttributeFilter RuleType = "attribute_filter"
)

// OutputType selects where an agent forwards batches.
type OutputType string

const (
	OutputConsole OutputType = "console"
	OutputHTTP    OutputType = "http"
)

// Valid reports whether t is a known output type.
func (t OutputType) Valid() bool {
	return t == OutputConsole || t == OutputHTTP
}

// ProcessorRule is a declarative telemetry transformation.
// Params are opaque here; their expected shape per type lives in RuleTypes.
type ProcessorRule struct {
	ID     string            `json:"id" yaml:"id"`
	Type   RuleType          `json:"type" yaml:"type"`
	Params map[string]string `json:"params" yaml:"params"`
}

// Clone returns a deep copy of r.
func (r ProcessorRule) Clone() ProcessorRule {
	return ProcessorRule{ID: r.ID, Type: r.Type, Params: cloneMap(r.Params)}
}

// OutputTarget is a destination telemetry batches are forwarded to.
type OutputTarget struct {
	Type    OutputType        `json:"type" yaml:"type"`
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Clone returns a deep copy of o.
func (o OutputTarget) Clone() OutputTarget {
	return OutputTarget{Type: o.Type, URL: o.URL, Headers: cloneMap(o.Headers)}
}

// PipelineConfig bundles rules, outputs and batch size under a name.
// Processor order is evaluation order downstream.
type PipelineConfig struct {
	Name       string          `json:"name"`
	Processors []ProcessorRule `json:"processors"`
	Outputs    []OutputTarget  `json:"outputs"`
	BatchSize  int             `json:"batch_size"`
}

// Manifest is the published artifact. Values returned by Compile are never
// mutated afterwards; the next publish produces a new Manifest.
type Manifest struct {
	Version   string           `json:"version"`
	Timestamp int64            `json:"timestamp"`
	Pipelines []PipelineConfig `json:"pipelines"`
}

// Validate checks the structural shape agents rely on.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("manifest: version is required")
	}
	if len(m.Pipelines) == 0 {
		return fmt.Errorf("manifest: at least one pipeline is required")
	}
	for i, p := range m.Pipelines {
		if p.Name == "" {
			return fmt.Errorf("manifest: pipelines[%d]: name is required", i)
		}
		if p.BatchSize < MinBatchSize || p.BatchSize > MaxBatchSize {
			return fmt.Errorf("manifest: pipeline %s: batch_size %d outside [%d, %d]",
				p.Name, p.BatchSize, MinBatchSize, MaxBatchSize)
		}
		seen := make(map[string]struct{}, len(p.Processors))
		for j, r := range p.Processors {
			if r.ID == "" {
				return fmt.Errorf("manifest: pipeline %s: processors[%d]: id is required", p.Name, j)
			}
			if _, dup := seen[r.ID]; dup {
				return fmt.Errorf("manifest: pipeline %s: duplicate processor id %q", p.Name, r.ID)
			}
			seen[r.ID] = struct{}{}
		}
	}
	return nil
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
