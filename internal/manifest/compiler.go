package manifest

import "time"

// Compile snapshots rules, outputs and batchSize into a new Manifest stamped
// with the current time. Inputs are deep-copied: mutating them afterwards
// never changes the returned Manifest.
func Compile(rules []ProcessorRule, outputs []OutputTarget, batchSize int) *Manifest {
	return CompileAt(rules, outputs, batchSize, time.Now())
}

// CompileAt is Compile with an explicit clock reading.
func CompileAt(rules []ProcessorRule, outputs []OutputTarget, batchSize int, now time.Time) *Manifest {
	processors := make([]ProcessorRule, 0, len(rules))
	for _, r := range rules {
		processors = append(processors, r.Clone())
	}
	outs := make([]OutputTarget, 0, len(outputs))
	for _, o := range outputs {
		outs = append(outs, o.Clone())
	}
	return &Manifest{
		Version:   FormatVersion,
		Timestamp: now.Unix(),
		Pipelines: []PipelineConfig{{
			Name:       DefaultPipelineName,
			Processors: processors,
			Outputs:    outs,
			BatchSize:  batchSize,
		}},
	}
}
