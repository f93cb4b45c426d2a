package manifest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sashu2310/streamgate/internal/manifest"
)

func sampleRules() []manifest.ProcessorRule {
	return []manifest.ProcessorRule{
		{ID: "r1", Type: manifest.RuleFilter, Params: map[string]string{"key": "level", "value": "DEBUG"}},
		{ID: "r2", Type: manifest.RuleRedact, Params: map[string]string{"pattern": `\d{3}-\d{2}-\d{4}`, "replacement": "XXX-XX-XXXX"}},
	}
}

func sampleOutputs() []manifest.OutputTarget {
	return []manifest.OutputTarget{
		{Type: manifest.OutputHTTP, URL: "http://localhost:9000", Headers: map[string]string{"X-Token": "a"}},
		{Type: manifest.OutputConsole},
	}
}

func TestCompileShape(t *testing.T) {
	now := time.Unix(1700000000, 0)
	m := manifest.CompileAt(sampleRules(), sampleOutputs(), 50, now)

	assert.Equal(t, "1.0", m.Version)
	assert.Equal(t, int64(1700000000), m.Timestamp)
	require.Len(t, m.Pipelines, 1)
	p := m.Pipelines[0]
	assert.Equal(t, "default_pipeline", p.Name)
	assert.Equal(t, 50, p.BatchSize)
	require.Len(t, p.Processors, 2)
	assert.Equal(t, "r1", p.Processors[0].ID)
	assert.Equal(t, "r2", p.Processors[1].ID)
	assert.Len(t, p.Outputs, 2)
	require.NoError(t, m.Validate())
}

func TestCompileIsSnapshot(t *testing.T) {
	rules := sampleRules()
	outputs := sampleOutputs()
	m := manifest.Compile(rules, outputs, 10)

	rules[0].ID = "mutated"
	rules[0].Params["value"] = "INFO"
	outputs[0].Headers["X-Token"] = "b"
	outputs[0].URL = "http://elsewhere"

	p := m.Pipelines[0]
	assert.Equal(t, "r1", p.Processors[0].ID)
	assert.Equal(t, "DEBUG", p.Processors[0].Params["value"])
	assert.Equal(t, "a", p.Outputs[0].Headers["X-Token"])
	assert.Equal(t, "http://localhost:9000", p.Outputs[0].URL)
}

func TestCompileTwiceDiffersOnlyInTimestamp(t *testing.T) {
	a := manifest.CompileAt(sampleRules(), sampleOutputs(), 7, time.Unix(100, 0))
	b := manifest.CompileAt(sampleRules(), sampleOutputs(), 7, time.Unix(200, 0))

	assert.NotEqual(t, a.Timestamp, b.Timestamp)
	b.Timestamp = a.Timestamp
	assert.Equal(t, a, b)

	fa, err := manifest.Fingerprint(a)
	require.NoError(t, err)
	fb, err := manifest.Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}

func TestCompileEmptyEncodesArrays(t *testing.T) {
	m := manifest.CompileAt(nil, nil, 100, time.Unix(1, 0))
	data, err := manifest.Encode(m)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"version":"1.0","timestamp":1,"pipelines":[{"name":"default_pipeline","processors":[],"outputs":[],"batch_size":100}]}`,
		string(data))
}

func TestEncodeFieldNames(t *testing.T) {
	m := manifest.CompileAt(sampleRules()[:1], sampleOutputs()[:1], 50, time.Unix(5, 0))
	data, err := manifest.Encode(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"version": "1.0",
		"timestamp": 5,
		"pipelines": [{
			"name": "default_pipeline",
			"processors": [{"id": "r1", "type": "filter", "params": {"key": "level", "value": "DEBUG"}}],
			"outputs": [{"type": "http", "url": "http://localhost:9000", "headers": {"X-Token": "a"}}],
			"batch_size": 50
		}]
	}`, string(data))

	back, err := manifest.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestDecodeRejectsBadShape(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"no version", `{"timestamp":1,"pipelines":[{"name":"p","processors":[],"outputs":[],"batch_size":1}]}`},
		{"no pipelines", `{"version":"1.0","timestamp":1,"pipelines":[]}`},
		{"unnamed pipeline", `{"version":"1.0","timestamp":1,"pipelines":[{"processors":[],"outputs":[],"batch_size":1}]}`},
		{"batch too large", `{"version":"1.0","timestamp":1,"pipelines":[{"name":"p","batch_size":10001}]}`},
		{"duplicate ids", `{"version":"1.0","timestamp":1,"pipelines":[{"name":"p","batch_size":1,"processors":[{"id":"a","type":"filter","params":{}},{"id":"a","type":"filter","params":{}}]}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := manifest.Decode([]byte(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	a := manifest.CompileAt(sampleRules(), nil, 10, time.Unix(1, 0))
	b := manifest.CompileAt(sampleRules(), nil, 11, time.Unix(1, 0))
	fa, err := manifest.Fingerprint(a)
	require.NoError(t, err)
	fb, err := manifest.Fingerprint(b)
	require.NoError(t, err)
	assert.NotEqual(t, fa, fb)
}

func TestRuleTypeTable(t *testing.T) {
	for _, rt := range []manifest.RuleType{manifest.RuleFilter, manifest.RuleRedact, manifest.RuleAttributeFilter} {
		_, ok := manifest.LookupRuleType(rt)
		assert.True(t, ok, rt)
	}
	_, ok := manifest.LookupRuleType("sample")
	assert.False(t, ok)
	assert.Len(t, manifest.RuleTypes(), 3)

	missing := manifest.MissingParams(manifest.ProcessorRule{
		ID: "x", Type: manifest.RuleRedact, Params: map[string]string{"pattern": "a"},
	})
	assert.Equal(t, []string{"replacement"}, missing)
	assert.Empty(t, manifest.MissingParams(sampleRules()[0]))
}

func TestRuleTypesReturnsCopy(t *testing.T) {
	types := manifest.RuleTypes()
	for i := range types {
		for j := range types[i].Params {
			types[i].Params[j].Required = false
		}
	}
	missing := manifest.MissingParams(manifest.ProcessorRule{
		ID: "x", Type: manifest.RuleRedact, Params: map[string]string{},
	})
	assert.Equal(t, []string{"pattern", "replacement"}, missing)
}
