package manifest

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	jsoniter "github.com/json-iterator/go"
)

// json keeps encoding/json semantics (sorted map keys, field tags) so the
// output is byte-stable for equal inputs.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Encode serializes m into the wire format agents read from storage.
func Encode(m *Manifest) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// Decode parses and validates a stored manifest.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Fingerprint hashes the pipelines of m, ignoring the timestamp, so two
// compilations of the same store state share a fingerprint.
func Fingerprint(m *Manifest) (string, error) {
	data, err := json.Marshal(m.Pipelines)
	if err != nil {
		return "", fmt.Errorf("fingerprint manifest: %w", err)
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16), nil
}
