package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a thread manifest from the provided path.
func Load(path string) (*Manifest, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest file: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return doc, nil
}

// Parse decodes, defaults and validates a manifest. Environment references
// in names and backends are expanded.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := validateAgainstSchema(raw); err != nil {
		return nil, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var doc Manifest
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}

	doc.Defaults.Backend = os.ExpandEnv(doc.Defaults.Backend)
	for _, t := range doc.Threads {
		if t == nil {
			continue
		}
		t.Name = os.ExpandEnv(t.Name)
		t.Backend = os.ExpandEnv(t.Backend)
	}

	if err := doc.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}
