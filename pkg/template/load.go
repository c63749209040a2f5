package template

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// Load reads a spawn config from a YAML (.yaml, .yml, .json) or HCL (.hcl)
// file. vars are exposed to HCL files as var.<name>; YAML ignores them.
// Defaults are applied to the result.
func Load(path string, vars map[string]cty.Value) (*SpawnConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spawn config: %w", err)
	}

	var cfg *SpawnConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		cfg, err = ParseHCL(data, path, vars)
	case ".yaml", ".yml", ".json":
		cfg, err = ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported spawn config extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseYAML decodes a YAML (or JSON) spawn config and applies defaults.
// Unknown keys are rejected.
func ParseYAML(data []byte) (*SpawnConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg SpawnConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse spawn config yaml: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
