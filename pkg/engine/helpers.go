package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/DrSkyle/gridspawn/pkg/catalog"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/template"
)

// ParseVars turns key=value pairs into HCL variables. Integers, floats and
// booleans keep their type; everything else is a string.
func ParseVars(pairs []string) (map[string]cty.Value, error) {
	vars := make(map[string]cty.Value, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid variable %q, want key=value", p)
		}
		switch {
		case isInt(v):
			n, _ := strconv.ParseInt(v, 10, 64)
			vars[k] = cty.NumberIntVal(n)
		case isFloat(v):
			f, _ := strconv.ParseFloat(v, 64)
			vars[k] = cty.NumberFloatVal(f)
		case v == "true" || v == "false":
			vars[k] = cty.BoolVal(v == "true")
		default:
			vars[k] = cty.StringVal(v)
		}
	}
	return vars, nil
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// LoadSpawnConfig reads a YAML or HCL spawn config, passing vars
// (key=value) to HCL files.
func LoadSpawnConfig(path string, vars []string) (*template.SpawnConfig, error) {
	values, err := ParseVars(vars)
	if err != nil {
		return nil, err
	}
	return template.Load(path, values)
}

// LoadCatalog reads a YAML catalog. An empty path yields an empty catalog,
// in which case every template needs a footprint override.
func LoadCatalog(path string) (*catalog.MemoryCatalog, error) {
	if path == "" {
		return catalog.NewMemoryCatalog(), nil
	}
	return catalog.Load(path)
}

// LoadGrid reads a grid snapshot, or builds an empty width x height grid
// when path is empty.
func LoadGrid(path string, width, height int) (*grid.MemoryGrid, error) {
	if path != "" {
		return grid.LoadSnapshot(path)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid size %dx%d must be positive", width, height)
	}
	return grid.NewMemoryGrid(width, height), nil
}
