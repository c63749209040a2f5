package template

import (
	"fmt"
	"time"

	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// hclConfig is the top-level structure of an HCL spawn config.
//
//	name = "chest"
//	min_grid_size { width = 4  height = 4 }
//	template "gold" {
//	  item_kind = "gold_coin"
//	  quantity  = var.gold
//	}
type hclConfig struct {
	Name              string        `hcl:"name"`
	ContainerType     *string       `hcl:"container_type,optional"`
	SortStrategy      *string       `hcl:"sort_strategy,optional"`
	ContinueOnFailure *bool         `hcl:"continue_on_failure,optional"`
	TimeBudget        *string       `hcl:"time_budget,optional"`
	MinGridSize       *grid.Size    `hcl:"min_grid_size,block"`
	Templates         []hclTemplate `hcl:"template,block"`
}

type hclTemplate struct {
	ID               string         `hcl:"id,label"`
	ItemKind         string         `hcl:"item_kind"`
	Quantity         int            `hcl:"quantity"`
	Mode             *string        `hcl:"mode,optional"`
	Priority         *string        `hcl:"priority,optional"`
	ScanPattern      *string        `hcl:"scan_pattern,optional"`
	ConflictPolicy   *string        `hcl:"conflict_policy,optional"`
	AllowRotation    *bool          `hcl:"allow_rotation,optional"`
	UniqueSpawn      *bool          `hcl:"unique_spawn,optional"`
	MaxRetryAttempts *int           `hcl:"max_retry_attempts,optional"`
	SpawnChance      *float64       `hcl:"spawn_chance,optional"`
	Condition        *string        `hcl:"condition,optional"`
	Footprint        *grid.Size     `hcl:"footprint,block"`
	ExactPosition    *grid.Position `hcl:"exact_position,block"`
	ConstrainedArea  *grid.Rect     `hcl:"constrained_area,block"`
	PreferredArea    *grid.Rect     `hcl:"preferred_area,block"`
}

// ParseHCL decodes an HCL spawn config. vars are available as var.<name>.
func ParseHCL(data []byte, filename string, vars map[string]cty.Value) (*SpawnConfig, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.EmptyObjectVal},
	}
	if len(vars) > 0 {
		evalCtx.Variables["var"] = cty.ObjectVal(vars)
	}

	var raw hclConfig
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	cfg, err := raw.toConfig()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func (h hclConfig) toConfig() (*SpawnConfig, error) {
	cfg := &SpawnConfig{
		Name:              h.Name,
		ContainerType:     deref(h.ContainerType),
		ContinueOnFailure: deref(h.ContinueOnFailure),
		Templates:         make([]Template, 0, len(h.Templates)),
	}
	if h.MinGridSize != nil {
		cfg.MinGridSize = *h.MinGridSize
	}
	if h.SortStrategy != nil {
		s, err := ParseSortStrategy(*h.SortStrategy)
		if err != nil {
			return nil, err
		}
		cfg.SortStrategy = s
	}
	if h.TimeBudget != nil {
		d, err := time.ParseDuration(*h.TimeBudget)
		if err != nil {
			return nil, fmt.Errorf("invalid time_budget: %w", err)
		}
		cfg.TimeBudget = d
	}

	for _, ht := range h.Templates {
		t, err := ht.toTemplate()
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", ht.ID, err)
		}
		cfg.Templates = append(cfg.Templates, t)
	}
	return cfg, nil
}

func (h hclTemplate) toTemplate() (Template, error) {
	t := Template{
		ID:               h.ID,
		ItemKind:         h.ItemKind,
		Quantity:         h.Quantity,
		AllowRotation:    deref(h.AllowRotation),
		UniqueSpawn:      deref(h.UniqueSpawn),
		MaxRetryAttempts: deref(h.MaxRetryAttempts),
		SpawnChance:      h.SpawnChance,
		Condition:        deref(h.Condition),
	}
	var err error
	if h.Mode != nil {
		if t.Mode, err = ParseMode(*h.Mode); err != nil {
			return t, err
		}
	}
	if h.Priority != nil {
		if t.Priority, err = ParsePriority(*h.Priority); err != nil {
			return t, err
		}
	}
	if h.ScanPattern != nil {
		if t.ScanPattern, err = ParseScanPattern(*h.ScanPattern); err != nil {
			return t, err
		}
	}
	if h.ConflictPolicy != nil {
		if t.ConflictPolicy, err = ParseConflictPolicy(*h.ConflictPolicy); err != nil {
			return t, err
		}
	}
	if h.Footprint != nil {
		t.Footprint = *h.Footprint
	}
	if h.ExactPosition != nil {
		t.ExactPosition = *h.ExactPosition
	}
	if h.ConstrainedArea != nil {
		t.ConstrainedArea = *h.ConstrainedArea
	}
	if h.PreferredArea != nil {
		t.PreferredArea = *h.PreferredArea
	}
	return t, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
