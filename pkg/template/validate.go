package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DrSkyle/gridspawn/pkg/catalog"
	"github.com/DrSkyle/gridspawn/pkg/grid"
)

// Validate checks the config and all of its templates. Every problem is
// reported; the returned error is an errors.Join of them.
func (c *SpawnConfig) Validate(cat catalog.Catalog) error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("config name is empty"))
	}
	if len(c.Templates) == 0 && !c.Filtered {
		errs = append(errs, errors.New("config has no templates"))
	}
	if !c.MinGridSize.Positive() {
		errs = append(errs, fmt.Errorf("minimum grid size %s must be positive", c.MinGridSize))
	}
	if !known(c.SortStrategy, strategies) {
		errs = append(errs, fmt.Errorf("unknown sort strategy %q", c.SortStrategy))
	}
	if c.TimeBudget < 0 {
		errs = append(errs, fmt.Errorf("time budget %s is negative", c.TimeBudget))
	}

	seen := make(map[string]bool, len(c.Templates))
	for i, t := range c.Templates {
		if t.ID != "" && seen[t.ID] {
			errs = append(errs, fmt.Errorf("template %d: duplicate id %q", i, t.ID))
		}
		seen[t.ID] = true
		if err := t.Validate(cat); err != nil {
			errs = append(errs, fmt.Errorf("template %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks a single template.
func (t Template) Validate(cat catalog.Catalog) error {
	var errs []error
	if t.ID == "" {
		errs = append(errs, errors.New("id is empty"))
	} else if strings.Contains(t.ID, UnitSeparator) {
		errs = append(errs, fmt.Errorf("id %q may not contain %q", t.ID, UnitSeparator))
	}
	if t.ItemKind == "" {
		errs = append(errs, errors.New("item kind is empty"))
	} else if cat != nil {
		k, ok := cat.Resolve(t.ItemKind)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("item kind %q is not in the catalog", t.ItemKind))
		case !t.Footprint.Positive() && !k.Size.Positive():
			errs = append(errs, fmt.Errorf("item kind %q has no usable size", t.ItemKind))
		}
	} else if !t.Footprint.Positive() {
		errs = append(errs, errors.New("no catalog and no footprint override"))
	}
	if t.Quantity < 1 {
		errs = append(errs, fmt.Errorf("quantity %d must be at least 1", t.Quantity))
	}
	if !known(t.Mode, modes) {
		errs = append(errs, fmt.Errorf("unknown mode %q", t.Mode))
	}
	if !known(t.Priority, priorities) {
		errs = append(errs, fmt.Errorf("unknown priority %q", t.Priority))
	}
	if !known(t.ScanPattern, patterns) {
		errs = append(errs, fmt.Errorf("unknown scan pattern %q", t.ScanPattern))
	}
	if !known(t.ConflictPolicy, policies) {
		errs = append(errs, fmt.Errorf("unknown conflict policy %q", t.ConflictPolicy))
	}
	switch t.Mode {
	case ModeAreaConstrained:
		if t.ConstrainedArea.Empty() {
			errs = append(errs, errors.New("area_constrained mode needs a constrained area with positive extent"))
		}
	case ModeExact:
		if t.ExactPosition.X < 0 || t.ExactPosition.Y < 0 {
			errs = append(errs, fmt.Errorf("exact position %s is negative", t.ExactPosition))
		}
	}
	if t.Footprint != (grid.Size{}) && !t.Footprint.Positive() {
		errs = append(errs, fmt.Errorf("footprint override %s must be positive", t.Footprint))
	}
	if p := t.Chance(); p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("spawn chance %g is outside [0,1]", p))
	}
	if t.MaxRetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("max retry attempts %d is negative", t.MaxRetryAttempts))
	}
	return errors.Join(errs...)
}
