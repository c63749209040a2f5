// Package condition evaluates template spawn conditions written in CEL.
package condition

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Env is the data a condition can refer to.
type Env struct {
	ContainerID   string
	ContainerType string
	GridWidth     int
	GridHeight    int
	OccupancyRate float64
	Available     int
	TemplateID    string
	ItemKind      string
	Tags          map[string]string
	// Placed is how many units of the template the ledger already holds
	// for the container.
	Placed int
}

func (e Env) activation() map[string]any {
	tags := e.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return map[string]any{
		"container_id":   e.ContainerID,
		"container_type": e.ContainerType,
		"grid_width":     int64(e.GridWidth),
		"grid_height":    int64(e.GridHeight),
		"occupancy_rate": e.OccupancyRate,
		"available":      int64(e.Available),
		"template_id":    e.TemplateID,
		"item_kind":      e.ItemKind,
		"tags":           tags,
		"placed":         int64(e.Placed),
	}
}

// Engine compiles expressions once and caches the programs by source.
type Engine struct {
	env *cel.Env

	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewEngine initializes the CEL environment with the condition variables.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("container_id", cel.StringType),
		cel.Variable("container_type", cel.StringType),
		cel.Variable("grid_width", cel.IntType),
		cel.Variable("grid_height", cel.IntType),
		cel.Variable("occupancy_rate", cel.DoubleType),
		cel.Variable("available", cel.IntType),
		cel.Variable("template_id", cel.StringType),
		cel.Variable("item_kind", cel.StringType),
		cel.Variable("tags", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("placed", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Engine{env: env, programs: make(map[string]cel.Program)}, nil
}

// Compile checks expr and caches its program. The expression must produce
// a bool.
func (e *Engine) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

// Evaluate runs expr against env. An empty expression is always true.
func (e *Engine) Evaluate(expr string, env Env) (bool, error) {
	if expr == "" {
		return true, nil
	}
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(env.activation())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate condition %q: %w", expr, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("condition %q returned %s, want bool", expr, out.Type().TypeName())
	}
	return ok, nil
}

func (e *Engine) program(expr string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.programs[expr]; ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("condition %q compilation error: %w", expr, issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("condition %q has type %s, want bool", expr, out)
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("condition %q program creation error: %w", expr, err)
	}
	e.programs[expr] = prg
	return prg, nil
}
