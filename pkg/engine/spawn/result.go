package spawn

import (
	"fmt"
	"strings"
	"time"

	"github.com/DrSkyle/gridspawn/pkg/grid"
)

// Status is the terminal state of one unit instance.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusSkipped         Status = "skipped"
	StatusFailed          Status = "failed"
	StatusConditionNotMet Status = "condition_not_met"
)

// Failure and skip reasons reported in outcomes.
const (
	ReasonNoPosition       = "no position"
	ReasonValidationFailed = "validation failed"
	ReasonCreationFailed   = "creation failed"
	ReasonAlreadySpawned   = "already spawned"
	ReasonConfigInvalid    = "config invalid"
	ReasonTypeMismatch     = "container type mismatch"
	ReasonConditionFalse   = "condition false"
)

// Outcome is the result for one unit instance.
type Outcome struct {
	InstanceID string        `json:"instance_id"`
	TemplateID string        `json:"template_id"`
	ItemKind   string        `json:"item_kind"`
	Status     Status        `json:"status"`
	Position   grid.Position `json:"position"`
	Footprint  grid.Size     `json:"footprint"`
	Rotated    bool          `json:"rotated"`
	Handle     string        `json:"handle,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Replaced   []string      `json:"replaced,omitempty"` // ids evicted by force_replace
	Elapsed    time.Duration `json:"elapsed"`
}

// Rect is the area the outcome occupies; only meaningful on success.
func (o Outcome) Rect() grid.Rect {
	return grid.RectAt(o.Position, o.Footprint)
}

// Result aggregates one spawn run.
type Result struct {
	RunID       string    `json:"run_id"`
	ContainerID string    `json:"container_id"`
	ConfigName  string    `json:"config_name"`
	StartedAt   time.Time `json:"started_at"`

	// Total is the number of unit instances the config asked for.
	Total           int  `json:"total"`
	Successful      int  `json:"successful"`
	Skipped         int  `json:"skipped"`
	Failed          int  `json:"failed"`
	ConditionNotMet int  `json:"condition_not_met"`
	Aborted         bool `json:"aborted"`

	Elapsed time.Duration `json:"elapsed"`

	// PerTemplate counts successes by original template id.
	PerTemplate map[string]int `json:"per_template"`
	Outcomes    []Outcome      `json:"outcomes"`
}

func newResult(runID, containerID, configName string, total int, started time.Time) *Result {
	return &Result{
		RunID:       runID,
		ContainerID: containerID,
		ConfigName:  configName,
		StartedAt:   started,
		Total:       total,
		PerTemplate: make(map[string]int),
	}
}

func (r *Result) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusSuccess:
		r.Successful++
		r.PerTemplate[o.TemplateID]++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	case StatusConditionNotMet:
		r.ConditionNotMet++
	}
}

// Processed is the number of instances that reached a terminal state.
func (r *Result) Processed() int { return len(r.Outcomes) }

// Unprocessed is the number of instances an abort left untouched.
func (r *Result) Unprocessed() int { return max(r.Total-len(r.Outcomes), 0) }

// OK reports whether every requested instance was placed or skipped.
func (r *Result) OK() bool {
	return !r.Aborted && r.Failed == 0 && r.ConditionNotMet == 0 && r.Unprocessed() == 0
}

// ByTemplate returns the outcomes of one template in processing order.
func (r *Result) ByTemplate(templateID string) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.TemplateID == templateID {
			out = append(out, o)
		}
	}
	return out
}

// Summary renders a one-line human readable summary.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s @ %s: %d/%d spawned, %d skipped, %d failed",
		r.ConfigName, r.ContainerID, r.Successful, r.Total, r.Skipped, r.Failed)
	if r.ConditionNotMet > 0 {
		fmt.Fprintf(&b, ", %d condition not met", r.ConditionNotMet)
	}
	if r.Aborted {
		fmt.Fprintf(&b, ", aborted with %d unprocessed", r.Unprocessed())
	}
	fmt.Fprintf(&b, " in %s", r.Elapsed.Round(time.Microsecond))
	return b.String()
}
