package template

import (
	"fmt"
	"strings"
)

// Mode selects the region a template scans for a position.
type Mode string

const (
	ModeExact           Mode = "exact"
	ModeSmart           Mode = "smart"
	ModeAreaConstrained Mode = "area_constrained"
	ModePriority        Mode = "priority"
)

// Priority orders templates; Critical is the most important.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
	PriorityOptional Priority = "optional"
)

// ScanPattern is the order candidate positions are tried in.
type ScanPattern string

const (
	ScanLeftToRight     ScanPattern = "left_to_right"
	ScanTopToBottom     ScanPattern = "top_to_bottom"
	ScanSpiralOut       ScanPattern = "spiral_out"
	ScanCenterToEdge    ScanPattern = "center_to_edge"
	ScanLargestGapFirst ScanPattern = "largest_gap_first"
)

// ConflictPolicy is the fallback when the first-choice region has no room.
type ConflictPolicy string

const (
	ConflictSkip         ConflictPolicy = "skip"
	ConflictRotate       ConflictPolicy = "rotate"
	ConflictRelocate     ConflictPolicy = "relocate"
	ConflictDefer        ConflictPolicy = "defer"
	ConflictForceReplace ConflictPolicy = "force_replace"
)

// SortStrategy is the order templates are processed in.
type SortStrategy string

const (
	SortPriorityThenArea SortStrategy = "priority_then_area"
	SortAreaThenPriority SortStrategy = "area_then_priority"
	SortPriority         SortStrategy = "priority"
	SortArea             SortStrategy = "area"
	SortRandom           SortStrategy = "random"
	SortDeclaration      SortStrategy = "declaration"
)

var (
	modes      = []Mode{ModeExact, ModeSmart, ModeAreaConstrained, ModePriority}
	priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityOptional}
	patterns   = []ScanPattern{ScanLeftToRight, ScanTopToBottom, ScanSpiralOut, ScanCenterToEdge, ScanLargestGapFirst}
	policies   = []ConflictPolicy{ConflictSkip, ConflictRotate, ConflictRelocate, ConflictDefer, ConflictForceReplace}
	strategies = []SortStrategy{SortPriorityThenArea, SortAreaThenPriority, SortPriority, SortArea, SortRandom, SortDeclaration}
)

// normalize folds "AreaConstrained", "area-constrained" and
// "area_constrained" onto the same key.
func normalize(s string) string {
	r := strings.NewReplacer("_", "", "-", "", " ", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(s)))
}

func parseEnum[T ~string](what, s string, values []T) (T, error) {
	key := normalize(s)
	for _, v := range values {
		if normalize(string(v)) == key {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q", what, s)
}

func known[T ~string](v T, values []T) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func ParseMode(s string) (Mode, error) { return parseEnum("mode", s, modes) }
func ParsePriority(s string) (Priority, error) {
	return parseEnum("priority", s, priorities)
}
func ParseScanPattern(s string) (ScanPattern, error) {
	return parseEnum("scan pattern", s, patterns)
}
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	return parseEnum("conflict policy", s, policies)
}
func ParseSortStrategy(s string) (SortStrategy, error) {
	return parseEnum("sort strategy", s, strategies)
}

func (m *Mode) UnmarshalText(b []byte) (err error) {
	*m, err = ParseMode(string(b))
	return err
}

func (p *Priority) UnmarshalText(b []byte) (err error) {
	*p, err = ParsePriority(string(b))
	return err
}

func (s *ScanPattern) UnmarshalText(b []byte) (err error) {
	*s, err = ParseScanPattern(string(b))
	return err
}

func (c *ConflictPolicy) UnmarshalText(b []byte) (err error) {
	*c, err = ParseConflictPolicy(string(b))
	return err
}

func (s *SortStrategy) UnmarshalText(b []byte) (err error) {
	*s, err = ParseSortStrategy(string(b))
	return err
}

// Rank returns 0 for Critical up to 4 for Optional. Unknown priorities
// rank after Optional.
func (p Priority) Rank() int {
	for i, v := range priorities {
		if v == p {
			return i
		}
	}
	return len(priorities)
}
