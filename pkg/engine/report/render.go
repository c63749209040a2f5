package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/DrSkyle/gridspawn/pkg/engine/spawn"
	"github.com/DrSkyle/gridspawn/pkg/grid"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// ParseFormat accepts the format names case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatCSV, FormatHTML:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text, json, csv or html)", s)
}

// Extension is the file extension used when a report is exported.
func (f Format) Extension() string {
	if f == FormatText {
		return ".txt"
	}
	return "." + string(f)
}

// Render writes res in format f. g is only used by the HTML page.
func Render(w io.Writer, f Format, res *spawn.Result, g grid.Grid) error {
	switch f {
	case FormatText, "":
		return WriteText(w, res)
	case FormatJSON:
		return WriteJSON(w, res)
	case FormatCSV:
		return WriteCSV(w, res)
	case FormatHTML:
		return WriteHTML(w, res, g)
	}
	return fmt.Errorf("unknown report format %q", f)
}
