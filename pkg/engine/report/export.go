// Package report renders spawn results for people and for other tools.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/DrSkyle/gridspawn/pkg/engine/spawn"
)

// Row is the flat per-instance record used by the CSV and HTML exports.
type Row struct {
	RunID       string `json:"run_id"`
	ContainerID string `json:"container_id"`
	Config      string `json:"config"`
	InstanceID  string `json:"instance_id"`
	TemplateID  string `json:"template_id"`
	ItemKind    string `json:"item_kind"`
	Status      string `json:"status"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Rotated     bool   `json:"rotated"`
	Handle      string `json:"handle,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Rows flattens a result in processing order.
func Rows(res *spawn.Result) []Row {
	rows := make([]Row, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		rows = append(rows, Row{
			RunID:       res.RunID,
			ContainerID: res.ContainerID,
			Config:      res.ConfigName,
			InstanceID:  o.InstanceID,
			TemplateID:  o.TemplateID,
			ItemKind:    o.ItemKind,
			Status:      string(o.Status),
			X:           o.Position.X,
			Y:           o.Position.Y,
			Width:       o.Footprint.Width,
			Height:      o.Footprint.Height,
			Rotated:     o.Rotated,
			Handle:      o.Handle,
			Reason:      o.Reason,
		})
	}
	return rows
}

var csvHeader = []string{
	"RunID",
	"ContainerID",
	"Config",
	"InstanceID",
	"TemplateID",
	"ItemKind",
	"Status",
	"X",
	"Y",
	"Width",
	"Height",
	"Rotated",
	"Handle",
	"Reason",
}

// WriteCSV writes one line per instance.
func WriteCSV(w io.Writer, res *spawn.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range Rows(res) {
		record := []string{
			r.RunID,
			r.ContainerID,
			r.Config,
			r.InstanceID,
			r.TemplateID,
			r.ItemKind,
			r.Status,
			strconv.Itoa(r.X),
			strconv.Itoa(r.Y),
			strconv.Itoa(r.Width),
			strconv.Itoa(r.Height),
			strconv.FormatBool(r.Rotated),
			r.Handle,
			r.Reason,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// WriteJSON writes the whole result as an indented document.
func WriteJSON(w io.Writer, res *spawn.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
