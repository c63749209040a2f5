package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/DrSkyle/gridspawn/pkg/engine/report"
	"github.com/DrSkyle/gridspawn/pkg/engine/spawn"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/storage"
)

// Export renders res in every format and uploads the reports to target,
// a storage URL such as s3://bucket/reports or a local directory. It
// returns the keys written.
func (e *Engine) Export(ctx context.Context, target string, res *spawn.Result, g grid.Grid, formats ...report.Format) ([]string, error) {
	store, prefix, err := storage.Open(ctx, target, e.config.AWS)
	if err != nil {
		return nil, fmt.Errorf("failed to open export target: %w", err)
	}
	return e.ExportTo(ctx, store, prefix, res, g, formats...)
}

// ExportTo is Export with an already opened store. Keys are
// <prefix>/<container>/<run id>.<ext>. A failed upload does not stop the
// others; all failures are returned together.
func (e *Engine) ExportTo(ctx context.Context, store storage.BlobStore, prefix string, res *spawn.Result, g grid.Grid, formats ...report.Format) ([]string, error) {
	if len(formats) == 0 {
		formats = []report.Format{report.FormatJSON}
	}
	dir := path.Join(prefix, strings.ReplaceAll(res.ContainerID, "/", "_"))

	e.Logger.Info("Exporting reports", "prefix", dir, "formats", len(formats))

	var keys []string
	var errs []error
	for _, f := range formats {
		var buf bytes.Buffer
		if err := report.Render(&buf, f, res, g); err != nil {
			errs = append(errs, err)
			continue
		}
		key := path.Join(dir, res.RunID+f.Extension())
		if err := store.Put(ctx, key, buf.Bytes()); err != nil {
			e.Logger.Warn("Failed to upload report", "key", key, "error", err)
			errs = append(errs, fmt.Errorf("failed to upload %s: %w", key, err))
			continue
		}
		keys = append(keys, key)
	}
	return keys, errors.Join(errs...)
}
