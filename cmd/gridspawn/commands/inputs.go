package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/DrSkyle/gridspawn/pkg/catalog"
	"github.com/DrSkyle/gridspawn/pkg/engine"
	"github.com/DrSkyle/gridspawn/pkg/grid"
	"github.com/DrSkyle/gridspawn/pkg/template"
)

// inputFlags are the files most commands read.
type inputFlags struct {
	file      string
	gridFile  string
	width     int
	height    int
	catalog   string
	container string
	vars      []string
}

func (f *inputFlags) register(cmd *cobra.Command, withGrid bool) {
	fs := cmd.Flags()
	fs.StringVarP(&f.file, "file", "f", "", "Spawn config (.yaml or .hcl)")
	fs.StringVar(&f.catalog, "catalog", "", "Item catalog (.yaml)")
	fs.StringArrayVar(&f.vars, "var", nil, "HCL variable key=value (repeatable)")
	_ = cmd.MarkFlagRequired("file")
	if withGrid {
		fs.StringVar(&f.gridFile, "grid", "", "Grid snapshot (.yaml)")
		fs.IntVar(&f.width, "width", 0, "Grid width when no snapshot is given")
		fs.IntVar(&f.height, "height", 0, "Grid height when no snapshot is given")
		fs.StringVar(&f.container, "container", "", "Container id the ledger tracks")
		_ = cmd.MarkFlagRequired("container")
	}
}

type inputs struct {
	cfg     *template.SpawnConfig
	catalog *catalog.MemoryCatalog
	grid    *grid.MemoryGrid
}

func (f *inputFlags) load(withGrid bool) (*inputs, error) {
	cfg, err := engine.LoadSpawnConfig(f.file, f.vars)
	if err != nil {
		return nil, err
	}
	cat, err := engine.LoadCatalog(f.catalog)
	if err != nil {
		return nil, err
	}
	in := &inputs{cfg: cfg, catalog: cat}
	if !withGrid {
		return in, nil
	}
	if f.gridFile == "" && (f.width == 0 || f.height == 0) {
		return nil, errors.New("either --grid or --width and --height are required")
	}
	if in.grid, err = engine.LoadGrid(f.gridFile, f.width, f.height); err != nil {
		return nil, err
	}
	return in, nil
}
