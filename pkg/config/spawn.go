package config

import "time"

// SpawnSettings tunes how the CLI runs spawns.
type SpawnSettings struct {
	// Seed fixes sorting and the probability filter; zero is time-based.
	Seed uint64 `mapstructure:"seed"`
	// ApplyChance runs the probability filter on every config.
	ApplyChance bool `mapstructure:"apply_chance"`
	// Interval is the pause between instances in cooperative mode.
	Interval time.Duration `mapstructure:"interval"`
	// Budget is the number of instances per cooperative tick.
	Budget int `mapstructure:"budget"`
	// Format is the report format: text, json, csv or html.
	Format string `mapstructure:"format"`
	// ExportTo is a storage URL reports are uploaded to after each run.
	ExportTo string `mapstructure:"export_to"`
}

// DefaultSpawnSettings returns the spawn defaults.
func DefaultSpawnSettings() SpawnSettings {
	return SpawnSettings{
		Budget: 1,
		Format: "text",
	}
}
