// Package config defines the engine settings and their defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/DrSkyle/gridspawn/pkg/engine"
	"github.com/DrSkyle/gridspawn/pkg/engine/report"
	"github.com/DrSkyle/gridspawn/pkg/storage"
)

// Defaults.
const (
	DefaultRegion    = "us-east-1"
	DefaultLedgerURL = "file://.gridspawn/ledger"
	EnvPrefix        = "GRIDSPAWN"
)

// Settings is everything the CLI reads from ~/.gridspawn.yaml, GRIDSPAWN_*
// variables and flags.
type Settings struct {
	Ledger    LedgerSettings    `mapstructure:"ledger"`
	AWS       AWSSettings       `mapstructure:"aws"`
	Log       LogSettings       `mapstructure:"log"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	Spawn     SpawnSettings     `mapstructure:"spawn"`
	Notify    NotifySettings    `mapstructure:"notify"`
}

type LedgerSettings struct {
	// URL selects the backend, for example sqlite:///var/lib/gridspawn.db.
	URL string `mapstructure:"url"`
	// CreateTable creates the DynamoDB table when it is missing.
	CreateTable bool `mapstructure:"create_table"`
}

type AWSSettings struct {
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
	// Endpoint overrides the service endpoint (LocalStack).
	Endpoint string `mapstructure:"endpoint"`
}

type LogSettings struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type TelemetrySettings struct {
	Endpoint string `mapstructure:"endpoint"`
	Disabled bool   `mapstructure:"disabled"`
}

// NotifySettings configures the post-run Slack message.
type NotifySettings struct {
	SlackWebhook string `mapstructure:"slack_webhook"`
	SlackChannel string `mapstructure:"slack_channel"`
}

// DefaultSettings returns a configuration with sensible default values.
func DefaultSettings() Settings {
	return Settings{
		Ledger: LedgerSettings{URL: DefaultLedgerURL},
		AWS:    AWSSettings{Region: DefaultRegion},
		Log:    LogSettings{Level: "info"},
		Spawn:  DefaultSpawnSettings(),
	}
}

// setDefaults registers every key so environment variables are seen by
// Unmarshal even when the config file does not mention them.
func setDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("ledger.url", d.Ledger.URL)
	v.SetDefault("ledger.create_table", d.Ledger.CreateTable)
	v.SetDefault("aws.region", d.AWS.Region)
	v.SetDefault("aws.profile", d.AWS.Profile)
	v.SetDefault("aws.endpoint", d.AWS.Endpoint)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.disabled", d.Telemetry.Disabled)
	v.SetDefault("spawn.seed", d.Spawn.Seed)
	v.SetDefault("spawn.apply_chance", d.Spawn.ApplyChance)
	v.SetDefault("spawn.interval", d.Spawn.Interval)
	v.SetDefault("spawn.budget", d.Spawn.Budget)
	v.SetDefault("spawn.format", d.Spawn.Format)
	v.SetDefault("spawn.export_to", d.Spawn.ExportTo)
	v.SetDefault("notify.slack_webhook", d.Notify.SlackWebhook)
	v.SetDefault("notify.slack_channel", d.Notify.SlackChannel)
}

// Load reads settings into v from path, or from ~/.gridspawn.yaml when
// path is empty. A missing default file is not an error.
func Load(v *viper.Viper, path string) (Settings, error) {
	setDefaults(v, DefaultSettings())

	explicit := path != ""
	if !explicit {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".gridspawn.yaml")
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
				return Settings{}, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s, s.Validate()
}

// Validate checks values that flags and files can get wrong.
func (s Settings) Validate() error {
	var errs []error
	if s.Spawn.Budget < 0 {
		errs = append(errs, fmt.Errorf("spawn.budget %d is negative", s.Spawn.Budget))
	}
	if s.Spawn.Interval < 0 {
		errs = append(errs, fmt.Errorf("spawn.interval %s is negative", s.Spawn.Interval))
	}
	if _, err := report.ParseFormat(s.Spawn.Format); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Engine maps the settings onto an engine.Config.
func (s Settings) Engine() engine.Config {
	return engine.Config{
		LedgerURL:   s.Ledger.URL,
		CreateTable: s.Ledger.CreateTable,
		AWS: storage.AWSOptions{
			Region:   s.AWS.Region,
			Profile:  s.AWS.Profile,
			Endpoint: s.AWS.Endpoint,
		},
		Seed:          s.Spawn.Seed,
		Interval:      s.Spawn.Interval,
		ApplyChance:   s.Spawn.ApplyChance,
		LogLevel:      s.Log.Level,
		JSONLogs:      s.Log.JSON,
		OtelEndpoint:  s.Telemetry.Endpoint,
		SkipTelemetry: s.Telemetry.Disabled,
	}
}
