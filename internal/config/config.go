package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/AngelCh415/disparos-etl/internal/ingest"
)

type Config struct {
	Port        string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s" validate:"gt=0"`
	LogLevelRaw string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogLevel    slog.Level    `ignored:"true"`

	// exports remotos (opcional)
	LeadsURL      string `envconfig:"LEADS_URL" validate:"omitempty,url"`
	DispatchesURL string `envconfig:"DISPATCHES_URL" validate:"omitempty,url"`
	FetchRetries  int    `envconfig:"FETCH_RETRIES" default:"3" validate:"gte=0,lte=10"`

	MaxUploadBytes int64   `envconfig:"MAX_UPLOAD_BYTES" default:"33554432" validate:"gt=0"`
	UploadRPS      float64 `envconfig:"UPLOAD_RPS" default:"2" validate:"gt=0"`
	UploadBurst    int     `envconfig:"UPLOAD_BURST" default:"4" validate:"gt=0"`

	// reglas de normalización
	ExcludedChannels  []string `envconfig:"EXCLUDED_CHANNELS"`
	LeadTeamContains  string   `envconfig:"LEAD_TEAM_CONTAINS"`
	MinDateRaw        string   `envconfig:"MIN_DATE" validate:"omitempty,datetime=2006-01-02"`
	CategoryRulesFile string   `envconfig:"CATEGORY_RULES_FILE" validate:"omitempty,file"`

	TraceStdout bool `envconfig:"TRACE_STDOUT" default:"false"`
}

// FromEnv loads and validates the configuration from the environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config from env: %w", err)
	}
	if cfg.ExcludedChannels == nil {
		cfg.ExcludedChannels = append([]string(nil), ingest.DefaultExcludedChannels...)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	if (cfg.LeadsURL == "") != (cfg.DispatchesURL == "") {
		return Config{}, fmt.Errorf("config validation failed: LEADS_URL and DISPATCHES_URL must be set together")
	}
	cfg.LogLevel = parseLevel(cfg.LogLevelRaw)
	return cfg, nil
}

// NormalizerOptions maps the config onto ingest options.
func (c Config) NormalizerOptions() ingest.Options {
	opts := ingest.DefaultOptions()
	opts.ExcludedChannels = c.ExcludedChannels
	opts.TeamContains = strings.TrimSpace(c.LeadTeamContains)
	if c.MinDateRaw != "" {
		if d, err := time.Parse("2006-01-02", c.MinDateRaw); err == nil {
			opts.MinDate = &d
		}
	}
	return opts
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
