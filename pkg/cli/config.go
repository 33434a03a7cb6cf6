package cli

import (
	"context"
	"path/filepath"
	"time"

	pctx "github.com/dorkodu/pharpub/pkg/context"
)

// Config holds the global CLI settings
type Config struct {
	ConfigFile  string
	ProjectRoot string
	Verbosity   string
	LogFile     string
	NoColor     bool
	Version     string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		ProjectRoot: ".",
		Verbosity:   "info",
	}
}

// Root returns the absolute project root
func (c *Config) Root() string {
	if abs, err := filepath.Abs(c.ProjectRoot); err == nil {
		return abs
	}
	return c.ProjectRoot
}

// RuntimeConfig holds per-command runtime state
type RuntimeConfig struct {
	Config    *Config
	Context   context.Context
	StartTime time.Time
	BuildID   string
}

// NewRuntimeConfig stamps ctx with a build ID and start time
func NewRuntimeConfig(cfg *Config, ctx context.Context) *RuntimeConfig {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = pctx.EnrichContext(ctx)

	return &RuntimeConfig{
		Config:    cfg,
		Context:   ctx,
		StartTime: pctx.GetStartTime(ctx),
		BuildID:   pctx.GetBuildID(ctx),
	}
}
