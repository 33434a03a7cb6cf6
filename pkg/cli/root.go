// Package cli provides the command-line interface for pharpub
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dorkodu/pharpub/pkg/config"
	"github.com/dorkodu/pharpub/pkg/logger"
	"github.com/dorkodu/pharpub/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the CLI reads
const EnvPrefix = "PHARPUB"

// CLI wires the cobra command tree to a Config
type CLI struct {
	config   *Config
	rootCmd  *cobra.Command
	viper    *viper.Viper
	logger   logger.Logger
	console  *logger.Console
	output   io.Writer
	errorOut io.Writer
	plain    bool
}

// NewCLI creates a new CLI instance writing to stdout and stderr
func NewCLI(cfg *Config) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	c := &CLI{
		config:   cfg,
		viper:    viper.New(),
		output:   os.Stdout,
		errorOut: os.Stderr,
	}
	c.setupCommands()
	return c
}

// NewCLIWithOutput creates an uncolored CLI with custom writers (for testing)
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	c := NewCLI(cfg)
	c.output = output
	c.errorOut = errorOut
	c.plain = true
	c.rootCmd.SetOut(output)
	c.rootCmd.SetErr(errorOut)
	return c
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	err := c.rootCmd.ExecuteContext(ctx)
	if err != nil {
		if c.console == nil {
			c.console = logger.NewConsoleWithWriters(c.output, c.errorOut, c.plain)
		}
		c.printError(err.Error())
	}
	return err
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "pharpub",
		Short: "Publish PHP projects as self-extracting executable archives",
		Long: `pharpub packs a PHP source tree into a single executable archive:
an sh bootstrap stub followed by a zip container, with optional gzip
compression, metadata and before/after hooks.

Jobs are described in pharpub.config.{json,yaml,yml,toml}.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.initializeConfig,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("pharpub v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newPublishCmd())
	c.rootCmd.AddCommand(c.newInitCmd())
	c.rootCmd.AddCommand(c.newValidateCmd())
	c.rootCmd.AddCommand(c.newInspectCmd())
	c.rootCmd.AddCommand(c.newWatchCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", "", "manifest file (default: pharpub.config.* in the project root)")
	flags.StringVar(&c.config.ProjectRoot, "root", ".", "project root directory")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&c.config.LogFile, "log-file", "", "also append log output to this file")
	flags.BoolVar(&c.config.NoColor, "no-color", false, "disable colored output")
}

// initializeConfig overlays PHARPUB_* environment variables on unset flags
func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	c.viper.SetEnvPrefix(EnvPrefix)
	c.viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.viper.AutomaticEnv()

	if err := c.viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	c.config.ConfigFile = c.viper.GetString("config")
	c.config.ProjectRoot = c.viper.GetString("root")
	c.config.Verbosity = c.viper.GetString("verbosity")
	c.config.LogFile = c.viper.GetString("log-file")
	c.config.NoColor = c.viper.GetBool("no-color") || c.plain

	if c.plain {
		c.logger = logger.NewWithOutput(c.config.Verbosity, c.errorOut)
	} else {
		c.logger = logger.New(c.config.LogFile, c.config.Verbosity)
	}
	c.console = logger.NewConsoleWithWriters(c.output, c.errorOut, c.config.NoColor)
	return nil
}

// configPath returns --config, or the first manifest found in the root
func (c *CLI) configPath() (string, error) {
	if c.config.ConfigFile != "" {
		return c.config.ConfigFile, nil
	}
	return config.FindConfig(c.config.Root())
}

// loadManifest loads the manifest and returns its directory, which job
// paths and hook commands are relative to
func (c *CLI) loadManifest() (*types.Manifest, string, error) {
	path, err := c.configPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.NewManager().LoadConfig(path)
	if err != nil {
		return nil, "", err
	}

	root, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, "", err
	}
	return cfg, root, nil
}

// selectJobs returns the named jobs, or every job when names is empty
func selectJobs(cfg *types.Manifest, names []string) ([]types.Job, error) {
	if len(names) == 0 {
		return cfg.Jobs, nil
	}
	jobs := make([]types.Job, 0, len(names))
	for _, name := range names {
		job, ok := cfg.FindJob(name)
		if !ok {
			return nil, fmt.Errorf("job '%s' not found", name)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (c *CLI) printSuccess(message string) { c.console.Success(message) }
func (c *CLI) printError(message string)   { c.console.Error(message) }
func (c *CLI) printInfo(message string)    { c.console.Info(message) }
func (c *CLI) printWarning(message string) { c.console.Warn(message) }
