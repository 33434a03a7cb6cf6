package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/dorkodu/pharpub/internal/engine"
	"github.com/dorkodu/pharpub/pkg/archive"
	"github.com/dorkodu/pharpub/pkg/notifier"
	"github.com/dorkodu/pharpub/pkg/utils"
	"github.com/spf13/cobra"
)

func (c *CLI) newPublishCmd() *cobra.Command {
	var parallel int

	cmd := &cobra.Command{
		Use:   "publish [job...]",
		Short: "Publish archives",
		Long: `Publish every job of the manifest, or only the named ones.

Jobs run concurrently; a failing job does not stop the others.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPublish(cmd.Context(), args, parallel)
		},
	}

	cmd.Flags().IntVarP(&parallel, "jobs", "j", 0, "maximum concurrent jobs (default: manifest parallelism, then one per CPU)")
	return cmd
}

func (c *CLI) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the manifest",
		Long:  `Check that the manifest is valid and that every job's paths make sense.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate()
		},
	}
}

func (c *CLI) newInspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Show the contents of a published archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the archive description as JSON")
	return cmd
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of pharpub",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.output, "pharpub v%s (%s %s/%s)\n", c.version(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

func (c *CLI) version() string {
	if c.config.Version == "" {
		return "dev"
	}
	return c.config.Version
}

// Implementation functions

func (c *CLI) runPublish(ctx context.Context, names []string, parallel int) error {
	cfg, root, err := c.loadManifest()
	if err != nil {
		return err
	}
	jobs, err := selectJobs(cfg, names)
	if err != nil {
		return err
	}
	if parallel <= 0 {
		parallel = cfg.Parallelism
	}

	rc := NewRuntimeConfig(c.config, ctx)
	runner := engine.NewRunner(root, c.logger, engine.WithConsole(c.console))

	results, err := runner.Run(rc.Context, jobs, parallel)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			c.printError(fmt.Sprintf("%s: %v", res.Job, res.Err))
			continue
		}
		size := ""
		if info, statErr := os.Stat(res.Path); statErr == nil {
			size = ", " + utils.FormatBytes(info.Size())
		}
		c.printSuccess(fmt.Sprintf("%s (%s%s)", res.Path, notifier.FormatDuration(res.Duration), size))
	}

	if err != nil {
		return fmt.Errorf("%d of %d job(s) failed", failed, len(results))
	}
	return nil
}

func (c *CLI) runValidate() error {
	path, err := c.configPath()
	if err != nil {
		return err
	}
	cfg, root, err := c.loadManifest()
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	var warnings []string
	for _, job := range cfg.Jobs {
		source := job.SourceRoot(root)
		if !utils.DirectoryExists(source) {
			warnings = append(warnings, fmt.Sprintf("Job '%s': source directory %s does not exist", job.Name, source))
			continue
		}
		if utils.IsWithin(source, job.PublishRoot(root)) {
			warnings = append(warnings, fmt.Sprintf("Job '%s': output directory lies inside the source tree", job.Name))
		}
		entry := job.Stub
		if entry == "" {
			entry = archive.DefaultEntry
		}
		if !utils.FileExists(filepath.Join(source, filepath.FromSlash(entry))) {
			warnings = append(warnings, fmt.Sprintf("Job '%s': entry file %s not found in source", job.Name, entry))
		}
	}

	if len(warnings) > 0 {
		c.printWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(c.output, "  ⚠ %s\n", w)
		}
	}

	c.printSuccess(fmt.Sprintf("Configuration is valid: %s (%d job(s))", path, len(cfg.Jobs)))
	return nil
}

func (c *CLI) runInspect(path string, asJSON bool) error {
	info, err := archive.Inspect(path)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(c.output)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	compression := archive.None
	if info.Compressed(archive.GZ) {
		compression = archive.GZ
	}

	out := c.output
	fmt.Fprintf(out, "Archive:     %s\n", info.Path)
	fmt.Fprintf(out, "Size:        %s\n", utils.FormatBytes(info.Size))
	fmt.Fprintf(out, "Mode:        %s\n", info.Mode.Perm())
	fmt.Fprintf(out, "Checksum:    %s\n", info.Checksum)
	fmt.Fprintf(out, "Compression: %s\n", compression)
	fmt.Fprintf(out, "Stub:        %d line(s)\n", strings.Count(info.Stub, "\n"))

	if len(info.Metadata) > 0 {
		keys := make([]string, 0, len(info.Metadata))
		for k := range info.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(out, "Metadata:")
		for _, k := range keys {
			fmt.Fprintf(out, "  %s = %v\n", k, info.Metadata[k])
		}
	}

	fmt.Fprintf(out, "Entries:     %d\n", len(info.Entries))
	for _, e := range info.Entries {
		fmt.Fprintf(out, "  %-40s %10s\n", e.Name, utils.FormatBytes(int64(e.Size)))
	}
	return nil
}
