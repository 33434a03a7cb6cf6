package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dorkodu/pharpub/internal/engine"
	"github.com/dorkodu/pharpub/internal/watch"
	"github.com/spf13/cobra"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	var settling time.Duration

	cmd := &cobra.Command{
		Use:   "watch [job...]",
		Short: "Re-publish archives whenever their sources change",
		Long: `Publish the selected jobs (all by default), then watch their source
directories and re-publish a job whenever its files change.

Output directories are never watched, even when they lie inside the
source tree.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), args, settling)
		},
	}

	cmd.Flags().DurationVar(&settling, "settle", watch.DefaultSettlingDelay, "quiet period before a change triggers a publish")
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, names []string, settling time.Duration) error {
	cfg, root, err := c.loadManifest()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	jobs, err := selectJobs(cfg, names)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	rc := NewRuntimeConfig(c.config, ctx)
	runner := engine.NewRunner(root, c.logger, engine.WithConsole(c.console))

	c.printInfo(fmt.Sprintf("Watching %d job(s), press Ctrl+C to stop", len(jobs)))
	if err := watch.Jobs(rc.Context, runner, root, jobs, c.logger, settling); err != nil {
		return err
	}

	c.printSuccess("Stopped watching")
	return nil
}
