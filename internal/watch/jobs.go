package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dorkodu/pharpub/internal/engine"
	"github.com/dorkodu/pharpub/pkg/logger"
	"github.com/dorkodu/pharpub/pkg/types"
)

// Publisher is the part of engine.Runner the watch loop needs
type Publisher interface {
	Publish(ctx context.Context, job types.Job) engine.Result
}

// Jobs publishes every job once, then re-publishes a job each time its
// source tree settles after a change. It blocks until ctx is done.
func Jobs(ctx context.Context, runner Publisher, root string, jobs []types.Job, log logger.Logger, settling time.Duration) error {
	if log == nil {
		log = logger.NewNop()
	}
	if settling <= 0 {
		settling = DefaultSettlingDelay
	}

	watchers := make([]*Watcher, 0, len(jobs))
	defer func() {
		for _, w := range watchers {
			w.Close()
		}
	}()

	for _, job := range jobs {
		w, err := New(job.SourceRoot(root), log.WithJob(job.Name),
			WithSettlingDelay(settling),
			WithExclusions(job.Exclude...),
			WithIgnoredDirs(job.PublishRoot(root)))
		if err != nil {
			return fmt.Errorf("job '%s': %w", job.Name, err)
		}
		watchers = append(watchers, w)
	}

	sg, gctx := engine.NewSafeGroup(ctx, log)
	for i, job := range jobs {
		w := watchers[i]
		jobLog := log.WithJob(job.Name)

		sg.Go(func() error {
			report(jobLog, runner.Publish(gctx, job))
			return w.Run(gctx, func(paths []string) {
				jobLog.Info(fmt.Sprintf("%d file(s) changed, re-publishing", len(paths)),
					logger.WithField("first", relative(w.Root(), paths[0])))
				report(jobLog, runner.Publish(gctx, job))
			})
		})
	}
	return sg.Wait()
}

func report(log logger.Logger, res engine.Result) {
	if res.Err != nil {
		log.Error("Publish failed", logger.WithField("error", res.Err))
		return
	}
	log.Info("Publish finished",
		logger.WithField("path", res.Path),
		logger.WithField("duration", res.Duration.Round(time.Millisecond)))
}

func relative(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
