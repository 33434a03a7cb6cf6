package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/dorkodu/pharpub/pkg/archive"
	pctx "github.com/dorkodu/pharpub/pkg/context"
	"github.com/dorkodu/pharpub/pkg/logger"
	"github.com/dorkodu/pharpub/pkg/notifier"
	"github.com/dorkodu/pharpub/pkg/publisher"
	"github.com/dorkodu/pharpub/pkg/types"
	"github.com/dorkodu/pharpub/pkg/utils"
)

// Result is the outcome of one job
type Result struct {
	Job      string
	Path     string
	BuildID  string
	Duration time.Duration
	Err      error
}

// Publishable is what both publisher flavours expose to the engine
type Publishable interface {
	Name() string
	OutputPath() string
	SetFilePattern(pattern string)
	SetDefaultStub(fileName string)
	SetBeforeEffect(v any) bool
	SetAfterEffect(v any) bool
	Publish() error
}

// Runner publishes manifest jobs relative to a project root
type Runner struct {
	root     string
	env      archive.Capabilities
	console  *logger.Console
	log      logger.Logger
	notifier *notifier.PublishNotifier
}

// RunnerOption customizes a Runner
type RunnerOption func(*Runner)

// WithEnvironment overrides the archive capabilities handed to publishers
func WithEnvironment(env archive.Capabilities) RunnerOption {
	return func(r *Runner) { r.env = env }
}

// WithConsole sets the console used for ">> message" output
func WithConsole(console *logger.Console) RunnerOption {
	return func(r *Runner) { r.console = console }
}

// WithNotifier sets the notifier used by jobs with notify enabled
func WithNotifier(n *notifier.PublishNotifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// NewRunner creates a runner for the project in root
func NewRunner(root string, log logger.Logger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	r := &Runner{
		root: root,
		env:  archive.DefaultEnvironment(),
		log:  log,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.console == nil {
		r.console = logger.NewConsole()
	}
	if r.notifier == nil {
		r.notifier = notifier.New(notifier.Config{Enabled: true}, log)
	}
	return r
}

// Run publishes every job, at most limit at a time (one per CPU when
// limit <= 0). A failing job does not stop the others; the returned error
// joins every job failure.
func (r *Runner) Run(ctx context.Context, jobs []types.Job, limit int) ([]Result, error) {
	ctx = pctx.EnrichContext(ctx)
	buildID := pctx.GetBuildID(ctx)

	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	r.log.Info(fmt.Sprintf("Publishing %d job(s)", len(jobs)), pctx.TracingFields(ctx)...)

	results := make([]Result, len(jobs))
	sg, gctx := NewSafeGroup(ctx, r.log)
	sg.SetLimit(limit)

	for i, job := range jobs {
		results[i] = Result{Job: job.Name, Path: job.OutputPath(r.root), BuildID: buildID}
		sg.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i] = r.publish(pctx.WithJob(gctx, job.Name), job, buildID)
			return nil
		})
	}

	var errs []error
	if err := sg.Wait(); err != nil {
		errs = append(errs, err)
	}
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Job, res.Err))
		}
	}
	return results, errors.Join(errs...)
}

// Publish runs a single job under a fresh build ID
func (r *Runner) Publish(ctx context.Context, job types.Job) Result {
	ctx = pctx.EnrichContext(pctx.WithBuildID(ctx, ""))
	return r.publish(pctx.WithJob(ctx, job.Name), job, pctx.GetBuildID(ctx))
}

func (r *Runner) publish(ctx context.Context, job types.Job, buildID string) Result {
	start := time.Now()
	log := r.log.WithJob(job.Name)
	res := Result{Job: job.Name, Path: job.OutputPath(r.root), BuildID: buildID}

	fail := func(err error) Result {
		res.Err = err
		res.Duration = time.Since(start)
		log.Error("Publish failed", logger.WithField("error", err))
		if job.Notify {
			r.notifier.NotifyPublishFailure(job.Name, err)
		}
		return res
	}

	if err := utils.EnsureDirectory(job.PublishRoot(r.root)); err != nil {
		return fail(fmt.Errorf("failed to create output directory: %w", err))
	}

	p, hooks := r.NewPublisher(ctx, job, buildID)
	if err := p.Publish(); err != nil {
		return fail(err)
	}
	for _, h := range hooks {
		if err := h.Err(); err != nil {
			return fail(err)
		}
	}

	res.Duration = time.Since(start)
	return res
}

// NewPublisher builds the publisher for job and returns the command effects
// it was wired with, so their failures can be checked after Publish.
func (r *Runner) NewPublisher(ctx context.Context, job types.Job, buildID string) (Publishable, []*ExecEffect) {
	log := r.log.WithJob(job.Name)
	sourceRoot := job.SourceRoot(r.root)
	publishRoot := job.PublishRoot(r.root)

	opts := []publisher.Option{
		publisher.WithEnvironment(r.env),
		publisher.WithConsole(r.console),
		publisher.WithLogger(r.log),
		publisher.WithExcludes(job.Exclude...),
	}
	if job.Runner != "" {
		opts = append(opts, publisher.WithRunner(job.Runner))
	}

	var p Publishable
	if job.Basic {
		p = publisher.NewBasic(job.Name, sourceRoot, publishRoot, opts...)
	} else {
		if job.Shebang != "" {
			opts = append(opts, publisher.WithShebang(job.Shebang))
		}
		opts = append(opts, publisher.WithMetadata(buildMetadata(job.Metadata, buildID)))

		ext := publisher.New(job.Name, sourceRoot, publishRoot, opts...)
		if c, _ := archive.ParseCompression(job.Compression); c == archive.GZ {
			ext.DoGZCompression()
		}
		if job.Buffering {
			ext.ShouldDoBuffering(true)
		}
		p = ext
	}

	if job.Pattern != "" {
		p.SetFilePattern(job.Pattern)
	}
	if job.Stub != "" {
		p.SetDefaultStub(job.Stub)
	}

	env := []string{
		"PHARPUB_JOB=" + job.Name,
		"PHARPUB_OUTPUT=" + job.OutputPath(r.root),
		"PHARPUB_BUILD_ID=" + buildID,
	}

	var hooks []*ExecEffect
	if job.Before != "" {
		before := NewExecEffect(ctx, job.Before, r.root, env, log)
		p.SetBeforeEffect(before)
		hooks = append(hooks, before)
	}

	var after []publisher.Effect
	switch {
	case job.After != "":
		cmd := NewExecEffect(ctx, job.After, r.root, env, log)
		after = append(after, cmd)
		hooks = append(hooks, cmd)
	case !job.Basic:
		after = append(after, publisher.Announce(r.console, job.Name, publishRoot))
	}
	if job.Notify {
		started := pctx.GetStartTime(ctx)
		after = append(after, publisher.EffectFunc(func() {
			r.notifier.NotifyPublishSuccess(job.Name, publishRoot, time.Since(started))
		}))
	}
	if len(after) > 0 {
		p.SetAfterEffect(publisher.Chain(after...))
	}

	return p, hooks
}

func buildMetadata(metadata map[string]any, buildID string) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out["build_id"] = buildID
	return out
}
