package publisher

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dorkodu/pharpub/pkg/archive"
	"github.com/dorkodu/pharpub/pkg/logger"
	"github.com/dorkodu/pharpub/pkg/utils"
)

// OutputMode is applied to every archive the extended publisher produces
const OutputMode os.FileMode = 0o770

// ErrArchiveReadOnly is returned when the environment forbids writing archives
var ErrArchiveReadOnly = errors.New("archive layer is read-only")

// Publisher is the extended publisher
type Publisher struct {
	job

	compression archive.Compression
	buffering   bool
	shebang     string
	runner      string
	excludes    []string
	metadata    map[string]any

	env     archive.Capabilities
	console *logger.Console
	log     logger.Logger
}

// Option configures a Publisher or Basic
type Option func(*settings)

type settings struct {
	env      archive.Capabilities
	console  *logger.Console
	log      logger.Logger
	shebang  string
	runner   string
	excludes []string
	metadata map[string]any
}

// WithEnvironment overrides archive.DefaultEnvironment
func WithEnvironment(env archive.Capabilities) Option {
	return func(s *settings) { s.env = env }
}

// WithConsole sets where ">> message" lines go
func WithConsole(console *logger.Console) Option {
	return func(s *settings) { s.console = console }
}

// WithLogger sets the structured logger
func WithLogger(log logger.Logger) Option {
	return func(s *settings) { s.log = log }
}

// WithShebang overrides the interpreter line put in front of the stub
func WithShebang(shebang string) Option {
	return func(s *settings) { s.shebang = shebang }
}

// WithRunner sets the program the stub runs the entry file with
func WithRunner(runner string) Option {
	return func(s *settings) { s.runner = runner }
}

// WithExcludes skips files whose relative path matches any glob
func WithExcludes(patterns ...string) Option {
	return func(s *settings) { s.excludes = append(s.excludes, patterns...) }
}

// WithMetadata stores metadata inside the archive
func WithMetadata(metadata map[string]any) Option {
	return func(s *settings) { s.metadata = metadata }
}

func newSettings(opts []Option) settings {
	s := settings{
		shebang: archive.DefaultShebang,
		runner:  archive.DefaultRunner,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.env == nil {
		s.env = archive.DefaultEnvironment()
	}
	if s.console == nil {
		s.console = logger.NewConsole()
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	return s
}

// New creates an extended publisher. Its after effect defaults to a console
// line announcing the published archive.
func New(name, sourceRoot, publishRoot string, opts ...Option) *Publisher {
	s := newSettings(opts)
	p := &Publisher{
		job:      newJob(name, sourceRoot, publishRoot),
		shebang:  s.shebang,
		runner:   s.runner,
		excludes: s.excludes,
		metadata: s.metadata,
		env:      s.env,
		console:  s.console,
		log:      s.log.WithJob(name),
	}
	p.afterEffect = Announce(s.console, name, publishRoot)
	return p
}

// ShouldDoBuffering turns buffered building on. The argument is ignored:
// any call enables buffering.
func (p *Publisher) ShouldDoBuffering(_ bool) {
	p.buffering = true
}

// DoGZCompression selects gzip compression for every entry
func (p *Publisher) DoGZCompression() {
	p.compression = archive.GZ
}

// Buffering reports whether the next Publish builds in buffered mode
func (p *Publisher) Buffering() bool { return p.buffering }

// Compression returns the selected codec
func (p *Publisher) Compression() archive.Compression { return p.compression }

// Publish builds the archive at OutputPath. A failed build leaves no file
// at OutputPath.
func (p *Publisher) Publish() (err error) {
	if !p.env.CanWrite() {
		p.console.Log("FAILURE : archive layer is readonly. You must unset " + archive.ReadOnlyEnv + " in your environment.")
		p.log.Error("Publish aborted", logger.WithField("reason", "read-only"))
		return ErrArchiveReadOnly
	}

	start := time.Now()
	runEffect(p.beforeEffect)

	output := p.OutputPath()
	if utils.FileExists(output) {
		p.log.Debug("Removing previous archive", logger.WithField("path", output))
		if err := os.Remove(output); err != nil {
			return fmt.Errorf("failed to remove previous archive: %w", err)
		}
	}

	opts := []archive.Option{
		archive.WithEnvironment(p.env),
		archive.WithAlias(p.name),
		archive.WithRunner(p.runner),
		archive.WithExcludes(p.excludes...),
	}
	if p.buffering {
		opts = append(opts, archive.WithBuffering())
	}
	c, err := archive.Open(output, opts...)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		if err != nil {
			p.discard(output)
		}
	}()

	if p.buffering {
		c.StartBuffering()
	}

	added, err := c.BuildFromDirectory(p.sourceRoot, p.filePattern)
	if err != nil {
		return err
	}
	p.log.Debug("Ingested source tree",
		logger.WithField("source", p.sourceRoot),
		logger.WithField("files", len(added)))

	if len(p.metadata) > 0 {
		if err := c.SetMetadata(p.metadata); err != nil {
			return err
		}
	}

	stub := archive.WithShebang(p.shebang, c.CreateDefaultStub(p.defaultStub))
	if err := c.SetStub(stub); err != nil {
		return fmt.Errorf("failed to set stub: %w", err)
	}

	if p.compression != archive.None {
		if p.env.CanCompress(p.compression) {
			if err := c.CompressFiles(p.compression); err != nil {
				return err
			}
		} else {
			p.log.Debug("Compression unavailable, storing entries uncompressed",
				logger.WithField("compression", p.compression))
		}
	}

	if err := c.Chmod(OutputMode); err != nil {
		return err
	}

	if p.buffering {
		if err := c.StopBuffering(); err != nil {
			return err
		}
	}

	p.log.Success("Archive published",
		logger.WithField("path", output),
		logger.WithField("files", c.Count()),
		logger.WithField("duration", time.Since(start).Round(time.Millisecond)))

	runEffect(p.afterEffect)
	return nil
}

// discard removes a partially written archive
func (p *Publisher) discard(output string) {
	if rmErr := os.Remove(output); rmErr != nil && !os.IsNotExist(rmErr) {
		p.log.Warn("Failed to remove partial archive",
			logger.WithField("path", output),
			logger.WithField("error", rmErr))
		return
	}
	p.log.Debug("Discarded partial archive", logger.WithField("path", output))
}
