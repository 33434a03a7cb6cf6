package publisher

import (
	"fmt"

	"github.com/dorkodu/pharpub/pkg/archive"
	"github.com/dorkodu/pharpub/pkg/logger"
)

// Basic is the minimal publisher: ingest, stub, effects
type Basic struct {
	job

	env      archive.Capabilities
	runner   string
	excludes []string
	log      logger.Logger
}

// NewBasic creates a basic publisher. It has no default after effect.
func NewBasic(name, sourceRoot, publishRoot string, opts ...Option) *Basic {
	s := newSettings(opts)
	return &Basic{
		job:      newJob(name, sourceRoot, publishRoot),
		env:      s.env,
		runner:   s.runner,
		excludes: s.excludes,
		log:      s.log.WithJob(name),
	}
}

// Publish builds the archive at OutputPath
func (b *Basic) Publish() error {
	runEffect(b.beforeEffect)

	c, err := archive.Open(b.OutputPath(),
		archive.WithEnvironment(b.env),
		archive.WithAlias(b.name),
		archive.WithRunner(b.runner),
		archive.WithExcludes(b.excludes...),
	)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}

	added, err := c.BuildFromDirectory(b.sourceRoot, b.filePattern)
	if err != nil {
		return err
	}

	if err := c.SetStub(c.CreateDefaultStub(b.defaultStub)); err != nil {
		return fmt.Errorf("failed to set stub: %w", err)
	}
	b.log.Success("Archive published",
		logger.WithField("path", c.Path()),
		logger.WithField("files", len(added)))

	runEffect(b.afterEffect)
	return nil
}
