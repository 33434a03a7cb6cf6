// Package publisher turns a directory tree into a single executable archive.
//
// Two publishers are provided. Basic ingests the tree and sets a default stub.
// Publisher additionally checks that the environment may write archives,
// replaces any previous output, supports buffered builds and gzip
// compression, and marks the result executable. Both run an optional before
// effect ahead of any filesystem change and an after effect once the archive
// is final.
//
// A publisher is configured through its setters and consumed by a single
// Publish call.
package publisher

import (
	"path/filepath"

	"github.com/dorkodu/pharpub/pkg/archive"
)

// job holds the configuration shared by both publishers
type job struct {
	name        string
	sourceRoot  string
	publishRoot string
	filePattern string
	defaultStub string

	beforeEffect Effect
	afterEffect  Effect
}

func newJob(name, sourceRoot, publishRoot string) job {
	return job{
		name:        name,
		sourceRoot:  sourceRoot,
		publishRoot: publishRoot,
		defaultStub: archive.DefaultEntry,
	}
}

// Name returns the archive file name
func (j *job) Name() string { return j.name }

// OutputPath returns {publishRoot}/{name}
func (j *job) OutputPath() string {
	return filepath.Join(j.publishRoot, j.name)
}

// SetFilePattern restricts ingestion to files whose path matches pattern.
// The pattern is handed to the archive layer as is.
func (j *job) SetFilePattern(pattern string) {
	j.filePattern = pattern
}

// SetBeforeEffect registers the hook run before publishing. It returns false,
// keeping the previous hook, when v is not invocable.
func (j *job) SetBeforeEffect(v any) bool {
	e, ok := asEffect(v)
	if !ok {
		return false
	}
	j.beforeEffect = e
	return true
}

// SetAfterEffect registers the hook run after publishing. It returns false,
// keeping the previous hook, when v is not invocable.
func (j *job) SetAfterEffect(v any) bool {
	e, ok := asEffect(v)
	if !ok {
		return false
	}
	j.afterEffect = e
	return true
}

// SetDefaultStub sets the entry file the generated stub runs
func (j *job) SetDefaultStub(fileName string) {
	j.defaultStub = fileName
}
