// Package types provides the publish manifest types
package types

import (
	"path/filepath"

	"github.com/dorkodu/pharpub/pkg/utils"
)

// ManifestVersion is the only manifest version understood
const ManifestVersion = "1.0"

// Manifest describes every publish job of a project
type Manifest struct {
	Version string `json:"version" yaml:"version" toml:"version"`
	Jobs    []Job  `json:"jobs" yaml:"jobs" toml:"jobs"`

	// Parallelism bounds concurrent jobs; 0 means one per CPU
	Parallelism int `json:"parallelism,omitempty" yaml:"parallelism,omitempty" toml:"parallelism,omitempty"`
}

// Job is one archive to publish
type Job struct {
	Name        string         `json:"name" yaml:"name" toml:"name"`
	Source      string         `json:"source" yaml:"source" toml:"source"`
	Output      string         `json:"output" yaml:"output" toml:"output"`
	Pattern     string         `json:"pattern,omitempty" yaml:"pattern,omitempty" toml:"pattern,omitempty"`
	Exclude     []string       `json:"exclude,omitempty" yaml:"exclude,omitempty" toml:"exclude,omitempty"`
	Stub        string         `json:"stub,omitempty" yaml:"stub,omitempty" toml:"stub,omitempty"`
	Runner      string         `json:"runner,omitempty" yaml:"runner,omitempty" toml:"runner,omitempty"`
	Shebang     string         `json:"shebang,omitempty" yaml:"shebang,omitempty" toml:"shebang,omitempty"`
	Compression string         `json:"compression,omitempty" yaml:"compression,omitempty" toml:"compression,omitempty"`
	Buffering   bool           `json:"buffering,omitempty" yaml:"buffering,omitempty" toml:"buffering,omitempty"`
	Basic       bool           `json:"basic,omitempty" yaml:"basic,omitempty" toml:"basic,omitempty"`
	Before      string         `json:"before,omitempty" yaml:"before,omitempty" toml:"before,omitempty"`
	After       string         `json:"after,omitempty" yaml:"after,omitempty" toml:"after,omitempty"`
	Notify      bool           `json:"notify,omitempty" yaml:"notify,omitempty" toml:"notify,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty" toml:"metadata,omitempty"`
}

// OutputPath returns {output}/{name} resolved against root
func (j Job) OutputPath(root string) string {
	return filepath.Join(utils.ResolvePath(root, j.Output), j.Name)
}

// SourceRoot returns the source directory resolved against root
func (j Job) SourceRoot(root string) string {
	return utils.ResolvePath(root, j.Source)
}

// PublishRoot returns the output directory resolved against root
func (j Job) PublishRoot(root string) string {
	return utils.ResolvePath(root, j.Output)
}

// FindJob returns the job with the given name
func (m *Manifest) FindJob(name string) (Job, bool) {
	for _, j := range m.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}
