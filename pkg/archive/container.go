// Package archive builds self-contained executable archives: a bootstrap stub
// followed by a zip container whose offsets account for the stub, so the file
// can be executed directly and still be read by any zip tool.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// ReservedPrefix holds entries managed by the archive itself
	ReservedPrefix = ".pharpub/"
	metadataEntry  = ReservedPrefix + "metadata"

	defaultFileMode = 0o644
)

// entry is a file held by the container until the next flush
type entry struct {
	name        string
	data        []byte
	mode        fs.FileMode
	modified    time.Time
	compression Compression
}

// Container is an archive bound to a path on disk. A Container is owned by a
// single publish run and is not safe for concurrent use.
type Container struct {
	path      string
	alias     string
	runner    string
	env       Capabilities
	excludes  excludeSet
	stub      string
	entries   []*entry
	index     map[string]int
	mode      fs.FileMode
	buffering bool
}

// Option configures a Container
type Option func(*options)

type options struct {
	env       Capabilities
	alias     string
	runner    string
	excludes  []string
	buffering bool
}

// WithEnvironment sets the capability source, DefaultEnvironment otherwise
func WithEnvironment(env Capabilities) Option {
	return func(o *options) { o.env = env }
}

// WithAlias names the archive inside its own stub
func WithAlias(alias string) Option {
	return func(o *options) { o.alias = alias }
}

// WithRunner sets the interpreter used by CreateDefaultStub
func WithRunner(runner string) Option {
	return func(o *options) { o.runner = runner }
}

// WithBuffering opens the container already buffering, so nothing reaches
// disk before the first StopBuffering
func WithBuffering() Option {
	return func(o *options) { o.buffering = true }
}

// WithExcludes skips entries whose relative name matches any glob
func WithExcludes(patterns ...string) Option {
	return func(o *options) { o.excludes = append(o.excludes, patterns...) }
}

// Open creates a new, empty archive at path. Unless WithBuffering is given,
// the file exists once Open returns and an existing file at path is truncated.
func Open(path string, opts ...Option) (*Container, error) {
	o := options{runner: DefaultRunner}
	for _, opt := range opts {
		opt(&o)
	}
	if o.env == nil {
		o.env = DefaultEnvironment()
	}
	if !o.env.CanWrite() {
		return nil, ErrReadOnly
	}

	excludes, err := compileExcludes(o.excludes)
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive path: %w", err)
	}

	alias := o.alias
	if alias == "" {
		alias = filepath.Base(absPath)
	}

	c := &Container{
		path:      absPath,
		alias:     alias,
		runner:    o.runner,
		env:       o.env,
		excludes:  excludes,
		index:     make(map[string]int),
		buffering: o.buffering,
	}
	if err := c.flush(); err != nil {
		return nil, err
	}
	return c, nil
}

// Path returns the absolute archive path
func (c *Container) Path() string {
	return c.path
}

// StartBuffering holds every further change in memory until StopBuffering
func (c *Container) StartBuffering() {
	c.buffering = true
}

// IsBuffering reports whether changes are currently held back
func (c *Container) IsBuffering() bool {
	return c.buffering
}

// StopBuffering commits all buffered changes atomically
func (c *Container) StopBuffering() error {
	if !c.buffering {
		return ErrNotBuffering
	}
	c.buffering = false
	return c.commit()
}

// BuildFromDirectory adds every regular file under root whose path matches
// pattern (all files when pattern is empty). It returns entry name to source
// path for the files added.
func (c *Container) BuildFromDirectory(root, pattern string) (map[string]string, error) {
	if err := c.checkWritable(); err != nil {
		return nil, err
	}

	var include *regexp.Regexp
	if pattern != "" {
		re, err := CompilePattern(pattern)
		if err != nil {
			return nil, err
		}
		include = re
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root is not a directory: %s", absRoot)
	}

	added := make(map[string]string)
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		if d.IsDir() {
			if name != "." && (c.excludes.Match(name) || c.excludes.Match(name+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || path == c.path || strings.HasPrefix(name, ReservedPrefix) {
			return nil
		}
		if c.excludes.Match(name) {
			return nil
		}
		if include != nil && !include.MatchString(path) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		c.put(&entry{
			name:     name,
			data:     data,
			mode:     fi.Mode().Perm(),
			modified: fi.ModTime(),
		})
		added[name] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build from %s: %w", root, err)
	}

	return added, c.flush()
}

// AddFromString adds or replaces a single entry
func (c *Container) AddFromString(name, content string) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	c.put(&entry{
		name:     strings.TrimPrefix(filepath.ToSlash(name), "/"),
		data:     []byte(content),
		mode:     defaultFileMode,
		modified: time.Now(),
	})
	return c.flush()
}

// SetStub replaces the bootstrap written in front of the zip data
func (c *Container) SetStub(stub string) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	if stub != "" && !strings.HasSuffix(stub, "\n") {
		stub += "\n"
	}
	c.stub = stub
	return c.flush()
}

// Stub returns the current bootstrap
func (c *Container) Stub() string {
	return c.stub
}

// CompressFiles switches every entry to the given codec
func (c *Container) CompressFiles(compression Compression) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	if !c.env.CanCompress(compression) {
		return fmt.Errorf("%w: %s", ErrCompressionUnsupported, compression)
	}
	for _, e := range c.entries {
		e.compression = compression
	}
	return c.flush()
}

// SetMetadata stores msgpack-encoded metadata inside the archive
func (c *Container) SetMetadata(metadata map[string]any) error {
	if err := c.checkWritable(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	c.put(&entry{
		name:     metadataEntry,
		data:     data,
		mode:     defaultFileMode,
		modified: time.Now(),
	})
	return c.flush()
}

// Metadata decodes the stored metadata, nil when none was set
func (c *Container) Metadata() (map[string]any, error) {
	i, ok := c.index[metadataEntry]
	if !ok {
		return nil, nil
	}
	return decodeMetadata(c.entries[i].data)
}

// Chmod sets the archive's mode now and on every later write. While
// buffering the mode is applied on commit.
func (c *Container) Chmod(mode fs.FileMode) error {
	c.mode = mode
	if c.buffering {
		return nil
	}
	if err := os.Chmod(c.path, mode); err != nil {
		return fmt.Errorf("failed to set archive mode: %w", err)
	}
	return nil
}

// Count returns the number of user entries
func (c *Container) Count() int {
	return len(c.Entries())
}

// Entries returns the sorted user entry names
func (c *Container) Entries() []string {
	names := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		if !strings.HasPrefix(e.name, ReservedPrefix) {
			names = append(names, e.name)
		}
	}
	sort.Strings(names)
	return names
}

// Checksum returns the xxhash64 digest over entry names and contents
func (c *Container) Checksum() string {
	h := xxhash.New()
	for _, e := range c.sorted() {
		_, _ = h.WriteString(e.name)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(e.data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Container) put(e *entry) {
	if i, ok := c.index[e.name]; ok {
		c.entries[i] = e
		return
	}
	c.index[e.name] = len(c.entries)
	c.entries = append(c.entries, e)
}

func (c *Container) sorted() []*entry {
	sorted := make([]*entry, len(c.entries))
	copy(sorted, c.entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	return sorted
}

func (c *Container) checkWritable() error {
	if !c.env.CanWrite() {
		return ErrReadOnly
	}
	return nil
}

// flush rewrites the archive in place unless buffering
func (c *Container) flush() error {
	if c.buffering {
		return nil
	}

	perm := c.mode
	if perm == 0 {
		perm = defaultFileMode
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	if err := c.writeTo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	if c.mode != 0 {
		return os.Chmod(c.path, c.mode)
	}
	return nil
}

// commit writes to a sibling temp file and renames it over the archive
func (c *Container) commit() (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(c.path), "."+filepath.Base(c.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := c.writeTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp archive: %w", err)
	}

	perm := c.mode
	if perm == 0 {
		perm = defaultFileMode
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("failed to set archive mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("failed to commit archive: %w", err)
	}
	return nil
}

func (c *Container) writeTo(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString(c.stub)

	zw := zip.NewWriter(&buf)
	zw.SetOffset(int64(len(c.stub)))
	registerCodecs(zw)

	for _, e := range c.entries {
		header := &zip.FileHeader{
			Name:     e.name,
			Method:   e.compression.method(),
			Modified: e.modified,
		}
		header.SetMode(e.mode)

		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", e.name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.name, err)
		}
	}

	if err := zw.SetComment(formatComment(len(c.stub), c.Checksum())); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}

func decodeMetadata(data []byte) (map[string]any, error) {
	var metadata map[string]any
	if err := msgpack.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return metadata, nil
}
