package archive

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// ReadOnlyEnv marks the archive layer as read-only when set to a true value.
const ReadOnlyEnv = "PHARPUB_READONLY"

// Compression represents a per-entry compression codec
type Compression int

const (
	None Compression = iota
	GZ
)

// String returns the manifest spelling of the codec
func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case GZ:
		return "gzip"
	default:
		return fmt.Sprintf("compression(%d)", int(c))
	}
}

// ParseCompression parses a manifest compression value
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "gz", "gzip", "deflate":
		return GZ, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// Capabilities reports what the archive layer is allowed to do
type Capabilities interface {
	CanWrite() bool
	CanCompress(c Compression) bool
}

// Environment is the default Capabilities implementation
type Environment struct {
	ReadOnly    bool
	Unsupported []Compression
}

// DefaultEnvironment builds an Environment from the process environment
func DefaultEnvironment() Environment {
	readOnly, _ := strconv.ParseBool(os.Getenv(ReadOnlyEnv))
	return Environment{ReadOnly: readOnly}
}

// CanWrite reports whether archives may be created or modified
func (e Environment) CanWrite() bool {
	return !e.ReadOnly
}

// CanCompress reports whether the codec is available
func (e Environment) CanCompress(c Compression) bool {
	if c == None {
		return true
	}
	if slices.Contains(e.Unsupported, c) {
		return false
	}
	_, ok := codecs[c]
	return ok
}
