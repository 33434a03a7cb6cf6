package archive

import (
	"fmt"
	"strings"
)

const (
	// DefaultEntry is the file a default stub runs when none is configured
	DefaultEntry = "index.php"
	// DefaultRunner is the interpreter a default stub hands the entry file to
	DefaultRunner = "php"
	// DefaultShebang is prepended to generated stubs by the extended publisher
	DefaultShebang = "#!/bin/sh"
)

const stubTemplate = `# pharpub bootstrap: %[1]s
set -e
self="$0"
key=$(cksum "$self" | cut -d ' ' -f 1)
dir="${TMPDIR:-/tmp}/pharpub-%[2]s-${key}"
if [ ! -d "$dir" ]; then
  work="$dir.$$"
  mkdir -p "$work"
  unzip -qo "$self" -d "$work"
  mv "$work" "$dir" 2>/dev/null || rm -rf "$work"
fi
exec %[3]s "$dir/"%[4]s "$@"
exit 1
`

// CreateDefaultStub renders the bootstrap that extracts the archive into a
// cache directory keyed on its checksum and runs entry with the runner.
func (c *Container) CreateDefaultStub(entry string) string {
	if entry == "" {
		entry = DefaultEntry
	}
	entry = strings.TrimPrefix(entry, "/")
	alias := c.alias
	if alias == "" {
		alias = "archive"
	}
	return fmt.Sprintf(stubTemplate, entry, sanitizeAlias(alias), shellQuote(c.runner), shellQuote(entry))
}

// WithShebang prefixes a stub with an interpreter line
func WithShebang(shebang, stub string) string {
	if shebang == "" {
		return stub
	}
	return strings.TrimRight(shebang, "\n") + "\n" + stub
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func sanitizeAlias(alias string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, alias)
}
