package archive

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/gobwas/glob"
)

var closingDelimiters = map[byte]byte{'(': ')', '{': '}', '[': ']', '<': '>'}

// CompilePattern compiles an inclusion pattern. Delimited patterns such as
// `/\.php$/i` are unwrapped and their flags translated; anything else is
// compiled as a plain regular expression.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	expr := pattern
	if body, flags, ok := splitDelimited(pattern); ok {
		expr = body
		if goFlags := translateFlags(flags); goFlags != "" {
			expr = "(?" + goFlags + ")" + expr
		}
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	return re, nil
}

func splitDelimited(pattern string) (body, flags string, ok bool) {
	if len(pattern) < 2 {
		return "", "", false
	}
	open := pattern[0]
	if open == '\\' || unicode.IsLetter(rune(open)) || unicode.IsDigit(rune(open)) || unicode.IsSpace(rune(open)) {
		return "", "", false
	}
	closing := open
	if c, found := closingDelimiters[open]; found {
		closing = c
	}

	end := strings.LastIndexByte(pattern, closing)
	if end <= 0 {
		return "", "", false
	}
	flags = pattern[end+1:]
	for _, r := range flags {
		if !unicode.IsLetter(r) {
			return "", "", false
		}
	}
	return pattern[1:end], flags, true
}

// translateFlags keeps the modifiers RE2 understands and drops the rest
func translateFlags(flags string) string {
	var b strings.Builder
	for _, r := range flags {
		switch r {
		case 'i', 'm', 's':
			if !strings.ContainsRune(b.String(), r) {
				b.WriteRune(r)
			}
		case 'U':
			b.WriteRune('U')
		}
	}
	return b.String()
}

// excludeSet matches slash-separated entry names against glob patterns
type excludeSet []glob.Glob

func compileExcludes(patterns []string) (excludeSet, error) {
	set := make(excludeSet, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		set = append(set, g)
	}
	return set, nil
}

// Match reports whether the name, or its base name, matches any pattern
func (s excludeSet) Match(name string) bool {
	base := path.Base(name)
	for _, g := range s {
		if g.Match(name) || g.Match(base) {
			return true
		}
	}
	return false
}

// ValidateExcludes reports the first exclude glob that does not compile
func ValidateExcludes(patterns []string) error {
	_, err := compileExcludes(patterns)
	return err
}
