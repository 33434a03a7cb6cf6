package archive_test

import (
	"errors"
	"testing"

	"github.com/dorkodu/pharpub/pkg/archive"
)

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		match   bool
		wantErr bool
	}{
		{pattern: `/\.php$/`, path: "/src/index.php", match: true},
		{pattern: `/\.php$/`, path: "/src/index.phtml", match: false},
		{pattern: `~\.PHP$~i`, path: "/src/index.php", match: true},
		{pattern: `{^/src/lib/}`, path: "/src/lib/a.php", match: true},
		{pattern: `\.json$`, path: "/src/composer.json", match: true},
		{pattern: `/src/`, path: "/other/src/a", match: true},
		{pattern: `/(unclosed/`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			re, err := archive.CompilePattern(tt.pattern)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected compile error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := re.MatchString(tt.path); got != tt.match {
				t.Errorf("MatchString(%q) = %v, want %v", tt.path, got, tt.match)
			}
		})
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    archive.Compression
		wantErr bool
	}{
		{in: "", want: archive.None},
		{in: "none", want: archive.None},
		{in: "GZIP", want: archive.GZ},
		{in: "gz", want: archive.GZ},
		{in: "bzip2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := archive.ParseCompression(tt.in)
			if tt.wantErr {
				if !errors.Is(err, archive.ErrUnknownCompression) {
					t.Fatalf("expected ErrUnknownCompression, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestEnvironment(t *testing.T) {
	t.Setenv(archive.ReadOnlyEnv, "1")
	if archive.DefaultEnvironment().CanWrite() {
		t.Error("expected read-only environment from PHARPUB_READONLY=1")
	}

	t.Setenv(archive.ReadOnlyEnv, "")
	env := archive.DefaultEnvironment()
	if !env.CanWrite() {
		t.Error("expected writable environment by default")
	}
	if !env.CanCompress(archive.GZ) || !env.CanCompress(archive.None) {
		t.Error("expected gzip and none to be available")
	}
}
