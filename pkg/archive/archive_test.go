package archive_test

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/dorkodu/pharpub/pkg/archive"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func entryNames(info *archive.Info) []string {
	names := make([]string, 0, len(info.Entries))
	for _, e := range info.Entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

func TestOpen_CreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "app.phar")

	c, err := archive.Open(path, archive.WithEnvironment(archive.Environment{}))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	if c.Path() != path {
		t.Errorf("expected path %s, got %s", path, c.Path())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected archive file to exist: %v", err)
	}

	info, err := archive.Inspect(path)
	if err != nil {
		t.Fatalf("failed to inspect empty archive: %v", err)
	}
	if len(info.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(info.Entries))
	}
}

func TestOpen_ReadOnly(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "app.phar")

	_, err := archive.Open(path, archive.WithEnvironment(archive.Environment{ReadOnly: true}))
	if !errors.Is(err, archive.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("read-only open must not create the archive")
	}
}

func TestOpen_InvalidExclude(t *testing.T) {
	_, err := archive.Open(filepath.Join(t.TempDir(), "x.phar"),
		archive.WithEnvironment(archive.Environment{}),
		archive.WithExcludes("[unterminated"))
	if err == nil {
		t.Fatal("expected error for invalid exclude glob")
	}
}

func TestBuildFromDirectory(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		excludes []string
		want     []string
	}{
		{
			name: "all files",
			want: []string{"README.md", "index.php", "lib/util.php", "tests/util_test.php"},
		},
		{
			name:    "delimited regex",
			pattern: `/\.php$/`,
			want:    []string{"index.php", "lib/util.php", "tests/util_test.php"},
		},
		{
			name:    "case insensitive flag",
			pattern: `#readme#i`,
			want:    []string{"README.md"},
		},
		{
			name:     "excluded directory",
			pattern:  `\.php$`,
			excludes: []string{"tests"},
			want:     []string{"index.php", "lib/util.php"},
		},
		{
			name:     "excluded glob",
			excludes: []string{"*.md", "tests/**"},
			want:     []string{"index.php", "lib/util.php"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			src := filepath.Join(tmpDir, "src")
			writeTree(t, src, map[string]string{
				"index.php":           "<?php echo 'hi';",
				"lib/util.php":        "<?php function util() {}",
				"tests/util_test.php": "<?php // test",
				"README.md":           "# readme",
			})

			path := filepath.Join(tmpDir, "out.phar")
			c, err := archive.Open(path,
				archive.WithEnvironment(archive.Environment{}),
				archive.WithExcludes(tt.excludes...))
			if err != nil {
				t.Fatal(err)
			}

			added, err := c.BuildFromDirectory(src, tt.pattern)
			if err != nil {
				t.Fatalf("build failed: %v", err)
			}
			if len(added) != len(tt.want) {
				t.Errorf("expected %d added files, got %d", len(tt.want), len(added))
			}

			info, err := archive.Inspect(path)
			if err != nil {
				t.Fatal(err)
			}
			got := entryNames(info)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("expected entries %v, got %v", tt.want, got)
			}
			if c.Count() != len(tt.want) {
				t.Errorf("expected count %d, got %d", len(tt.want), c.Count())
			}
		})
	}
}

func TestBuildFromDirectory_MissingRoot(t *testing.T) {
	tmpDir := t.TempDir()
	c, err := archive.Open(filepath.Join(tmpDir, "out.phar"), archive.WithEnvironment(archive.Environment{}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.BuildFromDirectory(filepath.Join(tmpDir, "missing"), ""); err == nil {
		t.Error("expected error for missing source root")
	}
}

func TestBuildFromDirectory_SkipsOwnOutput(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"index.php": "<?php"})

	path := filepath.Join(tmpDir, "self.phar")
	c, err := archive.Open(path, archive.WithEnvironment(archive.Environment{}))
	if err != nil {
		t.Fatal(err)
	}
	added, err := c.BuildFromDirectory(tmpDir, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := added["self.phar"]; ok {
		t.Error("archive must not include itself")
	}
}

func TestStub_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir+"/src", map[string]string{"main.php": "<?php"})

	path := filepath.Join(tmpDir, "tool.phar")
	c, err := archive.Open(path, archive.WithEnvironment(archive.Environment{}), archive.WithRunner("php8"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.BuildFromDirectory(tmpDir+"/src", ""); err != nil {
		t.Fatal(err)
	}

	stub := archive.WithShebang(archive.DefaultShebang, c.CreateDefaultStub("main.php"))
	if err := c.SetStub(stub); err != nil {
		t.Fatal(err)
	}

	info, err := archive.Inspect(path)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if info.Stub != stub {
		t.Errorf("stub mismatch:\nwant %q\ngot  %q", stub, info.Stub)
	}
	if !strings.HasPrefix(info.Stub, "#!/bin/sh\n") {
		t.Error("expected shebang on the first line")
	}
	if !strings.Contains(info.Stub, `exec 'php8' "$dir/"'main.php'`) {
		t.Errorf("expected stub to run main.php with php8, got:\n%s", info.Stub)
	}
	if info.Checksum != c.Checksum() {
		t.Errorf("expected checksum %s, got %s", c.Checksum(), info.Checksum)
	}
}

func TestCreateDefaultStub_DefaultEntry(t *testing.T) {
	c, err := archive.Open(filepath.Join(t.TempDir(), "a.phar"), archive.WithEnvironment(archive.Environment{}))
	if err != nil {
		t.Fatal(err)
	}
	stub := c.CreateDefaultStub("")
	if !strings.Contains(stub, "'index.php'") {
		t.Errorf("expected default entry index.php in stub:\n%s", stub)
	}
}

func TestBuffering(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir+"/src", map[string]string{"a.php": "a", "b.php": "b"})

	path := filepath.Join(tmpDir, "buf.phar")
	c, err := archive.Open(path, archive.WithEnvironment(archive.Environment{}))
	if err != nil {
		t.Fatal(err)
	}

	c.StartBuffering()
	if !c.IsBuffering() {
		t.Fatal("expected buffering to be active")
	}
	if _, err := c.BuildFromDirectory(tmpDir+"/src", ""); err != nil {
		t.Fatal(err)
	}
	if err := c.SetStub("#!/bin/sh\nexit 0"); err != nil {
		t.Fatal(err)
	}

	info, err := archive.Inspect(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Entries) != 0 || info.Stub != "" {
		t.Errorf("buffered changes reached disk: %d entries, stub %q", len(info.Entries), info.Stub)
	}

	if err := c.Chmod(0770); err != nil {
		t.Fatal(err)
	}
	if err := c.StopBuffering(); err != nil {
		t.Fatalf("stop buffering failed: %v", err)
	}

	info, err = archive.Inspect(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Entries) != 2 {
		t.Errorf("expected 2 entries after commit, got %d", len(info.Entries))
	}
	if info.Mode != 0770 {
		t.Errorf("expected mode 0770 to survive commit, got %o", info.Mode)
	}

	leftovers, _ := filepath.Glob(filepath.Join(tmpDir, ".buf.phar.*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}

	if err := c.StopBuffering(); !errors.Is(err, archive.ErrNotBuffering) {
		t.Errorf("expected ErrNotBuffering, got %v", err)
	}
}

func TestOpen_WithBuffering(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir+"/src", map[string]string{"a.php": "a"})

	path := filepath.Join(tmpDir, "lazy.phar")
	c, err := archive.Open(path,
		archive.WithEnvironment(archive.Environment{}),
		archive.WithBuffering())
	if err != nil {
		t.Fatal(err)
	}
	if !c.IsBuffering() {
		t.Fatal("expected container to start buffering")
	}
	if _, err := c.BuildFromDirectory(tmpDir+"/src", ""); err != nil {
		t.Fatal(err)
	}
	if err := c.Chmod(0770); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("nothing should reach disk before commit, stat err: %v", err)
	}

	if err := c.StopBuffering(); err != nil {
		t.Fatal(err)
	}
	info, err := archive.Inspect(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Entries) != 1 || info.Mode.Perm() != 0770 {
		t.Errorf("unexpected committed archive: %d entries, mode %o", len(info.Entries), info.Mode.Perm())
	}
}

func TestCompressFiles(t *testing.T) {
	content := strings.Repeat("<?php echo 'compress me'; ", 200)

	t.Run("gzip supported", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeTree(t, tmpDir+"/src", map[string]string{"big.php": content})

		path := filepath.Join(tmpDir, "gz.phar")
		c, err := archive.Open(path, archive.WithEnvironment(archive.Environment{}))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := c.BuildFromDirectory(tmpDir+"/src", ""); err != nil {
			t.Fatal(err)
		}
		if err := c.CompressFiles(archive.GZ); err != nil {
			t.Fatalf("compress failed: %v", err)
		}

		info, err := archive.Inspect(path)
		if err != nil {
			t.Fatal(err)
		}
		if !info.Compressed(archive.GZ) {
			t.Error("expected all entries to be gzip compressed")
		}
		e := info.Entries[0]
		if e.CompressedSize >= e.Size {
			t.Errorf("expected compressed size below %d, got %d", e.Size, e.CompressedSize)
		}
	})

	t.Run("gzip unsupported", func(t *testing.T) {
		tmpDir := t.TempDir()
		env := archive.Environment{Unsupported: []archive.Compression{archive.GZ}}
		c, err := archive.Open(filepath.Join(tmpDir, "nogz.phar"), archive.WithEnvironment(env))
		if err != nil {
			t.Fatal(err)
		}
		if err := c.CompressFiles(archive.GZ); !errors.Is(err, archive.ErrCompressionUnsupported) {
			t.Errorf("expected ErrCompressionUnsupported, got %v", err)
		}
	})
}

func TestMetadata(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "meta.phar")
	c, err := archive.Open(path, archive.WithEnvironment(archive.Environment{}))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetMetadata(map[string]any{"version": "1.2.0", "channel": "stable"}); err != nil {
		t.Fatal(err)
	}

	info, err := archive.Inspect(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Metadata["version"] != "1.2.0" {
		t.Errorf("expected version metadata, got %v", info.Metadata)
	}
	if len(info.Entries) != 0 {
		t.Errorf("metadata must not be listed as an entry, got %v", entryNames(info))
	}

	meta, err := c.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta["channel"] != "stable" {
		t.Errorf("expected channel metadata, got %v", meta)
	}
}

func TestAddFromString_Replaces(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "str.phar")
	c, err := archive.Open(path, archive.WithEnvironment(archive.Environment{}))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddFromString("/conf/app.ini", "a=1"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddFromString("conf/app.ini", "a=2"); err != nil {
		t.Fatal(err)
	}
	if got := c.Entries(); len(got) != 1 || got[0] != "conf/app.ini" {
		t.Errorf("expected single conf/app.ini entry, got %v", got)
	}
}
