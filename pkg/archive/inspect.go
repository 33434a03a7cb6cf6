package archive

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const commentPrefix = "pharpub"

// EntryInfo describes one file stored in an archive
type EntryInfo struct {
	Name           string
	Size           uint64
	CompressedSize uint64
	Compression    Compression
	Mode           fs.FileMode
}

// Info is the read-back view of a published archive
type Info struct {
	Path     string
	Mode     fs.FileMode
	Size     int64
	Stub     string
	Checksum string
	Entries  []EntryInfo
	Metadata map[string]any
}

// Compressed reports whether every entry uses the given codec
func (i *Info) Compressed(c Compression) bool {
	for _, e := range i.Entries {
		if e.Compression != c {
			return false
		}
	}
	return len(i.Entries) > 0
}

// Inspect reads an archive back from disk and verifies its checksum
func Inspect(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	registerDecoders(zr)

	stubLen, checksum, _ := parseComment(zr.Comment)
	if stubLen > len(data) {
		return nil, fmt.Errorf("failed to open archive %s: stub length %d exceeds file size", path, stubLen)
	}

	info := &Info{
		Path:     path,
		Mode:     stat.Mode().Perm(),
		Size:     stat.Size(),
		Stub:     string(data[:stubLen]),
		Checksum: checksum,
	}

	files := make([]*zip.File, len(zr.File))
	copy(files, zr.File)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	h := xxhash.New()
	for _, f := range files {
		content, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		_, _ = h.WriteString(f.Name)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(content)

		if f.Name == metadataEntry {
			if info.Metadata, err = decodeMetadata(content); err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(f.Name, ReservedPrefix) {
			continue
		}
		info.Entries = append(info.Entries, EntryInfo{
			Name:           f.Name,
			Size:           f.UncompressedSize64,
			CompressedSize: f.CompressedSize64,
			Compression:    compressionForMethod(f.Method),
			Mode:           f.Mode().Perm(),
		})
	}

	if checksum != "" && hex.EncodeToString(h.Sum(nil)) != checksum {
		return info, fmt.Errorf("%w: %s", ErrChecksumMismatch, path)
	}
	return info, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", f.Name, err)
	}
	return content, nil
}

func formatComment(stubLen int, checksum string) string {
	return fmt.Sprintf("%s stub=%d xxh64=%s", commentPrefix, stubLen, checksum)
}

func parseComment(comment string) (stubLen int, checksum string, ok bool) {
	fields := strings.Fields(comment)
	if len(fields) == 0 || fields[0] != commentPrefix {
		return 0, "", false
	}
	for _, field := range fields[1:] {
		key, value, found := strings.Cut(field, "=")
		if !found {
			continue
		}
		switch key {
		case "stub":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return 0, "", false
			}
			stubLen = n
		case "xxh64":
			checksum = value
		}
	}
	return stubLen, checksum, true
}
