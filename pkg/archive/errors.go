package archive

import "errors"

var (
	// ErrReadOnly is returned when the environment forbids writing archives
	ErrReadOnly = errors.New("archive: environment is read-only")

	// ErrCompressionUnsupported is returned for codecs the environment lacks
	ErrCompressionUnsupported = errors.New("archive: compression not supported")

	// ErrUnknownCompression is returned by ParseCompression
	ErrUnknownCompression = errors.New("archive: unknown compression")

	// ErrChecksumMismatch is returned by Inspect when entries were altered
	ErrChecksumMismatch = errors.New("archive: checksum mismatch")

	// ErrNotBuffering is returned by StopBuffering without a prior StartBuffering
	ErrNotBuffering = errors.New("archive: buffering not started")
)
