package archive

import (
	"archive/zip"
	"io"

	"github.com/klauspost/compress/flate"
)

// codec maps a Compression onto a zip method and its stream constructors
type codec struct {
	method       uint16
	compressor   zip.Compressor
	decompressor zip.Decompressor
}

var codecs = map[Compression]codec{
	None: {method: zip.Store},
	GZ: {
		method: zip.Deflate,
		compressor: func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, flate.BestCompression)
		},
		decompressor: flate.NewReader,
	},
}

func (c Compression) method() uint16 {
	return codecs[c].method
}

func compressionForMethod(method uint16) Compression {
	for c, cd := range codecs {
		if cd.method == method {
			return c
		}
	}
	return None
}

func registerCodecs(zw *zip.Writer) {
	for _, cd := range codecs {
		if cd.compressor != nil {
			zw.RegisterCompressor(cd.method, cd.compressor)
		}
	}
}

func registerDecoders(zr *zip.Reader) {
	for _, cd := range codecs {
		if cd.decompressor != nil {
			zr.RegisterDecompressor(cd.method, cd.decompressor)
		}
	}
}
