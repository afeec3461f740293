// Package archive walks input paths and writes the surviving files into a
// zip container.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/flate"
)

// Method identifies a zip compression method selectable per build.
type Method uint16

const (
	// MethodStored writes entries without compression.
	MethodStored Method = Method(zip.Store)
	// MethodDeflated is the standard zip compression method.
	MethodDeflated Method = Method(zip.Deflate)
	// MethodBZip2 is the BZIP2 method, part of the zip standard since 2001.
	MethodBZip2 Method = 12
	// MethodLZMA is the LZMA method, part of the zip standard since 2006.
	MethodLZMA Method = 14
)

const errorUnknownMethodFormat = "unknown compression method %q; available methods: %s"

var methodsByName = map[string]Method{
	"stored":   MethodStored,
	"deflated": MethodDeflated,
	"bzip2":    MethodBZip2,
	"lzma":     MethodLZMA,
}

var methodNameOrder = []string{"stored", "deflated", "bzip2", "lzma"}

// ParseMethod resolves a case-insensitive method name. An unknown name is a
// configuration error and is reported before any traversal begins.
func ParseMethod(methodName string) (Method, error) {
	resolvedMethod, knownMethod := methodsByName[strings.ToLower(methodName)]
	if !knownMethod {
		return MethodStored, fmt.Errorf(errorUnknownMethodFormat, methodName, strings.Join(methodNameOrder, ", "))
	}
	return resolvedMethod, nil
}

// String returns the canonical lowercase method name.
func (method Method) String() string {
	for _, methodName := range methodNameOrder {
		if methodsByName[methodName] == method {
			return methodName
		}
	}
	return fmt.Sprintf("method(%d)", uint16(method))
}

// registerCompressors installs the codecs for every selectable method on a
// zip writer. Deflate is routed through the klauspost implementation.
func registerCompressors(zipWriter *zip.Writer) {
	zipWriter.RegisterCompressor(zip.Deflate, func(destination io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(destination, flate.DefaultCompression)
	})
	zipWriter.RegisterCompressor(uint16(MethodBZip2), func(destination io.Writer) (io.WriteCloser, error) {
		return bzip2.NewWriter(destination, nil)
	})
	zipWriter.RegisterCompressor(uint16(MethodLZMA), newZipLZMAWriter)
}

// RegisterDecompressors installs the matching codecs on a zip reader so that
// archives produced with any selectable method can be read back in-process.
func RegisterDecompressors(zipReader *zip.Reader) {
	zipReader.RegisterDecompressor(zip.Deflate, func(source io.Reader) io.ReadCloser {
		return flate.NewReader(source)
	})
	zipReader.RegisterDecompressor(uint16(MethodBZip2), func(source io.Reader) io.ReadCloser {
		bzip2Reader, readerError := bzip2.NewReader(source, nil)
		if readerError != nil {
			return &failedReadCloser{readError: readerError}
		}
		return bzip2Reader
	})
	zipReader.RegisterDecompressor(uint16(MethodLZMA), newZipLZMAReader)
}

// failedReadCloser surfaces a codec construction error on first read, since
// the zip decompressor interface has no error return of its own.
type failedReadCloser struct {
	readError error
}

func (failed *failedReadCloser) Read([]byte) (int, error) {
	return 0, failed.readError
}

func (failed *failedReadCloser) Close() error {
	return nil
}
