package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// The classic LZMA stream starts with five properties bytes followed by an
// eight-byte uncompressed size. Zip entries instead carry a two-byte encoder
// version, a two-byte properties length, and the properties bytes, with the
// size taken from the entry header and the stream terminated by an
// end-of-stream marker.
const (
	lzmaPropertiesLength    = 5
	lzmaClassicHeaderLength = 13
	lzmaEncoderVersionMajor = 9
	lzmaEncoderVersionMinor = 20
)

const errorLZMAPropertiesFormat = "lzma entry declares %d properties bytes, expected %d"

// lzmaHeaderRewriter converts the classic header emitted by the lzma encoder
// into the framing zip entries use, then passes the remaining stream through
// untouched.
type lzmaHeaderRewriter struct {
	destination  io.Writer
	bufferedHead []byte
	headEmitted  bool
}

func (rewriter *lzmaHeaderRewriter) Write(chunk []byte) (int, error) {
	chunkLength := len(chunk)
	if !rewriter.headEmitted {
		missingBytes := lzmaClassicHeaderLength - len(rewriter.bufferedHead)
		if missingBytes > len(chunk) {
			missingBytes = len(chunk)
		}
		rewriter.bufferedHead = append(rewriter.bufferedHead, chunk[:missingBytes]...)
		chunk = chunk[missingBytes:]
		if len(rewriter.bufferedHead) < lzmaClassicHeaderLength {
			return chunkLength, nil
		}
		zipFraming := []byte{
			lzmaEncoderVersionMajor, lzmaEncoderVersionMinor,
			lzmaPropertiesLength, 0,
		}
		zipFraming = append(zipFraming, rewriter.bufferedHead[:lzmaPropertiesLength]...)
		if _, framingError := rewriter.destination.Write(zipFraming); framingError != nil {
			return chunkLength - len(chunk), framingError
		}
		rewriter.headEmitted = true
	}
	if len(chunk) > 0 {
		if _, writeError := rewriter.destination.Write(chunk); writeError != nil {
			return chunkLength - len(chunk), writeError
		}
	}
	return chunkLength, nil
}

// newZipLZMAWriter builds the LZMA compressor for zip entries. The encoder
// writes an unknown-size classic stream with an end-of-stream marker, which
// the rewriter reframes for the zip container.
func newZipLZMAWriter(destination io.Writer) (io.WriteCloser, error) {
	return lzma.NewWriter(&lzmaHeaderRewriter{destination: destination})
}

// newZipLZMAReader reverses the framing: it consumes the zip LZMA preamble,
// reconstructs a classic header with an unknown size, and hands the combined
// stream to the lzma decoder.
func newZipLZMAReader(source io.Reader) io.ReadCloser {
	preamble := make([]byte, 4)
	if _, readError := io.ReadFull(source, preamble); readError != nil {
		return &failedReadCloser{readError: readError}
	}
	declaredLength := int(preamble[2]) | int(preamble[3])<<8
	if declaredLength != lzmaPropertiesLength {
		return &failedReadCloser{readError: fmt.Errorf(errorLZMAPropertiesFormat, declaredLength, lzmaPropertiesLength)}
	}
	propertiesBytes := make([]byte, lzmaPropertiesLength)
	if _, readError := io.ReadFull(source, propertiesBytes); readError != nil {
		return &failedReadCloser{readError: readError}
	}

	classicHeader := make([]byte, 0, lzmaClassicHeaderLength)
	classicHeader = append(classicHeader, propertiesBytes...)
	for sizeByte := 0; sizeByte < lzmaClassicHeaderLength-lzmaPropertiesLength; sizeByte++ {
		classicHeader = append(classicHeader, 0xFF)
	}

	decompressor, readerError := lzma.NewReader(io.MultiReader(bytes.NewReader(classicHeader), source))
	if readerError != nil {
		return &failedReadCloser{readError: readerError}
	}
	return io.NopCloser(decompressor)
}
