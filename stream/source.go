package stream

import (
	"bytes"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Source supplies the raw bytes of one document fragment. Open is called at
// most once per parse call; the returned reader is owned by that call and
// closed when it ends.
type Source interface {
	Open() (io.ReadCloser, error)
}

// FileSource reads a fragment from a file on disk.
type FileSource string

// Open implements Source.
func (s FileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(s))
}

// BytesSource reads a fragment from memory.
type BytesSource []byte

// Open implements Source.
func (s BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s)), nil
}

// OpenFunc adapts a function to the Source interface.
type OpenFunc func() (io.ReadCloser, error)

// Open implements Source.
func (f OpenFunc) Open() (io.ReadCloser, error) {
	return f()
}

// decodeBOM strips a UTF-8 byte order mark and transcodes UTF-16 input, so
// the parser always sees plain UTF-8. Fragments written by well-behaved
// producers pass through untouched.
func decodeBOM(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}
