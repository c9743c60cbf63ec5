package stream

import (
	"errors"
	"io"
)

// ChunkSize is the fixed read window supplied to the parser per refill.
const ChunkSize = 10000

// cursor tracks sequential chunk reads from an open fragment source. The
// offset only ever reflects bytes actually read from the source; bytes held
// in the parser's unconsumed tail are never re-read.
type cursor struct {
	r      io.Reader
	offset int64
	size   int
	eof    bool
}

func newCursor(r io.Reader) *cursor {
	return &cursor{r: r, size: ChunkSize}
}

// refill implements sax.RefillFunc. It reads up to one chunk from the source
// and returns the unconsumed tail with the fresh bytes appended. Once the
// source is exhausted it returns the tail unchanged, which the parser reads
// as end of input, and never touches the source again. Read failures other
// than end of input are returned for the parser to surface.
func (c *cursor) refill(tail []byte) ([]byte, error) {
	if c.eof {
		return tail, nil
	}
	chunk := make([]byte, c.size)
	n, err := io.ReadFull(c.r, chunk)
	c.offset += int64(n)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.eof = true
	default:
		return tail, err
	}
	if n == 0 {
		return tail, nil
	}
	buf := make([]byte, 0, len(tail)+n)
	buf = append(buf, tail...)
	return append(buf, chunk[:n]...), nil
}
