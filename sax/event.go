// Package sax implements an incremental push parser for the XML fragments
// stored inside XLSX containers.
//
// The parser never holds a whole fragment in memory. It tokenizes a caller
// supplied buffer and, whenever the buffer runs out mid token, hands the
// unconsumed tail back to a refill callback, which returns the tail with
// fresh input appended. A refill that returns no new bytes signals end of
// input.
package sax

import "errors"

// ErrUnexpectedEOF reports that the input ended before the document's root
// element was closed.
var ErrUnexpectedEOF = errors.New("sax: unexpected end of input")

// EventKind identifies the kind of a parse event.
type EventKind int

const (
	// StartElement marks an opening or self-closing tag.
	StartElement EventKind = iota
	// EndElement marks a closing tag. Self-closing tags produce an
	// EndElement immediately after their StartElement.
	EndElement
	// CharData carries decoded character data. A long run of text may be
	// delivered across several consecutive CharData events.
	CharData
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case StartElement:
		return "StartElement"
	case EndElement:
		return "EndElement"
	case CharData:
		return "CharData"
	default:
		return "Unknown"
	}
}

// Attr is a single attribute of a start element.
type Attr struct {
	Name  string
	Value string
}

// Event is one parse event pushed to the event callback. Text points into the
// parser's working buffer and is only valid for the duration of the callback.
type Event struct {
	Kind  EventKind
	Name  string // element name, StartElement and EndElement only
	Attrs []Attr // StartElement only
	Text  []byte // CharData only
}

// Attr returns the value of the named attribute and whether it was present.
func (e Event) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// EventFunc receives parse events. Returning a non-nil error stops parsing;
// the error is returned unchanged from Parse.
type EventFunc func(Event) error

// RefillFunc supplies more input. It receives the unconsumed tail of the
// previous buffer and returns a new buffer holding those tail bytes followed
// by any freshly read bytes. Returning a buffer no longer than the tail
// signals end of input. Read failures other than end of input are returned
// as the error and abort the parse.
type RefillFunc func(tail []byte) ([]byte, error)
