// Package parse contains the event handlers that translate parse events
// into accumulated domain values: worksheet rows, style records and shared
// strings. One handler instance serves exactly one parse call.
package parse

import (
	"strings"

	"github.com/AlexKovalevych/xlsxir/sax"
	"github.com/AlexKovalevych/xlsxir/state"
)

// Handler receives every parse event of one document fragment and records
// results in the accumulator.
type Handler interface {
	OnEvent(ev sax.Event, acc *state.Accumulator) error
}

// localName strips any namespace prefix from an element name.
func localName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}
