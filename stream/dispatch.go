package stream

import (
	"fmt"

	"github.com/AlexKovalevych/xlsxir/parse"
	"github.com/AlexKovalevych/xlsxir/sax"
	"github.com/AlexKovalevych/xlsxir/state"
)

// handlerFor selects the event handler for a fragment kind. Selection
// happens once per parse call, before any I/O; an unrecognized kind is
// rejected here. Both worksheet kinds share the worksheet handler.
func handlerFor(kind FragmentKind) (parse.Handler, error) {
	switch kind {
	case Worksheet, MultiWorksheet:
		return parse.NewWorksheet(), nil
	case Style:
		return parse.NewStyle(), nil
	case SharedString:
		return parse.NewSharedString(), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidFragmentKind, kind)
	}
}

// bind adapts a handler and an accumulator session to the parser's event
// callback. Every event is forwarded verbatim.
func bind(h parse.Handler, acc *state.Accumulator) sax.EventFunc {
	return func(ev sax.Event) error {
		return h.OnEvent(ev, acc)
	}
}
