package parse

import (
	"strings"

	"github.com/AlexKovalevych/xlsxir/sax"
	"github.com/AlexKovalevych/xlsxir/state"
)

// SharedStringHandler translates shared-string fragment events into the
// accumulator's string table. Rich text entries are flattened by
// concatenating the text of every run in one si element.
type SharedStringHandler struct {
	inSI    bool
	inRPh   bool // phonetic runs are skipped
	collect bool
	text    strings.Builder
}

// NewSharedString returns a handler for one shared-string fragment parse.
func NewSharedString() *SharedStringHandler {
	return &SharedStringHandler{}
}

// OnEvent implements Handler.
func (h *SharedStringHandler) OnEvent(ev sax.Event, acc *state.Accumulator) error {
	switch ev.Kind {
	case sax.StartElement:
		switch localName(ev.Name) {
		case "si":
			h.inSI = true
			h.inRPh = false
			h.text.Reset()
		case "rPh":
			h.inRPh = true
		case "t":
			if h.inSI && !h.inRPh {
				h.collect = true
			}
		}
	case sax.CharData:
		if h.collect {
			h.text.Write(ev.Text)
		}
	case sax.EndElement:
		switch localName(ev.Name) {
		case "t":
			h.collect = false
		case "rPh":
			h.inRPh = false
		case "si":
			if h.inSI {
				acc.AppendString(h.text.String())
			}
			h.inSI = false
		}
	}
	return nil
}
