package parse

import (
	"strconv"
	"strings"

	"github.com/AlexKovalevych/xlsxir/sax"
	"github.com/AlexKovalevych/xlsxir/state"
)

// StyleHandler translates style fragment events into per-style date flags.
// A cell format is date-flagged when its number format is one of the builtin
// date formats or a custom format whose code contains date characters. The
// flags are flushed to the accumulator when the styleSheet element closes,
// indexed by cellXfs position.
type StyleHandler struct {
	inCellXfs   bool
	customDates map[int]bool
	xfNumFmts   []int
}

// NewStyle returns a handler for one style fragment parse.
func NewStyle() *StyleHandler {
	return &StyleHandler{customDates: make(map[int]bool)}
}

// OnEvent implements Handler.
func (h *StyleHandler) OnEvent(ev sax.Event, acc *state.Accumulator) error {
	switch ev.Kind {
	case sax.StartElement:
		switch localName(ev.Name) {
		case "numFmt":
			id, ok := ev.Attr("numFmtId")
			code, _ := ev.Attr("formatCode")
			if !ok {
				break
			}
			if n, err := strconv.Atoi(id); err == nil && dateFormatCode(code) {
				h.customDates[n] = true
			}
		case "cellXfs":
			h.inCellXfs = true
		case "xf":
			if !h.inCellXfs {
				break
			}
			id := 0
			if s, ok := ev.Attr("numFmtId"); ok {
				if n, err := strconv.Atoi(s); err == nil {
					id = n
				}
			}
			h.xfNumFmts = append(h.xfNumFmts, id)
		}
	case sax.EndElement:
		switch localName(ev.Name) {
		case "cellXfs":
			h.inCellXfs = false
		case "styleSheet":
			for _, id := range h.xfNumFmts {
				acc.AppendStyle(builtinDateFormat(id) || h.customDates[id])
			}
		}
	}
	return nil
}

// builtinDateFormat reports whether a builtin number format ID denotes a
// date or time format.
func builtinDateFormat(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

// dateFormatCode reports whether a custom format code renders its value as a
// date or time. Quoted literals, bracketed sections and escaped characters
// do not count.
func dateFormatCode(code string) bool {
	var stripped strings.Builder
	for i := 0; i < len(code); i++ {
		switch code[i] {
		case '"':
			for i++; i < len(code) && code[i] != '"'; i++ {
			}
		case '[':
			for ; i < len(code) && code[i] != ']'; i++ {
			}
		case '\\':
			i++
		default:
			stripped.WriteByte(code[i])
		}
	}
	return strings.ContainsAny(stripped.String(), "dmyhsDMYHS")
}
