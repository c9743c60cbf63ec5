// Package stream drives the incremental push parser over one XLSX document
// fragment at a time. It owns the chunked refill protocol that feeds the
// parser fixed-size byte windows, the dispatch of parse events to the
// handler for the fragment kind, the classification of how a parse ended,
// and the guaranteed release of the fragment source on every exit path.
package stream

import (
	"errors"
	"fmt"

	"github.com/AlexKovalevych/xlsxir/sax"
	"github.com/AlexKovalevych/xlsxir/state"
)

// FragmentKind identifies which kind of document fragment a parse call
// consumes, and therefore which handler receives its events.
type FragmentKind int

const (
	// Worksheet is a single worksheet fragment.
	Worksheet FragmentKind = iota
	// MultiWorksheet is a worksheet fragment parsed as part of a
	// whole-workbook extraction. It shares the worksheet handler.
	MultiWorksheet
	// Style is the stylesheet fragment.
	Style
	// SharedString is the shared string table fragment.
	SharedString
)

// String returns the string representation of the fragment kind.
func (k FragmentKind) String() string {
	switch k {
	case Worksheet:
		return "Worksheet"
	case MultiWorksheet:
		return "MultiWorksheet"
	case Style:
		return "Style"
	case SharedString:
		return "SharedString"
	default:
		return "Unknown"
	}
}

// ErrInvalidFragmentKind reports an unrecognized fragment kind. It is
// returned before the fragment source is opened.
var ErrInvalidFragmentKind = errors.New("xlsxir: invalid fragment kind")

// Outcome classifies how a parse call terminated.
type Outcome int

const (
	// Completed means the whole fragment was parsed.
	Completed Outcome = iota
	// EarlyStopped means a registered row limit stopped the parse. It is
	// not a failure.
	EarlyStopped
	// Failed means the parse aborted with an error.
	Failed
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Completed:
		return "Completed"
	case EarlyStopped:
		return "EarlyStopped"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Result is the outcome of one parse call. Rows is populated for the
// worksheet fragment kinds only; style and shared-string results live in the
// accumulator and are queried there.
type Result struct {
	Outcome Outcome
	Rows    []state.Row
}

// Parse runs one fragment through the push parser.
//
// It selects the handler for kind (failing before any I/O on an unrecognized
// kind), resets the accumulator region the fragment feeds, opens the source,
// registers maxRows (when positive) as the accumulator's row limit, and
// drives the parser with 10,000-byte chunks. The source is closed and the
// row limit deregistered exactly once on every exit path.
//
// A parse stopped by the row limit returns an EarlyStopped result and a nil
// error; any other abnormal termination returns a Failed result alongside
// the error that caused it.
func Parse(acc *state.Accumulator, src Source, kind FragmentKind, maxRows int) (*Result, error) {
	h, err := handlerFor(kind)
	if err != nil {
		return nil, err
	}

	switch kind {
	case Worksheet, MultiWorksheet:
		acc.ResetRows()
	case Style:
		acc.ResetStyles()
	case SharedString:
		acc.ResetStrings()
	}

	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("opening fragment source: %w", err)
	}
	defer rc.Close()

	if maxRows > 0 {
		acc.SetRowLimit(maxRows)
	}
	defer acc.ClearRowLimit()

	cur := newCursor(decodeBOM(rc))
	err = sax.Parse(nil, bind(h, acc), cur.refill)

	res := &Result{Outcome: Completed}
	switch {
	case err == nil:
	case errors.Is(err, state.ErrRowLimitReached):
		res.Outcome = EarlyStopped
	default:
		res.Outcome = Failed
		return res, err
	}

	if kind == Worksheet || kind == MultiWorksheet {
		res.Rows = acc.Rows()
	}
	return res, nil
}
