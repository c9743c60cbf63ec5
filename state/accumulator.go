// Package state implements the session-scoped store that accumulates parsed
// worksheet rows, style records and shared strings across the sequential
// parse calls made against one workbook.
package state

import (
	"errors"
	"sync"
)

// ErrRowLimitReached is the distinguished early-termination signal. It is
// returned by AppendRow when a registered row limit fills, propagated
// unchanged through the event pipeline, and reclassified by the stream
// coordinator as an early stop rather than a failure.
var ErrRowLimitReached = errors.New("xlsxir: row limit reached")

// Cell is one parsed worksheet cell: its reference (e.g. "A1") and its
// decoded value (string, bool, int, float64 or time.Time).
type Cell struct {
	Ref   string
	Value any
}

// Row is an ordered sequence of cells sharing one worksheet row.
type Row []Cell

// Accumulator is a session-scoped store shared by the sequential parse calls
// for one workbook: style data and shared strings accumulated by earlier
// calls are read by later worksheet calls. At most one parse call may be
// active against an Accumulator at a time; the mutex only guards against
// callers inspecting results while a parse is in flight.
type Accumulator struct {
	mu       sync.Mutex
	strings  []string
	dates    []bool // per cellXfs index: value is an Excel serial date
	rows     []Row
	rowLimit int // 0 means no limit
}

// NewAccumulator returns an empty accumulator session.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// ResetRows clears any previously accumulated worksheet rows.
func (a *Accumulator) ResetRows() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = nil
}

// ResetStyles clears any previously accumulated style records.
func (a *Accumulator) ResetStyles() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dates = nil
}

// ResetStrings clears any previously accumulated shared strings.
func (a *Accumulator) ResetStrings() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.strings = nil
}

// SetRowLimit registers a cap on the number of rows AppendRow will store.
// Values below 1 are ignored.
func (a *Accumulator) SetRowLimit(n int) {
	if n < 1 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rowLimit = n
}

// ClearRowLimit deregisters the row limit. It is safe to call when no limit
// was ever set.
func (a *Accumulator) ClearRowLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rowLimit = 0
}

// RowLimit returns the registered row limit, or 0 when none is set.
func (a *Accumulator) RowLimit() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rowLimit
}

// AppendRow stores one parsed row. When storing the row fills a registered
// limit, the row is kept and ErrRowLimitReached is returned so the caller
// can stop feeding further input.
func (a *Accumulator) AppendRow(r Row) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, r)
	if a.rowLimit > 0 && len(a.rows) >= a.rowLimit {
		return ErrRowLimitReached
	}
	return nil
}

// Rows returns the accumulated rows in document order.
func (a *Accumulator) Rows() []Row {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rows
}

// AppendString stores one shared string. Index order follows append order.
func (a *Accumulator) AppendString(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.strings = append(a.strings, s)
}

// SharedString returns the shared string at index i and whether it exists.
func (a *Accumulator) SharedString(i int) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.strings) {
		return "", false
	}
	return a.strings[i], true
}

// StringCount returns the number of accumulated shared strings.
func (a *Accumulator) StringCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.strings)
}

// AppendStyle stores the date flag for the next cellXfs index.
func (a *Accumulator) AppendStyle(date bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dates = append(a.dates, date)
}

// DateStyle reports whether the style at cellXfs index i formats numeric
// values as dates. Unknown indexes report false.
func (a *Accumulator) DateStyle(i int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.dates) {
		return false
	}
	return a.dates[i]
}

// StyleCount returns the number of accumulated style records.
func (a *Accumulator) StyleCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.dates)
}
