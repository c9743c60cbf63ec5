package parse

import (
	"fmt"
	"strconv"
	"time"

	"github.com/AlexKovalevych/xlsxir/sax"
	"github.com/AlexKovalevych/xlsxir/state"
)

// WorksheetHandler translates worksheet fragment events into rows of decoded
// cells. When the accumulator's row limit fills, the handler propagates the
// early-termination signal returned by AppendRow so the coordinator stops
// feeding further input.
type WorksheetHandler struct {
	row     state.Row
	rowNum  int // 1-based row number of the row being built
	nextCol int // 0-based column for the next cell without an explicit ref

	inCell   bool
	inIs     bool
	collect  bool
	cellRef  string
	cellType string
	col      int
	style    int
	hasStyle bool
	hasValue bool
	value    []byte
}

// NewWorksheet returns a handler for one worksheet fragment parse.
func NewWorksheet() *WorksheetHandler {
	return &WorksheetHandler{}
}

// OnEvent implements Handler.
func (h *WorksheetHandler) OnEvent(ev sax.Event, acc *state.Accumulator) error {
	switch ev.Kind {
	case sax.StartElement:
		switch localName(ev.Name) {
		case "row":
			h.row = state.Row{}
			h.nextCol = 0
			h.rowNum++
			if r, ok := ev.Attr("r"); ok {
				if n, err := strconv.Atoi(r); err == nil && n > 0 {
					h.rowNum = n
				}
			}
		case "c":
			h.startCell(ev)
		case "v":
			if h.inCell {
				h.collect = true
				h.hasValue = true
			}
		case "is":
			if h.inCell {
				h.inIs = true
			}
		case "t":
			if h.inIs {
				h.collect = true
				h.hasValue = true
			}
		}
	case sax.CharData:
		if h.collect {
			h.value = append(h.value, ev.Text...)
		}
	case sax.EndElement:
		switch localName(ev.Name) {
		case "v", "t":
			h.collect = false
		case "is":
			h.inIs = false
		case "c":
			if !h.inCell {
				break
			}
			cell, err := h.endCell(acc)
			if err != nil {
				return err
			}
			h.row = append(h.row, cell)
		case "row":
			row := h.row
			h.row = nil
			if len(row) == 0 {
				break
			}
			return acc.AppendRow(row)
		}
	}
	return nil
}

func (h *WorksheetHandler) startCell(ev sax.Event) {
	h.inCell = true
	h.inIs = false
	h.collect = false
	h.hasValue = false
	h.value = h.value[:0]
	h.cellType, _ = ev.Attr("t")

	h.hasStyle = false
	h.style = 0
	if s, ok := ev.Attr("s"); ok {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			h.style = n
			h.hasStyle = true
		}
	}

	h.col = h.nextCol
	h.cellRef, _ = ev.Attr("r")
	if h.cellRef == "" {
		// some writers omit cell references; synthesize one
		h.cellRef = state.CellRef(h.col, h.rowNum-1)
	} else if col, _, err := state.ParseCellRef(h.cellRef); err == nil {
		h.col = col
	}
}

func (h *WorksheetHandler) endCell(acc *state.Accumulator) (state.Cell, error) {
	h.inCell = false
	h.collect = false
	h.nextCol = h.col + 1

	cell := state.Cell{Ref: h.cellRef}
	if !h.hasValue {
		return cell, nil
	}
	raw := string(h.value)

	switch h.cellType {
	case "s":
		idx, err := strconv.Atoi(raw)
		if err != nil {
			return cell, fmt.Errorf("cell %s: invalid shared string index %q", h.cellRef, raw)
		}
		s, ok := acc.SharedString(idx)
		if !ok {
			return cell, fmt.Errorf("cell %s: shared string index %d out of range", h.cellRef, idx)
		}
		cell.Value = s
	case "str", "inlineStr":
		cell.Value = raw
	case "b":
		cell.Value = raw == "1"
	case "e":
		cell.Value = raw
	case "", "n":
		if raw == "" {
			return cell, nil
		}
		if h.hasStyle && acc.DateStyle(h.style) {
			serial, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return cell, fmt.Errorf("cell %s: invalid date serial %q", h.cellRef, raw)
			}
			cell.Value = excelDate(serial)
			return cell, nil
		}
		if n, err := strconv.Atoi(raw); err == nil {
			cell.Value = n
		} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
			cell.Value = f
		} else {
			return cell, fmt.Errorf("cell %s: invalid numeric value %q", h.cellRef, raw)
		}
	default:
		return cell, fmt.Errorf("cell %s: unknown cell type %q", h.cellRef, h.cellType)
	}
	return cell, nil
}

// excelEpoch is day zero of the 1900 date system. Using December 30 rather
// than 31 absorbs the inherited lotus leap-year bug for serials >= 60.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// excelDate converts an Excel serial date to a time.Time in UTC. The
// fractional part of the serial carries the time of day.
func excelDate(serial float64) time.Time {
	days := int(serial)
	frac := serial - float64(days)
	secs := int(frac*86400 + 0.5)
	return excelEpoch.AddDate(0, 0, days).Add(time.Duration(secs) * time.Second)
}
