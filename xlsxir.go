// Package xlsxir extracts worksheet data from XLSX spreadsheet files by
// streaming their XML fragments through an incremental push parser, without
// ever holding a whole fragment in memory.
//
// Basic usage:
//
//	wb, err := xlsxir.Open("report.xlsx")
//	if err != nil {
//	    // handle error
//	}
//	defer wb.Close()
//
//	rows, err := wb.Extract(0, 0) // first sheet, no row limit
//
// Styles and the shared string table are parsed once, before the first
// worksheet extraction, and shared by every subsequent Extract call. The
// lower-level stream package is available for parsing individual fragments.
package xlsxir

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/AlexKovalevych/xlsxir/state"
	"github.com/AlexKovalevych/xlsxir/stream"
)

// Workbook provides access to the worksheets of an open XLSX container.
type Workbook struct {
	zr       *zip.Reader
	closer   io.Closer
	acc      *state.Accumulator
	sheets   []sheetInfo
	prepared bool
}

type sheetInfo struct {
	name string
	part string // path of the worksheet part inside the container
}

// Open opens an XLSX file for extraction. The returned Workbook must be
// closed when done.
func Open(filename string) (*Workbook, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX container: %w", err)
	}
	w, err := newWorkbook(&zr.Reader)
	if err != nil {
		zr.Close()
		return nil, err
	}
	w.closer = zr
	return w, nil
}

// OpenReader opens an XLSX container from an already-available byte source,
// such as an in-memory buffer. The caller keeps ownership of r.
func OpenReader(r io.ReaderAt, size int64) (*Workbook, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX container: %w", err)
	}
	return newWorkbook(zr)
}

func newWorkbook(zr *zip.Reader) (*Workbook, error) {
	w := &Workbook{zr: zr, acc: state.NewAccumulator()}

	if err := w.validate(); err != nil {
		return nil, err
	}
	rels, err := w.parseRelationships()
	if err != nil {
		return nil, fmt.Errorf("parsing relationships: %w", err)
	}
	if err := w.parseWorkbook(rels); err != nil {
		return nil, fmt.Errorf("parsing workbook: %w", err)
	}
	return w, nil
}

// Close releases the underlying container handle, when the Workbook owns
// one.
func (w *Workbook) Close() error {
	if w.closer != nil {
		err := w.closer.Close()
		w.closer = nil
		return err
	}
	return nil
}

// Accumulator returns the accumulator session backing this workbook. Style
// and shared-string data are queried here; worksheet rows are returned by
// Extract directly.
func (w *Workbook) Accumulator() *state.Accumulator {
	return w.acc
}

// SheetCount returns the number of worksheets in the workbook.
func (w *Workbook) SheetCount() int {
	return len(w.sheets)
}

// SheetNames returns the names of all worksheets in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.sheets))
	for i, s := range w.sheets {
		names[i] = s.name
	}
	return names
}

// Extract parses the worksheet at the given index (0-indexed) and returns
// its rows. A positive maxRows stops the parse once that many rows have been
// accumulated; zero means no limit.
func (w *Workbook) Extract(index, maxRows int) ([]state.Row, error) {
	if index < 0 || index >= len(w.sheets) {
		return nil, fmt.Errorf("sheet index %d out of range (0-%d)", index, len(w.sheets)-1)
	}
	if err := w.prepare(); err != nil {
		return nil, err
	}
	f := w.file(w.sheets[index].part)
	if f == nil {
		return nil, fmt.Errorf("worksheet part not found: %s", w.sheets[index].part)
	}
	res, err := stream.Parse(w.acc, stream.OpenFunc(f.Open), stream.Worksheet, maxRows)
	if err != nil {
		return nil, fmt.Errorf("parsing worksheet %q: %w", w.sheets[index].name, err)
	}
	return res.Rows, nil
}

// MultiExtract parses every worksheet in workbook order and returns their
// rows.
func (w *Workbook) MultiExtract() ([][]state.Row, error) {
	if err := w.prepare(); err != nil {
		return nil, err
	}
	all := make([][]state.Row, 0, len(w.sheets))
	for _, s := range w.sheets {
		f := w.file(s.part)
		if f == nil {
			return nil, fmt.Errorf("worksheet part not found: %s", s.part)
		}
		res, err := stream.Parse(w.acc, stream.OpenFunc(f.Open), stream.MultiWorksheet, 0)
		if err != nil {
			return nil, fmt.Errorf("parsing worksheet %q: %w", s.name, err)
		}
		all = append(all, res.Rows)
	}
	return all, nil
}

// prepare parses the style and shared-string fragments into the accumulator.
// Worksheet extraction depends on both, so this runs once, before the first
// Extract call. Either part may be absent from the container.
func (w *Workbook) prepare() error {
	if w.prepared {
		return nil
	}
	if f := w.file("xl/styles.xml"); f != nil {
		if _, err := stream.Parse(w.acc, stream.OpenFunc(f.Open), stream.Style, 0); err != nil {
			return fmt.Errorf("parsing styles: %w", err)
		}
	}
	if f := w.file("xl/sharedStrings.xml"); f != nil {
		if _, err := stream.Parse(w.acc, stream.OpenFunc(f.Open), stream.SharedString, 0); err != nil {
			return fmt.Errorf("parsing shared strings: %w", err)
		}
	}
	w.prepared = true
	return nil
}

// validate checks that required container parts exist.
func (w *Workbook) validate() error {
	required := []string{
		"[Content_Types].xml",
		"xl/workbook.xml",
	}

	fileMap := make(map[string]bool)
	for _, f := range w.zr.File {
		fileMap[f.Name] = true
	}

	for _, name := range required {
		if !fileMap[name] {
			return fmt.Errorf("missing required file: %s", name)
		}
	}

	return nil
}

// file returns the container part with the given name, or nil.
func (w *Workbook) file(name string) *zip.File {
	for _, f := range w.zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// fileContent reads the full content of a container part. Only used for the
// small metadata parts; fragments are streamed instead.
func (w *Workbook) fileContent(name string) ([]byte, error) {
	f := w.file(name)
	if f == nil {
		return nil, fmt.Errorf("file not found: %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// parseRelationships parses the workbook relationships part into an RID to
// target map. Relationships are optional.
func (w *Workbook) parseRelationships() (map[string]string, error) {
	data, err := w.fileContent("xl/_rels/workbook.xml.rels")
	if err != nil {
		// Try alternate location
		data, err = w.fileContent("xl/_rels/workbook.rels")
		if err != nil {
			return nil, nil
		}
	}

	var rels relationshipsXML
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, err
	}

	targets := make(map[string]string, len(rels.Relationship))
	for _, rel := range rels.Relationship {
		targets[rel.ID] = rel.Target
	}
	return targets, nil
}

// parseWorkbook parses the main workbook part and resolves each declared
// sheet to its worksheet part path.
func (w *Workbook) parseWorkbook(rels map[string]string) error {
	data, err := w.fileContent("xl/workbook.xml")
	if err != nil {
		return err
	}

	var wb workbookXML
	if err := xml.Unmarshal(data, &wb); err != nil {
		return err
	}

	w.sheets = make([]sheetInfo, 0, len(wb.Sheets.Sheet))
	for i, ref := range wb.Sheets.Sheet {
		target := rels[ref.RID]
		if target == "" {
			// Try default naming
			target = fmt.Sprintf("worksheets/sheet%d.xml", i+1)
		}

		// Normalize path
		if !strings.HasPrefix(target, "xl/") && !strings.HasPrefix(target, "/") {
			target = "xl/" + target
		}
		target = strings.TrimPrefix(target, "/")

		w.sheets = append(w.sheets, sheetInfo{name: ref.Name, part: target})
	}

	if len(w.sheets) == 0 {
		return fmt.Errorf("no worksheets found")
	}
	return nil
}
