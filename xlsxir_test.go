package xlsxir

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/AlexKovalevych/xlsxir/state"
)

func writeZipFile(t *testing.T, zw *zip.Writer, name, content string) {
	t.Helper()
	f, err := zw.Create(name)
	if err != nil {
		t.Fatalf("creating %s in ZIP: %v", name, err)
	}
	if _, err := f.Write([]byte(content)); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

// buildTestXLSX assembles a minimal XLSX container in memory. Sheets are
// written in slice order as sheet1.xml, sheet2.xml, and so on.
func buildTestXLSX(t *testing.T, sheetNames []string, sheetXML []string, sharedStrings []string, styles string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	contentTypes := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>
</Types>`
	writeZipFile(t, zw, "[Content_Types].xml", contentTypes)

	rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>
</Relationships>`
	writeZipFile(t, zw, "_rels/.rels", rels)

	var wbRels bytes.Buffer
	wbRels.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i := range sheetNames {
		fmt.Fprintf(&wbRels, "\n  <Relationship Id=\"rId%d\" Type=\"http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet\" Target=\"worksheets/sheet%d.xml\"/>", i+1, i+1)
	}
	wbRels.WriteString("\n</Relationships>")
	writeZipFile(t, zw, "xl/_rels/workbook.xml.rels", wbRels.String())

	var wb bytes.Buffer
	wb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets>`)
	for i, name := range sheetNames {
		fmt.Fprintf(&wb, "\n  <sheet name=\"%s\" sheetId=\"%d\" r:id=\"rId%d\"/>", name, i+1, i+1)
	}
	wb.WriteString("\n</sheets>\n</workbook>")
	writeZipFile(t, zw, "xl/workbook.xml", wb.String())

	if len(sharedStrings) > 0 {
		var ss bytes.Buffer
		fmt.Fprintf(&ss, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="%d" uniqueCount="%d">`, len(sharedStrings), len(sharedStrings))
		for _, s := range sharedStrings {
			fmt.Fprintf(&ss, "\n  <si><t>%s</t></si>", s)
		}
		ss.WriteString("\n</sst>")
		writeZipFile(t, zw, "xl/sharedStrings.xml", ss.String())
	}

	if styles != "" {
		writeZipFile(t, zw, "xl/styles.xml", styles)
	}

	for i, content := range sheetXML {
		writeZipFile(t, zw, fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1), content)
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("closing ZIP writer: %v", err)
	}
	return buf.Bytes()
}

const testStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <cellXfs count="2">
    <xf numFmtId="0" fontId="0" fillId="0" borderId="0"/>
    <xf numFmtId="14" fontId="0" fillId="0" borderId="0"/>
  </cellXfs>
</styleSheet>`

// testSheet1 encodes A1="string one", B1="string two", C1=10, D1=formula
// with cached value 20, E1=date 2016-01-01 (serial 42370, date style).
const testSheet1 = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheetData>
    <row r="1">
      <c r="A1" t="s"><v>0</v></c>
      <c r="B1" t="s"><v>1</v></c>
      <c r="C1"><v>10</v></c>
      <c r="D1"><f>C1*2</f><v>20</v></c>
      <c r="E1" s="1"><v>42370</v></c>
    </row>
  </sheetData>
</worksheet>`

func openTestWorkbook(t *testing.T, data []byte) *Workbook {
	t.Helper()
	wb, err := OpenReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("opening test workbook: %v", err)
	}
	t.Cleanup(func() { wb.Close() })
	return wb
}

func TestExtractEndToEnd(t *testing.T) {
	data := buildTestXLSX(t, []string{"Sheet1"}, []string{testSheet1},
		[]string{"string one", "string two"}, testStyles)
	wb := openTestWorkbook(t, data)

	rows, err := wb.Extract(0, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}

	want := state.Row{
		{Ref: "A1", Value: "string one"},
		{Ref: "B1", Value: "string two"},
		{Ref: "C1", Value: 10},
		{Ref: "D1", Value: 20},
		{Ref: "E1", Value: time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}
	row := rows[0]
	if len(row) != len(want) {
		t.Fatalf("got %d cells, want %d", len(row), len(want))
	}
	for i, w := range want {
		got := row[i]
		if got.Ref != w.Ref {
			t.Errorf("cell %d ref = %q, want %q", i, got.Ref, w.Ref)
		}
		if wt, ok := w.Value.(time.Time); ok {
			if gt, ok := got.Value.(time.Time); !ok || !gt.Equal(wt) {
				t.Errorf("cell %s = %v, want %v", w.Ref, got.Value, wt)
			}
			continue
		}
		if got.Value != w.Value {
			t.Errorf("cell %s = %v (%T), want %v (%T)", w.Ref, got.Value, got.Value, w.Value, w.Value)
		}
	}
}

func TestExtractRowLimit(t *testing.T) {
	var sheet bytes.Buffer
	sheet.WriteString(`<worksheet><sheetData>`)
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&sheet, `<row r="%d"><c r="A%d"><v>%d</v></c></row>`, i, i, i)
	}
	sheet.WriteString(`</sheetData></worksheet>`)

	data := buildTestXLSX(t, []string{"Sheet1"}, []string{sheet.String()}, nil, "")
	wb := openTestWorkbook(t, data)

	rows, err := wb.Extract(0, 3)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows with limit 3, want 3", len(rows))
	}
	if rows[2][0].Value != 3 {
		t.Errorf("last row value = %v, want 3", rows[2][0].Value)
	}

	// a following unlimited extraction is unaffected by the earlier limit
	rows, err = wb.Extract(0, 0)
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	if len(rows) != 10 {
		t.Errorf("got %d rows without limit, want 10", len(rows))
	}
}

func TestMultiExtract(t *testing.T) {
	sheet2 := `<worksheet><sheetData><row r="1"><c r="A1"><v>99</v></c></row></sheetData></worksheet>`
	data := buildTestXLSX(t, []string{"First", "Second"}, []string{testSheet1, sheet2},
		[]string{"string one", "string two"}, testStyles)
	wb := openTestWorkbook(t, data)

	all, err := wb.MultiExtract()
	if err != nil {
		t.Fatalf("MultiExtract: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d sheets, want 2", len(all))
	}
	if len(all[0]) != 1 || len(all[0][0]) != 5 {
		t.Errorf("sheet 1 shape = %d rows, want 1 row of 5 cells", len(all[0]))
	}
	if all[1][0][0].Value != 99 {
		t.Errorf("sheet 2 A1 = %v, want 99", all[1][0][0].Value)
	}
}

func TestSheetNames(t *testing.T) {
	sheet := `<worksheet><sheetData/></worksheet>`
	data := buildTestXLSX(t, []string{"Revenue", "Costs"}, []string{sheet, sheet}, nil, "")
	wb := openTestWorkbook(t, data)

	if wb.SheetCount() != 2 {
		t.Errorf("SheetCount() = %d, want 2", wb.SheetCount())
	}
	names := wb.SheetNames()
	if len(names) != 2 || names[0] != "Revenue" || names[1] != "Costs" {
		t.Errorf("SheetNames() = %v, want [Revenue Costs]", names)
	}
}

func TestExtractIndexOutOfRange(t *testing.T) {
	sheet := `<worksheet><sheetData/></worksheet>`
	data := buildTestXLSX(t, []string{"Only"}, []string{sheet}, nil, "")
	wb := openTestWorkbook(t, data)

	if _, err := wb.Extract(1, 0); err == nil {
		t.Error("expected error for out-of-range sheet index")
	}
	if _, err := wb.Extract(-1, 0); err == nil {
		t.Error("expected error for negative sheet index")
	}
}

func TestOpenMissingWorkbookPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	writeZipFile(t, zw, "[Content_Types].xml", "<Types/>")
	if err := zw.Close(); err != nil {
		t.Fatalf("closing ZIP writer: %v", err)
	}

	_, err := OpenReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err == nil {
		t.Fatal("expected error for container without workbook part")
	}
}

func TestOpenFromFile(t *testing.T) {
	data := buildTestXLSX(t, []string{"Sheet1"}, []string{testSheet1},
		[]string{"string one", "string two"}, testStyles)

	path := filepath.Join(t.TempDir(), "test.xlsx")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	wb, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer wb.Close()

	rows, err := wb.Extract(0, 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(rows) != 1 || rows[0][0].Value != "string one" {
		t.Errorf("unexpected extraction result: %+v", rows)
	}
}

func TestOpenNotAZip(t *testing.T) {
	_, err := OpenReader(bytes.NewReader([]byte("not a zip archive")), 17)
	if err == nil {
		t.Fatal("expected error for invalid container")
	}
}
