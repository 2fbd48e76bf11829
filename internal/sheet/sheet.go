// Package sheet reads and writes carrier manifest workbooks. All operations
// target the workbook's first worksheet; templates address cells with 1-based
// rows and spreadsheet column letters, which are translated to the 0-based
// indices used internally. A Document is not safe for concurrent use.
package sheet

import (
	"bytes"
	"io"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

// ErrCompanyNameMissing is returned when the template's company-name cell is
// empty. Nothing downstream is well-defined without a company anchor, so this
// aborts the whole request.
var ErrCompanyNameMissing = eris.New("sheet: company name cell is empty")

// Document is an open manifest workbook.
type Document struct {
	f     *excelize.File
	sheet string
}

// Open reads a workbook from r.
func Open(r io.Reader) (*Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: open workbook")
	}
	name := f.GetSheetName(0)
	if name == "" {
		f.Close()
		return nil, eris.New("sheet: workbook has no worksheets")
	}
	return &Document{f: f, sheet: name}, nil
}

// OpenBytes reads a workbook from an in-memory buffer.
func OpenBytes(b []byte) (*Document, error) {
	return Open(bytes.NewReader(b))
}

// Bytes serializes the workbook back to XLSX bytes.
func (d *Document) Bytes() ([]byte, error) {
	buf, err := d.f.WriteToBuffer()
	if err != nil {
		return nil, eris.Wrap(err, "sheet: serialize workbook")
	}
	return buf.Bytes(), nil
}

// Close releases the underlying workbook.
func (d *Document) Close() error {
	return d.f.Close()
}
