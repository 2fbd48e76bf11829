package sheet

import (
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

// columnIndex translates a spreadsheet column letter ("A", "B", ... "AA") to
// a 0-based column index.
func columnIndex(letter string) (int, error) {
	n, err := excelize.ColumnNameToNumber(letter)
	if err != nil {
		return 0, eris.Wrapf(err, "sheet: bad column letter %q", letter)
	}
	return n - 1, nil
}

// cellName builds an A1-style cell reference from 0-based row and column
// indices.
func cellName(row, col int) (string, error) {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return "", eris.Wrapf(err, "sheet: bad cell coordinates (%d, %d)", row, col)
	}
	return name, nil
}
