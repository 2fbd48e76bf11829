package sheet

import (
	"github.com/rotisserie/eris"

	"github.com/clearship/hscodex/internal/model"
)

// WriteHSCodes writes each resolved HS code into the mapping's HS-code column
// at the product's recorded row, as a text-typed cell. Pending products are
// left untouched: the writer never invents a code.
//
// Companies still awaiting registration are skipped entirely; their products
// carry no codes yet. Writing is idempotent, and no cell outside
// (rowIndex, hsCodeColumn) is modified.
func (d *Document) WriteHSCodes(mapping model.TemplateMapping, companies []model.CompanyResolution) error {
	col, err := columnIndex(mapping.HSCodeColumn)
	if err != nil {
		return err
	}

	for _, company := range companies {
		if company.IsNew {
			continue
		}
		for _, product := range company.Products {
			if product.HSCode == "" {
				continue
			}
			cell, err := cellName(product.RowIndex, col)
			if err != nil {
				return err
			}
			if err := d.f.SetCellStr(d.sheet, cell, product.HSCode); err != nil {
				return eris.Wrapf(err, "sheet: write hs code at %s", cell)
			}
		}
	}
	return nil
}
