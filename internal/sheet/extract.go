package sheet

import (
	"github.com/rotisserie/eris"

	"github.com/clearship/hscodex/internal/model"
)

// ExtractCompanyName reads the company-name cell named by the mapping.
// The configured row is 1-based; the cell is read at row-1.
func (d *Document) ExtractCompanyName(mapping model.TemplateMapping) (string, error) {
	col, err := columnIndex(mapping.CompanyNameColumn)
	if err != nil {
		return "", err
	}
	cell, err := cellName(mapping.CompanyNameRow-1, col)
	if err != nil {
		return "", err
	}
	v, err := d.f.GetCellValue(d.sheet, cell)
	if err != nil {
		return "", eris.Wrapf(err, "sheet: read company name cell %s", cell)
	}
	name := model.NormalizeName(v)
	if name == "" {
		return "", ErrCompanyNameMissing
	}
	return name, nil
}

// ExtractProducts scans data rows from the mapping's start row (1-based in
// configuration, startRow-1 internally) through the sheet's last populated
// row, in ascending order. Rows whose product cell is empty or blank after
// trimming are skipped; a blank product cell does not terminate the scan,
// since manifests may interleave blank separator rows with further data.
// RowIndex on each product is the 0-based sheet row it was read from.
func (d *Document) ExtractProducts(mapping model.TemplateMapping) ([]model.ExtractedProduct, error) {
	col, err := columnIndex(mapping.ProductColumn)
	if err != nil {
		return nil, err
	}

	rows, err := d.f.GetRows(d.sheet)
	if err != nil {
		return nil, eris.Wrap(err, "sheet: read rows")
	}

	var products []model.ExtractedProduct
	for i := mapping.StartRow - 1; i >= 0 && i < len(rows); i++ {
		if col >= len(rows[i]) {
			continue
		}
		name := model.NormalizeName(rows[i][col])
		if name == "" {
			continue
		}
		products = append(products, model.ExtractedProduct{
			ProductName: name,
			RowIndex:    i,
		})
	}
	return products, nil
}

// Preview returns the extraction sanity check a reviewer confirms before full
// processing: the company name and the first product row. A sheet with no
// product rows yields an empty FirstProductName rather than an error.
func (d *Document) Preview(mapping model.TemplateMapping) (*model.PreviewResult, error) {
	companyName, err := d.ExtractCompanyName(mapping)
	if err != nil {
		return nil, err
	}
	products, err := d.ExtractProducts(mapping)
	if err != nil {
		return nil, err
	}
	res := &model.PreviewResult{CompanyName: companyName}
	if len(products) > 0 {
		res.FirstProductName = products[0].ProductName
	}
	return res, nil
}
