package model

// HSCodeVariant is one candidate HS code offered to the reviewer when a
// product has several catalog variants.
type HSCodeVariant struct {
	HSCode     string            `json:"hsCode"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ExtractedProduct is one manifest data row with a non-empty product cell.
// RowIndex is the 0-based sheet row it was read from, so the writer can
// address the same row later. The resolution fields are filled in by the
// resolver: exactly one of HSCode / HasMultipleHSCodes is set for known
// products, neither for pending ones.
type ExtractedProduct struct {
	ProductName        string          `json:"productName"`
	RowIndex           int             `json:"rowIndex"`
	HSCode             string          `json:"hsCode,omitempty"`
	HasMultipleHSCodes bool            `json:"hasMultipleHSCodes,omitempty"`
	Variants           []HSCodeVariant `json:"variants,omitempty"`
}

// Pending reports whether the product still needs human input before its HS
// code can be written back.
func (p ExtractedProduct) Pending() bool {
	return p.HSCode == ""
}

// CompanyResolution is the per-company outcome of processing one manifest.
// IsNew means the company name matched nothing in the catalog; every product
// of a new company is pending by construction.
type CompanyResolution struct {
	CompanyNameEN string             `json:"companyNameEN"`
	CompanyNameKR string             `json:"companyNameKR"`
	CompanyID     string             `json:"companyId,omitempty"`
	IsNew         bool               `json:"isNew"`
	Products      []ExtractedProduct `json:"products"`
}
