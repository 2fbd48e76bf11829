package model

// TemplateMapping describes where a carrier's manifest template keeps the
// cells this system cares about. Rows are 1-based as configured; the sheet
// engine translates to 0-based indices when reading. Columns are spreadsheet
// letters ("A", "B", ...).
type TemplateMapping struct {
	CarrierID         string `json:"carrierId" yaml:"carrier_id"`
	TemplateID        string `json:"templateId" yaml:"template_id"`
	CompanyNameRow    int    `json:"companyNameRow" yaml:"company_name_row"`
	CompanyNameColumn string `json:"companyNameColumn" yaml:"company_name_column"`
	ProductColumn     string `json:"productColumn" yaml:"product_column"`
	HSCodeColumn      string `json:"hsCodeColumn" yaml:"hs_code_column"`
	StartRow          int    `json:"startRow" yaml:"start_row"`
	Description       string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Carrier is a shipping line whose manifests this system knows how to read.
type Carrier struct {
	ID   string `json:"carrierId" yaml:"carrier_id"`
	Name string `json:"name" yaml:"name"`
}
