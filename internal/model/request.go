package model

// VerifiedData carries the values a reviewer confirmed on the preview screen.
// When present, extraction must reproduce them exactly or processing fails.
type VerifiedData struct {
	CompanyName      string `json:"companyName"`
	FirstProductName string `json:"firstProductName"`
}

// ProcessRequest asks for one uploaded manifest to be processed.
type ProcessRequest struct {
	FileKey    string        `json:"fileKey"`
	TemplateID string        `json:"templateId"`
	CarrierID  string        `json:"carrierId"`
	Verified   *VerifiedData `json:"verifiedData,omitempty"`
}

// ProcessResponse returns the result file handle and the companies awaiting
// review.
type ProcessResponse struct {
	ResultFileKey    string              `json:"resultFileKey"`
	PendingCompanies []CompanyResolution `json:"pendingCompanies"`
}

// NewProduct is one confirmed product row submitted with a new company.
type NewProduct struct {
	ProductName       string            `json:"productName"`
	HSCode            string            `json:"hsCode"`
	VariantAttributes map[string]string `json:"variantAttributes,omitempty"`
}

// UpdateCompanyRequest registers a new company and its confirmed products.
type UpdateCompanyRequest struct {
	CompanyNameEN string       `json:"companyNameEN"`
	CompanyNameKR string       `json:"companyNameKR"`
	Products      []NewProduct `json:"products"`
}

// ProductSelection is a reviewer's HS-code choice for one product.
type ProductSelection struct {
	ProductName    string `json:"productName"`
	SelectedHSCode string `json:"selectedHsCode"`
}

// SelectHsCodesRequest records variant selections for an existing company.
type SelectHsCodesRequest struct {
	CompanyID string             `json:"companyId"`
	Products  []ProductSelection `json:"products"`
}

// PreviewResult is the read-only extraction sanity check.
type PreviewResult struct {
	CompanyName      string `json:"companyName"`
	FirstProductName string `json:"firstProductName"`
}
