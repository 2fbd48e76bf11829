package model

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Company is an importing business (tenant) known to the catalog. NameEN is
// the canonical lookup key joining manifests to the catalog; NameKR is the
// display name a reviewer supplies for new companies.
type Company struct {
	ID          string    `json:"companyId"`
	NameEN      string    `json:"companyNameEN"`
	NameKR      string    `json:"companyNameKR"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// CatalogEntry is one HS-code variant of a company's product. The composite
// key is (CompanyID, SK) with SK = productName#variantID. At most one entry
// per (company, product) may have DefaultVariant set.
type CatalogEntry struct {
	CompanyID         string            `json:"companyId"`
	SK                string            `json:"sk"`
	ProductName       string            `json:"productName"`
	HSCode            string            `json:"hsCode"`
	VariantAttributes map[string]string `json:"variantAttributes,omitempty"`
	DefaultVariant    bool              `json:"defaultVariant"`
	LastUpdated       time.Time         `json:"lastUpdated"`
}

// DefaultVariantID is the variant id of a product with no distinguishing
// attributes.
const DefaultVariantID = "default"

// SelectedVariantID is the variant id assigned when a reviewer picks an HS
// code that matches none of the product's recorded variants.
const SelectedVariantID = "selected"

// VariantID derives a variant identifier from the attribute map. Attribute
// entries are sorted by key and their values joined with "-", so the id is
// stable regardless of map iteration order. Products without attributes share
// DefaultVariantID.
func VariantID(attrs map[string]string) string {
	if len(attrs) == 0 {
		return DefaultVariantID
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = attrs[k]
	}
	return strings.Join(vals, "-")
}

// ProductSK builds the catalog sort key for a product variant.
func ProductSK(productName, variantID string) string {
	return productName + "#" + variantID
}

// NormalizeName trims whitespace and NFC-normalizes a company or product
// name. Extraction and reconciliation both go through it so that catalog
// keys agree regardless of which path wrote them first; manifests authored
// on macOS often carry decomposed Hangul.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
