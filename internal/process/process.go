// Package process orchestrates one manifest-processing request: fetch
// the workbook from blob storage, extract company and product rows per
// the carrier template, resolve HS codes against the catalog, write
// resolved codes back, and store the result file. Each request is an
// independent unit of work; all durable state lives in the catalog and
// blob stores.
package process

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clearship/hscodex/internal/blob"
	"github.com/clearship/hscodex/internal/model"
	"github.com/clearship/hscodex/internal/resolve"
	"github.com/clearship/hscodex/internal/sheet"
	"github.com/clearship/hscodex/internal/store"
)

// ErrVerifyMismatch means the reviewer-confirmed preview values no
// longer match what extraction produces, typically because the wrong
// template or file key was submitted.
var ErrVerifyMismatch = eris.New("process: extracted values do not match verified data")

// Processor runs manifest processing requests.
type Processor struct {
	store    store.Store
	blobs    blob.Store
	resolver *resolve.Resolver
}

// New creates a Processor. lookupConcurrency bounds parallel catalog
// reads per request; zero means the resolver default.
func New(st store.Store, blobs blob.Store, lookupConcurrency int) *Processor {
	return &Processor{
		store:    st,
		blobs:    blobs,
		resolver: resolve.New(st, lookupConcurrency),
	}
}

// open loads the workbook and template mapping for a request.
func (p *Processor) open(ctx context.Context, fileKey, carrierID, templateID string) (*sheet.Document, model.TemplateMapping, error) {
	mapping, err := p.store.GetTemplate(ctx, carrierID, templateID)
	if err != nil {
		return nil, model.TemplateMapping{}, eris.Wrapf(err, "process: template %s/%s", carrierID, templateID)
	}
	data, err := p.blobs.Get(ctx, fileKey)
	if err != nil {
		return nil, model.TemplateMapping{}, eris.Wrapf(err, "process: load %s", fileKey)
	}
	doc, err := sheet.OpenBytes(data)
	if err != nil {
		return nil, model.TemplateMapping{}, eris.Wrapf(err, "process: open workbook %s", fileKey)
	}
	return doc, *mapping, nil
}

// Preview extracts the company name and first product without writing
// anything, so a reviewer can sanity-check the template before a full
// run.
func (p *Processor) Preview(ctx context.Context, fileKey, carrierID, templateID string) (*model.PreviewResult, error) {
	doc, mapping, err := p.open(ctx, fileKey, carrierID, templateID)
	if err != nil {
		return nil, err
	}
	defer doc.Close() //nolint:errcheck

	return doc.Preview(mapping)
}

// Process runs the full pipeline for one uploaded manifest and returns
// the result file key plus the companies awaiting review. A fatal error
// produces no result file; per-product lookup failures degrade to
// pending rows instead of aborting.
func (p *Processor) Process(ctx context.Context, req model.ProcessRequest) (*model.ProcessResponse, error) {
	start := time.Now()

	doc, mapping, err := p.open(ctx, req.FileKey, req.CarrierID, req.TemplateID)
	if err != nil {
		return nil, err
	}
	defer doc.Close() //nolint:errcheck

	companyName, err := doc.ExtractCompanyName(mapping)
	if err != nil {
		return nil, eris.Wrapf(err, "process: %s", req.FileKey)
	}
	products, err := doc.ExtractProducts(mapping)
	if err != nil {
		return nil, eris.Wrapf(err, "process: %s", req.FileKey)
	}

	if err := checkVerified(req.Verified, companyName, products); err != nil {
		return nil, err
	}

	resolution, err := p.resolver.Resolve(ctx, companyName, products)
	if err != nil {
		return nil, eris.Wrapf(err, "process: resolve %s", companyName)
	}

	companies := []model.CompanyResolution{*resolution}
	if err := doc.WriteHSCodes(mapping, companies); err != nil {
		return nil, eris.Wrapf(err, "process: write back %s", req.FileKey)
	}

	out, err := doc.Bytes()
	if err != nil {
		return nil, eris.Wrapf(err, "process: serialize %s", req.FileKey)
	}
	resultKey := blob.ResultKey(req.FileKey)
	if err := p.blobs.Put(ctx, resultKey, out); err != nil {
		return nil, eris.Wrapf(err, "process: store result for %s", req.FileKey)
	}

	pending := 0
	for _, pr := range resolution.Products {
		if pr.Pending() {
			pending++
		}
	}
	zap.L().Info("manifest processed",
		zap.String("file_key", req.FileKey),
		zap.String("result_key", resultKey),
		zap.String("company", companyName),
		zap.Bool("new_company", resolution.IsNew),
		zap.Int("products", len(resolution.Products)),
		zap.Int("pending", pending),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &model.ProcessResponse{
		ResultFileKey:    resultKey,
		PendingCompanies: companies,
	}, nil
}

// checkVerified compares reviewer-confirmed preview values against
// fresh extraction. A nil verification passes.
func checkVerified(v *model.VerifiedData, companyName string, products []model.ExtractedProduct) error {
	if v == nil {
		return nil
	}
	first := ""
	if len(products) > 0 {
		first = products[0].ProductName
	}
	if v.CompanyName != companyName || v.FirstProductName != first {
		return eris.Wrapf(ErrVerifyMismatch, "got company %q first product %q, verified company %q first product %q",
			companyName, first, v.CompanyName, v.FirstProductName)
	}
	return nil
}

// UploadKey places an uploaded file under the upload prefix, keeping
// only the base name of whatever path the client sent.
func UploadKey(filename string) string {
	name := filename
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		name = "upload.xlsx"
	}
	return blob.UploadPrefix + name
}
