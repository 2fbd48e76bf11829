// Package resolve classifies extracted manifest products against the HS-code
// catalog.
package resolve

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clearship/hscodex/internal/model"
	"github.com/clearship/hscodex/internal/store"
)

const defaultLookupConcurrency = 8

// Resolver matches extracted products to catalog variants and classifies each
// as auto-resolved, multi-variant, or pending.
type Resolver struct {
	store       store.Store
	concurrency int
}

// New creates a Resolver. Per-product catalog lookups are independent reads
// and run concurrently, capped at the given limit.
func New(st store.Store, lookupConcurrency int) *Resolver {
	if lookupConcurrency <= 0 {
		lookupConcurrency = defaultLookupConcurrency
	}
	return &Resolver{store: st, concurrency: lookupConcurrency}
}

// Resolve looks up the company by its canonical English name, then classifies
// every product:
//
//   - no catalog variants: pending, needs human input
//   - exactly one variant: auto-resolved with that HS code
//   - several variants: marked multi-variant with the candidate list attached,
//     HS code left unset until a human selects one
//
// A company not in the catalog is marked new. Its products are still looked
// up under the (empty) company key and come back pending; new companies own
// no catalog entries by construction, so no special casing is needed.
//
// A failed lookup degrades that product to pending rather than failing the
// request: one bad read should not block unrelated rows.
func (r *Resolver) Resolve(ctx context.Context, companyNameEN string, products []model.ExtractedProduct) (*model.CompanyResolution, error) {
	company, err := r.store.GetCompanyByName(ctx, companyNameEN)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: look up company %q", companyNameEN)
	}

	res := &model.CompanyResolution{
		CompanyNameEN: companyNameEN,
		IsNew:         company == nil,
		Products:      make([]model.ExtractedProduct, len(products)),
	}
	copy(res.Products, products)

	var companyID string
	if company != nil {
		companyID = company.ID
		res.CompanyID = company.ID
		res.CompanyNameKR = company.NameKR
	}

	log := zap.L().With(zap.String("company", companyNameEN))

	variants := make([][]model.CatalogEntry, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range res.Products {
		g.Go(func() error {
			entries, lookupErr := r.store.GetProductVariants(gctx, companyID, res.Products[i].ProductName)
			if lookupErr != nil {
				log.Warn("resolve: variant lookup failed, leaving product pending",
					zap.String("product", res.Products[i].ProductName),
					zap.Error(lookupErr),
				)
				return nil
			}
			variants[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "resolve: variant lookups")
	}

	for i := range res.Products {
		switch entries := variants[i]; len(entries) {
		case 0:
			// pending
		case 1:
			res.Products[i].HSCode = entries[0].HSCode
		default:
			res.Products[i].HasMultipleHSCodes = true
			res.Products[i].Variants = make([]model.HSCodeVariant, len(entries))
			for j, e := range entries {
				res.Products[i].Variants[j] = model.HSCodeVariant{
					HSCode:     e.HSCode,
					Attributes: e.VariantAttributes,
				}
			}
		}
	}

	log.Debug("resolve: classified products",
		zap.Bool("is_new", res.IsNew),
		zap.Int("products", len(res.Products)),
	)
	return res, nil
}
