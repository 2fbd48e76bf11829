// Package reconcile persists human-confirmed review decisions to the catalog.
//
// All writes are per-key: there are no cross-key transactions, so a crash in
// the middle of a default-flag batch can leave more than one variant marked
// default. Re-running the same selection repairs the flags, which is why every
// operation here is written to be idempotent in its end state.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clearship/hscodex/internal/model"
	"github.com/clearship/hscodex/internal/store"
)

// Reconciler applies confirmed review input to the catalog.
type Reconciler struct {
	store store.Store
}

// New creates a Reconciler.
func New(st store.Store) *Reconciler {
	return &Reconciler{store: st}
}

// CommitNewCompany registers a company and one catalog entry per confirmed
// product. Products without variant attributes become the default variant.
//
// There is no duplicate guard: a second call for the same English name
// creates a second company. Callers must gate on GetCompanyByName first, and
// the operation is not retried on persistence failure for the same reason.
func (r *Reconciler) CommitNewCompany(ctx context.Context, req model.UpdateCompanyRequest) (string, error) {
	nameEN := model.NormalizeName(req.CompanyNameEN)
	if nameEN == "" {
		return "", eris.New("reconcile: company name is required")
	}
	for _, p := range req.Products {
		if p.HSCode == "" {
			return "", eris.Errorf("reconcile: hs code is required for product %q", model.NormalizeName(p.ProductName))
		}
	}

	companyID := uuid.New().String()
	now := time.Now().UTC()

	err := r.store.CreateCompany(ctx, model.Company{
		ID:          companyID,
		NameEN:      nameEN,
		NameKR:      model.NormalizeName(req.CompanyNameKR),
		LastUpdated: now,
	})
	if err != nil {
		return "", eris.Wrapf(err, "reconcile: create company %q", nameEN)
	}

	for _, p := range req.Products {
		productName := model.NormalizeName(p.ProductName)
		variantID := model.VariantID(p.VariantAttributes)
		entry := model.CatalogEntry{
			CompanyID:         companyID,
			SK:                model.ProductSK(productName, variantID),
			ProductName:       productName,
			HSCode:            p.HSCode,
			VariantAttributes: p.VariantAttributes,
			DefaultVariant:    len(p.VariantAttributes) == 0,
			LastUpdated:       now,
		}
		if err := r.store.PutCatalogEntry(ctx, entry); err != nil {
			return "", eris.Wrapf(err, "reconcile: put product %q for new company %q", productName, nameEN)
		}
	}

	zap.L().Info("reconcile: registered company",
		zap.String("company_id", companyID),
		zap.String("name_en", nameEN),
		zap.Int("products", len(req.Products)),
	)
	return companyID, nil
}

// SelectVariant records the reviewer's HS-code choice for one product of an
// existing company. Three cases:
//
//  1. the product has no catalog entries: a new default entry is created
//  2. an entry with the chosen code exists: the default flag is re-pointed to
//     it and away from its siblings, nothing is created
//  3. no entry has the chosen code: a new default entry is created under the
//     "selected" variant id and every prior sibling is demoted
//
// After a complete run at most one entry per (company, product) is default.
// A failure partway through the sibling updates is surfaced and may leave the
// flags inconsistent; repeating the call repairs them.
func (r *Reconciler) SelectVariant(ctx context.Context, companyID, productName, selectedHSCode string) error {
	productName = model.NormalizeName(productName)
	if selectedHSCode == "" {
		return eris.Errorf("reconcile: hs code is required for product %q", productName)
	}
	now := time.Now().UTC()

	siblings, err := r.store.GetProductVariants(ctx, companyID, productName)
	if err != nil {
		return eris.Wrapf(err, "reconcile: load variants for %q", productName)
	}

	if len(siblings) == 0 {
		entry := model.CatalogEntry{
			CompanyID:      companyID,
			SK:             model.ProductSK(productName, model.DefaultVariantID),
			ProductName:    productName,
			HSCode:         selectedHSCode,
			DefaultVariant: true,
			LastUpdated:    now,
		}
		return eris.Wrapf(r.store.PutCatalogEntry(ctx, entry),
			"reconcile: create variant for %q", productName)
	}

	matched := false
	for _, s := range siblings {
		if s.HSCode == selectedHSCode {
			matched = true
			break
		}
	}

	if !matched {
		entry := model.CatalogEntry{
			CompanyID:      companyID,
			SK:             model.ProductSK(productName, model.SelectedVariantID),
			ProductName:    productName,
			HSCode:         selectedHSCode,
			DefaultVariant: true,
			LastUpdated:    now,
		}
		if err := r.store.PutCatalogEntry(ctx, entry); err != nil {
			return eris.Wrapf(err, "reconcile: add selected variant for %q", productName)
		}
		for _, s := range siblings {
			if err := r.store.SetDefaultVariant(ctx, companyID, s.SK, false); err != nil {
				return eris.Wrapf(err, "reconcile: demote variant %s (batch incomplete, retry to repair)", s.SK)
			}
		}
		return nil
	}

	for _, s := range siblings {
		isDefault := s.HSCode == selectedHSCode
		if err := r.store.SetDefaultVariant(ctx, companyID, s.SK, isDefault); err != nil {
			return eris.Wrapf(err, "reconcile: update variant %s (batch incomplete, retry to repair)", s.SK)
		}
	}
	return nil
}

// SelectVariants applies a reviewer's selections for several products of one
// company. The company must exist; selections are applied in order and the
// first failure stops the batch.
func (r *Reconciler) SelectVariants(ctx context.Context, req model.SelectHsCodesRequest) error {
	if _, err := r.store.GetCompany(ctx, req.CompanyID); err != nil {
		return eris.Wrapf(err, "reconcile: select variants for company %s", req.CompanyID)
	}

	for _, p := range req.Products {
		if err := r.SelectVariant(ctx, req.CompanyID, p.ProductName, p.SelectedHSCode); err != nil {
			return err
		}
	}

	zap.L().Info("reconcile: recorded selections",
		zap.String("company_id", req.CompanyID),
		zap.Int("products", len(req.Products)),
	)
	return nil
}
