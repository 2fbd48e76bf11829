package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/clearship/hscodex/internal/model"
)

// ErrTemplateNotFound is returned when no coordinate mapping exists for a
// (carrier, template) pair. Processing must abort on it: guessing coordinates
// corrupts output silently.
var ErrTemplateNotFound = eris.New("store: template not found")

// ErrCompanyNotFound is returned by id-keyed company reads.
var ErrCompanyNotFound = eris.New("store: company not found")

// Store is the keyed persistence interface for the HS-code catalog and the
// carrier template registry. Implementations guarantee atomic per-key reads
// and writes only; there are no cross-key transactions, and callers of the
// multi-row default-flag updates must tolerate partially applied batches.
type Store interface {
	// Companies
	GetCompanyByName(ctx context.Context, nameEN string) (*model.Company, error) // (nil, nil) when unknown
	GetCompany(ctx context.Context, companyID string) (*model.Company, error)    // ErrCompanyNotFound when unknown
	CreateCompany(ctx context.Context, company model.Company) error

	// Catalog
	GetProductVariants(ctx context.Context, companyID, productName string) ([]model.CatalogEntry, error)
	PutCatalogEntry(ctx context.Context, entry model.CatalogEntry) error
	SetDefaultVariant(ctx context.Context, companyID, sk string, isDefault bool) error

	// Templates
	GetTemplate(ctx context.Context, carrierID, templateID string) (*model.TemplateMapping, error)
	PutTemplates(ctx context.Context, templates []model.TemplateMapping) (int64, error)
	ListTemplates(ctx context.Context, carrierID string) ([]model.TemplateMapping, error)
	ListCarriers(ctx context.Context) ([]model.Carrier, error)
	PutCarrier(ctx context.Context, carrier model.Carrier) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
