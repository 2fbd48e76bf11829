package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearship/hscodex/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetCompanyByName_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name_en, name_kr, last_updated FROM companies WHERE name_en = \$1`).
		WithArgs("Nobody Co").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCompanyByName(context.Background(), "Nobody Co")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCompanyByName_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, name_en, name_kr, last_updated FROM companies WHERE name_en = \$1`).
		WithArgs("Acme Inc").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name_en", "name_kr", "last_updated"}).
			AddRow("c-1", "Acme Inc", "아크메", now))

	c, err := s.GetCompanyByName(context.Background(), "Acme Inc")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "c-1", c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCompany_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name_en, name_kr, last_updated FROM companies WHERE id = \$1`).
		WithArgs("missing-id").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetCompany(context.Background(), "missing-id")
	assert.ErrorIs(t, err, ErrCompanyNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTemplate_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM templates WHERE carrier_id = \$1 AND template_id = \$2`).
		WithArgs("ghost", "none").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetTemplate(context.Background(), "ghost", "none")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductVariants_OrderAndAttrs(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM products WHERE company_id = \$1 AND product_name = \$2 ORDER BY sk`).
		WithArgs("c-1", "Widget").
		WillReturnRows(pgxmock.NewRows([]string{"company_id", "sk", "product_name", "hs_code", "variant_attributes", "default_variant", "last_updated"}).
			AddRow("c-1", "Widget#metal", "Widget", "7654.32", []byte(`{"material":"metal"}`), true, now).
			AddRow("c-1", "Widget#plastic", "Widget", "1234.56", []byte(nil), false, now))

	entries, err := s.GetProductVariants(context.Background(), "c-1", "Widget")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]string{"material": "metal"}, entries[0].VariantAttributes)
	assert.Nil(t, entries[1].VariantAttributes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutCatalogEntry_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO products .* ON CONFLICT \(company_id, sk\) DO UPDATE SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.PutCatalogEntry(context.Background(), model.CatalogEntry{
		CompanyID:   "c-1",
		SK:          "Widget#default",
		ProductName: "Widget",
		HSCode:      "1234.56",
		LastUpdated: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetDefaultVariant_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE products SET default_variant = \$1, last_updated = \$2 WHERE company_id = \$3 AND sk = \$4`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetDefaultVariant(context.Background(), "c-1", "Ghost#default", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variant not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
