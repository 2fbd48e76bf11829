package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/clearship/hscodex/internal/db"
	"github.com/clearship/hscodex/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the per-product lookup path.
var preparedStatements = map[string]string{
	"get_company_by_name":  `SELECT id, name_en, name_kr, last_updated FROM companies WHERE name_en = $1`,
	"get_company":          `SELECT id, name_en, name_kr, last_updated FROM companies WHERE id = $1`,
	"get_product_variants": `SELECT company_id, sk, product_name, hs_code, variant_attributes, default_variant, last_updated FROM products WHERE company_id = $1 AND product_name = $2 ORDER BY sk`,
	"get_template":         `SELECT carrier_id, template_id, company_name_row, company_name_column, product_column, hs_code_column, start_row, description FROM templates WHERE carrier_id = $1 AND template_id = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id           TEXT PRIMARY KEY,
	name_en      TEXT NOT NULL,
	name_kr      TEXT NOT NULL DEFAULT '',
	last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_companies_name_en ON companies(name_en);

CREATE TABLE IF NOT EXISTS products (
	company_id         TEXT NOT NULL,
	sk                 TEXT NOT NULL,
	product_name       TEXT NOT NULL,
	hs_code            TEXT NOT NULL,
	variant_attributes JSONB,
	default_variant    BOOLEAN NOT NULL DEFAULT FALSE,
	last_updated       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (company_id, sk)
);

CREATE INDEX IF NOT EXISTS idx_products_company_product ON products(company_id, product_name);

CREATE TABLE IF NOT EXISTS carriers (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS templates (
	carrier_id          TEXT NOT NULL,
	template_id         TEXT NOT NULL,
	company_name_row    INTEGER NOT NULL,
	company_name_column TEXT NOT NULL,
	product_column      TEXT NOT NULL,
	hs_code_column      TEXT NOT NULL,
	start_row           INTEGER NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (carrier_id, template_id)
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetCompanyByName(ctx context.Context, nameEN string) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx,
		`SELECT id, name_en, name_kr, last_updated FROM companies WHERE name_en = $1`,
		nameEN,
	).Scan(&c.ID, &c.NameEN, &c.NameKR, &c.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company by name %q", nameEN)
	}
	return &c, nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, companyID string) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx,
		`SELECT id, name_en, name_kr, last_updated FROM companies WHERE id = $1`,
		companyID,
	).Scan(&c.ID, &c.NameEN, &c.NameKR, &c.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company %s", companyID)
	}
	return &c, nil
}

func (s *PostgresStore) CreateCompany(ctx context.Context, company model.Company) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO companies (id, name_en, name_kr, last_updated) VALUES ($1, $2, $3, $4)`,
		company.ID, company.NameEN, company.NameKR, company.LastUpdated.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert company %q", company.NameEN)
}

func (s *PostgresStore) GetProductVariants(ctx context.Context, companyID, productName string) ([]model.CatalogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT company_id, sk, product_name, hs_code, variant_attributes, default_variant, last_updated
		 FROM products WHERE company_id = $1 AND product_name = $2 ORDER BY sk`,
		companyID, productName,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get variants %s/%q", companyID, productName)
	}
	defer rows.Close()

	var entries []model.CatalogEntry
	for rows.Next() {
		var e model.CatalogEntry
		var attrs []byte
		if err := rows.Scan(&e.CompanyID, &e.SK, &e.ProductName, &e.HSCode, &attrs, &e.DefaultVariant, &e.LastUpdated); err != nil {
			return nil, eris.Wrap(err, "postgres: scan variant")
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &e.VariantAttributes); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal attributes for %s", e.SK)
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate variants")
}

func (s *PostgresStore) PutCatalogEntry(ctx context.Context, entry model.CatalogEntry) error {
	var attrs []byte
	if len(entry.VariantAttributes) > 0 {
		b, err := json.Marshal(entry.VariantAttributes)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal attributes for %s", entry.SK)
		}
		attrs = b
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO products (company_id, sk, product_name, hs_code, variant_attributes, default_variant, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (company_id, sk) DO UPDATE SET
		   hs_code = EXCLUDED.hs_code,
		   variant_attributes = EXCLUDED.variant_attributes,
		   default_variant = EXCLUDED.default_variant,
		   last_updated = EXCLUDED.last_updated`,
		entry.CompanyID, entry.SK, entry.ProductName, entry.HSCode, attrs, entry.DefaultVariant, entry.LastUpdated.UTC(),
	)
	return eris.Wrapf(err, "postgres: put catalog entry %s/%s", entry.CompanyID, entry.SK)
}

func (s *PostgresStore) SetDefaultVariant(ctx context.Context, companyID, sk string, isDefault bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET default_variant = $1, last_updated = $2 WHERE company_id = $3 AND sk = $4`,
		isDefault, time.Now().UTC(), companyID, sk,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set default variant %s/%s", companyID, sk)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: variant not found: %s/%s", companyID, sk)
	}
	return nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, carrierID, templateID string) (*model.TemplateMapping, error) {
	var t model.TemplateMapping
	err := s.pool.QueryRow(ctx,
		`SELECT carrier_id, template_id, company_name_row, company_name_column, product_column, hs_code_column, start_row, description
		 FROM templates WHERE carrier_id = $1 AND template_id = $2`,
		carrierID, templateID,
	).Scan(&t.CarrierID, &t.TemplateID, &t.CompanyNameRow, &t.CompanyNameColumn, &t.ProductColumn, &t.HSCodeColumn, &t.StartRow, &t.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get template %s/%s", carrierID, templateID)
	}
	return &t, nil
}

func (s *PostgresStore) PutTemplates(ctx context.Context, templates []model.TemplateMapping) (int64, error) {
	rows := make([][]any, len(templates))
	for i, t := range templates {
		rows[i] = []any{t.CarrierID, t.TemplateID, t.CompanyNameRow, t.CompanyNameColumn, t.ProductColumn, t.HSCodeColumn, t.StartRow, t.Description}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "templates",
		Columns:      []string{"carrier_id", "template_id", "company_name_row", "company_name_column", "product_column", "hs_code_column", "start_row", "description"},
		ConflictKeys: []string{"carrier_id", "template_id"},
	}, rows)
}

func (s *PostgresStore) ListTemplates(ctx context.Context, carrierID string) ([]model.TemplateMapping, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT carrier_id, template_id, company_name_row, company_name_column, product_column, hs_code_column, start_row, description
		 FROM templates WHERE carrier_id = $1 ORDER BY template_id`,
		carrierID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list templates for %s", carrierID)
	}
	defer rows.Close()

	var templates []model.TemplateMapping
	for rows.Next() {
		var t model.TemplateMapping
		if err := rows.Scan(&t.CarrierID, &t.TemplateID, &t.CompanyNameRow, &t.CompanyNameColumn, &t.ProductColumn, &t.HSCodeColumn, &t.StartRow, &t.Description); err != nil {
			return nil, eris.Wrap(err, "postgres: scan template")
		}
		templates = append(templates, t)
	}
	return templates, eris.Wrap(rows.Err(), "postgres: iterate templates")
}

func (s *PostgresStore) ListCarriers(ctx context.Context) ([]model.Carrier, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM carriers ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list carriers")
	}
	defer rows.Close()

	var carriers []model.Carrier
	for rows.Next() {
		var c model.Carrier
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan carrier")
		}
		carriers = append(carriers, c)
	}
	return carriers, eris.Wrap(rows.Err(), "postgres: iterate carriers")
}

func (s *PostgresStore) PutCarrier(ctx context.Context, carrier model.Carrier) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO carriers (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		carrier.ID, carrier.Name,
	)
	return eris.Wrapf(err, "postgres: put carrier %s", carrier.ID)
}
