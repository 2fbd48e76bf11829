package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/clearship/hscodex/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for
// single-operator installs and for tests that want a real store without a
// Postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id           TEXT PRIMARY KEY,
	name_en      TEXT NOT NULL,
	name_kr      TEXT NOT NULL DEFAULT '',
	last_updated DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_companies_name_en ON companies(name_en);

CREATE TABLE IF NOT EXISTS products (
	company_id         TEXT NOT NULL,
	sk                 TEXT NOT NULL,
	product_name       TEXT NOT NULL,
	hs_code            TEXT NOT NULL,
	variant_attributes TEXT,
	default_variant    INTEGER NOT NULL DEFAULT 0,
	last_updated       DATETIME NOT NULL DEFAULT (datetime('now')),
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCompanyByName(ctx context.Context, nameEN string) (*model.Company, error) {
	var c model.Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name_en, name_kr, last_updated FROM companies WHERE name_en = ?`,
		nameEN,
	).Scan(&c.ID, &c.NameEN, &c.NameKR, &c.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company by name %q", nameEN)
	}
	return &c, nil
}

func (s *SQLiteStore) GetCompany(ctx context.Context, companyID string) (*model.Company, error) {
	var c model.Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name_en, name_kr, last_updated FROM companies WHERE id = ?`,
		companyID,
	).Scan(&c.ID, &c.NameEN, &c.NameKR, &c.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company %s", companyID)
	}
	return &c, nil
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, company model.Company) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name_en, name_kr, last_updated) VALUES (?, ?, ?, ?)`,
		company.ID, company.NameEN, company.NameKR, company.LastUpdated.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert company %q", company.NameEN)
}

func (s *SQLiteStore) GetProductVariants(ctx context.Context, companyID, productName string) ([]model.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company_id, sk, product_name, hs_code, variant_attributes, default_variant, last_updated
		 FROM products WHERE company_id = ? AND product_name = ? ORDER BY sk`,
		companyID, productName,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get variants %s/%q", companyID, productName)
	}
	defer rows.Close()

	var entries []model.CatalogEntry
	for rows.Next() {
		var e model.CatalogEntry
		var attrs sql.NullString
		if err := rows.Scan(&e.CompanyID, &e.SK, &e.ProductName, &e.HSCode, &attrs, &e.DefaultVariant, &e.LastUpdated); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan variant")
		}
		if attrs.Valid && attrs.String != "" {
			if err := json.Unmarshal([]byte(attrs.String), &e.VariantAttributes); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal attributes for %s", e.SK)
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate variants")
}

func (s *SQLiteStore) PutCatalogEntry(ctx context.Context, entry model.CatalogEntry) error {
	var attrs any
	if len(entry.VariantAttributes) > 0 {
		b, err := json.Marshal(entry.VariantAttributes)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal attributes for %s", entry.SK)
		}
		attrs = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (company_id, sk, product_name, hs_code, variant_attributes, default_variant, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (company_id, sk) DO UPDATE SET
		   hs_code = excluded.hs_code,
		   variant_attributes = excluded.variant_attributes,
		   default_variant = excluded.default_variant,
		   last_updated = excluded.last_updated`,
		entry.CompanyID, entry.SK, entry.ProductName, entry.HSCode, attrs, entry.DefaultVariant, entry.LastUpdated.UTC(),
	)
	return eris.Wrapf(err, "sqlite: put catalog entry %s/%s", entry.CompanyID, entry.SK)
}

func (s *SQLiteStore) SetDefaultVariant(ctx context.Context, companyID, sk string, isDefault bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET default_variant = ?, last_updated = ? WHERE company_id = ? AND sk = ?`,
		isDefault, time.Now().UTC(), companyID, sk,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set default variant %s/%s", companyID, sk)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: variant not found: %s/%s", companyID, sk)
	}
	return nil
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, carrierID, templateID string) (*model.TemplateMapping, error) {
	var t model.TemplateMapping
	err := s.db.QueryRowContext(ctx,
		`SELECT carrier_id, template_id, company_name_row, company_name_column, product_column, hs_code_column, start_row, description
		 FROM templates WHERE carrier_id = ? AND template_id = ?`,
		carrierID, templateID,
	).Scan(&t.CarrierID, &t.TemplateID, &t.CompanyNameRow, &t.CompanyNameColumn, &t.ProductColumn, &t.HSCodeColumn, &t.StartRow, &t.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get template %s/%s", carrierID, templateID)
	}
	return &t, nil
}

func (s *SQLiteStore) PutTemplates(ctx context.Context, templates []model.TemplateMapping) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	var n int64
	for _, t := range templates {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO templates (carrier_id, template_id, company_name_row, company_name_column, product_column, hs_code_column, start_row, description)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (carrier_id, template_id) DO UPDATE SET
			   company_name_row = excluded.company_name_row,
			   company_name_column = excluded.company_name_column,
			   product_column = excluded.product_column,
			   hs_code_column = excluded.hs_code_column,
			   start_row = excluded.start_row,
			   description = excluded.description`,
			t.CarrierID, t.TemplateID, t.CompanyNameRow, t.CompanyNameColumn, t.ProductColumn, t.HSCodeColumn, t.StartRow, t.Description,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: put template %s/%s", t.CarrierID, t.TemplateID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit templates")
	}
	return n, nil
}

func (s *SQLiteStore) ListTemplates(ctx context.Context, carrierID string) ([]model.TemplateMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT carrier_id, template_id, company_name_row, company_name_column, product_column, hs_code_column, start_row, description
		 FROM templates WHERE carrier_id = ? ORDER BY template_id`,
		carrierID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list templates for %s", carrierID)
	}
	defer rows.Close()

	var templates []model.TemplateMapping
	for rows.Next() {
		var t model.TemplateMapping
		if err := rows.Scan(&t.CarrierID, &t.TemplateID, &t.CompanyNameRow, &t.CompanyNameColumn, &t.ProductColumn, &t.HSCodeColumn, &t.StartRow, &t.Description); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan template")
		}
		templates = append(templates, t)
	}
	return templates, eris.Wrap(rows.Err(), "sqlite: iterate templates")
}

func (s *SQLiteStore) ListCarriers(ctx context.Context) ([]model.Carrier, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM carriers ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list carriers")
	}
	defer rows.Close()

	var carriers []model.Carrier
	for rows.Next() {
		var c model.Carrier
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan carrier")
		}
		carriers = append(carriers, c)
	}
	return carriers, eris.Wrap(rows.Err(), "sqlite: iterate carriers")
}

func (s *SQLiteStore) PutCarrier(ctx context.Context, carrier model.Carrier) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO carriers (id, name) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		carrier.ID, carrier.Name,
	)
	return eris.Wrapf(err, "sqlite: put carrier %s", carrier.ID)
}
