package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// Create persiste un nuevo producto con su configuración tributaria.
func (r *ProductRepo) Create(ctx context.Context, product *entity.Product) error {
	query := `
		INSERT INTO products (id, code, name, price, active, ` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query, concat(
		[]any{product.ID, product.Code, product.Name, product.Price, product.Active},
		auditArgs(product.AuditedRecord),
	)...)
	if err != nil {
		return wrap("insert product", err)
	}
	return r.replaceTaxes(ctx, product)
}

// GetByID obtiene un producto por ID.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	query := `SELECT id, code, name, price, active, ` + auditColumns + ` FROM products WHERE id = $1`
	var p entity.Product
	err := r.q.QueryRow(ctx, query, id).Scan(concat(
		[]any{&p.ID, &p.Code, &p.Name, &p.Price, &p.Active},
		auditDest(&p.AuditedRecord),
	)...)
	if err != nil {
		return nil, wrap("get product", err)
	}
	rows, err := r.q.Query(ctx,
		`SELECT kind, tax_code, rate_code FROM product_taxes WHERE product_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, wrap("list product taxes", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t entity.ProductTax
		if err := rows.Scan(&t.Kind, &t.TaxCode, &t.RateCode); err != nil {
			return nil, fmt.Errorf("scan product tax: %w", err)
		}
		p.Taxes = append(p.Taxes, t)
	}
	return &p, rows.Err()
}

// Update modifica la configuración viva. Los snapshots de líneas ya creadas no se tocan.
func (r *ProductRepo) Update(ctx context.Context, product *entity.Product) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE products SET code = $2, name = $3, price = $4, active = $5, updated_at = $6, updated_by = $7
		WHERE id = $1`,
		product.ID, product.Code, product.Name, product.Price, product.Active, product.UpdatedAt, product.UpdatedBy)
	if err := mustAffect("update product", tag, err); err != nil {
		return err
	}
	return r.replaceTaxes(ctx, product)
}

// ExistsAndActive indica si el producto existe y está activo.
func (r *ProductRepo) ExistsAndActive(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND active)`, id).Scan(&ok)
	if err != nil {
		return false, wrap("product exists", err)
	}
	return ok, nil
}

func (r *ProductRepo) replaceTaxes(ctx context.Context, product *entity.Product) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM product_taxes WHERE product_id = $1`, product.ID); err != nil {
		return wrap("delete product taxes", err)
	}
	for i, t := range product.Taxes {
		_, err := r.q.Exec(ctx, `
			INSERT INTO product_taxes (product_id, position, kind, tax_code, rate_code) VALUES ($1, $2, $3, $4, $5)`,
			product.ID, i, t.Kind, t.TaxCode, t.RateCode)
		if err != nil {
			return wrap("insert product tax", err)
		}
	}
	return nil
}

var _ repository.TaxCatalog = (*TaxCatalogRepo)(nil)

// TaxCatalogRepo catálogo de tarifas (tabla tax_rates, sembrada por schema.sql).
type TaxCatalogRepo struct {
	q Querier
}

// NewTaxCatalogRepository construye el adaptador del catálogo tributario.
func NewTaxCatalogRepository(q Querier) *TaxCatalogRepo {
	return &TaxCatalogRepo{q: q}
}

// Lookup busca la tarifa por código de impuesto y código de porcentaje.
func (r *TaxCatalogRepo) Lookup(ctx context.Context, taxCode, rateCode string) (*entity.TaxRate, error) {
	var t entity.TaxRate
	err := r.q.QueryRow(ctx, `
		SELECT kind, tax_code, rate_code, rate, description FROM tax_rates
		WHERE tax_code = $1 AND rate_code = $2`, taxCode, rateCode).
		Scan(&t.Kind, &t.TaxCode, &t.RateCode, &t.Rate, &t.Description)
	if err != nil {
		return nil, wrap("lookup tax rate", err)
	}
	return &t, nil
}

// Put inserta o reemplaza una tarifa (ICE y tarifas nuevas se cargan así).
func (r *TaxCatalogRepo) Put(ctx context.Context, t entity.TaxRate) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO tax_rates (kind, tax_code, rate_code, rate, description) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tax_code, rate_code) DO UPDATE SET kind = EXCLUDED.kind, rate = EXCLUDED.rate,
			description = EXCLUDED.description`,
		t.Kind, t.TaxCode, t.RateCode, t.Rate, t.Description)
	return wrap("put tax rate", err)
}
