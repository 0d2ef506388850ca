package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

const stockColumns = `product_id, warehouse_id, quantity, average_cost, active, ` + auditColumns

func scanStock(row pgx.Row) (*entity.Stock, error) {
	var s entity.Stock
	err := row.Scan(concat(
		[]any{&s.ProductID, &s.WarehouseID, &s.Quantity, &s.AverageCost, &s.Active},
		auditDest(&s.AuditedRecord),
	)...)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Get obtiene el stock actual de un producto en una bodega; sin fila devuelve cero.
func (r *StockRepo) Get(ctx context.Context, productID, warehouseID string) (*entity.Stock, error) {
	s, err := scanStock(r.q.QueryRow(ctx,
		`SELECT `+stockColumns+` FROM stock WHERE product_id = $1 AND warehouse_id = $2`, productID, warehouseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.Stock{ProductID: productID, WarehouseID: warehouseID,
				Quantity: decimal.Zero, AverageCost: decimal.Zero, Active: true}, nil
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return s, nil
}

// GetForUpdate crea la fila en cero si no existe y la bloquea hasta el fin de la transacción.
func (r *StockRepo) GetForUpdate(ctx context.Context, productID, warehouseID string) (*entity.Stock, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock (product_id, warehouse_id, quantity, average_cost, active)
		VALUES ($1, $2, 0, 0, TRUE)
		ON CONFLICT (product_id, warehouse_id) DO NOTHING`, productID, warehouseID)
	if err != nil {
		return nil, wrap("init stock", err)
	}
	s, err := scanStock(r.q.QueryRow(ctx,
		`SELECT `+stockColumns+` FROM stock WHERE product_id = $1 AND warehouse_id = $2 FOR UPDATE`,
		productID, warehouseID))
	if err != nil {
		return nil, wrap("get stock for update", err)
	}
	return s, nil
}

// Update persiste cantidad, costo promedio y estado.
func (r *StockRepo) Update(ctx context.Context, s *entity.Stock) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE stock SET quantity = $3, average_cost = $4, active = $5, updated_at = $6, updated_by = $7
		WHERE product_id = $1 AND warehouse_id = $2`,
		s.ProductID, s.WarehouseID, s.Quantity, s.AverageCost, s.Active, s.UpdatedAt, s.UpdatedBy)
	return mustAffect("update stock", tag, err)
}

// List devuelve las filas activas, opcionalmente de una sola bodega.
func (r *StockRepo) List(ctx context.Context, warehouseID *string) ([]*entity.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stock WHERE active`
	var args []any
	if warehouseID != nil {
		query += ` AND warehouse_id = $1`
		args = append(args, *warehouseID)
	}
	query += ` ORDER BY product_id, warehouse_id`
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("list stock", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.Stock, error) {
		return scanStock(row)
	})
}
