package postgres

import (
	"context"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
)

var _ repository.WarehouseRepository = (*WarehouseRepo)(nil)

// WarehouseRepo implementación del puerto WarehouseRepository sobre PostgreSQL.
type WarehouseRepo struct {
	q Querier
}

// NewWarehouseRepository construye el adaptador de persistencia para bodegas.
func NewWarehouseRepository(q Querier) *WarehouseRepo {
	return &WarehouseRepo{q: q}
}

// Create persiste una nueva bodega.
func (r *WarehouseRepo) Create(ctx context.Context, w *entity.Warehouse) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO warehouses (id, code, name, active, `+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		concat([]any{w.ID, w.Code, w.Name, w.Active}, auditArgs(w.AuditedRecord))...)
	return wrap("insert warehouse", err)
}

// GetByID obtiene una bodega por ID.
func (r *WarehouseRepo) GetByID(ctx context.Context, id string) (*entity.Warehouse, error) {
	var w entity.Warehouse
	err := r.q.QueryRow(ctx, `SELECT id, code, name, active, `+auditColumns+` FROM warehouses WHERE id = $1`, id).
		Scan(concat([]any{&w.ID, &w.Code, &w.Name, &w.Active}, auditDest(&w.AuditedRecord))...)
	if err != nil {
		return nil, wrap("get warehouse", err)
	}
	return &w, nil
}

// ExistsAndActive indica si la bodega existe y está activa.
func (r *WarehouseRepo) ExistsAndActive(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM warehouses WHERE id = $1 AND active)`, id).Scan(&ok)
	if err != nil {
		return false, wrap("warehouse exists", err)
	}
	return ok, nil
}
