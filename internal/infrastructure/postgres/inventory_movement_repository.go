package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
)

var _ repository.InventoryMovementRepository = (*InventoryMovementRepo)(nil)

// InventoryMovementRepo implementación sobre PostgreSQL (usable con pool o tx).
type InventoryMovementRepo struct {
	q Querier
}

// NewInventoryMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInventoryMovementRepository(q Querier) *InventoryMovementRepo {
	return &InventoryMovementRepo{q: q}
}

const movementColumns = `id, type, state, warehouse_id, destination_warehouse_id, reference, adjustment_reason,
	authorized_by, date, confirmed_at, ` + auditColumns

func scanMovement(row pgx.Row) (*entity.InventoryMovement, error) {
	var m entity.InventoryMovement
	err := row.Scan(concat([]any{
		&m.ID, &m.Type, &m.State, &m.WarehouseID, &m.DestinationWarehouseID, &m.Reference, &m.AdjustmentReason,
		&m.AuthorizedBy, &m.Date, &m.ConfirmedAt,
	}, auditDest(&m.AuditedRecord))...)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create persiste un movimiento de inventario con sus líneas.
func (r *InventoryMovementRepo) Create(ctx context.Context, m *entity.InventoryMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO inventory_movements (`+movementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		concat([]any{
			m.ID, m.Type, m.State, m.WarehouseID, m.DestinationWarehouseID, m.Reference, m.AdjustmentReason,
			m.AuthorizedBy, m.Date, m.ConfirmedAt,
		}, auditArgs(m.AuditedRecord))...)
	if err != nil {
		return wrap("create inventory movement", err)
	}
	for i := range m.Lines {
		l := &m.Lines[i]
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		l.MovementID = m.ID
		_, err := r.q.Exec(ctx, `
			INSERT INTO inventory_movement_lines (id, movement_id, position, product_id, quantity, unit_cost)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			l.ID, m.ID, i, l.ProductID, l.Quantity, l.UnitCost)
		if err != nil {
			return wrap("create movement line", err)
		}
	}
	return nil
}

// GetByID obtiene un movimiento con sus líneas.
func (r *InventoryMovementRepo) GetByID(ctx context.Context, id string) (*entity.InventoryMovement, error) {
	return r.get(ctx, `SELECT `+movementColumns+` FROM inventory_movements WHERE id = $1`, id)
}

// GetForUpdate obtiene el movimiento y bloquea la cabecera (SELECT FOR UPDATE).
func (r *InventoryMovementRepo) GetForUpdate(ctx context.Context, id string) (*entity.InventoryMovement, error) {
	return r.get(ctx, `SELECT `+movementColumns+` FROM inventory_movements WHERE id = $1 FOR UPDATE`, id)
}

func (r *InventoryMovementRepo) get(ctx context.Context, query, id string) (*entity.InventoryMovement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrap("get movement", err)
	}
	if err := r.loadLines(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *InventoryMovementRepo) loadLines(ctx context.Context, m *entity.InventoryMovement) error {
	rows, err := r.q.Query(ctx, `
		SELECT id, movement_id, product_id, quantity, unit_cost
		FROM inventory_movement_lines WHERE movement_id = $1 ORDER BY position`, m.ID)
	if err != nil {
		return wrap("list movement lines", err)
	}
	m.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.MovementLine, error) {
		var l entity.MovementLine
		err := row.Scan(&l.ID, &l.MovementID, &l.ProductID, &l.Quantity, &l.UnitCost)
		return l, err
	})
	if err != nil {
		return fmt.Errorf("scan movement line: %w", err)
	}
	return nil
}

// Update persiste estado, motivo, autorizador, fecha de confirmación y costos de línea.
func (r *InventoryMovementRepo) Update(ctx context.Context, m *entity.InventoryMovement) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE inventory_movements
		SET state = $2, adjustment_reason = $3, authorized_by = $4, confirmed_at = $5, updated_at = $6, updated_by = $7
		WHERE id = $1`,
		m.ID, m.State, m.AdjustmentReason, m.AuthorizedBy, m.ConfirmedAt, m.UpdatedAt, m.UpdatedBy)
	if err := mustAffect("update movement", tag, err); err != nil {
		return err
	}
	for _, l := range m.Lines {
		if _, err := r.q.Exec(ctx, `UPDATE inventory_movement_lines SET unit_cost = $2 WHERE id = $1`, l.ID, l.UnitCost); err != nil {
			return wrap("update movement line", err)
		}
	}
	return nil
}

// ListByReference lista los movimientos de una referencia documental (ej. VENTA:<id>).
func (r *InventoryMovementRepo) ListByReference(ctx context.Context, reference string) ([]*entity.InventoryMovement, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+movementColumns+` FROM inventory_movements WHERE reference = $1 ORDER BY date, created_at`, reference)
	if err != nil {
		return nil, wrap("list by reference", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.InventoryMovement, error) {
		return scanMovement(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan movement: %w", err)
	}
	for _, m := range list {
		if err := r.loadLines(ctx, m); err != nil {
			return nil, err
		}
	}
	return list, nil
}

var _ repository.KardexRepository = (*KardexRepo)(nil)

// KardexRepo libro append-only del kardex.
type KardexRepo struct {
	q Querier
}

// NewKardexRepository construye el adaptador del kardex.
func NewKardexRepository(q Querier) *KardexRepo {
	return &KardexRepo{q: q}
}

const kardexColumns = `seq, id, movement_id, product_id, warehouse_id, type, label, reference,
	quantity, unit_cost, balance_qty, average_cost, date`

func scanKardex(row pgx.Row) (*entity.KardexEntry, error) {
	var e entity.KardexEntry
	err := row.Scan(&e.Seq, &e.ID, &e.MovementID, &e.ProductID, &e.WarehouseID, &e.Type, &e.Label, &e.Reference,
		&e.Quantity, &e.UnitCost, &e.BalanceQty, &e.AverageCost, &e.Date)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Append agrega una entrada; Seq lo asigna la base.
func (r *KardexRepo) Append(ctx context.Context, e *entity.KardexEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO kardex_entries (id, movement_id, product_id, warehouse_id, type, label, reference,
			quantity, unit_cost, balance_qty, average_cost, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING seq`,
		e.ID, e.MovementID, e.ProductID, e.WarehouseID, e.Type, e.Label, e.Reference,
		e.Quantity, e.UnitCost, e.BalanceQty, e.AverageCost, e.Date).Scan(&e.Seq)
	return wrap("append kardex", err)
}

// LastBefore devuelve la última entrada anterior a t, o nil.
func (r *KardexRepo) LastBefore(ctx context.Context, productID, warehouseID string, t time.Time) (*entity.KardexEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+kardexColumns+` FROM kardex_entries
		WHERE product_id = $1 AND warehouse_id = $2 AND date < $3
		ORDER BY date DESC, seq DESC LIMIT 1`, productID, warehouseID, t)
	if err != nil {
		return nil, wrap("kardex last before", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.KardexEntry, error) {
		return scanKardex(row)
	})
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// List devuelve las entradas del período [from, to] en orden de aplicación.
func (r *KardexRepo) List(ctx context.Context, productID, warehouseID string, from, to time.Time) ([]*entity.KardexEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+kardexColumns+` FROM kardex_entries
		WHERE product_id = $1 AND warehouse_id = $2 AND date >= $3 AND date <= $4
		ORDER BY date, seq`, productID, warehouseID, from, to)
	if err != nil {
		return nil, wrap("list kardex", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.KardexEntry, error) {
		return scanKardex(row)
	})
}
