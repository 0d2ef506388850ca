package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
)

var _ repository.PurchaseRepository = (*PurchaseRepo)(nil)

// PurchaseRepo compras con líneas y snapshots de impuestos.
type PurchaseRepo struct {
	q Querier
}

// NewPurchaseRepository construye el adaptador de compras.
func NewPurchaseRepository(q Querier) *PurchaseRepo {
	return &PurchaseRepo{q: q}
}

const purchaseColumns = `id, supplier_id, supplier_id_type, supplier_id_number, supplier_name, supplier_email, supplier_address,
	warehouse_id, status, supplier_number, issue_date, ` + totalsColumns + `, void_reason, active, ` + auditColumns

// Create persiste cabecera, líneas y snapshots.
func (r *PurchaseRepo) Create(ctx context.Context, p *entity.Purchase) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO purchases (`+purchaseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21,
			$22, $23, $24, $25, $26, $27, $28)`,
		concat(
			[]any{p.ID, p.SupplierID}, partyArgs(p.Supplier),
			[]any{p.WarehouseID, p.Status, p.SupplierNumber, p.IssueDate},
			totalsArgs(p.Totals),
			[]any{p.VoidReason, p.Active}, auditArgs(p.AuditedRecord),
		)...)
	if err != nil {
		return wrap("insert purchase", err)
	}
	for i := range p.Lines {
		l := &p.Lines[i]
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		l.PurchaseID = p.ID
		_, err := r.q.Exec(ctx, `
			INSERT INTO purchase_lines (id, purchase_id, position, product_id, description, quantity, unit_cost, discount, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			l.ID, p.ID, i, l.ProductID, l.Description, l.Quantity, l.UnitCost, l.Discount, l.Subtotal)
		if err != nil {
			return wrap("insert purchase line", err)
		}
		if err := insertLineTaxes(ctx, r.q, taxOwnerCompra, l.ID, l.Taxes); err != nil {
			return err
		}
	}
	return nil
}

// GetByID obtiene la compra completa.
func (r *PurchaseRepo) GetByID(ctx context.Context, id string) (*entity.Purchase, error) {
	return r.get(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
}

// GetForUpdate obtiene la compra y bloquea la cabecera.
func (r *PurchaseRepo) GetForUpdate(ctx context.Context, id string) (*entity.Purchase, error) {
	return r.get(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE`, id)
}

func (r *PurchaseRepo) get(ctx context.Context, query, id string) (*entity.Purchase, error) {
	var p entity.Purchase
	err := r.q.QueryRow(ctx, query, id).Scan(concat(
		[]any{&p.ID, &p.SupplierID}, partyDest(&p.Supplier),
		[]any{&p.WarehouseID, &p.Status, &p.SupplierNumber, &p.IssueDate},
		totalsDest(&p.Totals),
		[]any{&p.VoidReason, &p.Active}, auditDest(&p.AuditedRecord),
	)...)
	if err != nil {
		return nil, wrap("get purchase", err)
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, purchase_id, product_id, description, quantity, unit_cost, discount, subtotal
		FROM purchase_lines WHERE purchase_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, wrap("list purchase lines", err)
	}
	p.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.PurchaseLine, error) {
		var l entity.PurchaseLine
		err := row.Scan(&l.ID, &l.PurchaseID, &l.ProductID, &l.Description, &l.Quantity, &l.UnitCost, &l.Discount, &l.Subtotal)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan purchase line: %w", err)
	}
	ids := make([]string, len(p.Lines))
	for i, l := range p.Lines {
		ids[i] = l.ID
	}
	taxes, err := loadLineTaxes(ctx, r.q, taxOwnerCompra, ids)
	if err != nil {
		return nil, err
	}
	for i := range p.Lines {
		p.Lines[i].Taxes = taxes[p.Lines[i].ID]
	}
	return &p, nil
}

// UpdateHeader persiste estado y motivo de anulación.
func (r *PurchaseRepo) UpdateHeader(ctx context.Context, p *entity.Purchase) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE purchases SET status = $2, void_reason = $3, active = $4, updated_at = $5, updated_by = $6
		WHERE id = $1`, p.ID, p.Status, p.VoidReason, p.Active, p.UpdatedAt, p.UpdatedBy)
	return mustAffect("update purchase", tag, err)
}

// DeactivateTaxes desactiva los snapshots de la compra.
func (r *PurchaseRepo) DeactivateTaxes(ctx context.Context, purchaseID string) error {
	return deactivateLineTaxes(ctx, r.q, taxOwnerCompra, "purchase_lines", "purchase_id", purchaseID)
}

var _ repository.PayableRepository = (*PayableRepo)(nil)

// PayableRepo cuentas por pagar.
type PayableRepo struct {
	q Querier
}

// NewPayableRepository construye el adaptador de cuentas por pagar.
func NewPayableRepository(q Querier) *PayableRepo {
	return &PayableRepo{q: q}
}

// Create persiste la cuenta por pagar.
func (r *PayableRepo) Create(ctx context.Context, a *entity.Payable) error {
	_, err := r.q.Exec(ctx, `INSERT INTO payables (`+fmt.Sprintf(accountColumns, "purchase_id")+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		concat([]any{a.ID, a.PurchaseID, a.Total, a.Paid, a.Withheld, a.Balance, a.Status}, auditArgs(a.AuditedRecord))...)
	return wrap("insert payable", err)
}

// GetByPurchaseID obtiene la cuenta por pagar de una compra.
func (r *PayableRepo) GetByPurchaseID(ctx context.Context, purchaseID string) (*entity.Payable, error) {
	return r.get(ctx, "", purchaseID)
}

// GetByPurchaseIDForUpdate obtiene y bloquea la cuenta por pagar.
func (r *PayableRepo) GetByPurchaseIDForUpdate(ctx context.Context, purchaseID string) (*entity.Payable, error) {
	return r.get(ctx, " FOR UPDATE", purchaseID)
}

func (r *PayableRepo) get(ctx context.Context, lock, purchaseID string) (*entity.Payable, error) {
	var a entity.Payable
	err := r.q.QueryRow(ctx, `SELECT `+fmt.Sprintf(accountColumns, "purchase_id")+` FROM payables WHERE purchase_id = $1`+lock, purchaseID).
		Scan(concat([]any{&a.ID, &a.PurchaseID, &a.Total, &a.Paid, &a.Withheld, &a.Balance, &a.Status}, auditDest(&a.AuditedRecord))...)
	if err != nil {
		return nil, wrap("get payable", err)
	}
	return &a, nil
}

// Update persiste saldos y estado.
func (r *PayableRepo) Update(ctx context.Context, a *entity.Payable) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE payables SET paid = $2, withheld = $3, balance = $4, status = $5, updated_at = $6, updated_by = $7
		WHERE id = $1`, a.ID, a.Paid, a.Withheld, a.Balance, a.Status, a.UpdatedAt, a.UpdatedBy)
	return mustAffect("update payable", tag, err)
}

var _ repository.RetentionRepository = (*RetentionRepo)(nil)

// RetentionRepo comprobantes de retención.
type RetentionRepo struct {
	q Querier
}

// NewRetentionRepository construye el adaptador de retenciones.
func NewRetentionRepository(q Querier) *RetentionRepo {
	return &RetentionRepo{q: q}
}

const retentionColumns = `id, purchase_id, establishment, emission_point, sequential, issue_date, total, electronic, status, ` + auditColumns

func scanRetention(row pgx.Row) (*entity.Retention, error) {
	var rt entity.Retention
	err := row.Scan(concat(
		[]any{&rt.ID, &rt.PurchaseID, &rt.Establishment, &rt.EmissionPoint, &rt.Sequential, &rt.IssueDate, &rt.Total,
			&rt.Electronic, &rt.Status},
		auditDest(&rt.AuditedRecord),
	)...)
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// Create persiste la retención con sus líneas.
func (r *RetentionRepo) Create(ctx context.Context, rt *entity.Retention) error {
	_, err := r.q.Exec(ctx, `INSERT INTO retentions (`+retentionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		concat([]any{rt.ID, rt.PurchaseID, rt.Establishment, rt.EmissionPoint, rt.Sequential, rt.IssueDate, rt.Total,
			rt.Electronic, rt.Status}, auditArgs(rt.AuditedRecord))...)
	if err != nil {
		return wrap("insert retention", err)
	}
	for i, l := range rt.Lines {
		_, err := r.q.Exec(ctx, `
			INSERT INTO retention_lines (retention_id, position, tax_code, retention_code, taxable_base, percentage, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rt.ID, i, l.TaxCode, l.RetentionCode, l.TaxableBase, l.Percentage, l.Amount)
		if err != nil {
			return wrap("insert retention line", err)
		}
	}
	return nil
}

// GetByID obtiene la retención con sus líneas.
func (r *RetentionRepo) GetByID(ctx context.Context, id string) (*entity.Retention, error) {
	rt, err := scanRetention(r.q.QueryRow(ctx, `SELECT `+retentionColumns+` FROM retentions WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get retention", err)
	}
	if err := r.loadLines(ctx, rt); err != nil {
		return nil, err
	}
	return rt, nil
}

// ListByPurchase lista las retenciones de una compra en orden de emisión.
func (r *RetentionRepo) ListByPurchase(ctx context.Context, purchaseID string) ([]*entity.Retention, error) {
	rows, err := r.q.Query(ctx, `SELECT `+retentionColumns+` FROM retentions WHERE purchase_id = $1 ORDER BY created_at, sequential`, purchaseID)
	if err != nil {
		return nil, wrap("list retentions", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.Retention, error) {
		return scanRetention(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan retention: %w", err)
	}
	for _, rt := range list {
		if err := r.loadLines(ctx, rt); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *RetentionRepo) loadLines(ctx context.Context, rt *entity.Retention) error {
	rows, err := r.q.Query(ctx, `
		SELECT tax_code, retention_code, taxable_base, percentage, amount
		FROM retention_lines WHERE retention_id = $1 ORDER BY position`, rt.ID)
	if err != nil {
		return wrap("list retention lines", err)
	}
	rt.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.RetentionLine, error) {
		var l entity.RetentionLine
		err := row.Scan(&l.TaxCode, &l.RetentionCode, &l.TaxableBase, &l.Percentage, &l.Amount)
		return l, err
	})
	if err != nil {
		return fmt.Errorf("scan retention line: %w", err)
	}
	return nil
}

var _ repository.SequenceRepository = (*SequenceRepo)(nil)

// SequenceRepo secuenciales por clave (tipo:establecimiento-punto).
type SequenceRepo struct {
	q Querier
}

// NewSequenceRepository construye el adaptador de secuenciales.
func NewSequenceRepository(q Querier) *SequenceRepo {
	return &SequenceRepo{q: q}
}

// Next incrementa y devuelve el secuencial; la fila queda bloqueada hasta el fin de la transacción.
func (r *SequenceRepo) Next(ctx context.Context, key string) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO document_sequences (key, value) VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET value = document_sequences.value + 1
		RETURNING value`, key).Scan(&n)
	if err != nil {
		return 0, wrap("next sequence", err)
	}
	return n, nil
}
