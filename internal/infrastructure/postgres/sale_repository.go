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

var _ repository.SaleRepository = (*SaleRepo)(nil)

// SaleRepo ventas con líneas y snapshots de impuestos.
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador de ventas.
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

const saleColumns = `id, customer_id, customer_id_type, customer_id_number, customer_name, customer_email, customer_address,
	warehouse_id, status, emission_type, establishment, emission_point, sequential, issue_date, ` + totalsColumns + `,
	void_reason, active, ` + auditColumns

// Create persiste cabecera, líneas y snapshots.
func (r *SaleRepo) Create(ctx context.Context, s *entity.Sale) error {
	issue := nullTime(s.IssueDate)
	_, err := r.q.Exec(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21,
			$22, $23, $24, $25, $26, $27, $28, $29, $30, $31)`,
		concat(
			[]any{s.ID, s.CustomerID}, partyArgs(s.Customer),
			[]any{s.WarehouseID, s.Status, s.EmissionType, s.Establishment, s.EmissionPoint, s.Sequential, issue},
			totalsArgs(s.Totals),
			[]any{s.VoidReason, s.Active}, auditArgs(s.AuditedRecord),
		)...)
	if err != nil {
		return wrap("insert sale", err)
	}
	for i := range s.Lines {
		l := &s.Lines[i]
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		l.SaleID = s.ID
		_, err := r.q.Exec(ctx, `
			INSERT INTO sale_lines (id, sale_id, position, product_id, description, quantity, unit_price, discount, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			l.ID, s.ID, i, l.ProductID, l.Description, l.Quantity, l.UnitPrice, l.Discount, l.Subtotal)
		if err != nil {
			return wrap("insert sale line", err)
		}
		if err := insertLineTaxes(ctx, r.q, taxOwnerVenta, l.ID, l.Taxes); err != nil {
			return err
		}
	}
	return nil
}

// GetByID obtiene la venta completa.
func (r *SaleRepo) GetByID(ctx context.Context, id string) (*entity.Sale, error) {
	return r.get(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
}

// GetForUpdate obtiene la venta y bloquea la cabecera.
func (r *SaleRepo) GetForUpdate(ctx context.Context, id string) (*entity.Sale, error) {
	return r.get(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
}

func (r *SaleRepo) get(ctx context.Context, query, id string) (*entity.Sale, error) {
	var (
		s     entity.Sale
		issue *time.Time
	)
	err := r.q.QueryRow(ctx, query, id).Scan(concat(
		[]any{&s.ID, &s.CustomerID}, partyDest(&s.Customer),
		[]any{&s.WarehouseID, &s.Status, &s.EmissionType, &s.Establishment, &s.EmissionPoint, &s.Sequential, &issue},
		totalsDest(&s.Totals),
		[]any{&s.VoidReason, &s.Active}, auditDest(&s.AuditedRecord),
	)...)
	if err != nil {
		return nil, wrap("get sale", err)
	}
	if issue != nil {
		s.IssueDate = *issue
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, sale_id, product_id, description, quantity, unit_price, discount, subtotal
		FROM sale_lines WHERE sale_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, wrap("list sale lines", err)
	}
	s.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.SaleLine, error) {
		var l entity.SaleLine
		err := row.Scan(&l.ID, &l.SaleID, &l.ProductID, &l.Description, &l.Quantity, &l.UnitPrice, &l.Discount, &l.Subtotal)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan sale line: %w", err)
	}
	ids := make([]string, len(s.Lines))
	for i, l := range s.Lines {
		ids[i] = l.ID
	}
	taxes, err := loadLineTaxes(ctx, r.q, taxOwnerVenta, ids)
	if err != nil {
		return nil, err
	}
	for i := range s.Lines {
		s.Lines[i].Taxes = taxes[s.Lines[i].ID]
	}
	return &s, nil
}

// UpdateHeader persiste estado, secuencial, fecha de emisión y motivo de anulación.
func (r *SaleRepo) UpdateHeader(ctx context.Context, s *entity.Sale) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE sales SET status = $2, establishment = $3, emission_point = $4, sequential = $5, issue_date = $6,
			void_reason = $7, active = $8, updated_at = $9, updated_by = $10
		WHERE id = $1`,
		s.ID, s.Status, s.Establishment, s.EmissionPoint, s.Sequential, nullTime(s.IssueDate),
		s.VoidReason, s.Active, s.UpdatedAt, s.UpdatedBy)
	return mustAffect("update sale", tag, err)
}

// DeactivateTaxes desactiva los snapshots de la venta.
func (r *SaleRepo) DeactivateTaxes(ctx context.Context, saleID string) error {
	return deactivateLineTaxes(ctx, r.q, taxOwnerVenta, "sale_lines", "sale_id", saleID)
}

var _ repository.ReceivableRepository = (*ReceivableRepo)(nil)

// ReceivableRepo cuentas por cobrar.
type ReceivableRepo struct {
	q Querier
}

// NewReceivableRepository construye el adaptador de cuentas por cobrar.
func NewReceivableRepository(q Querier) *ReceivableRepo {
	return &ReceivableRepo{q: q}
}

const accountColumns = `id, %s, total, paid, withheld, balance, status, ` + auditColumns

// Create persiste la cuenta por cobrar.
func (r *ReceivableRepo) Create(ctx context.Context, a *entity.Receivable) error {
	_, err := r.q.Exec(ctx, `INSERT INTO receivables (`+fmt.Sprintf(accountColumns, "sale_id")+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		concat([]any{a.ID, a.SaleID, a.Total, a.Paid, a.Withheld, a.Balance, a.Status}, auditArgs(a.AuditedRecord))...)
	return wrap("insert receivable", err)
}

// GetBySaleID obtiene la cuenta por cobrar de una venta.
func (r *ReceivableRepo) GetBySaleID(ctx context.Context, saleID string) (*entity.Receivable, error) {
	return r.get(ctx, "", saleID)
}

// GetBySaleIDForUpdate obtiene y bloquea la cuenta por cobrar.
func (r *ReceivableRepo) GetBySaleIDForUpdate(ctx context.Context, saleID string) (*entity.Receivable, error) {
	return r.get(ctx, " FOR UPDATE", saleID)
}

func (r *ReceivableRepo) get(ctx context.Context, lock, saleID string) (*entity.Receivable, error) {
	var a entity.Receivable
	err := r.q.QueryRow(ctx, `SELECT `+fmt.Sprintf(accountColumns, "sale_id")+` FROM receivables WHERE sale_id = $1`+lock, saleID).
		Scan(concat([]any{&a.ID, &a.SaleID, &a.Total, &a.Paid, &a.Withheld, &a.Balance, &a.Status}, auditDest(&a.AuditedRecord))...)
	if err != nil {
		return nil, wrap("get receivable", err)
	}
	return &a, nil
}

// Update persiste saldos y estado.
func (r *ReceivableRepo) Update(ctx context.Context, a *entity.Receivable) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE receivables SET paid = $2, withheld = $3, balance = $4, status = $5, updated_at = $6, updated_by = $7
		WHERE id = $1`, a.ID, a.Paid, a.Withheld, a.Balance, a.Status, a.UpdatedAt, a.UpdatedBy)
	return mustAffect("update receivable", tag, err)
}
