package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

// Querier lo cumplen *pgxpool.Pool y pgx.Tx: los repositorios sirven dentro y fuera de una transacción.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// wrap traduce los errores de pgx a los del dominio.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// mustAffect devuelve ErrNotFound si el UPDATE no tocó filas.
func mustAffect(op string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return wrap(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

const auditColumns = "created_at, updated_at, created_by, updated_by"

func auditArgs(a entity.AuditedRecord) []any {
	return []any{a.CreatedAt, a.UpdatedAt, a.CreatedBy, a.UpdatedBy}
}

func auditDest(a *entity.AuditedRecord) []any {
	return []any{&a.CreatedAt, &a.UpdatedAt, &a.CreatedBy, &a.UpdatedBy}
}

const totalsColumns = `subtotal_0, subtotal_5, subtotal_12, subtotal_15, subtotal_no_objeto, subtotal_exento,
	subtotal, total_discount, total_iva, total_ice, total`

func totalsArgs(t entity.DocumentTotals) []any {
	return []any{t.Subtotal0, t.Subtotal5, t.Subtotal12, t.Subtotal15, t.SubtotalNoObjeto, t.SubtotalExento,
		t.Subtotal, t.TotalDiscount, t.TotalIVA, t.TotalICE, t.Total}
}

func totalsDest(t *entity.DocumentTotals) []any {
	return []any{&t.Subtotal0, &t.Subtotal5, &t.Subtotal12, &t.Subtotal15, &t.SubtotalNoObjeto, &t.SubtotalExento,
		&t.Subtotal, &t.TotalDiscount, &t.TotalIVA, &t.TotalICE, &t.Total}
}

func partyArgs(p entity.PartySnapshot) []any {
	return []any{p.IdentificationType, p.Identification, p.Name, p.Email, p.Address}
}

func partyDest(p *entity.PartySnapshot) []any {
	return []any{&p.IdentificationType, &p.Identification, &p.Name, &p.Email, &p.Address}
}

func concat(groups ...[]any) []any {
	var out []any
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// nullTime guarda NULL para la fecha cero (ej. venta en borrador sin fecha de emisión).
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
