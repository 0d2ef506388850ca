package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

// Documentos dueños de los snapshots en line_taxes.
const (
	taxOwnerVenta  = "VENTA"
	taxOwnerCompra = "COMPRA"
)

// insertLineTaxes persiste los snapshots de una línea. No hay UPDATE de snapshots.
func insertLineTaxes(ctx context.Context, q Querier, owner, lineID string, taxes []entity.TaxSnapshot) error {
	for i := range taxes {
		t := &taxes[i]
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		t.LineID = lineID
		_, err := q.Exec(ctx, `
			INSERT INTO line_taxes (id, line_id, document, position, kind, tax_code, rate_code, rate, taxable_base, amount,
				active, `+auditColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			concat([]any{t.ID, lineID, owner, i, t.Kind, t.TaxCode, t.RateCode, t.Rate, t.TaxableBase, t.Amount, t.Active},
				auditArgs(t.AuditedRecord))...)
		if err != nil {
			return wrap("insert line tax", err)
		}
	}
	return nil
}

// loadLineTaxes devuelve los snapshots de las líneas indicadas, agrupados por línea.
func loadLineTaxes(ctx context.Context, q Querier, owner string, lineIDs []string) (map[string][]entity.TaxSnapshot, error) {
	out := map[string][]entity.TaxSnapshot{}
	if len(lineIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
		SELECT id, line_id, kind, tax_code, rate_code, rate, taxable_base, amount, active, `+auditColumns+`
		FROM line_taxes WHERE document = $1 AND line_id = ANY($2) ORDER BY line_id, position`, owner, lineIDs)
	if err != nil {
		return nil, wrap("list line taxes", err)
	}
	taxes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.TaxSnapshot, error) {
		var t entity.TaxSnapshot
		err := row.Scan(concat(
			[]any{&t.ID, &t.LineID, &t.Kind, &t.TaxCode, &t.RateCode, &t.Rate, &t.TaxableBase, &t.Amount, &t.Active},
			auditDest(&t.AuditedRecord),
		)...)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan line tax: %w", err)
	}
	for _, t := range taxes {
		out[t.LineID] = append(out[t.LineID], t)
	}
	return out, nil
}

// deactivateLineTaxes desactiva los snapshots de un documento anulado.
func deactivateLineTaxes(ctx context.Context, q Querier, owner, linesTable, parentColumn, parentID string) error {
	_, err := q.Exec(ctx, `
		UPDATE line_taxes SET active = FALSE, updated_at = now()
		WHERE document = $1 AND line_id IN (SELECT id FROM `+linesTable+` WHERE `+parentColumn+` = $2)`,
		owner, parentID)
	return wrap("deactivate line taxes", err)
}
