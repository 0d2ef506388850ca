package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

// LineInput datos de una línea previa al cálculo de impuestos.
type LineInput struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	Rates     []entity.TaxRate // tarifas resueltas del catálogo al crear la línea
}

// LineResult subtotal y snapshots calculados de una línea.
type LineResult struct {
	Subtotal  decimal.Decimal
	Snapshots []entity.TaxSnapshot
}

// ComputeLine calcula subtotal = Q2(cantidad × precio − descuento) y los impuestos de la línea.
// El ICE se calcula primero sobre el subtotal y se suma a la base del IVA.
func ComputeLine(in LineInput) (LineResult, error) {
	if !in.Quantity.IsPositive() {
		return LineResult{}, fmt.Errorf("%w: cantidad debe ser mayor a cero", domain.ErrInvalidInput)
	}
	if in.UnitPrice.IsNegative() || in.Discount.IsNegative() {
		return LineResult{}, fmt.Errorf("%w: precio y descuento no pueden ser negativos", domain.ErrInvalidInput)
	}
	subtotal := Q2(in.Quantity.Mul(in.UnitPrice).Sub(in.Discount))
	if subtotal.IsNegative() {
		return LineResult{}, fmt.Errorf("%w: el descuento supera el valor de la línea", domain.ErrInvalidInput)
	}

	var ice, iva []entity.TaxRate
	for _, r := range in.Rates {
		switch r.Kind {
		case entity.TaxKindICE:
			ice = append(ice, r)
		case entity.TaxKindIVA:
			iva = append(iva, r)
		default:
			return LineResult{}, fmt.Errorf("%w: tipo de impuesto %q", domain.ErrInvalidInput, r.Kind)
		}
	}
	if len(iva) > 1 {
		return LineResult{}, fmt.Errorf("%w: la línea tiene más de una tarifa de IVA", domain.ErrInvalidInput)
	}

	res := LineResult{Subtotal: subtotal}
	iceTotal := decimal.Zero
	for _, r := range ice {
		snap := snapshot(r, subtotal)
		iceTotal = iceTotal.Add(snap.Amount)
		res.Snapshots = append(res.Snapshots, snap)
	}
	for _, r := range iva {
		res.Snapshots = append(res.Snapshots, snapshot(r, IVABase(subtotal, iceTotal)))
	}
	return res, nil
}

// IVABase base imponible del IVA: subtotal más el ICE de la línea.
// Se aplica a toda combinación de tarifas; la regla está aislada aquí.
func IVABase(subtotal, ice decimal.Decimal) decimal.Decimal {
	return Q2(subtotal.Add(ice))
}

func snapshot(r entity.TaxRate, base decimal.Decimal) entity.TaxSnapshot {
	rate := Q4(r.Rate)
	return entity.TaxSnapshot{
		Kind:        r.Kind,
		TaxCode:     r.TaxCode,
		RateCode:    r.RateCode,
		Rate:        rate,
		TaxableBase: Q2(base),
		Amount:      Q2(base.Mul(rate).Div(hundred)),
		Active:      true,
	}
}

// TotalsLine línea ya calculada, entrada de Totals.
type TotalsLine struct {
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	Snapshots []entity.TaxSnapshot
}

// Totals agrega las líneas en los subtotales por tarifa de IVA y los totales del documento.
// Una línea sin IVA se considera no objeto de impuesto.
func Totals(lines []TotalsLine) entity.DocumentTotals {
	t := entity.DocumentTotals{
		Subtotal0: decimal.Zero, Subtotal5: decimal.Zero, Subtotal12: decimal.Zero,
		Subtotal15: decimal.Zero, SubtotalNoObjeto: decimal.Zero, SubtotalExento: decimal.Zero,
		Subtotal: decimal.Zero, TotalDiscount: decimal.Zero, TotalIVA: decimal.Zero,
		TotalICE: decimal.Zero, Total: decimal.Zero,
	}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Subtotal)
		t.TotalDiscount = t.TotalDiscount.Add(Q2(l.Discount))
		lineTotal := l.Subtotal
		ivaCode := entity.IVARateCodeNoObjeto
		for _, s := range l.Snapshots {
			lineTotal = lineTotal.Add(s.Amount)
			switch s.Kind {
			case entity.TaxKindIVA:
				t.TotalIVA = t.TotalIVA.Add(s.Amount)
				ivaCode = s.RateCode
			case entity.TaxKindICE:
				t.TotalICE = t.TotalICE.Add(s.Amount)
			}
		}
		switch ivaCode {
		case entity.IVARateCode0:
			t.Subtotal0 = t.Subtotal0.Add(l.Subtotal)
		case entity.IVARateCode5:
			t.Subtotal5 = t.Subtotal5.Add(l.Subtotal)
		case entity.IVARateCode12:
			t.Subtotal12 = t.Subtotal12.Add(l.Subtotal)
		case entity.IVARateCode15:
			t.Subtotal15 = t.Subtotal15.Add(l.Subtotal)
		case entity.IVARateCodeExento:
			t.SubtotalExento = t.SubtotalExento.Add(l.Subtotal)
		default:
			t.SubtotalNoObjeto = t.SubtotalNoObjeto.Add(l.Subtotal)
		}
		t.Total = t.Total.Add(lineTotal)
	}
	t.Subtotal = Q2(t.Subtotal)
	t.TotalIVA = Q2(t.TotalIVA)
	t.TotalICE = Q2(t.TotalICE)
	t.Total = Q2(t.Total)
	return t
}

// Reconcile verifica subtotal + IVA + ICE == total y, si se declaró, total == esperado.
// Un descuadre nunca se corrige: es un error de validación.
func Reconcile(t entity.DocumentTotals, expected *decimal.Decimal) error {
	sum := t.Subtotal.Add(t.TotalIVA).Add(t.TotalICE)
	if !sum.Equal(t.Total) {
		return fmt.Errorf("%w: subtotal %s + iva %s + ice %s != total %s",
			domain.ErrTotalsMismatch, t.Subtotal, t.TotalIVA, t.TotalICE, t.Total)
	}
	if expected != nil && !Q2(*expected).Equal(t.Total) {
		return fmt.Errorf("%w: total declarado %s, calculado %s", domain.ErrTotalsMismatch, expected.StringFixed(2), t.Total.StringFixed(2))
	}
	sumBuckets := t.Subtotal0.Add(t.Subtotal5).Add(t.Subtotal12).Add(t.Subtotal15).
		Add(t.SubtotalNoObjeto).Add(t.SubtotalExento)
	if !sumBuckets.Equal(t.Subtotal) {
		return fmt.Errorf("%w: subtotales por tarifa %s != subtotal %s", domain.ErrTotalsMismatch, sumBuckets, t.Subtotal)
	}
	return nil
}
