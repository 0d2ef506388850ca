package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func iva15() entity.TaxRate {
	return entity.TaxRate{Kind: entity.TaxKindIVA, TaxCode: entity.SRITaxCodeIVA, RateCode: entity.IVARateCode15, Rate: d("15")}
}

func iva0() entity.TaxRate {
	return entity.TaxRate{Kind: entity.TaxKindIVA, TaxCode: entity.SRITaxCodeIVA, RateCode: entity.IVARateCode0, Rate: d("0")}
}

func ice10() entity.TaxRate {
	return entity.TaxRate{Kind: entity.TaxKindICE, TaxCode: entity.SRITaxCodeICE, RateCode: "3092", Rate: d("10")}
}

// ── Redondeo ────────────────────────────────────────────────────────────────

func TestQ2_HalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":  "1.01",
		"1.004":  "1",
		"2.675":  "2.68",
		"-1.005": "-1.01",
		"0.125":  "0.13",
	}
	for in, want := range cases {
		assert.True(t, d(want).Equal(Q2(d(in))), "Q2(%s) = %s", in, Q2(d(in)))
	}
}

func TestQ4_HalfUp(t *testing.T) {
	assert.True(t, d("6.6667").Equal(Q4(d("20").Div(d("3")))))
	assert.True(t, d("1.0001").Equal(Q4(d("1.00005"))))
}

// ── Línea ───────────────────────────────────────────────────────────────────

func TestComputeLine_IVA15(t *testing.T) {
	res, err := ComputeLine(LineInput{Quantity: d("3"), UnitPrice: d("10.555"), Discount: d("1"), Rates: []entity.TaxRate{iva15()}})
	require.NoError(t, err)
	// 3 × 10.555 − 1 = 30.665 → 30.67
	assert.Equal(t, "30.67", res.Subtotal.StringFixed(2))
	require.Len(t, res.Snapshots, 1)
	assert.Equal(t, "30.67", res.Snapshots[0].TaxableBase.StringFixed(2))
	// 30.67 × 15% = 4.6005 → 4.60
	assert.Equal(t, "4.60", res.Snapshots[0].Amount.StringFixed(2))
	assert.Equal(t, "15.0000", res.Snapshots[0].Rate.StringFixed(4))
}

func TestComputeLine_ICEAntesDeIVA(t *testing.T) {
	res, err := ComputeLine(LineInput{Quantity: d("1"), UnitPrice: d("100"), Discount: decimal.Zero, Rates: []entity.TaxRate{iva15(), ice10()}})
	require.NoError(t, err)
	require.Len(t, res.Snapshots, 2)

	ice := res.Snapshots[0]
	iva := res.Snapshots[1]
	assert.Equal(t, entity.TaxKindICE, ice.Kind)
	assert.Equal(t, "10.00", ice.Amount.StringFixed(2))
	// La base del IVA incluye el ICE.
	assert.Equal(t, "110.00", iva.TaxableBase.StringFixed(2))
	assert.Equal(t, "16.50", iva.Amount.StringFixed(2))
}

func TestComputeLine_CantidadInvalida(t *testing.T) {
	_, err := ComputeLine(LineInput{Quantity: decimal.Zero, UnitPrice: d("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ComputeLine(LineInput{Quantity: d("1"), UnitPrice: d("1"), Discount: d("2")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestComputeLine_DosIVA(t *testing.T) {
	_, err := ComputeLine(LineInput{Quantity: d("1"), UnitPrice: d("1"), Rates: []entity.TaxRate{iva15(), iva0()}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ── Totales ─────────────────────────────────────────────────────────────────

func buildLines(t *testing.T) []TotalsLine {
	t.Helper()
	inputs := []LineInput{
		{Quantity: d("2"), UnitPrice: d("10"), Discount: decimal.Zero, Rates: []entity.TaxRate{iva15()}},
		{Quantity: d("1"), UnitPrice: d("5.50"), Discount: d("0.50"), Rates: []entity.TaxRate{iva0()}},
		{Quantity: d("1"), UnitPrice: d("100"), Discount: decimal.Zero, Rates: []entity.TaxRate{ice10(), iva15()}},
		{Quantity: d("1"), UnitPrice: d("3"), Discount: decimal.Zero},
	}
	var lines []TotalsLine
	for _, in := range inputs {
		res, err := ComputeLine(in)
		require.NoError(t, err)
		lines = append(lines, TotalsLine{Subtotal: res.Subtotal, Discount: in.Discount, Snapshots: res.Snapshots})
	}
	return lines
}

func TestTotals_Buckets(t *testing.T) {
	tot := Totals(buildLines(t))

	assert.Equal(t, "120.00", tot.Subtotal15.StringFixed(2))
	assert.Equal(t, "5.00", tot.Subtotal0.StringFixed(2))
	assert.Equal(t, "3.00", tot.SubtotalNoObjeto.StringFixed(2))
	assert.Equal(t, "128.00", tot.Subtotal.StringFixed(2))
	assert.Equal(t, "0.50", tot.TotalDiscount.StringFixed(2))
	assert.Equal(t, "10.00", tot.TotalICE.StringFixed(2))
	// 3.00 + 16.50
	assert.Equal(t, "19.50", tot.TotalIVA.StringFixed(2))
	assert.Equal(t, "157.50", tot.Total.StringFixed(2))
	assert.NoError(t, Reconcile(tot, nil))
}

func TestReconcile_TotalDeclarado(t *testing.T) {
	tot := Totals(buildLines(t))

	ok := d("157.50")
	assert.NoError(t, Reconcile(tot, &ok))

	wrong := d("157.49")
	err := Reconcile(tot, &wrong)
	assert.ErrorIs(t, err, domain.ErrTotalsMismatch)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReconcile_Descuadre(t *testing.T) {
	tot := Totals(buildLines(t))
	tot.Total = tot.Total.Add(d("0.01"))
	assert.ErrorIs(t, Reconcile(tot, nil), domain.ErrTotalsMismatch)
}
