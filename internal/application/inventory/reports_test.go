package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	domaininv "github.com/jhoicas/osiris-api/internal/domain/inventory"
)

func TestKardex_ReplayIgualAStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.confirmed(t, ingreso(prodA, "10", "5"))
	f.confirmed(t, DraftInput{Type: entity.MovementTypeEgreso, WarehouseID: whMain, Reference: entity.RefPrefixVenta + "v-1",
		Lines: []LineInput{{ProductID: prodA, Quantity: d("3")}}})
	f.confirmed(t, ingreso(prodA, "6", "7.25"))
	f.confirmed(t, DraftInput{Type: entity.MovementTypeAjuste, WarehouseID: whMain, AdjustmentReason: "rotura",
		Lines: []LineInput{{ProductID: prodA, Quantity: d("-1.5")}}})
	f.confirmed(t, DraftInput{Type: entity.MovementTypeTransferencia, WarehouseID: whMain, DestinationWarehouseID: whAlt,
		Lines: []LineInput{{ProductID: prodA, Quantity: d("2")}}})

	from := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	rep, err := f.uc.Kardex(ctx, KardexQuery{ProductID: prodA, WarehouseID: whMain, From: &from})
	require.NoError(t, err)
	require.Len(t, rep.Rows, 5)

	live := f.stock(t, prodA, whMain)
	assert.True(t, live.Quantity.Equal(rep.ClosingBalance), "kardex %s vs stock %s", rep.ClosingBalance, live.Quantity)
	assert.Equal(t, live.AverageCost.StringFixed(4), rep.ClosingCost.StringFixed(4))

	labels := []string{}
	for _, r := range rep.Rows {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{
		entity.MovementTypeIngreso,
		entity.KardexLabelVenta,
		entity.MovementTypeIngreso,
		entity.MovementTypeAjuste,
		entity.KardexLabelTransferenciaSalida,
	}, labels)
	assert.True(t, rep.Rows[1].Quantity.IsNegative())

	// Reproducción pura del libro: mismo saldo y costo.
	entries, err := f.store.Repos().Kardex.List(ctx, prodA, whMain, from, f.clock)
	require.NoError(t, err)
	replayed := domaininv.Replay(domaininv.Balance{}, entries)
	assert.True(t, replayed.Quantity.Equal(live.Quantity))
	assert.Equal(t, live.AverageCost.StringFixed(4), replayed.AverageCost.StringFixed(4))

	dest, err := f.uc.Kardex(ctx, KardexQuery{ProductID: prodA, WarehouseID: whAlt, From: &from})
	require.NoError(t, err)
	require.Len(t, dest.Rows, 1)
	assert.Equal(t, entity.KardexLabelTransferenciaEntrada, dest.Rows[0].Label)
}

func TestKardex_SaldoInicial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.confirmed(t, ingreso(prodA, "10", "5"))
	cut := f.clock.Add(500 * time.Millisecond)
	f.confirmed(t, egreso(prodA, "4"))

	rep, err := f.uc.Kardex(ctx, KardexQuery{ProductID: prodA, WarehouseID: whMain, From: &cut})
	require.NoError(t, err)
	assert.Equal(t, "10", rep.OpeningBalance.String())
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, "6", rep.Rows[0].Balance.String())
	assert.Equal(t, "6", rep.ClosingBalance.String())
}

func TestKardex_VentanaPorDefecto(t *testing.T) {
	f := newFixture(t)
	rep, err := f.uc.Kardex(context.Background(), KardexQuery{ProductID: prodA, WarehouseID: whMain})
	require.NoError(t, err)
	assert.Equal(t, DefaultKardexWindow, rep.To.Sub(rep.From))
	assert.Empty(t, rep.Rows)
	assert.True(t, rep.ClosingBalance.IsZero())
}

func TestKardex_ProductoInexistente(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.Kardex(context.Background(), KardexQuery{ProductID: "nope", WarehouseID: whMain})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValuation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.confirmed(t, ingreso(prodA, "10", "5"))
	f.confirmed(t, ingreso(prodB, "3", "1.333"))
	f.confirmed(t, DraftInput{Type: entity.MovementTypeIngreso, WarehouseID: whAlt,
		Lines: []LineInput{{ProductID: prodA, Quantity: d("2"), UnitCost: dp("8")}}})

	all, err := f.uc.Valuation(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all.Lines, 2)
	assert.Equal(t, prodA, all.Lines[0].ProductID)
	assert.Equal(t, "12", all.Lines[0].Quantity.String())
	assert.Equal(t, "66.00", all.Lines[0].Value.StringFixed(2))
	// 3 × 1.333 = 3.999 → 4.00
	assert.Equal(t, "4.00", all.Lines[1].Value.StringFixed(2))
	assert.Equal(t, "70.00", all.Total.StringFixed(2))

	wh := whAlt
	one, err := f.uc.Valuation(ctx, &wh)
	require.NoError(t, err)
	require.Len(t, one.Lines, 1)
	assert.Equal(t, "16.00", one.Total.StringFixed(2))
}
