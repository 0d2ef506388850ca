package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/infrastructure/memory"
)

const (
	actor  = "user-1"
	prodA  = "prod-a"
	prodB  = "prod-b"
	whMain = "bod-1"
	whAlt  = "bod-2"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

type fixture struct {
	store *memory.Store
	uc    *MovementUseCase
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	r := store.Repos()
	for _, id := range []string{prodA, prodB} {
		require.NoError(t, r.Products.Create(ctx, &entity.Product{ID: id, Code: id, Name: id, Active: true}))
	}
	require.NoError(t, r.Products.Create(ctx, &entity.Product{ID: "prod-inactivo", Active: false}))
	for _, id := range []string{whMain, whAlt} {
		require.NoError(t, r.Warehouses.Create(ctx, &entity.Warehouse{ID: id, Code: id, Active: true}))
	}
	f := &fixture{store: store, clock: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	f.uc = NewMovementUseCase(store, r, zerolog.Nop()).WithClock(func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	})
	return f
}

func (f *fixture) confirmed(t *testing.T, in DraftInput) *entity.InventoryMovement {
	t.Helper()
	ctx := context.Background()
	mov, err := f.uc.CreateDraft(ctx, actor, in)
	require.NoError(t, err)
	out, err := f.uc.Confirm(ctx, actor, ConfirmInput{MovementID: mov.ID, AdjustmentReason: in.AdjustmentReason})
	require.NoError(t, err)
	return out
}

func (f *fixture) stock(t *testing.T, productID, warehouseID string) *entity.Stock {
	t.Helper()
	s, err := f.store.Repos().Stock.Get(context.Background(), productID, warehouseID)
	require.NoError(t, err)
	return s
}

func ingreso(productID, qty, cost string) DraftInput {
	return DraftInput{Type: entity.MovementTypeIngreso, WarehouseID: whMain,
		Lines: []LineInput{{ProductID: productID, Quantity: d(qty), UnitCost: dp(cost)}}}
}

func egreso(productID, qty string) DraftInput {
	return DraftInput{Type: entity.MovementTypeEgreso, WarehouseID: whMain,
		Lines: []LineInput{{ProductID: productID, Quantity: d(qty)}}}
}

// ── Costo promedio ──────────────────────────────────────────────────────────

func TestConfirm_DosIngresos_CostoPromedio(t *testing.T) {
	f := newFixture(t)
	f.confirmed(t, ingreso(prodA, "10", "5.00"))
	f.confirmed(t, ingreso(prodA, "5", "8.00"))

	s := f.stock(t, prodA, whMain)
	assert.Equal(t, "15.0000", s.Quantity.StringFixed(4))
	assert.Equal(t, "6.0000", s.AverageCost.StringFixed(4))
}

func TestConfirm_EgresoNoCambiaCosto(t *testing.T) {
	f := newFixture(t)
	f.confirmed(t, ingreso(prodA, "10", "5.00"))
	f.confirmed(t, ingreso(prodA, "5", "8.00"))
	mov := f.confirmed(t, egreso(prodA, "4"))

	s := f.stock(t, prodA, whMain)
	assert.Equal(t, "11.0000", s.Quantity.StringFixed(4))
	assert.Equal(t, "6.0000", s.AverageCost.StringFixed(4))
	assert.Equal(t, "6.0000", mov.Lines[0].UnitCost.StringFixed(4))
}

// ── Stock insuficiente ──────────────────────────────────────────────────────

func TestConfirm_EgresoSinStock_NoModificaStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.confirmed(t, ingreso(prodA, "8", "2.50"))
	before := f.stock(t, prodA, whMain)

	mov, err := f.uc.CreateDraft(ctx, actor, egreso(prodA, "10"))
	require.NoError(t, err)
	_, err = f.uc.Confirm(ctx, actor, ConfirmInput{MovementID: mov.ID})

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)
	after := f.stock(t, prodA, whMain)
	assert.Equal(t, *before, *after)
	assert.Equal(t, "8.0000", after.Quantity.StringFixed(4))

	stored, err := f.store.Repos().Movements.GetByID(ctx, mov.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.MovementStateBorrador, stored.State)
}

func TestConfirm_VariasLineas_RollbackCompleto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.confirmed(t, ingreso(prodA, "5", "1"))
	f.confirmed(t, ingreso(prodB, "1", "1"))

	mov, err := f.uc.CreateDraft(ctx, actor, DraftInput{Type: entity.MovementTypeEgreso, WarehouseID: whMain,
		Lines: []LineInput{{ProductID: prodA, Quantity: d("2")}, {ProductID: prodB, Quantity: d("3")}}})
	require.NoError(t, err)
	_, err = f.uc.Confirm(ctx, actor, ConfirmInput{MovementID: mov.ID})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, "5", f.stock(t, prodA, whMain).Quantity.String())
	assert.Equal(t, "1", f.stock(t, prodB, whMain).Quantity.String())
}

func TestConfirm_EgresosConcurrentes_SoloUnoPasa(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.confirmed(t, ingreso(prodA, "10", "1"))

	var ids []string
	for i := 0; i < 2; i++ {
		mov, err := f.uc.CreateDraft(ctx, actor, egreso(prodA, "7"))
		require.NoError(t, err)
		ids = append(ids, mov.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.uc.Confirm(ctx, actor, ConfirmInput{MovementID: id})
		}(i, id)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrInsufficientStock)
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, "3", f.stock(t, prodA, whMain).Quantity.String())
}

// ── Validaciones ────────────────────────────────────────────────────────────

func TestCreateDraft_Validaciones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   DraftInput
		want error
	}{
		{"cantidad cero", DraftInput{Type: entity.MovementTypeEgreso, WarehouseID: whMain, Lines: []LineInput{{ProductID: prodA, Quantity: decimal.Zero}}}, domain.ErrInvalidInput},
		{"cantidad negativa", DraftInput{Type: entity.MovementTypeEgreso, WarehouseID: whMain, Lines: []LineInput{{ProductID: prodA, Quantity: d("-1")}}}, domain.ErrInvalidInput},
		{"costo negativo", DraftInput{Type: entity.MovementTypeIngreso, WarehouseID: whMain, Lines: []LineInput{{ProductID: prodA, Quantity: d("1"), UnitCost: dp("-1")}}}, domain.ErrInvalidInput},
		{"ingreso sin costo", DraftInput{Type: entity.MovementTypeIngreso, WarehouseID: whMain, Lines: []LineInput{{ProductID: prodA, Quantity: d("1")}}}, domain.ErrInvalidInput},
		{"sin líneas", DraftInput{Type: entity.MovementTypeIngreso, WarehouseID: whMain}, domain.ErrInvalidInput},
		{"tipo desconocido", DraftInput{Type: "X", WarehouseID: whMain, Lines: []LineInput{{ProductID: prodA, Quantity: d("1")}}}, domain.ErrInvalidInput},
		{"transferencia misma bodega", DraftInput{Type: entity.MovementTypeTransferencia, WarehouseID: whMain, DestinationWarehouseID: whMain, Lines: []LineInput{{ProductID: prodA, Quantity: d("1")}}}, domain.ErrInvalidInput},
		{"bodega inexistente", DraftInput{Type: entity.MovementTypeEgreso, WarehouseID: "nope", Lines: []LineInput{{ProductID: prodA, Quantity: d("1")}}}, domain.ErrNotFound},
		{"producto inexistente", DraftInput{Type: entity.MovementTypeEgreso, WarehouseID: whMain, Lines: []LineInput{{ProductID: "nope", Quantity: d("1")}}}, domain.ErrNotFound},
		{"producto inactivo", DraftInput{Type: entity.MovementTypeEgreso, WarehouseID: whMain, Lines: []LineInput{{ProductID: "prod-inactivo", Quantity: d("1")}}}, domain.ErrNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := f.uc.CreateDraft(ctx, actor, c.in)
			assert.ErrorIs(t, err, c.want)
		})
	}
}

func TestCreateDraft_NoAfectaStock(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.CreateDraft(context.Background(), actor, ingreso(prodA, "10", "3"))
	require.NoError(t, err)
	assert.True(t, f.stock(t, prodA, whMain).Quantity.IsZero())
}

func TestConfirm_AjusteSinMotivo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.confirmed(t, ingreso(prodA, "4", "2"))
	before := f.stock(t, prodA, whMain)

	mov, err := f.uc.CreateDraft(ctx, actor, DraftInput{Type: entity.MovementTypeAjuste, WarehouseID: whMain,
		Lines: []LineInput{{ProductID: prodA, Quantity: d("-1")}}})
	require.NoError(t, err)

	_, err = f.uc.Confirm(ctx, actor, ConfirmInput{MovementID: mov.ID})
	assert.ErrorIs(t, err, domain.ErrMissingReason)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, *before, *f.stock(t, prodA, whMain))

	out, err := f.uc.Confirm(ctx, actor, ConfirmInput{MovementID: mov.ID, AdjustmentReason: "merma", AuthorizedBy: "jefe"})
	require.NoError(t, err)
	assert.Equal(t, "merma", out.AdjustmentReason)
	assert.Equal(t, "jefe", out.AuthorizedBy)
	assert.Equal(t, "3", f.stock(t, prodA, whMain).Quantity.String())
}

func TestConfirm_AjustePositivoSinCostoMantienePromedio(t *testing.T) {
	f := newFixture(t)
	f.confirmed(t, ingreso(prodA, "10", "4"))
	f.confirmed(t, DraftInput{Type: entity.MovementTypeAjuste, WarehouseID: whMain, AdjustmentReason: "conteo físico",
		Lines: []LineInput{{ProductID: prodA, Quantity: d("2")}}})

	s := f.stock(t, prodA, whMain)
	assert.Equal(t, "12", s.Quantity.String())
	assert.Equal(t, "4.0000", s.AverageCost.StringFixed(4))
}

func TestConfirm_DosVecesFalla(t *testing.T) {
	f := newFixture(t)
	mov := f.confirmed(t, ingreso(prodA, "1", "1"))
	_, err := f.uc.Confirm(context.Background(), actor, ConfirmInput{MovementID: mov.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, "1", f.stock(t, prodA, whMain).Quantity.String())
}

// ── Transferencia ───────────────────────────────────────────────────────────

func TestConfirm_Transferencia(t *testing.T) {
	f := newFixture(t)
	f.confirmed(t, ingreso(prodA, "10", "6"))
	// destino con costo distinto
	f.confirmed(t, DraftInput{Type: entity.MovementTypeIngreso, WarehouseID: whAlt,
		Lines: []LineInput{{ProductID: prodA, Quantity: d("10"), UnitCost: dp("2")}}})

	f.confirmed(t, DraftInput{Type: entity.MovementTypeTransferencia, WarehouseID: whMain, DestinationWarehouseID: whAlt,
		Lines: []LineInput{{ProductID: prodA, Quantity: d("10")}}})

	origin := f.stock(t, prodA, whMain)
	dest := f.stock(t, prodA, whAlt)
	assert.True(t, origin.Quantity.IsZero())
	assert.Equal(t, "6.0000", origin.AverageCost.StringFixed(4))
	assert.Equal(t, "20", dest.Quantity.String())
	// (10×2 + 10×6)/20
	assert.Equal(t, "4.0000", dest.AverageCost.StringFixed(4))
}

func TestConfirm_TransferenciaSinStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mov, err := f.uc.CreateDraft(ctx, actor, DraftInput{Type: entity.MovementTypeTransferencia, WarehouseID: whMain, DestinationWarehouseID: whAlt,
		Lines: []LineInput{{ProductID: prodA, Quantity: d("1")}}})
	require.NoError(t, err)
	_, err = f.uc.Confirm(ctx, actor, ConfirmInput{MovementID: mov.ID})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.True(t, f.stock(t, prodA, whAlt).Quantity.IsZero())
}

// ── Desactivación ───────────────────────────────────────────────────────────

func TestDeactivateStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.confirmed(t, ingreso(prodA, "2", "1"))

	err := f.uc.DeactivateStock(ctx, actor, prodA, whMain)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)

	f.confirmed(t, egreso(prodA, "2"))
	require.NoError(t, f.uc.DeactivateStock(ctx, actor, prodA, whMain))
	assert.False(t, f.stock(t, prodA, whMain).Active)

	rep, err := f.uc.Valuation(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, rep.Lines)
}
