package purchases

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/osiris-api/internal/application/commercial"
	"github.com/jhoicas/osiris-api/internal/application/electronic"
	"github.com/jhoicas/osiris-api/internal/application/inventory"
	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/infrastructure/memory"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

const (
	actor  = "user-1"
	prodA  = "prod-a"
	whMain = "bod-1"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store *memory.Store
	inv   *inventory.MovementUseCase
	uc    *PurchasesUseCase
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	r := store.Repos()

	store.PutTaxRate(entity.TaxRate{Kind: entity.TaxKindIVA, TaxCode: entity.SRITaxCodeIVA, RateCode: entity.IVARateCode15, Rate: d("15")})
	require.NoError(t, r.Products.Create(ctx, &entity.Product{ID: prodA, Code: "A-1", Name: "Producto A", Active: true,
		Taxes: []entity.ProductTax{{Kind: entity.TaxKindIVA, TaxCode: entity.SRITaxCodeIVA, RateCode: entity.IVARateCode15}}}))
	require.NoError(t, r.Warehouses.Create(ctx, &entity.Warehouse{ID: whMain, Code: "B1", Active: true}))

	f := &fixture{store: store, clock: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	f.inv = inventory.NewMovementUseCase(store, r, zerolog.Nop()).WithClock(clock)

	queue := electronic.NewQueueService(store, r, electronic.RetencionBuilder{}, nil, nil, electronic.SyncExecutor{},
		electronic.QueueConfig{Issuer: electronic.Issuer{
			Emisor:   sri.Emisor{RUC: "1790012345001", RazonSocial: "OSIRIS S.A."},
			Ambiente: sri.AmbientePruebas,
		}}, zerolog.Nop()).WithClock(clock)
	orch := electronic.NewOrchestrator(r, zerolog.Nop(), queue)

	f.uc = NewPurchasesUseCase(store, r, f.inv, orch, Config{}, zerolog.Nop()).WithClock(clock)
	return f
}

func supplier() entity.PartySnapshot {
	return entity.PartySnapshot{IdentificationType: sri.IdentificacionRUC, Identification: "1790012345001", Name: "Proveedor S.A."}
}

func (f *fixture) purchase(t *testing.T, number, qty, cost string) *entity.Purchase {
	t.Helper()
	p, err := f.uc.Create(context.Background(), actor, CreateInput{
		Supplier:       supplier(),
		WarehouseID:    whMain,
		SupplierNumber: number,
		Lines:          []commercial.LineInput{{ProductID: prodA, Quantity: d(qty), Price: d(cost)}},
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T) *entity.Stock {
	t.Helper()
	st, err := f.store.Repos().Stock.Get(context.Background(), prodA, whMain)
	require.NoError(t, err)
	return st
}

func retention() RetentionInput {
	return RetentionInput{Lines: []RetentionLineInput{
		{TaxCode: sri.RetencionRenta, RetentionCode: "312", TaxableBase: d("50"), Percentage: d("1")},
		{TaxCode: sri.RetencionIVA, RetentionCode: "721", TaxableBase: d("7.50"), Percentage: d("30")},
	}}
}

// ── Registro ────────────────────────────────────────────────────────────────

func TestCreate_IngresoYCuentaPorPagar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.purchase(t, "001-001-000004567", "10", "5")

	assert.Equal(t, entity.PurchaseStatusRegistrada, p.Status)
	assert.True(t, p.Totals.Subtotal15.Equal(d("50")))
	assert.True(t, p.Totals.TotalIVA.Equal(d("7.5")))
	assert.True(t, p.Totals.Total.Equal(d("57.5")))

	st := f.stock(t)
	assert.True(t, st.Quantity.Equal(d("10")))
	assert.Equal(t, "5.0000", st.AverageCost.StringFixed(4), "el costo excluye el IVA")

	payable, err := f.uc.Payable(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, payable.Balance.Equal(d("57.5")))
	assert.Equal(t, entity.AccountStatusAbierta, payable.Status)

	rep, err := f.inv.Kardex(ctx, inventory.KardexQuery{ProductID: prodA, WarehouseID: whMain})
	require.NoError(t, err)
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, entity.MovementTypeIngreso, rep.Rows[0].Label)
	assert.Equal(t, entity.RefPrefixCompra+p.ID, rep.Rows[0].Reference)
}

func TestCreate_CostoPromedioPonderado(t *testing.T) {
	f := newFixture(t)
	f.purchase(t, "F-1", "10", "5")
	f.purchase(t, "F-2", "10", "7")

	st := f.stock(t)
	assert.True(t, st.Quantity.Equal(d("20")))
	assert.Equal(t, "6.0000", st.AverageCost.StringFixed(4))
}

func TestCreate_CostoNetoDeDescuento(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.Create(context.Background(), actor, CreateInput{
		Supplier:       supplier(),
		WarehouseID:    whMain,
		SupplierNumber: "F-1",
		Lines:          []commercial.LineInput{{ProductID: prodA, Quantity: d("4"), Price: d("10"), Discount: d("4")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "9.0000", f.stock(t).AverageCost.StringFixed(4))
}

func TestCreate_Validaciones(t *testing.T) {
	tests := []struct {
		name string
		in   CreateInput
		err  error
	}{
		{"sin número de proveedor", CreateInput{Supplier: supplier(), WarehouseID: whMain,
			Lines: []commercial.LineInput{{ProductID: prodA, Quantity: d("1"), Price: d("1")}}}, domain.ErrInvalidInput},
		{"proveedor sin nombre", CreateInput{Supplier: entity.PartySnapshot{IdentificationType: sri.IdentificacionRUC, Identification: "1790012345001"},
			WarehouseID: whMain, SupplierNumber: "F-1",
			Lines: []commercial.LineInput{{ProductID: prodA, Quantity: d("1"), Price: d("1")}}}, domain.ErrInvalidInput},
		{"sin líneas", CreateInput{Supplier: supplier(), WarehouseID: whMain, SupplierNumber: "F-1"}, domain.ErrInvalidInput},
		{"bodega inexistente", CreateInput{Supplier: supplier(), WarehouseID: "nope", SupplierNumber: "F-1",
			Lines: []commercial.LineInput{{ProductID: prodA, Quantity: d("1"), Price: d("1")}}}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.uc.Create(context.Background(), actor, tt.in)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

// ── Anulación ───────────────────────────────────────────────────────────────

func TestVoid_RevierteStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.purchase(t, "F-1", "10", "5")

	voided, err := f.uc.Void(ctx, actor, p.ID, "factura duplicada")
	require.NoError(t, err)
	assert.Equal(t, entity.PurchaseStatusAnulada, voided.Status)
	assert.Equal(t, "factura duplicada", voided.VoidReason)
	assert.True(t, f.stock(t).Quantity.IsZero())

	payable, err := f.uc.Payable(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AccountStatusAnulada, payable.Status)
	assert.True(t, payable.Balance.IsZero())

	_, err = f.uc.Void(ctx, actor, p.ID, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestVoid_MercaderiaYaVendida(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.purchase(t, "F-1", "10", "5")

	mov, err := f.inv.CreateDraft(ctx, actor, inventory.DraftInput{Type: entity.MovementTypeEgreso, WarehouseID: whMain,
		Lines: []inventory.LineInput{{ProductID: prodA, Quantity: d("5")}}})
	require.NoError(t, err)
	_, err = f.inv.Confirm(ctx, actor, inventory.ConfirmInput{MovementID: mov.ID})
	require.NoError(t, err)

	_, err = f.uc.Void(ctx, actor, p.ID, "")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	got, err := f.uc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PurchaseStatusRegistrada, got.Status, "la transacción se revierte")
	assert.True(t, f.stock(t).Quantity.Equal(d("5")))
}

func TestVoid_BloqueadaConPagos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.purchase(t, "F-1", "10", "5")

	_, err := f.uc.RegisterPayment(ctx, actor, p.ID, d("10"))
	require.NoError(t, err)

	_, err = f.uc.Void(ctx, actor, p.ID, "")
	assert.ErrorIs(t, err, domain.ErrActivePayments)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)
}

// ── Retenciones ─────────────────────────────────────────────────────────────

func TestCreateRetention_ElectronicaSeEncola(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.purchase(t, "001-001-000004567", "10", "5")

	ret, task, err := f.uc.CreateRetention(ctx, actor, p.ID, retention())
	require.NoError(t, err)
	assert.Equal(t, "001-001-000000001", ret.DocumentNumber())
	assert.True(t, ret.Total.Equal(d("2.75")))
	require.Len(t, ret.Lines, 2)
	assert.True(t, ret.Lines[0].Amount.Equal(d("0.5")))
	assert.True(t, ret.Lines[1].Amount.Equal(d("2.25")))

	require.NotNil(t, task)
	assert.Equal(t, entity.TaskStatusPendiente, task.Status)
	assert.Equal(t, entity.DocumentTypeRetencion, task.DocumentType)

	payable, err := f.uc.Payable(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, payable.Withheld.Equal(d("2.75")))
	assert.True(t, payable.Balance.Equal(d("54.75")))

	_, err = f.uc.Void(ctx, actor, p.ID, "")
	assert.ErrorIs(t, err, domain.ErrActivePayments)

	rets, err := f.uc.Retentions(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, rets, 1)
}

func TestCreateRetention_FisicaNoSeEncola(t *testing.T) {
	f := newFixture(t)
	p := f.purchase(t, "F-1", "10", "5")

	in := retention()
	in.Physical = true
	ret, task, err := f.uc.CreateRetention(context.Background(), actor, p.ID, in)
	require.NoError(t, err)
	assert.False(t, ret.Electronic)
	assert.Nil(t, task)
}

func TestCreateRetention_SuperaSaldo(t *testing.T) {
	f := newFixture(t)
	p := f.purchase(t, "F-1", "1", "5")

	_, _, err := f.uc.CreateRetention(context.Background(), actor, p.ID, RetentionInput{Lines: []RetentionLineInput{
		{TaxCode: sri.RetencionRenta, RetentionCode: "312", TaxableBase: d("100"), Percentage: d("10")},
	}})
	assert.ErrorIs(t, err, domain.ErrBusinessRule)
}

func TestCreateRetention_Validaciones(t *testing.T) {
	tests := []struct {
		name string
		line RetentionLineInput
	}{
		{"código de impuesto", RetentionLineInput{TaxCode: "9", RetentionCode: "312", TaxableBase: d("1"), Percentage: d("1")}},
		{"sin código de retención", RetentionLineInput{TaxCode: sri.RetencionRenta, TaxableBase: d("1"), Percentage: d("1")}},
		{"base cero", RetentionLineInput{TaxCode: sri.RetencionRenta, RetentionCode: "312", TaxableBase: d("0"), Percentage: d("1")}},
		{"porcentaje mayor a 100", RetentionLineInput{TaxCode: sri.RetencionIVA, RetentionCode: "731", TaxableBase: d("1"), Percentage: d("101")}},
	}
	f := newFixture(t)
	p := f.purchase(t, "F-1", "10", "5")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.uc.CreateRetention(context.Background(), actor, p.ID, RetentionInput{Lines: []RetentionLineInput{tt.line}})
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	_, _, err := f.uc.CreateRetention(context.Background(), actor, p.ID, RetentionInput{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ── Pagos ───────────────────────────────────────────────────────────────────

func TestRegisterPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.purchase(t, "F-1", "10", "5")

	payable, err := f.uc.RegisterPayment(ctx, actor, p.ID, d("57.5"))
	require.NoError(t, err)
	assert.Equal(t, entity.AccountStatusPagada, payable.Status)
	assert.True(t, payable.Balance.IsZero())

	_, err = f.uc.RegisterPayment(ctx, actor, p.ID, d("1"))
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.uc.RegisterPayment(ctx, actor, p.ID, d("0"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
