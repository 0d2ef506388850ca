package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
	"github.com/jhoicas/osiris-api/internal/domain/tax"
)

// DefaultKardexWindow ventana por defecto del kardex.
const DefaultKardexWindow = 365 * 24 * time.Hour

// KardexQuery filtros del kardex. From/To nil aplican la ventana por defecto.
type KardexQuery struct {
	ProductID   string
	WarehouseID string
	From        *time.Time
	To          *time.Time
}

// KardexRow fila del kardex con saldo acumulado.
type KardexRow struct {
	Date        time.Time
	MovementID  string
	Label       string
	Reference   string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	Balance     decimal.Decimal
	AverageCost decimal.Decimal
}

// KardexReport vista cronológica de un producto en una bodega.
type KardexReport struct {
	ProductID      string
	WarehouseID    string
	From           time.Time
	To             time.Time
	OpeningBalance decimal.Decimal
	OpeningCost    decimal.Decimal
	Rows           []KardexRow
	ClosingBalance decimal.Decimal
	ClosingCost    decimal.Decimal
}

// Kardex devuelve los movimientos confirmados del período con saldo inicial y acumulado.
func (uc *MovementUseCase) Kardex(ctx context.Context, q KardexQuery) (*KardexReport, error) {
	if err := repository.CheckReferences(ctx,
		repository.ReferenceCheck{Field: "producto", ID: q.ProductID, Checker: uc.repos.Products},
		repository.ReferenceCheck{Field: "bodega", ID: q.WarehouseID, Checker: uc.repos.Warehouses},
	); err != nil {
		return nil, err
	}

	to := uc.now()
	if q.To != nil {
		to = *q.To
	}
	from := to.Add(-DefaultKardexWindow)
	if q.From != nil {
		from = *q.From
	}

	rep := &KardexReport{
		ProductID:      q.ProductID,
		WarehouseID:    q.WarehouseID,
		From:           from,
		To:             to,
		OpeningBalance: decimal.Zero,
		OpeningCost:    decimal.Zero,
	}
	last, err := uc.repos.Kardex.LastBefore(ctx, q.ProductID, q.WarehouseID, from)
	if err != nil {
		return nil, err
	}
	if last != nil {
		rep.OpeningBalance = last.BalanceQty
		rep.OpeningCost = last.AverageCost
	}

	entries, err := uc.repos.Kardex.List(ctx, q.ProductID, q.WarehouseID, from, to)
	if err != nil {
		return nil, err
	}
	balance := rep.OpeningBalance
	cost := rep.OpeningCost
	for _, e := range entries {
		balance = balance.Add(e.Quantity)
		cost = e.AverageCost
		rep.Rows = append(rep.Rows, KardexRow{
			Date:        e.Date,
			MovementID:  e.MovementID,
			Label:       e.Label,
			Reference:   e.Reference,
			Quantity:    e.Quantity,
			UnitCost:    e.UnitCost,
			Balance:     balance,
			AverageCost: e.AverageCost,
		})
	}
	rep.ClosingBalance = balance
	rep.ClosingCost = cost
	return rep, nil
}

// ValuationLine valoración de un producto.
type ValuationLine struct {
	ProductID   string
	Quantity    decimal.Decimal
	Value       decimal.Decimal
	AverageCost decimal.Decimal
}

// ValuationReport valoración de inventario (cantidad × costo promedio) por producto y total.
type ValuationReport struct {
	WarehouseID *string
	Lines       []ValuationLine
	Total       decimal.Decimal
}

// Valuation agrega el stock activo por producto, opcionalmente de una bodega.
func (uc *MovementUseCase) Valuation(ctx context.Context, warehouseID *string) (*ValuationReport, error) {
	stocks, err := uc.repos.Stock.List(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	byProduct := map[string]*ValuationLine{}
	for _, s := range stocks {
		l, ok := byProduct[s.ProductID]
		if !ok {
			l = &ValuationLine{ProductID: s.ProductID, Quantity: decimal.Zero, Value: decimal.Zero}
			byProduct[s.ProductID] = l
		}
		l.Quantity = l.Quantity.Add(s.Quantity)
		l.Value = l.Value.Add(tax.Q2(s.Value()))
	}

	rep := &ValuationReport{WarehouseID: warehouseID, Total: decimal.Zero}
	for _, l := range byProduct {
		l.AverageCost = decimal.Zero
		if l.Quantity.IsPositive() {
			l.AverageCost = tax.Q4(l.Value.Div(l.Quantity))
		}
		rep.Total = rep.Total.Add(l.Value)
		rep.Lines = append(rep.Lines, *l)
	}
	sort.Slice(rep.Lines, func(i, j int) bool { return rep.Lines[i].ProductID < rep.Lines[j].ProductID })
	return rep, nil
}

// ConfirmedStock devuelve el stock vigente de un par (producto, bodega).
func (uc *MovementUseCase) ConfirmedStock(ctx context.Context, productID, warehouseID string) (*entity.Stock, error) {
	return uc.repos.Stock.Get(ctx, productID, warehouseID)
}
