package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/application/inventory"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

// MovementLineRequest línea de un movimiento. En AJUSTE el signo de quantity indica la dirección.
type MovementLineRequest struct {
	ProductID string           `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
}

// CreateMovementRequest body para POST /api/inventory/movements (queda en BORRADOR).
type CreateMovementRequest struct {
	Type                   string                `json:"type" validate:"required,oneof=INGRESO EGRESO AJUSTE TRANSFERENCIA"`
	WarehouseID            string                `json:"warehouse_id" validate:"required"`
	DestinationWarehouseID string                `json:"destination_warehouse_id,omitempty" validate:"required_if=Type TRANSFERENCIA"`
	Reference              string                `json:"reference,omitempty" validate:"max=200"`
	AdjustmentReason       string                `json:"adjustment_reason,omitempty" validate:"required_if=Type AJUSTE"`
	Date                   *time.Time            `json:"date,omitempty"`
	Lines                  []MovementLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ToInput convierte el request a la entrada del caso de uso.
func (r CreateMovementRequest) ToInput() inventory.DraftInput {
	in := inventory.DraftInput{
		Type:                   r.Type,
		WarehouseID:            r.WarehouseID,
		DestinationWarehouseID: r.DestinationWarehouseID,
		Reference:              r.Reference,
		AdjustmentReason:       r.AdjustmentReason,
	}
	if r.Date != nil {
		in.Date = *r.Date
	}
	for _, l := range r.Lines {
		in.Lines = append(in.Lines, inventory.LineInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: l.UnitCost})
	}
	return in
}

// ConfirmMovementRequest body para POST /api/inventory/movements/:id/confirm.
type ConfirmMovementRequest struct {
	AdjustmentReason string `json:"adjustment_reason,omitempty"`
	AuthorizedBy     string `json:"authorized_by,omitempty"`
}

// DeactivateStockRequest body para POST /api/inventory/stock/deactivate.
type DeactivateStockRequest struct {
	ProductID   string `json:"product_id" validate:"required"`
	WarehouseID string `json:"warehouse_id" validate:"required"`
}

// MovementLineDTO línea de movimiento en respuestas.
type MovementLineDTO struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// MovementResponse movimiento de inventario.
type MovementResponse struct {
	ID                     string            `json:"id"`
	Type                   string            `json:"type"`
	State                  string            `json:"state"`
	WarehouseID            string            `json:"warehouse_id"`
	DestinationWarehouseID string            `json:"destination_warehouse_id,omitempty"`
	Reference              string            `json:"reference,omitempty"`
	AdjustmentReason       string            `json:"adjustment_reason,omitempty"`
	AuthorizedBy           string            `json:"authorized_by,omitempty"`
	Date                   time.Time         `json:"date"`
	ConfirmedAt            *time.Time        `json:"confirmed_at,omitempty"`
	Lines                  []MovementLineDTO `json:"lines"`
	CreatedBy              string            `json:"created_by"`
}

// FromMovement arma la respuesta de un movimiento.
func FromMovement(m *entity.InventoryMovement) MovementResponse {
	out := MovementResponse{
		ID:                     m.ID,
		Type:                   m.Type,
		State:                  m.State,
		WarehouseID:            m.WarehouseID,
		DestinationWarehouseID: m.DestinationWarehouseID,
		Reference:              m.Reference,
		AdjustmentReason:       m.AdjustmentReason,
		AuthorizedBy:           m.AuthorizedBy,
		Date:                   m.Date,
		ConfirmedAt:            m.ConfirmedAt,
		Lines:                  make([]MovementLineDTO, 0, len(m.Lines)),
		CreatedBy:              m.CreatedBy,
	}
	for _, l := range m.Lines {
		out.Lines = append(out.Lines, MovementLineDTO{ID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: l.UnitCost})
	}
	return out
}

// KardexRowDTO fila del kardex.
type KardexRowDTO struct {
	Date        time.Time       `json:"date"`
	MovementID  string          `json:"movement_id"`
	Label       string          `json:"label"`
	Reference   string          `json:"reference,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Balance     decimal.Decimal `json:"balance"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// KardexResponse kardex de un producto en una bodega.
type KardexResponse struct {
	ProductID      string          `json:"product_id"`
	WarehouseID    string          `json:"warehouse_id"`
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	OpeningCost    decimal.Decimal `json:"opening_cost"`
	Rows           []KardexRowDTO  `json:"rows"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	ClosingCost    decimal.Decimal `json:"closing_cost"`
}

// FromKardex arma la respuesta del kardex.
func FromKardex(r *inventory.KardexReport) KardexResponse {
	out := KardexResponse{
		ProductID:      r.ProductID,
		WarehouseID:    r.WarehouseID,
		From:           r.From,
		To:             r.To,
		OpeningBalance: r.OpeningBalance,
		OpeningCost:    r.OpeningCost,
		Rows:           make([]KardexRowDTO, 0, len(r.Rows)),
		ClosingBalance: r.ClosingBalance,
		ClosingCost:    r.ClosingCost,
	}
	for _, row := range r.Rows {
		out.Rows = append(out.Rows, KardexRowDTO(row))
	}
	return out
}

// ValuationLineDTO valoración de un producto.
type ValuationLineDTO struct {
	ProductID   string          `json:"product_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Value       decimal.Decimal `json:"value"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// ValuationResponse valoración del inventario.
type ValuationResponse struct {
	WarehouseID *string            `json:"warehouse_id,omitempty"`
	Lines       []ValuationLineDTO `json:"lines"`
	Total       decimal.Decimal    `json:"total"`
}

// FromValuation arma la respuesta de valoración.
func FromValuation(r *inventory.ValuationReport) ValuationResponse {
	out := ValuationResponse{WarehouseID: r.WarehouseID, Lines: make([]ValuationLineDTO, 0, len(r.Lines)), Total: r.Total}
	for _, l := range r.Lines {
		out.Lines = append(out.Lines, ValuationLineDTO(l))
	}
	return out
}
