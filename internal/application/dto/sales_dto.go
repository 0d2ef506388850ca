package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/application/commercial"
	"github.com/jhoicas/osiris-api/internal/application/sales"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

// LineRequest línea de venta o compra. En compras price es el costo unitario.
type LineRequest struct {
	ProductID   string          `json:"product_id" validate:"required"`
	Description string          `json:"description,omitempty" validate:"max=300"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
}

func toLineInputs(lines []LineRequest) []commercial.LineInput {
	out := make([]commercial.LineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, commercial.LineInput(l))
	}
	return out
}

func toParty(p *PartyRequest) *entity.PartySnapshot {
	if p == nil {
		return nil
	}
	s := entity.PartySnapshot(*p)
	return &s
}

// CreateSaleRequest body para POST /api/sales. Sin customer se factura a consumidor final.
type CreateSaleRequest struct {
	CustomerID    string           `json:"customer_id,omitempty"`
	Customer      *PartyRequest    `json:"customer,omitempty"`
	WarehouseID   string           `json:"warehouse_id" validate:"required"`
	EmissionType  string           `json:"emission_type,omitempty" validate:"omitempty,oneof=ELECTRONICA FISICA"`
	Lines         []LineRequest    `json:"lines" validate:"required,min=1,dive"`
	ExpectedTotal *decimal.Decimal `json:"expected_total,omitempty"`
}

// ToInput convierte el request a la entrada del caso de uso.
func (r CreateSaleRequest) ToInput() sales.CreateInput {
	return sales.CreateInput{
		CustomerID:    r.CustomerID,
		Customer:      toParty(r.Customer),
		WarehouseID:   r.WarehouseID,
		EmissionType:  r.EmissionType,
		Lines:         toLineInputs(r.Lines),
		ExpectedTotal: r.ExpectedTotal,
	}
}

// VoidSaleRequest body para POST /api/sales/:id/void.
type VoidSaleRequest struct {
	Reason               string `json:"reason" validate:"required,max=500"`
	ConfirmedInSRIPortal bool   `json:"confirmed_in_sri_portal"`
}

// PaymentRequest body para POST /api/sales/:id/payments.
type PaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Withholding bool            `json:"withholding"`
}

// TaxSnapshotDTO impuesto congelado de una línea.
type TaxSnapshotDTO struct {
	Kind        string          `json:"kind"`
	TaxCode     string          `json:"tax_code"`
	RateCode    string          `json:"rate_code"`
	Rate        decimal.Decimal `json:"rate"`
	TaxableBase decimal.Decimal `json:"taxable_base"`
	Amount      decimal.Decimal `json:"amount"`
	Active      bool            `json:"active"`
}

func fromTaxes(taxes []entity.TaxSnapshot) []TaxSnapshotDTO {
	out := make([]TaxSnapshotDTO, 0, len(taxes))
	for _, t := range taxes {
		out = append(out, TaxSnapshotDTO{
			Kind: t.Kind, TaxCode: t.TaxCode, RateCode: t.RateCode, Rate: t.Rate,
			TaxableBase: t.TaxableBase, Amount: t.Amount, Active: t.Active,
		})
	}
	return out
}

// DocumentLineDTO línea de venta o compra en respuestas.
type DocumentLineDTO struct {
	ID          string           `json:"id"`
	ProductID   string           `json:"product_id"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	Price       decimal.Decimal  `json:"price"`
	Discount    decimal.Decimal  `json:"discount"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
	Taxes       []TaxSnapshotDTO `json:"taxes"`
}

// TotalsDTO totales del documento por tarifa.
type TotalsDTO struct {
	Subtotal0        decimal.Decimal `json:"subtotal_0"`
	Subtotal5        decimal.Decimal `json:"subtotal_5"`
	Subtotal12       decimal.Decimal `json:"subtotal_12"`
	Subtotal15       decimal.Decimal `json:"subtotal_15"`
	SubtotalNoObjeto decimal.Decimal `json:"subtotal_no_objeto"`
	SubtotalExento   decimal.Decimal `json:"subtotal_exento"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	TotalDiscount    decimal.Decimal `json:"total_discount"`
	TotalIVA         decimal.Decimal `json:"total_iva"`
	TotalICE         decimal.Decimal `json:"total_ice"`
	Total            decimal.Decimal `json:"total"`
}

// SaleResponse venta con líneas, impuestos y totales.
type SaleResponse struct {
	ID             string            `json:"id"`
	CustomerID     string            `json:"customer_id,omitempty"`
	Customer       PartyDTO          `json:"customer"`
	WarehouseID    string            `json:"warehouse_id"`
	Status         string            `json:"status"`
	EmissionType   string            `json:"emission_type"`
	DocumentNumber string            `json:"document_number,omitempty"`
	IssueDate      time.Time         `json:"issue_date"`
	Totals         TotalsDTO         `json:"totals"`
	Lines          []DocumentLineDTO `json:"lines"`
	VoidReason     string            `json:"void_reason,omitempty"`
}

// FromSale arma la respuesta de una venta.
func FromSale(s *entity.Sale) SaleResponse {
	out := SaleResponse{
		ID:           s.ID,
		CustomerID:   s.CustomerID,
		Customer:     PartyDTO(s.Customer),
		WarehouseID:  s.WarehouseID,
		Status:       s.Status,
		EmissionType: s.EmissionType,
		IssueDate:    s.IssueDate,
		Totals:       TotalsDTO(s.Totals),
		Lines:        make([]DocumentLineDTO, 0, len(s.Lines)),
		VoidReason:   s.VoidReason,
	}
	if s.Sequential != "" {
		out.DocumentNumber = s.DocumentNumber()
	}
	for _, l := range s.Lines {
		out.Lines = append(out.Lines, DocumentLineDTO{
			ID: l.ID, ProductID: l.ProductID, Description: l.Description, Quantity: l.Quantity,
			Price: l.UnitPrice, Discount: l.Discount, Subtotal: l.Subtotal, Taxes: fromTaxes(l.Taxes),
		})
	}
	return out
}

// AccountDTO cuenta por cobrar o por pagar.
type AccountDTO struct {
	ID       string          `json:"id"`
	Total    decimal.Decimal `json:"total"`
	Paid     decimal.Decimal `json:"paid"`
	Withheld decimal.Decimal `json:"withheld"`
	Balance  decimal.Decimal `json:"balance"`
	Status   string          `json:"status"`
}

// FromReceivable arma la respuesta de la cuenta por cobrar.
func FromReceivable(r *entity.Receivable) *AccountDTO {
	if r == nil {
		return nil
	}
	return &AccountDTO{ID: r.ID, Total: r.Total, Paid: r.Paid, Withheld: r.Withheld, Balance: r.Balance, Status: r.Status}
}

// FromPayable arma la respuesta de la cuenta por pagar.
func FromPayable(p *entity.Payable) *AccountDTO {
	if p == nil {
		return nil
	}
	return &AccountDTO{ID: p.ID, Total: p.Total, Paid: p.Paid, Withheld: p.Withheld, Balance: p.Balance, Status: p.Status}
}

// EmitResponse resultado de POST /api/sales/:id/emit.
type EmitResponse struct {
	Sale       SaleResponse  `json:"sale"`
	Receivable *AccountDTO   `json:"receivable"`
	MovementID string        `json:"movement_id"`
	Task       *TaskResponse `json:"task,omitempty"`
}

// FromEmitResult arma la respuesta de la emisión.
func FromEmitResult(r *sales.EmitResult) EmitResponse {
	return EmitResponse{
		Sale:       FromSale(r.Sale),
		Receivable: FromReceivable(r.Receivable),
		MovementID: r.MovementID,
		Task:       FromTask(r.Task),
	}
}
