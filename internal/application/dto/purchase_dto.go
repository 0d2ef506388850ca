package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/application/purchases"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

// CreatePurchaseRequest body para POST /api/purchases.
type CreatePurchaseRequest struct {
	SupplierID     string           `json:"supplier_id,omitempty"`
	Supplier       PartyRequest     `json:"supplier"`
	WarehouseID    string           `json:"warehouse_id" validate:"required"`
	SupplierNumber string           `json:"supplier_number" validate:"required,max=20"`
	IssueDate      time.Time        `json:"issue_date" validate:"required"`
	Lines          []LineRequest    `json:"lines" validate:"required,min=1,dive"`
	ExpectedTotal  *decimal.Decimal `json:"expected_total,omitempty"`
}

// ToInput convierte el request a la entrada del caso de uso.
func (r CreatePurchaseRequest) ToInput() purchases.CreateInput {
	return purchases.CreateInput{
		SupplierID:     r.SupplierID,
		Supplier:       entity.PartySnapshot(r.Supplier),
		WarehouseID:    r.WarehouseID,
		SupplierNumber: r.SupplierNumber,
		IssueDate:      r.IssueDate,
		Lines:          toLineInputs(r.Lines),
		ExpectedTotal:  r.ExpectedTotal,
	}
}

// VoidPurchaseRequest body para POST /api/purchases/:id/void.
type VoidPurchaseRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// RetentionLineRequest impuesto a retener (1 renta, 2 IVA, 6 ISD).
type RetentionLineRequest struct {
	TaxCode       string          `json:"tax_code" validate:"required,oneof=1 2 6"`
	RetentionCode string          `json:"retention_code" validate:"required,max=10"`
	TaxableBase   decimal.Decimal `json:"taxable_base"`
	Percentage    decimal.Decimal `json:"percentage"`
}

// RetentionRequest body para POST /api/purchases/:id/retentions.
type RetentionRequest struct {
	Physical bool                   `json:"physical"`
	Lines    []RetentionLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ToInput convierte el request a la entrada del caso de uso.
func (r RetentionRequest) ToInput() purchases.RetentionInput {
	in := purchases.RetentionInput{Physical: r.Physical}
	for _, l := range r.Lines {
		in.Lines = append(in.Lines, purchases.RetentionLineInput(l))
	}
	return in
}

// PurchaseResponse compra registrada.
type PurchaseResponse struct {
	ID             string            `json:"id"`
	SupplierID     string            `json:"supplier_id,omitempty"`
	Supplier       PartyDTO          `json:"supplier"`
	WarehouseID    string            `json:"warehouse_id"`
	Status         string            `json:"status"`
	SupplierNumber string            `json:"supplier_number"`
	IssueDate      time.Time         `json:"issue_date"`
	Totals         TotalsDTO         `json:"totals"`
	Lines          []DocumentLineDTO `json:"lines"`
	VoidReason     string            `json:"void_reason,omitempty"`
}

// FromPurchase arma la respuesta de una compra.
func FromPurchase(p *entity.Purchase) PurchaseResponse {
	out := PurchaseResponse{
		ID:             p.ID,
		SupplierID:     p.SupplierID,
		Supplier:       PartyDTO(p.Supplier),
		WarehouseID:    p.WarehouseID,
		Status:         p.Status,
		SupplierNumber: p.SupplierNumber,
		IssueDate:      p.IssueDate,
		Totals:         TotalsDTO(p.Totals),
		Lines:          make([]DocumentLineDTO, 0, len(p.Lines)),
		VoidReason:     p.VoidReason,
	}
	for _, l := range p.Lines {
		out.Lines = append(out.Lines, DocumentLineDTO{
			ID: l.ID, ProductID: l.ProductID, Description: l.Description, Quantity: l.Quantity,
			Price: l.UnitCost, Discount: l.Discount, Subtotal: l.Subtotal, Taxes: fromTaxes(l.Taxes),
		})
	}
	return out
}

// RetentionLineDTO impuesto retenido.
type RetentionLineDTO struct {
	TaxCode       string          `json:"tax_code"`
	RetentionCode string          `json:"retention_code"`
	TaxableBase   decimal.Decimal `json:"taxable_base"`
	Percentage    decimal.Decimal `json:"percentage"`
	Amount        decimal.Decimal `json:"amount"`
}

// RetentionResponse comprobante de retención emitido.
type RetentionResponse struct {
	ID             string             `json:"id"`
	PurchaseID     string             `json:"purchase_id"`
	DocumentNumber string             `json:"document_number"`
	IssueDate      time.Time          `json:"issue_date"`
	Lines          []RetentionLineDTO `json:"lines"`
	Total          decimal.Decimal    `json:"total"`
	Electronic     bool               `json:"electronic"`
	Status         string             `json:"status"`
	Task           *TaskResponse      `json:"task,omitempty"`
}

// FromRetention arma la respuesta de la retención; task es nil en emisión física.
func FromRetention(r *entity.Retention, task *entity.SRITask) RetentionResponse {
	out := RetentionResponse{
		ID:             r.ID,
		PurchaseID:     r.PurchaseID,
		DocumentNumber: r.DocumentNumber(),
		IssueDate:      r.IssueDate,
		Lines:          make([]RetentionLineDTO, 0, len(r.Lines)),
		Total:          r.Total,
		Electronic:     r.Electronic,
		Status:         r.Status,
		Task:           FromTask(task),
	}
	for _, l := range r.Lines {
		out.Lines = append(out.Lines, RetentionLineDTO(l))
	}
	return out
}
