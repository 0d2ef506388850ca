package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de la compra (flujo simplificado: se registra directamente).
const (
	PurchaseStatusRegistrada = "REGISTRADA"
	PurchaseStatusAnulada    = "ANULADA"
)

// Purchase cabecera de compra.
type Purchase struct {
	ID             string
	SupplierID     string
	Supplier       PartySnapshot
	WarehouseID    string
	Status         string
	SupplierNumber string // número de la factura del proveedor
	IssueDate      time.Time
	Totals         DocumentTotals
	Lines          []PurchaseLine
	VoidReason     string
	Active         bool
	AuditedRecord
}

// PurchaseLine línea de compra. UnitCost alimenta el costo promedio en el INGRESO.
type PurchaseLine struct {
	ID          string
	PurchaseID  string
	ProductID   string
	Description string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	Discount    decimal.Decimal
	Subtotal    decimal.Decimal
	Taxes       []TaxSnapshot
}

// Payable cuenta por pagar generada al registrar una compra.
type Payable struct {
	ID         string
	PurchaseID string
	Total      decimal.Decimal
	Paid       decimal.Decimal
	Withheld   decimal.Decimal
	Balance    decimal.Decimal
	Status     string
	AuditedRecord
}

// HasApplications indica si ya tiene pagos o retenciones aplicados.
func (p *Payable) HasApplications() bool {
	return p.Paid.IsPositive() || p.Withheld.IsPositive()
}

// Apply descuenta un pago o una retención emitida del saldo.
func (p *Payable) Apply(amount decimal.Decimal, withholding bool) {
	if withholding {
		p.Withheld = p.Withheld.Add(amount)
	} else {
		p.Paid = p.Paid.Add(amount)
	}
	p.Balance = p.Balance.Sub(amount)
	if !p.Balance.IsPositive() {
		p.Status = AccountStatusPagada
	}
}

// Estados de la retención.
const (
	RetentionStatusEmitida = "EMITIDA"
	RetentionStatusAnulada = "ANULADA"
)

// Códigos de impuesto a retener.
const (
	RetentionTaxRenta = "1"
	RetentionTaxIVA   = "2"
)

// Retention comprobante de retención emitido al proveedor.
type Retention struct {
	ID            string
	PurchaseID    string
	Establishment string
	EmissionPoint string
	Sequential    string
	IssueDate     time.Time
	Lines         []RetentionLine
	Total         decimal.Decimal
	Electronic    bool
	Status        string
	AuditedRecord
}

// RetentionLine impuesto retenido.
type RetentionLine struct {
	TaxCode       string // 1 renta, 2 IVA
	RetentionCode string // código de retención del catálogo SRI (ej. 312, 725)
	TaxableBase   decimal.Decimal
	Percentage    decimal.Decimal
	Amount        decimal.Decimal
}

// DocumentNumber devuelve el número 001-001-000000123.
func (r *Retention) DocumentNumber() string {
	return r.Establishment + "-" + r.EmissionPoint + "-" + r.Sequential
}
