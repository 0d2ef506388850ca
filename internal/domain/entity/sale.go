package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de la venta.
const (
	SaleStatusBorrador = "BORRADOR"
	SaleStatusEmitida  = "EMITIDA"
	SaleStatusAnulada  = "ANULADA"
)

// Tipos de emisión.
const (
	EmissionTypeElectronica = "ELECTRONICA"
	EmissionTypeFisica      = "FISICA"
)

// Sale cabecera de venta (factura).
type Sale struct {
	ID            string
	CustomerID    string
	Customer      PartySnapshot
	WarehouseID   string
	Status        string
	EmissionType  string
	Establishment string
	EmissionPoint string
	Sequential    string
	IssueDate     time.Time
	Totals        DocumentTotals
	Lines         []SaleLine
	VoidReason    string
	Active        bool
	AuditedRecord
}

// SaleLine línea de venta con sus impuestos congelados.
type SaleLine struct {
	ID          string
	SaleID      string
	ProductID   string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	Subtotal    decimal.Decimal
	Taxes       []TaxSnapshot
}

// DocumentNumber devuelve el número 001-001-000000123.
func (s *Sale) DocumentNumber() string {
	return s.Establishment + "-" + s.EmissionPoint + "-" + s.Sequential
}

// Estados de cuentas por cobrar/pagar.
const (
	AccountStatusAbierta = "ABIERTA"
	AccountStatusPagada  = "PAGADA"
	AccountStatusAnulada = "ANULADA"
)

// Receivable cuenta por cobrar generada al emitir una venta.
type Receivable struct {
	ID       string
	SaleID   string
	Total    decimal.Decimal
	Paid     decimal.Decimal
	Withheld decimal.Decimal
	Balance  decimal.Decimal
	Status   string
	AuditedRecord
}

// HasApplications indica si ya tiene pagos o retenciones aplicados.
func (r *Receivable) HasApplications() bool {
	return r.Paid.IsPositive() || r.Withheld.IsPositive()
}

// Apply descuenta un pago o retención del saldo.
func (r *Receivable) Apply(amount decimal.Decimal, withholding bool) {
	if withholding {
		r.Withheld = r.Withheld.Add(amount)
	} else {
		r.Paid = r.Paid.Add(amount)
	}
	r.Balance = r.Balance.Sub(amount)
	if !r.Balance.IsPositive() {
		r.Status = AccountStatusPagada
	}
}
