package entity

import (
	"github.com/shopspring/decimal"
)

// Product producto vendible o comprable. Taxes es la configuración tributaria viva:
// las líneas de documentos copian su valor en TaxSnapshot al momento de crearse.
type Product struct {
	ID     string
	Code   string
	Name   string
	Price  decimal.Decimal
	Taxes  []ProductTax
	Active bool
	AuditedRecord
}

// ProductTax referencia a una tarifa del catálogo tributario (código de impuesto + código de porcentaje).
type ProductTax struct {
	Kind     string
	TaxCode  string
	RateCode string
}

// TaxRate entrada del catálogo tributario.
type TaxRate struct {
	Kind        string
	TaxCode     string
	RateCode    string
	Rate        decimal.Decimal
	Description string
}
