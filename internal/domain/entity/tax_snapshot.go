package entity

import (
	"github.com/shopspring/decimal"
)

// Tipos de impuesto soportados en las líneas de venta y compra.
const (
	TaxKindIVA = "IVA"
	TaxKindICE = "ICE"
)

// Códigos de impuesto del SRI (tabla 16 de la ficha técnica).
const (
	SRITaxCodeIVA = "2"
	SRITaxCodeICE = "3"
)

// Códigos de porcentaje de IVA (tabla 17).
const (
	IVARateCode0        = "0"
	IVARateCode12       = "2"
	IVARateCode14       = "3"
	IVARateCode15       = "4"
	IVARateCode5        = "5"
	IVARateCodeNoObjeto = "6"
	IVARateCodeExento   = "7"
	IVARateCode8        = "8"
)

// TaxSnapshot impuesto aplicado a una línea de venta o compra, congelado al crear la línea.
// Es una copia puntual: cambios posteriores en la configuración del producto no lo afectan.
// Solo se desactiva (Active=false) cuando se anula el documento padre.
type TaxSnapshot struct {
	ID          string
	LineID      string
	Kind        string          // IVA | ICE
	TaxCode     string          // código SRI del impuesto
	RateCode    string          // código SRI del porcentaje
	Rate        decimal.Decimal // porcentaje, 4 decimales (ej. 15.0000)
	TaxableBase decimal.Decimal // 2 decimales
	Amount      decimal.Decimal // 2 decimales
	Active      bool
	AuditedRecord
}
