package entity

import "github.com/shopspring/decimal"

// DocumentTotals totales de un documento comercial, todos cuantizados a 2 decimales.
// Los subtotales se agrupan por el código de porcentaje de IVA del snapshot de cada línea.
type DocumentTotals struct {
	Subtotal0        decimal.Decimal
	Subtotal5        decimal.Decimal
	Subtotal12       decimal.Decimal
	Subtotal15       decimal.Decimal
	SubtotalNoObjeto decimal.Decimal
	SubtotalExento   decimal.Decimal
	Subtotal         decimal.Decimal // suma de subtotales de línea (sin impuestos)
	TotalDiscount    decimal.Decimal
	TotalIVA         decimal.Decimal
	TotalICE         decimal.Decimal
	Total            decimal.Decimal
}

// PartySnapshot datos del cliente o proveedor copiados al documento.
type PartySnapshot struct {
	IdentificationType string // 04 RUC, 05 cédula, 06 pasaporte, 07 consumidor final
	Identification     string
	Name               string
	Email              string
	Address            string
}
