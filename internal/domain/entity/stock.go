package entity

import (
	"github.com/shopspring/decimal"
)

// Stock cantidad disponible y costo promedio ponderado de un producto en una bodega.
// Se crea en la primera confirmación que lo toca y nunca se elimina.
type Stock struct {
	ProductID   string
	WarehouseID string
	Quantity    decimal.Decimal // 4 decimales, nunca negativo
	AverageCost decimal.Decimal // 4 decimales
	Active      bool
	AuditedRecord
}

// Value devuelve cantidad × costo promedio.
func (s *Stock) Value() decimal.Decimal {
	return s.Quantity.Mul(s.AverageCost)
}
