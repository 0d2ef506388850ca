package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/domain/tax"
)

// CostCalculator implementa la lógica de costo promedio ponderado (servicio de dominio).
// NuevoCosto = ((StockActual * CostoActual) + (CantEntrada * CostoEntrada)) / (StockActual + CantEntrada)
// Si la nueva cantidad no es positiva se toma el costo de entrada. Resultado a 4 decimales.
func CostCalculator(stockActual, costoActual, cantEntrada, costoEntrada decimal.Decimal) decimal.Decimal {
	sum := stockActual.Add(cantEntrada)
	if sum.LessThanOrEqual(decimal.Zero) {
		return tax.Q4(costoEntrada)
	}
	num := stockActual.Mul(costoActual).Add(cantEntrada.Mul(costoEntrada))
	return tax.Q4(num.Div(sum))
}
