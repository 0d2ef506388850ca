package tax

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Q2 cuantiza a 2 decimales con redondeo half-up (montos monetarios).
func Q2(d decimal.Decimal) decimal.Decimal {
	return roundHalfUp(d, 2)
}

// Q4 cuantiza a 4 decimales con redondeo half-up (cantidades, costos, tarifas).
func Q4(d decimal.Decimal) decimal.Decimal {
	return roundHalfUp(d, 4)
}

// roundHalfUp redondea alejándose de cero en el empate (.5), simétrico para negativos.
func roundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	if d.IsNegative() {
		return d.Neg().Round(places).Neg()
	}
	return d.Round(places)
}
