package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

// Balance estado de un par (producto, bodega) durante la reproducción del kardex.
type Balance struct {
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
}

// Apply aplica una cantidad con signo al saldo. Las entradas recalculan el costo promedio;
// las salidas lo mantienen.
func (b Balance) Apply(qty, unitCost decimal.Decimal) Balance {
	if qty.IsPositive() {
		return Balance{
			Quantity:    b.Quantity.Add(qty),
			AverageCost: CostCalculator(b.Quantity, b.AverageCost, qty, unitCost),
		}
	}
	return Balance{Quantity: b.Quantity.Add(qty), AverageCost: b.AverageCost}
}

// Replay reproduce las entradas en orden y devuelve el saldo final partiendo de opening.
func Replay(opening Balance, entries []*entity.KardexEntry) Balance {
	b := opening
	for _, e := range entries {
		b = b.Apply(e.Quantity, e.UnitCost)
	}
	return b
}

// LabelFor etiqueta del kardex: las salidas con referencia VENTA:<id> se rotulan VENTA.
func LabelFor(movementType, reference string, outgoing bool) string {
	if len(reference) > len(entity.RefPrefixVenta) && reference[:len(entity.RefPrefixVenta)] == entity.RefPrefixVenta {
		return entity.KardexLabelVenta
	}
	if movementType == entity.MovementTypeTransferencia {
		if outgoing {
			return entity.KardexLabelTransferenciaSalida
		}
		return entity.KardexLabelTransferenciaEntrada
	}
	return movementType
}
