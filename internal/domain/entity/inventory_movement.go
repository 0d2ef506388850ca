package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento de inventario.
const (
	MovementTypeIngreso       = "INGRESO"
	MovementTypeEgreso        = "EGRESO"
	MovementTypeAjuste        = "AJUSTE"        // requiere motivo; cantidad con signo
	MovementTypeTransferencia = "TRANSFERENCIA" // entre bodegas
)

// Estados del movimiento. La anulación se modela con un AJUSTE compensatorio.
const (
	MovementStateBorrador   = "BORRADOR"
	MovementStateConfirmado = "CONFIRMADO"
)

// Prefijos de la referencia documental (ej. "VENTA:<id>").
const (
	RefPrefixVenta           = "VENTA:"
	RefPrefixCompra          = "COMPRA:"
	RefPrefixAnulacionVenta  = "ANULACION_VENTA:"
	RefPrefixAnulacionCompra = "ANULACION_COMPRA:"
)

// InventoryMovement movimiento de inventario con sus líneas.
// En BORRADOR no tiene efecto sobre el stock; solo la confirmación lo aplica.
type InventoryMovement struct {
	ID                     string
	Type                   string
	State                  string
	WarehouseID            string
	DestinationWarehouseID string // solo TRANSFERENCIA
	Reference              string
	AdjustmentReason       string
	AuthorizedBy           string
	Date                   time.Time
	ConfirmedAt            *time.Time
	Lines                  []MovementLine
	AuditedRecord
}

// MovementLine línea de un movimiento. Quantity es positiva salvo en AJUSTE, donde el signo indica la dirección.
// UnitCost en EGRESO/TRANSFERENCIA se fija al costo promedio vigente al confirmar.
type MovementLine struct {
	ID         string
	MovementID string
	ProductID  string
	Quantity   decimal.Decimal
	UnitCost   decimal.Decimal
}

// IsDraft indica si el movimiento aún no afecta stock.
func (m *InventoryMovement) IsDraft() bool {
	return m.State == MovementStateBorrador
}

// ReferenceID devuelve el id de la referencia si tiene el prefijo indicado.
func (m *InventoryMovement) ReferenceID(prefix string) (string, bool) {
	if !strings.HasPrefix(m.Reference, prefix) {
		return "", false
	}
	return strings.TrimPrefix(m.Reference, prefix), true
}

// Etiquetas del kardex para las entradas de transferencia.
const (
	KardexLabelVenta                = "VENTA"
	KardexLabelTransferenciaSalida  = "TRANSFERENCIA_SALIDA"
	KardexLabelTransferenciaEntrada = "TRANSFERENCIA_ENTRADA"
)

// KardexEntry efecto confirmado de un movimiento sobre un par (producto, bodega).
// Es append-only: la suma de Quantity reproduce la cantidad del stock.
type KardexEntry struct {
	ID          string
	MovementID  string
	ProductID   string
	WarehouseID string
	Type        string
	Label       string
	Reference   string
	Quantity    decimal.Decimal // con signo
	UnitCost    decimal.Decimal
	BalanceQty  decimal.Decimal // saldo posterior
	AverageCost decimal.Decimal // costo promedio posterior
	Seq         int64           // orden de aplicación
	Date        time.Time
}
