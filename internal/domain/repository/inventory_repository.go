package repository

import (
	"context"
	"time"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

// StockRepository puerto de stock por producto+bodega. Usado dentro de transacciones.
type StockRepository interface {
	Get(ctx context.Context, productID, warehouseID string) (*entity.Stock, error)
	// GetForUpdate crea la fila en cero si no existe y la bloquea (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, productID, warehouseID string) (*entity.Stock, error)
	Update(ctx context.Context, stock *entity.Stock) error
	// List devuelve filas activas, opcionalmente de una sola bodega.
	List(ctx context.Context, warehouseID *string) ([]*entity.Stock, error)
}

// InventoryMovementRepository puerto de persistencia para movimientos y sus líneas.
type InventoryMovementRepository interface {
	Create(ctx context.Context, movement *entity.InventoryMovement) error
	GetByID(ctx context.Context, id string) (*entity.InventoryMovement, error)
	GetForUpdate(ctx context.Context, id string) (*entity.InventoryMovement, error)
	// Update persiste estado, motivo, autorizador y costos de línea.
	Update(ctx context.Context, movement *entity.InventoryMovement) error
	ListByReference(ctx context.Context, reference string) ([]*entity.InventoryMovement, error)
}

// KardexRepository libro append-only de efectos confirmados.
type KardexRepository interface {
	Append(ctx context.Context, entry *entity.KardexEntry) error
	// LastBefore devuelve la última entrada anterior a t, o nil si no hay.
	LastBefore(ctx context.Context, productID, warehouseID string, t time.Time) (*entity.KardexEntry, error)
	List(ctx context.Context, productID, warehouseID string, from, to time.Time) ([]*entity.KardexEntry, error)
}
