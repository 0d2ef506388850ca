package repository

import (
	"context"
	"fmt"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

// ProductRepository puerto de persistencia de productos (datos maestros).
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// Update modifica la configuración viva (incluidos impuestos). No toca snapshots existentes.
	Update(ctx context.Context, product *entity.Product) error
	ExistsAndActive(ctx context.Context, id string) (bool, error)
}

// WarehouseRepository puerto de persistencia de bodegas.
type WarehouseRepository interface {
	Create(ctx context.Context, warehouse *entity.Warehouse) error
	GetByID(ctx context.Context, id string) (*entity.Warehouse, error)
	ExistsAndActive(ctx context.Context, id string) (bool, error)
}

// TaxCatalog búsqueda de tarifas por código de impuesto y código de porcentaje.
type TaxCatalog interface {
	Lookup(ctx context.Context, taxCode, rateCode string) (*entity.TaxRate, error)
}

// ExistenceChecker verifica existencia y estado activo de una entidad referenciada.
type ExistenceChecker interface {
	ExistsAndActive(ctx context.Context, id string) (bool, error)
}

// ReferenceCheck par (campo, verificador) validado antes de persistir una entidad.
type ReferenceCheck struct {
	Field   string
	ID      string
	Checker ExistenceChecker
}

// CheckReferences valida cada referencia en orden; la primera inexistente o inactiva
// devuelve domain.ErrNotFound con el nombre del campo.
func CheckReferences(ctx context.Context, checks ...ReferenceCheck) error {
	for _, c := range checks {
		if c.ID == "" {
			return fmt.Errorf("%w: %s es obligatorio", domain.ErrInvalidInput, c.Field)
		}
		ok, err := c.Checker.ExistsAndActive(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("verificar %s: %w", c.Field, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s %s", domain.ErrNotFound, c.Field, c.ID)
		}
	}
	return nil
}
