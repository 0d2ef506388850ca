package repository

import (
	"context"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

// SaleRepository puerto de ventas. Create persiste líneas y snapshots; no existe actualización de snapshots.
type SaleRepository interface {
	Create(ctx context.Context, sale *entity.Sale) error
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Sale, error)
	// UpdateHeader persiste estado, secuencial, fecha y motivo de anulación.
	UpdateHeader(ctx context.Context, sale *entity.Sale) error
	// DeactivateTaxes desactiva los snapshots de la venta (solo al anular).
	DeactivateTaxes(ctx context.Context, saleID string) error
}

// ReceivableRepository puerto de cuentas por cobrar.
type ReceivableRepository interface {
	Create(ctx context.Context, r *entity.Receivable) error
	GetBySaleID(ctx context.Context, saleID string) (*entity.Receivable, error)
	GetBySaleIDForUpdate(ctx context.Context, saleID string) (*entity.Receivable, error)
	Update(ctx context.Context, r *entity.Receivable) error
}

// PurchaseRepository puerto de compras.
type PurchaseRepository interface {
	Create(ctx context.Context, purchase *entity.Purchase) error
	GetByID(ctx context.Context, id string) (*entity.Purchase, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Purchase, error)
	UpdateHeader(ctx context.Context, purchase *entity.Purchase) error
	DeactivateTaxes(ctx context.Context, purchaseID string) error
}

// PayableRepository puerto de cuentas por pagar.
type PayableRepository interface {
	Create(ctx context.Context, p *entity.Payable) error
	GetByPurchaseID(ctx context.Context, purchaseID string) (*entity.Payable, error)
	GetByPurchaseIDForUpdate(ctx context.Context, purchaseID string) (*entity.Payable, error)
	Update(ctx context.Context, p *entity.Payable) error
}

// RetentionRepository puerto de comprobantes de retención.
type RetentionRepository interface {
	Create(ctx context.Context, r *entity.Retention) error
	GetByID(ctx context.Context, id string) (*entity.Retention, error)
	ListByPurchase(ctx context.Context, purchaseID string) ([]*entity.Retention, error)
}

// SequenceRepository secuenciales por establecimiento/punto de emisión/tipo.
type SequenceRepository interface {
	Next(ctx context.Context, key string) (int64, error)
}
