package commercial

import (
	"context"

	"github.com/jhoicas/osiris-api/internal/application/inventory"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
)

// InventoryPort motor de movimientos usado dentro de la transacción del documento comercial.
type InventoryPort interface {
	CreateDraftInTx(ctx context.Context, r repository.Repos, actor string, in inventory.DraftInput) (*entity.InventoryMovement, error)
	ConfirmInTx(ctx context.Context, r repository.Repos, actor string, mov *entity.InventoryMovement) error
}

// Enqueuer cola FE-EC; encola en la misma transacción que emite el documento.
type Enqueuer interface {
	EnqueueInTx(ctx context.Context, r repository.Repos, actor, docType, entityID string) (*entity.SRITask, error)
}
