package repository

import (
	"context"
	"time"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

// ElectronicDocumentRepository puerto de documentos electrónicos (nunca se eliminan).
type ElectronicDocumentRepository interface {
	Create(ctx context.Context, doc *entity.ElectronicDocument) error
	GetByID(ctx context.Context, id string) (*entity.ElectronicDocument, error)
	GetForUpdate(ctx context.Context, id string) (*entity.ElectronicDocument, error)
	// GetByReference devuelve el documento activo de (tipo, referencia) o ErrNotFound.
	GetByReference(ctx context.Context, docType, referenceID string) (*entity.ElectronicDocument, error)
	Update(ctx context.Context, doc *entity.ElectronicDocument) error
	// ListDue documentos en los estados dados con intentos < maxAttempts y next_retry_at <= now (o nulo).
	ListDue(ctx context.Context, statuses []string, maxAttempts int, now time.Time, limit int) ([]*entity.ElectronicDocument, error)
}

// DocumentHistoryRepository historial append-only.
type DocumentHistoryRepository interface {
	Append(ctx context.Context, h *entity.DocumentHistory) error
	ListByDocument(ctx context.Context, documentID string) ([]*entity.DocumentHistory, error)
}

// SRITaskRepository puerto de la cola SRI.
type SRITaskRepository interface {
	// Create falla con domain.ErrDuplicate si ya existe una tarea activa para (entidad, tipo).
	Create(ctx context.Context, task *entity.SRITask) error
	GetByID(ctx context.Context, id string) (*entity.SRITask, error)
	GetForUpdate(ctx context.Context, id string) (*entity.SRITask, error)
	// FindActive devuelve la tarea no terminal de (entidad, tipo) o nil.
	FindActive(ctx context.Context, entityID, docType string) (*entity.SRITask, error)
	// LatestByDocument devuelve la tarea más reciente del documento o nil.
	LatestByDocument(ctx context.Context, documentID string) (*entity.SRITask, error)
	Update(ctx context.Context, task *entity.SRITask) error
}

// AuditLogRepository sumidero append-only de auditoría.
type AuditLogRepository interface {
	Append(ctx context.Context, log *entity.AuditLog) error
	ListByEntity(ctx context.Context, entityName, entityID string) ([]*entity.AuditLog, error)
}
