package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
)

var _ repository.ElectronicDocumentRepository = (*ElectronicDocumentRepo)(nil)

// ElectronicDocumentRepo documentos electrónicos SRI (nunca se eliminan).
type ElectronicDocumentRepo struct {
	q Querier
}

// NewElectronicDocumentRepository construye el adaptador de documentos electrónicos.
func NewElectronicDocumentRepository(q Querier) *ElectronicDocumentRepo {
	return &ElectronicDocumentRepo{q: q}
}

const documentColumns = `id, type, reference_id, access_key, status, attempts, next_retry_at, last_error, signed_xml,
	authorized_xml, authorization_number, authorized_at, active, ` + auditColumns

func scanDocument(row pgx.Row) (*entity.ElectronicDocument, error) {
	var d entity.ElectronicDocument
	err := row.Scan(concat([]any{
		&d.ID, &d.Type, &d.ReferenceID, &d.AccessKey, &d.Status, &d.Attempts, &d.NextRetryAt, &d.LastError, &d.SignedXML,
		&d.AuthorizedXML, &d.AuthorizationNumber, &d.AuthorizedAt, &d.Active,
	}, auditDest(&d.AuditedRecord))...)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create persiste el documento. Un segundo documento activo para (tipo, referencia) devuelve ErrDuplicate.
func (r *ElectronicDocumentRepo) Create(ctx context.Context, d *entity.ElectronicDocument) error {
	_, err := r.q.Exec(ctx, `INSERT INTO electronic_documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		concat([]any{
			d.ID, d.Type, d.ReferenceID, d.AccessKey, d.Status, d.Attempts, d.NextRetryAt, d.LastError, d.SignedXML,
			d.AuthorizedXML, d.AuthorizationNumber, d.AuthorizedAt, d.Active,
		}, auditArgs(d.AuditedRecord))...)
	return wrap("insert electronic document", err)
}

// GetByID obtiene un documento por ID.
func (r *ElectronicDocumentRepo) GetByID(ctx context.Context, id string) (*entity.ElectronicDocument, error) {
	d, err := scanDocument(r.q.QueryRow(ctx, `SELECT `+documentColumns+` FROM electronic_documents WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get electronic document", err)
	}
	return d, nil
}

// GetForUpdate obtiene y bloquea el documento.
func (r *ElectronicDocumentRepo) GetForUpdate(ctx context.Context, id string) (*entity.ElectronicDocument, error) {
	d, err := scanDocument(r.q.QueryRow(ctx, `SELECT `+documentColumns+` FROM electronic_documents WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrap("get electronic document for update", err)
	}
	return d, nil
}

// GetByReference devuelve el documento activo de (tipo, referencia).
func (r *ElectronicDocumentRepo) GetByReference(ctx context.Context, docType, referenceID string) (*entity.ElectronicDocument, error) {
	d, err := scanDocument(r.q.QueryRow(ctx, `
		SELECT `+documentColumns+` FROM electronic_documents
		WHERE type = $1 AND reference_id = $2 AND active`, docType, referenceID))
	if err != nil {
		return nil, wrap("get electronic document by reference", err)
	}
	return d, nil
}

// Update persiste estado, intentos, XML y datos de autorización.
func (r *ElectronicDocumentRepo) Update(ctx context.Context, d *entity.ElectronicDocument) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE electronic_documents SET status = $2, attempts = $3, next_retry_at = $4, last_error = $5, signed_xml = $6,
			authorized_xml = $7, authorization_number = $8, authorized_at = $9, active = $10, updated_at = $11, updated_by = $12
		WHERE id = $1`,
		d.ID, d.Status, d.Attempts, d.NextRetryAt, d.LastError, d.SignedXML,
		d.AuthorizedXML, d.AuthorizationNumber, d.AuthorizedAt, d.Active, d.UpdatedAt, d.UpdatedBy)
	return mustAffect("update electronic document", tag, err)
}

// ListDue documentos pendientes de barrido, los más antiguos primero. limit <= 0 no limita.
func (r *ElectronicDocumentRepo) ListDue(ctx context.Context, statuses []string, maxAttempts int, now time.Time, limit int) ([]*entity.ElectronicDocument, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+documentColumns+` FROM electronic_documents
		WHERE active AND status = ANY($1) AND attempts < $2 AND (next_retry_at IS NULL OR next_retry_at <= $3)
		ORDER BY created_at
		LIMIT NULLIF($4::int, 0)`, statuses, maxAttempts, now, max(limit, 0))
	if err != nil {
		return nil, wrap("list due documents", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.ElectronicDocument, error) {
		return scanDocument(row)
	})
}

var _ repository.DocumentHistoryRepository = (*DocumentHistoryRepo)(nil)

// DocumentHistoryRepo historial append-only de estados.
type DocumentHistoryRepo struct {
	q Querier
}

// NewDocumentHistoryRepository construye el adaptador del historial.
func NewDocumentHistoryRepository(q Querier) *DocumentHistoryRepo {
	return &DocumentHistoryRepo{q: q}
}

// Append agrega una fila al historial.
func (r *DocumentHistoryRepo) Append(ctx context.Context, h *entity.DocumentHistory) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO document_history (id, document_id, from_status, to_status, reason, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.DocumentID, h.FromStatus, h.ToStatus, h.Reason, h.ActorID, h.CreatedAt)
	return wrap("append document history", err)
}

// ListByDocument devuelve el historial en orden de inserción.
func (r *DocumentHistoryRepo) ListByDocument(ctx context.Context, documentID string) ([]*entity.DocumentHistory, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, document_id, from_status, to_status, reason, actor_id, created_at
		FROM document_history WHERE document_id = $1 ORDER BY seq`, documentID)
	if err != nil {
		return nil, wrap("list document history", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.DocumentHistory, error) {
		var h entity.DocumentHistory
		err := row.Scan(&h.ID, &h.DocumentID, &h.FromStatus, &h.ToStatus, &h.Reason, &h.ActorID, &h.CreatedAt)
		return &h, err
	})
}

var _ repository.SRITaskRepository = (*SRITaskRepo)(nil)

// SRITaskRepo cola de tareas SRI.
type SRITaskRepo struct {
	q Querier
}

// NewSRITaskRepository construye el adaptador de la cola.
func NewSRITaskRepository(q Querier) *SRITaskRepo {
	return &SRITaskRepo{q: q}
}

const taskColumns = `id, entity_id, document_type, document_id, status, attempts, max_attempts, next_retry_at, locked_at,
	last_error, payload, payload_version, active, ` + auditColumns

const activeTaskFilter = `active AND status IN ('PENDIENTE', 'PROCESANDO', 'REINTENTO_PROGRAMADO')`

func scanTask(row pgx.Row) (*entity.SRITask, error) {
	var t entity.SRITask
	err := row.Scan(concat([]any{
		&t.ID, &t.EntityID, &t.DocumentType, &t.DocumentID, &t.Status, &t.Attempts, &t.MaxAttempts, &t.NextRetryAt,
		&t.LockedAt, &t.LastError, &t.Payload, &t.PayloadVersion, &t.Active,
	}, auditDest(&t.AuditedRecord))...)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserta la tarea. El índice único parcial sobre las tareas activas hace que un
// encolado concurrente no inserte nada; eso se informa como ErrDuplicate sin abortar la tx.
func (r *SRITaskRepo) Create(ctx context.Context, t *entity.SRITask) error {
	tag, err := r.q.Exec(ctx, `INSERT INTO sri_tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT DO NOTHING`,
		concat([]any{
			t.ID, t.EntityID, t.DocumentType, t.DocumentID, t.Status, t.Attempts, t.MaxAttempts, t.NextRetryAt,
			t.LockedAt, t.LastError, t.Payload, t.PayloadVersion, t.Active,
		}, auditArgs(t.AuditedRecord))...)
	if err != nil {
		return wrap("insert sri task", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert sri task %s/%s: %w", t.DocumentType, t.EntityID, domain.ErrDuplicate)
	}
	return nil
}

// GetByID obtiene una tarea por ID.
func (r *SRITaskRepo) GetByID(ctx context.Context, id string) (*entity.SRITask, error) {
	t, err := scanTask(r.q.QueryRow(ctx, `SELECT `+taskColumns+` FROM sri_tasks WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get sri task", err)
	}
	return t, nil
}

// GetForUpdate obtiene y bloquea la tarea (reclamo del worker).
func (r *SRITaskRepo) GetForUpdate(ctx context.Context, id string) (*entity.SRITask, error) {
	t, err := scanTask(r.q.QueryRow(ctx, `SELECT `+taskColumns+` FROM sri_tasks WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrap("get sri task for update", err)
	}
	return t, nil
}

// FindActive devuelve la tarea no terminal de (entidad, tipo) o nil.
func (r *SRITaskRepo) FindActive(ctx context.Context, entityID, docType string) (*entity.SRITask, error) {
	return r.first(ctx, `SELECT `+taskColumns+` FROM sri_tasks
		WHERE entity_id = $1 AND document_type = $2 AND `+activeTaskFilter+` LIMIT 1`, entityID, docType)
}

// LatestByDocument devuelve la tarea más reciente del documento o nil.
func (r *SRITaskRepo) LatestByDocument(ctx context.Context, documentID string) (*entity.SRITask, error) {
	return r.first(ctx, `SELECT `+taskColumns+` FROM sri_tasks
		WHERE document_id = $1 ORDER BY seq DESC LIMIT 1`, documentID)
}

func (r *SRITaskRepo) first(ctx context.Context, query string, args ...any) (*entity.SRITask, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("find sri task", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.SRITask, error) {
		return scanTask(row)
	})
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// Update persiste estado, intentos, reintento, lease y último error.
func (r *SRITaskRepo) Update(ctx context.Context, t *entity.SRITask) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE sri_tasks SET status = $2, attempts = $3, max_attempts = $4, next_retry_at = $5, locked_at = $6,
			last_error = $7, active = $8, updated_at = $9, updated_by = $10
		WHERE id = $1`,
		t.ID, t.Status, t.Attempts, t.MaxAttempts, t.NextRetryAt, t.LockedAt,
		t.LastError, t.Active, t.UpdatedAt, t.UpdatedBy)
	return mustAffect("update sri task", tag, err)
}

var _ repository.AuditLogRepository = (*AuditLogRepo)(nil)

// AuditLogRepo sumidero append-only de auditoría.
type AuditLogRepo struct {
	q Querier
}

// NewAuditLogRepository construye el adaptador de auditoría.
func NewAuditLogRepository(q Querier) *AuditLogRepo {
	return &AuditLogRepo{q: q}
}

// Append agrega una fila de auditoría.
func (r *AuditLogRepo) Append(ctx context.Context, l *entity.AuditLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO audit_logs (id, entity, entity_id, action, before_state, after_state, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.Entity, l.EntityID, l.Action, l.BeforeState, l.AfterState, l.Actor, l.Detail, l.CreatedAt)
	return wrap("append audit log", err)
}

// ListByEntity devuelve la auditoría de una entidad en orden de inserción.
func (r *AuditLogRepo) ListByEntity(ctx context.Context, entityName, entityID string) ([]*entity.AuditLog, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, entity, entity_id, action, before_state, after_state, actor, detail, created_at
		FROM audit_logs WHERE entity = $1 AND entity_id = $2 ORDER BY seq`, entityName, entityID)
	if err != nil {
		return nil, wrap("list audit logs", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*entity.AuditLog, error) {
		var l entity.AuditLog
		err := row.Scan(&l.ID, &l.Entity, &l.EntityID, &l.Action, &l.BeforeState, &l.AfterState, &l.Actor, &l.Detail, &l.CreatedAt)
		return &l, err
	})
}
