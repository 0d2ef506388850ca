package entity

import "time"

// AuditedRecord campos de auditoría embebidos por valor en cada entidad.
type AuditedRecord struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
	UpdatedBy string
}

// NewAuditedRecord inicializa los campos de auditoría para una entidad nueva.
func NewAuditedRecord(actor string, now time.Time) AuditedRecord {
	return AuditedRecord{CreatedAt: now, UpdatedAt: now, CreatedBy: actor, UpdatedBy: actor}
}

// Touch registra una modificación.
func (a *AuditedRecord) Touch(actor string, now time.Time) {
	a.UpdatedAt = now
	a.UpdatedBy = actor
}

// AuditLog registro append-only de auditoría. Nunca se actualiza ni se elimina.
type AuditLog struct {
	ID          string
	Entity      string
	EntityID    string
	Action      string
	BeforeState string
	AfterState  string
	Actor       string
	Detail      string
	CreatedAt   time.Time
}
