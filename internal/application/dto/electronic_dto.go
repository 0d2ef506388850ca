package dto

import (
	"time"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

// TaskResponse tarea de la cola SRI. El payload no se expone.
type TaskResponse struct {
	ID           string     `json:"id"`
	EntityID     string     `json:"entity_id"`
	DocumentType string     `json:"document_type"`
	DocumentID   string     `json:"document_id"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	MaxAttempts  int        `json:"max_attempts"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// FromTask arma la respuesta de una tarea; nil devuelve nil.
func FromTask(t *entity.SRITask) *TaskResponse {
	if t == nil {
		return nil
	}
	return &TaskResponse{
		ID:           t.ID,
		EntityID:     t.EntityID,
		DocumentType: t.DocumentType,
		DocumentID:   t.DocumentID,
		Status:       t.Status,
		Attempts:     t.Attempts,
		MaxAttempts:  t.MaxAttempts,
		NextRetryAt:  t.NextRetryAt,
		LastError:    t.LastError,
	}
}

// DocumentResponse documento electrónico. El XML firmado se omite; el autorizado se incluye.
type DocumentResponse struct {
	ID                  string     `json:"id"`
	Type                string     `json:"type"`
	ReferenceID         string     `json:"reference_id"`
	AccessKey           string     `json:"access_key"`
	Status              string     `json:"status"`
	Attempts            int        `json:"attempts"`
	NextRetryAt         *time.Time `json:"next_retry_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	AuthorizationNumber string     `json:"authorization_number,omitempty"`
	AuthorizedAt        *time.Time `json:"authorized_at,omitempty"`
	AuthorizedXML       string     `json:"authorized_xml,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// FromDocument arma la respuesta de un documento electrónico.
func FromDocument(d *entity.ElectronicDocument) DocumentResponse {
	return DocumentResponse{
		ID:                  d.ID,
		Type:                d.Type,
		ReferenceID:         d.ReferenceID,
		AccessKey:           d.AccessKey,
		Status:              d.Status,
		Attempts:            d.Attempts,
		NextRetryAt:         d.NextRetryAt,
		LastError:           d.LastError,
		AuthorizationNumber: d.AuthorizationNumber,
		AuthorizedAt:        d.AuthorizedAt,
		AuthorizedXML:       d.AuthorizedXML,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

// HistoryEntryDTO fila del historial de estados.
type HistoryEntryDTO struct {
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
	ActorID    string    `json:"actor_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// FromHistory arma el historial en orden cronológico.
func FromHistory(rows []*entity.DocumentHistory) []HistoryEntryDTO {
	out := make([]HistoryEntryDTO, 0, len(rows))
	for _, h := range rows {
		out = append(out, HistoryEntryDTO{FromStatus: h.FromStatus, ToStatus: h.ToStatus, Reason: h.Reason, ActorID: h.ActorID, CreatedAt: h.CreatedAt})
	}
	return out
}

// SweepResponse resultado de POST /api/fe/sweep.
type SweepResponse struct {
	Processed int `json:"processed"`
}
