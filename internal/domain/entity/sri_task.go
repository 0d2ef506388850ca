package entity

import (
	"fmt"
	"time"

	"github.com/jhoicas/osiris-api/internal/domain"
)

// Estados de la tarea de cola SRI.
const (
	TaskStatusPendiente           = "PENDIENTE"
	TaskStatusProcesando          = "PROCESANDO"
	TaskStatusReintentoProgramado = "REINTENTO_PROGRAMADO"
	TaskStatusCompletado          = "COMPLETADO"
	TaskStatusFallido             = "FALLIDO"
)

// DefaultTaskMaxAttempts intentos por defecto antes de FALLIDO.
const DefaultTaskMaxAttempts = 3

var taskTransitions = map[string][]string{
	TaskStatusPendiente:           {TaskStatusProcesando},
	TaskStatusProcesando:          {TaskStatusReintentoProgramado, TaskStatusCompletado, TaskStatusFallido},
	TaskStatusReintentoProgramado: {TaskStatusProcesando},
}

// SRITask unidad de trabajo con control de intentos para transmitir un documento al SRI.
// Por cada (EntityID, DocumentType) existe como máximo una tarea no terminal.
type SRITask struct {
	ID             string
	EntityID       string
	DocumentType   string
	DocumentID     string
	Status         string
	Attempts       int
	MaxAttempts    int
	NextRetryAt    *time.Time
	LockedAt       *time.Time // marca del último reclamo (PROCESANDO)
	LastError      string
	Payload        []byte // JSON del comprobante
	PayloadVersion int
	Active         bool
	AuditedRecord
}

// IsTerminal COMPLETADO y FALLIDO son absorbentes.
func (t *SRITask) IsTerminal() bool {
	return t.Status == TaskStatusCompletado || t.Status == TaskStatusFallido
}

// AttemptsLeft indica si quedan intentos.
func (t *SRITask) AttemptsLeft() bool {
	return t.Attempts < t.MaxAttempts
}

// TransitionTo cambia el estado si la tabla de transiciones lo permite.
func (t *SRITask) TransitionTo(to string, now time.Time) error {
	for _, s := range taskTransitions[t.Status] {
		if s == to {
			t.Status = to
			t.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: tarea %s: %s -> %s", domain.ErrInvalidState, t.ID, t.Status, to)
}
