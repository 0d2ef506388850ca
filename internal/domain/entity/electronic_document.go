package entity

import (
	"fmt"
	"time"

	"github.com/jhoicas/osiris-api/internal/domain"
)

// Tipos de documento electrónico.
const (
	DocumentTypeFactura   = "FACTURA"
	DocumentTypeRetencion = "RETENCION"
)

// Estados del documento electrónico frente al SRI.
const (
	DocStatusEnCola     = "EN_COLA"
	DocStatusFirmado    = "FIRMADO"
	DocStatusRecibido   = "RECIBIDO"
	DocStatusAutorizado = "AUTORIZADO"
	DocStatusRechazado  = "RECHAZADO"
	DocStatusError      = "ERROR"
)

var docTransitions = map[string][]string{
	DocStatusEnCola:   {DocStatusFirmado, DocStatusError},
	DocStatusFirmado:  {DocStatusRecibido, DocStatusAutorizado, DocStatusRechazado, DocStatusError},
	DocStatusRecibido: {DocStatusAutorizado, DocStatusRechazado, DocStatusError},
}

// ElectronicDocument sobre SRI de una factura o retención. Solo el worker lo actualiza.
type ElectronicDocument struct {
	ID                  string
	Type                string
	ReferenceID         string // id de la venta o retención
	AccessKey           string // clave de acceso de 49 dígitos
	Status              string
	Attempts            int
	NextRetryAt         *time.Time
	LastError           string
	SignedXML           string
	AuthorizedXML       string // inmutable una vez AUTORIZADO
	AuthorizationNumber string
	AuthorizedAt        *time.Time
	Active              bool
	AuditedRecord
}

// IsTerminal indica si el documento ya no admite transiciones.
func (d *ElectronicDocument) IsTerminal() bool {
	_, ok := docTransitions[d.Status]
	return !ok
}

// CanTransition indica si el paso al estado indicado está permitido.
func (d *ElectronicDocument) CanTransition(to string) bool {
	for _, s := range docTransitions[d.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionTo cambia el estado y devuelve la fila de historial correspondiente.
func (d *ElectronicDocument) TransitionTo(to, reason, actor string, now time.Time) (*DocumentHistory, error) {
	if !d.CanTransition(to) {
		return nil, fmt.Errorf("%w: documento %s: %s -> %s", domain.ErrInvalidState, d.ID, d.Status, to)
	}
	h := &DocumentHistory{
		DocumentID: d.ID,
		FromStatus: d.Status,
		ToStatus:   to,
		Reason:     reason,
		ActorID:    actor,
		CreatedAt:  now,
	}
	d.Status = to
	d.Touch(actor, now)
	return h, nil
}

// Authorize fija el XML autorizado. Solo puede hacerse una vez.
func (d *ElectronicDocument) Authorize(xml, number string, at time.Time) error {
	if d.AuthorizedXML != "" {
		return fmt.Errorf("documento %s ya tiene XML autorizado", d.ID)
	}
	d.AuthorizedXML = xml
	d.AuthorizationNumber = number
	d.AuthorizedAt = &at
	d.LastError = ""
	return nil
}

// DocumentHistory fila append-only del historial de estados de un documento.
type DocumentHistory struct {
	ID         string
	DocumentID string
	FromStatus string
	ToStatus   string
	Reason     string
	ActorID    string
	CreatedAt  time.Time
}
