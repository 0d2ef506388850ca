package electronic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

// RIDEGenerator genera la representación impresa (PDF) de un comprobante autorizado.
type RIDEGenerator interface {
	Generate(ctx context.Context, doc *entity.ElectronicDocument, payload []byte) ([]byte, error)
}

// Attachment adjunto de correo.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Mail mensaje al receptor del comprobante.
type Mail struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Mailer envía correos.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// Archive almacenamiento de comprobantes autorizados.
type Archive interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}

// DeliveryHandler efectos de autorización: RIDE, archivo del XML/PDF y correo al receptor.
// Cada dependencia es opcional. Un error en un paso no impide los siguientes.
type DeliveryHandler struct {
	ride    RIDEGenerator
	mailer  Mailer
	archive Archive
	log     zerolog.Logger
}

// NewDeliveryHandler construye el handler; cualquier dependencia puede ser nil.
func NewDeliveryHandler(ride RIDEGenerator, mailer Mailer, archive Archive, log zerolog.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		ride:    ride,
		mailer:  mailer,
		archive: archive,
		log:     log.With().Str("component", "entrega_comprobantes").Logger(),
	}
}

// OnAuthorized implementa AuthorizedHandler.
func (h *DeliveryHandler) OnAuthorized(ctx context.Context, doc *entity.ElectronicDocument, payload []byte) error {
	var errs []error

	var pdf []byte
	if h.ride != nil {
		var err error
		pdf, err = h.ride.Generate(ctx, doc, payload)
		if err != nil {
			errs = append(errs, fmt.Errorf("generar RIDE: %w", err))
		}
	}

	base := ArchiveKey(doc)
	if h.archive != nil {
		if err := h.archive.Put(ctx, base+".xml", "application/xml", []byte(doc.AuthorizedXML)); err != nil {
			errs = append(errs, fmt.Errorf("archivar XML: %w", err))
		}
		if len(pdf) > 0 {
			if err := h.archive.Put(ctx, base+".pdf", "application/pdf", pdf); err != nil {
				errs = append(errs, fmt.Errorf("archivar RIDE: %w", err))
			}
		}
	}

	if h.mailer != nil {
		to, name := recipient(doc.Type, payload)
		if to == "" {
			h.log.Info().Str("documento_id", doc.ID).Msg("receptor sin correo, no se envía el comprobante")
		} else if err := h.mailer.Send(ctx, h.mail(doc, to, name, pdf)); err != nil {
			errs = append(errs, fmt.Errorf("enviar correo: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	h.log.Info().Str("documento_id", doc.ID).Str("clave_acceso", doc.AccessKey).Msg("comprobante entregado")
	return nil
}

func (h *DeliveryHandler) mail(doc *entity.ElectronicDocument, to, name string, pdf []byte) Mail {
	label := "Factura"
	if doc.Type == entity.DocumentTypeRetencion {
		label = "Comprobante de retención"
	}
	m := Mail{
		To:      to,
		Subject: fmt.Sprintf("%s electrónica %s", label, doc.AccessKey),
		Body: fmt.Sprintf("Estimado(a) %s:\n\nAdjuntamos su %s electrónica autorizada por el SRI.\n"+
			"Número de autorización: %s\n", name, strings.ToLower(label), doc.AuthorizationNumber),
		Attachments: []Attachment{{Name: doc.AccessKey + ".xml", ContentType: "application/xml", Data: []byte(doc.AuthorizedXML)}},
	}
	if len(pdf) > 0 {
		m.Attachments = append(m.Attachments, Attachment{Name: doc.AccessKey + ".pdf", ContentType: "application/pdf", Data: pdf})
	}
	return m
}

// ArchiveKey ruta del comprobante en el archivo: comprobantes/<tipo>/<aaaa>/<mm>/<clave>.
func ArchiveKey(doc *entity.ElectronicDocument) string {
	at := doc.CreatedAt
	if doc.AuthorizedAt != nil {
		at = *doc.AuthorizedAt
	}
	return fmt.Sprintf("comprobantes/%s/%s/%s", doc.Type, at.Format("2006/01"), doc.AccessKey)
}

func recipient(docType string, payload []byte) (email, name string) {
	switch docType {
	case entity.DocumentTypeFactura:
		if p, err := sri.DecodeFactura(payload); err == nil {
			return p.Comprador.Email, p.Comprador.RazonSocial
		}
	case entity.DocumentTypeRetencion:
		if p, err := sri.DecodeRetencion(payload); err == nil {
			return p.Sujeto.Email, p.Sujeto.RazonSocial
		}
	}
	return "", ""
}
