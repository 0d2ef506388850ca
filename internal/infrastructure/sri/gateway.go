package sri

import (
	"context"
	"strings"
	"time"

	"github.com/jhoicas/osiris-api/internal/application/electronic"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

// SOAPGateway implementa electronic.Gateway sobre los web services offline.
//
// Recepción: RECIBIDA, o DEVUELTA con error 43 (clave ya registrada), se informan como RECIBIDA
// para que la cola consulte la autorización en el siguiente intento. Cualquier otra DEVUELTA es RECHAZADO.
// Autorización: sin autorizaciones o EN PROCESO sigue RECIBIDA; NO AUTORIZADO es RECHAZADO.
type SOAPGateway struct {
	client *SOAPClient
}

// NewSOAPGateway crea el gateway.
func NewSOAPGateway(client *SOAPClient) *SOAPGateway {
	return &SOAPGateway{client: client}
}

// Send transmite o consulta según el estado del documento.
func (g *SOAPGateway) Send(ctx context.Context, req electronic.SendRequest) (*electronic.GatewayResponse, error) {
	if req.AlreadyReceived {
		return g.authorization(ctx, req.AccessKey)
	}
	r, err := g.client.ValidarComprobante(ctx, []byte(req.SignedXML))
	if err != nil {
		return nil, err
	}
	msgs := r.Mensajes()
	switch r.Estado {
	case sri.EstadoRecibida:
		return &electronic.GatewayResponse{Status: electronic.GatewayRecibida, Message: joinMensajes(msgs)}, nil
	case sri.EstadoDevuelta:
		if hasIdentificador(msgs, sri.ErrorClaveRegistrada) {
			return &electronic.GatewayResponse{Status: electronic.GatewayRecibida, Message: joinMensajes(msgs)}, nil
		}
		return &electronic.GatewayResponse{Status: electronic.GatewayRechazado, Message: joinMensajes(msgs)}, nil
	}
	return &electronic.GatewayResponse{Status: r.Estado, Message: joinMensajes(msgs)}, nil
}

func (g *SOAPGateway) authorization(ctx context.Context, accessKey string) (*electronic.GatewayResponse, error) {
	r, err := g.client.AutorizacionComprobante(ctx, accessKey)
	if err != nil {
		return nil, err
	}
	if len(r.Autorizaciones) == 0 {
		return &electronic.GatewayResponse{Status: electronic.GatewayRecibida, Message: "autorización pendiente"}, nil
	}
	// La más reciente primero; un AUTORIZADO prevalece sobre rechazos anteriores.
	for _, a := range r.Autorizaciones {
		if a.Estado == sri.EstadoAutorizado {
			return &electronic.GatewayResponse{
				Status:              electronic.GatewayAutorizado,
				Message:             joinMensajes(a.Mensajes),
				AuthorizationNumber: a.NumeroAutorizacion,
				AuthorizedAt:        parseFechaAutorizacion(a.FechaAutorizacion),
				AuthorizedXML:       strings.TrimSpace(a.Comprobante),
			}, nil
		}
	}
	a := r.Autorizaciones[0]
	switch a.Estado {
	case sri.EstadoNoAutorizado:
		return &electronic.GatewayResponse{Status: electronic.GatewayRechazado, Message: joinMensajes(a.Mensajes)}, nil
	case sri.EstadoEnProceso:
		return &electronic.GatewayResponse{Status: electronic.GatewayRecibida, Message: joinMensajes(a.Mensajes)}, nil
	}
	return &electronic.GatewayResponse{Status: a.Estado, Message: joinMensajes(a.Mensajes)}, nil
}

func hasIdentificador(msgs []Mensaje, id string) bool {
	for _, m := range msgs {
		if strings.TrimSpace(m.Identificador) == id {
			return true
		}
	}
	return false
}

func joinMensajes(msgs []Mensaje) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.String())
	}
	return strings.Join(parts, "; ")
}

var fechaLayouts = []string{time.RFC3339, "2006-01-02T15:04:05.000-07:00", "02/01/2006 15:04:05"}

func parseFechaAutorizacion(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range fechaLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// DevGateway autoriza localmente sin llamar al SRI (desarrollo y demos).
// La primera llamada devuelve RECIBIDA y la consulta siguiente AUTORIZADO, como el flujo real.
type DevGateway struct {
	now func() time.Time
}

// NewDevGateway crea el gateway de desarrollo.
func NewDevGateway() *DevGateway {
	return &DevGateway{now: time.Now}
}

// Send simula recepción y autorización.
func (g *DevGateway) Send(_ context.Context, req electronic.SendRequest) (*electronic.GatewayResponse, error) {
	if !req.AlreadyReceived {
		return &electronic.GatewayResponse{Status: electronic.GatewayRecibida, Message: "recibida (desarrollo)"}, nil
	}
	at := g.now()
	return &electronic.GatewayResponse{
		Status:              electronic.GatewayAutorizado,
		Message:             "autorizado (desarrollo)",
		AuthorizationNumber: req.AccessKey,
		AuthorizedAt:        &at,
		AuthorizedXML:       req.SignedXML,
	}, nil
}

// UnsignedSigner genera el XML sin firma. Solo para usar junto a DevGateway.
type UnsignedSigner struct {
	builder *XMLBuilder
}

// NewUnsignedSigner crea el firmador de desarrollo.
func NewUnsignedSigner(builder *XMLBuilder) *UnsignedSigner {
	if builder == nil {
		builder = NewXMLBuilder()
	}
	return &UnsignedSigner{builder: builder}
}

// Sign devuelve el XML del comprobante tal cual.
func (s *UnsignedSigner) Sign(_ context.Context, docType string, payload []byte) (string, error) {
	raw, err := s.builder.Build(docType, payload)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

var (
	_ electronic.Gateway = (*SOAPGateway)(nil)
	_ electronic.Gateway = (*DevGateway)(nil)
	_ electronic.Signer  = (*XAdESSigner)(nil)
	_ electronic.Signer  = (*UnsignedSigner)(nil)
)
