// Package electronic implementa la cola de facturación electrónica SRI (FE-EC):
// encolado idempotente, máquina de estados de tarea y documento, y el barrido periódico.
package electronic

import (
	"context"
	"time"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

// Estados normalizados que devuelve el gateway.
const (
	GatewayRecibida   = "RECIBIDA"
	GatewayRecibido   = "RECIBIDO"
	GatewayAutorizado = "AUTORIZADO"
	GatewayRechazado  = "RECHAZADO"
)

// SendRequest comprobante firmado listo para transmitir.
type SendRequest struct {
	DocumentType string
	AccessKey    string
	SignedXML    string
	// AlreadyReceived indica que el SRI ya lo recibió: solo se consulta la autorización.
	AlreadyReceived bool
}

// GatewayResponse respuesta del SRI.
type GatewayResponse struct {
	Status              string
	Message             string
	AuthorizationNumber string
	AuthorizedAt        *time.Time
	AuthorizedXML       string
}

// Gateway cliente del SRI. Las fallas de red se devuelven envolviendo domain.ErrTransientGateway
// (o como context.DeadlineExceeded / net.Error).
type Gateway interface {
	Send(ctx context.Context, req SendRequest) (*GatewayResponse, error)
}

// Signer construye el XML del comprobante a partir del payload y lo firma (XAdES-BES).
type Signer interface {
	Sign(ctx context.Context, docType string, payload []byte) (string, error)
}

// AuthorizedHandler efecto secundario al autorizar (correo con RIDE, archivo).
type AuthorizedHandler interface {
	OnAuthorized(ctx context.Context, doc *entity.ElectronicDocument, payload []byte) error
}

// Executor ejecuta trabajo fuera de la transacción y de la petición que lo originó.
type Executor interface {
	Go(fn func(ctx context.Context))
}

// PayloadBuilder arma el payload versionado de un tipo de documento dentro de la transacción de encolado.
type PayloadBuilder interface {
	DocumentType() string
	Build(ctx context.Context, r repository.Repos, entityID string, issuer Issuer) (*BuiltPayload, error)
}

// BuiltPayload payload serializado con su clave de acceso.
type BuiltPayload struct {
	AccessKey string
	Data      []byte
	Version   int
}

// Issuer datos del emisor y ambiente con que se generan las claves de acceso.
type Issuer struct {
	Emisor   sri.Emisor
	Ambiente string
	// NumericCode genera el código numérico de la clave; nil usa sri.NuevoCodigoNumerico.
	NumericCode func() string
}

func (i Issuer) accessKey(tipo string, fecha time.Time, estab, pto, secuencial string) (string, error) {
	code := sri.NuevoCodigoNumerico
	if i.NumericCode != nil {
		code = i.NumericCode
	}
	return sri.ClaveAcceso{
		FechaEmision:    fecha,
		TipoComprobante: tipo,
		RUC:             i.Emisor.RUC,
		Ambiente:        i.Ambiente,
		Establecimiento: estab,
		PuntoEmision:    pto,
		Secuencial:      secuencial,
		CodigoNumerico:  code(),
		TipoEmision:     sri.TipoEmisionNormal,
	}.Build()
}

// SyncExecutor ejecuta en la misma goroutine. Útil en pruebas y en modo sin worker.
type SyncExecutor struct{}

func (SyncExecutor) Go(fn func(ctx context.Context)) { fn(context.Background()) }
