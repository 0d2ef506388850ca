package sri

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

// ── Endpoints ─────────────────────────────────────────────────────────────────

const (
	recepcionURLPruebas       = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"
	autorizacionURLPruebas    = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"
	recepcionURLProduccion    = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"
	autorizacionURLProduccion = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"

	soapNS         = "http://schemas.xmlsoap.org/soap/envelope/"
	nsRecepcion    = "http://ec.gob.sri.ws.recepcion"
	nsAutorizacion = "http://ec.gob.sri.ws.autorizacion"
)

// Endpoints URLs de los web services de recepción y autorización.
type Endpoints struct {
	Recepcion    string
	Autorizacion string
}

// EndpointsFor devuelve las URLs oficiales del ambiente ("1" pruebas, "2" producción).
func EndpointsFor(ambiente string) Endpoints {
	if ambiente == sri.AmbienteProduccion {
		return Endpoints{Recepcion: recepcionURLProduccion, Autorizacion: autorizacionURLProduccion}
	}
	return Endpoints{Recepcion: recepcionURLPruebas, Autorizacion: autorizacionURLPruebas}
}

// ── Estructuras SOAP de petición ──────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	XmlnsS  string   `xml:"xmlns:soapenv,attr"`
	XmlnsEc string   `xml:"xmlns:ec,attr"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    soapBody `xml:"soapenv:Body"`
}

type soapBody struct {
	Content any
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type validarComprobanteBody struct {
	XMLName xml.Name `xml:"ec:validarComprobante"`
	XML     string   `xml:"xml"` // comprobante firmado en Base64
}

type autorizacionComprobanteBody struct {
	XMLName     xml.Name `xml:"ec:autorizacionComprobante"`
	ClaveAcceso string   `xml:"claveAccesoComprobante"`
}

// ── Estructuras SOAP de respuesta ─────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	Recepcion    *validarComprobanteResponse      `xml:"validarComprobanteResponse"`
	Autorizacion *autorizacionComprobanteResponse `xml:"autorizacionComprobanteResponse"`
	Fault        *soapFault                       `xml:"Fault"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

type validarComprobanteResponse struct {
	Respuesta RespuestaRecepcion `xml:"RespuestaRecepcionComprobante"`
}

type autorizacionComprobanteResponse struct {
	Respuesta RespuestaAutorizacion `xml:"RespuestaAutorizacionComprobante"`
}

// Mensaje mensaje informativo o de error devuelto por el SRI.
type Mensaje struct {
	Identificador        string `xml:"identificador"`
	Mensaje              string `xml:"mensaje"`
	InformacionAdicional string `xml:"informacionAdicional"`
	Tipo                 string `xml:"tipo"`
}

func (m Mensaje) String() string {
	s := m.Identificador + " " + m.Mensaje
	if m.InformacionAdicional != "" {
		s += ": " + m.InformacionAdicional
	}
	return strings.TrimSpace(s)
}

// RespuestaRecepcion resultado de validarComprobante.
type RespuestaRecepcion struct {
	Estado       string `xml:"estado"`
	Comprobantes []struct {
		ClaveAcceso string    `xml:"claveAcceso"`
		Mensajes    []Mensaje `xml:"mensajes>mensaje"`
	} `xml:"comprobantes>comprobante"`
}

// Mensajes aplana los mensajes de todos los comprobantes.
func (r *RespuestaRecepcion) Mensajes() []Mensaje {
	var out []Mensaje
	for _, c := range r.Comprobantes {
		out = append(out, c.Mensajes...)
	}
	return out
}

// Autorizacion una entrada de autorizaciones.
type Autorizacion struct {
	Estado             string    `xml:"estado"`
	NumeroAutorizacion string    `xml:"numeroAutorizacion"`
	FechaAutorizacion  string    `xml:"fechaAutorizacion"`
	Ambiente           string    `xml:"ambiente"`
	Comprobante        string    `xml:"comprobante"`
	Mensajes           []Mensaje `xml:"mensajes>mensaje"`
}

// RespuestaAutorizacion resultado de autorizacionComprobante.
type RespuestaAutorizacion struct {
	ClaveAccesoConsultada string         `xml:"claveAccesoConsultada"`
	NumeroComprobantes    string         `xml:"numeroComprobantes"`
	Autorizaciones        []Autorizacion `xml:"autorizaciones>autorizacion"`
}

// ── Cliente ───────────────────────────────────────────────────────────────────

// SOAPClient llama a los web services offline del SRI.
// Las fallas de transporte y las respuestas 5xx se devuelven envolviendo domain.ErrTransientGateway.
type SOAPClient struct {
	httpClient *http.Client
	endpoints  Endpoints
}

// NewSOAPClient construye el cliente. timeout <= 0 usa 30 s.
func NewSOAPClient(endpoints Endpoints, timeout time.Duration) *SOAPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SOAPClient{
		httpClient: &http.Client{Timeout: timeout},
		endpoints:  endpoints,
	}
}

// ValidarComprobante envía el XML firmado al servicio de recepción.
func (c *SOAPClient) ValidarComprobante(ctx context.Context, signedXML []byte) (*RespuestaRecepcion, error) {
	body := &validarComprobanteBody{XML: base64.StdEncoding.EncodeToString(signedXML)}
	resp, err := c.call(ctx, c.endpoints.Recepcion, nsRecepcion, body)
	if err != nil {
		return nil, err
	}
	if resp.Recepcion == nil {
		return nil, fmt.Errorf("soap: respuesta de recepción vacía o inesperada")
	}
	return &resp.Recepcion.Respuesta, nil
}

// AutorizacionComprobante consulta la autorización por clave de acceso.
func (c *SOAPClient) AutorizacionComprobante(ctx context.Context, claveAcceso string) (*RespuestaAutorizacion, error) {
	body := &autorizacionComprobanteBody{ClaveAcceso: claveAcceso}
	resp, err := c.call(ctx, c.endpoints.Autorizacion, nsAutorizacion, body)
	if err != nil {
		return nil, err
	}
	if resp.Autorizacion == nil {
		return nil, fmt.Errorf("soap: respuesta de autorización vacía o inesperada")
	}
	return &resp.Autorizacion.Respuesta, nil
}

func (c *SOAPClient) call(ctx context.Context, url, ns string, body any) (*soapResponseBody, error) {
	envelope := soapEnvelope{
		XmlnsS:  soapNS,
		XmlnsEc: ns,
		Body:    soapBody{Content: body},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: timeout o cancelación: %v", domain.ErrTransientGateway, ctx.Err())
		}
		return nil, fmt.Errorf("%w: llamada HTTP fallida: %v", domain.ErrTransientGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: leer respuesta: %v", domain.ErrTransientGateway, err)
	}

	var env soapResponseEnvelope
	parseErr := xml.Unmarshal(raw, &env)
	if resp.StatusCode >= 500 {
		if parseErr == nil && env.Body.Fault != nil {
			return nil, fmt.Errorf("%w: SOAP Fault [%s]: %s", domain.ErrTransientGateway, env.Body.Fault.FaultCode, env.Body.Fault.FaultString)
		}
		return nil, fmt.Errorf("%w: HTTP %d", domain.ErrTransientGateway, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("soap: HTTP %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}
	if parseErr != nil {
		return nil, fmt.Errorf("soap: no se pudo parsear respuesta: %w", parseErr)
	}
	if env.Body.Fault != nil {
		return nil, fmt.Errorf("soap: SOAP Fault [%s]: %s", env.Body.Fault.FaultCode, env.Body.Fault.FaultString)
	}
	return &env.Body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
