package sri

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/osiris-api/internal/application/electronic"
	"github.com/jhoicas/osiris-api/internal/domain"
)

const recepcionTmpl = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:validarComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.recepcion">
<RespuestaRecepcionComprobante><estado>%ESTADO%</estado><comprobantes>%COMPROBANTES%</comprobantes></RespuestaRecepcionComprobante>
</ns2:validarComprobanteResponse></soap:Body></soap:Envelope>`

const autorizacionTmpl = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>
<ns2:autorizacionComprobanteResponse xmlns:ns2="http://ec.gob.sri.ws.autorizacion">
<RespuestaAutorizacionComprobante><claveAccesoConsultada>` + claveFactura + `</claveAccesoConsultada>
<numeroComprobantes>%N%</numeroComprobantes><autorizaciones>%AUTORIZACIONES%</autorizaciones>
</RespuestaAutorizacionComprobante></ns2:autorizacionComprobanteResponse></soap:Body></soap:Envelope>`

func recepcion(estado, comprobantes string) string {
	return strings.NewReplacer("%ESTADO%", estado, "%COMPROBANTES%", comprobantes).Replace(recepcionTmpl)
}

func autorizacion(n, autorizaciones string) string {
	return strings.NewReplacer("%N%", n, "%AUTORIZACIONES%", autorizaciones).Replace(autorizacionTmpl)
}

func mensaje(id, texto string) string {
	return `<comprobante><claveAcceso>` + claveFactura + `</claveAcceso><mensajes><mensaje><identificador>` + id +
		`</identificador><mensaje>` + texto + `</mensaje><tipo>ERROR</tipo></mensaje></mensajes></comprobante>`
}

type fakeSRI struct {
	status   int
	body     string
	lastPath string
	lastBody string
}

func (f *fakeSRI) handler(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	f.lastPath = r.URL.Path
	f.lastBody = string(raw)
	w.Header().Set("Content-Type", "text/xml")
	if f.status != 0 {
		w.WriteHeader(f.status)
	}
	_, _ = io.WriteString(w, f.body)
}

func newTestGateway(t *testing.T, f *fakeSRI) *SOAPGateway {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)
	client := NewSOAPClient(Endpoints{Recepcion: srv.URL + "/recepcion", Autorizacion: srv.URL + "/autorizacion"}, 2*time.Second)
	return NewSOAPGateway(client)
}

func send(g *SOAPGateway, received bool) (*electronic.GatewayResponse, error) {
	return g.Send(context.Background(), electronic.SendRequest{
		DocumentType:    "FACTURA",
		AccessKey:       claveFactura,
		SignedXML:       "<factura/>",
		AlreadyReceived: received,
	})
}

// ── Recepción ───────────────────────────────────────────────────────────────

func TestSOAPGateway_Recepcion(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus string
		wantMsg    string
	}{
		{"recibida", recepcion("RECIBIDA", ""), electronic.GatewayRecibida, ""},
		{"devuelta clave registrada", recepcion("DEVUELTA", mensaje("43", "CLAVE ACCESO REGISTRADA")), electronic.GatewayRecibida, "43 CLAVE ACCESO REGISTRADA"},
		{"devuelta por error de esquema", recepcion("DEVUELTA", mensaje("35", "ARCHIVO NO CUMPLE ESTRUCTURA XML")), electronic.GatewayRechazado, "35 ARCHIVO NO CUMPLE ESTRUCTURA XML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSRI{body: tt.body}
			resp, err := send(newTestGateway(t, f), false)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantMsg, resp.Message)

			assert.Equal(t, "/recepcion", f.lastPath)
			assert.Contains(t, f.lastBody, "<ec:validarComprobante>")
			assert.Contains(t, f.lastBody, "<xml>"+base64.StdEncoding.EncodeToString([]byte("<factura/>"))+"</xml>")
		})
	}
}

// ── Autorización ────────────────────────────────────────────────────────────

func TestSOAPGateway_Autorizado(t *testing.T) {
	f := &fakeSRI{body: autorizacion("1", `<autorizacion><estado>AUTORIZADO</estado>
<numeroAutorizacion>`+claveFactura+`</numeroAutorizacion><fechaAutorizacion>2025-03-10T10:15:00-05:00</fechaAutorizacion>
<ambiente>PRUEBAS</ambiente><comprobante><![CDATA[<factura id="comprobante"/>]]></comprobante><mensajes/></autorizacion>`)}

	resp, err := send(newTestGateway(t, f), true)
	require.NoError(t, err)
	assert.Equal(t, electronic.GatewayAutorizado, resp.Status)
	assert.Equal(t, claveFactura, resp.AuthorizationNumber)
	assert.Equal(t, `<factura id="comprobante"/>`, resp.AuthorizedXML)
	require.NotNil(t, resp.AuthorizedAt)
	assert.True(t, resp.AuthorizedAt.Equal(time.Date(2025, 3, 10, 15, 15, 0, 0, time.UTC)))

	assert.Equal(t, "/autorizacion", f.lastPath)
	assert.Contains(t, f.lastBody, "<claveAccesoComprobante>"+claveFactura+"</claveAccesoComprobante>")
}

func TestSOAPGateway_AutorizacionPendienteYRechazo(t *testing.T) {
	f := &fakeSRI{body: autorizacion("0", "")}
	resp, err := send(newTestGateway(t, f), true)
	require.NoError(t, err)
	assert.Equal(t, electronic.GatewayRecibida, resp.Status)

	f = &fakeSRI{body: autorizacion("1", `<autorizacion><estado>EN PROCESO</estado></autorizacion>`)}
	resp, err = send(newTestGateway(t, f), true)
	require.NoError(t, err)
	assert.Equal(t, electronic.GatewayRecibida, resp.Status)

	f = &fakeSRI{body: autorizacion("1", `<autorizacion><estado>NO AUTORIZADO</estado><mensajes><mensaje>
<identificador>56</identificador><mensaje>ESTABLECIMIENTO CERRADO</mensaje><tipo>ERROR</tipo></mensaje></mensajes></autorizacion>`)}
	resp, err = send(newTestGateway(t, f), true)
	require.NoError(t, err)
	assert.Equal(t, electronic.GatewayRechazado, resp.Status)
	assert.Equal(t, "56 ESTABLECIMIENTO CERRADO", resp.Message)
}

// ── Fallas de transporte ────────────────────────────────────────────────────

func TestSOAPGateway_FallasTransitorias(t *testing.T) {
	f := &fakeSRI{status: http.StatusServiceUnavailable, body: "<html>mantenimiento</html>"}
	_, err := send(newTestGateway(t, f), false)
	assert.True(t, errors.Is(err, domain.ErrTransientGateway), "5xx es transitorio: %v", err)

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	g := NewSOAPGateway(NewSOAPClient(Endpoints{Recepcion: url, Autorizacion: url}, time.Second))
	_, err = send(g, false)
	assert.ErrorIs(t, err, domain.ErrTransientGateway, "conexión rechazada")
}

func TestSOAPGateway_FallasDefinitivas(t *testing.T) {
	f := &fakeSRI{status: http.StatusBadRequest, body: "bad request"}
	_, err := send(newTestGateway(t, f), false)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrTransientGateway))

	f = &fakeSRI{body: "no es xml"}
	_, err = send(newTestGateway(t, f), false)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrTransientGateway))
}

func TestEndpointsFor(t *testing.T) {
	assert.Contains(t, EndpointsFor("1").Recepcion, "celcer.sri.gob.ec")
	assert.Contains(t, EndpointsFor("2").Autorizacion, "://cel.sri.gob.ec")
}

// ── Desarrollo ──────────────────────────────────────────────────────────────

func TestDevGateway(t *testing.T) {
	g := NewDevGateway()
	resp, err := g.Send(context.Background(), electronic.SendRequest{AccessKey: claveFactura, SignedXML: "<x/>"})
	require.NoError(t, err)
	assert.Equal(t, electronic.GatewayRecibida, resp.Status)

	resp, err = g.Send(context.Background(), electronic.SendRequest{AccessKey: claveFactura, SignedXML: "<x/>", AlreadyReceived: true})
	require.NoError(t, err)
	assert.Equal(t, electronic.GatewayAutorizado, resp.Status)
	assert.Equal(t, claveFactura, resp.AuthorizationNumber)
	assert.Equal(t, "<x/>", resp.AuthorizedXML)
}
