// Package sri implementa el canal con el SRI: XML de comprobantes (Ficha Técnica offline),
// firma XAdES-BES y los web services SOAP de recepción y autorización.
package sri

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

// Versiones de esquema XSD usadas.
const (
	VersionFactura   = "1.1.0"
	VersionRetencion = "2.0.0"
	// ComprobanteID Id del nodo raíz al que apunta la Reference de la firma.
	ComprobanteID = "comprobante"
)

// ── Estructuras comunes ──────────────────────────────────────────────────────

type infoTributariaXML struct {
	Ambiente        string `xml:"ambiente"`
	TipoEmision     string `xml:"tipoEmision"`
	RazonSocial     string `xml:"razonSocial"`
	NombreComercial string `xml:"nombreComercial,omitempty"`
	RUC             string `xml:"ruc"`
	ClaveAcceso     string `xml:"claveAcceso"`
	CodDoc          string `xml:"codDoc"`
	Estab           string `xml:"estab"`
	PtoEmi          string `xml:"ptoEmi"`
	Secuencial      string `xml:"secuencial"`
	DirMatriz       string `xml:"dirMatriz"`
}

type campoAdicionalXML struct {
	Nombre string `xml:"nombre,attr"`
	Valor  string `xml:",chardata"`
}

type infoAdicionalXML struct {
	Campos []campoAdicionalXML `xml:"campoAdicional"`
}

type pagoXML struct {
	FormaPago string `xml:"formaPago"`
	Total     string `xml:"total"`
}

// ── Factura 1.1.0 ────────────────────────────────────────────────────────────

type facturaXML struct {
	XMLName        xml.Name          `xml:"factura"`
	ID             string            `xml:"id,attr"`
	Version        string            `xml:"version,attr"`
	InfoTributaria infoTributariaXML `xml:"infoTributaria"`
	InfoFactura    infoFacturaXML    `xml:"infoFactura"`
	Detalles       []detalleXML      `xml:"detalles>detalle"`
	InfoAdicional  *infoAdicionalXML `xml:"infoAdicional,omitempty"`
}

type infoFacturaXML struct {
	FechaEmision                string             `xml:"fechaEmision"`
	ObligadoContabilidad        string             `xml:"obligadoContabilidad"`
	TipoIdentificacionComprador string             `xml:"tipoIdentificacionComprador"`
	RazonSocialComprador        string             `xml:"razonSocialComprador"`
	IdentificacionComprador     string             `xml:"identificacionComprador"`
	DireccionComprador          string             `xml:"direccionComprador,omitempty"`
	TotalSinImpuestos           string             `xml:"totalSinImpuestos"`
	TotalDescuento              string             `xml:"totalDescuento"`
	TotalConImpuestos           []totalImpuestoXML `xml:"totalConImpuestos>totalImpuesto"`
	Propina                     string             `xml:"propina"`
	ImporteTotal                string             `xml:"importeTotal"`
	Moneda                      string             `xml:"moneda"`
	Pagos                       []pagoXML          `xml:"pagos>pago"`
}

type totalImpuestoXML struct {
	Codigo           string `xml:"codigo"`
	CodigoPorcentaje string `xml:"codigoPorcentaje"`
	BaseImponible    string `xml:"baseImponible"`
	Valor            string `xml:"valor"`
}

type detalleXML struct {
	CodigoPrincipal        string        `xml:"codigoPrincipal"`
	Descripcion            string        `xml:"descripcion"`
	Cantidad               string        `xml:"cantidad"`
	PrecioUnitario         string        `xml:"precioUnitario"`
	Descuento              string        `xml:"descuento"`
	PrecioTotalSinImpuesto string        `xml:"precioTotalSinImpuesto"`
	Impuestos              []impuestoXML `xml:"impuestos>impuesto"`
}

type impuestoXML struct {
	Codigo           string `xml:"codigo"`
	CodigoPorcentaje string `xml:"codigoPorcentaje"`
	Tarifa           string `xml:"tarifa"`
	BaseImponible    string `xml:"baseImponible"`
	Valor            string `xml:"valor"`
}

// ── Comprobante de retención 2.0.0 ───────────────────────────────────────────

type retencionXML struct {
	XMLName           xml.Name             `xml:"comprobanteRetencion"`
	ID                string               `xml:"id,attr"`
	Version           string               `xml:"version,attr"`
	InfoTributaria    infoTributariaXML    `xml:"infoTributaria"`
	InfoCompRetencion infoCompRetencionXML `xml:"infoCompRetencion"`
	DocsSustento      []docSustentoXML     `xml:"docsSustento>docSustento"`
	InfoAdicional     *infoAdicionalXML    `xml:"infoAdicional,omitempty"`
}

type infoCompRetencionXML struct {
	FechaEmision                     string `xml:"fechaEmision"`
	ObligadoContabilidad             string `xml:"obligadoContabilidad"`
	TipoIdentificacionSujetoRetenido string `xml:"tipoIdentificacionSujetoRetenido"`
	ParteRel                         string `xml:"parteRel"`
	RazonSocialSujetoRetenido        string `xml:"razonSocialSujetoRetenido"`
	IdentificacionSujetoRetenido     string `xml:"identificacionSujetoRetenido"`
	PeriodoFiscal                    string `xml:"periodoFiscal"`
}

type docSustentoXML struct {
	CodSustento             string                   `xml:"codSustento"`
	CodDocSustento          string                   `xml:"codDocSustento"`
	NumDocSustento          string                   `xml:"numDocSustento"`
	FechaEmisionDocSustento string                   `xml:"fechaEmisionDocSustento"`
	PagoLocExt              string                   `xml:"pagoLocExt"`
	TotalSinImpuestos       string                   `xml:"totalSinImpuestos"`
	ImporteTotal            string                   `xml:"importeTotal"`
	ImpuestosDocSustento    []impuestoDocSustentoXML `xml:"impuestosDocSustento>impuestoDocSustento"`
	Retenciones             []retencionLineaXML      `xml:"retenciones>retencion"`
	Pagos                   []pagoXML                `xml:"pagos>pago"`
}

type impuestoDocSustentoXML struct {
	CodImpuestoDocSustento string `xml:"codImpuestoDocSustento"`
	CodigoPorcentaje       string `xml:"codigoPorcentaje"`
	BaseImponible          string `xml:"baseImponible"`
	Tarifa                 string `xml:"tarifa"`
	ValorImpuesto          string `xml:"valorImpuesto"`
}

type retencionLineaXML struct {
	Codigo            string `xml:"codigo"`
	CodigoRetencion   string `xml:"codigoRetencion"`
	BaseImponible     string `xml:"baseImponible"`
	PorcentajeRetener string `xml:"porcentajeRetener"`
	ValorRetenido     string `xml:"valorRetenido"`
}

// Códigos fijos del documento sustento: crédito tributario (01) y pago local (01).
const (
	codSustentoCreditoTributario = "01"
	pagoLocal                    = "01"
)

// XMLBuilder genera el XML sin firma de cada tipo de comprobante a partir del payload de la cola.
type XMLBuilder struct{}

// NewXMLBuilder crea el builder.
func NewXMLBuilder() *XMLBuilder {
	return &XMLBuilder{}
}

// Build decodifica el payload según el tipo de documento y genera el XML.
func (b *XMLBuilder) Build(docType string, payload []byte) ([]byte, error) {
	switch docType {
	case entity.DocumentTypeFactura:
		p, err := sri.DecodeFactura(payload)
		if err != nil {
			return nil, err
		}
		return b.Factura(p)
	case entity.DocumentTypeRetencion:
		p, err := sri.DecodeRetencion(payload)
		if err != nil {
			return nil, err
		}
		return b.Retencion(p)
	}
	return nil, fmt.Errorf("sri: tipo de documento %q sin XML", docType)
}

// Factura genera el XML de la factura (esquema 1.1.0).
func (b *XMLBuilder) Factura(p *sri.FacturaPayload) ([]byte, error) {
	if p == nil || p.Info.ClaveAcceso == "" {
		return nil, fmt.Errorf("sri: payload de factura incompleto")
	}
	doc := facturaXML{
		ID:             ComprobanteID,
		Version:        VersionFactura,
		InfoTributaria: infoTributaria(p.Emisor, p.Info),
		InfoFactura: infoFacturaXML{
			FechaEmision:                p.Info.FechaEmision,
			ObligadoContabilidad:        siNo(p.Emisor.ObligadoContabilidad),
			TipoIdentificacionComprador: p.Comprador.TipoIdentificacion,
			RazonSocialComprador:        p.Comprador.RazonSocial,
			IdentificacionComprador:     p.Comprador.Identificacion,
			DireccionComprador:          p.Comprador.Direccion,
			TotalSinImpuestos:           money(p.TotalSinImpuestos),
			TotalDescuento:              money(p.TotalDescuento),
			Propina:                     money(decimal.Zero),
			ImporteTotal:                money(p.ImporteTotal),
			Moneda:                      p.Moneda,
		},
		InfoAdicional: infoAdicional(p.Comprador),
	}
	for _, t := range p.TotalConImpuestos {
		doc.InfoFactura.TotalConImpuestos = append(doc.InfoFactura.TotalConImpuestos, totalImpuestoXML{
			Codigo:           t.Codigo,
			CodigoPorcentaje: t.CodigoPorcentaje,
			BaseImponible:    money(t.BaseImponible),
			Valor:            money(t.Valor),
		})
	}
	for _, pg := range p.Pagos {
		doc.InfoFactura.Pagos = append(doc.InfoFactura.Pagos, pagoXML{FormaPago: pg.FormaPago, Total: money(pg.Total)})
	}
	for _, d := range p.Detalles {
		det := detalleXML{
			CodigoPrincipal:        d.CodigoPrincipal,
			Descripcion:            d.Descripcion,
			Cantidad:               d.Cantidad.StringFixed(6),
			PrecioUnitario:         d.PrecioUnitario.StringFixed(6),
			Descuento:              money(d.Descuento),
			PrecioTotalSinImpuesto: money(d.PrecioTotalSinImpuesto),
		}
		for _, i := range d.Impuestos {
			det.Impuestos = append(det.Impuestos, impuestoXML{
				Codigo:           i.Codigo,
				CodigoPorcentaje: i.CodigoPorcentaje,
				Tarifa:           rate(i.Tarifa),
				BaseImponible:    money(i.BaseImponible),
				Valor:            money(i.Valor),
			})
		}
		doc.Detalles = append(doc.Detalles, det)
	}
	return marshal(doc)
}

// Retencion genera el XML del comprobante de retención (esquema 2.0.0, un documento sustento).
func (b *XMLBuilder) Retencion(p *sri.RetencionPayload) ([]byte, error) {
	if p == nil || p.Info.ClaveAcceso == "" {
		return nil, fmt.Errorf("sri: payload de retención incompleto")
	}
	sustento := docSustentoXML{
		CodSustento:             codSustentoCreditoTributario,
		CodDocSustento:          p.Sustento.CodDocSustento,
		NumDocSustento:          onlyDigits(p.Sustento.NumDocSustento),
		FechaEmisionDocSustento: p.Sustento.FechaEmision,
		PagoLocExt:              pagoLocal,
		TotalSinImpuestos:       money(p.Sustento.TotalSinImpuesto),
		ImporteTotal:            money(p.Sustento.ImporteTotal),
		Pagos:                   []pagoXML{{FormaPago: sri.FormaPagoSinSistemaFinanciero, Total: money(p.Sustento.ImporteTotal)}},
	}
	for _, i := range p.Sustento.Impuestos {
		sustento.ImpuestosDocSustento = append(sustento.ImpuestosDocSustento, impuestoDocSustentoXML{
			CodImpuestoDocSustento: i.Codigo,
			CodigoPorcentaje:       i.CodigoPorcentaje,
			BaseImponible:          money(i.BaseImponible),
			Tarifa:                 rate(i.Tarifa),
			ValorImpuesto:          money(i.Valor),
		})
	}
	for _, r := range p.Impuestos {
		sustento.Retenciones = append(sustento.Retenciones, retencionLineaXML{
			Codigo:            r.Codigo,
			CodigoRetencion:   r.CodigoRetencion,
			BaseImponible:     money(r.BaseImponible),
			PorcentajeRetener: rate(r.Porcentaje),
			ValorRetenido:     money(r.Valor),
		})
	}
	doc := retencionXML{
		ID:             ComprobanteID,
		Version:        VersionRetencion,
		InfoTributaria: infoTributaria(p.Emisor, p.Info),
		InfoCompRetencion: infoCompRetencionXML{
			FechaEmision:                     p.Info.FechaEmision,
			ObligadoContabilidad:             siNo(p.Emisor.ObligadoContabilidad),
			TipoIdentificacionSujetoRetenido: p.Sujeto.TipoIdentificacion,
			ParteRel:                         "NO",
			RazonSocialSujetoRetenido:        p.Sujeto.RazonSocial,
			IdentificacionSujetoRetenido:     p.Sujeto.Identificacion,
			PeriodoFiscal:                    p.PeriodoFiscal,
		},
		DocsSustento:  []docSustentoXML{sustento},
		InfoAdicional: infoAdicional(p.Sujeto),
	}
	return marshal(doc)
}

func infoTributaria(e sri.Emisor, i sri.InfoTributaria) infoTributariaXML {
	return infoTributariaXML{
		Ambiente:        i.Ambiente,
		TipoEmision:     i.TipoEmision,
		RazonSocial:     sri.NormalizarTexto(e.RazonSocial, 300),
		NombreComercial: sri.NormalizarTexto(e.NombreComercial, 300),
		RUC:             e.RUC,
		ClaveAcceso:     i.ClaveAcceso,
		CodDoc:          i.CodDoc,
		Estab:           i.Establecimiento,
		PtoEmi:          i.PuntoEmision,
		Secuencial:      i.Secuencial,
		DirMatriz:       sri.NormalizarTexto(e.DireccionMatriz, 300),
	}
}

func infoAdicional(s sri.Sujeto) *infoAdicionalXML {
	if s.Email == "" {
		return nil
	}
	return &infoAdicionalXML{Campos: []campoAdicionalXML{{Nombre: "Email", Valor: s.Email}}}
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("sri: serializar XML: %w", err)
	}
	return buf.Bytes(), nil
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// rate porcentaje sin decimales innecesarios (15, 0.5, 30).
func rate(d decimal.Decimal) string { return d.Round(2).String() }

func siNo(b bool) string {
	if b {
		return "SI"
	}
	return "NO"
}

// onlyDigits deja solo dígitos: "001-001-000000123" -> "001001000000123".
func onlyDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
