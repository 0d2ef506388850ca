// Package pdf implementa el RIDE (Representación Impresa del Documento Electrónico)
// de facturas y comprobantes de retención autorizados por el SRI.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  EMISOR: Razón social, RUC, matriz │ TIPO + N° + autorización │
//	│  ─────────────────────────────────────────────────────────  │
//	│  CLAVE DE ACCESO + QR                                        │
//	│  RECEPTOR: comprador o sujeto retenido                       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: detalles (factura) o impuestos retenidos (retención) │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES                                                     │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/application/electronic"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoRIDEGenerator implementa electronic.RIDEGenerator usando Maroto v2.
type MarotoRIDEGenerator struct{}

// NewMarotoRIDEGenerator construye el generador.
func NewMarotoRIDEGenerator() *MarotoRIDEGenerator { return &MarotoRIDEGenerator{} }

var _ electronic.RIDEGenerator = (*MarotoRIDEGenerator)(nil)

// header datos comunes de cabecera de ambos comprobantes.
type header struct {
	title    string
	emisor   sri.Emisor
	info     sri.InfoTributaria
	receptor sri.Sujeto
}

// Generate arma el PDF del comprobante autorizado y devuelve sus bytes.
func (g *MarotoRIDEGenerator) Generate(_ context.Context, doc *entity.ElectronicDocument, payload []byte) ([]byte, error) {
	var (
		h     header
		body  []core.Row
		total []core.Row
	)
	switch doc.Type {
	case entity.DocumentTypeFactura:
		p, err := sri.DecodeFactura(payload)
		if err != nil {
			return nil, err
		}
		h = header{title: "FACTURA", emisor: p.Emisor, info: p.Info, receptor: p.Comprador}
		body = facturaRows(p)
		total = facturaTotals(p)
	case entity.DocumentTypeRetencion:
		p, err := sri.DecodeRetencion(payload)
		if err != nil {
			return nil, err
		}
		h = header{title: "COMPROBANTE DE RETENCIÓN", emisor: p.Emisor, info: p.Info, receptor: p.Sujeto}
		body = retencionRows(p)
		total = []core.Row{totalRow("TOTAL RETENIDO:", p.TotalRetenido, true)}
	default:
		return nil, fmt.Errorf("pdf: tipo de documento %q sin RIDE", doc.Type)
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("RIDE "+h.title, true).
		WithAuthor(h.emisor.RazonSocial, true).
		Build()

	m := maroto.New(cfg)
	m.AddRows(headerRow(h, doc))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(accessKeyRow(doc))
	m.AddRows(receptorRow(h))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(body...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(total...)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return out.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: emisor (izq) y tipo, número y autorización (der).
func headerRow(h header, doc *entity.ElectronicDocument) core.Row {
	numero := h.info.Establecimiento + "-" + h.info.PuntoEmision + "-" + h.info.Secuencial
	fechaAut := "—"
	if doc.AuthorizedAt != nil {
		fechaAut = doc.AuthorizedAt.Format("02/01/2006 15:04:05")
	}
	return row.New(30).Add(
		col.New(7).Add(
			text.New(h.emisor.RazonSocial, props.Text{Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1}),
			text.New(nonEmpty(h.emisor.NombreComercial, ""), props.Text{Size: 9, Top: 8}),
			text.New("Dir. Matriz: "+nonEmpty(h.emisor.DireccionMatriz, "—"), props.Text{Size: 8, Top: 14, Color: colorGray}),
			text.New("Obligado a llevar contabilidad: "+siNo(h.emisor.ObligadoContabilidad), props.Text{Size: 8, Top: 19, Color: colorGray}),
		),
		col.New(5).Add(
			text.New("R.U.C.: "+h.emisor.RUC, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 1}),
			text.New(h.title, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Color: colorPrimary, Top: 7}),
			text.New("No. "+numero, props.Text{Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 12}),
			text.New("Fecha emisión: "+h.info.FechaEmision, props.Text{Size: 8, Align: align.Right, Top: 19, Color: colorGray}),
			text.New("Fecha autorización: "+fechaAut, props.Text{Size: 8, Align: align.Right, Top: 23, Color: colorGray}),
			text.New("Ambiente: "+ambiente(h.info.Ambiente), props.Text{Size: 8, Align: align.Right, Top: 27, Color: colorGray}),
		),
	)
}

// accessKeyRow: número de autorización y clave de acceso con su QR.
func accessKeyRow(doc *entity.ElectronicDocument) core.Row {
	return row.New(32).Add(
		col.New(9).Add(
			text.New("NÚMERO DE AUTORIZACIÓN", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 2}),
			text.New(nonEmpty(doc.AuthorizationNumber, doc.AccessKey), props.Text{Size: 8, Top: 7}),
			text.New("CLAVE DE ACCESO", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 14}),
			text.New(doc.AccessKey, props.Text{Size: 8, Top: 19}),
		),
		col.New(3).Add(code.NewQr(doc.AccessKey, props.Rect{Percent: 95, Center: true})),
	)
}

// receptorRow: comprador o sujeto retenido.
func receptorRow(h header) core.Row {
	return row.New(16).Add(
		col.New(12).Add(
			text.New("Razón social / Nombres: "+h.receptor.RazonSocial, props.Text{Style: fontstyle.Bold, Size: 9, Top: 2}),
			text.New(fmt.Sprintf("Identificación: %s   |   Email: %s   |   Dirección: %s",
				h.receptor.Identificacion,
				nonEmpty(h.receptor.Email, "—"),
				nonEmpty(h.receptor.Direccion, "—"),
			), props.Text{Size: 8, Top: 9, Color: colorGray}),
		),
	)
}

func tableHeader(labels []string, sizes []int) core.Row {
	cols := make([]core.Col, 0, len(labels))
	for i, l := range labels {
		a := align.Right
		if i == 1 {
			a = align.Left
		}
		cols = append(cols, col.New(sizes[i]).Add(text.New(l, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		})))
	}
	return row.New(8).Add(cols...)
}

func cell(size int, s string, a align.Type) core.Col {
	return col.New(size).Add(text.New(s, props.Text{Size: 8, Align: a, Top: 1, Left: 1, Right: 1}))
}

// facturaRows: una fila por detalle.
func facturaRows(p *sri.FacturaPayload) []core.Row {
	rows := []core.Row{tableHeader(
		[]string{"Código", "Descripción", "Cant.", "P. Unitario", "Descuento", "Total"},
		[]int{2, 4, 1, 2, 1, 2},
	)}
	for _, d := range p.Detalles {
		rows = append(rows, row.New(7).Add(
			cell(2, d.CodigoPrincipal, align.Right),
			cell(4, d.Descripcion, align.Left),
			cell(1, d.Cantidad.String(), align.Right),
			cell(2, money(d.PrecioUnitario), align.Right),
			cell(1, money(d.Descuento), align.Right),
			cell(2, money(d.PrecioTotalSinImpuesto), align.Right),
		))
	}
	return rows
}

// facturaTotals: subtotales por tarifa, IVA e importe total.
func facturaTotals(p *sri.FacturaPayload) []core.Row {
	rows := []core.Row{totalRow("SUBTOTAL SIN IMPUESTOS:", p.TotalSinImpuestos, false)}
	for _, t := range p.TotalConImpuestos {
		rows = append(rows,
			totalRow(fmt.Sprintf("BASE %s (%s-%s):", impuestoNombre(t.Codigo), t.Codigo, t.CodigoPorcentaje), t.BaseImponible, false),
			totalRow(fmt.Sprintf("%s (%s-%s):", impuestoNombre(t.Codigo), t.Codigo, t.CodigoPorcentaje), t.Valor, false),
		)
	}
	rows = append(rows,
		totalRow("TOTAL DESCUENTO:", p.TotalDescuento, false),
		totalRow("VALOR TOTAL:", p.ImporteTotal, true),
	)
	return rows
}

// retencionRows: documento sustento y una fila por impuesto retenido.
func retencionRows(p *sri.RetencionPayload) []core.Row {
	rows := []core.Row{
		row.New(8).Add(col.New(12).Add(text.New(
			fmt.Sprintf("Documento sustento: %s %s   |   Fecha: %s   |   Período fiscal: %s",
				p.Sustento.CodDocSustento, p.Sustento.NumDocSustento, p.Sustento.FechaEmision, p.PeriodoFiscal),
			props.Text{Size: 8, Top: 2, Color: colorGray},
		))),
		tableHeader(
			[]string{"Impuesto", "Código retención", "Base imponible", "% Retención", "Valor retenido"},
			[]int{2, 4, 2, 2, 2},
		),
	}
	for _, r := range p.Impuestos {
		rows = append(rows, row.New(7).Add(
			cell(2, retencionNombre(r.Codigo), align.Right),
			cell(4, r.CodigoRetencion, align.Left),
			cell(2, money(r.BaseImponible), align.Right),
			cell(2, r.Porcentaje.String()+"%", align.Right),
			cell(2, money(r.Valor), align.Right),
		))
	}
	return rows
}

func totalRow(label string, v decimal.Decimal, grand bool) core.Row {
	style := props.Text{Size: 9, Align: align.Right, Right: 1}
	if grand {
		style = props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1}
	}
	return row.New(6).Add(
		col.New(6),
		col.New(4).Add(text.New(label, style)),
		col.New(2).Add(text.New(money(v), style)),
	)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func siNo(b bool) string {
	if b {
		return "SI"
	}
	return "NO"
}

func ambiente(a string) string {
	if a == sri.AmbienteProduccion {
		return "PRODUCCIÓN"
	}
	return "PRUEBAS"
}

func impuestoNombre(codigo string) string {
	switch codigo {
	case sri.ImpuestoIVA:
		return "IVA"
	case sri.ImpuestoICE:
		return "ICE"
	}
	return codigo
}

func retencionNombre(codigo string) string {
	switch codigo {
	case sri.RetencionRenta:
		return "RENTA"
	case sri.RetencionIVA:
		return "IVA"
	case sri.RetencionISD:
		return "ISD"
	}
	return codigo
}
