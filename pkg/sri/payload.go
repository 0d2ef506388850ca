package sri

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// PayloadVersion versión vigente del esquema JSON guardado en la cola.
// Un cambio incompatible en los structs de abajo obliga a subirla.
const PayloadVersion = 1

// FormaPagoSinSistemaFinanciero forma de pago por defecto (Tabla 24).
const FormaPagoSinSistemaFinanciero = "01"

// Emisor datos del contribuyente que emite el comprobante.
type Emisor struct {
	RUC                  string `json:"ruc"`
	RazonSocial          string `json:"razon_social"`
	NombreComercial      string `json:"nombre_comercial,omitempty"`
	DireccionMatriz      string `json:"direccion_matriz"`
	ObligadoContabilidad bool   `json:"obligado_contabilidad"`
}

// Sujeto comprador de la factura o sujeto retenido.
type Sujeto struct {
	TipoIdentificacion string `json:"tipo_identificacion"`
	Identificacion     string `json:"identificacion"`
	RazonSocial        string `json:"razon_social"`
	Email              string `json:"email,omitempty"`
	Direccion          string `json:"direccion,omitempty"`
}

// InfoTributaria cabecera común de todo comprobante.
type InfoTributaria struct {
	Ambiente        string `json:"ambiente"`
	TipoEmision     string `json:"tipo_emision"`
	ClaveAcceso     string `json:"clave_acceso"`
	CodDoc          string `json:"cod_doc"`
	Establecimiento string `json:"estab"`
	PuntoEmision    string `json:"pto_emi"`
	Secuencial      string `json:"secuencial"`
	FechaEmision    string `json:"fecha_emision"` // dd/mm/aaaa
}

// Impuesto impuesto de una línea de factura.
type Impuesto struct {
	Codigo           string          `json:"codigo"`
	CodigoPorcentaje string          `json:"codigo_porcentaje"`
	Tarifa           decimal.Decimal `json:"tarifa"`
	BaseImponible    decimal.Decimal `json:"base_imponible"`
	Valor            decimal.Decimal `json:"valor"`
}

// TotalImpuesto acumulado por (código, código porcentaje).
type TotalImpuesto struct {
	Codigo           string          `json:"codigo"`
	CodigoPorcentaje string          `json:"codigo_porcentaje"`
	BaseImponible    decimal.Decimal `json:"base_imponible"`
	Valor            decimal.Decimal `json:"valor"`
}

// Detalle línea de factura.
type Detalle struct {
	CodigoPrincipal        string          `json:"codigo_principal"`
	Descripcion            string          `json:"descripcion"`
	Cantidad               decimal.Decimal `json:"cantidad"`
	PrecioUnitario         decimal.Decimal `json:"precio_unitario"`
	Descuento              decimal.Decimal `json:"descuento"`
	PrecioTotalSinImpuesto decimal.Decimal `json:"precio_total_sin_impuesto"`
	Impuestos              []Impuesto      `json:"impuestos"`
}

// Pago forma de pago de la factura.
type Pago struct {
	FormaPago string          `json:"forma_pago"`
	Total     decimal.Decimal `json:"total"`
}

// FacturaPayload comprobante factura (codDoc 01).
type FacturaPayload struct {
	Version           int             `json:"version"`
	Emisor            Emisor          `json:"emisor"`
	Info              InfoTributaria  `json:"info_tributaria"`
	Comprador         Sujeto          `json:"comprador"`
	TotalSinImpuestos decimal.Decimal `json:"total_sin_impuestos"`
	TotalDescuento    decimal.Decimal `json:"total_descuento"`
	TotalConImpuestos []TotalImpuesto `json:"total_con_impuestos"`
	ImporteTotal      decimal.Decimal `json:"importe_total"`
	Moneda            string          `json:"moneda"`
	Pagos             []Pago          `json:"pagos"`
	Detalles          []Detalle       `json:"detalles"`
}

// ImpuestoRetenido línea de la retención.
type ImpuestoRetenido struct {
	Codigo          string          `json:"codigo"`
	CodigoRetencion string          `json:"codigo_retencion"`
	BaseImponible   decimal.Decimal `json:"base_imponible"`
	Porcentaje      decimal.Decimal `json:"porcentaje_retener"`
	Valor           decimal.Decimal `json:"valor_retenido"`
}

// DocSustento factura del proveedor que sustenta la retención.
type DocSustento struct {
	CodDocSustento   string          `json:"cod_doc_sustento"`
	NumDocSustento   string          `json:"num_doc_sustento"`
	FechaEmision     string          `json:"fecha_emision_doc_sustento"`
	TotalSinImpuesto decimal.Decimal `json:"total_sin_impuestos"`
	ImporteTotal     decimal.Decimal `json:"importe_total"`
	Impuestos        []Impuesto      `json:"impuestos_doc_sustento,omitempty"`
}

// RetencionPayload comprobante de retención (codDoc 07).
type RetencionPayload struct {
	Version       int                `json:"version"`
	Emisor        Emisor             `json:"emisor"`
	Info          InfoTributaria     `json:"info_tributaria"`
	Sujeto        Sujeto             `json:"sujeto_retenido"`
	PeriodoFiscal string             `json:"periodo_fiscal"` // mm/aaaa
	Sustento      DocSustento        `json:"doc_sustento"`
	Impuestos     []ImpuestoRetenido `json:"impuestos"`
	TotalRetenido decimal.Decimal    `json:"total_retenido"`
}

// Encode serializa un payload fijando la versión vigente.
func Encode(p any) ([]byte, error) {
	switch v := p.(type) {
	case *FacturaPayload:
		v.Version = PayloadVersion
	case *RetencionPayload:
		v.Version = PayloadVersion
	default:
		return nil, fmt.Errorf("sri: payload no soportado %T", p)
	}
	return json.Marshal(p)
}

// DecodeFactura lee un payload de factura verificando la versión.
func DecodeFactura(data []byte) (*FacturaPayload, error) {
	var p FacturaPayload
	if err := decode(data, &p, &p.Version); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeRetencion lee un payload de retención verificando la versión.
func DecodeRetencion(data []byte) (*RetencionPayload, error) {
	var p RetencionPayload
	if err := decode(data, &p, &p.Version); err != nil {
		return nil, err
	}
	return &p, nil
}

func decode(data []byte, dst any, version *int) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("sri: payload inválido: %w", err)
	}
	if *version != PayloadVersion {
		return fmt.Errorf("sri: versión de payload %d no soportada (vigente %d)", *version, PayloadVersion)
	}
	return nil
}

// FormatFecha fecha en el formato dd/mm/aaaa de la ficha técnica.
const FormatFecha = "02/01/2006"

// FormatPeriodoFiscal periodo fiscal mm/aaaa.
const FormatPeriodoFiscal = "01/2006"
