// Package sri contiene catálogos, clave de acceso y el esquema de payload alineados a la
// Ficha Técnica de Comprobantes Electrónicos Esquema Offline del SRI (Ecuador).
package sri

import "github.com/shopspring/decimal"

// =============================================================================
// Tabla 3 - Tipos de comprobante
// =============================================================================

const (
	TipoComprobanteFactura   = "01"
	TipoComprobanteRetencion = "07"
)

// =============================================================================
// Tabla 4 - Ambiente
// =============================================================================

const (
	AmbientePruebas    = "1"
	AmbienteProduccion = "2"
)

// TipoEmisionNormal Tabla 2 - única emisión vigente en esquema offline.
const TipoEmisionNormal = "1"

// =============================================================================
// Tabla 6 - Tipo de identificación del comprador
// =============================================================================

const (
	IdentificacionRUC             = "04"
	IdentificacionCedula          = "05"
	IdentificacionPasaporte       = "06"
	IdentificacionConsumidorFinal = "07"
	IdentificacionExterior        = "08"
)

// Consumidor final.
const (
	ConsumidorFinalIdentificacion = "9999999999999"
	ConsumidorFinalRazonSocial    = "CONSUMIDOR FINAL"
)

// =============================================================================
// Tablas 16 y 17 - Impuestos y tarifas de IVA
// =============================================================================

const (
	ImpuestoIVA = "2"
	ImpuestoICE = "3"
)

// TarifaIVA entrada del catálogo de porcentajes de IVA.
type TarifaIVA struct {
	Codigo      string
	Porcentaje  decimal.Decimal
	Descripcion string
}

// TarifasIVA catálogo vigente de códigos de porcentaje de IVA.
var TarifasIVA = []TarifaIVA{
	{Codigo: "0", Porcentaje: decimal.Zero, Descripcion: "0%"},
	{Codigo: "2", Porcentaje: decimal.NewFromInt(12), Descripcion: "12%"},
	{Codigo: "3", Porcentaje: decimal.NewFromInt(14), Descripcion: "14%"},
	{Codigo: "4", Porcentaje: decimal.NewFromInt(15), Descripcion: "15%"},
	{Codigo: "5", Porcentaje: decimal.NewFromInt(5), Descripcion: "5%"},
	{Codigo: "6", Porcentaje: decimal.Zero, Descripcion: "No objeto de impuesto"},
	{Codigo: "7", Porcentaje: decimal.Zero, Descripcion: "Exento de IVA"},
	{Codigo: "8", Porcentaje: decimal.NewFromInt(8), Descripcion: "IVA diferenciado"},
}

// =============================================================================
// Tabla 19 - Impuestos a retener
// =============================================================================

const (
	RetencionRenta = "1"
	RetencionIVA   = "2"
	RetencionISD   = "6"
)

// Estados devueltos por los web services.
const (
	EstadoRecibida       = "RECIBIDA"
	EstadoDevuelta       = "DEVUELTA"
	EstadoAutorizado     = "AUTORIZADO"
	EstadoNoAutorizado   = "NO AUTORIZADO"
	EstadoEnProceso      = "EN PROCESO"
	ErrorClaveRegistrada = "43" // CLAVE ACCESO REGISTRADA
)
