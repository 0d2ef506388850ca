package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

const clave = "1003202501179001234500110010020000001231234567817"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func emisor() sri.Emisor {
	return sri.Emisor{RUC: "1790012345001", RazonSocial: "Comercial Andina S.A.", DireccionMatriz: "Av. Amazonas N24-03", ObligadoContabilidad: true}
}

func authorized(docType string) *entity.ElectronicDocument {
	at := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	return &entity.ElectronicDocument{
		ID: "doc-1", Type: docType, AccessKey: clave, Status: entity.DocStatusAutorizado,
		AuthorizationNumber: clave, AuthorizedAt: &at,
	}
}

func TestMarotoRIDEGenerator_Factura(t *testing.T) {
	payload, err := sri.Encode(&sri.FacturaPayload{
		Emisor: emisor(),
		Info: sri.InfoTributaria{Ambiente: sri.AmbientePruebas, ClaveAcceso: clave, CodDoc: sri.TipoComprobanteFactura,
			Establecimiento: "001", PuntoEmision: "002", Secuencial: "000000123", FechaEmision: "10/03/2025"},
		Comprador:         sri.Sujeto{TipoIdentificacion: sri.IdentificacionCedula, Identificacion: "1710034065", RazonSocial: "Juan Pérez"},
		TotalSinImpuestos: d("100.00"),
		TotalConImpuestos: []sri.TotalImpuesto{{Codigo: sri.ImpuestoIVA, CodigoPorcentaje: "4", BaseImponible: d("100.00"), Valor: d("15.00")}},
		ImporteTotal:      d("115.00"),
		Detalles: []sri.Detalle{{CodigoPrincipal: "P-001", Descripcion: "Cemento 50kg", Cantidad: d("10"),
			PrecioUnitario: d("10.00"), PrecioTotalSinImpuesto: d("100.00")}},
	})
	require.NoError(t, err)

	out, err := NewMarotoRIDEGenerator().Generate(context.Background(), authorized(entity.DocumentTypeFactura), payload)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")), "la salida es un PDF")
}

func TestMarotoRIDEGenerator_Retencion(t *testing.T) {
	payload, err := sri.Encode(&sri.RetencionPayload{
		Emisor: emisor(),
		Info: sri.InfoTributaria{Ambiente: sri.AmbienteProduccion, ClaveAcceso: clave, CodDoc: sri.TipoComprobanteRetencion,
			Establecimiento: "001", PuntoEmision: "001", Secuencial: "000000045", FechaEmision: "10/03/2025"},
		Sujeto:        sri.Sujeto{TipoIdentificacion: sri.IdentificacionRUC, Identificacion: "0992345678001", RazonSocial: "Proveedora del Litoral"},
		PeriodoFiscal: "03/2025",
		Sustento:      sri.DocSustento{CodDocSustento: "01", NumDocSustento: "001001000000987", FechaEmision: "08/03/2025"},
		Impuestos: []sri.ImpuestoRetenido{
			{Codigo: sri.RetencionRenta, CodigoRetencion: "312", BaseImponible: d("200.00"), Porcentaje: d("1.75"), Valor: d("3.50")},
		},
		TotalRetenido: d("3.50"),
	})
	require.NoError(t, err)

	out, err := NewMarotoRIDEGenerator().Generate(context.Background(), authorized(entity.DocumentTypeRetencion), payload)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestMarotoRIDEGenerator_Errores(t *testing.T) {
	g := NewMarotoRIDEGenerator()
	_, err := g.Generate(context.Background(), authorized("NOTA_CREDITO"), []byte(`{}`))
	assert.Error(t, err)

	_, err = g.Generate(context.Background(), authorized(entity.DocumentTypeFactura), []byte(`{"version":99}`))
	assert.Error(t, err)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "fallback", nonEmpty("  ", "fallback"))
	assert.Equal(t, "3.50", money(d("3.5")))
	assert.Equal(t, "PRODUCCIÓN", ambiente(sri.AmbienteProduccion))
	assert.Equal(t, "RENTA", retencionNombre(sri.RetencionRenta))
	assert.Equal(t, "IVA", impuestoNombre(sri.ImpuestoIVA))
}
