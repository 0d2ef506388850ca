package sri

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFactura_FijaVersion(t *testing.T) {
	p := &FacturaPayload{
		Info:         InfoTributaria{ClaveAcceso: "2110201101179214673900110020010000000011234567813", CodDoc: TipoComprobanteFactura},
		ImporteTotal: decimal.RequireFromString("157.50"),
		Detalles: []Detalle{{
			CodigoPrincipal: "P-1",
			Cantidad:        decimal.NewFromInt(2),
			Impuestos:       []Impuesto{{Codigo: ImpuestoIVA, CodigoPorcentaje: "4", Valor: decimal.RequireFromString("18.00")}},
		}},
	}
	data, err := Encode(p)
	require.NoError(t, err)
	assert.Equal(t, PayloadVersion, p.Version)

	got, err := DecodeFactura(data)
	require.NoError(t, err)
	assert.Equal(t, p.Info.ClaveAcceso, got.Info.ClaveAcceso)
	assert.True(t, got.ImporteTotal.Equal(decimal.RequireFromString("157.5")))
	require.Len(t, got.Detalles, 1)
	assert.Equal(t, "4", got.Detalles[0].Impuestos[0].CodigoPorcentaje)
}

func TestDecode_RechazaVersionDesconocida(t *testing.T) {
	_, err := DecodeFactura([]byte(`{"version":2}`))
	assert.Error(t, err)
	_, err = DecodeRetencion([]byte(`{"version":0}`))
	assert.Error(t, err)
	_, err = DecodeRetencion([]byte(`no-json`))
	assert.Error(t, err)
}

func TestEncode_TipoNoSoportado(t *testing.T) {
	_, err := Encode(struct{}{})
	assert.Error(t, err)
}

func TestNormalizarTexto(t *testing.T) {
	assert.Equal(t, "Cía. Andina S.A.", NormalizarTexto("  Cía.\tAndina\n S.A. ", 0))
	assert.Equal(t, "abc", NormalizarTexto("abcdef", 3))
	assert.Equal(t, "Munoz Pena", SinTildes("Muñoz Peña"))
}
