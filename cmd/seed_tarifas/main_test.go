package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestParseCatalog(t *testing.T) {
	src := `<?xml version="1.0" encoding="UTF-8"?>
<tabla>
  <valor impuesto="ICE" codigo="3" porcentaje="3073" tarifa="10" descripcion="Bebidas gaseosas"/>
  <valor impuesto="iva" codigo="2" porcentaje="4" tarifa="15" descripcion="IVA 15%"/>
  <valor impuesto="ICE" codigo="3" porcentaje="3073" tarifa="12,5" descripcion="Bebidas gaseosas 2025"/>
  <valor impuesto="IRBPNR" codigo="5" porcentaje="5001" tarifa="0.02"/>
  <valor impuesto="ICE" codigo="2" porcentaje="3011" tarifa="1"/>
  <valor impuesto="ICE" codigo="3" porcentaje="" tarifa="1"/>
  <valor impuesto="ICE" codigo="3" porcentaje="3092" tarifa="-1"/>
</tabla>`
	rates, skipped, err := parseCatalog(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 4, skipped)
	require.Len(t, rates, 2)

	assert.Equal(t, "IVA", rates[0].Kind)
	assert.Equal(t, "4", rates[0].RateCode)
	assert.Equal(t, "ICE", rates[1].Kind)
	assert.Equal(t, "12.5", rates[1].Rate.String(), "gana la última fila")
	assert.Equal(t, "Bebidas gaseosas 2025", rates[1].Description)
}

func TestParseCatalog_ISO88591(t *testing.T) {
	body, err := charmap.ISO8859_1.NewEncoder().String(`<valor impuesto="ICE" codigo="3" porcentaje="3610" tarifa="15" descripcion="Perfumes y aguas de tocador - línea importación"/>`)
	require.NoError(t, err)
	src := `<?xml version="1.0" encoding="ISO-8859-1"?><tabla>` + body + `</tabla>`

	rates, _, err := parseCatalog(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Contains(t, rates[0].Description, "línea")
}

func TestWriteSQL(t *testing.T) {
	rates, _, err := parseCatalog(strings.NewReader(`<tabla>
  <valor impuesto="ICE" codigo="3" porcentaje="3073" tarifa="10" descripcion="Bebidas 'light'"/>
</tabla>`))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeSQL(&buf, rates))
	sql := buf.String()
	assert.Contains(t, sql, "('ICE', '3', '3073', 10, 'Bebidas ''light''')")
	assert.Contains(t, sql, "ON CONFLICT (tax_code, rate_code) DO UPDATE SET")

	buf.Reset()
	require.NoError(t, writeSQL(&buf, nil))
	assert.NotContains(t, buf.String(), "INSERT")
}
