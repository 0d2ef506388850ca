// seed_tarifas genera el script SQL del catálogo de tarifas (IVA, ICE) a partir de un XML
// de parámetros exportado de la ficha técnica del SRI.
//
// Uso: go run ./cmd/seed_tarifas [ruta/tarifas.xml] [salida.sql]
// Por defecto lee tarifas.xml del directorio actual y escribe tarifas_sri.sql.
//
// Formato esperado:
//
//	<tabla>
//	  <valor impuesto="ICE" codigo="3" porcentaje="3073" tarifa="10" descripcion="Bebidas gaseosas"/>
//	</tabla>
package main

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

type tabla struct {
	Valores []valor `xml:"valor"`
}

type valor struct {
	Impuesto    string `xml:"impuesto,attr"`
	Codigo      string `xml:"codigo,attr"`
	Porcentaje  string `xml:"porcentaje,attr"`
	Tarifa      string `xml:"tarifa,attr"`
	Descripcion string `xml:"descripcion,attr"`
}

var taxCodes = map[string]string{
	entity.TaxKindIVA: entity.SRITaxCodeIVA,
	entity.TaxKindICE: entity.SRITaxCodeICE,
}

func main() {
	xmlPath, outPath := "tarifas.xml", "tarifas_sri.sql"
	if len(os.Args) > 1 {
		xmlPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		outPath = os.Args[2]
	}

	f, err := os.Open(xmlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir XML: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	rates, skipped, err := parseCatalog(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Decodificar XML: %v\n", err)
		os.Exit(1)
	}

	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := writeSQL(out, rates); err != nil {
		fmt.Fprintf(os.Stderr, "Escribir SQL: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generado %s: %d tarifas (%d filas omitidas)\n", outPath, len(rates), skipped)
}

// parseCatalog lee el XML (UTF-8 o ISO-8859-1) y devuelve las tarifas válidas ordenadas por
// impuesto y código. Las filas incompletas o de impuestos desconocidos se omiten.
func parseCatalog(r io.Reader) ([]entity.TaxRate, int, error) {
	var t tabla
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		if strings.EqualFold(charset, "ISO-8859-1") || strings.EqualFold(charset, "ISO8859-1") {
			return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
		}
		return input, nil
	}
	if err := dec.Decode(&t); err != nil {
		return nil, 0, err
	}

	byKey := map[string]entity.TaxRate{}
	skipped := 0
	for _, v := range t.Valores {
		kind := strings.ToUpper(strings.TrimSpace(v.Impuesto))
		taxCode, ok := taxCodes[kind]
		if !ok || strings.TrimSpace(v.Porcentaje) == "" {
			skipped++
			continue
		}
		if c := strings.TrimSpace(v.Codigo); c != "" && c != taxCode {
			skipped++
			continue
		}
		rate, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v.Tarifa), ",", "."))
		if err != nil || rate.IsNegative() {
			skipped++
			continue
		}
		tr := entity.TaxRate{
			Kind:        kind,
			TaxCode:     taxCode,
			RateCode:    strings.TrimSpace(v.Porcentaje),
			Rate:        rate,
			Description: strings.TrimSpace(v.Descripcion),
		}
		// La última fila repetida gana, como en la ficha técnica vigente.
		byKey[tr.TaxCode+"|"+tr.RateCode] = tr
	}

	rates := make([]entity.TaxRate, 0, len(byKey))
	for _, tr := range byKey {
		rates = append(rates, tr)
	}
	sort.Slice(rates, func(i, j int) bool {
		if rates[i].TaxCode != rates[j].TaxCode {
			return rates[i].TaxCode < rates[j].TaxCode
		}
		return rates[i].RateCode < rates[j].RateCode
	})
	return rates, skipped, nil
}

// writeSQL escribe un upsert sobre tax_rates; aplicarlo dos veces deja el mismo catálogo.
func writeSQL(w io.Writer, rates []entity.TaxRate) error {
	var sb strings.Builder
	sb.WriteString("-- Catálogo de tarifas SRI (IVA / ICE)\n")
	sb.WriteString("-- Generado por cmd/seed_tarifas\n\n")
	if len(rates) == 0 {
		sb.WriteString("-- sin tarifas\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}
	sb.WriteString("INSERT INTO tax_rates (kind, tax_code, rate_code, rate, description) VALUES\n")
	for i, r := range rates {
		fmt.Fprintf(&sb, "  ('%s', '%s', '%s', %s, '%s')", r.Kind, r.TaxCode, escapeSQL(r.RateCode), r.Rate.String(), escapeSQL(r.Description))
		if i < len(rates)-1 {
			sb.WriteString(",\n")
		} else {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("ON CONFLICT (tax_code, rate_code) DO UPDATE SET\n")
	sb.WriteString("  kind = EXCLUDED.kind, rate = EXCLUDED.rate, description = EXCLUDED.description;\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
