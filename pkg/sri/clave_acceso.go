package sri

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// LongitudClaveAcceso longitud de la clave de acceso incluido el dígito verificador.
const LongitudClaveAcceso = 49

// ClaveAcceso componentes de la clave de acceso (Ficha Técnica, tabla 1).
type ClaveAcceso struct {
	FechaEmision    time.Time
	TipoComprobante string // 01 factura, 07 retención
	RUC             string // 13 dígitos
	Ambiente        string // 1 pruebas, 2 producción
	Establecimiento string // 3 dígitos
	PuntoEmision    string // 3 dígitos
	Secuencial      string // hasta 9 dígitos, se rellena con ceros
	CodigoNumerico  string // 8 dígitos
	TipoEmision     string // 1 normal
}

// Build arma los 48 dígitos y agrega el dígito verificador módulo 11.
func (c ClaveAcceso) Build() (string, error) {
	sec, err := padDigits("secuencial", c.Secuencial, 9)
	if err != nil {
		return "", err
	}
	parts := []struct {
		name  string
		value string
		size  int
	}{
		{"tipo de comprobante", c.TipoComprobante, 2},
		{"RUC", c.RUC, 13},
		{"ambiente", c.Ambiente, 1},
		{"establecimiento", c.Establecimiento, 3},
		{"punto de emisión", c.PuntoEmision, 3},
		{"código numérico", c.CodigoNumerico, 8},
		{"tipo de emisión", c.TipoEmision, 1},
	}
	for _, p := range parts {
		if len(p.value) != p.size || !allDigits(p.value) {
			return "", fmt.Errorf("sri: %s debe tener %d dígitos, se recibió %q", p.name, p.size, p.value)
		}
	}
	base := c.FechaEmision.Format("02012006") + c.TipoComprobante + c.RUC + c.Ambiente +
		c.Establecimiento + c.PuntoEmision + sec + c.CodigoNumerico + c.TipoEmision
	return base + string(byte('0'+DigitoVerificador(base))), nil
}

// DigitoVerificador módulo 11 con pesos 2..7 aplicados de derecha a izquierda.
// Resultado 11 se convierte en 0 y 10 en 1.
func DigitoVerificador(digits string) int {
	weights := [6]int{2, 3, 4, 5, 6, 7}
	sum := 0
	for i := 0; i < len(digits); i++ {
		d := int(digits[len(digits)-1-i] - '0')
		sum += d * weights[i%len(weights)]
	}
	r := 11 - sum%11
	switch r {
	case 11:
		return 0
	case 10:
		return 1
	}
	return r
}

// ValidarClaveAcceso verifica longitud, dígitos y dígito verificador.
func ValidarClaveAcceso(clave string) error {
	if len(clave) != LongitudClaveAcceso {
		return fmt.Errorf("sri: la clave de acceso debe tener %d dígitos, tiene %d", LongitudClaveAcceso, len(clave))
	}
	if !allDigits(clave) {
		return fmt.Errorf("sri: la clave de acceso solo admite dígitos")
	}
	want := DigitoVerificador(clave[:48])
	if got := int(clave[48] - '0'); got != want {
		return fmt.Errorf("sri: dígito verificador inválido: esperado %d, recibido %d", want, got)
	}
	return nil
}

// NuevoCodigoNumerico genera el código numérico aleatorio de 8 dígitos.
func NuevoCodigoNumerico() string {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		return fmt.Sprintf("%08d", time.Now().UnixNano()%100000000)
	}
	return fmt.Sprintf("%08d", n.Int64())
}

// FormatSecuencial rellena el secuencial a 9 dígitos.
func FormatSecuencial(n int64) string {
	return fmt.Sprintf("%09d", n)
}

func padDigits(name, v string, size int) (string, error) {
	if v == "" || len(v) > size || !allDigits(v) {
		return "", fmt.Errorf("sri: %s inválido %q", name, v)
	}
	for len(v) < size {
		v = "0" + v
	}
	return v, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
