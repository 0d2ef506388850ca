package sri

import (
	"fmt"
	"strconv"
)

// coeficientes de la cédula (módulo 10) aplicados a los 9 primeros dígitos.
var cedulaWeights = [9]int{2, 1, 2, 1, 2, 1, 2, 1, 2}

// ValidarCedula valida una cédula ecuatoriana de 10 dígitos (provincia 01-24 o 30, módulo 10).
func ValidarCedula(cedula string) error {
	if len(cedula) != 10 || !allDigits(cedula) {
		return fmt.Errorf("sri: la cédula debe tener 10 dígitos")
	}
	prov, _ := strconv.Atoi(cedula[:2])
	if (prov < 1 || prov > 24) && prov != 30 {
		return fmt.Errorf("sri: código de provincia inválido %02d", prov)
	}
	if cedula[2] > '5' {
		return fmt.Errorf("sri: tercer dígito inválido para persona natural")
	}
	sum := 0
	for i, w := range cedulaWeights {
		p := int(cedula[i]-'0') * w
		if p >= 10 {
			p -= 9
		}
		sum += p
	}
	check := (10 - sum%10) % 10
	if int(cedula[9]-'0') != check {
		return fmt.Errorf("sri: dígito verificador de cédula inválido: esperado %d", check)
	}
	return nil
}

// ValidarRUC valida el formato de un RUC: 13 dígitos terminados en establecimiento distinto de 000.
// Para personas naturales los 10 primeros dígitos deben ser una cédula válida.
func ValidarRUC(ruc string) error {
	if len(ruc) != 13 || !allDigits(ruc) {
		return fmt.Errorf("sri: el RUC debe tener 13 dígitos")
	}
	if ruc[10:] == "000" {
		return fmt.Errorf("sri: el RUC debe terminar en un establecimiento válido (001...)")
	}
	if ruc[2] < '6' {
		return ValidarCedula(ruc[:10])
	}
	return nil
}

// ValidarIdentificacion valida según el tipo de identificación del comprador.
func ValidarIdentificacion(tipo, numero string) error {
	switch tipo {
	case IdentificacionCedula:
		return ValidarCedula(numero)
	case IdentificacionRUC:
		return ValidarRUC(numero)
	case IdentificacionConsumidorFinal:
		if numero != ConsumidorFinalIdentificacion {
			return fmt.Errorf("sri: consumidor final debe usar %s", ConsumidorFinalIdentificacion)
		}
		return nil
	case IdentificacionPasaporte, IdentificacionExterior:
		if numero == "" {
			return fmt.Errorf("sri: identificación vacía")
		}
		return nil
	}
	return fmt.Errorf("sri: tipo de identificación desconocido %q", tipo)
}
