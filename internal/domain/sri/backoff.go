// Package sri contiene las reglas puras de reintento de la cola de facturación electrónica.
package sri

import "time"

// MaxDocumentAttempts tope de intentos por documento considerado por el barrido de cola.
const MaxDocumentAttempts = 5

// SweepStatuses estados de documento que el barrido vuelve a procesar.
// FIRMADO se incluye para retomar documentos cuyo envío se interrumpió tras firmar.
var SweepStatuses = []string{"EN_COLA", "FIRMADO", "RECIBIDO"}

// maxBackoffExp acota el exponente para no desbordar time.Duration.
const maxBackoffExp = 16

// NetworkBackoff espera tras una falla de red: 2^(intentos-1) segundos (1s, 2s, 4s...).
func NetworkBackoff(attempts int) time.Duration {
	return pow2Seconds(attempts - 1)
}

// ReceivedBackoff espera para volver a consultar un documento RECIBIDO: 2^max(intentos-1,1) segundos.
func ReceivedBackoff(attempts int) time.Duration {
	exp := attempts - 1
	if exp < 1 {
		exp = 1
	}
	return pow2Seconds(exp)
}

// NextRetry devuelve el instante del próximo intento.
func NextRetry(now time.Time, wait time.Duration) time.Time {
	return now.Add(wait)
}

func pow2Seconds(exp int) time.Duration {
	if exp < 0 {
		exp = 0
	}
	if exp > maxBackoffExp {
		exp = maxBackoffExp
	}
	return time.Duration(1<<uint(exp)) * time.Second
}
