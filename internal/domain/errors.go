package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Reglas de negocio: la transacción completa se revierte.
	ErrBusinessRule      = errors.New("regla de negocio violada")
	ErrInsufficientStock error = &ruleError{msg: "stock insuficiente"}
	ErrActivePayments    error = &ruleError{msg: "el documento tiene pagos o retenciones aplicados"}
	ErrInvalidState      error = &ruleError{msg: "transición de estado no permitida"}

	// Validación específica.
	ErrMissingReason  error = &validationError{msg: "motivo obligatorio"}
	ErrTotalsMismatch error = &validationError{msg: "los totales del documento no cuadran"}

	// Gateway SRI.
	ErrTransientGateway  = errors.New("falla transitoria de comunicación con el SRI")
	ErrTerminalRejection = errors.New("documento rechazado por el SRI")
)

// ruleError es una violación de regla de negocio; errors.Is(err, ErrBusinessRule) es true.
type ruleError struct{ msg string }

func (e *ruleError) Error() string        { return e.msg }
func (e *ruleError) Is(target error) bool { return target == ErrBusinessRule }

// validationError es una entrada inválida específica; errors.Is(err, ErrInvalidInput) es true.
type validationError struct{ msg string }

func (e *validationError) Error() string        { return e.msg }
func (e *validationError) Is(target error) bool { return target == ErrInvalidInput }
