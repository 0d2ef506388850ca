package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/osiris-api/internal/application/dto"
	"github.com/jhoicas/osiris-api/internal/domain"
)

// errorMapping orden de evaluación: los errores específicos antes que su categoría.
var errorMapping = []struct {
	target error
	status int
	code   string
}{
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrInsufficientStock, fiber.StatusBadRequest, "INSUFFICIENT_STOCK"},
	{domain.ErrTotalsMismatch, fiber.StatusBadRequest, "TOTALS_MISMATCH"},
	{domain.ErrMissingReason, fiber.StatusBadRequest, "MISSING_REASON"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},

	{domain.ErrActivePayments, fiber.StatusConflict, "ACTIVE_PAYMENTS"},
	{domain.ErrInvalidState, fiber.StatusConflict, "INVALID_STATE"},
	{domain.ErrBusinessRule, fiber.StatusConflict, "BUSINESS_RULE"},
	{domain.ErrDuplicate, fiber.StatusConflict, "DUPLICATE"},
	{domain.ErrConflict, fiber.StatusConflict, "CONFLICT"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
}

// fail responde el error de dominio con su código HTTP. Lo no clasificado es 500 y se registra.
func fail(c *fiber.Ctx, err error) error {
	var verr *validationErrors
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos", Details: verr.details})
	}
	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			return c.Status(m.status).JSON(dto.ErrorResponse{Code: m.code, Message: err.Error()})
		}
	}
	requestLogger(c).Error().Err(err).Msg("error no controlado")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

// ErrorHandler manejador de Fiber para errores que no pasaron por fail (rutas inexistentes, pánicos recuperados).
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := "HTTP_ERROR"
		switch fe.Code {
		case fiber.StatusNotFound:
			code = "NOT_FOUND"
		case fiber.StatusMethodNotAllowed:
			code = "METHOD_NOT_ALLOWED"
		}
		return c.Status(fe.Code).JSON(dto.ErrorResponse{Code: code, Message: fe.Message})
	}
	return fail(c, err)
}
