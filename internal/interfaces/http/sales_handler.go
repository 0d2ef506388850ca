package http

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/osiris-api/internal/application/dto"
	"github.com/jhoicas/osiris-api/internal/application/sales"
)

// SalesHandler maneja ventas: creación, emisión, anulación y cobros (protegido).
type SalesHandler struct {
	uc       *sales.SalesUseCase
	validate *validator.Validate
}

// NewSalesHandler construye el handler.
func NewSalesHandler(uc *sales.SalesUseCase) *SalesHandler {
	return &SalesHandler{uc: uc, validate: newValidator()}
}

// Create godoc
// @Summary      Crear venta en borrador
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateSaleRequest  true  "cliente, bodega y líneas"
// @Success      201   {object}  dto.SaleResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/sales [post]
func (h *SalesHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateSaleRequest
	if err := bind(c, h.validate, &in); err != nil {
		return fail(c, err)
	}
	sale, err := h.uc.Create(c.UserContext(), GetUserID(c), in.ToInput())
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromSale(sale))
}

// Emit godoc
// @Summary      Emitir venta: numeración, egreso de stock, cuenta por cobrar y encolado SRI
// @Tags         sales
// @Security     Bearer
// @Param        id  path  string  true  "ID de la venta"
// @Success      200  {object}  dto.EmitResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/sales/{id}/emit [post]
func (h *SalesHandler) Emit(c *fiber.Ctx) error {
	res, err := h.uc.Emit(c.UserContext(), GetUserID(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromEmitResult(res))
}

// Void anula una venta con motivo obligatorio.
func (h *SalesHandler) Void(c *fiber.Ctx) error {
	var in dto.VoidSaleRequest
	if err := bind(c, h.validate, &in); err != nil {
		return fail(c, err)
	}
	sale, err := h.uc.Void(c.UserContext(), GetUserID(c), c.Params("id"), sales.VoidInput{
		Reason:               in.Reason,
		ConfirmedInSRIPortal: in.ConfirmedInSRIPortal,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromSale(sale))
}

// GetByID devuelve la venta.
func (h *SalesHandler) GetByID(c *fiber.Ctx) error {
	sale, err := h.uc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromSale(sale))
}

// RegisterPayment aplica un cobro o una retención del cliente.
func (h *SalesHandler) RegisterPayment(c *fiber.Ctx) error {
	var in dto.PaymentRequest
	if err := bind(c, h.validate, &in); err != nil {
		return fail(c, err)
	}
	rec, err := h.uc.RegisterPayment(c.UserContext(), GetUserID(c), c.Params("id"), sales.PaymentInput{
		Amount:      in.Amount,
		Withholding: in.Withholding,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromReceivable(rec))
}

// Receivable devuelve la cuenta por cobrar de la venta.
func (h *SalesHandler) Receivable(c *fiber.Ctx) error {
	rec, err := h.uc.Receivable(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromReceivable(rec))
}
