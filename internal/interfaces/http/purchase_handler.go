package http

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/osiris-api/internal/application/dto"
	"github.com/jhoicas/osiris-api/internal/application/purchases"
)

// PurchaseHandler maneja compras, sus anulaciones, pagos y retenciones (protegido).
type PurchaseHandler struct {
	uc       *purchases.PurchasesUseCase
	validate *validator.Validate
}

// NewPurchaseHandler construye el handler.
func NewPurchaseHandler(uc *purchases.PurchasesUseCase) *PurchaseHandler {
	return &PurchaseHandler{uc: uc, validate: newValidator()}
}

// Create godoc
// @Summary      Registrar compra (ingreso de stock y cuenta por pagar)
// @Tags         purchases
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreatePurchaseRequest  true  "proveedor, factura del proveedor y líneas"
// @Success      201   {object}  dto.PurchaseResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/purchases [post]
func (h *PurchaseHandler) Create(c *fiber.Ctx) error {
	var in dto.CreatePurchaseRequest
	if err := bind(c, h.validate, &in); err != nil {
		return fail(c, err)
	}
	p, err := h.uc.Create(c.UserContext(), GetUserID(c), in.ToInput())
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromPurchase(p))
}

func (h *PurchaseHandler) GetByID(c *fiber.Ctx) error {
	p, err := h.uc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromPurchase(p))
}

// Void anula la compra; falla si hay pagos o si el stock ingresado ya se consumió.
func (h *PurchaseHandler) Void(c *fiber.Ctx) error {
	var in dto.VoidPurchaseRequest
	if err := bind(c, h.validate, &in); err != nil {
		return fail(c, err)
	}
	p, err := h.uc.Void(c.UserContext(), GetUserID(c), c.Params("id"), in.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromPurchase(p))
}

func (h *PurchaseHandler) RegisterPayment(c *fiber.Ctx) error {
	var in dto.PaymentRequest
	if err := bind(c, h.validate, &in); err != nil {
		return fail(c, err)
	}
	pay, err := h.uc.RegisterPayment(c.UserContext(), GetUserID(c), c.Params("id"), in.Amount)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromPayable(pay))
}

// CreateRetention godoc
// @Summary      Emitir comprobante de retención sobre una compra
// @Tags         purchases
// @Security     Bearer
// @Param        id    path  string                 true  "ID de la compra"
// @Param        body  body  dto.RetentionRequest   true  "impuestos retenidos"
// @Success      201   {object}  dto.RetentionResponse
// @Router       /api/purchases/{id}/retentions [post]
func (h *PurchaseHandler) CreateRetention(c *fiber.Ctx) error {
	var in dto.RetentionRequest
	if err := bind(c, h.validate, &in); err != nil {
		return fail(c, err)
	}
	ret, task, err := h.uc.CreateRetention(c.UserContext(), GetUserID(c), c.Params("id"), in.ToInput())
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromRetention(ret, task))
}

func (h *PurchaseHandler) Retentions(c *fiber.Ctx) error {
	rets, err := h.uc.Retentions(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	out := make([]dto.RetentionResponse, 0, len(rets))
	for _, r := range rets {
		out = append(out, dto.FromRetention(r, nil))
	}
	return c.JSON(out)
}
