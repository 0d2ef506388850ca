package http

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/osiris-api/internal/application/dto"
	"github.com/jhoicas/osiris-api/internal/application/inventory"
)

// InventoryHandler maneja las peticiones HTTP de movimientos, kardex y valoración (protegido).
type InventoryHandler struct {
	uc       *inventory.MovementUseCase
	validate *validator.Validate
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(uc *inventory.MovementUseCase) *InventoryHandler {
	return &InventoryHandler{uc: uc, validate: newValidator()}
}

// CreateMovement godoc
// @Summary      Crear movimiento en borrador
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateMovementRequest  true  "tipo, bodega(s) y líneas"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [post]
func (h *InventoryHandler) CreateMovement(c *fiber.Ctx) error {
	var in dto.CreateMovementRequest
	if err := bind(c, h.validate, &in); err != nil {
		return fail(c, err)
	}
	mov, err := h.uc.CreateDraft(c.UserContext(), GetUserID(c), in.ToInput())
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromMovement(mov))
}

// ConfirmMovement godoc
// @Summary      Confirmar movimiento (aplica stock y costo promedio)
// @Tags         inventory
// @Security     Bearer
// @Param        id    path  string  true  "ID del movimiento"
// @Success      200   {object}  dto.MovementResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/movements/{id}/confirm [post]
func (h *InventoryHandler) ConfirmMovement(c *fiber.Ctx) error {
	var in dto.ConfirmMovementRequest
	if len(c.Body()) > 0 {
		if err := bind(c, h.validate, &in); err != nil {
			return fail(c, err)
		}
	}
	mov, err := h.uc.Confirm(c.UserContext(), GetUserID(c), inventory.ConfirmInput{
		MovementID:       c.Params("id"),
		AdjustmentReason: in.AdjustmentReason,
		AuthorizedBy:     in.AuthorizedBy,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromMovement(mov))
}

// Kardex godoc
// @Summary      Kardex de un producto en una bodega
// @Tags         inventory
// @Security     Bearer
// @Param        product_id    query  string  true   "Producto"
// @Param        warehouse_id  query  string  true   "Bodega"
// @Param        from          query  string  false  "Desde (AAAA-MM-DD o RFC3339)"
// @Param        to            query  string  false  "Hasta (AAAA-MM-DD o RFC3339)"
// @Success      200  {object}  dto.KardexResponse
// @Router       /api/inventory/kardex [get]
func (h *InventoryHandler) Kardex(c *fiber.Ctx) error {
	q := inventory.KardexQuery{ProductID: c.Query("product_id"), WarehouseID: c.Query("warehouse_id")}
	var details []dto.ValidationDetail
	if q.ProductID == "" {
		details = append(details, dto.ValidationDetail{Field: "product_id", Message: "campo obligatorio"})
	}
	if q.WarehouseID == "" {
		details = append(details, dto.ValidationDetail{Field: "warehouse_id", Message: "campo obligatorio"})
	}
	for _, p := range []struct {
		field string
		dst   **time.Time
		end   bool
	}{{"from", &q.From, false}, {"to", &q.To, true}} {
		raw := c.Query(p.field)
		if raw == "" {
			continue
		}
		t, err := parseQueryDate(raw, p.end)
		if err != nil {
			details = append(details, dto.ValidationDetail{Field: p.field, Message: "fecha inválida"})
			continue
		}
		*p.dst = &t
	}
	if len(details) > 0 {
		return fail(c, &validationErrors{details: details})
	}
	report, err := h.uc.Kardex(c.UserContext(), q)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromKardex(report))
}

// Valuation godoc
// @Summary      Valoración del inventario al costo promedio
// @Tags         inventory
// @Security     Bearer
// @Param        warehouse_id  query  string  false  "Filtrar por bodega. Vacío = todas."
// @Success      200  {object}  dto.ValuationResponse
// @Router       /api/inventory/valuation [get]
func (h *InventoryHandler) Valuation(c *fiber.Ctx) error {
	var warehouseID *string
	if w := c.Query("warehouse_id"); w != "" {
		warehouseID = &w
	}
	report, err := h.uc.Valuation(c.UserContext(), warehouseID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromValuation(report))
}

// DeactivateStock desactiva el saldo de un producto en una bodega; exige saldo cero.
func (h *InventoryHandler) DeactivateStock(c *fiber.Ctx) error {
	var in dto.DeactivateStockRequest
	if err := bind(c, h.validate, &in); err != nil {
		return fail(c, err)
	}
	if err := h.uc.DeactivateStock(c.UserContext(), GetUserID(c), in.ProductID, in.WarehouseID); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// parseQueryDate acepta AAAA-MM-DD o RFC3339. Una fecha sin hora como límite final cubre el día completo.
func parseQueryDate(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
