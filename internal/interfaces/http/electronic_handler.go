package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/osiris-api/internal/application/dto"
	"github.com/jhoicas/osiris-api/internal/application/electronic"
)

// ElectronicHandler expone la cola de facturación electrónica (protegido).
type ElectronicHandler struct {
	orchestrator *electronic.Orchestrator
	now          func() time.Time
}

// NewElectronicHandler construye el handler.
func NewElectronicHandler(o *electronic.Orchestrator) *ElectronicHandler {
	return &ElectronicHandler{orchestrator: o, now: time.Now}
}

// Enqueue godoc
// @Summary      Encolar comprobante para el SRI (idempotente)
// @Tags         fe
// @Security     Bearer
// @Param        tipo        path  string  true  "FACTURA | RETENCION"
// @Param        entidad_id  path  string  true  "ID de la venta o retención"
// @Success      202  {object}  dto.TaskResponse
// @Router       /api/fe/{tipo}/{entidad_id}/enqueue [post]
func (h *ElectronicHandler) Enqueue(c *fiber.Ctx) error {
	task, err := h.orchestrator.Enqueue(c.UserContext(), GetUserID(c), docType(c), c.Params("entidad_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.FromTask(task))
}

// Process procesa de inmediato la tarea del comprobante sin esperar al barrido.
func (h *ElectronicHandler) Process(c *fiber.Ctx) error {
	task, err := h.orchestrator.Process(c.UserContext(), docType(c), c.Params("entidad_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromTask(task))
}

// DocumentByReference devuelve el comprobante vigente de la entidad.
func (h *ElectronicHandler) DocumentByReference(c *fiber.Ctx) error {
	doc, err := h.orchestrator.DocumentByReference(c.UserContext(), docType(c), c.Params("entidad_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromDocument(doc))
}

func (h *ElectronicHandler) Document(c *fiber.Ctx) error {
	doc, err := h.orchestrator.Document(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromDocument(doc))
}

func (h *ElectronicHandler) History(c *fiber.Ctx) error {
	rows, err := h.orchestrator.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.FromHistory(rows))
}

// Sweep ejecuta un barrido manual de la cola (mismo trabajo que el worker).
func (h *ElectronicHandler) Sweep(c *fiber.Ctx) error {
	n, err := h.orchestrator.ProcessQueue(c.UserContext(), h.now())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SweepResponse{Processed: n})
}

func docType(c *fiber.Ctx) string {
	return strings.ToUpper(c.Params("tipo"))
}
