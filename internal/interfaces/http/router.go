package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/osiris-api/internal/application/electronic"
	"github.com/jhoicas/osiris-api/internal/application/inventory"
	"github.com/jhoicas/osiris-api/internal/application/purchases"
	"github.com/jhoicas/osiris-api/internal/application/sales"
	"github.com/jhoicas/osiris-api/internal/infrastructure/cache"
)

// DefaultIdempotencyTTL vigencia de una respuesta idempotente.
const DefaultIdempotencyTTL = 24 * time.Hour

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Inventory      *inventory.MovementUseCase
	Sales          *sales.SalesUseCase
	Purchases      *purchases.PurchasesUseCase
	Electronic     *electronic.Orchestrator
	Idempotency    cache.IdempotencyStore
	IdempotencyTTL time.Duration
	JWTSecret      string
	JWTIssuer      string
	ServiceName    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.ServiceName})
	})

	ttl := deps.IdempotencyTTL
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if deps.Idempotency == nil {
		deps.Idempotency = cache.NewInMemoryIdempotencyStore()
	}
	idem := Idempotency(deps.Idempotency, ttl)

	// Rutas protegidas (requieren Bearer Token)
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))

	// Inventario
	inv := api.Group("/inventory")
	inventoryHandler := NewInventoryHandler(deps.Inventory)
	inv.Post("/movements", idem, inventoryHandler.CreateMovement)
	inv.Post("/movements/:id/confirm", idem, inventoryHandler.ConfirmMovement)
	inv.Get("/kardex", inventoryHandler.Kardex)
	inv.Get("/valuation", inventoryHandler.Valuation)
	inv.Post("/stock/deactivate", inventoryHandler.DeactivateStock)

	// Ventas
	salesGroup := api.Group("/sales")
	salesHandler := NewSalesHandler(deps.Sales)
	salesGroup.Post("/", idem, salesHandler.Create)
	salesGroup.Get("/:id", salesHandler.GetByID)
	salesGroup.Post("/:id/emit", idem, salesHandler.Emit)
	salesGroup.Post("/:id/void", idem, salesHandler.Void)
	salesGroup.Post("/:id/payments", idem, salesHandler.RegisterPayment)
	salesGroup.Get("/:id/receivable", salesHandler.Receivable)

	// Compras
	purchasesGroup := api.Group("/purchases")
	purchaseHandler := NewPurchaseHandler(deps.Purchases)
	purchasesGroup.Post("/", idem, purchaseHandler.Create)
	purchasesGroup.Get("/:id", purchaseHandler.GetByID)
	purchasesGroup.Post("/:id/void", idem, purchaseHandler.Void)
	purchasesGroup.Post("/:id/payments", idem, purchaseHandler.RegisterPayment)
	purchasesGroup.Post("/:id/retentions", idem, purchaseHandler.CreateRetention)
	purchasesGroup.Get("/:id/retentions", purchaseHandler.Retentions)

	// Facturación electrónica
	fe := api.Group("/fe")
	feHandler := NewElectronicHandler(deps.Electronic)
	fe.Post("/sweep", feHandler.Sweep)
	fe.Get("/documents/:id", feHandler.Document)
	fe.Get("/documents/:id/history", feHandler.History)
	fe.Get("/:tipo/:entidad_id", feHandler.DocumentByReference)
	fe.Post("/:tipo/:entidad_id/enqueue", idem, feHandler.Enqueue)
	fe.Post("/:tipo/:entidad_id/process", feHandler.Process)
}
