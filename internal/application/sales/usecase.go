// Package sales orquesta el ciclo de vida de la venta: borrador, emisión con egreso de
// inventario y cuenta por cobrar, encolado FE-EC y anulación compensatoria.
package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/application/commercial"
	"github.com/jhoicas/osiris-api/internal/application/inventory"
	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
	"github.com/jhoicas/osiris-api/internal/domain/tax"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

const auditEntity = "venta"

// Config serie de facturación del punto de venta.
type Config struct {
	Establishment string
	EmissionPoint string
}

// SalesUseCase casos de uso de ventas.
type SalesUseCase struct {
	txRunner  repository.TxRunner
	repos     repository.Repos
	inventory commercial.InventoryPort
	enqueuer  commercial.Enqueuer
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
}

// NewSalesUseCase construye el caso de uso.
func NewSalesUseCase(txRunner repository.TxRunner, repos repository.Repos, inv commercial.InventoryPort, enqueuer commercial.Enqueuer, cfg Config, log zerolog.Logger) *SalesUseCase {
	if cfg.Establishment == "" {
		cfg.Establishment = "001"
	}
	if cfg.EmissionPoint == "" {
		cfg.EmissionPoint = "001"
	}
	return &SalesUseCase{
		txRunner:  txRunner,
		repos:     repos,
		inventory: inv,
		enqueuer:  enqueuer,
		cfg:       cfg,
		log:       log.With().Str("component", "ventas").Logger(),
		now:       time.Now,
	}
}

// WithClock reemplaza el reloj (pruebas).
func (uc *SalesUseCase) WithClock(now func() time.Time) *SalesUseCase {
	uc.now = now
	return uc
}

// CreateInput datos de una venta nueva.
type CreateInput struct {
	CustomerID    string
	Customer      *entity.PartySnapshot // nil: consumidor final
	WarehouseID   string
	EmissionType  string // ELECTRONICA por defecto
	Lines         []commercial.LineInput
	ExpectedTotal *decimal.Decimal
}

// Create valida referencias, congela los impuestos por línea y persiste la venta en BORRADOR.
func (uc *SalesUseCase) Create(ctx context.Context, actor string, in CreateInput) (*entity.Sale, error) {
	emission := in.EmissionType
	if emission == "" {
		emission = entity.EmissionTypeElectronica
	}
	if emission != entity.EmissionTypeElectronica && emission != entity.EmissionTypeFisica {
		return nil, fmt.Errorf("%w: tipo de emisión %q", domain.ErrInvalidInput, in.EmissionType)
	}
	customer, err := commercial.ResolveCustomer(in.Customer)
	if err != nil {
		return nil, err
	}
	checks := []repository.ReferenceCheck{{Field: "bodega", ID: in.WarehouseID, Checker: uc.repos.Warehouses}}
	for _, l := range in.Lines {
		checks = append(checks, repository.ReferenceCheck{Field: "producto", ID: l.ProductID, Checker: uc.repos.Products})
	}
	if err := repository.CheckReferences(ctx, checks...); err != nil {
		return nil, err
	}

	var sale *entity.Sale
	err = uc.txRunner.Run(ctx, func(r repository.Repos) error {
		now := uc.now()
		lines, totals, err := commercial.PriceLines(ctx, r, actor, now, in.Lines, in.ExpectedTotal)
		if err != nil {
			return err
		}
		sale = &entity.Sale{
			ID:            uuid.New().String(),
			CustomerID:    in.CustomerID,
			Customer:      customer,
			WarehouseID:   in.WarehouseID,
			Status:        entity.SaleStatusBorrador,
			EmissionType:  emission,
			Establishment: uc.cfg.Establishment,
			EmissionPoint: uc.cfg.EmissionPoint,
			IssueDate:     now,
			Totals:        totals,
			Active:        true,
			AuditedRecord: entity.NewAuditedRecord(actor, now),
		}
		for _, l := range lines {
			sale.Lines = append(sale.Lines, entity.SaleLine{
				ID:          l.ID,
				SaleID:      sale.ID,
				ProductID:   l.ProductID,
				Description: l.Description,
				Quantity:    l.Quantity,
				UnitPrice:   l.Price,
				Discount:    l.Discount,
				Subtotal:    l.Subtotal,
				Taxes:       l.Taxes,
			})
		}
		if err := r.Sales.Create(ctx, sale); err != nil {
			return err
		}
		return r.Audit.Append(ctx, commercial.AuditRow(auditEntity, sale.ID, "CREAR", "", entity.SaleStatusBorrador, actor,
			"total "+totals.Total.StringFixed(2), now))
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// EmitResult resultado de la emisión.
type EmitResult struct {
	Sale       *entity.Sale
	Receivable *entity.Receivable
	MovementID string
	Task       *entity.SRITask // nil en emisión física
}

// Emit emite la venta en una sola transacción: valida stock, confirma el EGRESO, asigna el
// secuencial, crea la cuenta por cobrar y, si es electrónica, encola la factura.
func (uc *SalesUseCase) Emit(ctx context.Context, actor, saleID string) (*EmitResult, error) {
	var res EmitResult
	err := uc.txRunner.Run(ctx, func(r repository.Repos) error {
		sale, err := r.Sales.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != entity.SaleStatusBorrador {
			return fmt.Errorf("%w: la venta %s está %s", domain.ErrInvalidState, sale.ID, sale.Status)
		}
		if err := uc.checkStock(ctx, r, sale); err != nil {
			return err
		}

		draft := inventory.DraftInput{
			Type:        entity.MovementTypeEgreso,
			WarehouseID: sale.WarehouseID,
			Reference:   entity.RefPrefixVenta + sale.ID,
		}
		for _, l := range sale.Lines {
			draft.Lines = append(draft.Lines, inventory.LineInput{ProductID: l.ProductID, Quantity: l.Quantity})
		}
		mov, err := uc.inventory.CreateDraftInTx(ctx, r, actor, draft)
		if err != nil {
			return err
		}
		if err := uc.inventory.ConfirmInTx(ctx, r, actor, mov); err != nil {
			return err
		}

		now := uc.now()
		seq, err := r.Sequences.Next(ctx, sequenceKey(entity.DocumentTypeFactura, sale.Establishment, sale.EmissionPoint))
		if err != nil {
			return err
		}
		sale.Sequential = sri.FormatSecuencial(seq)
		sale.IssueDate = now
		sale.Status = entity.SaleStatusEmitida
		sale.Touch(actor, now)
		if err := r.Sales.UpdateHeader(ctx, sale); err != nil {
			return err
		}

		rec := &entity.Receivable{
			ID:            uuid.New().String(),
			SaleID:        sale.ID,
			Total:         sale.Totals.Total,
			Paid:          decimal.Zero,
			Withheld:      decimal.Zero,
			Balance:       sale.Totals.Total,
			Status:        entity.AccountStatusAbierta,
			AuditedRecord: entity.NewAuditedRecord(actor, now),
		}
		if err := r.Receivables.Create(ctx, rec); err != nil {
			return err
		}
		if err := r.Audit.Append(ctx, commercial.AuditRow(auditEntity, sale.ID, "EMITIR", entity.SaleStatusBorrador, entity.SaleStatusEmitida,
			actor, sale.DocumentNumber(), now)); err != nil {
			return err
		}

		if sale.EmissionType == entity.EmissionTypeElectronica {
			task, err := uc.enqueuer.EnqueueInTx(ctx, r, actor, entity.DocumentTypeFactura, sale.ID)
			if err != nil {
				return err
			}
			res.Task = task
		}
		res.Sale = sale
		res.Receivable = rec
		res.MovementID = mov.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("venta_id", res.Sale.ID).Str("numero", res.Sale.DocumentNumber()).
		Str("total", res.Sale.Totals.Total.StringFixed(2)).Msg("venta emitida")
	return &res, nil
}

// checkStock compara la cantidad pedida por producto con el stock de la bodega.
// La confirmación del egreso vuelve a validarlo bajo bloqueo.
func (uc *SalesUseCase) checkStock(ctx context.Context, r repository.Repos, sale *entity.Sale) error {
	required := map[string]decimal.Decimal{}
	var order []string
	for _, l := range sale.Lines {
		if _, ok := required[l.ProductID]; !ok {
			order = append(order, l.ProductID)
		}
		required[l.ProductID] = required[l.ProductID].Add(l.Quantity)
	}
	for _, productID := range order {
		available := decimal.Zero
		st, err := r.Stock.Get(ctx, productID, sale.WarehouseID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return err
		default:
			available = st.Quantity
		}
		if available.LessThan(required[productID]) {
			return fmt.Errorf("%w: producto %s en bodega %s: disponible %s, requerido %s",
				domain.ErrInsufficientStock, productID, sale.WarehouseID, available.StringFixed(4), required[productID].StringFixed(4))
		}
	}
	return nil
}

// VoidInput datos de la anulación.
type VoidInput struct {
	Reason string
	// ConfirmedInSRIPortal confirma que el comprobante autorizado ya se anuló en el portal del SRI.
	ConfirmedInSRIPortal bool
}

// Void anula una venta EMITIDA sin pagos ni retenciones: revierte el egreso con un AJUSTE,
// desactiva los snapshots de impuestos y anula la cuenta por cobrar.
func (uc *SalesUseCase) Void(ctx context.Context, actor, saleID string, in VoidInput) (*entity.Sale, error) {
	reason := strings.TrimSpace(in.Reason)
	var sale *entity.Sale
	err := uc.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		sale, err = r.Sales.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != entity.SaleStatusEmitida {
			return fmt.Errorf("%w: solo se anulan ventas EMITIDAS (estado %s)", domain.ErrInvalidState, sale.Status)
		}
		rec, err := r.Receivables.GetBySaleIDForUpdate(ctx, sale.ID)
		if err != nil {
			return err
		}
		if rec.HasApplications() {
			return fmt.Errorf("%w: venta %s", domain.ErrActivePayments, sale.DocumentNumber())
		}

		doc, err := r.Documents.GetByReference(ctx, entity.DocumentTypeFactura, sale.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return err
		case doc.Status == entity.DocStatusAutorizado:
			if reason == "" {
				return fmt.Errorf("%w: la anulación de una factura autorizada requiere motivo", domain.ErrMissingReason)
			}
			if !in.ConfirmedInSRIPortal {
				return fmt.Errorf("%w: confirme la anulación del comprobante en el portal del SRI", domain.ErrInvalidInput)
			}
		case !doc.IsTerminal():
			return fmt.Errorf("%w: la factura está en proceso con el SRI (%s)", domain.ErrInvalidState, doc.Status)
		}

		now := uc.now()
		if reason == "" {
			reason = "Anulación de venta " + sale.DocumentNumber()
		}
		if err := uc.reverseEgress(ctx, r, actor, sale, reason); err != nil {
			return err
		}
		if err := r.Sales.DeactivateTaxes(ctx, sale.ID); err != nil {
			return err
		}

		rec.Status = entity.AccountStatusAnulada
		rec.Balance = decimal.Zero
		rec.Touch(actor, now)
		if err := r.Receivables.Update(ctx, rec); err != nil {
			return err
		}

		sale.Status = entity.SaleStatusAnulada
		sale.VoidReason = reason
		sale.Touch(actor, now)
		if err := r.Sales.UpdateHeader(ctx, sale); err != nil {
			return err
		}
		return r.Audit.Append(ctx, commercial.AuditRow(auditEntity, sale.ID, "ANULAR", entity.SaleStatusEmitida, entity.SaleStatusAnulada,
			actor, reason, now))
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("venta_id", sale.ID).Str("motivo", sale.VoidReason).Msg("venta anulada")
	return sale, nil
}

// reverseEgress confirma un AJUSTE positivo con los costos registrados en el egreso original.
func (uc *SalesUseCase) reverseEgress(ctx context.Context, r repository.Repos, actor string, sale *entity.Sale, reason string) error {
	movs, err := r.Movements.ListByReference(ctx, entity.RefPrefixVenta+sale.ID)
	if err != nil {
		return err
	}
	var egress *entity.InventoryMovement
	for _, m := range movs {
		if m.Type == entity.MovementTypeEgreso && m.State == entity.MovementStateConfirmado {
			egress = m
			break
		}
	}
	if egress == nil {
		return fmt.Errorf("%w: egreso de la venta %s", domain.ErrNotFound, sale.ID)
	}

	draft := inventory.DraftInput{
		Type:             entity.MovementTypeAjuste,
		WarehouseID:      egress.WarehouseID,
		Reference:        entity.RefPrefixAnulacionVenta + sale.ID,
		AdjustmentReason: reason,
	}
	for _, l := range egress.Lines {
		cost := l.UnitCost
		draft.Lines = append(draft.Lines, inventory.LineInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: &cost})
	}
	mov, err := uc.inventory.CreateDraftInTx(ctx, r, actor, draft)
	if err != nil {
		return err
	}
	mov.AuthorizedBy = actor
	return uc.inventory.ConfirmInTx(ctx, r, actor, mov)
}

// PaymentInput pago o retención recibida del cliente.
type PaymentInput struct {
	Amount      decimal.Decimal
	Withholding bool
}

// RegisterPayment aplica un pago o una retención del cliente a la cuenta por cobrar.
func (uc *SalesUseCase) RegisterPayment(ctx context.Context, actor, saleID string, in PaymentInput) (*entity.Receivable, error) {
	amount := tax.Q2(in.Amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: el monto debe ser mayor a cero", domain.ErrInvalidInput)
	}
	var rec *entity.Receivable
	err := uc.txRunner.Run(ctx, func(r repository.Repos) error {
		sale, err := r.Sales.GetByID(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != entity.SaleStatusEmitida {
			return fmt.Errorf("%w: la venta %s está %s", domain.ErrInvalidState, sale.ID, sale.Status)
		}
		rec, err = r.Receivables.GetBySaleIDForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(rec.Balance) {
			return fmt.Errorf("%w: el monto %s supera el saldo %s", domain.ErrBusinessRule, amount.StringFixed(2), rec.Balance.StringFixed(2))
		}
		now := uc.now()
		before := rec.Status
		rec.Apply(amount, in.Withholding)
		rec.Touch(actor, now)
		if err := r.Receivables.Update(ctx, rec); err != nil {
			return err
		}
		action := "PAGO"
		if in.Withholding {
			action = "RETENCION_CLIENTE"
		}
		return r.Audit.Append(ctx, commercial.AuditRow("cuenta_por_cobrar", rec.ID, action, before, rec.Status, actor, amount.StringFixed(2), now))
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Get devuelve la venta con sus líneas e impuestos.
func (uc *SalesUseCase) Get(ctx context.Context, id string) (*entity.Sale, error) {
	return uc.repos.Sales.GetByID(ctx, id)
}

// Receivable devuelve la cuenta por cobrar de la venta.
func (uc *SalesUseCase) Receivable(ctx context.Context, saleID string) (*entity.Receivable, error) {
	return uc.repos.Receivables.GetBySaleID(ctx, saleID)
}

func sequenceKey(docType, establishment, point string) string {
	return docType + ":" + establishment + "-" + point
}
