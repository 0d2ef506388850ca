// Package purchases registra compras con su ingreso de inventario y cuenta por pagar,
// anula compras y emite comprobantes de retención.
package purchases

import (
	"context"
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

const auditEntity = "compra"

var hundred = decimal.NewFromInt(100)

// Config serie de emisión de retenciones.
type Config struct {
	Establishment string
	EmissionPoint string
}

// PurchasesUseCase casos de uso de compras y retenciones.
type PurchasesUseCase struct {
	txRunner  repository.TxRunner
	repos     repository.Repos
	inventory commercial.InventoryPort
	enqueuer  commercial.Enqueuer
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
}

// NewPurchasesUseCase construye el caso de uso.
func NewPurchasesUseCase(txRunner repository.TxRunner, repos repository.Repos, inv commercial.InventoryPort, enqueuer commercial.Enqueuer, cfg Config, log zerolog.Logger) *PurchasesUseCase {
	if cfg.Establishment == "" {
		cfg.Establishment = "001"
	}
	if cfg.EmissionPoint == "" {
		cfg.EmissionPoint = "001"
	}
	return &PurchasesUseCase{
		txRunner:  txRunner,
		repos:     repos,
		inventory: inv,
		enqueuer:  enqueuer,
		cfg:       cfg,
		log:       log.With().Str("component", "compras").Logger(),
		now:       time.Now,
	}
}

// WithClock reemplaza el reloj (pruebas).
func (uc *PurchasesUseCase) WithClock(now func() time.Time) *PurchasesUseCase {
	uc.now = now
	return uc
}

// CreateInput compra a registrar. El precio de cada línea es el costo unitario.
type CreateInput struct {
	SupplierID     string
	Supplier       entity.PartySnapshot
	WarehouseID    string
	SupplierNumber string
	IssueDate      time.Time
	Lines          []commercial.LineInput
	ExpectedTotal  *decimal.Decimal
}

// Create registra la compra directamente en REGISTRADA: congela impuestos, confirma el INGRESO
// (recalcula el costo promedio) y crea la cuenta por pagar, todo en una transacción.
func (uc *PurchasesUseCase) Create(ctx context.Context, actor string, in CreateInput) (*entity.Purchase, error) {
	supplier, err := commercial.ResolveSupplier(&in.Supplier)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.SupplierNumber) == "" {
		return nil, fmt.Errorf("%w: número de factura del proveedor obligatorio", domain.ErrInvalidInput)
	}
	checks := []repository.ReferenceCheck{{Field: "bodega", ID: in.WarehouseID, Checker: uc.repos.Warehouses}}
	for _, l := range in.Lines {
		checks = append(checks, repository.ReferenceCheck{Field: "producto", ID: l.ProductID, Checker: uc.repos.Products})
	}
	if err := repository.CheckReferences(ctx, checks...); err != nil {
		return nil, err
	}

	var purchase *entity.Purchase
	err = uc.txRunner.Run(ctx, func(r repository.Repos) error {
		now := uc.now()
		lines, totals, err := commercial.PriceLines(ctx, r, actor, now, in.Lines, in.ExpectedTotal)
		if err != nil {
			return err
		}
		issue := in.IssueDate
		if issue.IsZero() {
			issue = now
		}
		purchase = &entity.Purchase{
			ID:             uuid.New().String(),
			SupplierID:     in.SupplierID,
			Supplier:       supplier,
			WarehouseID:    in.WarehouseID,
			Status:         entity.PurchaseStatusRegistrada,
			SupplierNumber: strings.TrimSpace(in.SupplierNumber),
			IssueDate:      issue,
			Totals:         totals,
			Active:         true,
			AuditedRecord:  entity.NewAuditedRecord(actor, now),
		}
		draft := inventory.DraftInput{
			Type:        entity.MovementTypeIngreso,
			WarehouseID: in.WarehouseID,
			Reference:   entity.RefPrefixCompra + purchase.ID,
		}
		for _, l := range lines {
			purchase.Lines = append(purchase.Lines, entity.PurchaseLine{
				ID:          l.ID,
				PurchaseID:  purchase.ID,
				ProductID:   l.ProductID,
				Description: l.Description,
				Quantity:    l.Quantity,
				UnitCost:    l.Price,
				Discount:    l.Discount,
				Subtotal:    l.Subtotal,
				Taxes:       l.Taxes,
			})
			// El costo de inventario es el neto de descuento, sin impuestos.
			cost := tax.Q4(l.Subtotal.Div(l.Quantity))
			draft.Lines = append(draft.Lines, inventory.LineInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: &cost})
		}
		if err := r.Purchases.Create(ctx, purchase); err != nil {
			return err
		}

		mov, err := uc.inventory.CreateDraftInTx(ctx, r, actor, draft)
		if err != nil {
			return err
		}
		if err := uc.inventory.ConfirmInTx(ctx, r, actor, mov); err != nil {
			return err
		}

		if err := r.Payables.Create(ctx, &entity.Payable{
			ID:            uuid.New().String(),
			PurchaseID:    purchase.ID,
			Total:         totals.Total,
			Paid:          decimal.Zero,
			Withheld:      decimal.Zero,
			Balance:       totals.Total,
			Status:        entity.AccountStatusAbierta,
			AuditedRecord: entity.NewAuditedRecord(actor, now),
		}); err != nil {
			return err
		}
		return r.Audit.Append(ctx, commercial.AuditRow(auditEntity, purchase.ID, "REGISTRAR", "", entity.PurchaseStatusRegistrada,
			actor, purchase.SupplierNumber, now))
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("compra_id", purchase.ID).Str("proveedor", purchase.Supplier.Identification).
		Str("total", purchase.Totals.Total.StringFixed(2)).Msg("compra registrada")
	return purchase, nil
}

// Void anula una compra REGISTRADA sin pagos ni retenciones con un AJUSTE negativo.
// Falla con stock insuficiente si la mercadería ya salió.
func (uc *PurchasesUseCase) Void(ctx context.Context, actor, purchaseID, reason string) (*entity.Purchase, error) {
	reason = strings.TrimSpace(reason)
	var purchase *entity.Purchase
	err := uc.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		purchase, err = r.Purchases.GetForUpdate(ctx, purchaseID)
		if err != nil {
			return err
		}
		if purchase.Status != entity.PurchaseStatusRegistrada {
			return fmt.Errorf("%w: la compra %s está %s", domain.ErrInvalidState, purchase.ID, purchase.Status)
		}
		payable, err := r.Payables.GetByPurchaseIDForUpdate(ctx, purchase.ID)
		if err != nil {
			return err
		}
		if payable.HasApplications() {
			return fmt.Errorf("%w: compra %s", domain.ErrActivePayments, purchase.SupplierNumber)
		}
		rets, err := r.Retentions.ListByPurchase(ctx, purchase.ID)
		if err != nil {
			return err
		}
		for _, rt := range rets {
			if rt.Status != entity.RetentionStatusAnulada {
				return fmt.Errorf("%w: la compra tiene la retención %s", domain.ErrActivePayments, rt.DocumentNumber())
			}
		}

		now := uc.now()
		if reason == "" {
			reason = "Anulación de compra " + purchase.SupplierNumber
		}
		draft := inventory.DraftInput{
			Type:             entity.MovementTypeAjuste,
			WarehouseID:      purchase.WarehouseID,
			Reference:        entity.RefPrefixAnulacionCompra + purchase.ID,
			AdjustmentReason: reason,
		}
		for _, l := range purchase.Lines {
			draft.Lines = append(draft.Lines, inventory.LineInput{ProductID: l.ProductID, Quantity: l.Quantity.Neg()})
		}
		mov, err := uc.inventory.CreateDraftInTx(ctx, r, actor, draft)
		if err != nil {
			return err
		}
		mov.AuthorizedBy = actor
		if err := uc.inventory.ConfirmInTx(ctx, r, actor, mov); err != nil {
			return err
		}
		if err := r.Purchases.DeactivateTaxes(ctx, purchase.ID); err != nil {
			return err
		}

		payable.Status = entity.AccountStatusAnulada
		payable.Balance = decimal.Zero
		payable.Touch(actor, now)
		if err := r.Payables.Update(ctx, payable); err != nil {
			return err
		}
		purchase.Status = entity.PurchaseStatusAnulada
		purchase.VoidReason = reason
		purchase.Touch(actor, now)
		if err := r.Purchases.UpdateHeader(ctx, purchase); err != nil {
			return err
		}
		return r.Audit.Append(ctx, commercial.AuditRow(auditEntity, purchase.ID, "ANULAR", entity.PurchaseStatusRegistrada,
			entity.PurchaseStatusAnulada, actor, reason, now))
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// RetentionLineInput impuesto a retener.
type RetentionLineInput struct {
	TaxCode       string
	RetentionCode string
	TaxableBase   decimal.Decimal
	Percentage    decimal.Decimal
}

// RetentionInput comprobante de retención a emitir. Physical=true emite en papel (no se encola).
type RetentionInput struct {
	Physical bool
	Lines    []RetentionLineInput
}

// CreateRetention emite la retención contra la cuenta por pagar de la compra y, si es
// electrónica, la encola en la misma transacción.
func (uc *PurchasesUseCase) CreateRetention(ctx context.Context, actor, purchaseID string, in RetentionInput) (*entity.Retention, *entity.SRITask, error) {
	lines, total, err := retentionLines(in.Lines)
	if err != nil {
		return nil, nil, err
	}

	var (
		ret  *entity.Retention
		task *entity.SRITask
	)
	err = uc.txRunner.Run(ctx, func(r repository.Repos) error {
		purchase, err := r.Purchases.GetForUpdate(ctx, purchaseID)
		if err != nil {
			return err
		}
		if purchase.Status != entity.PurchaseStatusRegistrada {
			return fmt.Errorf("%w: la compra %s está %s", domain.ErrInvalidState, purchase.ID, purchase.Status)
		}
		payable, err := r.Payables.GetByPurchaseIDForUpdate(ctx, purchase.ID)
		if err != nil {
			return err
		}
		if total.GreaterThan(payable.Balance) {
			return fmt.Errorf("%w: la retención %s supera el saldo %s", domain.ErrBusinessRule, total.StringFixed(2), payable.Balance.StringFixed(2))
		}

		now := uc.now()
		seq, err := r.Sequences.Next(ctx, entity.DocumentTypeRetencion+":"+uc.cfg.Establishment+"-"+uc.cfg.EmissionPoint)
		if err != nil {
			return err
		}
		ret = &entity.Retention{
			ID:            uuid.New().String(),
			PurchaseID:    purchase.ID,
			Establishment: uc.cfg.Establishment,
			EmissionPoint: uc.cfg.EmissionPoint,
			Sequential:    sri.FormatSecuencial(seq),
			IssueDate:     now,
			Lines:         lines,
			Total:         total,
			Electronic:    !in.Physical,
			Status:        entity.RetentionStatusEmitida,
			AuditedRecord: entity.NewAuditedRecord(actor, now),
		}
		if err := r.Retentions.Create(ctx, ret); err != nil {
			return err
		}
		before := payable.Status
		payable.Apply(total, true)
		payable.Touch(actor, now)
		if err := r.Payables.Update(ctx, payable); err != nil {
			return err
		}
		if err := r.Audit.Append(ctx, commercial.AuditRow("retencion", ret.ID, "EMITIR", before, payable.Status, actor,
			ret.DocumentNumber()+" "+total.StringFixed(2), now)); err != nil {
			return err
		}
		if ret.Electronic {
			task, err = uc.enqueuer.EnqueueInTx(ctx, r, actor, entity.DocumentTypeRetencion, ret.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	uc.log.Info().Str("retencion_id", ret.ID).Str("compra_id", purchaseID).Str("total", total.StringFixed(2)).Msg("retención emitida")
	return ret, task, nil
}

func retentionLines(in []RetentionLineInput) ([]entity.RetentionLine, decimal.Decimal, error) {
	if len(in) == 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: la retención no tiene líneas", domain.ErrInvalidInput)
	}
	total := decimal.Zero
	out := make([]entity.RetentionLine, 0, len(in))
	for i, l := range in {
		switch l.TaxCode {
		case sri.RetencionRenta, sri.RetencionIVA, sri.RetencionISD:
		default:
			return nil, decimal.Zero, fmt.Errorf("%w: línea %d: código de impuesto %q", domain.ErrInvalidInput, i+1, l.TaxCode)
		}
		if strings.TrimSpace(l.RetentionCode) == "" {
			return nil, decimal.Zero, fmt.Errorf("%w: línea %d: código de retención obligatorio", domain.ErrInvalidInput, i+1)
		}
		if !l.TaxableBase.IsPositive() {
			return nil, decimal.Zero, fmt.Errorf("%w: línea %d: base imponible debe ser mayor a cero", domain.ErrInvalidInput, i+1)
		}
		if !l.Percentage.IsPositive() || l.Percentage.GreaterThan(hundred) {
			return nil, decimal.Zero, fmt.Errorf("%w: línea %d: porcentaje fuera de rango", domain.ErrInvalidInput, i+1)
		}
		base := tax.Q2(l.TaxableBase)
		amount := tax.Q2(base.Mul(l.Percentage).Div(hundred))
		out = append(out, entity.RetentionLine{
			TaxCode:       l.TaxCode,
			RetentionCode: strings.TrimSpace(l.RetentionCode),
			TaxableBase:   base,
			Percentage:    l.Percentage,
			Amount:        amount,
		})
		total = total.Add(amount)
	}
	return out, total, nil
}

// RegisterPayment registra un pago al proveedor.
func (uc *PurchasesUseCase) RegisterPayment(ctx context.Context, actor, purchaseID string, amount decimal.Decimal) (*entity.Payable, error) {
	amount = tax.Q2(amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: el monto debe ser mayor a cero", domain.ErrInvalidInput)
	}
	var payable *entity.Payable
	err := uc.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		payable, err = r.Payables.GetByPurchaseIDForUpdate(ctx, purchaseID)
		if err != nil {
			return err
		}
		if payable.Status != entity.AccountStatusAbierta {
			return fmt.Errorf("%w: la cuenta por pagar está %s", domain.ErrInvalidState, payable.Status)
		}
		if amount.GreaterThan(payable.Balance) {
			return fmt.Errorf("%w: el monto %s supera el saldo %s", domain.ErrBusinessRule, amount.StringFixed(2), payable.Balance.StringFixed(2))
		}
		now := uc.now()
		before := payable.Status
		payable.Apply(amount, false)
		payable.Touch(actor, now)
		if err := r.Payables.Update(ctx, payable); err != nil {
			return err
		}
		return r.Audit.Append(ctx, commercial.AuditRow("cuenta_por_pagar", payable.ID, "PAGO", before, payable.Status, actor, amount.StringFixed(2), now))
	})
	if err != nil {
		return nil, err
	}
	return payable, nil
}

// Get devuelve la compra.
func (uc *PurchasesUseCase) Get(ctx context.Context, id string) (*entity.Purchase, error) {
	return uc.repos.Purchases.GetByID(ctx, id)
}

// Payable devuelve la cuenta por pagar de la compra.
func (uc *PurchasesUseCase) Payable(ctx context.Context, purchaseID string) (*entity.Payable, error) {
	return uc.repos.Payables.GetByPurchaseID(ctx, purchaseID)
}

// Retentions lista las retenciones emitidas a la compra.
func (uc *PurchasesUseCase) Retentions(ctx context.Context, purchaseID string) ([]*entity.Retention, error) {
	return uc.repos.Retentions.ListByPurchase(ctx, purchaseID)
}
