package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/inventory"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
	"github.com/jhoicas/osiris-api/internal/domain/tax"
)

// MovementUseCase motor de movimientos de inventario: borradores, confirmación transaccional
// con bloqueo de filas (SELECT FOR UPDATE), kardex y valoración.
type MovementUseCase struct {
	txRunner repository.TxRunner
	repos    repository.Repos
	log      zerolog.Logger
	now      func() time.Time
}

// NewMovementUseCase construye el caso de uso. repos son los repositorios fuera de transacción.
func NewMovementUseCase(txRunner repository.TxRunner, repos repository.Repos, log zerolog.Logger) *MovementUseCase {
	return &MovementUseCase{
		txRunner: txRunner,
		repos:    repos,
		log:      log.With().Str("component", "inventario").Logger(),
		now:      time.Now,
	}
}

// WithClock reemplaza el reloj (pruebas).
func (uc *MovementUseCase) WithClock(now func() time.Time) *MovementUseCase {
	uc.now = now
	return uc
}

// LineInput línea de un movimiento a registrar.
// Quantity positiva; en AJUSTE el signo indica entrada (+) o salida (−).
// UnitCost obligatorio en INGRESO; opcional en AJUSTE positivo (si falta se usa el costo promedio).
type LineInput struct {
	ProductID string
	Quantity  decimal.Decimal
	UnitCost  *decimal.Decimal
}

// DraftInput entrada de CreateDraft.
type DraftInput struct {
	Type                   string
	WarehouseID            string
	DestinationWarehouseID string
	Reference              string
	AdjustmentReason       string
	Date                   time.Time
	Lines                  []LineInput
}

// CreateDraft valida bodegas, productos, cantidades y costos y persiste el movimiento en BORRADOR.
// No modifica stock.
func (uc *MovementUseCase) CreateDraft(ctx context.Context, actor string, in DraftInput) (*entity.InventoryMovement, error) {
	if err := uc.validateDraft(ctx, in); err != nil {
		return nil, err
	}
	now := uc.now()
	mov := uc.buildMovement(actor, in, now)
	err := uc.txRunner.Run(ctx, func(r repository.Repos) error {
		return r.Movements.Create(ctx, mov)
	})
	if err != nil {
		return nil, err
	}
	return mov, nil
}

// CreateDraftInTx igual que CreateDraft pero con los repositorios de la transacción del llamador.
func (uc *MovementUseCase) CreateDraftInTx(ctx context.Context, r repository.Repos, actor string, in DraftInput) (*entity.InventoryMovement, error) {
	if err := validateDraftShape(in); err != nil {
		return nil, err
	}
	if err := repository.CheckReferences(ctx, draftReferences(r, in)...); err != nil {
		return nil, err
	}
	mov := uc.buildMovement(actor, in, uc.now())
	if err := r.Movements.Create(ctx, mov); err != nil {
		return nil, err
	}
	return mov, nil
}

func (uc *MovementUseCase) buildMovement(actor string, in DraftInput, now time.Time) *entity.InventoryMovement {
	date := in.Date
	if date.IsZero() {
		date = now
	}
	mov := &entity.InventoryMovement{
		ID:                     uuid.New().String(),
		Type:                   in.Type,
		State:                  entity.MovementStateBorrador,
		WarehouseID:            in.WarehouseID,
		DestinationWarehouseID: in.DestinationWarehouseID,
		Reference:              in.Reference,
		AdjustmentReason:       in.AdjustmentReason,
		Date:                   date,
		AuditedRecord:          entity.NewAuditedRecord(actor, now),
	}
	for _, l := range in.Lines {
		line := entity.MovementLine{
			ID:         uuid.New().String(),
			MovementID: mov.ID,
			ProductID:  l.ProductID,
			Quantity:   tax.Q4(l.Quantity),
			UnitCost:   decimal.Zero,
		}
		if l.UnitCost != nil {
			line.UnitCost = tax.Q4(*l.UnitCost)
		}
		mov.Lines = append(mov.Lines, line)
	}
	return mov
}

func (uc *MovementUseCase) validateDraft(ctx context.Context, in DraftInput) error {
	if err := validateDraftShape(in); err != nil {
		return err
	}
	return repository.CheckReferences(ctx, draftReferences(uc.repos, in)...)
}

func draftReferences(r repository.Repos, in DraftInput) []repository.ReferenceCheck {
	checks := []repository.ReferenceCheck{{Field: "bodega", ID: in.WarehouseID, Checker: r.Warehouses}}
	if in.Type == entity.MovementTypeTransferencia {
		checks = append(checks, repository.ReferenceCheck{Field: "bodega_destino", ID: in.DestinationWarehouseID, Checker: r.Warehouses})
	}
	for _, l := range in.Lines {
		checks = append(checks, repository.ReferenceCheck{Field: "producto", ID: l.ProductID, Checker: r.Products})
	}
	return checks
}

func validateDraftShape(in DraftInput) error {
	switch in.Type {
	case entity.MovementTypeIngreso, entity.MovementTypeEgreso, entity.MovementTypeAjuste:
	case entity.MovementTypeTransferencia:
		if in.DestinationWarehouseID == "" || in.DestinationWarehouseID == in.WarehouseID {
			return fmt.Errorf("%w: la transferencia requiere una bodega destino distinta", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: tipo de movimiento %q", domain.ErrInvalidInput, in.Type)
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("%w: el movimiento no tiene líneas", domain.ErrInvalidInput)
	}
	for i, l := range in.Lines {
		if in.Type == entity.MovementTypeAjuste {
			if l.Quantity.IsZero() {
				return fmt.Errorf("%w: línea %d: cantidad no puede ser cero", domain.ErrInvalidInput, i+1)
			}
		} else if !l.Quantity.IsPositive() {
			return fmt.Errorf("%w: línea %d: cantidad debe ser mayor a cero", domain.ErrInvalidInput, i+1)
		}
		if l.UnitCost != nil && l.UnitCost.IsNegative() {
			return fmt.Errorf("%w: línea %d: costo no puede ser negativo", domain.ErrInvalidInput, i+1)
		}
		if in.Type == entity.MovementTypeIngreso && l.UnitCost == nil {
			return fmt.Errorf("%w: línea %d: el ingreso requiere costo unitario", domain.ErrInvalidInput, i+1)
		}
	}
	return nil
}

// ConfirmInput entrada de Confirm.
type ConfirmInput struct {
	MovementID       string
	AdjustmentReason string
	AuthorizedBy     string
}

// Confirm inicia una transacción, bloquea las filas de stock afectadas, aplica el movimiento
// y lo marca CONFIRMADO. Si alguna cantidad quedaría negativa se revierte todo.
func (uc *MovementUseCase) Confirm(ctx context.Context, actor string, in ConfirmInput) (*entity.InventoryMovement, error) {
	current, err := uc.repos.Movements.GetByID(ctx, in.MovementID)
	if err != nil {
		return nil, err
	}
	if current.Type == entity.MovementTypeAjuste && in.AdjustmentReason == "" && current.AdjustmentReason == "" {
		return nil, fmt.Errorf("%w: el ajuste requiere motivo_ajuste", domain.ErrMissingReason)
	}

	var confirmed *entity.InventoryMovement
	err = uc.txRunner.Run(ctx, func(r repository.Repos) error {
		mov, err := r.Movements.GetForUpdate(ctx, in.MovementID)
		if err != nil {
			return err
		}
		if in.AdjustmentReason != "" {
			mov.AdjustmentReason = in.AdjustmentReason
		}
		if in.AuthorizedBy != "" {
			mov.AuthorizedBy = in.AuthorizedBy
		}
		if err := uc.ConfirmInTx(ctx, r, actor, mov); err != nil {
			return err
		}
		confirmed = mov
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("movimiento_id", confirmed.ID).Str("tipo", confirmed.Type).Msg("movimiento confirmado")
	return confirmed, nil
}

// stockEffect efecto de una línea sobre un par (producto, bodega).
type stockEffect struct {
	line        int
	productID   string
	warehouseID string
	qty         decimal.Decimal
	unitCost    *decimal.Decimal // nil: costo promedio vigente
	outgoing    bool
	transferIn  bool
}

// ConfirmInTx aplica el movimiento usando los repositorios de la transacción del llamador
// (emisión de venta, registro de compra, anulaciones).
func (uc *MovementUseCase) ConfirmInTx(ctx context.Context, r repository.Repos, actor string, mov *entity.InventoryMovement) error {
	if !mov.IsDraft() {
		return fmt.Errorf("%w: el movimiento %s ya está %s", domain.ErrInvalidState, mov.ID, mov.State)
	}
	if mov.Type == entity.MovementTypeAjuste && mov.AdjustmentReason == "" {
		return fmt.Errorf("%w: el ajuste requiere motivo_ajuste", domain.ErrMissingReason)
	}

	effects := effectsFor(mov)

	// Bloqueo en orden determinista para evitar interbloqueos entre confirmaciones concurrentes.
	keys := make([]string, 0, len(effects))
	seen := map[string]bool{}
	for _, e := range effects {
		k := e.productID + "|" + e.warehouseID
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	locked := make(map[string]*entity.Stock, len(keys))
	for _, k := range keys {
		var productID, warehouseID string
		for _, e := range effects {
			if e.productID+"|"+e.warehouseID == k {
				productID, warehouseID = e.productID, e.warehouseID
				break
			}
		}
		st, err := r.Stock.GetForUpdate(ctx, productID, warehouseID)
		if err != nil {
			return err
		}
		locked[k] = st
	}

	now := uc.now()
	var entries []*entity.KardexEntry
	var transferCost decimal.Decimal
	for _, e := range effects {
		st := locked[e.productID+"|"+e.warehouseID]
		newQty := tax.Q4(st.Quantity.Add(e.qty))
		if newQty.IsNegative() {
			return fmt.Errorf("%w: producto %s en bodega %s: disponible %s, requerido %s",
				domain.ErrInsufficientStock, e.productID, e.warehouseID,
				st.Quantity.StringFixed(4), e.qty.Abs().StringFixed(4))
		}

		var cost decimal.Decimal
		switch {
		case e.transferIn:
			cost = transferCost
		case e.unitCost != nil:
			cost = *e.unitCost
		default:
			cost = st.AverageCost
		}
		if e.qty.IsPositive() {
			st.AverageCost = inventory.CostCalculator(st.Quantity, st.AverageCost, e.qty, cost)
		} else {
			cost = st.AverageCost
			if mov.Type == entity.MovementTypeTransferencia {
				transferCost = cost
			}
		}
		st.Quantity = newQty
		st.Active = true
		st.Touch(actor, now)

		if !e.transferIn {
			mov.Lines[e.line].UnitCost = tax.Q4(cost)
		}
		entries = append(entries, &entity.KardexEntry{
			ID:          uuid.New().String(),
			MovementID:  mov.ID,
			ProductID:   e.productID,
			WarehouseID: e.warehouseID,
			Type:        mov.Type,
			Label:       inventory.LabelFor(mov.Type, mov.Reference, e.outgoing),
			Reference:   mov.Reference,
			Quantity:    e.qty,
			UnitCost:    tax.Q4(cost),
			BalanceQty:  st.Quantity,
			AverageCost: st.AverageCost,
			Date:        now,
		})
	}

	for _, k := range keys {
		if err := r.Stock.Update(ctx, locked[k]); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := r.Kardex.Append(ctx, e); err != nil {
			return err
		}
	}

	mov.State = entity.MovementStateConfirmado
	mov.ConfirmedAt = &now
	mov.Touch(actor, now)
	if err := r.Movements.Update(ctx, mov); err != nil {
		return err
	}
	return r.Audit.Append(ctx, &entity.AuditLog{
		ID:          uuid.New().String(),
		Entity:      "movimiento_inventario",
		EntityID:    mov.ID,
		Action:      "CONFIRMAR",
		BeforeState: entity.MovementStateBorrador,
		AfterState:  entity.MovementStateConfirmado,
		Actor:       actor,
		Detail:      mov.Type + " " + mov.Reference,
		CreatedAt:   now,
	})
}

func effectsFor(mov *entity.InventoryMovement) []stockEffect {
	var out []stockEffect
	for i, l := range mov.Lines {
		cost := l.UnitCost
		switch mov.Type {
		case entity.MovementTypeIngreso:
			out = append(out, stockEffect{line: i, productID: l.ProductID, warehouseID: mov.WarehouseID, qty: l.Quantity, unitCost: &cost})
		case entity.MovementTypeEgreso:
			out = append(out, stockEffect{line: i, productID: l.ProductID, warehouseID: mov.WarehouseID, qty: l.Quantity.Neg(), outgoing: true})
		case entity.MovementTypeAjuste:
			if l.Quantity.IsPositive() {
				e := stockEffect{line: i, productID: l.ProductID, warehouseID: mov.WarehouseID, qty: l.Quantity}
				if l.UnitCost.IsPositive() {
					e.unitCost = &cost
				}
				out = append(out, e)
			} else {
				out = append(out, stockEffect{line: i, productID: l.ProductID, warehouseID: mov.WarehouseID, qty: l.Quantity, outgoing: true})
			}
		case entity.MovementTypeTransferencia:
			out = append(out,
				stockEffect{line: i, productID: l.ProductID, warehouseID: mov.WarehouseID, qty: l.Quantity.Neg(), outgoing: true},
				stockEffect{line: i, productID: l.ProductID, warehouseID: mov.DestinationWarehouseID, qty: l.Quantity, transferIn: true},
			)
		}
	}
	return out
}

// DeactivateStock marca inactiva la fila de stock; solo se permite con cantidad cero.
func (uc *MovementUseCase) DeactivateStock(ctx context.Context, actor, productID, warehouseID string) error {
	return uc.txRunner.Run(ctx, func(r repository.Repos) error {
		st, err := r.Stock.GetForUpdate(ctx, productID, warehouseID)
		if err != nil {
			return err
		}
		if !st.Quantity.IsZero() {
			return fmt.Errorf("%w: el stock tiene cantidad %s", domain.ErrBusinessRule, st.Quantity.StringFixed(4))
		}
		now := uc.now()
		st.Active = false
		st.Touch(actor, now)
		if err := r.Stock.Update(ctx, st); err != nil {
			return err
		}
		return r.Audit.Append(ctx, &entity.AuditLog{
			ID:          uuid.New().String(),
			Entity:      "inventario_stock",
			EntityID:    productID + "|" + warehouseID,
			Action:      "DESACTIVAR",
			BeforeState: "ACTIVO",
			AfterState:  "INACTIVO",
			Actor:       actor,
			CreatedAt:   now,
		})
	})
}
