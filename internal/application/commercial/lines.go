// Package commercial reúne el cálculo de líneas, impuestos y datos de terceros compartido por ventas y compras.
package commercial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
	"github.com/jhoicas/osiris-api/internal/domain/tax"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

// LineInput línea de un documento comercial. Price es precio de venta o costo de compra.
type LineInput struct {
	ProductID   string
	Description string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Discount    decimal.Decimal
}

// PricedLine línea con subtotal y snapshots de impuestos congelados.
type PricedLine struct {
	ID          string
	ProductID   string
	Description string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Discount    decimal.Decimal
	Subtotal    decimal.Decimal
	Taxes       []entity.TaxSnapshot
}

// PriceLines copia la configuración tributaria vigente de cada producto a snapshots,
// calcula los impuestos de cada línea y los totales del documento. Si expected no es nil,
// el total calculado debe coincidir.
func PriceLines(ctx context.Context, r repository.Repos, actor string, now time.Time, lines []LineInput, expected *decimal.Decimal) ([]PricedLine, entity.DocumentTotals, error) {
	if len(lines) == 0 {
		return nil, entity.DocumentTotals{}, fmt.Errorf("%w: el documento no tiene líneas", domain.ErrInvalidInput)
	}
	out := make([]PricedLine, 0, len(lines))
	totalsIn := make([]tax.TotalsLine, 0, len(lines))
	for i, l := range lines {
		if l.ProductID == "" {
			return nil, entity.DocumentTotals{}, fmt.Errorf("%w: línea %d: producto es obligatorio", domain.ErrInvalidInput, i+1)
		}
		product, err := r.Products.GetByID(ctx, l.ProductID)
		if err != nil {
			return nil, entity.DocumentTotals{}, fmt.Errorf("línea %d: %w", i+1, err)
		}
		if !product.Active {
			return nil, entity.DocumentTotals{}, fmt.Errorf("%w: producto %s inactivo", domain.ErrNotFound, product.ID)
		}
		rates, err := resolveRates(ctx, r, product)
		if err != nil {
			return nil, entity.DocumentTotals{}, err
		}
		// Se calcula sobre los valores tal como se guardan.
		qty, price, discount := tax.Q4(l.Quantity), tax.Q4(l.Price), tax.Q2(l.Discount)
		res, err := tax.ComputeLine(tax.LineInput{Quantity: qty, UnitPrice: price, Discount: discount, Rates: rates})
		if err != nil {
			return nil, entity.DocumentTotals{}, fmt.Errorf("línea %d: %w", i+1, err)
		}

		lineID := uuid.New().String()
		for j := range res.Snapshots {
			res.Snapshots[j].ID = uuid.New().String()
			res.Snapshots[j].LineID = lineID
			res.Snapshots[j].AuditedRecord = entity.NewAuditedRecord(actor, now)
		}
		desc := strings.TrimSpace(l.Description)
		if desc == "" {
			desc = product.Name
		}
		out = append(out, PricedLine{
			ID:          lineID,
			ProductID:   product.ID,
			Description: desc,
			Quantity:    qty,
			Price:       price,
			Discount:    discount,
			Subtotal:    res.Subtotal,
			Taxes:       res.Snapshots,
		})
		totalsIn = append(totalsIn, tax.TotalsLine{Subtotal: res.Subtotal, Discount: discount, Snapshots: res.Snapshots})
	}

	totals := tax.Totals(totalsIn)
	if err := tax.Reconcile(totals, expected); err != nil {
		return nil, entity.DocumentTotals{}, err
	}
	return out, totals, nil
}

func resolveRates(ctx context.Context, r repository.Repos, p *entity.Product) ([]entity.TaxRate, error) {
	rates := make([]entity.TaxRate, 0, len(p.Taxes))
	for _, pt := range p.Taxes {
		rate, err := r.TaxCatalog.Lookup(ctx, pt.TaxCode, pt.RateCode)
		if err != nil {
			return nil, fmt.Errorf("producto %s: tarifa %s/%s: %w", p.ID, pt.TaxCode, pt.RateCode, err)
		}
		rr := *rate
		if rr.Kind == "" {
			rr.Kind = pt.Kind
		}
		rates = append(rates, rr)
	}
	return rates, nil
}

// ResolveCustomer devuelve el comprador validado; sin identificación se usa consumidor final.
func ResolveCustomer(p *entity.PartySnapshot) (entity.PartySnapshot, error) {
	if p == nil || strings.TrimSpace(p.Identification) == "" {
		out := entity.PartySnapshot{
			IdentificationType: sri.IdentificacionConsumidorFinal,
			Identification:     sri.ConsumidorFinalIdentificacion,
			Name:               sri.ConsumidorFinalRazonSocial,
		}
		if p != nil {
			out.Email = p.Email
		}
		return out, nil
	}
	return ResolveSupplier(p)
}

// ResolveSupplier valida el tipo y número de identificación del tercero.
func ResolveSupplier(p *entity.PartySnapshot) (entity.PartySnapshot, error) {
	if p == nil {
		return entity.PartySnapshot{}, fmt.Errorf("%w: datos del tercero obligatorios", domain.ErrInvalidInput)
	}
	out := *p
	out.Identification = strings.TrimSpace(out.Identification)
	out.Name = sri.NormalizarTexto(out.Name, 300)
	if out.Name == "" {
		return entity.PartySnapshot{}, fmt.Errorf("%w: razón social obligatoria", domain.ErrInvalidInput)
	}
	if err := sri.ValidarIdentificacion(out.IdentificationType, out.Identification); err != nil {
		return entity.PartySnapshot{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return out, nil
}

// AuditRow fila de auditoría de un cambio de estado.
func AuditRow(entityName, entityID, action, before, after, actor, detail string, now time.Time) *entity.AuditLog {
	return &entity.AuditLog{
		ID:          uuid.New().String(),
		Entity:      entityName,
		EntityID:    entityID,
		Action:      action,
		BeforeState: before,
		AfterState:  after,
		Actor:       actor,
		Detail:      detail,
		CreatedAt:   now,
	}
}
