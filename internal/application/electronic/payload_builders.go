package electronic

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
	"github.com/jhoicas/osiris-api/internal/domain/tax"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

// FacturaBuilder arma el payload de factura desde una venta EMITIDA.
type FacturaBuilder struct{}

func (FacturaBuilder) DocumentType() string { return entity.DocumentTypeFactura }

func (FacturaBuilder) Build(ctx context.Context, r repository.Repos, saleID string, issuer Issuer) (*BuiltPayload, error) {
	sale, err := r.Sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != entity.SaleStatusEmitida {
		return nil, fmt.Errorf("%w: la venta %s está %s", domain.ErrInvalidState, sale.ID, sale.Status)
	}
	if sale.EmissionType != entity.EmissionTypeElectronica {
		return nil, fmt.Errorf("%w: la venta %s no es electrónica", domain.ErrInvalidInput, sale.ID)
	}

	key, err := issuer.accessKey(sri.TipoComprobanteFactura, sale.IssueDate, sale.Establishment, sale.EmissionPoint, sale.Sequential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	p := &sri.FacturaPayload{
		Emisor: issuer.Emisor,
		Info: sri.InfoTributaria{
			Ambiente:        issuer.Ambiente,
			TipoEmision:     sri.TipoEmisionNormal,
			ClaveAcceso:     key,
			CodDoc:          sri.TipoComprobanteFactura,
			Establecimiento: sale.Establishment,
			PuntoEmision:    sale.EmissionPoint,
			Secuencial:      sale.Sequential,
			FechaEmision:    sale.IssueDate.Format(sri.FormatFecha),
		},
		Comprador: sri.Sujeto{
			TipoIdentificacion: sale.Customer.IdentificationType,
			Identificacion:     sale.Customer.Identification,
			RazonSocial:        sri.NormalizarTexto(sale.Customer.Name, 300),
			Email:              sale.Customer.Email,
			Direccion:          sri.NormalizarTexto(sale.Customer.Address, 300),
		},
		TotalSinImpuestos: sale.Totals.Subtotal,
		TotalDescuento:    sale.Totals.TotalDiscount,
		ImporteTotal:      sale.Totals.Total,
		Moneda:            "DOLAR",
		Pagos:             []sri.Pago{{FormaPago: sri.FormaPagoSinSistemaFinanciero, Total: sale.Totals.Total}},
	}

	totals := map[string]*sri.TotalImpuesto{}
	for _, l := range sale.Lines {
		code := l.ProductID
		if prod, err := r.Products.GetByID(ctx, l.ProductID); err == nil && prod.Code != "" {
			code = prod.Code
		}
		desc := l.Description
		if desc == "" {
			desc = code
		}
		det := sri.Detalle{
			CodigoPrincipal:        code,
			Descripcion:            sri.NormalizarTexto(desc, 300),
			Cantidad:               l.Quantity,
			PrecioUnitario:         l.UnitPrice,
			Descuento:              l.Discount,
			PrecioTotalSinImpuesto: l.Subtotal,
		}
		for _, s := range l.Taxes {
			det.Impuestos = append(det.Impuestos, sri.Impuesto{
				Codigo:           s.TaxCode,
				CodigoPorcentaje: s.RateCode,
				Tarifa:           s.Rate,
				BaseImponible:    s.TaxableBase,
				Valor:            s.Amount,
			})
			k := s.TaxCode + "|" + s.RateCode
			t, ok := totals[k]
			if !ok {
				t = &sri.TotalImpuesto{Codigo: s.TaxCode, CodigoPorcentaje: s.RateCode, BaseImponible: decimal.Zero, Valor: decimal.Zero}
				totals[k] = t
			}
			t.BaseImponible = t.BaseImponible.Add(s.TaxableBase)
			t.Valor = t.Valor.Add(s.Amount)
		}
		p.Detalles = append(p.Detalles, det)
	}
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t := totals[k]
		t.BaseImponible = tax.Q2(t.BaseImponible)
		t.Valor = tax.Q2(t.Valor)
		p.TotalConImpuestos = append(p.TotalConImpuestos, *t)
	}

	data, err := sri.Encode(p)
	if err != nil {
		return nil, err
	}
	return &BuiltPayload{AccessKey: key, Data: data, Version: sri.PayloadVersion}, nil
}

// RetencionBuilder arma el payload del comprobante de retención.
type RetencionBuilder struct{}

func (RetencionBuilder) DocumentType() string { return entity.DocumentTypeRetencion }

func (RetencionBuilder) Build(ctx context.Context, r repository.Repos, retentionID string, issuer Issuer) (*BuiltPayload, error) {
	ret, err := r.Retentions.GetByID(ctx, retentionID)
	if err != nil {
		return nil, err
	}
	if ret.Status != entity.RetentionStatusEmitida {
		return nil, fmt.Errorf("%w: la retención %s está %s", domain.ErrInvalidState, ret.ID, ret.Status)
	}
	purchase, err := r.Purchases.GetByID(ctx, ret.PurchaseID)
	if err != nil {
		return nil, err
	}

	key, err := issuer.accessKey(sri.TipoComprobanteRetencion, ret.IssueDate, ret.Establishment, ret.EmissionPoint, ret.Sequential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	p := &sri.RetencionPayload{
		Emisor: issuer.Emisor,
		Info: sri.InfoTributaria{
			Ambiente:        issuer.Ambiente,
			TipoEmision:     sri.TipoEmisionNormal,
			ClaveAcceso:     key,
			CodDoc:          sri.TipoComprobanteRetencion,
			Establecimiento: ret.Establishment,
			PuntoEmision:    ret.EmissionPoint,
			Secuencial:      ret.Sequential,
			FechaEmision:    ret.IssueDate.Format(sri.FormatFecha),
		},
		Sujeto: sri.Sujeto{
			TipoIdentificacion: purchase.Supplier.IdentificationType,
			Identificacion:     purchase.Supplier.Identification,
			RazonSocial:        sri.NormalizarTexto(purchase.Supplier.Name, 300),
			Email:              purchase.Supplier.Email,
		},
		PeriodoFiscal: ret.IssueDate.Format(sri.FormatPeriodoFiscal),
		Sustento: sri.DocSustento{
			CodDocSustento:   sri.TipoComprobanteFactura,
			NumDocSustento:   purchase.SupplierNumber,
			FechaEmision:     purchase.IssueDate.Format(sri.FormatFecha),
			TotalSinImpuesto: purchase.Totals.Subtotal,
			ImporteTotal:     purchase.Totals.Total,
		},
		TotalRetenido: ret.Total,
	}
	p.Sustento.Impuestos = sustentoTaxes(purchase)
	for _, l := range ret.Lines {
		p.Impuestos = append(p.Impuestos, sri.ImpuestoRetenido{
			Codigo:          l.TaxCode,
			CodigoRetencion: l.RetentionCode,
			BaseImponible:   l.TaxableBase,
			Porcentaje:      l.Percentage,
			Valor:           l.Amount,
		})
	}

	data, err := sri.Encode(p)
	if err != nil {
		return nil, err
	}
	return &BuiltPayload{AccessKey: key, Data: data, Version: sri.PayloadVersion}, nil
}

// sustentoTaxes agrupa los impuestos de la compra por (código, código porcentaje).
func sustentoTaxes(purchase *entity.Purchase) []sri.Impuesto {
	byKey := map[string]*sri.Impuesto{}
	var keys []string
	for _, l := range purchase.Lines {
		for _, s := range l.Taxes {
			k := s.TaxCode + "|" + s.RateCode
			t, ok := byKey[k]
			if !ok {
				t = &sri.Impuesto{Codigo: s.TaxCode, CodigoPorcentaje: s.RateCode, Tarifa: s.Rate}
				byKey[k] = t
				keys = append(keys, k)
			}
			t.BaseImponible = t.BaseImponible.Add(s.TaxableBase)
			t.Valor = t.Valor.Add(s.Amount)
		}
	}
	sort.Strings(keys)
	out := make([]sri.Impuesto, 0, len(keys))
	for _, k := range keys {
		t := byKey[k]
		t.BaseImponible = tax.Q2(t.BaseImponible)
		t.Valor = tax.Q2(t.Valor)
		out = append(out, *t)
	}
	return out
}
