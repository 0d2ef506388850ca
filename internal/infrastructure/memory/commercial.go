package memory

import (
	"context"
	"sort"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

type saleRepo struct{ h *handle }

func (r *saleRepo) Create(_ context.Context, s *entity.Sale) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.sales[s.ID]; ok {
			return domain.ErrDuplicate
		}
		st.sales[s.ID] = cloneSale(s)
		return nil
	})
}

func (r *saleRepo) GetByID(_ context.Context, id string) (*entity.Sale, error) {
	var out *entity.Sale
	err := r.h.do(func(st *state) error {
		s, ok := st.sales[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = cloneSale(s)
		return nil
	})
	return out, err
}

func (r *saleRepo) GetForUpdate(ctx context.Context, id string) (*entity.Sale, error) {
	return r.GetByID(ctx, id)
}

// UpdateHeader conserva las líneas y snapshots persistidos.
func (r *saleRepo) UpdateHeader(_ context.Context, s *entity.Sale) error {
	return r.h.do(func(st *state) error {
		cur, ok := st.sales[s.ID]
		if !ok {
			return domain.ErrNotFound
		}
		c := cloneSale(s)
		c.Lines = cur.Lines
		st.sales[s.ID] = c
		return nil
	})
}

func (r *saleRepo) DeactivateTaxes(_ context.Context, saleID string) error {
	return r.h.do(func(st *state) error {
		s, ok := st.sales[saleID]
		if !ok {
			return domain.ErrNotFound
		}
		for i := range s.Lines {
			for j := range s.Lines[i].Taxes {
				s.Lines[i].Taxes[j].Active = false
			}
		}
		return nil
	})
}

type receivableRepo struct{ h *handle }

func (r *receivableRepo) Create(_ context.Context, rc *entity.Receivable) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.receivables[rc.SaleID]; ok {
			return domain.ErrDuplicate
		}
		st.receivables[rc.SaleID] = plain(rc)
		return nil
	})
}

func (r *receivableRepo) GetBySaleID(_ context.Context, saleID string) (*entity.Receivable, error) {
	var out *entity.Receivable
	err := r.h.do(func(st *state) error {
		rc, ok := st.receivables[saleID]
		if !ok {
			return domain.ErrNotFound
		}
		out = plain(rc)
		return nil
	})
	return out, err
}

func (r *receivableRepo) GetBySaleIDForUpdate(ctx context.Context, saleID string) (*entity.Receivable, error) {
	return r.GetBySaleID(ctx, saleID)
}

func (r *receivableRepo) Update(_ context.Context, rc *entity.Receivable) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.receivables[rc.SaleID]; !ok {
			return domain.ErrNotFound
		}
		st.receivables[rc.SaleID] = plain(rc)
		return nil
	})
}

type purchaseRepo struct{ h *handle }

func (r *purchaseRepo) Create(_ context.Context, p *entity.Purchase) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.purchases[p.ID]; ok {
			return domain.ErrDuplicate
		}
		st.purchases[p.ID] = clonePurchase(p)
		return nil
	})
}

func (r *purchaseRepo) GetByID(_ context.Context, id string) (*entity.Purchase, error) {
	var out *entity.Purchase
	err := r.h.do(func(st *state) error {
		p, ok := st.purchases[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = clonePurchase(p)
		return nil
	})
	return out, err
}

func (r *purchaseRepo) GetForUpdate(ctx context.Context, id string) (*entity.Purchase, error) {
	return r.GetByID(ctx, id)
}

func (r *purchaseRepo) UpdateHeader(_ context.Context, p *entity.Purchase) error {
	return r.h.do(func(st *state) error {
		cur, ok := st.purchases[p.ID]
		if !ok {
			return domain.ErrNotFound
		}
		c := clonePurchase(p)
		c.Lines = cur.Lines
		st.purchases[p.ID] = c
		return nil
	})
}

func (r *purchaseRepo) DeactivateTaxes(_ context.Context, purchaseID string) error {
	return r.h.do(func(st *state) error {
		p, ok := st.purchases[purchaseID]
		if !ok {
			return domain.ErrNotFound
		}
		for i := range p.Lines {
			for j := range p.Lines[i].Taxes {
				p.Lines[i].Taxes[j].Active = false
			}
		}
		return nil
	})
}

type payableRepo struct{ h *handle }

func (r *payableRepo) Create(_ context.Context, p *entity.Payable) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.payables[p.PurchaseID]; ok {
			return domain.ErrDuplicate
		}
		st.payables[p.PurchaseID] = plain(p)
		return nil
	})
}

func (r *payableRepo) GetByPurchaseID(_ context.Context, purchaseID string) (*entity.Payable, error) {
	var out *entity.Payable
	err := r.h.do(func(st *state) error {
		p, ok := st.payables[purchaseID]
		if !ok {
			return domain.ErrNotFound
		}
		out = plain(p)
		return nil
	})
	return out, err
}

func (r *payableRepo) GetByPurchaseIDForUpdate(ctx context.Context, purchaseID string) (*entity.Payable, error) {
	return r.GetByPurchaseID(ctx, purchaseID)
}

func (r *payableRepo) Update(_ context.Context, p *entity.Payable) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.payables[p.PurchaseID]; !ok {
			return domain.ErrNotFound
		}
		st.payables[p.PurchaseID] = plain(p)
		return nil
	})
}

type retentionRepo struct{ h *handle }

func (r *retentionRepo) Create(_ context.Context, rt *entity.Retention) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.retentions[rt.ID]; ok {
			return domain.ErrDuplicate
		}
		st.retentions[rt.ID] = cloneRetention(rt)
		return nil
	})
}

func (r *retentionRepo) GetByID(_ context.Context, id string) (*entity.Retention, error) {
	var out *entity.Retention
	err := r.h.do(func(st *state) error {
		rt, ok := st.retentions[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = cloneRetention(rt)
		return nil
	})
	return out, err
}

func (r *retentionRepo) ListByPurchase(_ context.Context, purchaseID string) ([]*entity.Retention, error) {
	var out []*entity.Retention
	err := r.h.do(func(st *state) error {
		for _, rt := range st.retentions {
			if rt.PurchaseID == purchaseID {
				out = append(out, cloneRetention(rt))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}
