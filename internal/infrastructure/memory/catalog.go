package memory

import (
	"context"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

type productRepo struct{ h *handle }

func (r *productRepo) Create(_ context.Context, p *entity.Product) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.products[p.ID]; ok {
			return domain.ErrDuplicate
		}
		st.products[p.ID] = cloneProduct(p)
		return nil
	})
}

func (r *productRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	var out *entity.Product
	err := r.h.do(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = cloneProduct(p)
		return nil
	})
	return out, err
}

func (r *productRepo) Update(_ context.Context, p *entity.Product) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.products[p.ID]; !ok {
			return domain.ErrNotFound
		}
		st.products[p.ID] = cloneProduct(p)
		return nil
	})
}

func (r *productRepo) ExistsAndActive(_ context.Context, id string) (bool, error) {
	var ok bool
	_ = r.h.do(func(st *state) error {
		p, found := st.products[id]
		ok = found && p.Active
		return nil
	})
	return ok, nil
}

type warehouseRepo struct{ h *handle }

func (r *warehouseRepo) Create(_ context.Context, w *entity.Warehouse) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.warehouses[w.ID]; ok {
			return domain.ErrDuplicate
		}
		st.warehouses[w.ID] = plain(w)
		return nil
	})
}

func (r *warehouseRepo) GetByID(_ context.Context, id string) (*entity.Warehouse, error) {
	var out *entity.Warehouse
	err := r.h.do(func(st *state) error {
		w, ok := st.warehouses[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = plain(w)
		return nil
	})
	return out, err
}

func (r *warehouseRepo) ExistsAndActive(_ context.Context, id string) (bool, error) {
	var ok bool
	_ = r.h.do(func(st *state) error {
		w, found := st.warehouses[id]
		ok = found && w.Active
		return nil
	})
	return ok, nil
}

type taxCatalog struct{ h *handle }

func rateKey(taxCode, rateCode string) string { return taxCode + "|" + rateCode }

func (c *taxCatalog) Lookup(_ context.Context, taxCode, rateCode string) (*entity.TaxRate, error) {
	var out *entity.TaxRate
	err := c.h.do(func(st *state) error {
		r, ok := st.taxRates[rateKey(taxCode, rateCode)]
		if !ok {
			return domain.ErrNotFound
		}
		out = plain(r)
		return nil
	})
	return out, err
}

type sequenceRepo struct{ h *handle }

func (r *sequenceRepo) Next(_ context.Context, key string) (int64, error) {
	var n int64
	err := r.h.do(func(st *state) error {
		st.sequences[key]++
		n = st.sequences[key]
		return nil
	})
	return n, err
}

type auditRepo struct{ h *handle }

func (r *auditRepo) Append(_ context.Context, l *entity.AuditLog) error {
	return r.h.do(func(st *state) error {
		c := *l
		st.audit = append(st.audit, &c)
		return nil
	})
}

func (r *auditRepo) ListByEntity(_ context.Context, entityName, entityID string) ([]*entity.AuditLog, error) {
	var out []*entity.AuditLog
	err := r.h.do(func(st *state) error {
		for _, l := range st.audit {
			if l.Entity == entityName && l.EntityID == entityID {
				c := *l
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}
