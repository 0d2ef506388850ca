package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

func stockKey(productID, warehouseID string) string { return productID + "|" + warehouseID }

type stockRepo struct{ h *handle }

func (r *stockRepo) Get(_ context.Context, productID, warehouseID string) (*entity.Stock, error) {
	var out *entity.Stock
	err := r.h.do(func(st *state) error {
		s, ok := st.stock[stockKey(productID, warehouseID)]
		if !ok {
			out = &entity.Stock{ProductID: productID, WarehouseID: warehouseID, Quantity: decimal.Zero, AverageCost: decimal.Zero, Active: true}
			return nil
		}
		out = plain(s)
		return nil
	})
	return out, err
}

func (r *stockRepo) GetForUpdate(_ context.Context, productID, warehouseID string) (*entity.Stock, error) {
	var out *entity.Stock
	err := r.h.do(func(st *state) error {
		key := stockKey(productID, warehouseID)
		s, ok := st.stock[key]
		if !ok {
			s = &entity.Stock{ProductID: productID, WarehouseID: warehouseID, Quantity: decimal.Zero, AverageCost: decimal.Zero, Active: true}
			st.stock[key] = s
		}
		out = plain(s)
		return nil
	})
	return out, err
}

func (r *stockRepo) Update(_ context.Context, s *entity.Stock) error {
	return r.h.do(func(st *state) error {
		st.stock[stockKey(s.ProductID, s.WarehouseID)] = plain(s)
		return nil
	})
}

func (r *stockRepo) List(_ context.Context, warehouseID *string) ([]*entity.Stock, error) {
	var out []*entity.Stock
	err := r.h.do(func(st *state) error {
		for _, s := range st.stock {
			if !s.Active || (warehouseID != nil && s.WarehouseID != *warehouseID) {
				continue
			}
			out = append(out, plain(s))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].WarehouseID < out[j].WarehouseID
	})
	return out, err
}

type movementRepo struct{ h *handle }

func (r *movementRepo) Create(_ context.Context, m *entity.InventoryMovement) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.movements[m.ID]; ok {
			return domain.ErrDuplicate
		}
		st.movements[m.ID] = cloneMovement(m)
		return nil
	})
}

func (r *movementRepo) GetByID(_ context.Context, id string) (*entity.InventoryMovement, error) {
	var out *entity.InventoryMovement
	err := r.h.do(func(st *state) error {
		m, ok := st.movements[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = cloneMovement(m)
		return nil
	})
	return out, err
}

func (r *movementRepo) GetForUpdate(ctx context.Context, id string) (*entity.InventoryMovement, error) {
	return r.GetByID(ctx, id)
}

func (r *movementRepo) Update(_ context.Context, m *entity.InventoryMovement) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.movements[m.ID]; !ok {
			return domain.ErrNotFound
		}
		st.movements[m.ID] = cloneMovement(m)
		return nil
	})
}

func (r *movementRepo) ListByReference(_ context.Context, reference string) ([]*entity.InventoryMovement, error) {
	var out []*entity.InventoryMovement
	err := r.h.do(func(st *state) error {
		for _, m := range st.movements {
			if m.Reference == reference {
				out = append(out, cloneMovement(m))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, err
}

type kardexRepo struct{ h *handle }

func (r *kardexRepo) Append(_ context.Context, e *entity.KardexEntry) error {
	return r.h.do(func(st *state) error {
		st.kardexSeq++
		e.Seq = st.kardexSeq
		c := *e
		st.kardex = append(st.kardex, &c)
		return nil
	})
}

func (r *kardexRepo) LastBefore(_ context.Context, productID, warehouseID string, t time.Time) (*entity.KardexEntry, error) {
	var out *entity.KardexEntry
	err := r.h.do(func(st *state) error {
		for _, e := range sortedKardex(st.kardex) {
			if e.ProductID == productID && e.WarehouseID == warehouseID && e.Date.Before(t) {
				c := *e
				out = &c
			}
		}
		return nil
	})
	return out, err
}

func (r *kardexRepo) List(_ context.Context, productID, warehouseID string, from, to time.Time) ([]*entity.KardexEntry, error) {
	var out []*entity.KardexEntry
	err := r.h.do(func(st *state) error {
		for _, e := range sortedKardex(st.kardex) {
			if e.ProductID != productID || e.WarehouseID != warehouseID {
				continue
			}
			if e.Date.Before(from) || e.Date.After(to) {
				continue
			}
			c := *e
			out = append(out, &c)
		}
		return nil
	})
	return out, err
}

func sortedKardex(in []*entity.KardexEntry) []*entity.KardexEntry {
	out := append([]*entity.KardexEntry(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}
