package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
)

type documentRepo struct{ h *handle }

func (r *documentRepo) Create(_ context.Context, d *entity.ElectronicDocument) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.documents[d.ID]; ok {
			return domain.ErrDuplicate
		}
		st.documents[d.ID] = cloneDocument(d)
		return nil
	})
}

func (r *documentRepo) GetByID(_ context.Context, id string) (*entity.ElectronicDocument, error) {
	var out *entity.ElectronicDocument
	err := r.h.do(func(st *state) error {
		d, ok := st.documents[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = cloneDocument(d)
		return nil
	})
	return out, err
}

func (r *documentRepo) GetForUpdate(ctx context.Context, id string) (*entity.ElectronicDocument, error) {
	return r.GetByID(ctx, id)
}

func (r *documentRepo) GetByReference(_ context.Context, docType, referenceID string) (*entity.ElectronicDocument, error) {
	var out *entity.ElectronicDocument
	err := r.h.do(func(st *state) error {
		for _, d := range st.documents {
			if d.Active && d.Type == docType && d.ReferenceID == referenceID {
				out = cloneDocument(d)
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return out, err
}

func (r *documentRepo) Update(_ context.Context, d *entity.ElectronicDocument) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.documents[d.ID]; !ok {
			return domain.ErrNotFound
		}
		st.documents[d.ID] = cloneDocument(d)
		return nil
	})
}

func (r *documentRepo) ListDue(_ context.Context, statuses []string, maxAttempts int, now time.Time, limit int) ([]*entity.ElectronicDocument, error) {
	wanted := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	var out []*entity.ElectronicDocument
	err := r.h.do(func(st *state) error {
		for _, d := range st.documents {
			if !d.Active || !wanted[d.Status] || d.Attempts >= maxAttempts {
				continue
			}
			if d.NextRetryAt != nil && d.NextRetryAt.After(now) {
				continue
			}
			out = append(out, cloneDocument(d))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

type historyRepo struct{ h *handle }

func (r *historyRepo) Append(_ context.Context, hist *entity.DocumentHistory) error {
	return r.h.do(func(st *state) error {
		c := *hist
		st.history = append(st.history, &c)
		return nil
	})
}

func (r *historyRepo) ListByDocument(_ context.Context, documentID string) ([]*entity.DocumentHistory, error) {
	var out []*entity.DocumentHistory
	err := r.h.do(func(st *state) error {
		for _, hist := range st.history {
			if hist.DocumentID == documentID {
				c := *hist
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}

type taskRepo struct{ h *handle }

func (r *taskRepo) Create(_ context.Context, t *entity.SRITask) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.tasks[t.ID]; ok {
			return domain.ErrDuplicate
		}
		if activeTask(st, t.EntityID, t.DocumentType) != nil {
			return domain.ErrDuplicate
		}
		st.tasks[t.ID] = cloneTask(t)
		st.taskOrder = append(st.taskOrder, t.ID)
		return nil
	})
}

func (r *taskRepo) GetByID(_ context.Context, id string) (*entity.SRITask, error) {
	var out *entity.SRITask
	err := r.h.do(func(st *state) error {
		t, ok := st.tasks[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = cloneTask(t)
		return nil
	})
	return out, err
}

func (r *taskRepo) GetForUpdate(ctx context.Context, id string) (*entity.SRITask, error) {
	return r.GetByID(ctx, id)
}

func (r *taskRepo) FindActive(_ context.Context, entityID, docType string) (*entity.SRITask, error) {
	var out *entity.SRITask
	err := r.h.do(func(st *state) error {
		if t := activeTask(st, entityID, docType); t != nil {
			out = cloneTask(t)
		}
		return nil
	})
	return out, err
}

func (r *taskRepo) LatestByDocument(_ context.Context, documentID string) (*entity.SRITask, error) {
	var out *entity.SRITask
	err := r.h.do(func(st *state) error {
		for i := len(st.taskOrder) - 1; i >= 0; i-- {
			t := st.tasks[st.taskOrder[i]]
			if t.DocumentID == documentID {
				out = cloneTask(t)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *taskRepo) Update(_ context.Context, t *entity.SRITask) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.tasks[t.ID]; !ok {
			return domain.ErrNotFound
		}
		st.tasks[t.ID] = cloneTask(t)
		return nil
	})
}

func activeTask(st *state, entityID, docType string) *entity.SRITask {
	for _, id := range st.taskOrder {
		t := st.tasks[id]
		if t.Active && !t.IsTerminal() && t.EntityID == entityID && t.DocumentType == docType {
			return t
		}
	}
	return nil
}
