package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
)

func TestStore_RunRollback(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	boom := errors.New("boom")
	err := s.Run(ctx, func(r repository.Repos) error {
		st, err := r.Stock.GetForUpdate(ctx, "p1", "w1")
		require.NoError(t, err)
		st.Quantity = decimal.NewFromInt(10)
		require.NoError(t, r.Stock.Update(ctx, st))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	list, err := s.Repos().Stock.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_RunCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Run(ctx, func(r repository.Repos) error {
		st, _ := r.Stock.GetForUpdate(ctx, "p1", "w1")
		st.Quantity = decimal.NewFromInt(3)
		return r.Stock.Update(ctx, st)
	}))

	got, err := s.Repos().Stock.Get(ctx, "p1", "w1")
	require.NoError(t, err)
	assert.Equal(t, "3", got.Quantity.String())
}

func TestStore_ObjetosDevueltosSonCopias(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	r := s.Repos()
	require.NoError(t, r.Products.Create(ctx, &entity.Product{ID: "p1", Active: true,
		Taxes: []entity.ProductTax{{Kind: entity.TaxKindIVA, TaxCode: "2", RateCode: "4"}}}))

	p, _ := r.Products.GetByID(ctx, "p1")
	p.Taxes[0].RateCode = "0"

	again, _ := r.Products.GetByID(ctx, "p1")
	assert.Equal(t, "4", again.Taxes[0].RateCode)
}

func TestTaskRepo_UnaActivaPorEntidad(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	r := s.Repos()

	require.NoError(t, r.Tasks.Create(ctx, &entity.SRITask{ID: "t1", EntityID: "v1", DocumentType: entity.DocumentTypeFactura, Status: entity.TaskStatusPendiente, Active: true}))
	err := r.Tasks.Create(ctx, &entity.SRITask{ID: "t2", EntityID: "v1", DocumentType: entity.DocumentTypeFactura, Status: entity.TaskStatusPendiente, Active: true})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	// Con la primera terminada se permite una nueva.
	t1, _ := r.Tasks.GetByID(ctx, "t1")
	t1.Status = entity.TaskStatusFallido
	require.NoError(t, r.Tasks.Update(ctx, t1))
	require.NoError(t, r.Tasks.Create(ctx, &entity.SRITask{ID: "t3", EntityID: "v1", DocumentType: entity.DocumentTypeFactura, Status: entity.TaskStatusPendiente, Active: true, DocumentID: "d1"}))

	active, err := r.Tasks.FindActive(ctx, "v1", entity.DocumentTypeFactura)
	require.NoError(t, err)
	assert.Equal(t, "t3", active.ID)
	assert.Equal(t, 2, s.CountTasks("v1", entity.DocumentTypeFactura))
}

func TestDocumentRepo_ListDue(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	r := s.Repos()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	docs := []*entity.ElectronicDocument{
		{ID: "a", Status: entity.DocStatusEnCola, Active: true},
		{ID: "b", Status: entity.DocStatusRecibido, NextRetryAt: &earlier, Active: true},
		{ID: "c", Status: entity.DocStatusRecibido, NextRetryAt: &later, Active: true},
		{ID: "d", Status: entity.DocStatusAutorizado, Active: true},
		{ID: "e", Status: entity.DocStatusEnCola, Attempts: 5, Active: true},
	}
	for _, d := range docs {
		require.NoError(t, r.Documents.Create(ctx, d))
	}

	due, err := r.Documents.ListDue(ctx, []string{entity.DocStatusEnCola, entity.DocStatusRecibido}, 5, now, 0)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, d := range due {
		ids[d.ID] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true}, ids)
}
