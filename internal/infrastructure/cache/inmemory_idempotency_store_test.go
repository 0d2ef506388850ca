package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_Flujo(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryIdempotencyStore()

	existing, reserved, err := s.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.Nil(t, existing)

	// Segunda petición mientras la primera sigue en curso.
	existing, reserved, err = s.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Nil(t, existing)

	require.NoError(t, s.Complete(ctx, "k1", StoredResponse{Status: 201, ContentType: "application/json", Body: []byte(`{"id":"v-1"}`)}, time.Minute))

	existing, reserved, err = s.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, reserved)
	require.NotNil(t, existing)
	assert.Equal(t, 201, existing.Status)
	assert.JSONEq(t, `{"id":"v-1"}`, string(existing.Body))
}

func TestInMemoryIdempotencyStore_ReleaseYExpiracion(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	s := NewInMemoryIdempotencyStore()
	s.now = func() time.Time { return now }

	_, _, err := s.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "k1"))
	_, reserved, err := s.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved, "una clave liberada se puede volver a reservar")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 0, s.Size())
	_, reserved, err = s.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved, "una clave expirada se puede volver a reservar")
}
