package sri

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNetworkBackoff(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{0, time.Second},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NetworkBackoff(c.attempts), "intentos=%d", c.attempts)
	}
}

func TestReceivedBackoff_MinimoDosSegundos(t *testing.T) {
	assert.Equal(t, 2*time.Second, ReceivedBackoff(1))
	assert.Equal(t, 2*time.Second, ReceivedBackoff(2))
	assert.Equal(t, 4*time.Second, ReceivedBackoff(3))
}

func TestBackoff_Acotado(t *testing.T) {
	assert.Equal(t, time.Duration(1<<maxBackoffExp)*time.Second, NetworkBackoff(100))
}

func TestNextRetry(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(4*time.Second), NextRetry(now, NetworkBackoff(3)))
}
