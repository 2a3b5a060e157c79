package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstadoScheduler_RunNow(t *testing.T) {
	// GIVEN: Two certificates with stale estado caches
	// WHEN: Running the scheduler once, twice
	// THEN: The first run rewrites both, the second finds nothing

	h, router := setupTestRouter(t)
	loadScenario(t, router, "expiry-boundaries")

	s := NewEstadoScheduler(h, time.Hour)
	assert.Equal(t, 2, s.RunNow())
	assert.Equal(t, testNow, s.LastRun())
	assert.Equal(t, 0, s.RunNow())

	snap, err := h.Repo.Snapshot(context.Background())
	require.NoError(t, err)
	estados := map[string]string{}
	for _, c := range snap.Certificates {
		estados[c.ID] = c.Estado
	}
	assert.Equal(t, "expiring", estados["c-today"])
	assert.Equal(t, "expired", estados["c-yesterday"])
	assert.Empty(t, estados["c-garbage"])
}

func TestEstadoScheduler_StartStop(t *testing.T) {
	h, router := setupTestRouter(t)
	loadScenario(t, router, "expiry-boundaries")

	s := NewEstadoScheduler(h, time.Hour)
	require.True(t, s.Enabled)
	s.Start()

	assert.Eventually(t, func() bool { return !s.LastRun().IsZero() }, time.Second, 10*time.Millisecond)
	s.Stop()

	rec := do(t, router, http.MethodPost, "/api/certificates/refresh", nil)
	assert.Empty(t, decodeBody[RefreshResultDTO](t, rec).Refreshed)
}

func TestEstadoScheduler_Disabled(t *testing.T) {
	h := setupTestHandler(t)

	s := NewEstadoScheduler(h, 0)
	assert.False(t, s.Enabled)
	s.Start()
	s.Stop()
	assert.True(t, s.LastRun().IsZero())
}
