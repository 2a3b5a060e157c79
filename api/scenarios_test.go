/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario payload parses and loads, and that the
	scenario endpoints track the current scenario:
	- Every payload goes through the record factory without error
	- Loading replaces the previous store contents
	- Unknown scenarios are rejected

These tests ensure scenarios work correctly and can be used as integration tests.
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioPayloads_Parse(t *testing.T) {
	h := setupTestHandler(t)

	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			build, ok := scenarioPayloads[s.ID]
			require.True(t, ok, "no payload for %s", s.ID)

			snap, err := h.Factory.ParseSnapshot([]byte(build(testNow)))
			require.NoError(t, err)
			assert.NotZero(t, snap.Size())
			assert.NotEmpty(t, snap.Files)
		})
	}
}

func TestScenario_TwoFiles(t *testing.T) {
	// GIVEN: The two-files scenario
	// WHEN: Loading it
	// THEN: Two lots, two clients, two files, three payments and one
	//       certificate are stored

	h, router := setupTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "two-files"})
	require.Equal(t, http.StatusOK, rec.Code)

	result := decodeBody[ImportResultDTO](t, rec)
	assert.Equal(t, 10, result.Imported)
	assert.Equal(t, 3, result.Payments)

	snap, err := h.Repo.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Files, 2)
	assert.Len(t, snap.Certificates, 1)
}

func TestScenario_LoadReplacesPrevious(t *testing.T) {
	h, router := setupTestRouter(t)

	loadScenario(t, router, "expiry-boundaries")
	loadScenario(t, router, "document-lineage")

	snap, err := h.Repo.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Files, 2)
	assert.Len(t, snap.Documents, 4)
	assert.Empty(t, snap.Payments)
}

func TestScenario_Current(t *testing.T) {
	_, router := setupTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	loadScenario(t, router, "dirty-backend")

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	current := decodeBody[ScenarioDTO](t, rec)
	assert.Equal(t, "dirty-backend", current.ID)
	assert.Equal(t, "Dirty Backend", current.Name)

	rec = do(t, router, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	rec = do(t, router, http.MethodGet, "/api/files", nil)
	assert.Empty(t, decodeBody[[]FileListEntryDTO](t, rec))
}

func TestScenario_List(t *testing.T) {
	_, router := setupTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]ScenarioDTO](t, rec), len(scenarios))
}

func TestScenario_Unknown(t *testing.T) {
	_, router := setupTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
