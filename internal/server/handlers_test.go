package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/sceneline/internal/engine"
	"github.com/scrypster/sceneline/internal/resolve"
	"github.com/scrypster/sceneline/internal/storage/jsonfile"
	"github.com/scrypster/sceneline/pkg/types"
)

func testHandlers(t *testing.T) (*Handlers, *engine.SceneEngine) {
	t.Helper()
	store := jsonfile.NewStateStore(filepath.Join(t.TempDir(), "state.json"))
	eng, err := engine.NewSceneEngine(store, resolve.NewResolver(nil))
	require.NoError(t, err)
	return NewHandlers(eng), eng
}

func ingestFixture(t *testing.T, eng *engine.SceneEngine, payload string) {
	t.Helper()
	_, err := eng.IngestJSON(context.Background(), []byte(payload))
	require.NoError(t, err)
}

func TestIngestHandler(t *testing.T) {
	handlers, _ := testHandlers(t)

	body := strings.NewReader(`{
		"events": [{
			"id": "e1",
			"timestamp": "2024-05-06T11:00:00Z",
			"action": "wave",
			"actors": [{"name": "Alice", "type": "person"}]
		}]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	rec := httptest.NewRecorder()

	handlers.Ingest(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TimelineEvents)
	assert.Equal(t, 1, resp.KnownEntities)
}

func TestIngestHandlerRejectsInvalidPayload(t *testing.T) {
	handlers, _ := testHandlers(t)

	cases := []struct {
		name string
		body string
	}{
		{"not_json", `{broken`},
		{"not_an_object", `[1, 2, 3]`},
		{"missing_timestamp", `{"events": [{"action": "wave"}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			handlers.Ingest(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestGetStateHandler(t *testing.T) {
	handlers, eng := testHandlers(t)
	ingestFixture(t, eng, `{"events": [{"id": "e1", "timestamp": "2024-05-06T11:00:00Z"}]}`)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()

	handlers.GetState(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var state types.SceneState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Len(t, state.Timeline, 1)
}

func TestGetTimelineHandlerFilters(t *testing.T) {
	handlers, eng := testHandlers(t)
	ingestFixture(t, eng, `{"events": [
		{"id": "e1", "timestamp": "2024-05-06T10:00:00Z"},
		{"id": "e2", "timestamp": "2024-05-06T11:00:00Z"},
		{"id": "e3", "timestamp": "2024-05-06T12:00:00Z"}
	]}`)

	type timelineResponse struct {
		Timeline []types.Event `json:"timeline"`
		Total    int           `json:"total"`
	}

	t.Run("since", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/timeline?since=2024-05-06T11:00:00Z", nil)
		rec := httptest.NewRecorder()

		handlers.GetTimeline(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp timelineResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Timeline, 2)
		assert.Equal(t, "e2", resp.Timeline[0].ID)
		assert.Equal(t, 3, resp.Total)
	})

	t.Run("limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/timeline?limit=1", nil)
		rec := httptest.NewRecorder()

		handlers.GetTimeline(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp timelineResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Timeline, 1)
		assert.Equal(t, "e3", resp.Timeline[0].ID)
	})

	t.Run("bad_since", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/timeline?since=yesterday", nil)
		rec := httptest.NewRecorder()

		handlers.GetTimeline(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetEntityHandler(t *testing.T) {
	handlers, eng := testHandlers(t)
	ingestFixture(t, eng, `{"events": [{
		"id": "e1",
		"timestamp": "2024-05-06T11:00:00Z",
		"actors": [{"id": "p1", "name": "Alice", "type": "person"}]
	}]}`)

	req := httptest.NewRequest(http.MethodGet, "/api/entities/p1", nil)
	req.SetPathValue("id", "p1")
	rec := httptest.NewRecorder()

	handlers.GetEntity(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var entity types.EntityState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entity))
	assert.Equal(t, "Alice", entity.Name)
	assert.Equal(t, "e1", entity.LastEventID)
}

func TestGetEntityHandlerNotFound(t *testing.T) {
	handlers, _ := testHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/entities/nobody", nil)
	req.SetPathValue("id", "nobody")
	rec := httptest.NewRecorder()

	handlers.GetEntity(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "nobody")
}

func TestListEntitiesHandler(t *testing.T) {
	handlers, eng := testHandlers(t)
	ingestFixture(t, eng, `{"events": [{
		"id": "e1",
		"timestamp": "2024-05-06T11:00:00Z",
		"actors": [{"id": "p1", "type": "person"}],
		"targets": [{"id": "o1", "type": "object"}]
	}]}`)

	req := httptest.NewRequest(http.MethodGet, "/api/entities", nil)
	rec := httptest.NewRecorder()

	handlers.ListEntities(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Entities map[string]types.EntityState `json:"entities"`
		Total    int                          `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Contains(t, resp.Entities, "p1")
	assert.Contains(t, resp.Entities, "o1")
}
