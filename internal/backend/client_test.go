package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

func TestKeyOptionsRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/report/keys", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req KeyOptionsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tpl-1", req.TemplateID)
		assert.Equal(t, []string{"region", "line"}, req.Tokens)
		assert.Equal(t, "2024-01-01 00:00:00", req.StartDate)

		json.NewEncoder(w).Encode(map[string]any{
			"keys": map[string]any{
				"region": []any{"north", "south", 3},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.KeyOptions(context.Background(), KeyOptionsRequest{
		TemplateID: "tpl-1",
		Tokens:     []string{"region", "line"},
		Limit:      500,
		StartDate:  "2024-01-01 00:00:00",
		EndDate:    "2024-01-31 00:00:00",
		Kind:       "pdf",
	})
	require.NoError(t, err)
	require.Len(t, resp.Keys["region"], 3)
}

func TestDiscoverPartialPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Counts, schema, bins, and groups all absent on purpose.
		w.Write([]byte(`{"batches":[{"rows":10,"parent":2},{"id":"b2","rows":"5"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Discover(context.Background(), DiscoveryRequest{TemplateID: "tpl-1"})
	require.NoError(t, err)
	require.Len(t, resp.Batches, 2)
	assert.Nil(t, resp.BatchesCount)
	assert.Nil(t, resp.DiscoverySchema)
	assert.Equal(t, "b2", models.CoerceString(resp.Batches[1].ID))
}

func TestRunToleratesMissingArtifacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RunRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"1", "2"}, req.BatchIDs)
		assert.True(t, req.Xlsx)

		w.Write([]byte(`{"pdf_url":"/out/r.pdf","job_id":"j-9"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Run(context.Background(), RunRequest{
		TemplateID: "tpl-1",
		BatchIDs:   []string{"1", "2"},
		Xlsx:       true,
	})
	require.NoError(t, err)

	arts := resp.Artifacts()
	assert.Equal(t, "/out/r.pdf", arts.PDFURL)
	assert.Empty(t, arts.XlsxURL)
	assert.Equal(t, "j-9", resp.JobID)
}

func TestBackendErrorSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "connection refused by warehouse", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Discover(context.Background(), DiscoveryRequest{TemplateID: "tpl-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "warehouse")
}

func TestScheduleCRUD(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/schedules":
			w.Write([]byte(`[{"id":"s1","name":"daily north","frequency":"daily"}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/schedules":
			var req ScheduleRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			json.NewEncoder(w).Encode(models.Schedule{ID: "s2", Name: req.Name, Frequency: req.Frequency})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/schedules/s1":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	list, err := c.ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "daily north", list[0].Name)

	created, err := c.CreateSchedule(ctx, ScheduleRequest{Name: "weekly south", Frequency: "weekly"})
	require.NoError(t, err)
	assert.Equal(t, "s2", created.ID)

	require.NoError(t, c.DeleteSchedule(ctx, "s1"))
}
