package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clioworks/figura/internal/jsonfile"
	"github.com/clioworks/figura/internal/kanban"
	"github.com/clioworks/figura/internal/schema"
)

type stubDriver struct {
	err error
}

func (d *stubDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	if d.err != nil {
		return neo4j.EagerResult{}, d.err
	}
	return neo4j.EagerResult{Records: []*neo4j.Record{}}, nil
}

func (d *stubDriver) Close(ctx context.Context) error { return nil }

func TestHealthz(t *testing.T) {
	router := setup(t, &stubDriver{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatus(t *testing.T) {
	router := setup(t, &stubDriver{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Queues kanban.Status `json:"queues"`
		Graph  string        `json:"graph"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Queues.Todo)
	assert.Equal(t, 2, body.Queues.Remaining)
	assert.Equal(t, "ok", body.Graph)
}

func setup(t *testing.T, d *stubDriver) http.Handler {
	t.Helper()
	store := kanban.NewStore(t.TempDir(), zap.NewNop())
	seed := filepath.Join(store.Dir, "x_harvest.json")
	require.NoError(t, jsonfile.Write(seed, []schema.WorkRecord{{WikidataID: "Q1"}, {WikidataID: "Q2"}}))
	_, err := store.Seed([]string{seed})
	require.NoError(t, err)

	return NewServer(store, d, zap.NewNop()).SetupRouter()
}
