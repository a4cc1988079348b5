package api

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/domacity/internal/config"
	"github.com/talgya/domacity/internal/design"
	"github.com/talgya/domacity/internal/engine"
	"github.com/talgya/domacity/internal/play"
)

func cell(s string) *string { return &s }

func newTestServer(t *testing.T, burnIn int) *Server {
	t.Helper()
	d := &design.Design{
		Map: design.Map{Layout: [][]*string{
			{cell("0|Residential"), cell("-1|Park")},
			{cell("0|Residential"), cell("-1|River")},
		}},
		Neighborhoods: map[int]design.Neighborhood{
			0: {
				Name: "Test", Desirability: 5,
				MinUnits: 4, MaxUnits: 4,
				MinArea: 40, MaxArea: 40,
				SqmPerOccupant: 20, PCommercial: 0.2,
			},
		},
		City: design.CityParams{
			Name:             "Testville",
			MaxBedrooms:      3,
			PricePerSqm:      100,
			PriceToRentRatio: 20,
			Landlords:        2,
			Population:       6,
			Incomes:          []design.IncomeBracket{{Low: 1000, High: 3000, P: 1}},
		},
	}
	sim, err := engine.New(d, config.Default(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	return &Server{Sim: sim, Play: play.NewManager(), Mu: &sync.Mutex{}, BurnIn: burnIn}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetStatus(t *testing.T) {
	s := newTestServer(t, 0)
	w := doJSON(t, s.Router(), http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(0), resp["month"])
	assert.Contains(t, resp, "stats")
}

func TestGetUnitAndTenant(t *testing.T) {
	s := newTestServer(t, 0)
	router := s.Router()

	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/api/units/0", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/units/999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, router, http.MethodGet, "/api/units/zero", nil).Code)

	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/api/tenants/0", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodGet, "/api/tenants/999", nil).Code)
}

func TestSessionAndCommandFlow(t *testing.T) {
	s := newTestServer(t, 0)
	router := s.Router()

	w := doJSON(t, router, http.MethodPost, "/api/sessions", map[string]any{"tenantId": 1})
	require.Equal(t, http.StatusCreated, w.Code)
	var session struct {
		ID       string `json:"id"`
		TenantID int    `json:"tenantId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.Equal(t, 1, session.TenantID)

	// Claiming the same tenant twice conflicts.
	w = doJSON(t, router, http.MethodPost, "/api/sessions", map[string]any{"tenantId": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/commands", map[string]any{
		"session": session.ID,
		"kind":    "contribute",
		"amount":  25,
	})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 2, s.Play.Pending()) // takeover + contribution

	w = doJSON(t, router, http.MethodPost, "/api/commands", map[string]any{
		"session": session.ID,
		"kind":    "run",
		"months":  3,
	})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 3, s.Play.Pending())

	// Unknown sessions are rejected.
	w = doJSON(t, router, http.MethodPost, "/api/commands", map[string]any{
		"session": "00000000-0000-0000-0000-000000000001",
		"kind":    "contribute",
		"amount":  25,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCommandsRejectedDuringBurnIn(t *testing.T) {
	s := newTestServer(t, 10)
	router := s.Router()

	w := doJSON(t, router, http.MethodPost, "/api/sessions", map[string]any{"tenantId": 0})
	require.Equal(t, http.StatusCreated, w.Code)
	var session struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	w = doJSON(t, router, http.MethodPost, "/api/commands", map[string]any{
		"session": session.ID,
		"kind":    "move_tenant",
		"unitId":  0,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}
