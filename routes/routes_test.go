package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/venue-tournaments/handlers"
	"github.com/Dosada05/venue-tournaments/metrics"
	"github.com/Dosada05/venue-tournaments/middleware"
	"github.com/Dosada05/venue-tournaments/models"
	"github.com/Dosada05/venue-tournaments/realtime"
	"github.com/Dosada05/venue-tournaments/repositories"
	"github.com/Dosada05/venue-tournaments/services"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type apiEnv struct {
	server   *httptest.Server
	registry *services.TournamentRegistry
}

type schemaMissingTournaments struct {
	repositories.TournamentRepository
}

func (schemaMissingTournaments) List(context.Context, repositories.TournamentFilter) ([]models.Tournament, error) {
	return nil, fmt.Errorf("pq: relation \"tournaments\" does not exist: %w", repositories.ErrSchema)
}

func newAPIEnv(t *testing.T, tournaments repositories.TournamentRepository) *apiEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repositories.NewMemoryStore()
	if tournaments == nil {
		tournaments = store.Tournaments()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := services.NewAuthService(services.AuthConfig{
		AdminEmail:        "admin@example.com",
		AdminPasswordHash: string(hash),
		JWTSecret:         "test-secret",
		TokenTTL:          time.Hour,
	})

	m := metrics.New(prometheus.NewRegistry())
	hub := realtime.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	registry := services.NewTournamentRegistry(services.RegistryConfig{
		Tournaments:    tournaments,
		Registrations:  store.Registrations(),
		Identity:       auth,
		ReconcileDelay: -1,
		Logger:         logger,
		Metrics:        m,
		Notifier:       hub,
	})
	t.Cleanup(func() {
		registry.Close()
		cancel()
	})

	router := chi.NewRouter()
	SetupRoutes(router, Handlers{
		Auth:          handlers.NewAuthHandler(auth),
		Tournaments:   handlers.NewTournamentHandler(registry),
		Registrations: handlers.NewRegistrationHandler(registry, services.NewExportService(registry, nil, logger)),
		Orders:        handlers.NewOrderHandler(services.NewOrderService("+244 950 949 098")),
		WebSocket:     handlers.NewWebSocketHandler(hub, []string{"*"}),
	}, Options{
		Authenticator:       auth,
		Admins:              auth,
		RegistrationLimiter: middleware.NewIPRateLimiter(1000),
		AllowedOrigins:      []string{"*"},
		Metrics:             m.Handler(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &apiEnv{server: srv, registry: registry}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func (e *apiEnv) login(t *testing.T) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "admin@example.com", "password": "s3cret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, ok := body["token"].(string)
	require.True(t, ok)
	return token
}

func TestAPI_TournamentLifecycle(t *testing.T) {
	env := newAPIEnv(t, nil)
	token := env.login(t)

	resp, body := env.do(t, http.MethodPost, "/tournaments/editions", "", map[string]any{"game": "Alpha", "current_edition": 0})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	resp, body = env.do(t, http.MethodPost, "/tournaments/editions", token, map[string]any{"game": "Alpha", "current_edition": 0})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tournament := body["tournament"].(map[string]any)
	id := tournament["id"].(string)
	assert.Equal(t, float64(1), tournament["edition"])

	resp, body = env.do(t, http.MethodGet, "/tournaments/active", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := body["tournaments"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, float64(20), list[0].(map[string]any)["remaining_spots"])

	resp, body = env.do(t, http.MethodPost, "/tournaments/"+id+"/registrations", "", map[string]string{
		"full_name": "Ana", "whatsapp_number": "912 345 678",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(19), body["remaining_spots"])

	resp, body = env.do(t, http.MethodPost, "/tournaments/"+id+"/registrations", "", map[string]string{
		"full_name": "Ana", "whatsapp_number": "912-345-678",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, services.ErrDuplicateRegistration.Error(), body["error"])

	resp, _ = env.do(t, http.MethodPost, "/tournaments/"+id+"/registrations", "", map[string]string{"full_name": "Ana"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/tournaments/"+id+"/registrations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/tournaments/"+id+"/registrations", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	resp, _ = env.do(t, http.MethodGet, "/tournaments/"+id+"/registrations/export", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "alpha-1-")

	resp, body = env.do(t, http.MethodPost, "/tournaments/"+id+"/reset", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["removed"])

	resp, body = env.do(t, http.MethodGet, "/tournaments/"+id+"/spots", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(20), body["spots"].(map[string]any)["remaining_spots"])

	resp, _ = env.do(t, http.MethodDelete, "/tournaments/"+id, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/tournaments/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Auth(t *testing.T) {
	env := newAPIEnv(t, nil)

	resp, _ := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "admin@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/auth/me", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["is_administrator"])

	token := env.login(t)
	_, body = env.do(t, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, true, body["is_administrator"])

	resp, _ = env.do(t, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = env.do(t, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, false, body["is_administrator"])
	resp, _ = env.do(t, http.MethodPost, "/tournaments/editions", token, map[string]any{"game": "Alpha"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_SetupRequiredWhenSchemaMissing(t *testing.T) {
	env := newAPIEnv(t, schemaMissingTournaments{})

	resp, body := env.do(t, http.MethodGet, "/tournaments", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, true, body["setup_required"])
	assert.Equal(t, false, body["success"])
	assert.Empty(t, body["tournaments"])
}

func TestAPI_OrderHandoff(t *testing.T) {
	env := newAPIEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/orders/handoff", "", map[string]any{
		"items": []map[string]any{{"name": "Sumo", "quantity": 2, "price": 800}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	handoff := body["handoff"].(map[string]any)
	assert.True(t, strings.HasPrefix(handoff["url"].(string), "https://wa.me/244950949098?text="))

	resp, _ = env.do(t, http.MethodPost, "/orders/handoff", "", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Metrics(t *testing.T) {
	env := newAPIEnv(t, nil)
	env.do(t, http.MethodGet, "/tournaments", "", nil)

	resp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "venue_gateway_calls_total")
}
