package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raptaro/meditrakk-sub001/config"
	"github.com/raptaro/meditrakk-sub001/internal/queue/models"
	"github.com/raptaro/meditrakk-sub001/internal/queue/services"
	"github.com/raptaro/meditrakk-sub001/pkg/utils"
	"github.com/raptaro/meditrakk-sub001/ws"
)

type downStore struct {
	services.Store
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:        "test",
		JWTSecret:     "routes-test-secret",
		OperatorRoles: []string{"secretary", "admin"},
	}
}

func TestInit_WiresQueueAndHealth(t *testing.T) {
	cfg := testConfig()
	hub := ws.NewHub()
	svc := services.NewQueueService(services.NewMemoryStore(), services.WithPublisher(hub))
	e := echo.New()
	Init(e, cfg, svc, hub, zerolog.Nop())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["store"])

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue/lanes", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := utils.GenerateJWTToken(cfg.SigningSecret(), "K-1", "admin", "adi", time.Now().Add(time.Hour))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/queue/lanes/regular/accept-next", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "empty lane")

	_, err = svc.Enqueue(context.Background(), models.LaneRegular, models.PatientSnapshot{DisplayName: "A"})
	require.NoError(t, err)
	_, ok := hub.Latest(services.TopicDisplay)
	assert.True(t, ok, "mutations reach the hub")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/queue/display", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_StoreDown(t *testing.T) {
	svc := services.NewQueueService(downStore{})
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)

	require.NoError(t, HealthHandler(svc, ws.NewHub())(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
