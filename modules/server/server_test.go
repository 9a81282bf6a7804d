package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"razza-canvas-server/modules/account"
	"razza-canvas-server/modules/common/auth"
	"razza-canvas-server/modules/common/events"
	"razza-canvas-server/modules/common/i18n"
	"razza-canvas-server/modules/common/model"
	"razza-canvas-server/modules/common/response"
	generateimage "razza-canvas-server/modules/generate-image"
)

const testSecret = "test-secret"

type stubLedger struct{}

func (stubLedger) GetBalance(context.Context, string) (int, error) { return 3, nil }

func (stubLedger) History(context.Context, string, int) ([]model.CreditTransaction, error) {
	return nil, nil
}

type stubHistory struct{}

func (stubHistory) ListGenerations(context.Context, string, int) ([]model.Generation, error) {
	return nil, nil
}

func (stubHistory) DeleteGeneration(context.Context, string, string) (bool, error) {
	return false, nil
}

type stubCallbacks struct{}

func (stubCallbacks) InsertCallbackRequest(_ context.Context, req *model.CallbackRequest) error {
	req.ID = "cb-1"
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *events.Hub) {
	t.Helper()
	logger := zap.NewNop()

	m, err := i18n.NewManager("en", logger)
	require.NoError(t, err)
	rw := response.NewWriter(m, logger)

	verifier, err := auth.NewVerifier("", "", testSecret, "")
	require.NoError(t, err)

	hub := events.NewHub("*", logger)
	handler := NewHandler(Deps{
		AllowedOrigin: "*",
		Auth:          verifier,
		OnAuthError:   rw.Unauthorized,
		Generate:      generateimage.NewHandler(nil, rw, logger),
		Account:       account.NewHandler(stubLedger{}, stubHistory{}, rw, logger),
		Callbacks:     account.NewCallbackHandler(stubCallbacks{}, rw, logger),
		Hub:           hub,
		Logger:        logger,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, hub
}

func token(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, ServiceName, body["service"])
}

func TestPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/generate", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestAPIRequiresToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/credits")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var body response.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, response.ErrCodeUnauthorized, body.ErrorCode)
}

func TestAPIWithToken(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/credits", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, "user_1"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body account.CreditsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 3, body.Credits)
}

func TestDeleteUnknownHistoryIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/history/missing", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, "user_1"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketWithQueryToken(t *testing.T) {
	srv, hub := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token(t, "user_ws")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount("user_ws") == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish("user_ws", events.Event{Type: events.TypeStage, Stage: model.StageAnalyzed})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got events.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, model.StageAnalyzed, got.Stage)
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	srv, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCallbackRequestRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/callback-requests",
		strings.NewReader(`{"contact":"a@b.om","package":{"credits":20,"omr":2}}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, "user_1"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body account.CallbackResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "cb-1", body.Data.ID)
	assert.Equal(t, "user_1", body.Data.UserID)
}
