package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"razza-canvas-server/modules/common/i18n"
	"razza-canvas-server/modules/common/model"
)

func newWriter(t *testing.T) *Writer {
	t.Helper()
	m, err := i18n.NewManager("en", zap.NewNop())
	require.NoError(t, err)
	return NewWriter(m, zap.NewNop())
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unauthorized", model.ErrUnauthorized, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"credits", fmt.Errorf("check: %w", model.ErrInsufficientCredits), http.StatusPaymentRequired, ErrCodeInsufficientCredits},
		{"empty prompt", model.ErrEmptyPrompt, http.StatusBadRequest, ErrCodeEmptyPrompt},
		{"upstream", fmt.Errorf("%w: boom", model.ErrUpstreamModel), http.StatusBadGateway, ErrCodeGenerationFailed},
		{"no image", model.ErrNoImageProduced, http.StatusBadGateway, ErrCodeGenerationFailed},
		{"ledger", model.ErrLedgerUnavailable, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"not found", model.ErrGenerationNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeGenerationFailed},
		{"upstream timeout", fmt.Errorf("%w: gemini: %w", model.ErrUpstreamModel, context.DeadlineExceeded), http.StatusGatewayTimeout, ErrCodeGenerationFailed},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MapError(tt.err)
			assert.Equal(t, tt.status, m.Status)
			assert.Equal(t, tt.code, m.Code)
		})
	}
}

func TestFromErrorLocalizes(t *testing.T) {
	rw := newWriter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
	req.Header.Set("Accept-Language", "ar")
	rec := httptest.NewRecorder()
	rw.FromError(rec, req, model.ErrInsufficientCredits)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, ErrCodeInsufficientCredits, body.ErrorCode)
	assert.NotEqual(t, i18n.MsgInsufficientCredits, body.Error)
}

func TestPromptTooLongCarriesMax(t *testing.T) {
	rw := newWriter(t)

	rec := httptest.NewRecorder()
	rw.FromError(rec, httptest.NewRequest(http.MethodPost, "/", nil), model.ErrPromptTooLong)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "2000")
}

func TestRateLimited(t *testing.T) {
	rw := newWriter(t)

	rec := httptest.NewRecorder()
	rw.RateLimited(rec, httptest.NewRequest(http.MethodPost, "/", nil), 42, "req-1")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 42, body.WaitTime)
	assert.Equal(t, "req-1", body.RequestID)
	assert.Contains(t, body.Error, "42")
}
