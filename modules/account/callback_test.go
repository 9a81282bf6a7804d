package account

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"razza-canvas-server/modules/common/auth"
	"razza-canvas-server/modules/common/i18n"
	"razza-canvas-server/modules/common/model"
	"razza-canvas-server/modules/common/response"
)

type fakeCallbacks struct {
	saved []*model.CallbackRequest
	err   error
}

func (f *fakeCallbacks) InsertCallbackRequest(_ context.Context, req *model.CallbackRequest) error {
	if f.err != nil {
		return f.err
	}
	req.ID = fmt.Sprintf("cb-%d", len(f.saved)+1)
	f.saved = append(f.saved, req)
	return nil
}

func newCallbackHandler(t *testing.T, store CallbackStore) *CallbackHandler {
	t.Helper()
	m, err := i18n.NewManager("en", zap.NewNop())
	require.NoError(t, err)
	h := NewCallbackHandler(store, response.NewWriter(m, zap.NewNop()), zap.NewNop())
	h.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return h
}

func postCallback(h *CallbackHandler, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/callback-requests", strings.NewReader(body))
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	h.HandleCreate(rec, req)
	return rec
}

func TestCallbackRequestStored(t *testing.T) {
	store := &fakeCallbacks{}
	h := newCallbackHandler(t, store)

	rec := postCallback(h, "user_1",
		`{"contact":" +968 9000 0000 ","notes":"","package":{"credits":50,"omr":5.5},"userId":"someone_else"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	assert.Equal(t, "user_1", saved.UserID, "user comes from the token, not the body")
	assert.Equal(t, "+968 9000 0000", saved.Contact)
	assert.Nil(t, saved.Notes)
	require.NotNil(t, saved.PackageCredits)
	assert.Equal(t, 50, *saved.PackageCredits)
	require.NotNil(t, saved.PackagePrice)
	assert.Equal(t, 5.5, *saved.PackagePrice)
	assert.Equal(t, model.CallbackStatusPending, saved.Status)

	var resp CallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "cb-1", resp.Data.ID)
}

func TestCallbackRequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		body   string
		err    error
		status int
		code   string
	}{
		{"no user", "", `{"contact":"x"}`, nil, http.StatusUnauthorized, response.ErrCodeUnauthorized},
		{"bad json", "user_1", `{"contact":`, nil, http.StatusBadRequest, response.ErrCodeInvalidRequest},
		{"blank contact", "user_1", `{"contact":"   ","notes":"call me"}`, nil, http.StatusBadRequest, response.ErrCodeContactRequired},
		{"store down", "user_1", `{"contact":"a@b.om"}`, fmt.Errorf("insert: %w", model.ErrPersistence), http.StatusInternalServerError, response.ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeCallbacks{err: tt.err}
			rec := postCallback(newCallbackHandler(t, store), tt.userID, tt.body)

			assert.Equal(t, tt.status, rec.Code)
			var body response.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.ErrorCode)
			if tt.err == nil {
				assert.Empty(t, store.saved)
			}
		})
	}
}
