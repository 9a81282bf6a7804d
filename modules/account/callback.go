package account

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"razza-canvas-server/modules/common/i18n"
	"razza-canvas-server/modules/common/model"
	"razza-canvas-server/modules/common/response"
)

const maxCallbackBodyBytes = 16 << 10

// CallbackStore - 구매 상담 요청 저장
type CallbackStore interface {
	InsertCallbackRequest(ctx context.Context, req *model.CallbackRequest) error
}

// CallbackPackage - 사용자가 고른 크레딧 패키지
type CallbackPackage struct {
	Credits *int     `json:"credits"`
	OMR     *float64 `json:"omr"`
}

// CallbackRequestBody - POST /api/callback-requests
type CallbackRequestBody struct {
	Contact string           `json:"contact"`
	Notes   string           `json:"notes"`
	Package *CallbackPackage `json:"package"`
}

// CallbackResponse - 저장된 요청
type CallbackResponse struct {
	Success bool                   `json:"success"`
	Data    *model.CallbackRequest `json:"data"`
}

// CallbackHandler - 크레딧 구매 상담 요청 핸들러
type CallbackHandler struct {
	store  CallbackStore
	rw     *response.Writer
	logger *zap.Logger
	now    func() time.Time
}

// NewCallbackHandler - CallbackHandler 생성
func NewCallbackHandler(store CallbackStore, rw *response.Writer, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{store: store, rw: rw, logger: logger, now: time.Now}
}

// HandleCreate - POST /api/callback-requests, 사용자는 토큰에서
func (h *CallbackHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFrom(h.rw, w, r)
	if !ok {
		return
	}

	var body CallbackRequestBody
	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBodyBytes)
	if err := decodeJSON(r, &body); err != nil {
		h.rw.Error(w, r, http.StatusBadRequest, response.ErrCodeInvalidRequest, i18n.MsgInvalidRequest, nil)
		return
	}

	contact := strings.TrimSpace(body.Contact)
	if contact == "" {
		h.rw.FromError(w, r, model.ErrContactRequired)
		return
	}

	req := &model.CallbackRequest{
		UserID:    userID,
		Contact:   contact,
		Status:    model.CallbackStatusPending,
		CreatedAt: h.now().UTC(),
	}
	if notes := strings.TrimSpace(body.Notes); notes != "" {
		req.Notes = &notes
	}
	if body.Package != nil {
		req.PackageCredits = body.Package.Credits
		req.PackagePrice = body.Package.OMR
	}

	if err := h.store.InsertCallbackRequest(r.Context(), req); err != nil {
		h.logger.Error("❌ [Account] Failed to store callback request", zap.String("user_id", userID), zap.Error(err))
		h.rw.FromError(w, r, err)
		return
	}

	h.logger.Info("📞 [Account] Callback request stored",
		zap.String("user_id", userID), zap.String("callback_id", req.ID))
	h.rw.JSON(w, http.StatusOK, CallbackResponse{Success: true, Data: req})
}
