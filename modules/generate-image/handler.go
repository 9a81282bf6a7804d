package generateimage

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"razza-canvas-server/modules/common/auth"
	"razza-canvas-server/modules/common/i18n"
	"razza-canvas-server/modules/common/model"
	"razza-canvas-server/modules/common/response"
)

const maxBodyBytes = 64 << 10

// Handler - 생성/검사 HTTP 핸들러
type Handler struct {
	service *Service
	rw      *response.Writer
	logger  *zap.Logger
}

// NewHandler - Handler 생성
func NewHandler(service *Service, rw *response.Writer, logger *zap.Logger) *Handler {
	return &Handler{service: service, rw: rw, logger: logger}
}

// HandleGenerate - POST /api/generate
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.rw.Unauthorized(w, r, model.ErrUnauthorized)
		return
	}

	var req GenerateRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Generate(r.Context(), userID, req)
	if err != nil {
		h.writePipelineError(w, r, err)
		return
	}

	h.logger.Info("✅ [Generate] Response sent",
		zap.String("user_id", userID),
		zap.String("request_id", resp.RequestID),
		zap.Int("remaining_credits", resp.RemainingCredits))
	h.rw.JSON(w, http.StatusOK, resp)
}

// HandleValidate - POST /api/validate
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.rw.Unauthorized(w, r, model.ErrUnauthorized)
		return
	}

	var req ValidateRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Validate(r.Context(), userID, req.Prompt)
	if err != nil {
		h.writePipelineError(w, r, err)
		return
	}
	h.rw.JSON(w, http.StatusOK, resp)
}

// HandleNotifications - POST /api/notifications
func (h *Handler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.rw.Unauthorized(w, r, model.ErrUnauthorized)
		return
	}

	var req ValidateRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Notify(r.Context(), userID, req.Prompt)
	if err != nil {
		h.writePipelineError(w, r, err)
		return
	}
	h.rw.JSON(w, http.StatusOK, resp)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.Debug("[Generate] Invalid request body", zap.Error(err))
		h.rw.Error(w, r, http.StatusBadRequest, response.ErrCodeInvalidRequest, i18n.MsgInvalidRequest, nil)
		return false
	}
	return true
}

func (h *Handler) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *PipelineError
	if !errors.As(err, &perr) {
		h.rw.FromError(w, r, err)
		return
	}

	if errors.Is(perr.Err, model.ErrRateLimited) {
		h.rw.RateLimited(w, r, perr.RetryAfterSeconds, perr.RequestID)
		return
	}

	m := response.MapError(perr.Err)
	var data map[string]interface{}
	if m.Code == response.ErrCodePromptTooLong {
		data = map[string]interface{}{"Max": model.MaxPromptLength}
	}
	h.rw.JSON(w, m.Status, response.ErrorResponse{
		Success:   false,
		Error:     h.rw.Message(r, m.MessageID, data),
		ErrorCode: m.Code,
		RequestID: perr.RequestID,
	})
}
