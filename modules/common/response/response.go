package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"razza-canvas-server/modules/common/i18n"
	"razza-canvas-server/modules/common/model"
)

// Error codes
const (
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	ErrCodeEmptyPrompt         = "EMPTY_PROMPT"
	ErrCodePromptTooLong       = "PROMPT_TOO_LONG"
	ErrCodeInvalidAspectRatio  = "INVALID_ASPECT_RATIO"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeGenerationFailed    = "GENERATION_FAILED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	ErrCodeContactRequired     = "CONTACT_REQUIRED"
)

// ErrorResponse - 실패 응답 본문
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
	WaitTime  int    `json:"waitTime,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Mapping - 에러 하나에 대한 HTTP 표현
type Mapping struct {
	Status    int
	Code      string
	MessageID string
}

var mappings = []struct {
	err error
	m   Mapping
}{
	{model.ErrUnauthorized, Mapping{http.StatusUnauthorized, ErrCodeUnauthorized, i18n.MsgUnauthorized}},
	{model.ErrRateLimited, Mapping{http.StatusTooManyRequests, ErrCodeRateLimited, i18n.MsgRateLimited}},
	{model.ErrInsufficientCredits, Mapping{http.StatusPaymentRequired, ErrCodeInsufficientCredits, i18n.MsgInsufficientCredits}},
	{model.ErrEmptyPrompt, Mapping{http.StatusBadRequest, ErrCodeEmptyPrompt, i18n.MsgEmptyPrompt}},
	{model.ErrPromptTooLong, Mapping{http.StatusBadRequest, ErrCodePromptTooLong, i18n.MsgPromptTooLong}},
	{model.ErrInvalidAspectRatio, Mapping{http.StatusBadRequest, ErrCodeInvalidAspectRatio, i18n.MsgInvalidAspectRatio}},
	{model.ErrInvalidAmount, Mapping{http.StatusBadRequest, ErrCodeInvalidAmount, i18n.MsgInvalidAmount}},
	{model.ErrContactRequired, Mapping{http.StatusBadRequest, ErrCodeContactRequired, i18n.MsgContactRequired}},
	{model.ErrGenerationNotFound, Mapping{http.StatusNotFound, ErrCodeNotFound, i18n.MsgNotFound}},
	{model.ErrUpstreamModel, Mapping{http.StatusBadGateway, ErrCodeGenerationFailed, i18n.MsgGenerationFailed}},
	{model.ErrNoImageProduced, Mapping{http.StatusBadGateway, ErrCodeGenerationFailed, i18n.MsgGenerationFailed}},
	{model.ErrLedgerUnavailable, Mapping{http.StatusServiceUnavailable, ErrCodeServiceUnavailable, i18n.MsgInternalError}},
}

// MapError - 센티널 에러를 상태 코드/에러 코드/메시지 ID 로 변환
func MapError(err error) Mapping {
	// 업스트림 에러로 감싸져 있어도 요청 시간 초과는 504
	if errors.Is(err, context.DeadlineExceeded) {
		return Mapping{http.StatusGatewayTimeout, ErrCodeGenerationFailed, i18n.MsgGenerationFailed}
	}
	for _, entry := range mappings {
		if errors.Is(err, entry.err) {
			return entry.m
		}
	}
	return Mapping{http.StatusInternalServerError, ErrCodeInternalError, i18n.MsgInternalError}
}

// Writer - JSON 응답과 다국어 에러 메시지 작성
type Writer struct {
	i18n   *i18n.Manager
	logger *zap.Logger
}

// NewWriter - Writer 생성
func NewWriter(m *i18n.Manager, logger *zap.Logger) *Writer {
	return &Writer{i18n: m, logger: logger}
}

// JSON - 상태 코드와 함께 JSON 응답
func (rw *Writer) JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rw.logger.Warn("[Response] Failed to encode response", zap.Error(err))
	}
}

// Message - 요청 언어로 번역된 메시지
func (rw *Writer) Message(r *http.Request, messageID string, data map[string]interface{}) string {
	return rw.i18n.Localize(r.Header.Get("Accept-Language"), messageID, data)
}

// Error - Accept-Language 에 맞춘 에러 응답
func (rw *Writer) Error(w http.ResponseWriter, r *http.Request, status int, code, messageID string, data map[string]interface{}) {
	rw.JSON(w, status, ErrorResponse{
		Success:   false,
		Error:     rw.Message(r, messageID, data),
		ErrorCode: code,
	})
}

// FromError - 에러 종류로 상태 코드를 정해 응답
func (rw *Writer) FromError(w http.ResponseWriter, r *http.Request, err error) {
	m := MapError(err)
	var data map[string]interface{}
	if m.Code == ErrCodePromptTooLong {
		data = map[string]interface{}{"Max": model.MaxPromptLength}
	}
	rw.Error(w, r, m.Status, m.Code, m.MessageID, data)
}

// RateLimited - 429 + Retry-After + waitTime
func (rw *Writer) RateLimited(w http.ResponseWriter, r *http.Request, waitSeconds int, requestID string) {
	w.Header().Set("Retry-After", strconv.Itoa(waitSeconds))
	rw.JSON(w, http.StatusTooManyRequests, ErrorResponse{
		Success:   false,
		Error:     rw.Message(r, i18n.MsgRateLimited, map[string]interface{}{"WaitSeconds": waitSeconds}),
		ErrorCode: ErrCodeRateLimited,
		WaitTime:  waitSeconds,
		RequestID: requestID,
	})
}

// Unauthorized - auth.Middleware 의 ErrorWriter
func (rw *Writer) Unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	rw.logger.Debug("[Response] Rejected unauthenticated request",
		zap.String("path", r.URL.Path), zap.Error(err))
	rw.Error(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, i18n.MsgUnauthorized, nil)
}
