package account

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"razza-canvas-server/modules/common/auth"
	"razza-canvas-server/modules/common/i18n"
	"razza-canvas-server/modules/common/model"
	"razza-canvas-server/modules/common/response"
)

// DefaultHistoryLimit - 생성 기록 기본 조회 개수
const DefaultHistoryLimit = 20

// MaxHistoryLimit - ?limit= 상한
const MaxHistoryLimit = 100

// Ledger - 크레딧 조회
type Ledger interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	History(ctx context.Context, userID string, limit int) ([]model.CreditTransaction, error)
}

// HistoryStore - 생성 기록 조회/삭제
type HistoryStore interface {
	ListGenerations(ctx context.Context, userID string, limit int) ([]model.Generation, error)
	DeleteGeneration(ctx context.Context, userID, id string) (bool, error)
}

// CreditsResponse - GET /api/credits
type CreditsResponse struct {
	Success bool `json:"success"`
	Credits int  `json:"credits"`
}

// TransactionsResponse - GET /api/credits/history
type TransactionsResponse struct {
	Success      bool                      `json:"success"`
	Transactions []model.CreditTransaction `json:"transactions"`
}

// HistoryResponse - GET /api/history
type HistoryResponse struct {
	Success     bool               `json:"success"`
	Generations []model.Generation `json:"generations"`
}

// DeleteResponse - DELETE /api/history/{id}
type DeleteResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// Handler - 크레딧/히스토리 핸들러
type Handler struct {
	ledger  Ledger
	history HistoryStore
	rw      *response.Writer
	logger  *zap.Logger
}

// NewHandler - Handler 생성
func NewHandler(ledger Ledger, history HistoryStore, rw *response.Writer, logger *zap.Logger) *Handler {
	return &Handler{ledger: ledger, history: history, rw: rw, logger: logger}
}

// HandleCredits - GET /api/credits, 처음이면 기본 잔액 생성
func (h *Handler) HandleCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	credits, err := h.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		h.logger.Error("❌ [Account] Failed to get balance", zap.String("user_id", userID), zap.Error(err))
		h.rw.FromError(w, r, err)
		return
	}
	h.rw.JSON(w, http.StatusOK, CreditsResponse{Success: true, Credits: credits})
}

// HandleCreditHistory - GET /api/credits/history
func (h *Handler) HandleCreditHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	txs, err := h.ledger.History(r.Context(), userID, limitParam(r))
	if err != nil {
		h.logger.Error("❌ [Account] Failed to list transactions", zap.String("user_id", userID), zap.Error(err))
		h.rw.FromError(w, r, err)
		return
	}
	if txs == nil {
		txs = []model.CreditTransaction{}
	}
	h.rw.JSON(w, http.StatusOK, TransactionsResponse{Success: true, Transactions: txs})
}

// HandleHistory - GET /api/history, 최신순
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	gens, err := h.history.ListGenerations(r.Context(), userID, limitParam(r))
	if err != nil {
		h.logger.Error("❌ [Account] Failed to list generations", zap.String("user_id", userID), zap.Error(err))
		h.rw.FromError(w, r, err)
		return
	}
	if gens == nil {
		gens = []model.Generation{}
	}
	h.rw.JSON(w, http.StatusOK, HistoryResponse{Success: true, Generations: gens})
}

// HandleDeleteHistory - DELETE /api/history/{id}, 본인 기록이 아니면 404
func (h *Handler) HandleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		h.rw.Error(w, r, http.StatusBadRequest, response.ErrCodeInvalidRequest, i18n.MsgInvalidRequest, nil)
		return
	}

	deleted, err := h.history.DeleteGeneration(r.Context(), userID, id)
	if err != nil {
		h.logger.Error("❌ [Account] Failed to delete generation",
			zap.String("user_id", userID), zap.String("generation_id", id), zap.Error(err))
		h.rw.FromError(w, r, err)
		return
	}
	if !deleted {
		h.rw.FromError(w, r, model.ErrGenerationNotFound)
		return
	}

	h.logger.Info("🗑️  [Account] Generation deleted",
		zap.String("user_id", userID), zap.String("generation_id", id))
	h.rw.JSON(w, http.StatusOK, DeleteResponse{Success: true, ID: id})
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	return userFrom(h.rw, w, r)
}

// userFrom - 인증 미들웨어가 넣은 사용자, 없으면 401 응답
func userFrom(rw *response.Writer, w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		rw.Unauthorized(w, r, model.ErrUnauthorized)
	}
	return userID, ok
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// limitParam - ?limit=, 없거나 잘못되면 기본값
func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return DefaultHistoryLimit
	}
	if n > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return n
}
