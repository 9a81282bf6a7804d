package credit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"razza-canvas-server/modules/common/model"
)

// DefaultHistoryLimit - 크레딧 내역 기본 조회 개수
const DefaultHistoryLimit = 20

// Store - 크레딧 잔액/내역 저장소 (Supabase, SQLite)
type Store interface {
	// GetCredits - 잔액 조회, 행이 없으면 found=false
	GetCredits(ctx context.Context, userID string) (credits int, found bool, err error)
	// CreateCredits - 행이 없을 때만 생성, 이미 있으면 기존 잔액과 created=false
	CreateCredits(ctx context.Context, userID string, credits int) (balance int, created bool, err error)
	// DeductIfEnough - credits >= amount 일 때만 원자적으로 차감
	DeductIfEnough(ctx context.Context, userID string, amount int) (balance int, applied bool, err error)
	// AddCredits - 원자적으로 증가
	AddCredits(ctx context.Context, userID string, amount int) (balance int, err error)
	InsertTransaction(ctx context.Context, tx *model.CreditTransaction) error
	ListTransactions(ctx context.Context, userID string, limit int) ([]model.CreditTransaction, error)
}

// Ledger - 사용자별 크레딧 원장
type Ledger struct {
	store          Store
	initialCredits int
	logger         *zap.Logger
	now            func() time.Time
}

// NewLedger - Ledger 생성
func NewLedger(store Store, initialCredits int, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:          store,
		initialCredits: initialCredits,
		logger:         logger,
		now:            time.Now,
	}
}

// GetBalance - 잔액 조회, 행이 없으면 기본 잔액으로 생성 후 반환
func (l *Ledger) GetBalance(ctx context.Context, userID string) (int, error) {
	credits, found, err := l.store.GetCredits(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get credits for %s: %w: %v", userID, model.ErrLedgerUnavailable, err)
	}
	if found {
		return credits, nil
	}

	balance, created, err := l.store.CreateCredits(ctx, userID, l.initialCredits)
	if err != nil {
		return 0, fmt.Errorf("create credits for %s: %w: %v", userID, model.ErrLedgerUnavailable, err)
	}
	if created {
		l.logger.Info("💳 [Credit] Initialized balance",
			zap.String("user_id", userID), zap.Int("credits", balance))
		l.record(ctx, userID, l.initialCredits, model.TransactionInitial, "Initial credits")
	}
	return balance, nil
}

// Deduct - 잔액이 충분할 때만 차감, 부족하면 (false, nil)
func (l *Ledger) Deduct(ctx context.Context, userID string, amount int, description string) (bool, error) {
	if amount <= 0 {
		return false, model.ErrInvalidAmount
	}
	// 행이 없으면 먼저 생성
	if _, err := l.GetBalance(ctx, userID); err != nil {
		return false, err
	}

	balance, applied, err := l.store.DeductIfEnough(ctx, userID, amount)
	if err != nil {
		return false, fmt.Errorf("deduct credits for %s: %w: %v", userID, model.ErrLedgerUnavailable, err)
	}
	if !applied {
		l.logger.Info("💳 [Credit] Deduction rejected, balance too low",
			zap.String("user_id", userID), zap.Int("balance", balance), zap.Int("amount", amount))
		return false, nil
	}

	l.logger.Info("💰 [Credit] Deducted",
		zap.String("user_id", userID), zap.Int("amount", amount), zap.Int("balance", balance))
	l.record(ctx, userID, -amount, model.TransactionDeduct, description)
	return true, nil
}

// Add - 크레딧 추가
func (l *Ledger) Add(ctx context.Context, userID string, amount int, description string) (bool, error) {
	if amount <= 0 {
		return false, model.ErrInvalidAmount
	}
	if _, err := l.GetBalance(ctx, userID); err != nil {
		return false, err
	}

	balance, err := l.store.AddCredits(ctx, userID, amount)
	if err != nil {
		return false, fmt.Errorf("add credits for %s: %w: %v", userID, model.ErrLedgerUnavailable, err)
	}

	l.logger.Info("💰 [Credit] Added",
		zap.String("user_id", userID), zap.Int("amount", amount), zap.Int("balance", balance))
	l.record(ctx, userID, amount, model.TransactionAdd, description)
	return true, nil
}

// History - 최근 트랜잭션 (최신순)
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]model.CreditTransaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	txs, err := l.store.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w: %v", userID, model.ErrLedgerUnavailable, err)
	}
	return txs, nil
}

// record - 감사 로그 기록, 실패해도 잔액 변경은 유지
func (l *Ledger) record(ctx context.Context, userID string, amount int, txType model.TransactionType, description string) {
	tx := &model.CreditTransaction{
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Description: description,
		CreatedAt:   l.now().UTC(),
	}
	if err := l.store.InsertTransaction(ctx, tx); err != nil {
		l.logger.Warn("⚠️  [Credit] Failed to record transaction",
			zap.String("user_id", userID), zap.String("type", string(txType)), zap.Error(err))
	}
}
