package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"razza-canvas-server/modules/common/model"
)

// 테이블 이름
const (
	TableUserCredits        = "user_credits"
	TableCreditTransactions = "credit_transactions"
	TableUserGenerations    = "user_generations"
	TableCallbackRequests   = "callback_requests"
)

// maxCASAttempts - 동시 갱신으로 compare-and-swap 이 빗나갈 때 재시도 횟수
const maxCASAttempts = 5

var errCASExhausted = errors.New("credit update conflicted too many times")

// Client - Supabase(PostgREST) 기반 크레딧/히스토리 저장소
type Client struct {
	supabase *supabase.Client
	logger   *zap.Logger
	now      func() time.Time
}

// NewClient - Database 클라이언트 생성
func NewClient(url, serviceKey string, logger *zap.Logger) (*Client, error) {
	supabaseClient, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	return &Client{
		supabase: supabaseClient,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// GetCredits - user_credits 조회
func (c *Client) GetCredits(ctx context.Context, userID string) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	data, _, err := c.supabase.From(TableUserCredits).
		Select("credits", "", false).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return 0, false, fmt.Errorf("failed to query %s: %w", TableUserCredits, err)
	}

	var rows []struct {
		Credits int `json:"credits"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, false, fmt.Errorf("failed to parse %s: %w", TableUserCredits, err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Credits, true, nil
}

// CreateCredits - 행이 없을 때만 생성 (unique 충돌이면 기존 값 반환)
func (c *Client) CreateCredits(ctx context.Context, userID string, credits int) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	now := c.now().UTC()
	row := model.UserCredit{
		UserID:    userID,
		Credits:   credits,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, _, insertErr := c.supabase.From(TableUserCredits).
		Insert(row, false, "", "minimal", "").
		Execute()
	if insertErr == nil {
		return credits, true, nil
	}

	// 동시에 다른 요청이 먼저 만들었을 수 있음
	existing, found, err := c.GetCredits(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	if found {
		c.logger.Debug("[Database] Credit row already existed",
			zap.String("user_id", userID), zap.Error(insertErr))
		return existing, false, nil
	}
	return 0, false, fmt.Errorf("failed to insert %s: %w", TableUserCredits, insertErr)
}

// DeductIfEnough - 읽은 잔액과 같을 때만 갱신하는 compare-and-swap 차감
func (c *Client) DeductIfEnough(ctx context.Context, userID string, amount int) (int, bool, error) {
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		current, found, err := c.GetCredits(ctx, userID)
		if err != nil {
			return 0, false, err
		}
		if !found || current < amount {
			return current, false, nil
		}

		swapped, err := c.swapCredits(userID, current, current-amount)
		if err != nil {
			return 0, false, err
		}
		if swapped {
			return current - amount, true, nil
		}
		c.logger.Debug("[Database] Credit CAS missed, retrying",
			zap.String("user_id", userID), zap.Int("attempt", attempt))
	}
	return 0, false, errCASExhausted
}

// AddCredits - compare-and-swap 증가
func (c *Client) AddCredits(ctx context.Context, userID string, amount int) (int, error) {
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		current, found, err := c.GetCredits(ctx, userID)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, fmt.Errorf("credit row not found for %s", userID)
		}

		swapped, err := c.swapCredits(userID, current, current+amount)
		if err != nil {
			return 0, err
		}
		if swapped {
			return current + amount, nil
		}
	}
	return 0, errCASExhausted
}

// swapCredits - credits = expected 인 행만 next 로 갱신
func (c *Client) swapCredits(userID string, expected, next int) (bool, error) {
	data, _, err := c.supabase.From(TableUserCredits).
		Update(map[string]interface{}{
			"credits":    next,
			"updated_at": c.now().UTC(),
		}, "representation", "").
		Eq("user_id", userID).
		Eq("credits", strconv.Itoa(expected)).
		Execute()
	if err != nil {
		return false, fmt.Errorf("failed to update %s: %w", TableUserCredits, err)
	}

	var rows []model.UserCredit
	if err := json.Unmarshal(data, &rows); err != nil {
		return false, fmt.Errorf("failed to parse %s update: %w", TableUserCredits, err)
	}
	return len(rows) > 0, nil
}

// InsertTransaction - credit_transactions 기록
func (c *Client) InsertTransaction(ctx context.Context, tx *model.CreditTransaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := c.supabase.From(TableCreditTransactions).
		Insert(tx, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", TableCreditTransactions, err)
	}
	return nil
}

// ListTransactions - 최근 트랜잭션 (created_at desc)
func (c *Client) ListTransactions(ctx context.Context, userID string, limit int) ([]model.CreditTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _, err := c.supabase.From(TableCreditTransactions).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", TableCreditTransactions, err)
	}

	txs := []model.CreditTransaction{}
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", TableCreditTransactions, err)
	}
	return txs, nil
}

// InsertGeneration - user_generations 기록, 생성된 id 를 채움
func (c *Client) InsertGeneration(ctx context.Context, g *model.Generation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, _, err := c.supabase.From(TableUserGenerations).
		Insert(g, false, "", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", TableUserGenerations, err)
	}

	var rows []model.Generation
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		g.ID = rows[0].ID
	}
	return nil
}

// InsertCallbackRequest - callback_requests 기록, 생성된 id 를 채움
func (c *Client) InsertCallbackRequest(ctx context.Context, req *model.CallbackRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, _, err := c.supabase.From(TableCallbackRequests).
		Insert(req, false, "", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w: %v", TableCallbackRequests, model.ErrPersistence, err)
	}

	var rows []model.CallbackRequest
	if err := json.Unmarshal(data, &rows); err == nil && len(rows) > 0 {
		req.ID = rows[0].ID
	}
	return nil
}

// ListGenerations - 최근 생성 기록 (created_at desc)
func (c *Client) ListGenerations(ctx context.Context, userID string, limit int) ([]model.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _, err := c.supabase.From(TableUserGenerations).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", TableUserGenerations, err)
	}

	generations := []model.Generation{}
	if err := json.Unmarshal(data, &generations); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", TableUserGenerations, err)
	}
	return generations, nil
}

// DeleteGeneration - 소유자의 기록만 삭제, 없으면 false
func (c *Client) DeleteGeneration(ctx context.Context, userID, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	data, _, err := c.supabase.From(TableUserGenerations).
		Delete("representation", "").
		Eq("id", id).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return false, fmt.Errorf("failed to delete from %s: %w", TableUserGenerations, err)
	}

	var rows []model.Generation
	if err := json.Unmarshal(data, &rows); err != nil {
		return false, fmt.Errorf("failed to parse %s delete: %w", TableUserGenerations, err)
	}
	return len(rows) > 0, nil
}
