package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"razza-canvas-server/modules/common/model"
)

// userCreditRow - user_credits
type userCreditRow struct {
	UserID    string `gorm:"primaryKey;size:191"`
	Credits   int    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userCreditRow) TableName() string { return "user_credits" }

// creditTransactionRow - credit_transactions
type creditTransactionRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	UserID      string `gorm:"index;size:191;not null"`
	Amount      int    `gorm:"not null"`
	Type        string `gorm:"size:16;not null"`
	Description string
	CreatedAt   time.Time `gorm:"index"`
}

func (creditTransactionRow) TableName() string { return "credit_transactions" }

// generationRow - user_generations
type generationRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"index;size:191;not null"`
	Prompt    string `gorm:"not null"`
	ImageURL  string `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (generationRow) TableName() string { return "user_generations" }

// callbackRequestRow - callback_requests
type callbackRequestRow struct {
	ID             string `gorm:"primaryKey;size:36"`
	UserID         string `gorm:"index;size:191"`
	Contact        string `gorm:"not null"`
	Notes          *string
	PackageCredits *int
	PackagePrice   *float64
	Status         string    `gorm:"size:16;not null"`
	CreatedAt      time.Time `gorm:"index"`
}

func (callbackRequestRow) TableName() string { return "callback_requests" }

// Store - GORM(SQLite) 기반 크레딧/히스토리 저장소
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open - SQLite 파일을 열고 마이그레이션 실행
func Open(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	// SQLite 는 writer 하나
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return New(db, logger)
}

// New - 이미 열린 gorm.DB 로 Store 생성
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	logger.Info("🗄️  [SQLStore] Running migrations")
	if err := db.AutoMigrate(&userCreditRow{}, &creditTransactionRow{}, &generationRow{}, &callbackRequestRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite db: %w", err)
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close - 커넥션 종료
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetCredits - 잔액 조회
func (s *Store) GetCredits(ctx context.Context, userID string) (int, bool, error) {
	var row userCreditRow
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query user_credits: %w", err)
	}
	return row.Credits, true, nil
}

// CreateCredits - ON CONFLICT DO NOTHING 후 실제 값 조회
func (s *Store) CreateCredits(ctx context.Context, userID string, credits int) (int, bool, error) {
	now := s.now().UTC()
	row := userCreditRow{UserID: userID, Credits: credits, CreatedAt: now, UpdatedAt: now}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return 0, false, fmt.Errorf("insert user_credits: %w", res.Error)
	}

	balance, found, err := s.GetCredits(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, fmt.Errorf("user_credits row for %s vanished after insert", userID)
	}
	return balance, res.RowsAffected == 1, nil
}

// DeductIfEnough - UPDATE ... WHERE credits >= amount 단일 문장으로 차감
func (s *Store) DeductIfEnough(ctx context.Context, userID string, amount int) (int, bool, error) {
	res := s.db.WithContext(ctx).Model(&userCreditRow{}).
		Where("user_id = ? AND credits >= ?", userID, amount).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits - ?", amount),
			"updated_at": s.now().UTC(),
		})
	if res.Error != nil {
		return 0, false, fmt.Errorf("deduct user_credits: %w", res.Error)
	}

	balance, _, err := s.GetCredits(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	return balance, res.RowsAffected == 1, nil
}

// AddCredits - credits = credits + amount
func (s *Store) AddCredits(ctx context.Context, userID string, amount int) (int, error) {
	res := s.db.WithContext(ctx).Model(&userCreditRow{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits + ?", amount),
			"updated_at": s.now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("add user_credits: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("credit row not found for %s", userID)
	}

	balance, _, err := s.GetCredits(ctx, userID)
	return balance, err
}

// InsertTransaction - credit_transactions 기록
func (s *Store) InsertTransaction(ctx context.Context, tx *model.CreditTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	row := creditTransactionRow{
		ID:          tx.ID,
		UserID:      tx.UserID,
		Amount:      tx.Amount,
		Type:        string(tx.Type),
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert credit_transactions: %w", err)
	}
	return nil
}

// ListTransactions - 최근 트랜잭션
func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]model.CreditTransaction, error) {
	var rows []creditTransactionRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query credit_transactions: %w", err)
	}

	txs := make([]model.CreditTransaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, model.CreditTransaction{
			ID:          r.ID,
			UserID:      r.UserID,
			Amount:      r.Amount,
			Type:        model.TransactionType(r.Type),
			Description: r.Description,
			CreatedAt:   r.CreatedAt,
		})
	}
	return txs, nil
}

// InsertGeneration - user_generations 기록
func (s *Store) InsertGeneration(ctx context.Context, g *model.Generation) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	row := generationRow{
		ID:        g.ID,
		UserID:    g.UserID,
		Prompt:    g.Prompt,
		ImageURL:  g.ImageURL,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert user_generations: %w", err)
	}
	return nil
}

// InsertCallbackRequest - callback_requests 기록
func (s *Store) InsertCallbackRequest(ctx context.Context, req *model.CallbackRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	row := callbackRequestRow{
		ID:             req.ID,
		UserID:         req.UserID,
		Contact:        req.Contact,
		Notes:          req.Notes,
		PackageCredits: req.PackageCredits,
		PackagePrice:   req.PackagePrice,
		Status:         req.Status,
		CreatedAt:      req.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert callback_requests: %w: %v", model.ErrPersistence, err)
	}
	return nil
}

// ListGenerations - 최근 생성 기록
func (s *Store) ListGenerations(ctx context.Context, userID string, limit int) ([]model.Generation, error) {
	var rows []generationRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query user_generations: %w", err)
	}

	out := make([]model.Generation, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Generation{
			ID:        r.ID,
			UserID:    r.UserID,
			Prompt:    r.Prompt,
			ImageURL:  r.ImageURL,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

// DeleteGeneration - 소유자의 기록만 삭제
func (s *Store) DeleteGeneration(ctx context.Context, userID, id string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&generationRow{})
	if res.Error != nil {
		return false, fmt.Errorf("delete user_generations: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
