package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"razza-canvas-server/modules/account"
	"razza-canvas-server/modules/common/config"
	"razza-canvas-server/modules/common/credit"
	"razza-canvas-server/modules/common/database"
	"razza-canvas-server/modules/common/logger"
	"razza-canvas-server/modules/common/ratelimit"
	redisclient "razza-canvas-server/modules/common/redis"
	"razza-canvas-server/modules/common/sqlstore"
	generateimage "razza-canvas-server/modules/generate-image"
	"razza-canvas-server/modules/library"
)

// store - 크레딧 + 생성 기록 + 상담 요청 저장소 (Supabase 또는 SQLite)
type store interface {
	credit.Store
	generateimage.GenerationStore
	account.HistoryStore
	account.CallbackStore
}

// app - 명령 실행에 필요한 공통 구성요소
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   store
	ledger  *credit.Ledger
	closers []func() error
}

// newApp - 설정, 로거, 저장소, 원장 준비
func newApp() (*app, error) {
	a, err := newBaseApp()
	if err != nil {
		return nil, err
	}
	if err := a.openStore(); err != nil {
		a.close()
		return nil, err
	}
	a.ledger = credit.NewLedger(a.store, a.cfg.InitialUserCredits, a.logger)
	return a, nil
}

// newBaseApp - 설정과 로거만 (저장소가 필요 없는 명령용)
func newBaseApp() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log, err := logger.New(level, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log}
	a.closers = append(a.closers, func() error {
		_ = log.Sync()
		return nil
	})
	return a, nil
}

func (a *app) openStore() error {
	switch a.cfg.StoreBackend {
	case config.StoreSQLite:
		s, err := sqlstore.Open(a.cfg.SQLitePath, a.logger)
		if err != nil {
			return err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
		a.logger.Info("🗄️  [App] Using SQLite store", zap.String("path", a.cfg.SQLitePath))
	default:
		c, err := database.NewClient(a.cfg.SupabaseURL, a.cfg.SupabaseServiceKey, a.logger)
		if err != nil {
			return err
		}
		a.store = c
		a.logger.Info("🗄️  [App] Using Supabase store")
	}
	return nil
}

// newLimiter - memory 또는 redis
func (a *app) newLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	if a.cfg.RateLimitBackend != config.RateLimitRedis {
		a.logger.Info("⏱️  [App] Using in-memory rate limiter",
			zap.Int("max", a.cfg.RateLimitMax), zap.Duration("window", a.cfg.RateLimitWindow))
		return ratelimit.NewMemoryLimiter(a.cfg.RateLimitMax, a.cfg.RateLimitWindow, a.cfg.RateLimitCleanup), nil
	}

	rdb, err := redisclient.Connect(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rdb.Close)
	a.logger.Info("⏱️  [App] Using Redis rate limiter",
		zap.Int("max", a.cfg.RateLimitMax), zap.Duration("window", a.cfg.RateLimitWindow))
	return ratelimit.NewRedisLimiter(rdb, a.cfg.RateLimitMax, a.cfg.RateLimitWindow), nil
}

// newLibrary - 로컬 디렉터리 또는 S3 버킷
func (a *app) newLibrary(ctx context.Context) (*library.Library, error) {
	if a.cfg.LibrarySource != config.LibraryS3 {
		return library.New(library.NewDirSource(a.cfg.LibraryDir), a.logger), nil
	}

	client, err := library.NewS3Client(ctx, a.cfg.S3Region, a.cfg.S3BaseEndpoint)
	if err != nil {
		return nil, err
	}
	return library.New(library.NewS3Source(client, a.cfg.S3Bucket, a.cfg.S3Prefix), a.logger), nil
}

// close - 역순으로 정리
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("⚠️  [App] Close failed", zap.Error(err))
		}
	}
}
