package enhance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"razza-canvas-server/modules/common/gemini"
)

// TextGenerator - 텍스트 모델 호출
type TextGenerator interface {
	GenerateText(ctx context.Context, model, prompt string, jsonOutput bool) (string, error)
}

// Enhancement - 보강 결과
type Enhancement struct {
	Prompt      string
	UsedDefault bool
	Attempts    int
}

// Service - 프롬프트 번역/보강
type Service struct {
	gen      TextGenerator
	model    string
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewService - timeout 안에서 interval 간격으로 재시도
func NewService(gen TextGenerator, modelName string, timeout, interval time.Duration, logger *zap.Logger) *Service {
	return &Service{
		gen:      gen,
		model:    modelName,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
	}
}

// Enhance - 실패하거나 정리 후 비면 SafeDefault
func (s *Service) Enhance(ctx context.Context, userPrompt string) Enhancement {
	prompt := buildEnhancePrompt(userPrompt)

	text, attempts, err := gemini.RetryWithin(ctx, s.timeout, s.interval, func(ctx context.Context) (string, error) {
		return s.gen.GenerateText(ctx, s.model, prompt, false)
	})
	if err != nil {
		s.logger.Warn("⚠️  [Enhance] Model did not answer in time, using safe default",
			zap.Int("attempts", attempts), zap.Duration("budget", s.timeout), zap.Error(err))
		return Enhancement{Prompt: SafeDefault, UsedDefault: true, Attempts: attempts}
	}

	cleaned := Sanitize(text)
	if cleaned == "" {
		s.logger.Warn("⚠️  [Enhance] Prompt empty after sanitizing, using safe default",
			zap.Int("raw_len", len(text)))
		return Enhancement{Prompt: SafeDefault, UsedDefault: true, Attempts: attempts}
	}

	if cleaned != text {
		s.logger.Info("🧹 [Enhance] Removed denied terms from model output",
			zap.Int("raw_len", len(text)), zap.Int("clean_len", len(cleaned)))
	}
	s.logger.Debug("✅ [Enhance] Prompt refined", zap.Int("attempts", attempts))
	return Enhancement{Prompt: cleaned, Attempts: attempts}
}
