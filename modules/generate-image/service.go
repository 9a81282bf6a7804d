package generateimage

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"razza-canvas-server/modules/common/events"
	"razza-canvas-server/modules/common/model"
	"razza-canvas-server/modules/common/ratelimit"
	"razza-canvas-server/modules/composer"
	"razza-canvas-server/modules/enhance"
	"razza-canvas-server/modules/imagegen"
)

// 생성 성공 후 기록/차감에 주는 시간 (요청 컨텍스트가 끝나도 진행)
const settleTimeout = 10 * time.Second

// DebitDescription - 차감 트랜잭션 설명
const DebitDescription = "Image generation"

// Ledger - 크레딧 원장
type Ledger interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	Deduct(ctx context.Context, userID string, amount int, description string) (bool, error)
}

// GenerationStore - 생성 기록 저장
type GenerationStore interface {
	InsertGeneration(ctx context.Context, g *model.Generation) error
}

// ImageLibrary - 레퍼런스 목록
type ImageLibrary interface {
	ListAvailableImages(ctx context.Context) []model.ReferenceImage
}

// Analyzer - 프롬프트 분석
type Analyzer interface {
	Analyze(ctx context.Context, userPrompt string, images []model.ReferenceImage) *model.AnalysisResult
}

// Composer - 선택 결과를 파일로 확정
type Composer interface {
	Resolve(result *model.AnalysisResult, images []model.ReferenceImage) ([]model.ResolvedReference, []model.Substitution)
	Load(ctx context.Context, refs []model.ResolvedReference) ([]model.ResolvedReference, []model.Substitution)
}

// Enhancer - 프롬프트 정제
type Enhancer interface {
	Enhance(ctx context.Context, userPrompt string) enhance.Enhancement
}

// Notifier - 부적절한 요청 안내
type Notifier interface {
	CheckPrompt(ctx context.Context, userPrompt string) string
}

// Generator - 이미지 생성
type Generator interface {
	Generate(ctx context.Context, masterPrompt string, refs []model.ResolvedReference, aspectRatio string) (*imagegen.GeneratedImage, error)
}

// Publisher - 생성 이미지를 URL 로
type Publisher interface {
	Publish(ctx context.Context, userID string, data []byte, mimeType string) string
}

// EventPublisher - 진행 상황 전달 (WebSocket)
type EventPublisher interface {
	Publish(userID string, event events.Event)
}

// Deps - Service 가 쓰는 구성요소
type Deps struct {
	Limiter   ratelimit.Limiter
	Ledger    Ledger
	Store     GenerationStore
	Library   ImageLibrary
	Analyzer  Analyzer
	Composer  Composer
	Enhancer  Enhancer
	Notifier  Notifier
	Generator Generator
	Publisher Publisher
	Events    EventPublisher // 선택
}

// Service - 생성 파이프라인
type Service struct {
	deps            Deps
	creditsPerImage int
	timeout         time.Duration
	logger          *zap.Logger
	now             func() time.Time
	newID           func() string
}

// NewService - 생성 파이프라인 서비스
func NewService(deps Deps, creditsPerImage int, timeout time.Duration, logger *zap.Logger) *Service {
	if creditsPerImage <= 0 {
		creditsPerImage = 1
	}
	return &Service{
		deps:            deps,
		creditsPerImage: creditsPerImage,
		timeout:         timeout,
		logger:          logger,
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

// ValidatePrompt - 공백 제거한 프롬프트와 비율 반환
func ValidatePrompt(prompt, aspectRatio string) (string, string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", "", model.ErrEmptyPrompt
	}
	if n := utf8.RuneCountInString(prompt); n > model.MaxPromptLength {
		return "", "", fmt.Errorf("%w: %d characters (max %d)", model.ErrPromptTooLong, n, model.MaxPromptLength)
	}

	aspectRatio = strings.TrimSpace(aspectRatio)
	if aspectRatio == "" {
		aspectRatio = imagegen.DefaultAspectRatio
	}
	if !imagegen.IsValidAspectRatio(aspectRatio) {
		return "", "", fmt.Errorf("%w: %s", model.ErrInvalidAspectRatio, aspectRatio)
	}
	return prompt, aspectRatio, nil
}

// run - 요청 하나의 로그/이벤트 컨텍스트
type run struct {
	s         *Service
	userID    string
	requestID string
	logger    *zap.Logger
}

func (r *run) stage(stage string, fields ...zap.Field) {
	r.logger.Info("📍 [Generate] "+stage, append([]zap.Field{zap.String("stage", stage)}, fields...)...)
	r.publish(events.Event{Type: events.TypeStage, Stage: stage})
}

func (r *run) fail(perr *PipelineError) *PipelineError {
	perr.RequestID = r.requestID
	fields := []zap.Field{
		zap.String("stage", perr.Stage),
		zap.String("kind", perr.Kind().String()),
		zap.Error(perr.Err),
	}
	if perr.Kind() == model.KindPolicy {
		r.logger.Info("🚫 [Generate] Rejected", fields...)
	} else {
		r.logger.Error("❌ [Generate] Failed", fields...)
	}
	r.publish(events.Event{
		Type:  events.TypeFailed,
		Stage: perr.Stage,
		Data:  map[string]string{"errorCode": perr.Code()},
	})
	return perr
}

func (r *run) publish(event events.Event) {
	if r.s.deps.Events == nil {
		return
	}
	event.RequestID = r.requestID
	r.s.deps.Events.Publish(r.userID, event)
}

// Generate - 한도/크레딧 확인 → 분석 → 레퍼런스 확정 → 정제 → 생성 → 기록 → 차감
// 생성 실패 시 기록과 차감 없음. 기록/차감 실패는 로그만 남기고 결과는 반환
func (s *Service) Generate(ctx context.Context, userID string, req GenerateRequest) (*GenerateResponse, error) {
	started := s.now()
	r := &run{s: s, userID: userID, requestID: s.newID()}
	r.logger = s.logger.With(zap.String("user_id", userID), zap.String("request_id", r.requestID))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if strings.TrimSpace(userID) == "" {
		return nil, r.fail(&PipelineError{Stage: model.StageAuthChecked, Err: model.ErrUnauthorized})
	}
	r.stage(model.StageAuthChecked)

	if res, err := s.deps.Limiter.Check(ctx, userID); err != nil {
		// 한도 저장소 장애는 요청을 막지 않음
		r.logger.Warn("⚠️  [Generate] Rate limiter unavailable, allowing request", zap.Error(err))
		r.stage(model.StageRateLimitChecked, zap.Bool("limiter_available", false))
	} else if !res.Allowed {
		wait := res.WaitSeconds(s.now())
		return nil, r.fail(&PipelineError{
			Stage:             model.StageRateLimitChecked,
			RetryAfterSeconds: wait,
			Err:               fmt.Errorf("%w: retry in %ds", model.ErrRateLimited, wait),
		})
	} else {
		r.stage(model.StageRateLimitChecked, zap.Int("remaining", res.Remaining))
	}

	balance, err := s.deps.Ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, r.fail(&PipelineError{Stage: model.StageCreditsChecked, Err: err})
	}
	if balance < s.creditsPerImage {
		return nil, r.fail(&PipelineError{
			Stage: model.StageCreditsChecked,
			Err:   fmt.Errorf("%w: have %d, need %d", model.ErrInsufficientCredits, balance, s.creditsPerImage),
		})
	}
	r.stage(model.StageCreditsChecked, zap.Int("balance", balance))

	prompt, aspectRatio, err := ValidatePrompt(req.Prompt, req.AspectRatio)
	if err != nil {
		return nil, r.fail(&PipelineError{Stage: model.StagePromptValidated, Err: err})
	}
	r.stage(model.StagePromptValidated, zap.Int("prompt_len", len(prompt)), zap.String("aspect_ratio", aspectRatio))

	// 정제/안내는 분석과 독립이라 먼저 시작
	var enhanced enhance.Enhancement
	var notification string
	var g errgroup.Group
	g.Go(func() error {
		enhanced = s.deps.Enhancer.Enhance(ctx, prompt)
		return nil
	})
	g.Go(func() error {
		notification = s.deps.Notifier.CheckPrompt(ctx, prompt)
		return nil
	})

	var substitutions []model.Substitution

	images := s.deps.Library.ListAvailableImages(ctx)
	analysis := s.deps.Analyzer.Analyze(ctx, prompt, images)
	if analysis.Degraded {
		substitutions = append(substitutions, model.Substitution{
			Stage:  model.StageAnalyzed,
			Kind:   model.SubstitutionAnalysisDegraded,
			Reason: "analysis unavailable, generating from the prompt alone",
		})
	}
	r.stage(model.StageAnalyzed,
		zap.Bool("needs_references", analysis.NeedsReferences),
		zap.Int("selected", len(analysis.SelectedImages)),
		zap.Bool("degraded", analysis.Degraded))

	refs, resolveSubs := s.deps.Composer.Resolve(analysis, images)
	refs, loadSubs := s.deps.Composer.Load(ctx, refs)
	substitutions = append(substitutions, resolveSubs...)
	substitutions = append(substitutions, loadSubs...)
	r.stage(model.StageImageComposed, zap.Int("references", len(refs)))

	_ = g.Wait()
	if enhanced.UsedDefault {
		substitutions = append(substitutions, model.Substitution{
			Stage:  model.StagePromptEnhanced,
			Kind:   model.SubstitutionSafeDefault,
			Reason: "enhancement unavailable or empty after filtering",
		})
	}
	r.stage(model.StagePromptEnhanced, zap.Int("attempts", enhanced.Attempts), zap.Bool("used_default", enhanced.UsedDefault))

	masterPrompt := composer.BuildMasterPrompt(prompt, analysis, enhanced.Prompt, refs)
	image, err := s.deps.Generator.Generate(ctx, masterPrompt, refs, aspectRatio)
	if err != nil {
		if model.KindOf(err) == model.KindUnknown {
			err = fmt.Errorf("%w: %w", model.ErrUpstreamModel, err)
		}
		return nil, r.fail(&PipelineError{Stage: model.StageImageGenerated, Err: err})
	}
	r.stage(model.StageImageGenerated, zap.Int("bytes", len(image.Data)), zap.String("mime", image.MIMEType))

	// 이미 생성된 결과는 요청이 끊겨도 기록/차감까지 진행
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	imageURL := s.deps.Publisher.Publish(settleCtx, userID, image.Data, image.MIMEType)

	now := s.now().UTC()
	generation := &model.Generation{
		UserID:    userID,
		Prompt:    prompt,
		ImageURL:  imageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.deps.Store.InsertGeneration(settleCtx, generation); err != nil {
		r.logger.Error("❌ [Generate] Failed to save generation, returning image anyway",
			zap.String("stage", model.StagePersisted),
			zap.String("kind", model.KindPersistence.String()),
			zap.Error(err))
		generation.ID = ""
	} else {
		r.stage(model.StagePersisted, zap.String("generation_id", generation.ID))
	}

	remaining := s.debit(settleCtx, r, balance)

	resp := &GenerateResponse{
		Success:          true,
		ImageURL:         imageURL,
		EnhancedPrompt:   enhanced.Prompt,
		RemainingCredits: remaining,
		ComponentsUsed:   componentsUsed(refs),
		Substitutions:    substitutions,
		Notification:     notification,
		GenerationTime:   s.now().Sub(started).Milliseconds(),
		GenerationID:     generation.ID,
		RequestID:        r.requestID,
	}
	if resp.Substitutions == nil {
		resp.Substitutions = []model.Substitution{}
	}

	r.stage(model.StageResponded,
		zap.Int64("generation_ms", resp.GenerationTime),
		zap.Int("substitutions", len(resp.Substitutions)))
	r.publish(events.Event{
		Type: events.TypeCompleted,
		Data: map[string]interface{}{
			"imageUrl":         resp.ImageURL,
			"generationId":     resp.GenerationID,
			"remainingCredits": resp.RemainingCredits,
		},
	})
	return resp, nil
}

// debit - 성공한 생성에 대해 차감하고 남은 잔액 반환
func (s *Service) debit(ctx context.Context, r *run, balance int) int {
	applied, err := s.deps.Ledger.Deduct(ctx, r.userID, s.creditsPerImage, DebitDescription)
	if err != nil {
		r.logger.Error("❌ [Generate] Failed to debit credits, image already delivered",
			zap.String("stage", model.StageCreditsDebited),
			zap.String("kind", model.KindPersistence.String()),
			zap.Int("amount", s.creditsPerImage),
			zap.Error(err))
		return balance
	}
	if !applied {
		r.logger.Warn("⚠️  [Generate] Balance dropped below cost before debit",
			zap.String("stage", model.StageCreditsDebited), zap.Int("amount", s.creditsPerImage))
	}

	remaining, err := s.deps.Ledger.GetBalance(ctx, r.userID)
	if err != nil {
		r.logger.Warn("⚠️  [Generate] Failed to read balance after debit", zap.Error(err))
		if applied {
			return balance - s.creditsPerImage
		}
		return balance
	}
	r.stage(model.StageCreditsDebited, zap.Bool("applied", applied), zap.Int("balance", remaining))
	return remaining
}

func componentsUsed(refs []model.ResolvedReference) []ComponentUsed {
	out := make([]ComponentUsed, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ComponentUsed{
			Category:     ref.Image.Category,
			Subcategory:  ref.Image.Subcategory,
			Filename:     ref.Image.Filename,
			RelativePath: ref.Image.RelativePath,
			Instruction:  ref.Instruction,
		})
	}
	return out
}

// checkLimit - 모델을 부르는 요청마다 사용자 한도 확인, 한도 저장소 장애는 통과
func (s *Service) checkLimit(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return &PipelineError{Stage: model.StageAuthChecked, Err: model.ErrUnauthorized}
	}
	res, err := s.deps.Limiter.Check(ctx, userID)
	if err != nil {
		s.logger.Warn("⚠️  [Generate] Rate limiter unavailable, allowing request",
			zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if !res.Allowed {
		wait := res.WaitSeconds(s.now())
		return &PipelineError{
			Stage:             model.StageRateLimitChecked,
			RetryAfterSeconds: wait,
			Err:               fmt.Errorf("%w: retry in %ds", model.ErrRateLimited, wait),
		}
	}
	return nil
}

// Validate - 정제와 안내를 동시에 실행 (생성/차감 없음)
func (s *Service) Validate(ctx context.Context, userID, prompt string) (*ValidateResponse, error) {
	if err := s.checkLimit(ctx, userID); err != nil {
		return nil, err
	}
	prompt, _, err := ValidatePrompt(prompt, "")
	if err != nil {
		return nil, err
	}

	var enhanced enhance.Enhancement
	var notification string
	var g errgroup.Group
	g.Go(func() error {
		enhanced = s.deps.Enhancer.Enhance(ctx, prompt)
		return nil
	})
	g.Go(func() error {
		notification = s.deps.Notifier.CheckPrompt(ctx, prompt)
		return nil
	})
	_ = g.Wait()

	return &ValidateResponse{
		Success:        true,
		EnhancedPrompt: enhanced.Prompt,
		UsedDefault:    enhanced.UsedDefault,
		Notification:   notification,
	}, nil
}

// Notify - 안내 문구만 확인
func (s *Service) Notify(ctx context.Context, userID, prompt string) (*ValidateResponse, error) {
	if err := s.checkLimit(ctx, userID); err != nil {
		return nil, err
	}
	prompt, _, err := ValidatePrompt(prompt, "")
	if err != nil {
		return nil, err
	}
	return &ValidateResponse{
		Success:      true,
		Notification: s.deps.Notifier.CheckPrompt(ctx, prompt),
	}, nil
}
