package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"razza-canvas-server/modules/common/model"
)

// 라이브러리가 비었거나 모델이 비워 둔 항목의 기본값
const (
	DefaultScene = "Professional photography, dramatic lighting"
	DefaultStyle = "Cinematic Omani aesthetic"
)

var errEmptySubject = errors.New("analysis has no subject description")

// TextGenerator - 텍스트 모델 호출
type TextGenerator interface {
	GenerateText(ctx context.Context, model, prompt string, jsonOutput bool) (string, error)
}

// Service - 요청을 분석해 필요한 레퍼런스를 고름
type Service struct {
	gen    TextGenerator
	model  string
	logger *zap.Logger
}

// NewService - Analysis 서비스 생성
func NewService(gen TextGenerator, modelName string, logger *zap.Logger) *Service {
	return &Service{gen: gen, model: modelName, logger: logger}
}

// DefaultInstruction - instruction 이 비었을 때 쓰는 문장
func DefaultInstruction(category string) string {
	return fmt.Sprintf("Use this %s reference image. The subject should wear/use this item exactly as shown.", category)
}

// Analyze - 항상 결과를 반환 (실패 시 Degraded)
func (s *Service) Analyze(ctx context.Context, userPrompt string, images []model.ReferenceImage) *model.AnalysisResult {
	if len(images) == 0 {
		s.logger.Info("📚 [Analysis] Library is empty, skipping analysis")
		return &model.AnalysisResult{
			SubjectDescription: userPrompt,
			SceneDescription:   DefaultScene,
			StyleNotes:         DefaultStyle,
		}
	}

	s.logger.Info("🎯 [Analysis] Analyzing request", zap.Int("available_images", len(images)))

	prompt := buildAnalysisPrompt(userPrompt, formatImageList(images))
	text, err := s.gen.GenerateText(ctx, s.model, prompt, true)
	if err != nil {
		s.logger.Warn("⚠️  [Analysis] Model call failed, generating without references", zap.Error(err))
		return degraded(userPrompt)
	}

	result, err := Parse(text)
	if err != nil {
		s.logger.Warn("⚠️  [Analysis] Unusable analysis, generating without references",
			zap.Error(err), zap.Int("response_len", len(text)))
		return degraded(userPrompt)
	}

	fields := []zap.Field{
		zap.Bool("needs_references", result.NeedsReferences),
		zap.Int("selected", len(result.SelectedImages)),
	}
	if result.OrientationContext != nil {
		fields = append(fields, zap.String("orientation", *result.OrientationContext))
	}
	s.logger.Info("🤖 [Analysis] Done", fields...)
	return result
}

func degraded(userPrompt string) *model.AnalysisResult {
	return &model.AnalysisResult{
		SubjectDescription: userPrompt,
		Degraded:           true,
	}
}

// Parse - 모델 응답(JSON, 코드펜스 허용)을 파싱하고 정규화
func Parse(text string) (*model.AnalysisResult, error) {
	body := extractJSON(text)
	if body == "" {
		return nil, errors.New("analysis response is empty")
	}

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, fmt.Errorf("invalid analysis JSON: %w", err)
	}
	if err := normalize(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// extractJSON - ```json 펜스와 앞뒤 잡텍스트 제거
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return strings.TrimSpace(text)
	}
	return text[start : end+1]
}

// normalize - 파싱 직후 한 번만 적용, 이후 단계는 정규화된 값만 봄
func normalize(r *model.AnalysisResult) error {
	r.SubjectDescription = strings.TrimSpace(r.SubjectDescription)
	r.SceneDescription = strings.TrimSpace(r.SceneDescription)
	r.StyleNotes = strings.TrimSpace(r.StyleNotes)
	r.OrientationContext = optional(r.OrientationContext)

	if r.SubjectDescription == "" {
		return errEmptySubject
	}
	if r.SceneDescription == "" {
		r.SceneDescription = DefaultScene
	}
	if r.StyleNotes == "" {
		r.StyleNotes = DefaultStyle
	}

	if !r.NeedsReferences {
		r.SelectedImages = nil
		return nil
	}

	selected := make([]model.SelectedImage, 0, len(r.SelectedImages))
	for _, sel := range r.SelectedImages {
		sel.Category = strings.TrimSpace(sel.Category)
		if sel.Category == "" {
			continue
		}
		sel.Subcategory = optional(sel.Subcategory)

		sel.Filename = strings.TrimSpace(sel.Filename)
		if sel.Filename == "" || strings.EqualFold(sel.Filename, model.RandomFilename) {
			sel.Filename = model.RandomFilename
		}

		sel.Instruction = strings.TrimSpace(sel.Instruction)
		if sel.Instruction == "" {
			sel.Instruction = DefaultInstruction(sel.Category)
		}
		selected = append(selected, sel)
	}
	r.SelectedImages = selected
	return nil
}

// optional - 공백/"null" 문자열이면 nil
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}
