package imagegen

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"razza-canvas-server/modules/common/gemini"
	"razza-canvas-server/modules/common/model"
)

// DefaultAspectRatio - 요청에 비율이 없을 때
const DefaultAspectRatio = "1:1"

var validAspectRatios = map[string]bool{
	"1:1":  true,
	"16:9": true,
	"9:16": true,
	"4:3":  true,
	"3:4":  true,
}

// IsValidAspectRatio - 지원하는 비율인지
func IsValidAspectRatio(ratio string) bool {
	return validAspectRatios[ratio]
}

// ImageGenerator - 이미지 모델 호출
type ImageGenerator interface {
	GenerateImage(ctx context.Context, model string, parts []gemini.Part, aspectRatio string) ([]byte, string, error)
}

// GeneratedImage - 생성된 이미지
type GeneratedImage struct {
	Data     []byte
	MIMEType string
}

// Service - 마스터 프롬프트 + 레퍼런스로 이미지 생성
type Service struct {
	gen    ImageGenerator
	model  string
	logger *zap.Logger
}

// NewService - Image generation 서비스 생성
func NewService(gen ImageGenerator, modelName string, logger *zap.Logger) *Service {
	return &Service{gen: gen, model: modelName, logger: logger}
}

// BuildParts - 텍스트 파트 하나 뒤에 레퍼런스마다 이미지 파트
func BuildParts(masterPrompt string, refs []model.ResolvedReference) []gemini.Part {
	parts := make([]gemini.Part, 0, len(refs)+1)
	parts = append(parts, gemini.TextPart(masterPrompt))
	for _, ref := range refs {
		if len(ref.Data) == 0 {
			continue
		}
		parts = append(parts, gemini.ImagePart(ref.Data, ref.MIMEType))
	}
	return parts
}

// Generate - 이미지가 없으면 ErrNoImageProduced
func (s *Service) Generate(ctx context.Context, masterPrompt string, refs []model.ResolvedReference, aspectRatio string) (*GeneratedImage, error) {
	if aspectRatio == "" {
		aspectRatio = DefaultAspectRatio
	}

	parts := BuildParts(masterPrompt, refs)
	s.logger.Info("🎨 [ImageGen] Generating",
		zap.String("model", s.model),
		zap.Int("references", len(parts)-1),
		zap.String("aspect_ratio", aspectRatio),
		zap.Int("prompt_len", len(masterPrompt)))

	data, mimeType, err := s.gen.GenerateImage(ctx, s.model, parts, aspectRatio)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	if len(data) == 0 {
		return nil, model.ErrNoImageProduced
	}

	return &GeneratedImage{Data: data, MIMEType: mimeType}, nil
}
