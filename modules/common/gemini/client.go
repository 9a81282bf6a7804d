package gemini

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"razza-canvas-server/modules/common/config"
	"razza-canvas-server/modules/common/model"
	"razza-canvas-server/modules/common/vertexai"
)

// Part - 모델 입력 한 조각 (텍스트 또는 인라인 이미지)
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart - 텍스트 Part
func TextPart(text string) Part { return Part{Text: text} }

// ImagePart - 인라인 이미지 Part
func ImagePart(data []byte, mimeType string) Part {
	return Part{Data: data, MIMEType: mimeType}
}

// Client - genai 클라이언트 래퍼 (업스트림 호출 속도 제한 포함)
type Client struct {
	genai   *genai.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient - 설정의 backend 에 따라 Gemini API 또는 Vertex AI 클라이언트 생성
func NewClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	clientConfig := &genai.ClientConfig{}

	switch cfg.GeminiBackend {
	case config.GeminiBackendVertex:
		creds, err := vertexai.Credentials(ctx, cfg.VertexCredentialsJSON, cfg.VertexCredentialsPath, logger)
		if err != nil {
			return nil, err
		}
		clientConfig.Backend = genai.BackendVertexAI
		clientConfig.Project = cfg.VertexProject
		clientConfig.Location = cfg.VertexLocation
		clientConfig.Credentials = creds
	default:
		clientConfig.Backend = genai.BackendGeminiAPI
		clientConfig.APIKey = cfg.GeminiAPIKey
	}

	genaiClient, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	limit := rate.Inf
	if cfg.UpstreamRPS > 0 {
		limit = rate.Limit(cfg.UpstreamRPS)
	}
	burst := cfg.UpstreamBurst
	if burst <= 0 {
		burst = 1
	}

	logger.Info("✅ [Gemini] Client initialized",
		zap.String("backend", cfg.GeminiBackend),
		zap.Float64("rps", cfg.UpstreamRPS))

	return &Client{
		genai:   genaiClient,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

// GenerateText - 텍스트 응답 (jsonOutput 이면 application/json 응답 요청)
func (c *Client) GenerateText(ctx context.Context, modelName, prompt string, jsonOutput bool) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrUpstreamModel, err)
	}

	var genConfig *genai.GenerateContentConfig
	if jsonOutput {
		genConfig = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	resp, err := c.genai.Models.GenerateContent(ctx, modelName, contents, genConfig)
	if err != nil {
		if IsRateLimitError(err) {
			c.logger.Warn("⚠️  [Gemini] Rate limited", zap.String("model", modelName), zap.Error(err))
		}
		return "", fmt.Errorf("%w: %s: %w", model.ErrUpstreamModel, modelName, err)
	}

	text := firstText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: %s returned no text", model.ErrUpstreamModel, modelName)
	}
	return text, nil
}

// GenerateImage - 스트리밍으로 이미지 생성, 처음 나온 인라인 이미지를 반환
func (c *Client) GenerateImage(ctx context.Context, modelName string, parts []Part, aspectRatio string) ([]byte, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("%w: %w", model.ErrUpstreamModel, err)
	}

	genParts := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if len(p.Data) > 0 {
			genParts = append(genParts, genai.NewPartFromBytes(p.Data, p.MIMEType))
			continue
		}
		genParts = append(genParts, genai.NewPartFromText(p.Text))
	}

	genConfig := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}
	if aspectRatio != "" {
		genConfig.ImageConfig = &genai.ImageConfig{AspectRatio: aspectRatio}
	}

	c.logger.Debug("📤 [Gemini] Sending image request",
		zap.String("model", modelName), zap.Int("parts", len(genParts)))

	stream := c.genai.Models.GenerateContentStream(ctx, modelName,
		[]*genai.Content{genai.NewContentFromParts(genParts, genai.RoleUser)}, genConfig)

	data, mimeType, err := firstImage(stream)
	if err != nil {
		if IsRateLimitError(err) {
			c.logger.Warn("⚠️  [Gemini] Rate limited", zap.String("model", modelName), zap.Error(err))
		}
		return nil, "", err
	}

	c.logger.Info("✅ [Gemini] Received image",
		zap.String("model", modelName), zap.Int("bytes", len(data)), zap.String("mime", mimeType))
	return data, mimeType, nil
}

// firstText - 첫 후보의 텍스트 파트를 이어붙임
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// firstImage - 스트림에서 처음 나온 인라인 이미지
// 이미지를 받으면 스트림을 더 읽지 않음
func firstImage(stream iter.Seq2[*genai.GenerateContentResponse, error]) ([]byte, string, error) {
	for resp, err := range stream {
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", model.ErrUpstreamModel, err)
		}
		if resp == nil {
			continue
		}
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
					mimeType := part.InlineData.MIMEType
					if mimeType == "" {
						mimeType = "image/png"
					}
					return part.InlineData.Data, mimeType, nil
				}
			}
		}
	}
	return nil, "", model.ErrNoImageProduced
}
