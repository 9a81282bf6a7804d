package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"razza-canvas-server/modules/common/utils"
)

// Publisher - 생성 이미지를 Supabase Storage 에 WebP 로 올리고 공개 URL 반환
// 설정이 없거나 업로드가 실패하면 data URL
type Publisher struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
	convert    func([]byte, float32) ([]byte, error)
	logger     *zap.Logger
}

// NewPublisher - baseURL 이나 serviceKey 가 비면 업로드 없이 data URL 만 생성
func NewPublisher(baseURL, serviceKey, bucket string, logger *zap.Logger) *Publisher {
	return &Publisher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		convert:    utils.ConvertToWebP,
		logger:     logger,
	}
}

// Enabled - 업로드 가능 여부
func (p *Publisher) Enabled() bool {
	return p.baseURL != "" && p.serviceKey != "" && p.bucket != ""
}

// Publish - image_url 로 저장할 값
func (p *Publisher) Publish(ctx context.Context, userID string, data []byte, mimeType string) string {
	if !p.Enabled() {
		return utils.DataURL(data, mimeType)
	}

	publicURL, err := p.upload(ctx, userID, data)
	if err != nil {
		p.logger.Warn("⚠️  [Storage] Upload failed, returning inline image",
			zap.String("user_id", userID), zap.Error(err))
		return utils.DataURL(data, mimeType)
	}
	return publicURL
}

func (p *Publisher) upload(ctx context.Context, userID string, data []byte) (string, error) {
	webpData, err := p.convert(data, utils.DefaultWebPQuality)
	if err != nil {
		return "", fmt.Errorf("failed to convert to WebP: %w", err)
	}

	objectPath := url.PathEscape(userID) + "/" + uuid.NewString() + ".webp"
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", p.baseURL, p.bucket, objectPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(webpData))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)
	req.Header.Set("apikey", p.serviceKey)
	req.Header.Set("Content-Type", "image/webp")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	p.logger.Info("✅ [Storage] WebP image uploaded",
		zap.String("path", objectPath),
		zap.Int("original_bytes", len(data)),
		zap.Int("webp_bytes", len(webpData)))

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", p.baseURL, p.bucket, objectPath), nil
}
