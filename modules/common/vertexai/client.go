package vertexai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"go.uber.org/zap"
)

// cloudPlatformScope - Vertex AI 호출에 필요한 OAuth scope
const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Credentials - Vertex AI 자격 증명 결정
// 1. credentialsJSON (배포 환경 변수)
// 2. credentialsPath (로컬 파일)
// 3. Application Default Credentials
func Credentials(ctx context.Context, credentialsJSON, credentialsPath string, logger *zap.Logger) (*auth.Credentials, error) {
	opts := &credentials.DetectOptions{Scopes: []string{cloudPlatformScope}}

	switch {
	case credentialsJSON != "":
		logger.Info("✅ [VertexAI] Using credentials JSON from environment")
		opts.CredentialsJSON = []byte(credentialsJSON)
	case credentialsPath != "":
		logger.Info("✅ [VertexAI] Using credentials from file", zap.String("path", credentialsPath))
		data, err := os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON credentials in %s", credentialsPath)
		}
		opts.CredentialsJSON = data
	default:
		logger.Warn("⚠️  [VertexAI] No explicit credentials found, using Application Default Credentials")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	creds, err := credentials.DetectDefault(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect vertex credentials: %w", err)
	}
	return creds, nil
}
