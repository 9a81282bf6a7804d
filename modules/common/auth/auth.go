package auth

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"razza-canvas-server/modules/common/model"
)

type contextKey struct{}

// Verifier - 외부 IdP 가 발급한 JWT 검증 (RS256 공개키 또는 HS256 secret)
type Verifier struct {
	key     interface{}
	methods []string
	issuer  string
}

// NewVerifier - 공개키(PEM 문자열 → 파일)가 있으면 RS256, 없으면 HS256
func NewVerifier(publicKeyPEM, publicKeyPath, secret, issuer string) (*Verifier, error) {
	if publicKeyPEM == "" && publicKeyPath != "" {
		data, err := os.ReadFile(publicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read JWT public key: %w", err)
		}
		publicKeyPEM = string(data)
	}

	if publicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("failed to parse JWT public key: %w", err)
		}
		return &Verifier{key: key, methods: []string{jwt.SigningMethodRS256.Alg()}, issuer: issuer}, nil
	}

	if secret == "" {
		return nil, fmt.Errorf("JWT public key or secret is required")
	}
	return &Verifier{key: []byte(secret), methods: []string{jwt.SigningMethodHS256.Alg()}, issuer: issuer}, nil
}

// UserID - 토큰의 sub 클레임
func (v *Verifier) UserID(tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods(v.methods), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrUnauthorized, err)
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", model.ErrUnauthorized
	}
	return claims.Subject, nil
}

// ErrorWriter - 인증 실패 응답 작성
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware - Authorization: Bearer 또는 ?token= (WebSocket 용)
func (v *Verifier) Middleware(onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				onError(w, r, model.ErrUnauthorized)
				return
			}

			userID, err := v.UserID(tokenString)
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// WithUserID - 컨텍스트에 사용자 ID 저장
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext - 인증 미들웨어가 넣은 사용자 ID
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	return userID, ok && userID != ""
}
