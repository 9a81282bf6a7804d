package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"razza-canvas-server/modules/account"
	"razza-canvas-server/modules/common/auth"
	"razza-canvas-server/modules/common/events"
	"razza-canvas-server/modules/common/model"
	generateimage "razza-canvas-server/modules/generate-image"
)

// ServiceName - /health 응답의 서비스 이름
const ServiceName = "razza-canvas-server"

// Authenticator - 요청에 사용자 ID 를 붙이는 미들웨어
type Authenticator interface {
	Middleware(onError auth.ErrorWriter) func(http.Handler) http.Handler
}

// Deps - 라우터 구성요소
type Deps struct {
	AllowedOrigin string
	Auth          Authenticator
	OnAuthError   auth.ErrorWriter
	Generate      *generateimage.Handler
	Account       *account.Handler
	Callbacks     *account.CallbackHandler
	Hub           *events.Hub
	Logger        *zap.Logger
}

// NewHandler - 라우트 + CORS + 요청 로그
func NewHandler(d Deps) http.Handler {
	started := time.Now()
	r := mux.NewRouter()

	r.HandleFunc("/", healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"uptime":  time.Since(started).String(),
			"events":  d.Hub.Metrics(),
			"service": ServiceName,
		})
	}).Methods(http.MethodGet)

	authed := d.Auth.Middleware(d.OnAuthError)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authed)
	api.HandleFunc("/generate", d.Generate.HandleGenerate).Methods(http.MethodPost)
	api.HandleFunc("/validate", d.Generate.HandleValidate).Methods(http.MethodPost)
	api.HandleFunc("/notifications", d.Generate.HandleNotifications).Methods(http.MethodPost)
	api.HandleFunc("/credits", d.Account.HandleCredits).Methods(http.MethodGet)
	api.HandleFunc("/credits/history", d.Account.HandleCreditHistory).Methods(http.MethodGet)
	api.HandleFunc("/history", d.Account.HandleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}", d.Account.HandleDeleteHistory).Methods(http.MethodDelete)
	api.HandleFunc("/callback-requests", d.Callbacks.HandleCreate).Methods(http.MethodPost)

	r.Handle("/ws", authed(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := auth.UserIDFromContext(req.Context())
		if !ok {
			d.OnAuthError(w, req, model.ErrUnauthorized)
			return
		}
		d.Hub.ServeWS(w, req, userID)
	})))

	// 메서드 불일치(405)에도 CORS 헤더가 붙도록 라우터 바깥에서 감쌈
	return enableCORS(d.AllowedOrigin, requestLogger(d.Logger, r))
}

// enableCORS - CORS 헤더 추가, preflight 는 바로 200
func enableCORS(allowedOrigin string, next http.Handler) http.Handler {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Language")
		if allowedOrigin != "*" {
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// healthCheck - 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder - 응답 코드 기록, WebSocket 업그레이드를 위해 Hijack 전달
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func requestLogger(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if r.URL.Path == "/health" || r.URL.Path == "/" {
			return
		}
		logger.Debug("[HTTP] Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// Run - ctx 가 끝나면 graceful shutdown
func Run(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 [Server] Listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("🛑 [Server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
