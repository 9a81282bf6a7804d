package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"razza-canvas-server/modules/account"
	"razza-canvas-server/modules/analysis"
	"razza-canvas-server/modules/common/auth"
	"razza-canvas-server/modules/common/events"
	"razza-canvas-server/modules/common/gemini"
	"razza-canvas-server/modules/common/i18n"
	"razza-canvas-server/modules/common/response"
	"razza-canvas-server/modules/common/storage"
	"razza-canvas-server/modules/composer"
	"razza-canvas-server/modules/enhance"
	generateimage "razza-canvas-server/modules/generate-image"
	"razza-canvas-server/modules/imagegen"
	"razza-canvas-server/modules/notify"
	"razza-canvas-server/modules/server"
)

func newServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP and WebSocket server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, version)
		},
	}
}

func serve(ctx context.Context, version string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	cfg, log := a.cfg, a.logger
	log.Info("🚀 Razza Canvas Server starting", zap.String("version", version), zap.String("port", cfg.Port))

	limiter, err := a.newLimiter(ctx)
	if err != nil {
		return fmt.Errorf("failed to create rate limiter: %w", err)
	}

	lib, err := a.newLibrary(ctx)
	if err != nil {
		return fmt.Errorf("failed to open reference library: %w", err)
	}
	log.Info("📚 Reference library ready", zap.Int("images", len(lib.ListAvailableImages(ctx))))

	genai, err := gemini.NewClient(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.JWTPublicKeyPEM, cfg.JWTPublicKeyPath, cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	translations, err := i18n.NewManager(cfg.DefaultLanguage, log)
	if err != nil {
		return err
	}
	rw := response.NewWriter(translations, log)

	hub := events.NewHub(cfg.AllowedOrigin, log)
	defer hub.Close()

	publisher := storage.NewPublisher(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket, log)
	if !publisher.Enabled() {
		log.Warn("⚠️  Supabase storage not configured, images are returned inline")
	}

	service := generateimage.NewService(generateimage.Deps{
		Limiter:   limiter,
		Ledger:    a.ledger,
		Store:     a.store,
		Library:   lib,
		Analyzer:  analysis.NewService(genai, cfg.AnalysisModel, log),
		Composer:  composer.New(lib, log),
		Enhancer:  enhance.NewService(genai, cfg.EnhanceModel, cfg.EnhanceTimeout, cfg.EnhanceRetryInterval, log),
		Notifier:  notify.NewChecker(genai, cfg.NotificationModel, log),
		Generator: imagegen.NewService(genai, cfg.ImageModel, log),
		Publisher: publisher,
		Events:    hub,
	}, cfg.CreditsPerImage, cfg.RequestTimeout, log)

	handler := server.NewHandler(server.Deps{
		AllowedOrigin: cfg.AllowedOrigin,
		Auth:          verifier,
		OnAuthError:   rw.Unauthorized,
		Generate:      generateimage.NewHandler(service, rw, log),
		Account:       account.NewHandler(a.ledger, a.store, rw, log),
		Callbacks:     account.NewCallbackHandler(a.store, rw, log),
		Hub:           hub,
		Logger:        log,
	})

	log.Info("📡 WebSocket endpoint", zap.String("url", fmt.Sprintf("ws://localhost:%s/ws", cfg.Port)))
	log.Info("❤️  Health check", zap.String("url", fmt.Sprintf("http://localhost:%s/health", cfg.Port)))

	return server.Run(ctx, ":"+cfg.Port, handler, log)
}
