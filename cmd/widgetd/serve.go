package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/support-widget/backend/internal/config"
	"github.com/zhouzirui/support-widget/backend/internal/handler"
	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
	"github.com/zhouzirui/support-widget/backend/internal/observability"
	"github.com/zhouzirui/support-widget/backend/internal/service/ai"
	"github.com/zhouzirui/support-widget/backend/internal/service/delivery"
	"github.com/zhouzirui/support-widget/backend/internal/service/session"
	widgetService "github.com/zhouzirui/support-widget/backend/internal/service/widget"
)

const (
	shutdownTimeout  = 10 * time.Second
	redisPingTimeout = 3 * time.Second
)

func newServeCmd() *cobra.Command {
	var envFile, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the widget HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, envFile, addr)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides PORT")
	return cmd
}

func runServe(ctx context.Context, envFile, addr string) error {
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Warn("env file not loaded, using process environment only", zap.String("path", envFile), zap.Error(envErr))
	}

	catalog, err := widget.Catalog()
	if err != nil {
		return err
	}
	faqs := widgetService.NewFaqIndex(catalog)
	logger.Info("faq catalog loaded", zap.Int("entries", faqs.Len()))
	assistant := widget.DefaultAssistant()

	responder, live := newResponder(ctx, cfg.AI, assistant, catalog, logger)

	sink, closeSink := newCallbackSink(ctx, cfg.Delivery, logger)
	defer closeSink()

	sessions := session.NewService(session.Config{
		Widget: widgetService.Options{
			Responder:    responder,
			Sink:         sink,
			FAQ:          faqs,
			Assistant:    assistant,
			ReplyDelay:   replyDelay(cfg.Widget.ReplyDelay, live),
			ReplyTimeout: cfg.Widget.ReplyTimeout,
			SuccessDelay: cfg.Widget.SuccessDelay,
			CalendarURL:  cfg.Widget.CalendarURL,
		},
		IdleTTL: cfg.Widget.SessionTTL,
		Logger:  logger,
	})
	defer sessions.Shutdown()

	go sessions.RunJanitor(ctx, janitorInterval(cfg.Widget.SessionTTL))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(sessions, faqs, logger),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("support widget backend listening", zap.String("addr", cfg.Server.Addr))
	if err := runServer(ctx, srv); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("support widget backend stopped")
	return nil
}

// newResponder reports whether the returned responder is a live model.
func newResponder(ctx context.Context, cfg config.AIConfig, assistant widget.Assistant, catalog []widget.FaqEntry, logger *zap.Logger) (widgetService.Responder, bool) {
	canned := widgetService.CannedResponder{Reply: assistant.CannedReply}
	if !cfg.Enabled() {
		logger.Info("ark credentials not configured, using canned assistant replies")
		return canned, false
	}

	svc, err := ai.NewService(ctx, cfg, ai.NewPromptBuilder(assistant, catalog), logger.Named("ai"))
	if err != nil {
		logger.Warn("failed to initialize AI service, using canned assistant replies", zap.Error(err))
		return canned, false
	}
	logger.Info("AI service initialized", zap.String("model", cfg.Model))
	return svc, true
}

// replyDelay keeps the simulated typing pause for canned replies only.
// A live model already takes its own time to answer.
func replyDelay(configured *time.Duration, live bool) time.Duration {
	if configured != nil {
		return *configured
	}
	if live {
		return 0
	}
	return widgetService.DefaultReplyDelay
}

func newCallbackSink(ctx context.Context, cfg config.DeliveryConfig, logger *zap.Logger) (widgetService.CallbackSink, func()) {
	logSink := delivery.NewLogSink(logger.Named("delivery"))
	if !cfg.RedisEnabled() {
		return logSink, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	closeClient := func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("failed to close redis client", zap.Error(err))
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, logging callback requests instead", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		closeClient()
		return logSink, func() {}
	}

	sink, err := delivery.NewRedisStreamSink(rdb, cfg.Stream, logger.Named("delivery"))
	if err != nil {
		closeClient()
		return logSink, func() {}
	}
	logger.Info("callback requests delivered to redis stream", zap.String("addr", cfg.RedisAddr), zap.String("stream", cfg.Stream))
	return sink, closeClient
}

func janitorInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
