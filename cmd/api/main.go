package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shiftly-ai/agent-backend/cmd/mainconfig"
	"github.com/shiftly-ai/agent-backend/internal/agent"
	appconfig "github.com/shiftly-ai/agent-backend/internal/config"
	"github.com/shiftly-ai/agent-backend/internal/dealership"
	"github.com/shiftly-ai/agent-backend/internal/delivery"
	"github.com/shiftly-ai/agent-backend/internal/httpapi"
	"github.com/shiftly-ai/agent-backend/internal/jobs"
	"github.com/shiftly-ai/agent-backend/internal/observability/metrics"
	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting agent-backend API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queues, err := mainconfig.BuildQueues(cfg, awsCfg)
	if err != nil {
		logger.Error("failed to build job queues", "error", err)
		os.Exit(1)
	}
	dispatcher := jobs.NewQueueDispatcher(queues, logger)

	store := agent.NewPostgresStore(pool)
	dealerStore := dealership.NewStore(pool)

	var dealerReader dealership.Reader = dealerStore
	if redisClient := mainconfig.NewRedisClient(cfg); redisClient != nil {
		dealerReader = dealership.NewCachedStore(dealerStore, redisClient, cfg.DealershipCacheTTL, logger)
	}
	provider := dealership.NewProvider(dealerReader)

	llmClient, model, err := mainconfig.NewLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	replies := agent.NewReplyGenerator(llmClient, model, logger,
		agent.WithReplyTuning(int32(cfg.LLMMaxTokens), 0.7),
	)

	smsSender := delivery.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	var emailSender delivery.EmailSender
	if sg := delivery.NewSendGridSender(delivery.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	} else {
		emailSender = delivery.NewStubEmailSender(logger)
	}
	deliverer := delivery.NewRouter(smsSender, emailSender, logger)

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	orchestrator := agent.NewOrchestrator(
		store,
		agent.NewEscalationEvaluator(logger),
		agent.NewBookingIntentDetector(logger),
		agent.NewContextExtractor(logger),
		agent.NewQualificationScorer(logger),
		replies,
		deliverer,
		dispatcher,
		logger,
		agent.WithDealerships(provider),
		agent.WithMetrics(pipelineMetrics),
	)

	handoff := agent.NewHandoffService(store, logger)
	agentHandler := httpapi.NewAgentHandler(
		orchestrator,
		store,
		agent.NewQualificationScorer(logger),
		handoff,
		dealerStore,
		dispatcher,
		logger,
	)
	webhookHandler := httpapi.NewSMSWebhookHandler(dealerReader, orchestrator, logger)
	adminHandler := httpapi.NewAdminHandler(store, logger)

	r := httpapi.New(&httpapi.Config{
		Logger:          logger,
		Agent:           agentHandler,
		SMSWebhook:      webhookHandler,
		Admin:           adminHandler,
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
