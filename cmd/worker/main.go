package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/shiftly-ai/agent-backend/cmd/mainconfig"
	"github.com/shiftly-ai/agent-backend/internal/agent"
	appconfig "github.com/shiftly-ai/agent-backend/internal/config"
	"github.com/shiftly-ai/agent-backend/internal/crm"
	"github.com/shiftly-ai/agent-backend/internal/dealership"
	"github.com/shiftly-ai/agent-backend/internal/delivery"
	"github.com/shiftly-ai/agent-backend/internal/jobs"
	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting agent-backend worker",
		"env", cfg.Env,
		"worker_count", cfg.WorkerCount,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	var crmAdapter crm.Adapter
	if cfg.CRMAPIKey != "" {
		crmAdapter, err = crm.New(cfg.CRMProvider, crm.Config{
			BaseURL:    cfg.CRMBaseURL,
			APIKey:     cfg.CRMAPIKey,
			LocationID: cfg.CRMLocationID,
			CalendarID: cfg.CRMCalendarID,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize CRM adapter", "error", err)
			os.Exit(1)
		}
	}

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

	dealerStore := dealership.NewStore(pool)
	bookingStore := jobs.NewPostgresBookingStore(pool, logger)

	bookingOpts := []jobs.BookingOption{
		jobs.WithBookingSMS(smsSender),
		jobs.WithBookingNotifier(dispatcher),
	}
	if crmAdapter != nil {
		bookingOpts = append(bookingOpts, jobs.WithBookingCRM(crmAdapter))
	}

	runners := []*jobs.Runner{
		jobs.NewRunner(agent.QueueBooking, queues[agent.QueueBooking],
			jobs.NewBookingHandler(bookingStore, logger, bookingOpts...),
			logger, jobs.WithWorkerCount(cfg.WorkerCount)),
		jobs.NewRunner(agent.QueueNotifications, queues[agent.QueueNotifications],
			jobs.NewNotificationHandler(dealerStore, smsSender, emailSender, logger),
			logger, jobs.WithWorkerCount(cfg.WorkerCount)),
	}
	if crmAdapter != nil {
		runners = append(runners, jobs.NewRunner(agent.QueueCRMSync, queues[agent.QueueCRMSync],
			jobs.NewCRMSyncHandler(crmAdapter, logger),
			logger, jobs.WithWorkerCount(cfg.WorkerCount)))
	} else {
		logger.Warn("CRM adapter not configured, crm-sync queue will not be consumed")
	}

	for _, r := range runners {
		r.Start(ctx)
	}

	sweeper := jobs.NewSweeper(agent.NewPostgresStore(pool), logger,
		jobs.WithSweepInterval(cfg.CleanupInterval),
		jobs.WithStaleAge(cfg.StaleConversationAge),
	)
	var sweepWG sync.WaitGroup
	sweepWG.Add(1)
	go func() {
		defer sweepWG.Done()
		sweeper.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	cancel()

	waitCh := make(chan struct{})
	go func() {
		for _, r := range runners {
			r.Wait()
		}
		sweepWG.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("worker stopped")
	case <-time.After(30 * time.Second):
		logger.Error("worker shutdown timed out")
		os.Exit(1)
	}
}
