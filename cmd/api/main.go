package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oneclick/wa-gateway/internal/config"
	gateway "github.com/oneclick/wa-gateway/internal/gateways"
	"github.com/oneclick/wa-gateway/internal/handlers"
	"github.com/oneclick/wa-gateway/internal/queue"
	"github.com/oneclick/wa-gateway/internal/repository"
	"github.com/oneclick/wa-gateway/internal/services"
	xhttp "github.com/oneclick/wa-gateway/pkg/http"
	"github.com/oneclick/wa-gateway/pkg/logger"
	"github.com/oneclick/wa-gateway/pkg/pg"
	"github.com/oneclick/wa-gateway/pkg/prom"
	"github.com/oneclick/wa-gateway/pkg/redis"
	"github.com/shopspring/decimal"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	eventQueue, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	defaultPrice, err := decimal.NewFromString(config.Get().DefaultPricePerMessage)
	if err != nil {
		logger.Error("invalid DEFAULT_PRICE_PER_MESSAGE", "error", err)
		return
	}

	whatsapp, err := gateway.NewClient(&gateway.Config{
		BaseURL:    config.Get().GraphAPIBaseURL,
		APIVersion: config.Get().GraphAPIVersion,
		Timeout:    config.Get().GraphSendTimeout,
		MaxConns:   512,
	})
	if err != nil {
		logger.Error("failed to create whatsapp client", "error", err)
		return
	}

	// repositories
	clientRepo := repository.NewClientRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	pricingRepo := repository.NewPricingRepository(db)
	messageLogRepo := repository.NewMessageLogRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	templateRepo := repository.NewTemplateRepository(db)

	// services
	pricingService := services.NewPricingService(pricingRepo, services.PricingConfig{
		DefaultPricePerMessage: defaultPrice,
		DefaultCurrency:        config.Get().DefaultCurrency,
	})
	ledgerService := services.NewLedgerService(walletRepo, transactionRepo, pricingService)
	dispatchService := services.NewDispatchService(messageLogRepo, clientRepo, whatsapp, ledgerService)
	campaignService := services.NewCampaignService(campaignRepo, templateRepo, clientRepo, dispatchService)
	clientService := services.NewClientService(clientRepo, walletRepo, config.Get().DefaultCurrency)
	templateService := services.NewTemplateService(templateRepo)
	webhookService := services.NewWebhookService(clientService, eventQueue, config.Get().WebhookVerifyToken)
	healthService := services.NewHealthService(db)

	// v1 handlers
	messageHandler := handlers.NewMessageHandler(dispatchService)
	campaignHandler := handlers.NewCampaignHandler(campaignService)
	walletHandler := handlers.NewWalletHandler(ledgerService)
	templateHandler := handlers.NewTemplateHandler(templateService)
	adminHandler := handlers.NewAdminHandler(clientService, pricingService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterMessageRoutes(g, messageHandler)
	handlers.RegisterCampaignRoutes(g, campaignHandler)
	handlers.RegisterWalletRoutes(g, walletHandler)
	handlers.RegisterTemplateRoutes(g, templateHandler)
	handlers.RegisterAdminRoutes(g, adminHandler)
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	go runScheduler(schedulerCtx, campaignService)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	logger.Info("api started", "addr", config.Get().HttpListenAddr, "version", version, "commit", commit, "build_date", date)

	<-c
	stopScheduler()
	s.Shutdown()
}

// runScheduler triggers due scheduled campaigns and fails stalled ones on
// a fixed interval. Safe to run in every api instance: SendNow's state
// check makes concurrent pickups of the same campaign a conflict, not a
// double send.
func runScheduler(ctx context.Context, campaigns *services.CampaignService) {
	ticker := time.NewTicker(config.Get().SchedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := campaigns.DispatchDue(ctx); n > 0 {
				logger.Info("scheduled campaigns dispatched", "count", n)
			}
			cutoff := time.Now().Add(-config.Get().CampaignStallTimeout)
			if n := campaigns.FailStalled(ctx, cutoff); n > 0 {
				logger.Warn("stalled campaigns failed", "count", n)
			}
		}
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
