// Copyright 2026 The Agentdesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agentdesk/agentdesk/internal/agent"
	"github.com/agentdesk/agentdesk/internal/audit"
	"github.com/agentdesk/agentdesk/internal/auth"
	"github.com/agentdesk/agentdesk/internal/billing"
	"github.com/agentdesk/agentdesk/internal/channel"
	"github.com/agentdesk/agentdesk/internal/config"
	"github.com/agentdesk/agentdesk/internal/credit"
	"github.com/agentdesk/agentdesk/internal/dispatch"
	"github.com/agentdesk/agentdesk/internal/inference"
	"github.com/agentdesk/agentdesk/internal/memory"
	"github.com/agentdesk/agentdesk/internal/observability/logger"
	"github.com/agentdesk/agentdesk/internal/observability/metrics"
	"github.com/agentdesk/agentdesk/internal/observability/tracing"
	"github.com/agentdesk/agentdesk/internal/onboarding"
	"github.com/agentdesk/agentdesk/internal/pool"
	"github.com/agentdesk/agentdesk/internal/setup"
	"github.com/agentdesk/agentdesk/internal/store/postgres"
	"github.com/agentdesk/agentdesk/internal/store/redis"
	"github.com/agentdesk/agentdesk/internal/tenant"
	transportHTTP "github.com/agentdesk/agentdesk/internal/transport/http"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTELEnabled: cfg.Observability.OTELEnabled,
	})
	slog.Info("starting agentdesk")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}
	dispatchMetrics, err := metrics.NewDispatch(meter)
	if err != nil {
		slog.Error("failed to create dispatch metrics", logger.Error(err))
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Optional conversation cache
	var memoryCache memory.Cache
	if cfg.Redis.Enabled {
		cache, err := redis.New(ctx, cfg.Redis.URL, cfg.Redis.TTL)
		if err != nil {
			slog.Error("failed to connect to redis, continuing without cache", logger.Error(err))
		} else {
			defer cache.Close()
			memoryCache = cache
			slog.Info("connected to redis")
		}
	}

	// Initialize repositories
	tenantRepo := postgres.NewTenantRepository(db)
	agentRepo := postgres.NewAgentConfigRepository(db)
	channelRepo := postgres.NewChannelRepository(db)
	creditRepo := postgres.NewCreditRepository(db)
	poolRepo := postgres.NewPoolRepository(db)
	setupRepo := postgres.NewSetupRepository(db)
	memoryRepo := postgres.NewMemoryRepository(db)

	// Initialize helpers
	auditLogger := audit.NewSlogLogger()
	poolCipher, err := pool.NewCipher(cfg.Security.PoolCipherKey)
	if err != nil {
		slog.Error("invalid pool cipher key", logger.Error(err))
		os.Exit(1)
	}
	tokenManager := auth.NewTokenManager(cfg.Security.TokenSecret, cfg.Security.TokenIssuer, cfg.Security.TokenLifetime)
	telegramClient := channel.NewTelegramClient(cfg.Channels.ChatAPIBase, cfg.Channels.ChatAPITimeout)

	// Initialize services
	tenantService := tenant.NewService(tenantRepo, auditLogger)
	agentService := agent.NewService(agentRepo)
	creditService := credit.NewService(creditRepo, auditLogger, cfg.Credits.LowBalanceThreshold)
	poolService := pool.NewService(poolRepo, telegramClient, poolCipher, auditLogger, cfg.Pool.LowThreshold)
	memoryService := memory.NewService(memoryRepo, memoryCache, 20)

	setupService := setup.NewService(setupRepo, auditLogger,
		setup.NewPersonalityFlow(agentService),
		setup.NewVoiceFlow(nil),
	)

	runtime := inference.NewChatRuntime(inference.ChatRuntimeConfig{
		BaseURL:      cfg.Inference.BaseURL,
		ChatEndpoint: cfg.Inference.ChatEndpoint,
		APIKey:       cfg.Inference.APIKey,
		Model:        cfg.Inference.Model,
		Timeout:      cfg.Inference.Timeout,
	})

	costs := map[string]int64{
		channel.TypeChatBot:   cfg.Channels.CostChatBot,
		channel.TypeEmail:     cfg.Channels.CostEmail,
		channel.TypeVoice:     cfg.Channels.CostVoice,
		channel.TypeSMS:       cfg.Channels.CostSMS,
		channel.TypeWebWidget: cfg.Channels.CostWebWidget,
	}
	dispatcher := dispatch.NewPipeline(agentService, creditService, setupService, runtime, memoryService, costs, dispatchMetrics)

	tiers := map[string]int64{
		"starter": cfg.Credits.StarterTierCredits,
		"growth":  cfg.Credits.GrowthTierCredits,
		"payg":    cfg.Credits.PAYGTierCredits,
	}
	billingService := billing.NewService(creditService, tiers)

	onboardingService := onboarding.NewService(
		tenantService,
		poolService,
		agentService,
		channelRepo,
		creditService,
		tokenManager,
		telegramClient,
		auditLogger,
		cfg.Credits.StarterCredits,
		cfg.Channels.EmailDomain,
		cfg.Channels.PublicBaseURL,
		cfg.Channels.WebhookSecret,
	)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		onboardingService,
		dispatcher,
		creditService,
		poolService,
		tenantService,
		agentService,
		billingService,
		channelRepo,
		tokenManager,
		telegramClient,
		cfg.Security.AdminAPIKey,
		cfg.Channels.WebhookSecret,
	)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
