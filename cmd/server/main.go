// Copyright 2026 The ScoutZone Authors
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

	"github.com/scoutzone/scoutzone/internal/audit"
	"github.com/scoutzone/scoutzone/internal/config"
	"github.com/scoutzone/scoutzone/internal/identity"
	"github.com/scoutzone/scoutzone/internal/observability/logger"
	"github.com/scoutzone/scoutzone/internal/observability/metrics"
	"github.com/scoutzone/scoutzone/internal/observability/tracing"
	"github.com/scoutzone/scoutzone/internal/rights"
	"github.com/scoutzone/scoutzone/internal/session"
	"github.com/scoutzone/scoutzone/internal/store/memory"
	"github.com/scoutzone/scoutzone/internal/store/postgres"
	redisstore "github.com/scoutzone/scoutzone/internal/store/redis"
	"github.com/scoutzone/scoutzone/internal/token"
	transportHTTP "github.com/scoutzone/scoutzone/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting scoutzone rights service")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()

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

	m, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize metrics", logger.Error(err))
		os.Exit(1)
	}

	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MinIdleConns: cfg.Database.MinIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	var sideStore token.SideStore
	if cfg.Redis.Addr != "" {
		rs, err := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			slog.Error("failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
		defer rs.Close()
		sideStore = rs
		slog.Info("connected to redis")
	} else {
		slog.Warn("REDIS_ADDR not set, using in-process session store")
		sideStore = memory.New()
	}

	userRepo := postgres.NewUserRepository(db)
	rightsRepo := postgres.NewRightsRepository(db)

	auditLogger := audit.NewSlogLogger()
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	identityService := identity.NewService(userRepo, passwordHasher, auditLogger)
	tokenService := token.NewService(identityService, sideStore, token.Config{
		AccessSecret:  []byte(cfg.Auth.AccessSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	}, auditLogger, m)
	resolver := session.NewResolver(tokenService, session.Config{
		CookieName:    cfg.Auth.CookieName,
		DefaultDomain: cfg.Auth.CookieDomain,
		RefreshTTL:    int(cfg.Auth.RefreshTTL.Seconds()),
		SkipAuth:      cfg.Auth.SkipAuth,
	})
	if cfg.Auth.SkipAuth {
		slog.Warn("SKIP_AUTH is enabled, every request acts as a synthetic director")
	}

	rightsService := rights.NewService(rightsRepo, userRepo)
	orchestrator := rights.NewOrchestrator(rightsService, rightsRepo, auditLogger)

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	handler := transportHTTP.NewHandler(
		identityService,
		tokenService,
		resolver,
		rightsService,
		orchestrator,
		auditLogger,
		m,
	)

	router := transportHTTP.NewRouter(handler, rateLimiter)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

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
		MinIdleConns: cfg.Database.MinIdleConns,
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
