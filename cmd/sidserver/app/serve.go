// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/simpleidserver/simpleidserver/pkg/config"
	"github.com/simpleidserver/simpleidserver/pkg/events"
	"github.com/simpleidserver/simpleidserver/pkg/jwt"
	"github.com/simpleidserver/simpleidserver/pkg/jwt/keys"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/authorize"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/clients"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/consent"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/token"
	"github.com/simpleidserver/simpleidserver/pkg/server"
	"github.com/simpleidserver/simpleidserver/pkg/storage"
	"github.com/simpleidserver/simpleidserver/pkg/uma"
)

func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authorization server",
		Long: `Start the HTTP server exposing the OpenID Connect authorization endpoint,
the discovery and JWKS documents, and the UMA RPT endpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to the configuration file")

	return cmd
}

func runServe(ctx context.Context, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if debug, _ := rootCmd.PersistentFlags().GetBool("debug"); debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	keyProvider, err := newKeyProvider(cfg, logger)
	if err != nil {
		return err
	}

	stores, err := newStores(ctx, cfg, logger)
	if err != nil {
		return err
	}

	generator := jwt.NewGenerator(cfg.Issuer(), cfg.TokenValidityPeriod(), keyProvider)
	parser := jwt.NewParser(keyProvider)
	idTokens := clients.NewHelper(generator)
	src := events.NewLogger(logger)

	responses := authorize.NewGenerator(
		stores.codes,
		stores.grantedTokens,
		stores.scopes,
		token.NewHelper(stores.grantedTokens),
		token.NewGenerator(cfg),
		consent.NewMatcher(stores.consents),
		generator,
		idTokens,
		src,
	)

	policy := uma.NewBasicPolicy(parser, cfg)
	validator := uma.NewValidator(stores.resourceSets, policy)
	rpts := uma.NewAuthorizationAction(stores.tickets, stores.rpts, validator, cfg, src)

	srv := server.New(cfg, logger, stores.clients, responses, rpts, keyProvider, server.HeaderAuthenticator{})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting authorization server", "address", cfg.ListenAddress(), "issuer", cfg.Issuer())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// stores groups the per-aggregate repositories the wiring needs, so memory
// and Redis backends can be swapped behind one struct.
type stores struct {
	scopes        authorize.ScopeStore
	clients       server.ClientStore
	grantedTokens token.Store
	codes         authorize.CodeStore
	consents      consent.Store
	resourceSets  uma.ResourceSetStore
	tickets       uma.TicketStore
	rpts          uma.RptStore
}

func newStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if url := cfg.RedisURL(); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("using redis storage", "address", opts.Addr)

		r := storage.NewRedis(storage.RedisConfig{
			Client:  client,
			CodeTTL: cfg.AuthorizationCodeValidityPeriod(),
		})
		return &stores{
			scopes:        r.Scopes,
			clients:       r.Clients,
			grantedTokens: r.GrantedTokens,
			codes:         r.AuthCodes,
			consents:      r.Consents,
			resourceSets:  r.ResourceSets,
			tickets:       r.Tickets,
			rpts:          r.Rpts,
		}, nil
	}

	logger.Info("using in-memory storage")
	m := storage.NewMemory()
	return &stores{
		scopes:        m.Scopes,
		clients:       m.Clients,
		grantedTokens: m.GrantedTokens,
		codes:         m.AuthCodes,
		consents:      m.Consents,
		resourceSets:  m.ResourceSets,
		tickets:       m.Tickets,
		rpts:          m.Rpts,
	}, nil
}

func newKeyProvider(cfg *config.Config, logger *slog.Logger) (keys.Provider, error) {
	if path := cfg.SigningKeyFile(); path != "" {
		return keys.NewFileProvider(path)
	}
	logger.Warn("no signing key file configured, generating an ephemeral key; tokens will not survive restarts")
	return keys.NewGeneratedProvider()
}
