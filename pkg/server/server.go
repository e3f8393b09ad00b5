// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the authorization core over HTTP: the authorization
// endpoint, the OIDC discovery and JWKS documents, the form_post renderer and
// the UMA RPT endpoint.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/simpleidserver/simpleidserver/pkg/config"
	"github.com/simpleidserver/simpleidserver/pkg/jwt"
	"github.com/simpleidserver/simpleidserver/pkg/jwt/keys"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/authorize"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/clients"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/param"
	"github.com/simpleidserver/simpleidserver/pkg/uma"
)

// ClientStore resolves registered clients. Get returns nil when unknown.
type ClientStore interface {
	Get(ctx context.Context, clientID string) (*clients.Client, error)
}

// Authenticator resolves the authenticated resource owner of a request.
// Deployments typically sit behind an authenticating proxy or session layer;
// the server only needs the resulting principal.
type Authenticator interface {
	Authenticate(r *http.Request) (*jwt.Principal, error)
}

// ResponseGenerator runs the authorization pipeline. Implemented by
// authorize.Generator.
type ResponseGenerator interface {
	Execute(ctx context.Context, actionResult *authorize.ActionResult, p *param.AuthorizationParameter, principal *jwt.Principal, client *clients.Client) error
}

// RptIssuer resolves UMA tickets to RPTs. Implemented by uma.AuthorizationAction.
type RptIssuer interface {
	ExecuteAll(ctx context.Context, clientID string, requests []uma.AuthorizationRequest) ([]*uma.AuthorizationResponse, error)
}

// Server wires the HTTP endpoints.
type Server struct {
	cfg           config.Service
	logger        *slog.Logger
	clients       ClientStore
	generator     ResponseGenerator
	rpts          RptIssuer
	keys          keys.Provider
	authenticator Authenticator
}

// New creates a Server.
func New(
	cfg config.Service,
	logger *slog.Logger,
	clientStore ClientStore,
	generator ResponseGenerator,
	rpts RptIssuer,
	keyProvider keys.Provider,
	authenticator Authenticator,
) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		clients:       clientStore,
		generator:     generator,
		rpts:          rpts,
		keys:          keyProvider,
		authenticator: authenticator,
	}
}

// Router builds the chi router with all routes registered.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/.well-known/openid-configuration", s.discoveryHandler)
	r.Get("/jwks", s.jwksHandler)
	r.Get("/authorize", s.authorizeHandler)
	r.Get("/form", s.formHandler)
	r.Post("/rpt", s.rptHandler)

	return r
}
