// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config provides the tunable settings consumed by the authorization
// core. Values come from a config file, environment variables or defaults, so
// token lifetimes can be changed without redeploying.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults applied when no file or environment override is present.
const (
	DefaultTokenValidityPeriod             = time.Hour
	DefaultAuthorizationCodeValidityPeriod = 10 * time.Minute
	DefaultRptLifetime                     = 30 * time.Minute
	DefaultTicketLifetime                  = time.Hour
	DefaultIssuer                          = "http://localhost:8080"
	DefaultListenAddress                   = ":8080"
)

// Service exposes the settings the core reads at request time.
// It is injected, never accessed through package-level state.
type Service interface {
	// TokenValidityPeriod is the lifetime of newly granted access tokens.
	TokenValidityPeriod() time.Duration

	// AuthorizationCodeValidityPeriod is the lifetime of authorization codes.
	AuthorizationCodeValidityPeriod() time.Duration

	// RptLifetime is the lifetime of requesting-party tokens.
	RptLifetime() time.Duration

	// TicketLifetime is the lifetime of UMA permission tickets.
	TicketLifetime() time.Duration

	// Issuer is the base URL of this server, used as the token issuer and as
	// the claims-issuer URL in UMA need-info responses.
	Issuer() string
}

// Config is the viper-backed Service implementation, plus server-only settings.
type Config struct {
	v *viper.Viper
}

// Load reads configuration from the optional file path and the SIDSERVER_*
// environment, falling back to defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("token_validity_period", DefaultTokenValidityPeriod)
	v.SetDefault("authorization_code_validity_period", DefaultAuthorizationCodeValidityPeriod)
	v.SetDefault("rpt_lifetime", DefaultRptLifetime)
	v.SetDefault("ticket_lifetime", DefaultTicketLifetime)
	v.SetDefault("issuer", DefaultIssuer)
	v.SetDefault("listen_address", DefaultListenAddress)

	v.SetEnvPrefix("SIDSERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return &Config{v: v}, nil
}

// TokenValidityPeriod implements Service.
func (c *Config) TokenValidityPeriod() time.Duration {
	return c.v.GetDuration("token_validity_period")
}

// AuthorizationCodeValidityPeriod implements Service.
func (c *Config) AuthorizationCodeValidityPeriod() time.Duration {
	return c.v.GetDuration("authorization_code_validity_period")
}

// RptLifetime implements Service.
func (c *Config) RptLifetime() time.Duration {
	return c.v.GetDuration("rpt_lifetime")
}

// TicketLifetime implements Service.
func (c *Config) TicketLifetime() time.Duration {
	return c.v.GetDuration("ticket_lifetime")
}

// Issuer implements Service.
func (c *Config) Issuer() string {
	return strings.TrimSuffix(c.v.GetString("issuer"), "/")
}

// ListenAddress is the HTTP listen address for the serve command.
func (c *Config) ListenAddress() string {
	return c.v.GetString("listen_address")
}

// SigningKeyFile is an optional PEM file holding the RSA signing key.
// When empty, an ephemeral key is generated at startup.
func (c *Config) SigningKeyFile() string {
	return c.v.GetString("signing_key_file")
}

// RedisURL enables the Redis storage backend when non-empty.
func (c *Config) RedisURL() string {
	return c.v.GetString("redis_url")
}

// Static is a fixed-value Service for tests and embedded use.
type Static struct {
	TokenValidity             time.Duration
	AuthorizationCodeValidity time.Duration
	RptTTL                    time.Duration
	TicketTTL                 time.Duration
	IssuerURL                 string
}

// TokenValidityPeriod implements Service.
func (s *Static) TokenValidityPeriod() time.Duration { return s.TokenValidity }

// AuthorizationCodeValidityPeriod implements Service.
func (s *Static) AuthorizationCodeValidityPeriod() time.Duration {
	return s.AuthorizationCodeValidity
}

// RptLifetime implements Service.
func (s *Static) RptLifetime() time.Duration { return s.RptTTL }

// TicketLifetime implements Service.
func (s *Static) TicketLifetime() time.Duration { return s.TicketTTL }

// Issuer implements Service.
func (s *Static) Issuer() string { return s.IssuerURL }
