// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events publishes telemetry about token and policy decisions.
// Publishing is fire-and-forget: a failing or panicking sink must never affect
// the primary authorization flow.
package events

import (
	"log/slog"
)

// Source receives telemetry events from the authorization core.
type Source interface {
	// StartAuthorizationResponse fires when response generation begins.
	StartAuthorizationResponse(clientID, responseType string)

	// EndAuthorizationResponse fires when response generation completes.
	EndAuthorizationResponse(clientID string, parameters map[string]string)

	// AccessGranted fires when a new access token is persisted.
	AccessGranted(clientID, scopes string)

	// AuthorizationCodeGranted fires when a new authorization code is persisted.
	AuthorizationCodeGranted(clientID, scopes string)

	// StartGettingAuthorization fires when a UMA authorization request begins.
	StartGettingAuthorization(ticketID, clientID string)

	// AuthorizationGranted fires when a UMA ticket is authorized.
	AuthorizationGranted(ticketID, clientID string)

	// AuthorizationDenied fires when a UMA ticket evaluation is not authorized.
	AuthorizationDenied(ticketID, clientID, result string)
}

// Logger is a Source that writes structured log records.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a slog-backed event source.
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

// StartAuthorizationResponse implements Source.
func (l *Logger) StartAuthorizationResponse(clientID, responseType string) {
	l.logger.Debug("generating authorization response",
		"client_id", clientID,
		"response_type", responseType,
	)
}

// EndAuthorizationResponse implements Source.
func (l *Logger) EndAuthorizationResponse(clientID string, parameters map[string]string) {
	names := make([]string, 0, len(parameters))
	for name := range parameters {
		names = append(names, name)
	}
	l.logger.Debug("authorization response generated",
		"client_id", clientID,
		"parameters", names,
	)
}

// AccessGranted implements Source.
func (l *Logger) AccessGranted(clientID, scopes string) {
	l.logger.Info("access token granted",
		"client_id", clientID,
		"scopes", scopes,
	)
}

// AuthorizationCodeGranted implements Source.
func (l *Logger) AuthorizationCodeGranted(clientID, scopes string) {
	l.logger.Info("authorization code granted",
		"client_id", clientID,
		"scopes", scopes,
	)
}

// StartGettingAuthorization implements Source.
func (l *Logger) StartGettingAuthorization(ticketID, clientID string) {
	l.logger.Debug("evaluating authorization policies",
		"ticket_id", ticketID,
		"client_id", clientID,
	)
}

// AuthorizationGranted implements Source.
func (l *Logger) AuthorizationGranted(ticketID, clientID string) {
	l.logger.Info("ticket authorized",
		"ticket_id", ticketID,
		"client_id", clientID,
	)
}

// AuthorizationDenied implements Source.
func (l *Logger) AuthorizationDenied(ticketID, clientID, result string) {
	l.logger.Info("ticket not authorized",
		"ticket_id", ticketID,
		"client_id", clientID,
		"result", result,
	)
}

// Safe wraps a Source so that panics in the sink are swallowed.
// The core calls telemetry through Safe; a broken sink must not mask results.
type Safe struct {
	next Source
}

// NewSafe wraps src. A nil src yields a no-op source.
func NewSafe(src Source) *Safe {
	return &Safe{next: src}
}

func (s *Safe) publish(fn func(Source)) {
	if s.next == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	fn(s.next)
}

// StartAuthorizationResponse implements Source.
func (s *Safe) StartAuthorizationResponse(clientID, responseType string) {
	s.publish(func(src Source) { src.StartAuthorizationResponse(clientID, responseType) })
}

// EndAuthorizationResponse implements Source.
func (s *Safe) EndAuthorizationResponse(clientID string, parameters map[string]string) {
	s.publish(func(src Source) { src.EndAuthorizationResponse(clientID, parameters) })
}

// AccessGranted implements Source.
func (s *Safe) AccessGranted(clientID, scopes string) {
	s.publish(func(src Source) { src.AccessGranted(clientID, scopes) })
}

// AuthorizationCodeGranted implements Source.
func (s *Safe) AuthorizationCodeGranted(clientID, scopes string) {
	s.publish(func(src Source) { src.AuthorizationCodeGranted(clientID, scopes) })
}

// StartGettingAuthorization implements Source.
func (s *Safe) StartGettingAuthorization(ticketID, clientID string) {
	s.publish(func(src Source) { src.StartGettingAuthorization(ticketID, clientID) })
}

// AuthorizationGranted implements Source.
func (s *Safe) AuthorizationGranted(ticketID, clientID string) {
	s.publish(func(src Source) { src.AuthorizationGranted(ticketID, clientID) })
}

// AuthorizationDenied implements Source.
func (s *Safe) AuthorizationDenied(ticketID, clientID, result string) {
	s.publish(func(src Source) { src.AuthorizationDenied(ticketID, clientID, result) })
}
