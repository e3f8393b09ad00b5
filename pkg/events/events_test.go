// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// panickingSource panics on every event.
type panickingSource struct{}

func (panickingSource) StartAuthorizationResponse(string, string) { panic("boom") }
func (panickingSource) EndAuthorizationResponse(string, map[string]string) {
	panic("boom")
}
func (panickingSource) AccessGranted(string, string)               { panic("boom") }
func (panickingSource) AuthorizationCodeGranted(string, string)    { panic("boom") }
func (panickingSource) StartGettingAuthorization(string, string)   { panic("boom") }
func (panickingSource) AuthorizationGranted(string, string)        { panic("boom") }
func (panickingSource) AuthorizationDenied(string, string, string) { panic("boom") }

func TestSafeSwallowsPanics(t *testing.T) {
	t.Parallel()

	s := NewSafe(panickingSource{})

	assert.NotPanics(t, func() {
		s.StartAuthorizationResponse("c1", "code")
		s.EndAuthorizationResponse("c1", map[string]string{"code": "x"})
		s.AccessGranted("c1", "openid")
		s.AuthorizationCodeGranted("c1", "openid")
		s.StartGettingAuthorization("t1", "c1")
		s.AuthorizationGranted("t1", "c1")
		s.AuthorizationDenied("t1", "c1", "need_info")
	})
}

func TestSafeNilSourceIsNoop(t *testing.T) {
	t.Parallel()

	s := NewSafe(nil)
	assert.NotPanics(t, func() {
		s.AccessGranted("c1", "openid")
		s.AuthorizationDenied("t1", "c1", "not_authorized")
	})
}

func TestLoggerEmitsRecords(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.AccessGranted("c1", "openid profile")
	logger.AuthorizationGranted("t1", "c1")
	logger.AuthorizationDenied("t1", "c1", "need_info")
	logger.StartAuthorizationResponse("c1", "code token")
	logger.EndAuthorizationResponse("c1", map[string]string{"code": "x", "state": "y"})

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "access token granted")
	assert.Contains(t, out, "ticket authorized")
	assert.Contains(t, out, "need_info")
	assert.Contains(t, out, `"client_id":"c1"`)
}
