// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpleidserver/simpleidserver/pkg/config"
	domainerrors "github.com/simpleidserver/simpleidserver/pkg/errors"
	"github.com/simpleidserver/simpleidserver/pkg/jwt"
	"github.com/simpleidserver/simpleidserver/pkg/jwt/keys"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/authorize"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/clients"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/param"
	"github.com/simpleidserver/simpleidserver/pkg/uma"
)

type fakeClientStore struct {
	clients map[string]*clients.Client
}

func (f *fakeClientStore) Get(_ context.Context, clientID string) (*clients.Client, error) {
	return f.clients[clientID], nil
}

// fakeGenerator records the call and fills canned parameters.
type fakeGenerator struct {
	params map[string]string
	action string
	mode   param.ResponseMode
	err    error
	gotP   *param.AuthorizationParameter
}

func (f *fakeGenerator) Execute(_ context.Context, actionResult *authorize.ActionResult, p *param.AuthorizationParameter, _ *jwt.Principal, _ *clients.Client) error {
	f.gotP = p
	if f.err != nil {
		return f.err
	}
	for k, v := range f.params {
		actionResult.RedirectInstruction.AddParameter(k, v)
	}
	if f.action != "" {
		actionResult.Type = authorize.RedirectToAction
		actionResult.RedirectInstruction.Action = f.action
	}
	actionResult.RedirectInstruction.ResponseMode = f.mode
	return nil
}

type fakeRptIssuer struct {
	responses []*uma.AuthorizationResponse
	err       error
	clientID  string
	requests  []uma.AuthorizationRequest
}

func (f *fakeRptIssuer) ExecuteAll(_ context.Context, clientID string, requests []uma.AuthorizationRequest) ([]*uma.AuthorizationResponse, error) {
	f.clientID = clientID
	f.requests = requests
	return f.responses, f.err
}

func newTestServer(t *testing.T, generator *fakeGenerator, rpts *fakeRptIssuer) *Server {
	t.Helper()
	provider, err := keys.NewGeneratedProvider()
	require.NoError(t, err)

	return New(
		&config.Static{IssuerURL: "https://auth.example.com", RptTTL: time.Minute},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		&fakeClientStore{clients: map[string]*clients.Client{"c1": {ClientID: "c1"}}},
		generator,
		rpts,
		provider,
		HeaderAuthenticator{},
	)
}

func TestDiscoveryDocument(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeGenerator{}, &fakeRptIssuer{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "https://auth.example.com", doc["issuer"])
	assert.Equal(t, "https://auth.example.com/authorize", doc["authorization_endpoint"])
	assert.Equal(t, "https://auth.example.com/jwks", doc["jwks_uri"])
	assert.Contains(t, doc["grant_types_supported"], uma.GrantType)
}

func TestJWKSEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeGenerator{}, &fakeRptIssuer{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jwks", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Len(t, doc.Keys, 1)
	assert.Equal(t, "RSA", doc.Keys[0]["kty"])
	assert.Equal(t, "sig", doc.Keys[0]["use"])
	assert.NotEmpty(t, doc.Keys[0]["kid"])
	// no private exponent in the published key
	assert.NotContains(t, doc.Keys[0], "d")
}

func TestAuthorizeQueryRedirect(t *testing.T) {
	t.Parallel()

	generator := &fakeGenerator{
		params: map[string]string{"code": "abc", "state": "xyz"},
		mode:   param.ResponseModeQuery,
	}
	srv := newTestServer(t, generator, &fakeRptIssuer{})

	req := httptest.NewRequest(http.MethodGet,
		"/authorize?client_id=c1&redirect_uri=https%3A%2F%2Fclient.example.com%2Fcb&response_type=code&scope=openid&state=xyz", nil)
	req.Header.Set(SubjectHeader, "alice")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "client.example.com", location.Host)
	assert.Equal(t, "abc", location.Query().Get("code"))
	assert.Equal(t, "xyz", location.Query().Get("state"))
	assert.Empty(t, location.Fragment)

	// the query string was parsed into the flow input
	require.NotNil(t, generator.gotP)
	assert.Equal(t, "c1", generator.gotP.ClientID)
	assert.Equal(t, "code", generator.gotP.ResponseType)
	assert.Equal(t, "openid", generator.gotP.Scope)
}

func TestAuthorizeFragmentRedirect(t *testing.T) {
	t.Parallel()

	generator := &fakeGenerator{
		params: map[string]string{"access_token": "tok"},
		mode:   param.ResponseModeFragment,
	}
	srv := newTestServer(t, generator, &fakeRptIssuer{})

	req := httptest.NewRequest(http.MethodGet,
		"/authorize?client_id=c1&redirect_uri=https%3A%2F%2Fclient.example.com%2Fcb&response_type=token&scope=openid", nil)
	req.Header.Set(SubjectHeader, "alice")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.Contains(t, location, "#")
	assert.Contains(t, location, "access_token=tok")
}

func TestAuthorizeFormPostRedirectsToFormAction(t *testing.T) {
	t.Parallel()

	generator := &fakeGenerator{
		params: map[string]string{"code": "abc", "redirect_uri": "https://client.example.com/cb"},
		action: authorize.FormAction,
	}
	srv := newTestServer(t, generator, &fakeRptIssuer{})

	req := httptest.NewRequest(http.MethodGet,
		"/authorize?client_id=c1&redirect_uri=https%3A%2F%2Fclient.example.com%2Fcb&response_type=code&response_mode=form_post", nil)
	req.Header.Set(SubjectHeader, "alice")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "/form?"), location)
}

func TestAuthorizeMissingClientID(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeGenerator{}, &fakeRptIssuer{})
	req := httptest.NewRequest(http.MethodGet, "/authorize?redirect_uri=https%3A%2F%2Fx", nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthorizeUnknownClient(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeGenerator{}, &fakeRptIssuer{})
	req := httptest.NewRequest(http.MethodGet,
		"/authorize?client_id=ghost&redirect_uri=https%3A%2F%2Fx&response_type=code", nil)
	req.Header.Set(SubjectHeader, "alice")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_client")
}

func TestAuthorizeUnauthenticated(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeGenerator{}, &fakeRptIssuer{})
	req := httptest.NewRequest(http.MethodGet,
		"/authorize?client_id=c1&redirect_uri=https%3A%2F%2Fx&response_type=code", nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "login_required")
}

func TestFormRendersAutoSubmitForm(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeGenerator{}, &fakeRptIssuer{})
	req := httptest.NewRequest(http.MethodGet,
		"/form?redirect_uri=https%3A%2F%2Fclient.example.com%2Fcb&code=abc&state=x%22y", nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `action="https://client.example.com/cb"`)
	assert.Contains(t, body, `name="code"`)
	assert.Contains(t, body, `value="abc"`)
	// values are HTML-escaped
	assert.NotContains(t, body, `x"y`)
	// the callback target is not re-posted as a field
	assert.NotContains(t, body, `name="redirect_uri"`)
}

func TestFormPreservesLiteralValues(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeGenerator{}, &fakeRptIssuer{})
	// state carries a backslash and a non-ASCII rune; both must survive into
	// the rendered attribute untouched apart from HTML escaping
	req := httptest.NewRequest(http.MethodGet,
		"/form?redirect_uri=https%3A%2F%2Fclient.example.com%2Fcb&state=a%5Cb%C3%A9", nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `value="a\bé"`)
	assert.NotContains(t, body, `a\\b`)
	assert.NotContains(t, body, `\u`)
}

func TestFormMissingRedirectURI(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeGenerator{}, &fakeRptIssuer{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/form?code=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRptIssuance(t *testing.T) {
	t.Parallel()

	rpts := &fakeRptIssuer{responses: []*uma.AuthorizationResponse{
		{Result: uma.Authorized, Rpt: "rpt-value"},
	}}
	srv := newTestServer(t, &fakeGenerator{}, rpts)

	body := `{"grant_type":"` + uma.GrantType + `","ticket":"t1","claim_token":"tok","claim_token_format":"` + uma.IDTokenFormat + `"}`
	req := httptest.NewRequest(http.MethodPost, "/rpt", strings.NewReader(body))
	req.SetBasicAuth("c1", "secret")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var response uma.AuthorizationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, uma.Authorized, response.Result)
	assert.Equal(t, "rpt-value", response.Rpt)

	assert.Equal(t, "c1", rpts.clientID)
	require.Len(t, rpts.requests, 1)
	assert.Equal(t, "t1", rpts.requests[0].TicketID)
	require.NotNil(t, rpts.requests[0].ClaimToken)
	assert.Equal(t, uma.IDTokenFormat, rpts.requests[0].ClaimToken.Format)
}

func TestRptRequiresClientAuth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeGenerator{}, &fakeRptIssuer{})
	req := httptest.NewRequest(http.MethodPost, "/rpt", strings.NewReader(`{}`))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRptRejectsWrongGrantType(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeGenerator{}, &fakeRptIssuer{})
	req := httptest.NewRequest(http.MethodPost, "/rpt",
		strings.NewReader(`{"grant_type":"authorization_code","ticket":"t1"}`))
	req.SetBasicAuth("c1", "secret")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported_grant_type")
}

func TestRptDomainErrorMapsToBadRequest(t *testing.T) {
	t.Parallel()

	rpts := &fakeRptIssuer{err: domainerrors.New(domainerrors.CodeInvalidTicket, "the ticket t1 doesn't exist")}
	srv := newTestServer(t, &fakeGenerator{}, rpts)

	req := httptest.NewRequest(http.MethodPost, "/rpt",
		strings.NewReader(`{"grant_type":"`+uma.GrantType+`","ticket":"t1"}`))
	req.SetBasicAuth("c1", "secret")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), domainerrors.CodeInvalidTicket)
}

func TestRptInternalErrorMapsToServerError(t *testing.T) {
	t.Parallel()

	rpts := &fakeRptIssuer{err: domainerrors.New(domainerrors.CodeInternal, "storage down")}
	srv := newTestServer(t, &fakeGenerator{}, rpts)

	req := httptest.NewRequest(http.MethodPost, "/rpt",
		strings.NewReader(`{"grant_type":"`+uma.GrantType+`","ticket":"t1"}`))
	req.SetBasicAuth("c1", "secret")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "server_error")
}

func TestHeaderAuthenticator(t *testing.T) {
	t.Parallel()

	t.Run("subject only", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(SubjectHeader, "alice")

		principal, err := HeaderAuthenticator{}.Authenticate(req)
		require.NoError(t, err)
		assert.Equal(t, "alice", principal.Subject)
		assert.Empty(t, principal.Claims)
	})

	t.Run("subject with claims", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(SubjectHeader, "alice")
		req.Header.Set(ClaimsHeader, `{"email":"alice@example.com","role":"admin"}`)

		principal, err := HeaderAuthenticator{}.Authenticate(req)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", principal.Claims["email"])
		assert.Equal(t, "admin", principal.Claims["role"])
	})

	t.Run("missing subject", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		_, err := HeaderAuthenticator{}.Authenticate(req)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("malformed claims", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(SubjectHeader, "alice")
		req.Header.Set(ClaimsHeader, "{not json")
		_, err := HeaderAuthenticator{}.Authenticate(req)
		assert.Error(t, err)
	})
}

func TestParseClaimsParameter(t *testing.T) {
	t.Parallel()

	t.Run("id_token and userinfo claims", func(t *testing.T) {
		t.Parallel()
		got := parseClaimsParameter(`{"id_token":{"email":{"essential":true}},"userinfo":{"name":null}}`)
		require.NotNil(t, got)
		require.Len(t, got.IDToken, 1)
		assert.Equal(t, "email", got.IDToken[0].Name)
		assert.True(t, got.IDToken[0].Essential)
		require.Len(t, got.UserInfo, 1)
		assert.Equal(t, "name", got.UserInfo[0].Name)
		assert.False(t, got.UserInfo[0].Essential)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, parseClaimsParameter(""))
	})

	t.Run("malformed input tolerated", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, parseClaimsParameter("{broken"))
	})

	t.Run("empty object", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, parseClaimsParameter("{}"))
	})
}
