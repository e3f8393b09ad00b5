// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"

	domainerrors "github.com/simpleidserver/simpleidserver/pkg/errors"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/authorize"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/param"
	"github.com/simpleidserver/simpleidserver/pkg/uma"
)

// discoveryDocument is the subset of OIDC provider metadata this server exposes.
type discoveryDocument struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	JwksURI                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	ResponseModesSupported           []string `json:"response_modes_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
}

func (s *Server) discoveryHandler(w http.ResponseWriter, _ *http.Request) {
	issuer := s.cfg.Issuer()
	s.writeJSON(w, http.StatusOK, discoveryDocument{
		Issuer:                issuer,
		AuthorizationEndpoint: issuer + "/authorize",
		JwksURI:               issuer + "/jwks",
		ResponseTypesSupported: []string{
			"code", "token", "id_token", "code token", "code id_token",
			"id_token token", "code id_token token",
		},
		ResponseModesSupported:           []string{"query", "fragment", "form_post"},
		IDTokenSigningAlgValuesSupported: []string{"RS256", "RS384", "RS512"},
		GrantTypesSupported:              []string{"authorization_code", "implicit", uma.GrantType},
	})
}

func (s *Server) jwksHandler(w http.ResponseWriter, _ *http.Request) {
	set, err := s.keys.PublicJWKS()
	if err != nil {
		s.logger.Error("failed to build JWKS", "error", err)
		s.writeError(w, http.StatusInternalServerError, "server_error", "failed to build key set")
		return
	}
	s.writeJSON(w, http.StatusOK, set)
}

// authorizeHandler runs the authorization pipeline for an already validated
// and authenticated request, then delivers the redirect instruction.
func (s *Server) authorizeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := parseAuthorizationParameter(r)

	if p.ClientID == "" || p.RedirectURL == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "client_id and redirect_uri are required")
		return
	}

	client, err := s.clients.Get(ctx, p.ClientID)
	if err != nil {
		s.logger.Error("client lookup failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "server_error", "client lookup failed")
		return
	}
	if client == nil {
		s.writeError(w, http.StatusBadRequest, "invalid_client", "unknown client")
		return
	}

	principal, err := s.authenticator.Authenticate(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "login_required", "resource owner authentication required")
		return
	}

	actionResult := authorize.NewActionResult()
	if err := s.generator.Execute(ctx, actionResult, p, principal, client); err != nil {
		s.logger.Error("authorization response generation failed",
			"client_id", p.ClientID,
			"error", err,
		)
		s.writeError(w, http.StatusInternalServerError, "server_error", "failed to generate authorization response")
		return
	}

	s.redirect(w, r, actionResult, p)
}

// formHandler renders the auto-submitting form for response_mode=form_post.
// The redirect_uri parameter carries the client callback; every other query
// parameter is posted through.
func (s *Server) formHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	target := query.Get(authorize.RedirectURIName)
	if target == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "redirect_uri is required")
		return
	}

	fields := ""
	for name, values := range query {
		if name == authorize.RedirectURIName {
			continue
		}
		for _, v := range values {
			fields += fmt.Sprintf(`<input type="hidden" name="%s" value="%s"/>`,
				html.EscapeString(name), html.EscapeString(v))
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html><html><body onload="document.forms[0].submit()">`+
		`<form method="post" action="%s">%s</form></body></html>`,
		html.EscapeString(target), fields)
}

// rptRequest is the body of the UMA RPT endpoint.
type rptRequest struct {
	GrantType        string `json:"grant_type"`
	Ticket           string `json:"ticket"`
	ClaimToken       string `json:"claim_token,omitempty"`
	ClaimTokenFormat string `json:"claim_token_format,omitempty"`
}

// rptHandler resolves a UMA ticket to an RPT. The client authenticates with
// HTTP basic auth; secret verification belongs to the authentication layer in
// front of this server.
func (s *Server) rptHandler(w http.ResponseWriter, r *http.Request) {
	clientID, _, ok := r.BasicAuth()
	if !ok || clientID == "" {
		s.writeError(w, http.StatusUnauthorized, "invalid_client", "client authentication required")
		return
	}

	var req rptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.GrantType != uma.GrantType {
		s.writeError(w, http.StatusBadRequest, "unsupported_grant_type", "expected "+uma.GrantType)
		return
	}

	request := uma.AuthorizationRequest{TicketID: req.Ticket}
	if req.ClaimToken != "" {
		request.ClaimToken = &uma.ClaimTokenParameter{Token: req.ClaimToken, Format: req.ClaimTokenFormat}
	}

	responses, err := s.rpts.ExecuteAll(r.Context(), clientID, []uma.AuthorizationRequest{request})
	if err != nil {
		var de *domainerrors.Error
		if errors.As(err, &de) && de.Code != domainerrors.CodeInternal {
			s.writeError(w, http.StatusBadRequest, de.Code, de.Message)
			return
		}
		s.logger.Error("rpt issuance failed", "client_id", clientID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "server_error", "failed to evaluate ticket")
		return
	}

	s.writeJSON(w, http.StatusOK, responses[0])
}

// parseAuthorizationParameter maps the query string onto the flow input.
func parseAuthorizationParameter(r *http.Request) *param.AuthorizationParameter {
	q := r.URL.Query()
	return &param.AuthorizationParameter{
		ClientID:            q.Get("client_id"),
		Scope:               q.Get("scope"),
		ResponseType:        q.Get("response_type"),
		State:               q.Get("state"),
		RedirectURL:         q.Get("redirect_uri"),
		Prompt:              q.Get("prompt"),
		ResponseMode:        param.ResponseMode(q.Get("response_mode")),
		Nonce:               q.Get("nonce"),
		Claims:              parseClaimsParameter(q.Get("claims")),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}
}

// parseClaimsParameter decodes the OIDC claims request JSON. Malformed input
// yields no claim filter rather than an error, matching the tolerant parsing
// of the other request parameters.
func parseClaimsParameter(raw string) *param.ClaimsParameter {
	if raw == "" {
		return nil
	}

	var doc struct {
		IDToken  map[string]*struct{ Essential bool } `json:"id_token"`
		UserInfo map[string]*struct{ Essential bool } `json:"userinfo"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil
	}

	result := &param.ClaimsParameter{}
	for name, opts := range doc.IDToken {
		c := param.ClaimParameter{Name: name}
		if opts != nil {
			c.Essential = opts.Essential
		}
		result.IDToken = append(result.IDToken, c)
	}
	for name, opts := range doc.UserInfo {
		c := param.ClaimParameter{Name: name}
		if opts != nil {
			c.Essential = opts.Essential
		}
		result.UserInfo = append(result.UserInfo, c)
	}
	if len(result.IDToken) == 0 && len(result.UserInfo) == 0 {
		return nil
	}
	return result
}

// redirect delivers the generated parameters per the selected response mode.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, result *authorize.ActionResult, p *param.AuthorizationParameter) {
	values := url.Values{}
	for name, value := range result.RedirectInstruction.Parameters {
		values.Set(name, value)
	}

	if result.Type == authorize.RedirectToAction {
		http.Redirect(w, r, "/"+result.RedirectInstruction.Action+"?"+values.Encode(), http.StatusFound)
		return
	}

	target, err := url.Parse(p.RedirectURL)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid redirect_uri")
		return
	}

	switch result.RedirectInstruction.ResponseMode {
	case param.ResponseModeFragment:
		target.Fragment = ""
		target.RawQuery = ""
		http.Redirect(w, r, target.String()+"#"+values.Encode(), http.StatusFound)
	default:
		query := target.Query()
		for name, value := range result.RedirectInstruction.Parameters {
			query.Set(name, value)
		}
		target.RawQuery = query.Encode()
		http.Redirect(w, r, target.String(), http.StatusFound)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, description string) {
	s.writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}
