// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package uma

import (
	"fmt"
	"slices"
	"strings"

	"github.com/simpleidserver/simpleidserver/pkg/jwt"
)

// RoleClaimType gets multi-value matching: its value may arrive as a single
// string, a comma-joined string or an array.
const RoleClaimType = "role"

// ClaimTokenParser validates a presented claim token and returns its claims.
// Implemented by jwt.Parser.
type ClaimTokenParser interface {
	UnSign(token string) (jwt.Payload, error)
}

// IssuerSource supplies the claims-issuer URL advertised in NeedInfo results.
type IssuerSource interface {
	Issuer() string
}

// BasicPolicy evaluates a single authorization policy against one ticket line.
type BasicPolicy struct {
	parser ClaimTokenParser
	issuer IssuerSource
}

// NewBasicPolicy creates a BasicPolicy.
func NewBasicPolicy(parser ClaimTokenParser, issuer IssuerSource) *BasicPolicy {
	return &BasicPolicy{parser: parser, issuer: issuer}
}

// Execute evaluates the policy's rules in order with OR semantics: the first
// Authorized rule wins. A policy with no rules is vacuously Authorized.
//
// When no rule authorizes, the result of the last evaluated rule is returned.
// That can surface a NeedInfo from a trailing rule instead of an earlier
// NotAuthorized; the behavior is preserved for compatibility with existing
// deployments even though it falls out of the loop structure.
func (b *BasicPolicy) Execute(line TicketLineParameter, policy *Policy, claimToken *ClaimTokenParameter) Result {
	if policy == nil || len(policy.Rules) == 0 {
		return authorized()
	}

	result := authorized()
	for _, rule := range policy.Rules {
		result = b.executeRule(line, rule, claimToken)
		if result.Type == Authorized {
			return result
		}
	}
	return result
}

// executeRule runs one rule's checks in strict order, short-circuiting on the
// first failure: scopes, client allow-list, claims, resource-owner consent.
func (b *BasicPolicy) executeRule(line TicketLineParameter, rule PolicyRule, claimToken *ClaimTokenParameter) Result {
	for _, s := range line.Scopes {
		if !slices.Contains(rule.Scopes, s) {
			return notAuthorized()
		}
	}

	if len(rule.ClientIDsAllowed) > 0 && !slices.Contains(rule.ClientIDsAllowed, line.ClientID) {
		return notAuthorized()
	}

	if r, ok := b.checkClaims(rule, claimToken); !ok {
		return r
	}

	if rule.IsResourceOwnerConsentNeeded && !line.IsAuthorizedByRo {
		return Result{Type: RequestSubmitted}
	}

	return authorized()
}

// checkClaims verifies the rule's required claims against the presented claim
// token. ok is true when the rule declares no claims or all claims match.
func (b *BasicPolicy) checkClaims(rule PolicyRule, claimToken *ClaimTokenParameter) (Result, bool) {
	if len(rule.Claims) == 0 {
		return authorized(), true
	}

	if claimToken == nil || claimToken.Format != IDTokenFormat {
		return b.needInfo(rule.Claims), false
	}

	payload, err := b.parser.UnSign(claimToken.Token)
	if err != nil || payload == nil {
		return notAuthorized(), false
	}

	for _, claim := range rule.Claims {
		value, ok := payload[claim.Type]
		if !ok {
			return notAuthorized(), false
		}

		if claim.Type == RoleClaimType {
			if !slices.Contains(normalizeStringSet(value), claim.Value) {
				return notAuthorized(), false
			}
			continue
		}

		if claimValueString(value) != claim.Value {
			return notAuthorized(), false
		}
	}

	return authorized(), true
}

// needInfo builds the structured NeedInfo result naming each required claim
// and the claims-issuer URL so the caller can prompt for more evidence.
func (b *BasicPolicy) needInfo(claims []Claim) Result {
	required := make([]map[string]string, 0, len(claims))
	for _, claim := range claims {
		required = append(required, map[string]string{
			ClaimName:         claim.Type,
			ClaimFriendlyName: claim.Type,
			ClaimIssuerName:   b.issuer.Issuer(),
		})
	}

	return Result{
		Type: NeedInfo,
		ErrorDetails: map[string]any{
			RequestingPartyClaimsName: map[string]any{
				RequiredClaimsName: required,
				RedirectUserName:   false,
			},
		},
	}
}

// normalizeStringSet canonicalizes the polymorphic role-claim value into a
// set of strings before membership is checked.
func normalizeStringSet(value any) []string {
	switch v := value.(type) {
	case string:
		return strings.Split(v, ",")
	case []string:
		return v
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			result = append(result, claimValueString(item))
		}
		return result
	default:
		return nil
	}
}

// claimValueString renders a claim value for exact comparison.
func claimValueString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}
