// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package uma evaluates User-Managed Access permission tickets against the
// authorization policies attached to resource sets, and issues requesting
// party tokens for authorized tickets.
package uma

import "time"

// IDTokenFormat is the claim-token format accepted by the policy evaluator.
const IDTokenFormat = "http://openid.net/specs/openid-connect-core-1_0.html#HybridIDToken"

// GrantType is the UMA 2.0 ticket grant type identifier.
const GrantType = "urn:ietf:params:oauth:grant-type:uma-ticket"

// TicketLine is one resource+scopes unit of a permission request.
type TicketLine struct {
	ResourceSetID string   `json:"resource_set_id"`
	Scopes        []string `json:"scopes"`
}

// Ticket is a permission ticket issued to a client. Its lines are evaluated
// independently; the overall verdict is the first non-authorized line's result.
type Ticket struct {
	ID                 string       `json:"id"`
	ClientID           string       `json:"client_id"`
	IsAuthorizedByRo   bool         `json:"is_authorized_by_ro"`
	CreateDateTime     time.Time    `json:"create_date_time"`
	ExpirationDateTime time.Time    `json:"expiration_date_time"`
	Lines              []TicketLine `json:"lines"`
}

// Expired reports whether the ticket is past its expiration.
func (t *Ticket) Expired(now time.Time) bool {
	return t.ExpirationDateTime.Before(now)
}

// TicketLineParameter is the per-line evaluation context handed to the policy.
type TicketLineParameter struct {
	ClientID         string
	Scopes           []string
	IsAuthorizedByRo bool
}

// Claim is a required claim assertion of a policy rule.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// PolicyRule is a single authorization rule. Rules within a policy are
// evaluated with OR semantics.
type PolicyRule struct {
	ID                           string   `json:"id"`
	Scopes                       []string `json:"scopes"`
	ClientIDsAllowed             []string `json:"client_ids_allowed"`
	Claims                       []Claim  `json:"claims"`
	IsResourceOwnerConsentNeeded bool     `json:"is_resource_owner_consent_needed"`
	Script                       string   `json:"script,omitempty"`
}

// Policy groups rules protecting one or more resource sets.
type Policy struct {
	ID             string       `json:"id"`
	Rules          []PolicyRule `json:"rules"`
	ResourceSetIDs []string     `json:"resource_set_ids"`
}

// ResourceSet is a protected resource with its attached policies.
// Policies are hydrated by the repository when the set is fetched.
type ResourceSet struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Scopes   []string  `json:"scopes"`
	Policies []*Policy `json:"policies,omitempty"`
}

// ClaimTokenParameter is a signed assertion presented as identity evidence.
type ClaimTokenParameter struct {
	Token  string `json:"token"`
	Format string `json:"format"`
}

// Rpt is a requesting party token issued for an authorized ticket.
type Rpt struct {
	Value              string    `json:"value"`
	TicketID           string    `json:"ticket_id"`
	CreateDateTime     time.Time `json:"create_date_time"`
	ExpirationDateTime time.Time `json:"expiration_date_time"`
}
