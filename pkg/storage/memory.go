// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/simpleidserver/simpleidserver/pkg/jwt"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/authorize"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/clients"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/consent"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/token"
	"github.com/simpleidserver/simpleidserver/pkg/uma"
)

// Memory aggregates the in-memory stores. Thread-safe; suitable for
// development and tests.
type Memory struct {
	Scopes        *MemoryScopes
	Clients       *MemoryClients
	GrantedTokens *MemoryGrantedTokens
	AuthCodes     *MemoryAuthorizationCodes
	Consents      *MemoryConsents
	Policies      *MemoryPolicies
	ResourceSets  *MemoryResourceSets
	Tickets       *MemoryTickets
	Rpts          *MemoryRpts
}

// NewMemory creates an empty in-memory store aggregate.
func NewMemory() *Memory {
	policies := &MemoryPolicies{policies: make(map[string]*uma.Policy)}
	return &Memory{
		Scopes:        &MemoryScopes{scopes: make(map[string]*authorize.Scope)},
		Clients:       &MemoryClients{clients: make(map[string]*clients.Client)},
		GrantedTokens: &MemoryGrantedTokens{tokens: make(map[string]*token.GrantedToken)},
		AuthCodes:     &MemoryAuthorizationCodes{codes: make(map[string]*authorize.AuthorizationCode)},
		Consents:      &MemoryConsents{consents: make(map[string][]*consent.Consent)},
		Policies:      policies,
		ResourceSets:  &MemoryResourceSets{sets: make(map[string]*uma.ResourceSet), policies: policies},
		Tickets:       &MemoryTickets{tickets: make(map[string]*uma.Ticket)},
		Rpts:          &MemoryRpts{rpts: make(map[string]*uma.Rpt)},
	}
}

// MemoryScopes implements authorize.ScopeStore.
type MemoryScopes struct {
	mu     sync.RWMutex
	scopes map[string]*authorize.Scope
}

// Add registers a scope definition.
func (s *MemoryScopes) Add(_ context.Context, scope *authorize.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[scope.Name] = scope
	return nil
}

// GetByName returns the scope or nil when unknown.
func (s *MemoryScopes) GetByName(_ context.Context, name string) (*authorize.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scopes[name], nil
}

// MemoryClients stores registered clients.
type MemoryClients struct {
	mu      sync.RWMutex
	clients map[string]*clients.Client
}

// Add registers a client.
func (s *MemoryClients) Add(_ context.Context, client *clients.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ClientID] = client
	return nil
}

// Get returns the client or nil when unknown.
func (s *MemoryClients) Get(_ context.Context, clientID string) (*clients.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clients[clientID], nil
}

// MemoryGrantedTokens implements token.Store and authorize.TokenStore.
type MemoryGrantedTokens struct {
	mu     sync.RWMutex
	tokens map[string]*token.GrantedToken
}

// GetToken returns the token matching the reuse key, or nil.
func (s *MemoryGrantedTokens) GetToken(
	_ context.Context, scope, clientID string, idTokenPayload, userInfoPayload jwt.Payload,
) (*token.GrantedToken, error) {
	key, err := grantedTokenKey(scope, clientID, idTokenPayload, userInfoPayload)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[key], nil
}

// Insert persists a newly minted token.
func (s *MemoryGrantedTokens) Insert(_ context.Context, granted *token.GrantedToken) error {
	key, err := grantedTokenKey(granted.Scope, granted.ClientID, granted.IDTokenPayload, granted.UserInfoPayload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = granted
	return nil
}

// Count returns the number of stored tokens. Test helper.
func (s *MemoryGrantedTokens) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// MemoryAuthorizationCodes implements authorize.CodeStore plus the one-time
// retrieval used by the token endpoint.
type MemoryAuthorizationCodes struct {
	mu    sync.RWMutex
	codes map[string]*authorize.AuthorizationCode
}

// Add persists a newly minted code.
func (s *MemoryAuthorizationCodes) Add(_ context.Context, code *authorize.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code.Code] = code
	return nil
}

// Get returns the code or nil, removing it so codes are single use.
func (s *MemoryAuthorizationCodes) Get(_ context.Context, code string) (*authorize.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.codes[code]
	delete(s.codes, code)
	return c, nil
}

// Count returns the number of stored codes. Test helper.
func (s *MemoryAuthorizationCodes) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.codes)
}

// MemoryConsents implements consent.Store.
type MemoryConsents struct {
	mu       sync.RWMutex
	consents map[string][]*consent.Consent
}

// Add records a consent for its resource owner.
func (s *MemoryConsents) Add(_ context.Context, c *consent.Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[c.ResourceOwnerID] = append(s.consents[c.ResourceOwnerID], c)
	return nil
}

// GetConsentsForUser returns the subject's consents in insertion order.
func (s *MemoryConsents) GetConsentsForUser(_ context.Context, subject string) ([]*consent.Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.consents[subject]), nil
}

// MemoryPolicies provides policy CRUD.
type MemoryPolicies struct {
	mu       sync.RWMutex
	policies map[string]*uma.Policy
}

// Add registers a policy.
func (s *MemoryPolicies) Add(_ context.Context, policy *uma.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[policy.ID] = policy
	return nil
}

// Get returns the policy or nil when unknown.
func (s *MemoryPolicies) Get(_ context.Context, id string) (*uma.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policies[id], nil
}

// Update replaces a stored policy.
func (s *MemoryPolicies) Update(_ context.Context, policy *uma.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[policy.ID] = policy
	return nil
}

// Delete removes a policy.
func (s *MemoryPolicies) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, id)
	return nil
}

// forResourceSet returns the policies attached to a resource set.
func (s *MemoryPolicies) forResourceSet(resourceSetID string) []*uma.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*uma.Policy
	for _, policy := range s.policies {
		if slices.Contains(policy.ResourceSetIDs, resourceSetID) {
			result = append(result, policy)
		}
	}
	return result
}

// MemoryResourceSets implements uma.ResourceSetStore, hydrating each set's
// policies on read.
type MemoryResourceSets struct {
	mu       sync.RWMutex
	sets     map[string]*uma.ResourceSet
	policies *MemoryPolicies
}

// Add registers a resource set.
func (s *MemoryResourceSets) Add(_ context.Context, set *uma.ResourceSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[set.ID] = set
	return nil
}

// Get returns the resource sets that exist among ids. Missing IDs are simply
// absent from the result; callers detect the mismatch by count.
func (s *MemoryResourceSets) Get(_ context.Context, ids []string) ([]*uma.ResourceSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*uma.ResourceSet
	for _, id := range ids {
		set, ok := s.sets[id]
		if !ok {
			continue
		}
		hydrated := *set
		hydrated.Policies = s.policies.forResourceSet(id)
		result = append(result, &hydrated)
	}
	return result, nil
}

// MemoryTickets implements uma.TicketStore.
type MemoryTickets struct {
	mu      sync.RWMutex
	tickets map[string]*uma.Ticket
}

// Add registers a ticket.
func (s *MemoryTickets) Add(_ context.Context, ticket *uma.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[ticket.ID] = ticket
	return nil
}

// Get returns the tickets that exist among ids.
func (s *MemoryTickets) Get(_ context.Context, ids []string) ([]*uma.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*uma.Ticket
	for _, id := range ids {
		if t, ok := s.tickets[id]; ok {
			result = append(result, t)
		}
	}
	return result, nil
}

// MemoryRpts implements uma.RptStore.
type MemoryRpts struct {
	mu   sync.RWMutex
	rpts map[string]*uma.Rpt
}

// Insert persists a batch of minted RPTs.
func (s *MemoryRpts) Insert(_ context.Context, rpts []*uma.Rpt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rpt := range rpts {
		s.rpts[rpt.Value] = rpt
	}
	return nil
}

// Get returns the RPT or nil when unknown.
func (s *MemoryRpts) Get(_ context.Context, value string) (*uma.Rpt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rpts[value], nil
}
