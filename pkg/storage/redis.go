// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simpleidserver/simpleidserver/pkg/jwt"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/authorize"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/clients"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/consent"
	"github.com/simpleidserver/simpleidserver/pkg/oidc/token"
	"github.com/simpleidserver/simpleidserver/pkg/uma"
)

// DefaultKeyPrefix namespaces all keys written by the Redis stores.
const DefaultKeyPrefix = "sidserver:"

// RedisConfig configures the Redis store aggregate.
type RedisConfig struct {
	// Client is the connected Redis client.
	Client redis.UniversalClient

	// KeyPrefix namespaces keys for multi-tenancy. Defaults to DefaultKeyPrefix.
	KeyPrefix string

	// CodeTTL bounds how long unredeemed authorization codes are kept.
	CodeTTL time.Duration
}

// Redis aggregates the Redis-backed stores. All values are JSON; volatile
// artifacts (tokens, codes, tickets, RPTs) carry TTLs matching their
// configured lifetimes so Redis expires them without a cleanup job.
type Redis struct {
	Scopes        *RedisScopes
	Clients       *RedisClients
	GrantedTokens *RedisGrantedTokens
	AuthCodes     *RedisAuthorizationCodes
	Consents      *RedisConsents
	Policies      *RedisPolicies
	ResourceSets  *RedisResourceSets
	Tickets       *RedisTickets
	Rpts          *RedisRpts
}

// NewRedis creates the Redis store aggregate.
func NewRedis(cfg RedisConfig) *Redis {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	base := &redisBase{client: cfg.Client, prefix: prefix}
	policies := &RedisPolicies{redisBase: base}
	return &Redis{
		Scopes:        &RedisScopes{redisBase: base},
		Clients:       &RedisClients{redisBase: base},
		GrantedTokens: &RedisGrantedTokens{redisBase: base},
		AuthCodes:     &RedisAuthorizationCodes{redisBase: base, ttl: cfg.CodeTTL},
		Consents:      &RedisConsents{redisBase: base},
		Policies:      policies,
		ResourceSets:  &RedisResourceSets{redisBase: base, policies: policies},
		Tickets:       &RedisTickets{redisBase: base},
		Rpts:          &RedisRpts{redisBase: base},
	}
}

type redisBase struct {
	client redis.UniversalClient
	prefix string
}

func (b *redisBase) key(parts ...string) string {
	key := b.prefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

// setJSON writes a JSON value; zero ttl means no expiry.
func (b *redisBase) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %s: %w", key, err)
	}
	return b.client.Set(ctx, key, data, ttl).Err()
}

// getJSON reads a JSON value into out. Returns false when the key is absent.
func (b *redisBase) getJSON(ctx context.Context, key string, out any) (bool, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal value at %s: %w", key, err)
	}
	return true, nil
}

// RedisScopes implements authorize.ScopeStore.
type RedisScopes struct{ *redisBase }

// Add registers a scope definition.
func (s *RedisScopes) Add(ctx context.Context, scope *authorize.Scope) error {
	return s.setJSON(ctx, s.key("scope", scope.Name), scope, 0)
}

// GetByName returns the scope or nil when unknown.
func (s *RedisScopes) GetByName(ctx context.Context, name string) (*authorize.Scope, error) {
	var scope authorize.Scope
	ok, err := s.getJSON(ctx, s.key("scope", name), &scope)
	if err != nil || !ok {
		return nil, err
	}
	return &scope, nil
}

// RedisClients stores registered clients.
type RedisClients struct{ *redisBase }

// Add registers a client.
func (s *RedisClients) Add(ctx context.Context, client *clients.Client) error {
	return s.setJSON(ctx, s.key("client", client.ClientID), client, 0)
}

// Get returns the client or nil when unknown.
func (s *RedisClients) Get(ctx context.Context, clientID string) (*clients.Client, error) {
	var client clients.Client
	ok, err := s.getJSON(ctx, s.key("client", clientID), &client)
	if err != nil || !ok {
		return nil, err
	}
	return &client, nil
}

// RedisGrantedTokens implements token.Store. Tokens are keyed by the
// deterministic reuse key and expire with the token lifetime.
type RedisGrantedTokens struct{ *redisBase }

// GetToken returns the token matching the reuse key, or nil.
func (s *RedisGrantedTokens) GetToken(
	ctx context.Context, scope, clientID string, idTokenPayload, userInfoPayload jwt.Payload,
) (*token.GrantedToken, error) {
	key, err := grantedTokenKey(scope, clientID, idTokenPayload, userInfoPayload)
	if err != nil {
		return nil, err
	}
	var granted token.GrantedToken
	ok, err := s.getJSON(ctx, s.key("grantedtoken", key), &granted)
	if err != nil || !ok {
		return nil, err
	}
	return &granted, nil
}

// Insert persists a newly minted token with its lifetime as TTL.
func (s *RedisGrantedTokens) Insert(ctx context.Context, granted *token.GrantedToken) error {
	key, err := grantedTokenKey(granted.Scope, granted.ClientID, granted.IDTokenPayload, granted.UserInfoPayload)
	if err != nil {
		return err
	}
	return s.setJSON(ctx, s.key("grantedtoken", key), granted, granted.ExpiresIn)
}

// RedisAuthorizationCodes implements authorize.CodeStore.
type RedisAuthorizationCodes struct {
	*redisBase
	ttl time.Duration
}

// Add persists a newly minted code.
func (s *RedisAuthorizationCodes) Add(ctx context.Context, code *authorize.AuthorizationCode) error {
	return s.setJSON(ctx, s.key("authcode", code.Code), code, s.ttl)
}

// Get returns the code or nil, deleting it so codes are single use.
func (s *RedisAuthorizationCodes) Get(ctx context.Context, code string) (*authorize.AuthorizationCode, error) {
	key := s.key("authcode", code)
	var c authorize.AuthorizationCode
	ok, err := s.getJSON(ctx, key, &c)
	if err != nil || !ok {
		return nil, err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return nil, err
	}
	return &c, nil
}

// RedisConsents implements consent.Store. A subject's consents are one JSON
// array; consent volume per subject is small.
type RedisConsents struct{ *redisBase }

// Add appends a consent to the subject's list.
func (s *RedisConsents) Add(ctx context.Context, c *consent.Consent) error {
	existing, err := s.GetConsentsForUser(ctx, c.ResourceOwnerID)
	if err != nil {
		return err
	}
	return s.setJSON(ctx, s.key("consents", c.ResourceOwnerID), append(existing, c), 0)
}

// GetConsentsForUser returns the subject's consents in insertion order.
func (s *RedisConsents) GetConsentsForUser(ctx context.Context, subject string) ([]*consent.Consent, error) {
	var consents []*consent.Consent
	if _, err := s.getJSON(ctx, s.key("consents", subject), &consents); err != nil {
		return nil, err
	}
	return consents, nil
}

// RedisPolicies provides policy CRUD plus the resource-set index used for
// hydration.
type RedisPolicies struct{ *redisBase }

// Add registers a policy and indexes it under its resource sets.
func (s *RedisPolicies) Add(ctx context.Context, policy *uma.Policy) error {
	if err := s.setJSON(ctx, s.key("policy", policy.ID), policy, 0); err != nil {
		return err
	}
	for _, rsID := range policy.ResourceSetIDs {
		if err := s.client.SAdd(ctx, s.key("resourceset-policies", rsID), policy.ID).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the policy or nil when unknown.
func (s *RedisPolicies) Get(ctx context.Context, id string) (*uma.Policy, error) {
	var policy uma.Policy
	ok, err := s.getJSON(ctx, s.key("policy", id), &policy)
	if err != nil || !ok {
		return nil, err
	}
	return &policy, nil
}

// Update replaces a stored policy, reindexing its resource sets.
func (s *RedisPolicies) Update(ctx context.Context, policy *uma.Policy) error {
	if err := s.Delete(ctx, policy.ID); err != nil {
		return err
	}
	return s.Add(ctx, policy)
}

// Delete removes a policy and its index entries.
func (s *RedisPolicies) Delete(ctx context.Context, id string) error {
	policy, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if policy == nil {
		return nil
	}
	for _, rsID := range policy.ResourceSetIDs {
		if err := s.client.SRem(ctx, s.key("resourceset-policies", rsID), id).Err(); err != nil {
			return err
		}
	}
	return s.client.Del(ctx, s.key("policy", id)).Err()
}

// forResourceSet loads the policies attached to a resource set.
func (s *RedisPolicies) forResourceSet(ctx context.Context, resourceSetID string) ([]*uma.Policy, error) {
	ids, err := s.client.SMembers(ctx, s.key("resourceset-policies", resourceSetID)).Result()
	if err != nil {
		return nil, err
	}
	var result []*uma.Policy
	for _, id := range ids {
		policy, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if policy != nil {
			result = append(result, policy)
		}
	}
	return result, nil
}

// RedisResourceSets implements uma.ResourceSetStore.
type RedisResourceSets struct {
	*redisBase
	policies *RedisPolicies
}

// Add registers a resource set.
func (s *RedisResourceSets) Add(ctx context.Context, set *uma.ResourceSet) error {
	return s.setJSON(ctx, s.key("resourceset", set.ID), set, 0)
}

// Get returns the resource sets that exist among ids with policies hydrated.
func (s *RedisResourceSets) Get(ctx context.Context, ids []string) ([]*uma.ResourceSet, error) {
	var result []*uma.ResourceSet
	for _, id := range ids {
		var set uma.ResourceSet
		ok, err := s.getJSON(ctx, s.key("resourceset", id), &set)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		set.Policies, err = s.policies.forResourceSet(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, &set)
	}
	return result, nil
}

// RedisTickets implements uma.TicketStore. Tickets expire at their
// expiration time.
type RedisTickets struct{ *redisBase }

// Add registers a ticket.
func (s *RedisTickets) Add(ctx context.Context, ticket *uma.Ticket) error {
	ttl := time.Until(ticket.ExpirationDateTime)
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.setJSON(ctx, s.key("ticket", ticket.ID), ticket, ttl)
}

// Get returns the tickets that exist among ids.
func (s *RedisTickets) Get(ctx context.Context, ids []string) ([]*uma.Ticket, error) {
	var result []*uma.Ticket
	for _, id := range ids {
		var ticket uma.Ticket
		ok, err := s.getJSON(ctx, s.key("ticket", id), &ticket)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, &ticket)
		}
	}
	return result, nil
}

// RedisRpts implements uma.RptStore.
type RedisRpts struct{ *redisBase }

// Insert persists a batch of minted RPTs, each expiring at its own time.
func (s *RedisRpts) Insert(ctx context.Context, rpts []*uma.Rpt) error {
	for _, rpt := range rpts {
		ttl := time.Until(rpt.ExpirationDateTime)
		if ttl <= 0 {
			ttl = time.Second
		}
		if err := s.setJSON(ctx, s.key("rpt", rpt.Value), rpt, ttl); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the RPT or nil when unknown or expired.
func (s *RedisRpts) Get(ctx context.Context, value string) (*uma.Rpt, error) {
	var rpt uma.Rpt
	ok, err := s.getJSON(ctx, s.key("rpt", value), &rpt)
	if err != nil || !ok {
		return nil, err
	}
	return &rpt, nil
}
