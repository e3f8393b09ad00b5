// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package uma

import (
	"context"
	"slices"
	"strings"

	"github.com/simpleidserver/simpleidserver/pkg/errors"
)

// ResourceSetStore fetches resource sets with their policies hydrated.
type ResourceSetStore interface {
	Get(ctx context.Context, ids []string) ([]*ResourceSet, error)
}

// PolicyEvaluator evaluates one policy against one ticket line.
// Implemented by BasicPolicy.
type PolicyEvaluator interface {
	Execute(line TicketLineParameter, policy *Policy, claimToken *ClaimTokenParameter) Result
}

// Validator aggregates per-line policy verdicts into a ticket verdict.
type Validator struct {
	resourceSets ResourceSetStore
	policy       PolicyEvaluator
}

// NewValidator creates a Validator.
func NewValidator(resourceSets ResourceSetStore, policy PolicyEvaluator) *Validator {
	return &Validator{resourceSets: resourceSets, policy: policy}
}

// IsAuthorized evaluates every line of the ticket for the requesting client.
//
// All referenced resource sets are fetched in one batch; a count mismatch
// means a resource no longer exists and is a fatal internal error. Lines are
// then reduced in order with a short-circuit: the first line whose result is
// not Authorized becomes the overall result.
func (v *Validator) IsAuthorized(
	ctx context.Context, ticket *Ticket, clientID string, claimToken *ClaimTokenParameter,
) (Result, error) {
	if ticket == nil || len(ticket.Lines) == 0 {
		return Result{}, errors.NewInvalidArgument("ticket")
	}
	if strings.TrimSpace(clientID) == "" {
		return Result{}, errors.NewInvalidArgument("clientID")
	}

	ids := resourceSetIDs(ticket.Lines)
	sets, err := v.resourceSets.Get(ctx, ids)
	if err != nil {
		return Result{}, err
	}
	if len(sets) != len(ids) {
		return Result{}, errors.New(errors.CodeInternal, "some resources don't exist")
	}

	byID := make(map[string]*ResourceSet, len(sets))
	for _, set := range sets {
		byID[set.ID] = set
	}

	result := authorized()
	for _, line := range ticket.Lines {
		set, ok := byID[line.ResourceSetID]
		if !ok {
			return Result{}, errors.New(errors.CodeInternal, "resource set "+line.ResourceSetID+" doesn't exist")
		}

		result = v.evaluateLine(TicketLineParameter{
			ClientID:         clientID,
			Scopes:           line.Scopes,
			IsAuthorizedByRo: ticket.IsAuthorizedByRo,
		}, set, claimToken)
		if result.Type != Authorized {
			return result, nil
		}
	}

	return result, nil
}

// evaluateLine reduces the resource set's policies with OR semantics: the
// first Authorized policy wins, otherwise the last policy's result stands.
// A resource set with no policies is Authorized.
func (v *Validator) evaluateLine(line TicketLineParameter, set *ResourceSet, claimToken *ClaimTokenParameter) Result {
	result := authorized()
	for _, policy := range set.Policies {
		result = v.policy.Execute(line, policy, claimToken)
		if result.Type == Authorized {
			return result
		}
	}
	return result
}

// resourceSetIDs collects the distinct resource set IDs, preserving order.
func resourceSetIDs(lines []TicketLine) []string {
	var ids []string
	for _, line := range lines {
		if !slices.Contains(ids, line.ResourceSetID) {
			ids = append(ids, line.ResourceSetID)
		}
	}
	return ids
}
