// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package uma

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simpleidserver/simpleidserver/pkg/config"
	"github.com/simpleidserver/simpleidserver/pkg/errors"
	"github.com/simpleidserver/simpleidserver/pkg/events"
)

// TicketStore fetches permission tickets by ID.
type TicketStore interface {
	Get(ctx context.Context, ids []string) ([]*Ticket, error)
}

// RptStore persists issued requesting party tokens.
type RptStore interface {
	Insert(ctx context.Context, rpts []*Rpt) error
}

// TicketVerdict decides whether a ticket is authorized. Implemented by Validator.
type TicketVerdict interface {
	IsAuthorized(ctx context.Context, ticket *Ticket, clientID string, claimToken *ClaimTokenParameter) (Result, error)
}

// AuthorizationRequest asks for an RPT for one previously issued ticket.
type AuthorizationRequest struct {
	TicketID   string
	ClaimToken *ClaimTokenParameter
}

// AuthorizationResponse is the outcome for one ticket.
type AuthorizationResponse struct {
	// Result is the policy verdict for the ticket.
	Result ResultType `json:"result"`

	// Rpt is the issued requesting party token when Result is Authorized.
	Rpt string `json:"rpt,omitempty"`

	// ErrorDetails carries the structured details of a NeedInfo verdict.
	ErrorDetails map[string]any `json:"error_details,omitempty"`
}

// AuthorizationAction resolves tickets to RPTs.
type AuthorizationAction struct {
	tickets   TicketStore
	rpts      RptStore
	validator TicketVerdict
	cfg       config.Service
	events    events.Source
}

// NewAuthorizationAction wires the action. A nil event source disables telemetry.
func NewAuthorizationAction(
	tickets TicketStore, rpts RptStore, validator TicketVerdict, cfg config.Service, src events.Source,
) *AuthorizationAction {
	return &AuthorizationAction{
		tickets:   tickets,
		rpts:      rpts,
		validator: validator,
		cfg:       cfg,
		events:    events.NewSafe(src),
	}
}

// Execute resolves a single ticket.
func (a *AuthorizationAction) Execute(
	ctx context.Context, clientID string, request AuthorizationRequest,
) (*AuthorizationResponse, error) {
	responses, err := a.ExecuteAll(ctx, clientID, []AuthorizationRequest{request})
	if err != nil {
		return nil, err
	}
	return responses[0], nil
}

// ExecuteAll resolves a batch of tickets for one client. Tickets must exist,
// belong to the requesting client and be unexpired; violations are typed
// domain errors. Verdicts other than Authorized are returned as responses,
// not errors. All minted RPTs are persisted in one repository call.
func (a *AuthorizationAction) ExecuteAll(
	ctx context.Context, clientID string, requests []AuthorizationRequest,
) ([]*AuthorizationResponse, error) {
	if len(requests) == 0 {
		return nil, errors.NewInvalidArgument("requests")
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, errors.NewInvalidArgument("clientID")
	}

	ids := make([]string, 0, len(requests))
	for _, r := range requests {
		if strings.TrimSpace(r.TicketID) == "" {
			return nil, errors.New(errors.CodeInvalidRequest, "the parameter ticket_id needs to be specified")
		}
		ids = append(ids, r.TicketID)
	}

	tickets, err := a.tickets.Get(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Ticket, len(tickets))
	for _, t := range tickets {
		byID[t.ID] = t
	}

	rptLifetime := a.cfg.RptLifetime()
	result := make([]*AuthorizationResponse, 0, len(requests))
	var minted []*Rpt
	for _, request := range requests {
		ticket, ok := byID[request.TicketID]
		if !ok {
			return nil, errors.New(errors.CodeInvalidTicket, "the ticket "+request.TicketID+" doesn't exist")
		}
		if ticket.ClientID != clientID {
			return nil, errors.New(errors.CodeInvalidTicket, "the ticket issuer is different from the client")
		}
		if ticket.Expired(time.Now()) {
			return nil, errors.New(errors.CodeExpiredTicket, "the ticket is expired")
		}

		a.events.StartGettingAuthorization(ticket.ID, clientID)
		verdict, err := a.validator.IsAuthorized(ctx, ticket, clientID, request.ClaimToken)
		if err != nil {
			return nil, err
		}
		if verdict.Type != Authorized {
			a.events.AuthorizationDenied(ticket.ID, clientID, verdict.Type.String())
			result = append(result, &AuthorizationResponse{
				Result:       verdict.Type,
				ErrorDetails: verdict.ErrorDetails,
			})
			continue
		}

		now := time.Now().UTC()
		rpt := &Rpt{
			Value:              uuid.NewString(),
			TicketID:           ticket.ID,
			CreateDateTime:     now,
			ExpirationDateTime: now.Add(rptLifetime),
		}
		minted = append(minted, rpt)
		result = append(result, &AuthorizationResponse{Result: Authorized, Rpt: rpt.Value})
		a.events.AuthorizationGranted(ticket.ID, clientID)
	}

	if len(minted) > 0 {
		if err := a.rpts.Insert(ctx, minted); err != nil {
			return nil, errors.Wrap(errors.CodeInternal, "the rpt cannot be inserted", err)
		}
	}

	return result, nil
}
