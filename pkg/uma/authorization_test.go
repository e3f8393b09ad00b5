// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package uma

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpleidserver/simpleidserver/pkg/config"
	"github.com/simpleidserver/simpleidserver/pkg/errors"
)

type fakeTickets struct {
	tickets map[string]*Ticket
}

func (f *fakeTickets) Get(_ context.Context, ids []string) ([]*Ticket, error) {
	var result []*Ticket
	for _, id := range ids {
		if t, ok := f.tickets[id]; ok {
			result = append(result, t)
		}
	}
	return result, nil
}

type fakeRpts struct {
	inserted []*Rpt
	err      error
}

func (f *fakeRpts) Insert(_ context.Context, rpts []*Rpt) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, rpts...)
	return nil
}

// fixedVerdict always returns the same result.
type fixedVerdict struct {
	result Result
	err    error
}

func (f *fixedVerdict) IsAuthorized(_ context.Context, _ *Ticket, _ string, _ *ClaimTokenParameter) (Result, error) {
	return f.result, f.err
}

func testConfig() config.Service {
	return &config.Static{RptTTL: 30 * time.Minute, IssuerURL: "https://issuer.example.com"}
}

func liveTicket(id, clientID string) *Ticket {
	return &Ticket{
		ID:                 id,
		ClientID:           clientID,
		CreateDateTime:     time.Now(),
		ExpirationDateTime: time.Now().Add(time.Hour),
		Lines:              []TicketLine{{ResourceSetID: "r1", Scopes: []string{"read"}}},
	}
}

func TestExecuteAllValidation(t *testing.T) {
	t.Parallel()

	a := NewAuthorizationAction(&fakeTickets{}, &fakeRpts{}, &fixedVerdict{}, testConfig(), nil)
	ctx := context.Background()

	_, err := a.ExecuteAll(ctx, "c1", nil)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidArgument))

	_, err = a.ExecuteAll(ctx, " ", []AuthorizationRequest{{TicketID: "t1"}})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidArgument))

	_, err = a.ExecuteAll(ctx, "c1", []AuthorizationRequest{{TicketID: "  "}})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidRequest))
}

func TestExecuteAllUnknownTicket(t *testing.T) {
	t.Parallel()

	a := NewAuthorizationAction(&fakeTickets{}, &fakeRpts{}, &fixedVerdict{}, testConfig(), nil)

	_, err := a.ExecuteAll(context.Background(), "c1", []AuthorizationRequest{{TicketID: "nope"}})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidTicket))
}

func TestExecuteAllClientMismatch(t *testing.T) {
	t.Parallel()

	tickets := &fakeTickets{tickets: map[string]*Ticket{"t1": liveTicket("t1", "someone-else")}}
	a := NewAuthorizationAction(tickets, &fakeRpts{}, &fixedVerdict{}, testConfig(), nil)

	_, err := a.ExecuteAll(context.Background(), "c1", []AuthorizationRequest{{TicketID: "t1"}})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidTicket))
}

func TestExecuteAllExpiredTicket(t *testing.T) {
	t.Parallel()

	expired := liveTicket("t1", "c1")
	expired.ExpirationDateTime = time.Now().Add(-time.Minute)
	tickets := &fakeTickets{tickets: map[string]*Ticket{"t1": expired}}
	a := NewAuthorizationAction(tickets, &fakeRpts{}, &fixedVerdict{}, testConfig(), nil)

	_, err := a.ExecuteAll(context.Background(), "c1", []AuthorizationRequest{{TicketID: "t1"}})
	assert.True(t, errors.IsCode(err, errors.CodeExpiredTicket))
}

func TestExecuteAuthorizedIssuesRpt(t *testing.T) {
	t.Parallel()

	tickets := &fakeTickets{tickets: map[string]*Ticket{"t1": liveTicket("t1", "c1")}}
	rpts := &fakeRpts{}
	a := NewAuthorizationAction(tickets, rpts, &fixedVerdict{result: Result{Type: Authorized}}, testConfig(), nil)

	response, err := a.Execute(context.Background(), "c1", AuthorizationRequest{TicketID: "t1"})
	require.NoError(t, err)

	assert.Equal(t, Authorized, response.Result)
	assert.NotEmpty(t, response.Rpt)

	require.Len(t, rpts.inserted, 1)
	stored := rpts.inserted[0]
	assert.Equal(t, response.Rpt, stored.Value)
	assert.Equal(t, "t1", stored.TicketID)
	assert.Equal(t, 30*time.Minute, stored.ExpirationDateTime.Sub(stored.CreateDateTime))
}

func TestExecuteDeniedVerdictIsAResponseNotAnError(t *testing.T) {
	t.Parallel()

	tickets := &fakeTickets{tickets: map[string]*Ticket{"t1": liveTicket("t1", "c1")}}
	rpts := &fakeRpts{}
	details := map[string]any{RequestingPartyClaimsName: map[string]any{}}
	a := NewAuthorizationAction(tickets, rpts,
		&fixedVerdict{result: Result{Type: NeedInfo, ErrorDetails: details}}, testConfig(), nil)

	response, err := a.Execute(context.Background(), "c1", AuthorizationRequest{TicketID: "t1"})
	require.NoError(t, err)

	assert.Equal(t, NeedInfo, response.Result)
	assert.Empty(t, response.Rpt)
	assert.Equal(t, details, response.ErrorDetails)
	assert.Empty(t, rpts.inserted)
}

func TestExecuteAllBatchMintsInOneInsert(t *testing.T) {
	t.Parallel()

	tickets := &fakeTickets{tickets: map[string]*Ticket{
		"t1": liveTicket("t1", "c1"),
		"t2": liveTicket("t2", "c1"),
	}}
	rpts := &fakeRpts{}
	a := NewAuthorizationAction(tickets, rpts, &fixedVerdict{result: Result{Type: Authorized}}, testConfig(), nil)

	responses, err := a.ExecuteAll(context.Background(), "c1", []AuthorizationRequest{
		{TicketID: "t1"}, {TicketID: "t2"},
	})
	require.NoError(t, err)
	require.Len(t, responses, 2)

	assert.Len(t, rpts.inserted, 2)
	assert.NotEqual(t, responses[0].Rpt, responses[1].Rpt)
}

func TestExecuteAllRptInsertFailure(t *testing.T) {
	t.Parallel()

	tickets := &fakeTickets{tickets: map[string]*Ticket{"t1": liveTicket("t1", "c1")}}
	rpts := &fakeRpts{err: errors.New(errors.CodeInternal, "storage down")}
	a := NewAuthorizationAction(tickets, rpts, &fixedVerdict{result: Result{Type: Authorized}}, testConfig(), nil)

	_, err := a.ExecuteAll(context.Background(), "c1", []AuthorizationRequest{{TicketID: "t1"}})
	assert.True(t, errors.IsCode(err, errors.CodeInternal))
}

func TestTicketExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	ticket := &Ticket{ExpirationDateTime: now.Add(time.Minute)}
	assert.False(t, ticket.Expired(now))
	assert.True(t, ticket.Expired(now.Add(2*time.Minute)))
}
