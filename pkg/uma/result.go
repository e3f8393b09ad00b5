// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package uma

// ResultType is a policy verdict. Verdicts are first-class outcomes, never
// errors: NotAuthorized, NeedInfo and RequestSubmitted are returned to the
// caller for it to act on.
type ResultType int

// Policy verdicts.
const (
	// NotAuthorized denies the request outright.
	NotAuthorized ResultType = iota

	// Authorized permits the request.
	Authorized

	// NeedInfo asks the requesting party for more identity evidence; the
	// result's error details name the required claims and their issuer.
	NeedInfo

	// RequestSubmitted signals that an out-of-band resource-owner consent
	// step must complete before the request can proceed. It is a pending
	// verdict, not a failure.
	RequestSubmitted
)

// String returns the wire-level name of the verdict.
func (t ResultType) String() string {
	switch t {
	case Authorized:
		return "authorized"
	case NeedInfo:
		return "need_info"
	case RequestSubmitted:
		return "request_submitted"
	default:
		return "not_authorized"
	}
}

// Error detail keys of a NeedInfo result.
const (
	RequestingPartyClaimsName = "requesting_party_claims"
	RequiredClaimsName        = "required_claims"
	ClaimName                 = "name"
	ClaimFriendlyName         = "friendly_name"
	ClaimIssuerName           = "issuer"
	RedirectUserName          = "redirect_user"
)

// Result is the outcome of a policy evaluation.
type Result struct {
	// Type is the verdict.
	Type ResultType

	// ErrorDetails carries structured details for non-authorized verdicts,
	// currently only populated for NeedInfo.
	ErrorDetails map[string]any
}

// authorized is the shared success result.
func authorized() Result {
	return Result{Type: Authorized}
}

// notAuthorized is the shared denial result.
func notAuthorized() Result {
	return Result{Type: NotAuthorized}
}
