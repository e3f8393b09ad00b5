// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package param

import "slices"

// AuthorizationFlow classifies a response-type combination into one of the
// OAuth2/OIDC authorization flows.
type AuthorizationFlow int

// Authorization flows.
const (
	AuthorizationCodeFlow AuthorizationFlow = iota
	ImplicitFlow
	HybridFlow
)

// flowResponseModes is the fixed flow-to-default-response-mode mapping:
// the code flow delivers parameters in the query string, implicit and hybrid
// flows in the fragment.
var flowResponseModes = map[AuthorizationFlow]ResponseMode{
	AuthorizationCodeFlow: ResponseModeQuery,
	ImplicitFlow:          ResponseModeFragment,
	HybridFlow:            ResponseModeFragment,
}

// GetAuthorizationFlow classifies the parsed response types.
// code alone is the authorization code flow; token and/or id_token without
// code is the implicit flow; code combined with either is the hybrid flow.
func GetAuthorizationFlow(responseTypes []ResponseType) AuthorizationFlow {
	hasCode := slices.Contains(responseTypes, ResponseTypeCode)
	hasOther := slices.Contains(responseTypes, ResponseTypeToken) ||
		slices.Contains(responseTypes, ResponseTypeIDToken)

	switch {
	case hasCode && hasOther:
		return HybridFlow
	case hasCode:
		return AuthorizationCodeFlow
	default:
		return ImplicitFlow
	}
}

// DefaultResponseMode returns the response mode implied by the flow.
func DefaultResponseMode(flow AuthorizationFlow) ResponseMode {
	return flowResponseModes[flow]
}
