// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package param

import (
	"slices"
	"strings"
)

// knownResponseTypes maps canonical response_type tokens to their enum values.
// Unrecognized tokens are dropped, never an error.
var knownResponseTypes = map[string]ResponseType{
	string(ResponseTypeCode):    ResponseTypeCode,
	string(ResponseTypeToken):   ResponseTypeToken,
	string(ResponseTypeIDToken): ResponseTypeIDToken,
}

// knownPrompts maps canonical prompt tokens to their enum values.
var knownPrompts = map[string]Prompt{
	string(PromptNone):          PromptNone,
	string(PromptLogin):         PromptLogin,
	string(PromptConsent):       PromptConsent,
	string(PromptSelectAccount): PromptSelectAccount,
}

// ParseScopes splits a space-delimited scope string into its tokens,
// preserving order and removing duplicates.
func ParseScopes(scope string) []string {
	var result []string
	for _, s := range strings.Fields(scope) {
		if !slices.Contains(result, s) {
			result = append(result, s)
		}
	}
	return result
}

// ParseResponseTypes splits a space-delimited response_type string into the
// set of known response types, preserving order. Unknown tokens are ignored.
func ParseResponseTypes(responseType string) []ResponseType {
	var result []ResponseType
	for _, s := range strings.Fields(responseType) {
		rt, ok := knownResponseTypes[s]
		if ok && !slices.Contains(result, rt) {
			result = append(result, rt)
		}
	}
	return result
}

// ParsePrompts splits a space-delimited prompt string into the set of known
// prompt values, preserving order. Unknown tokens are ignored.
func ParsePrompts(prompt string) []Prompt {
	var result []Prompt
	for _, s := range strings.Fields(prompt) {
		p, ok := knownPrompts[s]
		if ok && !slices.Contains(result, p) {
			result = append(result, p)
		}
	}
	return result
}

// JoinScopes joins scope tokens back into the canonical space-delimited form.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}
