// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScopes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		scope string
		want  []string
	}{
		{
			name:  "empty",
			scope: "",
			want:  nil,
		},
		{
			name:  "single",
			scope: "openid",
			want:  []string{"openid"},
		},
		{
			name:  "multiple preserve order",
			scope: "openid profile email",
			want:  []string{"openid", "profile", "email"},
		},
		{
			name:  "duplicates removed",
			scope: "openid profile openid",
			want:  []string{"openid", "profile"},
		},
		{
			name:  "extra whitespace",
			scope: "  openid \t profile  ",
			want:  []string{"openid", "profile"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseScopes(tt.scope))
		})
	}
}

func TestParseResponseTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		responseType string
		want         []ResponseType
	}{
		{
			name:         "empty",
			responseType: "",
			want:         nil,
		},
		{
			name:         "code",
			responseType: "code",
			want:         []ResponseType{ResponseTypeCode},
		},
		{
			name:         "hybrid combination",
			responseType: "code id_token token",
			want:         []ResponseType{ResponseTypeCode, ResponseTypeIDToken, ResponseTypeToken},
		},
		{
			name:         "unknown tokens dropped",
			responseType: "code bogus token",
			want:         []ResponseType{ResponseTypeCode, ResponseTypeToken},
		},
		{
			name:         "only unknown tokens",
			responseType: "bogus other",
			want:         nil,
		},
		{
			name:         "duplicates removed",
			responseType: "token token code",
			want:         []ResponseType{ResponseTypeToken, ResponseTypeCode},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseResponseTypes(tt.responseType))
		})
	}
}

func TestParsePrompts(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		[]Prompt{PromptLogin, PromptConsent},
		ParsePrompts("login consent unknown"))
	assert.Nil(t, ParsePrompts(""))
	assert.Equal(t, []Prompt{PromptNone}, ParsePrompts("none"))
}

func TestJoinScopes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "openid profile", JoinScopes([]string{"openid", "profile"}))
	assert.Equal(t, "", JoinScopes(nil))
}

func TestGetAuthorizationFlow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		responseTypes []ResponseType
		want          AuthorizationFlow
	}{
		{
			name:          "code alone",
			responseTypes: []ResponseType{ResponseTypeCode},
			want:          AuthorizationCodeFlow,
		},
		{
			name:          "token alone",
			responseTypes: []ResponseType{ResponseTypeToken},
			want:          ImplicitFlow,
		},
		{
			name:          "id_token token",
			responseTypes: []ResponseType{ResponseTypeIDToken, ResponseTypeToken},
			want:          ImplicitFlow,
		},
		{
			name:          "code id_token",
			responseTypes: []ResponseType{ResponseTypeCode, ResponseTypeIDToken},
			want:          HybridFlow,
		},
		{
			name:          "code id_token token",
			responseTypes: []ResponseType{ResponseTypeCode, ResponseTypeIDToken, ResponseTypeToken},
			want:          HybridFlow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, GetAuthorizationFlow(tt.responseTypes))
		})
	}
}

func TestDefaultResponseMode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ResponseModeQuery, DefaultResponseMode(AuthorizationCodeFlow))
	assert.Equal(t, ResponseModeFragment, DefaultResponseMode(ImplicitFlow))
	assert.Equal(t, ResponseModeFragment, DefaultResponseMode(HybridFlow))
}

func TestClaimsParameter(t *testing.T) {
	t.Parallel()

	var nilClaims *ClaimsParameter
	assert.False(t, nilClaims.HasIDTokenClaims())
	assert.False(t, nilClaims.HasUserInfoClaims())

	c := &ClaimsParameter{IDToken: []ClaimParameter{{Name: "email", Essential: true}}}
	assert.True(t, c.HasIDTokenClaims())
	assert.False(t, c.HasUserInfoClaims())
}
