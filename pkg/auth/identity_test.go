package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeRaw(t *testing.T, body string) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte(body))
}

func TestDecodeIdentityHeader(t *testing.T) {
	raw := encodeRaw(t, `{"identity":{"username":"jdoe","tenant":"acme","roles":["catalog-admin"],"groups":["g-1","g-2"]}}`)

	p, err := DecodeIdentityHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", p.Username)
	assert.Equal(t, "acme", p.Tenant)
	assert.True(t, p.HasRole("catalog-admin"))
	assert.Equal(t, []string{"g-1", "g-2"}, p.GroupIDs)
}

func TestDecodeIdentityHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not base64", "%%%"},
		{"not json", encodeRaw(t, "hello")},
		{"missing username", encodeRaw(t, `{"identity":{"tenant":"acme"}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeIdentityHeader(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestEncodeIdentityRoundTrip(t *testing.T) {
	p := &Principal{Username: "wilma", Tenant: "acme", GroupIDs: []string{"g-9"}}

	raw, err := EncodeIdentity(p)
	require.NoError(t, err)

	decoded, err := DecodeIdentityHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, p.Username, decoded.Username)
	assert.Equal(t, p.GroupIDs, decoded.GroupIDs)
}

func TestEvaluateScopePrecedence(t *testing.T) {
	tests := []struct {
		name string
		p    *Principal
		want ScopeTier
	}{
		{"admin role wins over groups", &Principal{Username: "a", Roles: []string{"catalog-admin"}, GroupIDs: []string{"g"}}, TierAdmin},
		{"groups without admin role", &Principal{Username: "b", GroupIDs: []string{"g"}}, TierGroup},
		{"plain user", &Principal{Username: "c"}, TierUser},
		{"explicit override passes through", &Principal{Username: "d", ScopeOverride: "galaxy"}, ScopeTier("galaxy")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateScope(tt.p, "catalog-admin").Tier)
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	p := &Principal{Username: "jdoe"}
	ctx := WithPrincipal(t.Context(), p)
	assert.Same(t, p, PrincipalFromContext(ctx))
	assert.Nil(t, PrincipalFromContext(t.Context()))
}
