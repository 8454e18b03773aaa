package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// identityEnvelope is the wire shape of the gateway identity header.
type identityEnvelope struct {
	Identity struct {
		Username string   `json:"username"`
		Tenant   string   `json:"tenant"`
		Roles    []string `json:"roles"`
		Groups   []string `json:"groups"`
		Scope    string   `json:"scope,omitempty"`
	} `json:"identity"`
}

// DecodeIdentityHeader parses a base64-encoded JSON identity assertion into
// a Principal. The gateway authenticates the caller; this service only
// trusts and decodes the forwarded assertion.
func DecodeIdentityHeader(raw string) (*Principal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty identity header")
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("identity header is not valid base64: %w", err)
	}

	var envelope identityEnvelope
	if err := json.Unmarshal(decoded, &envelope); err != nil {
		return nil, fmt.Errorf("identity header is not valid JSON: %w", err)
	}
	if envelope.Identity.Username == "" {
		return nil, fmt.Errorf("identity header is missing a username")
	}

	return &Principal{
		Username:      envelope.Identity.Username,
		Tenant:        envelope.Identity.Tenant,
		Roles:         envelope.Identity.Roles,
		GroupIDs:      envelope.Identity.Groups,
		ScopeOverride: envelope.Identity.Scope,
	}, nil
}

// EncodeIdentity renders a principal back into the header wire format. Used
// to capture forwardable identity context on order items so asynchronous
// processing can be attributed to the original requester.
func EncodeIdentity(p *Principal) (string, error) {
	var envelope identityEnvelope
	envelope.Identity.Username = p.Username
	envelope.Identity.Tenant = p.Tenant
	envelope.Identity.Roles = p.Roles
	envelope.Identity.Groups = p.GroupIDs
	envelope.Identity.Scope = p.ScopeOverride

	data, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to marshal identity: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
