// Package auth builds the request Principal from an external identity
// assertion and evaluates its coarse access scope tier.
//
// Two assertion sources are supported:
//
//   - a base64-encoded JSON identity header forwarded by the gateway
//     (DecodeIdentityHeader)
//   - an OIDC bearer token verified against a configured issuer
//     (OIDCAuthenticator)
//
// The scope tier (admin, group, or user) is computed once per request by
// EvaluateScope and consumed exhaustively by the access scope resolver. An
// assertion may also carry an explicit scope override, which is passed
// through verbatim; the resolver treats anything outside the closed set as
// a configuration defect, not a denial.
package auth
