package middleware

import (
	"net/http"
	"strings"

	"github.com/catalogforge/catalog/pkg/auth"
	"github.com/catalogforge/catalog/pkg/contextkeys"
	"github.com/catalogforge/catalog/pkg/httputil"
	"github.com/catalogforge/catalog/pkg/observability"
)

// IdentityHeader carries the platform's base64-encoded identity envelope.
const IdentityHeader = "x-rh-identity"

// forwardable lists the inbound headers captured for later propagation to
// downstream collaborators (the provisioning engine sees the original
// caller, not this service).
var forwardable = []string{IdentityHeader, "x-rh-insights-request-id"}

// Identity resolves the calling principal from either the identity header
// or, when an OIDC authenticator is configured, an Authorization bearer
// token. Requests without a resolvable principal are rejected with 401.
type Identity struct {
	oidc   *auth.OIDCAuthenticator
	logger *observability.Logger
}

// NewIdentity creates the identity middleware. oidc may be nil, disabling
// bearer token support.
func NewIdentity(oidc *auth.OIDCAuthenticator, logger *observability.Logger) *Identity {
	return &Identity{oidc: oidc, logger: logger}
}

// Handler authenticates the request and stores the principal plus the
// forwardable headers on the context.
func (m *Identity) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.resolve(r)
		if err != nil {
			m.logger.WithError(err).Debug("Rejected unauthenticated request")
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		headers := make(map[string]string, len(forwardable))
		for _, name := range forwardable {
			if v := r.Header.Get(name); v != "" {
				headers[name] = v
			}
		}

		ctx := auth.WithPrincipal(r.Context(), principal)
		if len(headers) > 0 {
			ctx = contextkeys.WithForwardableHeaders(ctx, headers)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Identity) resolve(r *http.Request) (*auth.Principal, error) {
	if raw := r.Header.Get(IdentityHeader); raw != "" {
		return auth.DecodeIdentityHeader(raw)
	}

	if m.oidc != nil {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			return m.oidc.Authenticate(r.Context(), strings.TrimPrefix(header, "Bearer "))
		}
	}

	return nil, errNoCredentials
}

var errNoCredentials = &credentialsError{}

type credentialsError struct{}

func (*credentialsError) Error() string { return "no identity header or bearer token" }
