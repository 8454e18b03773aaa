package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogforge/catalog/pkg/auth"
	"github.com/catalogforge/catalog/pkg/contextkeys"
	"github.com/catalogforge/catalog/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestIdentityHandlerDecodesHeader(t *testing.T) {
	mw := NewIdentity(nil, testLogger())

	var seen *auth.Principal
	var headers map[string]string
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.PrincipalFromContext(r.Context())
		headers = contextkeys.ForwardableHeaders(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	encoded, err := auth.EncodeIdentity(&auth.Principal{
		Username: "jdoe",
		Tenant:   "tenant-1",
		Roles:    []string{"catalog-user"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/portfolios", nil)
	req.Header.Set(IdentityHeader, encoded)
	req.Header.Set("x-rh-insights-request-id", "req-42")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "jdoe", seen.Username)
	assert.Equal(t, "tenant-1", seen.Tenant)
	assert.Equal(t, encoded, headers[IdentityHeader])
	assert.Equal(t, "req-42", headers["x-rh-insights-request-id"])
}

func TestIdentityHandlerRejectsMissingCredentials(t *testing.T) {
	mw := NewIdentity(nil, testLogger())

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/portfolios", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentityHandlerRejectsMalformedHeader(t *testing.T) {
	mw := NewIdentity(nil, testLogger())

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with a bad identity header")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/portfolios", nil)
	req.Header.Set(IdentityHeader, "not-base64!!")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentityHandlerIgnoresBearerWithoutOIDC(t *testing.T) {
	mw := NewIdentity(nil, testLogger())

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/portfolios", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
