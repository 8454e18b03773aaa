package api

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogforge/catalog/pkg/audit"
	"github.com/catalogforge/catalog/pkg/catalog"
)

func createPortfolio(t *testing.T, env *testEnv, name string) *catalog.Portfolio {
	t.Helper()
	rec := env.request(t, adminPrincipal(), http.MethodPost, "/api/v1/portfolios", map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decodeBody[*catalog.Portfolio](t, rec)
	return p
}

func createPortfolioItem(t *testing.T, env *testEnv, portfolioID int64, name string) *catalog.PortfolioItem {
	t.Helper()
	rec := env.request(t, adminPrincipal(), http.MethodPost,
		portfolioPath(portfolioID)+"/portfolio_items",
		map[string]any{"name": name, "service_offering_ref": "offering-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeBody[*catalog.PortfolioItem](t, rec)
}

func portfolioPath(id int64) string {
	return "/api/v1/portfolios/" + itoa(id)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestPortfolioLifecycle(t *testing.T) {
	env := newTestEnv(t)

	p := createPortfolio(t, env, "Dev Tools")
	assert.Equal(t, "Dev Tools", p.Name)
	assert.Equal(t, "root", p.Owner)
	assert.True(t, p.Enabled)

	rec := env.request(t, adminPrincipal(), http.MethodGet, portfolioPath(p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, adminPrincipal(), http.MethodPatch, portfolioPath(p.ID), map[string]any{"description": "shared tooling"})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[*catalog.Portfolio](t, rec)
	assert.Equal(t, "shared tooling", updated.Description)

	rec = env.request(t, adminPrincipal(), http.MethodDelete, portfolioPath(p.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.request(t, adminPrincipal(), http.MethodGet, portfolioPath(p.ID), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePortfolioRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, userPrincipal("bob"), http.MethodPost, "/api/v1/portfolios", map[string]any{"name": "Rogue"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	denied := env.audit.byType(audit.EventTypeAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, "bob", denied[0].Username)
}

func TestCreatePortfolioValidatesName(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, adminPrincipal(), http.MethodPost, "/api/v1/portfolios", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPortfoliosScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	p := createPortfolio(t, env, "Dev Tools")

	// Plain users own nothing here and see an empty collection.
	rec := env.request(t, userPrincipal("bob"), http.MethodGet, "/api/v1/portfolios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]*catalog.Portfolio](t, rec))

	// Admins see everything.
	rec = env.request(t, adminPrincipal(), http.MethodGet, "/api/v1/portfolios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeBody[[]*catalog.Portfolio](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, p.ID, listed[0].ID)
}

func TestSharePortfolioGrantsGroupAccess(t *testing.T) {
	env := newTestEnv(t)
	p := createPortfolio(t, env, "Dev Tools")
	member := groupPrincipal("carol", "g-eng")

	// Before sharing the group member sees nothing.
	rec := env.request(t, member, http.MethodGet, portfolioPath(p.ID), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(t, adminPrincipal(), http.MethodPost, portfolioPath(p.ID)+"/share",
		map[string]any{"group_ids": []string{"g-eng"}, "permissions": []string{"read"}})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.request(t, member, http.MethodGet, portfolioPath(p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, member, http.MethodGet, "/api/v1/portfolios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]*catalog.Portfolio](t, rec), 1)

	// Read does not grant update.
	rec = env.request(t, member, http.MethodPatch, portfolioPath(p.ID), map[string]any{"name": "Hijacked"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	granted := env.audit.byType(audit.EventTypeEntitlementGranted)
	require.Len(t, granted, 1)

	rec = env.request(t, adminPrincipal(), http.MethodPost, portfolioPath(p.ID)+"/unshare",
		map[string]any{"group_ids": []string{"g-eng"}, "permissions": []string{"read"}})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.request(t, member, http.MethodGet, portfolioPath(p.ID), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestShareRejectsUnknownPermission(t *testing.T) {
	env := newTestEnv(t)
	p := createPortfolio(t, env, "Dev Tools")

	rec := env.request(t, adminPrincipal(), http.MethodPost, portfolioPath(p.ID)+"/share",
		map[string]any{"group_ids": []string{"g-eng"}, "permissions": []string{"superuser"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolioItemLifecycle(t *testing.T) {
	env := newTestEnv(t)
	p := createPortfolio(t, env, "Dev Tools")
	item := createPortfolioItem(t, env, p.ID, "VM Small")
	assert.Equal(t, p.ID, item.PortfolioID)

	rec := env.request(t, adminPrincipal(), http.MethodGet, portfolioPath(p.ID)+"/portfolio_items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]*catalog.PortfolioItem](t, rec), 1)

	rec = env.request(t, adminPrincipal(), http.MethodPatch, "/api/v1/portfolio_items/"+itoa(item.ID),
		map[string]any{"description": "2 vCPU"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2 vCPU", decodeBody[*catalog.PortfolioItem](t, rec).Description)

	rec = env.request(t, adminPrincipal(), http.MethodDelete, "/api/v1/portfolio_items/"+itoa(item.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.request(t, adminPrincipal(), http.MethodGet, "/api/v1/portfolio_items/"+itoa(item.ID), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCopyPortfolioItem(t *testing.T) {
	env := newTestEnv(t)
	p := createPortfolio(t, env, "Dev Tools")
	other := createPortfolio(t, env, "Staging")
	item := createPortfolioItem(t, env, p.ID, "VM Small")

	// In-place copy with no body.
	rec := env.request(t, adminPrincipal(), http.MethodPost, "/api/v1/portfolio_items/"+itoa(item.ID)+"/copy", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	copied := decodeBody[*catalog.PortfolioItem](t, rec)
	assert.Equal(t, "Copy of VM Small", copied.Name)
	assert.Equal(t, p.ID, copied.PortfolioID)

	// Copy into another portfolio.
	rec = env.request(t, adminPrincipal(), http.MethodPost, "/api/v1/portfolio_items/"+itoa(item.ID)+"/copy",
		map[string]any{"portfolio_id": other.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, other.ID, decodeBody[*catalog.PortfolioItem](t, rec).PortfolioID)
}

func TestSetItemWorkflowRequiresConfiguredService(t *testing.T) {
	env := newTestEnv(t)
	p := createPortfolio(t, env, "Dev Tools")
	item := createPortfolioItem(t, env, p.ID, "VM Small")

	rec := env.request(t, adminPrincipal(), http.MethodPost, "/api/v1/portfolio_items/"+itoa(item.ID)+"/workflow",
		map[string]any{"workflow_ref": "wf-7"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	env.workflow.configured = true
	rec = env.request(t, adminPrincipal(), http.MethodPost, "/api/v1/portfolio_items/"+itoa(item.ID)+"/workflow",
		map[string]any{"workflow_ref": "wf-7"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "wf-7", decodeBody[*catalog.PortfolioItem](t, rec).WorkflowRef)
}

func TestIconRoundtrip(t *testing.T) {
	env := newTestEnv(t)
	p := createPortfolio(t, env, "Dev Tools")
	icon := []byte("png-bytes")

	rec := env.request(t, adminPrincipal(), http.MethodPost, portfolioPath(p.ID)+"/icon", icon)
	require.Equal(t, http.StatusOK, rec.Code)
	ref := decodeBody[map[string]string](t, rec)["icon_ref"]
	require.NotEmpty(t, ref)

	rec = env.request(t, adminPrincipal(), http.MethodGet, portfolioPath(p.ID)+"/icon", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, icon, rec.Body.Bytes())

	rec = env.request(t, adminPrincipal(), http.MethodDelete, portfolioPath(p.ID)+"/icon", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.request(t, adminPrincipal(), http.MethodGet, portfolioPath(p.ID)+"/icon", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
