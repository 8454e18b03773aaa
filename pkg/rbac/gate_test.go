package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogforge/catalog/pkg/auth"
)

// fakeTarget stands in for a portfolio item or similar child record.
type fakeTarget struct {
	resourceType Resource
	id           int64
	parentID     int64
	owner        string
	tenant       string
}

func (t fakeTarget) ResourceType() Resource { return t.resourceType }
func (t fakeTarget) ResourceID() int64      { return t.id }
func (t fakeTarget) ParentID() int64        { return t.parentID }
func (t fakeTarget) OwnerUsername() string  { return t.owner }
func (t fakeTarget) TenantID() string       { return t.tenant }

type fakeRefs struct {
	refs map[int64]*ResourceRef
}

var errRefNotFound = errors.New("resource ref not found")

func (f *fakeRefs) FindRef(_ context.Context, _ Resource, id int64) (*ResourceRef, error) {
	ref, ok := f.refs[id]
	if !ok {
		return nil, errRefNotFound
	}
	return ref, nil
}

type fakeWorkflow struct {
	configured bool
	err        error
}

func (f *fakeWorkflow) ApprovalWorkflowConfigured(context.Context) (bool, error) {
	return f.configured, f.err
}

func groupGrants(grants map[int64][]Permission) *fakeEntitlements {
	resource := map[Resource]map[int64]map[Permission]bool{ResourcePortfolio: {}}
	for id, perms := range grants {
		resource[ResourcePortfolio][id] = map[Permission]bool{}
		for _, p := range perms {
			resource[ResourcePortfolio][id][p] = true
		}
	}
	return &fakeEntitlements{resource: resource}
}

func newTestGate(entitlements EntitlementSource, refs RefFinder, workflow WorkflowChecker) *Gate {
	logger := testLogger()
	return NewGate(NewScopeResolver(entitlements, logger), entitlements, refs, workflow, logger)
}

func groupRequest(action Action, target Target) CheckRequest {
	return CheckRequest{
		Principal: &auth.Principal{Username: "jdoe", GroupIDs: []string{"g-1"}},
		Eval:      auth.ScopeEvaluation{Tier: auth.TierGroup},
		Action:    action,
		Target:    target,
	}
}

func TestGateCreateChildChecksParentUpdate(t *testing.T) {
	gate := newTestGate(groupGrants(map[int64][]Permission{10: {PermissionUpdate}}), &fakeRefs{}, &fakeWorkflow{})

	item := fakeTarget{resourceType: ResourcePortfolioItem, parentID: 10}
	ok, err := gate.Check(t.Context(), groupRequest(ActionCreate, item))
	require.NoError(t, err)
	assert.True(t, ok)

	other := fakeTarget{resourceType: ResourcePortfolioItem, parentID: 11}
	ok, err = gate.Check(t.Context(), groupRequest(ActionCreate, other))
	require.NoError(t, err)
	assert.False(t, ok, "denial is a plain false, not an error")
}

func TestGateCreateChildWithoutParentRaises(t *testing.T) {
	gate := newTestGate(groupGrants(nil), &fakeRefs{}, &fakeWorkflow{})

	item := fakeTarget{resourceType: ResourcePortfolioItem}
	_, err := gate.Check(t.Context(), groupRequest(ActionCreate, item))
	assert.ErrorIs(t, err, ErrMissingParent)
}

func TestGateCopySameParent(t *testing.T) {
	// same-parent copy needs read+update on that parent only
	gate := newTestGate(groupGrants(map[int64][]Permission{10: {PermissionRead, PermissionUpdate}}), &fakeRefs{}, &fakeWorkflow{})

	item := fakeTarget{resourceType: ResourcePortfolioItem, id: 1, parentID: 10}
	ok, err := gate.Check(t.Context(), groupRequest(ActionCopy, item))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGateCopyAcrossParents(t *testing.T) {
	grants := groupGrants(map[int64][]Permission{
		10: {PermissionRead},
		20: {PermissionRead, PermissionUpdate},
	})
	refs := &fakeRefs{refs: map[int64]*ResourceRef{
		10: {ID: 10, Tenant: "acme"},
		20: {ID: 20, Tenant: "acme"},
	}}
	gate := newTestGate(grants, refs, &fakeWorkflow{})

	item := fakeTarget{resourceType: ResourcePortfolioItem, id: 1, parentID: 10}
	req := groupRequest(ActionCopy, item)
	req.DestinationParentID = 20

	ok, err := gate.Check(t.Context(), req)
	require.NoError(t, err)
	assert.True(t, ok)

	// read on source without update on destination is not enough
	weak := groupGrants(map[int64][]Permission{10: {PermissionRead}, 20: {PermissionRead}})
	gate = newTestGate(weak, refs, &fakeWorkflow{})
	ok, err = gate.Check(t.Context(), req)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGateCopyAcrossTenantsDenied(t *testing.T) {
	// both permission checks would pass, the explicit tenant cross-check
	// must still refuse
	grants := groupGrants(map[int64][]Permission{
		10: {PermissionRead, PermissionUpdate},
		20: {PermissionRead, PermissionUpdate},
	})
	refs := &fakeRefs{refs: map[int64]*ResourceRef{
		10: {ID: 10, Tenant: "acme"},
		20: {ID: 20, Tenant: "globex"},
	}}
	gate := newTestGate(grants, refs, &fakeWorkflow{})

	item := fakeTarget{resourceType: ResourcePortfolioItem, id: 1, parentID: 10}
	req := groupRequest(ActionCopy, item)
	req.DestinationParentID = 20

	ok, err := gate.Check(t.Context(), req)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGateCopyDestinationFallsBackToSource(t *testing.T) {
	gate := newTestGate(groupGrants(map[int64][]Permission{10: {PermissionRead, PermissionUpdate}}), &fakeRefs{}, &fakeWorkflow{})

	item := fakeTarget{resourceType: ResourcePortfolioItem, id: 1, parentID: 10}
	req := groupRequest(ActionCopy, item)
	// DestinationParentID left zero

	ok, err := gate.Check(t.Context(), req)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGateSetApprovalNeedsBothChecks(t *testing.T) {
	grants := groupGrants(map[int64][]Permission{10: {PermissionUpdate}})
	item := fakeTarget{resourceType: ResourcePortfolioItem, id: 1, parentID: 10}

	gate := newTestGate(grants, &fakeRefs{}, &fakeWorkflow{configured: true})
	ok, err := gate.Check(t.Context(), groupRequest(ActionSetApproval, item))
	require.NoError(t, err)
	assert.True(t, ok)

	gate = newTestGate(grants, &fakeRefs{}, &fakeWorkflow{configured: false})
	ok, err = gate.Check(t.Context(), groupRequest(ActionSetApproval, item))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGateUserTierOwnership(t *testing.T) {
	refs := &fakeRefs{refs: map[int64]*ResourceRef{10: {ID: 10, Owner: "wilma"}}}
	gate := newTestGate(&fakeEntitlements{}, refs, &fakeWorkflow{})

	item := fakeTarget{resourceType: ResourcePortfolioItem, id: 1, parentID: 10}
	req := CheckRequest{
		Principal: &auth.Principal{Username: "wilma"},
		Eval:      auth.ScopeEvaluation{Tier: auth.TierUser},
		Action:    ActionUpdate,
		Target:    item,
	}
	ok, err := gate.Check(t.Context(), req)
	require.NoError(t, err)
	assert.True(t, ok)

	req.Principal = &auth.Principal{Username: "fred"}
	ok, err = gate.Check(t.Context(), req)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGateUserTierDanglingParentRaises(t *testing.T) {
	gate := newTestGate(&fakeEntitlements{}, &fakeRefs{}, &fakeWorkflow{})

	item := fakeTarget{resourceType: ResourcePortfolioItem, id: 1, parentID: 99}
	req := CheckRequest{
		Principal: &auth.Principal{Username: "wilma"},
		Eval:      auth.ScopeEvaluation{Tier: auth.TierUser},
		Action:    ActionUpdate,
		Target:    item,
	}
	_, err := gate.Check(t.Context(), req)
	assert.ErrorIs(t, err, errRefNotFound)
}

func TestGateAdminTier(t *testing.T) {
	gate := newTestGate(&fakeEntitlements{}, &fakeRefs{}, &fakeWorkflow{})

	item := fakeTarget{resourceType: ResourcePortfolioItem, id: 1, parentID: 10}
	req := CheckRequest{
		Principal: &auth.Principal{Username: "root", Roles: []string{"catalog-admin"}},
		Eval:      auth.ScopeEvaluation{Tier: auth.TierAdmin},
		Action:    ActionDestroy,
		Target:    item,
	}
	ok, err := gate.Check(t.Context(), req)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGateUnknownActionDenies(t *testing.T) {
	gate := newTestGate(&fakeEntitlements{}, &fakeRefs{}, &fakeWorkflow{})

	item := fakeTarget{resourceType: ResourcePortfolioItem, id: 1, parentID: 10}
	ok, err := gate.Check(t.Context(), groupRequest(Action("teleport"), item))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGatePortfolioCreateAdminOnly(t *testing.T) {
	gate := newTestGate(&fakeEntitlements{}, &fakeRefs{}, &fakeWorkflow{})

	portfolio := fakeTarget{resourceType: ResourcePortfolio}
	ok, err := gate.Check(t.Context(), groupRequest(ActionCreate, portfolio))
	require.NoError(t, err)
	assert.False(t, ok)

	req := groupRequest(ActionCreate, portfolio)
	req.Eval = auth.ScopeEvaluation{Tier: auth.TierAdmin}
	ok, err = gate.Check(t.Context(), req)
	require.NoError(t, err)
	assert.True(t, ok)
}
