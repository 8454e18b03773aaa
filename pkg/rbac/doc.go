// Package rbac implements scoped access control for catalog resources.
//
// # Overview
//
// Two components gate every resource access:
//
//   - ScopeResolver filters a record collection down to what a principal may
//     see, based on its scope tier: admin sees everything, group sees records
//     covered by a group entitlement, user sees records it owns.
//   - Gate answers yes/no for a named action on a single resource, driven by
//     a declarative rule table per (resource type, action) pair.
//
// Denial is an ordinary false return, never an error. Errors are reserved
// for malformed state: an unrecognized scope tag (a deployment defect,
// *ConfigurationError), a missing parent reference (ErrMissingParent), or a
// parent record that no longer exists.
//
// # Entitlements
//
// An entitlement grants a permission on one resource to a principal group.
// Entitlements are granted at the coarser granularity: sharing a portfolio
// entitles its items, so group-tier checks on child resource types resolve
// against the parent type. Evaluation is existence-based; duplicate grants
// are harmless.
//
// The SQL-backed store can be wrapped with CachedEntitlements, a two-level
// (in-process LRU, then Redis) cache, since entitlement reads dominate the
// request path and sharing changes are rare.
package rbac
