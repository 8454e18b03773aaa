package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// EntitlementSource answers entitlement queries for the resolver and gate.
// Implementations must support parent-type queries, since child resources
// are scoped by their parent's entitlements.
type EntitlementSource interface {
	// ResourceIDs returns the ids of resources of resourceType on which any
	// of the groups holds the permission.
	ResourceIDs(ctx context.Context, groupIDs []string, permission Permission, resourceType Resource) ([]int64, error)

	// HasAny reports whether any of the groups holds the permission on at
	// least one resource of resourceType.
	HasAny(ctx context.Context, groupIDs []string, permission Permission, resourceType Resource) (bool, error)

	// HasResource reports whether any of the groups holds the permission on
	// the specific resource.
	HasResource(ctx context.Context, groupIDs []string, permission Permission, resourceType Resource, resourceID int64) (bool, error)
}

// Store is the SQL-backed entitlement source
type Store struct {
	db *sql.DB
}

// NewStore creates a new entitlement store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ResourceIDs returns the distinct resource ids matching any group grant
func (s *Store) ResourceIDs(ctx context.Context, groupIDs []string, permission Permission, resourceType Resource) ([]int64, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT resource_id FROM entitlements
		WHERE group_id = ANY($1) AND permission = $2 AND resource_type = $3
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(groupIDs), string(permission), string(resourceType))
	if err != nil {
		return nil, fmt.Errorf("failed to query entitlements: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan entitlement id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HasAny reports whether at least one grant exists for the groups
func (s *Store) HasAny(ctx context.Context, groupIDs []string, permission Permission, resourceType Resource) (bool, error) {
	if len(groupIDs) == 0 {
		return false, nil
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM entitlements
			WHERE group_id = ANY($1) AND permission = $2 AND resource_type = $3
		)
	`
	var exists bool
	err := s.db.QueryRowContext(ctx, query, pq.Array(groupIDs), string(permission), string(resourceType)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query entitlement existence: %w", err)
	}
	return exists, nil
}

// HasResource reports whether a grant exists for the specific resource
func (s *Store) HasResource(ctx context.Context, groupIDs []string, permission Permission, resourceType Resource, resourceID int64) (bool, error) {
	if len(groupIDs) == 0 {
		return false, nil
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM entitlements
			WHERE group_id = ANY($1) AND permission = $2 AND resource_type = $3 AND resource_id = $4
		)
	`
	var exists bool
	err := s.db.QueryRowContext(ctx, query, pq.Array(groupIDs), string(permission), string(resourceType), resourceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query entitlement existence: %w", err)
	}
	return exists, nil
}

// CreateEntitlement records a grant. Exposed for sharing flows and tests;
// the resolver and gate only ever read.
func (s *Store) CreateEntitlement(ctx context.Context, e *Entitlement) error {
	e.CreatedAt = time.Now().UTC()
	query := `
		INSERT INTO entitlements (group_id, permission, resource_type, resource_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		e.GroupID, string(e.Permission), string(e.ResourceType), e.ResourceID, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to create entitlement: %w", err)
	}
	return nil
}

// DeleteEntitlement removes one grant, used by unsharing flows.
func (s *Store) DeleteEntitlement(ctx context.Context, groupID string, permission Permission, resourceType Resource, resourceID int64) error {
	query := `
		DELETE FROM entitlements
		WHERE group_id = $1 AND permission = $2 AND resource_type = $3 AND resource_id = $4
	`
	if _, err := s.db.ExecContext(ctx, query, groupID, string(permission), string(resourceType), resourceID); err != nil {
		return fmt.Errorf("failed to delete entitlement: %w", err)
	}
	return nil
}

// DeleteEntitlements removes all grants for a resource, used when the
// resource itself is destroyed.
func (s *Store) DeleteEntitlements(ctx context.Context, resourceType Resource, resourceID int64) error {
	query := `DELETE FROM entitlements WHERE resource_type = $1 AND resource_id = $2`
	if _, err := s.db.ExecContext(ctx, query, string(resourceType), resourceID); err != nil {
		return fmt.Errorf("failed to delete entitlements: %w", err)
	}
	return nil
}
