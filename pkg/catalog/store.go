package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/catalogforge/catalog/pkg/rbac"
)

// Store persists the catalog domain model in SQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a catalog store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreatePortfolio inserts p and fills its ID and timestamps.
func (s *Store) CreatePortfolio(ctx context.Context, p *Portfolio) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO portfolios (name, description, owner, tenant, enabled, workflow_ref, icon_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		p.Name, p.Description, p.Owner, p.Tenant, p.Enabled, p.WorkflowRef, p.IconRef, now, now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetPortfolio fetches one portfolio by id.
func (s *Store) GetPortfolio(ctx context.Context, id int64) (*Portfolio, error) {
	p := &Portfolio{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, owner, tenant, enabled, workflow_ref, icon_ref, created_at, updated_at
		FROM portfolios WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Owner, &p.Tenant, &p.Enabled, &p.WorkflowRef, &p.IconRef, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "portfolio", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return p, nil
}

// ListPortfolios returns all portfolios in a tenant.
func (s *Store) ListPortfolios(ctx context.Context, tenant string) ([]*Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, owner, tenant, enabled, workflow_ref, icon_ref, created_at, updated_at
		FROM portfolios WHERE tenant = $1 ORDER BY id`, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var out []*Portfolio
	for rows.Next() {
		p := &Portfolio{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Owner, &p.Tenant, &p.Enabled, &p.WorkflowRef, &p.IconRef, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePortfolio saves mutable portfolio fields.
func (s *Store) UpdatePortfolio(ctx context.Context, p *Portfolio) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE portfolios SET name = $1, description = $2, enabled = $3, workflow_ref = $4, icon_ref = $5, updated_at = $6
		WHERE id = $7`,
		p.Name, p.Description, p.Enabled, p.WorkflowRef, p.IconRef, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}
	return checkAffected(res, "portfolio", p.ID)
}

// DeletePortfolio removes a portfolio and, by cascade, its items.
func (s *Store) DeletePortfolio(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM portfolios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	return checkAffected(res, "portfolio", id)
}

// CreatePortfolioItem inserts i and fills its ID and timestamps.
func (s *Store) CreatePortfolioItem(ctx context.Context, i *PortfolioItem) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO portfolio_items (portfolio_id, name, description, owner, tenant, service_offering_ref, workflow_ref, orderable, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		i.PortfolioID, i.Name, i.Description, i.Owner, i.Tenant, i.ServiceOfferingRef, i.WorkflowRef, i.Orderable, now, now,
	).Scan(&i.ID)
	if err != nil {
		return fmt.Errorf("failed to create portfolio item: %w", err)
	}
	i.CreatedAt = now
	i.UpdatedAt = now
	return nil
}

// GetPortfolioItem fetches one portfolio item by id.
func (s *Store) GetPortfolioItem(ctx context.Context, id int64) (*PortfolioItem, error) {
	i := &PortfolioItem{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, portfolio_id, name, description, owner, tenant, service_offering_ref, workflow_ref, orderable, created_at, updated_at
		FROM portfolio_items WHERE id = $1`, id,
	).Scan(&i.ID, &i.PortfolioID, &i.Name, &i.Description, &i.Owner, &i.Tenant, &i.ServiceOfferingRef, &i.WorkflowRef, &i.Orderable, &i.CreatedAt, &i.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "portfolio item", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio item: %w", err)
	}
	return i, nil
}

// ListPortfolioItems returns a tenant's portfolio items, optionally limited
// to one portfolio.
func (s *Store) ListPortfolioItems(ctx context.Context, tenant string, portfolioID int64) ([]*PortfolioItem, error) {
	query := `
		SELECT id, portfolio_id, name, description, owner, tenant, service_offering_ref, workflow_ref, orderable, created_at, updated_at
		FROM portfolio_items WHERE tenant = $1`
	args := []any{tenant}
	if portfolioID > 0 {
		query += ` AND portfolio_id = $2`
		args = append(args, portfolioID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolio items: %w", err)
	}
	defer rows.Close()

	var out []*PortfolioItem
	for rows.Next() {
		i := &PortfolioItem{}
		if err := rows.Scan(&i.ID, &i.PortfolioID, &i.Name, &i.Description, &i.Owner, &i.Tenant, &i.ServiceOfferingRef, &i.WorkflowRef, &i.Orderable, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio item: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// UpdatePortfolioItem saves mutable portfolio item fields.
func (s *Store) UpdatePortfolioItem(ctx context.Context, i *PortfolioItem) error {
	i.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE portfolio_items SET name = $1, description = $2, service_offering_ref = $3, workflow_ref = $4, orderable = $5, updated_at = $6
		WHERE id = $7`,
		i.Name, i.Description, i.ServiceOfferingRef, i.WorkflowRef, i.Orderable, i.UpdatedAt, i.ID)
	if err != nil {
		return fmt.Errorf("failed to update portfolio item: %w", err)
	}
	return checkAffected(res, "portfolio item", i.ID)
}

// DeletePortfolioItem removes a portfolio item.
func (s *Store) DeletePortfolioItem(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM portfolio_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio item: %w", err)
	}
	return checkAffected(res, "portfolio item", id)
}

// CopyPortfolioItem duplicates an item into dstPortfolioID and returns the
// copy. The copy is owned by owner, not by the source item's owner.
func (s *Store) CopyPortfolioItem(ctx context.Context, id, dstPortfolioID int64, owner string) (*PortfolioItem, error) {
	src, err := s.GetPortfolioItem(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *src
	cp.ID = 0
	cp.PortfolioID = dstPortfolioID
	cp.Owner = owner
	cp.Name = "Copy of " + src.Name
	if err := s.CreatePortfolioItem(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// CreateOrder inserts o and fills its ID, state and timestamps.
func (s *Store) CreateOrder(ctx context.Context, o *Order) error {
	now := time.Now().UTC()
	o.State = OrderCreated
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (state, owner, tenant, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		o.State, o.Owner, o.Tenant, now, now,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// GetOrder fetches one order by id.
func (s *Store) GetOrder(ctx context.Context, id int64) (*Order, error) {
	o := &Order{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, state, owner, tenant, submitted_at, completed_at, created_at, updated_at
		FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.State, &o.Owner, &o.Tenant, &o.SubmittedAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "order", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// ListOrders returns all orders in a tenant.
func (s *Store) ListOrders(ctx context.Context, tenant string) ([]*Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, state, owner, tenant, submitted_at, completed_at, created_at, updated_at
		FROM orders WHERE tenant = $1 ORDER BY id`, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o := &Order{}
		if err := rows.Scan(&o.ID, &o.State, &o.Owner, &o.Tenant, &o.SubmittedAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkOrderSubmitted moves an order to the submitted state.
func (s *Store) MarkOrderSubmitted(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET state = $1, submitted_at = $2, updated_at = $3 WHERE id = $4`,
		OrderSubmitted, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark order submitted: %w", err)
	}
	return checkAffected(res, "order", id)
}

// DeleteOrder removes an order with its items and their progress messages.
func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM progress_messages
		WHERE order_item_id IN (SELECT id FROM order_items WHERE order_id = $1)`, id); err != nil {
		return fmt.Errorf("failed to delete progress messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete order items: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if err := checkAffected(res, "order", id); err != nil {
		return err
	}
	return tx.Commit()
}

// RefreshOrderState recomputes an order's state from its items: completed
// when every item succeeded, failed when any item failed, otherwise left
// alone. Returns the resulting state.
func (s *Store) RefreshOrderState(ctx context.Context, orderID int64) (OrderState, error) {
	items, err := s.ListOrderItems(ctx, orderID)
	if err != nil {
		return "", err
	}
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if len(items) == 0 || o.State != OrderSubmitted {
		return o.State, nil
	}

	next := OrderCompleted
	for _, it := range items {
		if it.State == StateFailed {
			next = OrderFailed
			break
		}
		if !it.State.Terminal() {
			return o.State, nil
		}
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		UPDATE orders SET state = $1, completed_at = $2, updated_at = $3 WHERE id = $4`,
		next, now, now, orderID); err != nil {
		return "", fmt.Errorf("failed to refresh order state: %w", err)
	}
	return next, nil
}

// CreateOrderItem inserts i in the created state and fills its ID.
func (s *Store) CreateOrderItem(ctx context.Context, i *OrderItem) error {
	now := time.Now().UTC()
	i.State = StateCreated
	i.Version = 0
	params, err := json.Marshal(orEmptyAny(i.ServiceParameters))
	if err != nil {
		return fmt.Errorf("failed to encode service parameters: %w", err)
	}
	itemCtx, err := json.Marshal(orEmptyStr(i.Context))
	if err != nil {
		return fmt.Errorf("failed to encode item context: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO order_items (order_id, portfolio_item_id, state, owner, tenant, item_count, service_plan_ref, service_parameters, item_context, artifacts, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		i.OrderID, i.PortfolioItemID, i.State, i.Owner, i.Tenant, i.Count, i.ServicePlanRef, params, itemCtx, []byte("{}"), i.Version, now, now,
	).Scan(&i.ID)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	i.CreatedAt = now
	i.UpdatedAt = now
	return nil
}

const orderItemColumns = `id, order_id, portfolio_item_id, state, owner, tenant, item_count, service_plan_ref, service_parameters, item_context, external_task_ref, service_instance_ref, external_url, artifacts, version, completed_at, created_at, updated_at`

func scanOrderItem(row interface{ Scan(...any) error }) (*OrderItem, error) {
	i := &OrderItem{}
	var params, itemCtx, artifacts []byte
	var taskRef sql.NullString
	err := row.Scan(&i.ID, &i.OrderID, &i.PortfolioItemID, &i.State, &i.Owner, &i.Tenant, &i.Count,
		&i.ServicePlanRef, &params, &itemCtx, &taskRef, &i.ServiceInstanceRef, &i.ExternalURL,
		&artifacts, &i.Version, &i.CompletedAt, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.ExternalTaskRef = taskRef.String
	if err := json.Unmarshal(params, &i.ServiceParameters); err != nil {
		return nil, fmt.Errorf("failed to decode service parameters: %w", err)
	}
	if err := json.Unmarshal(itemCtx, &i.Context); err != nil {
		return nil, fmt.Errorf("failed to decode item context: %w", err)
	}
	if err := json.Unmarshal(artifacts, &i.Artifacts); err != nil {
		return nil, fmt.Errorf("failed to decode artifacts: %w", err)
	}
	return i, nil
}

// GetOrderItem fetches one order item by id.
func (s *Store) GetOrderItem(ctx context.Context, id int64) (*OrderItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderItemColumns+` FROM order_items WHERE id = $1`, id)
	i, err := scanOrderItem(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "order item", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order item: %w", err)
	}
	return i, nil
}

// GetOrderItemByTaskRef fetches the order item dispatched under taskRef.
func (s *Store) GetOrderItemByTaskRef(ctx context.Context, taskRef string) (*OrderItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderItemColumns+` FROM order_items WHERE external_task_ref = $1`, taskRef)
	i, err := scanOrderItem(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "order item", ID: taskRef}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order item by task ref: %w", err)
	}
	return i, nil
}

// ListOrderItems returns the items on one order.
func (s *Store) ListOrderItems(ctx context.Context, orderID int64) ([]*OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var out []*OrderItem
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// ListStuckOrderItems returns non-terminal dispatched items whose last
// update is older than cutoff. The sweeper uses this to flag abandoned
// provisioning tasks.
func (s *Store) ListStuckOrderItems(ctx context.Context, cutoff time.Time) ([]*OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderItemColumns+` FROM order_items
		WHERE state IN ($1, $2) AND updated_at < $3 ORDER BY id`,
		StatePending, StateRunning, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck order items: %w", err)
	}
	defer rows.Close()

	var out []*OrderItem
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// AssignTaskRef records the external task reference for a freshly
// dispatched item and moves it to pending. The reference is set exactly
// once: a second assignment fails with ErrTaskRefAssigned.
func (s *Store) AssignTaskRef(ctx context.Context, itemID int64, taskRef string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE order_items SET external_task_ref = $1, state = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND external_task_ref IS NULL`,
		taskRef, StatePending, now, itemID)
	if err != nil {
		return fmt.Errorf("failed to assign task ref: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to assign task ref: %w", err)
	}
	if n == 0 {
		if _, gerr := s.GetOrderItem(ctx, itemID); gerr != nil {
			return gerr
		}
		return ErrTaskRefAssigned
	}
	return nil
}

// OrderItemUpdate describes the field changes one fulfillment event
// applies. Nil pointer fields are left untouched; a non-nil Artifacts map
// replaces the stored set.
type OrderItemUpdate struct {
	State              *ItemState
	ServiceInstanceRef *string
	ExternalURL        *string
	Artifacts          map[string]string
	CompletedAt        *time.Time
}

// TransitionOrderItem applies update and appends messages in a single
// transaction. The update is guarded by item.Version: if another writer
// advanced the row since item was read, nothing is written and
// ErrStaleOrderItem is returned. A nil update appends messages only.
func (s *Store) TransitionOrderItem(ctx context.Context, item *OrderItem, update *OrderItemUpdate, messages []ProgressMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if update != nil {
		next := *item
		if update.State != nil {
			next.State = *update.State
		}
		if update.ServiceInstanceRef != nil {
			next.ServiceInstanceRef = *update.ServiceInstanceRef
		}
		if update.ExternalURL != nil {
			next.ExternalURL = *update.ExternalURL
		}
		if update.Artifacts != nil {
			next.Artifacts = update.Artifacts
		}
		if update.CompletedAt != nil {
			next.CompletedAt = update.CompletedAt
		}

		artifacts, err := json.Marshal(orEmptyStr(next.Artifacts))
		if err != nil {
			return fmt.Errorf("failed to encode artifacts: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE order_items SET state = $1, service_instance_ref = $2, external_url = $3, artifacts = $4, completed_at = $5, version = $6, updated_at = $7
			WHERE id = $8 AND version = $9`,
			next.State, next.ServiceInstanceRef, next.ExternalURL, artifacts, next.CompletedAt, item.Version+1, now, item.ID, item.Version)
		if err != nil {
			return fmt.Errorf("failed to update order item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update order item: %w", err)
		}
		if n == 0 {
			return ErrStaleOrderItem
		}

		next.Version = item.Version + 1
		next.UpdatedAt = now
		*item = next
	}

	for _, m := range messages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO progress_messages (order_item_id, level, message, created_at)
			VALUES ($1, $2, $3, $4)`,
			item.ID, m.Level, m.Message, now); err != nil {
			return fmt.Errorf("failed to append progress message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}
	return nil
}

// ListProgressMessages returns an order item's messages oldest first.
func (s *Store) ListProgressMessages(ctx context.Context, orderItemID int64) ([]*ProgressMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_item_id, level, message, created_at
		FROM progress_messages WHERE order_item_id = $1 ORDER BY id`, orderItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress messages: %w", err)
	}
	defer rows.Close()

	var out []*ProgressMessage
	for rows.Next() {
		m := &ProgressMessage{}
		if err := rows.Scan(&m.ID, &m.OrderItemID, &m.Level, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FindRef resolves a resource's owner and tenant for permission checks.
func (s *Store) FindRef(ctx context.Context, resourceType rbac.Resource, id int64) (*rbac.ResourceRef, error) {
	var table string
	switch resourceType {
	case rbac.ResourcePortfolio:
		table = "portfolios"
	case rbac.ResourcePortfolioItem:
		table = "portfolio_items"
	case rbac.ResourceOrder:
		table = "orders"
	case rbac.ResourceOrderItem:
		table = "order_items"
	default:
		return nil, fmt.Errorf("unknown resource type %q", resourceType)
	}

	ref := &rbac.ResourceRef{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT owner, tenant FROM `+table+` WHERE id = $1`, id,
	).Scan(&ref.Owner, &ref.Tenant)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: string(resourceType), ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s ref: %w", resourceType, err)
	}
	return ref, nil
}

func checkAffected(res sql.Result, resource string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return &NotFoundError{Resource: resource, ID: strconv.FormatInt(id, 10)}
	}
	return nil
}

func orEmptyAny(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptyStr(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
