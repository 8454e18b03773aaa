package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all catalog migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create portfolios table",
			SQL: `
				CREATE TABLE IF NOT EXISTS portfolios (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					owner VARCHAR(255) NOT NULL,
					tenant VARCHAR(255) NOT NULL,
					enabled BOOLEAN NOT NULL DEFAULT TRUE,
					workflow_ref VARCHAR(255) NOT NULL DEFAULT '',
					icon_ref VARCHAR(255) NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant, name)
				);

				CREATE INDEX idx_portfolios_tenant ON portfolios(tenant);
				CREATE INDEX idx_portfolios_owner ON portfolios(owner);
			`,
		},
		{
			Version:     2,
			Description: "Create portfolio_items table",
			SQL: `
				CREATE TABLE IF NOT EXISTS portfolio_items (
					id BIGSERIAL PRIMARY KEY,
					portfolio_id BIGINT NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					owner VARCHAR(255) NOT NULL,
					tenant VARCHAR(255) NOT NULL,
					service_offering_ref VARCHAR(255) NOT NULL,
					workflow_ref VARCHAR(255) NOT NULL DEFAULT '',
					orderable BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_portfolio_items_portfolio_id ON portfolio_items(portfolio_id);
				CREATE INDEX idx_portfolio_items_tenant ON portfolio_items(tenant);
			`,
		},
		{
			Version:     3,
			Description: "Create orders table",
			SQL: `
				CREATE TABLE IF NOT EXISTS orders (
					id BIGSERIAL PRIMARY KEY,
					state VARCHAR(32) NOT NULL DEFAULT 'created',
					owner VARCHAR(255) NOT NULL,
					tenant VARCHAR(255) NOT NULL,
					submitted_at TIMESTAMP,
					completed_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_orders_owner ON orders(owner);
				CREATE INDEX idx_orders_tenant ON orders(tenant);
				CREATE INDEX idx_orders_state ON orders(state);
			`,
		},
		{
			Version:     4,
			Description: "Create order_items table",
			SQL: `
				CREATE TABLE IF NOT EXISTS order_items (
					id BIGSERIAL PRIMARY KEY,
					order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
					portfolio_item_id BIGINT NOT NULL REFERENCES portfolio_items(id),
					state VARCHAR(32) NOT NULL DEFAULT 'created',
					owner VARCHAR(255) NOT NULL,
					tenant VARCHAR(255) NOT NULL,
					item_count INT NOT NULL DEFAULT 1,
					service_plan_ref VARCHAR(255) NOT NULL,
					service_parameters JSONB NOT NULL DEFAULT '{}',
					item_context JSONB NOT NULL DEFAULT '{}',
					external_task_ref VARCHAR(255),
					service_instance_ref VARCHAR(255) NOT NULL DEFAULT '',
					external_url VARCHAR(2048) NOT NULL DEFAULT '',
					artifacts JSONB NOT NULL DEFAULT '{}',
					version BIGINT NOT NULL DEFAULT 0,
					completed_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(external_task_ref)
				);

				CREATE INDEX idx_order_items_order_id ON order_items(order_id);
				CREATE INDEX idx_order_items_state ON order_items(state);
			`,
		},
		{
			Version:     5,
			Description: "Create progress_messages table",
			SQL: `
				CREATE TABLE IF NOT EXISTS progress_messages (
					id BIGSERIAL PRIMARY KEY,
					order_item_id BIGINT NOT NULL REFERENCES order_items(id) ON DELETE CASCADE,
					level VARCHAR(16) NOT NULL DEFAULT 'info',
					message TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_progress_messages_order_item_id ON progress_messages(order_item_id);
			`,
		},
		{
			Version:     6,
			Description: "Create entitlements table",
			SQL: `
				CREATE TABLE IF NOT EXISTS entitlements (
					id BIGSERIAL PRIMARY KEY,
					group_id VARCHAR(255) NOT NULL,
					resource_type VARCHAR(64) NOT NULL,
					resource_id BIGINT NOT NULL,
					permission VARCHAR(64) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(group_id, resource_type, resource_id, permission)
				);

				CREATE INDEX idx_entitlements_group_id ON entitlements(group_id);
				CREATE INDEX idx_entitlements_resource ON entitlements(resource_type, resource_id);
			`,
		},
		{
			Version:     7,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id BIGSERIAL PRIMARY KEY,
					event_type VARCHAR(64) NOT NULL,
					status VARCHAR(16) NOT NULL,
					username VARCHAR(255) NOT NULL,
					tenant VARCHAR(255) NOT NULL,
					resource_type VARCHAR(64),
					resource_id VARCHAR(255),
					detail JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_audit_events_event_type ON audit_events(event_type);
				CREATE INDEX idx_audit_events_username ON audit_events(username);
				CREATE INDEX idx_audit_events_created_at ON audit_events(created_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS catalog_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM catalog_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO catalog_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
