// Package postgres provides a PostgreSQL storage implementation.
package postgres

// migrations contains the database schema migrations. Each statement is
// idempotent so the set can be re-applied on every startup.
var migrations = []string{
	// Migration 1: schema registry. position makes "first row for a
	// namespace" a defined concept; rows are append-only.
	`CREATE TABLE IF NOT EXISTS schema_registry (
		id TEXT PRIMARY KEY,
		namespace TEXT NOT NULL,
		schema_avro TEXT NOT NULL,
		position BIGSERIAL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_schema_registry_namespace ON schema_registry(namespace)`,

	// Migration 2: move audit, append-only.
	`CREATE TABLE IF NOT EXISTS move_registry (
		schema_fk TEXT NOT NULL,
		old_bucket TEXT NOT NULL,
		new_bucket TEXT NOT NULL,
		namespace TEXT NOT NULL,
		summary TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_move_registry_namespace ON move_registry(namespace)`,

	// Migration 3: aggregated operator view.
	`DROP VIEW IF EXISTS metric`,
	`CREATE VIEW metric AS
	SELECT new_bucket, COUNT(*) AS total
	FROM move_registry
	GROUP BY new_bucket`,
}
