// Package mysql provides a MySQL storage implementation.
package mysql

// migrations contains the database schema migrations. MySQL lacks
// CREATE INDEX IF NOT EXISTS, so indexes ride on the table definitions.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS schema_registry (
		id VARCHAR(36) PRIMARY KEY,
		namespace VARCHAR(255) NOT NULL,
		schema_avro TEXT NOT NULL,
		position BIGINT AUTO_INCREMENT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uk_schema_registry_position (position),
		KEY idx_schema_registry_namespace (namespace)
	)`,

	`CREATE TABLE IF NOT EXISTS move_registry (
		schema_fk VARCHAR(36) NOT NULL,
		old_bucket VARCHAR(255) NOT NULL,
		new_bucket VARCHAR(255) NOT NULL,
		namespace VARCHAR(255) NOT NULL,
		summary TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_move_registry_namespace (namespace)
	)`,

	`CREATE OR REPLACE VIEW metric AS
	SELECT new_bucket, COUNT(*) AS total
	FROM move_registry
	GROUP BY new_bucket`,
}
