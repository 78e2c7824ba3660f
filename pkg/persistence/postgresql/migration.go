package postgresql

import (
	"database/sql"
	"log/slog"

	"github.com/admitflow/admitflow/pkg/persistence/sqlbase"
)

func newMigrationManager(logger *slog.Logger, db *sql.DB) *sqlbase.MigrationManager {
	return sqlbase.NewMigrationManager(logger, db, migrations())
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_definitions (
				id UUID PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL,
				active BOOLEAN NOT NULL DEFAULT FALSE,
				created_by TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE UNIQUE INDEX IF NOT EXISTS workflow_definitions_one_active_per_category
				ON workflow_definitions (category) WHERE active;

			CREATE TABLE IF NOT EXISTS stages (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflow_definitions(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				sequence INTEGER NOT NULL,
				required_document_types JSONB,
				required_actions JSONB,
				notification_triggers JSONB,
				assigned_role TEXT NOT NULL DEFAULT '',
				position INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX IF NOT EXISTS stages_workflow_position
				ON stages (workflow_id, position);

			CREATE TABLE IF NOT EXISTS transitions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflow_definitions(id) ON DELETE CASCADE,
				source_stage_id UUID NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
				target_stage_id UUID NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				condition JSONB,
				required_permissions JSONB,
				automatic BOOLEAN NOT NULL DEFAULT FALSE,
				position INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX IF NOT EXISTS transitions_source_position
				ON transitions (source_stage_id, position);

			CREATE TABLE IF NOT EXISTS application_statuses (
				id UUID PRIMARY KEY,
				application_id TEXT NOT NULL,
				workflow_id UUID,
				stage_id UUID,
				status TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				actor_kind TEXT NOT NULL,
				actor_user_id TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS application_statuses_application_created
				ON application_statuses (application_id, created_at);
		`,
	}
}
