package postgresql

// migrations returns the schema migrations, keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id          TEXT NOT NULL,
				version     INTEGER NOT NULL,
				name        TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status      TEXT NOT NULL,
				definition  JSONB NOT NULL,
				owner       TEXT NOT NULL DEFAULT '',
				created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (id, version)
			);

			CREATE TABLE IF NOT EXISTS executions (
				id               TEXT PRIMARY KEY,
				workflow_id      TEXT NOT NULL,
				workflow_version INTEGER NOT NULL,
				status           TEXT NOT NULL,
				input            JSONB,
				output           JSONB,
				error            TEXT NOT NULL DEFAULT '',
				user_id          TEXT NOT NULL DEFAULT '',
				started_at       TIMESTAMPTZ,
				completed_at     TIMESTAMPTZ,
				created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow_id ON executions (workflow_id);

			CREATE TABLE IF NOT EXISTS step_executions (
				id           TEXT PRIMARY KEY,
				execution_id TEXT NOT NULL REFERENCES executions (id) ON DELETE CASCADE,
				node_id      TEXT NOT NULL,
				node_label   TEXT NOT NULL DEFAULT '',
				node_type    TEXT NOT NULL,
				status       TEXT NOT NULL,
				attempts     INTEGER NOT NULL DEFAULT 1,
				result       JSONB,
				error        TEXT NOT NULL DEFAULT '',
				started_at   TIMESTAMPTZ,
				completed_at TIMESTAMPTZ,
				created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
			);

			CREATE INDEX IF NOT EXISTS idx_step_executions_execution_id ON step_executions (execution_id);

			CREATE TABLE IF NOT EXISTS triggers (
				id            TEXT PRIMARY KEY,
				workflow_id   TEXT NOT NULL,
				type          TEXT NOT NULL,
				config        JSONB,
				enabled       BOOLEAN NOT NULL DEFAULT true,
				last_fired_at TIMESTAMPTZ,
				next_run_at   TIMESTAMPTZ,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
			);

			CREATE INDEX IF NOT EXISTS idx_triggers_type_enabled ON triggers (type, enabled);

			CREATE TABLE IF NOT EXISTS audit_logs (
				id          TEXT PRIMARY KEY,
				event       TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				entity_id   TEXT NOT NULL,
				metadata    JSONB,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
			);
		`,
	}
}
