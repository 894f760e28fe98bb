package postgresql

// migrations returns the schema migrations keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT NOT NULL,
				version INTEGER NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (id, version)
			);

			CREATE TABLE IF NOT EXISTS workflow_executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				workflow_version INTEGER NOT NULL,
				status TEXT NOT NULL,
				context JSONB NOT NULL DEFAULT '{}',
				input_data JSONB NOT NULL DEFAULT '{}',
				error_message TEXT NOT NULL DEFAULT '',
				previous_execution_id TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflow_executions_workflow
				ON workflow_executions (workflow_id, started_at);

			CREATE TABLE IF NOT EXISTS workflow_step_executions (
				id TEXT PRIMARY KEY,
				execution_id TEXT NOT NULL REFERENCES workflow_executions (id),
				node_id TEXT NOT NULL,
				node_type TEXT NOT NULL,
				status TEXT NOT NULL,
				output JSONB,
				error_message TEXT NOT NULL DEFAULT '',
				progress INTEGER,
				retry_count INTEGER NOT NULL DEFAULT 0,
				blocked_by JSONB,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_step_executions_execution
				ON workflow_step_executions (execution_id);
		`,
	}
}
