package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflows table
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				correlate_run_id VARCHAR(255),
				domain VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL,
				git JSONB NOT NULL,
				stages JSONB NOT NULL,
				stage_results JSONB NOT NULL,
				metadata JSONB,
				notification JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_domain ON workflows(domain);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
		`,
	}
}
