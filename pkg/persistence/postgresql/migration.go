package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create automations table
			CREATE TABLE automations (
				id UUID PRIMARY KEY,
				scope_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'paused')),
				trigger_type VARCHAR(100) NOT NULL,
				trigger_config JSONB NOT NULL DEFAULT '{}',
				start_step_id VARCHAR(255),
				enrollment_count BIGINT NOT NULL DEFAULT 0,
				completed_count BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automations_scope_id ON automations(scope_id);
			CREATE INDEX idx_automations_status ON automations(status);
			CREATE INDEX idx_automations_trigger_type ON automations(trigger_type);

			-- Create automation_steps table
			CREATE TABLE automation_steps (
				automation_id UUID NOT NULL REFERENCES automations(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				step_type VARCHAR(50) NOT NULL,
				config JSONB NOT NULL DEFAULT '{}',
				position INT NOT NULL DEFAULT 0,
				next_step_id VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (automation_id, id)
			);

			CREATE INDEX idx_automation_steps_automation_id ON automation_steps(automation_id);

			-- Create enrollments table
			CREATE TABLE enrollments (
				id UUID PRIMARY KEY,
				automation_id UUID NOT NULL REFERENCES automations(id) ON DELETE CASCADE,
				contact_id VARCHAR(255) NOT NULL,
				current_step_id VARCHAR(255),
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'completed', 'exited', 'failed')),
				wait_until TIMESTAMP WITH TIME ZONE,
				enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				exited_at TIMESTAMP WITH TIME ZONE,
				exit_reason TEXT NOT NULL DEFAULT '',
				version BIGINT NOT NULL DEFAULT 0
			);

			-- One active enrollment per (automation, contact); terminal
			-- enrollments do not block re-enrollment.
			CREATE UNIQUE INDEX idx_enrollments_one_active
				ON enrollments(automation_id, contact_id)
				WHERE status = 'active';

			CREATE INDEX idx_enrollments_automation_id ON enrollments(automation_id);
			CREATE INDEX idx_enrollments_contact_id ON enrollments(contact_id);
			CREATE INDEX idx_enrollments_due
				ON enrollments(wait_until)
				WHERE status = 'active' AND wait_until IS NOT NULL;

			-- Create automation_logs table (append-only audit trail)
			CREATE TABLE automation_logs (
				id UUID PRIMARY KEY,
				automation_id UUID NOT NULL,
				enrollment_id UUID NOT NULL,
				contact_id VARCHAR(255) NOT NULL,
				step_id VARCHAR(255) NOT NULL,
				step_type VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL,
				input JSONB,
				output JSONB,
				error TEXT NOT NULL DEFAULT '',
				executed_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automation_logs_enrollment_id ON automation_logs(enrollment_id);
			CREATE INDEX idx_automation_logs_executed_at ON automation_logs(executed_at);
		`,
	}
}
