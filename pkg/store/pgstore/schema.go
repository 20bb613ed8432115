package pgstore

// schemaStatements defines the full table set, one entity per
// CREATE TABLE, JSON columns for the nested/variable-shape fields
// (category_scores, signals, payload, details, config) exactly the
// way the pack's Postgres-backed services store arbitrary nested
// data (e.g. com.r3e.services.secrets' use of jsonb-shaped columns).
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		primary_domain TEXT NOT NULL UNIQUE,
		plan TEXT NOT NULL,
		scans_this_month INT NOT NULL DEFAULT 0,
		scans_limit INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL REFERENCES organizations(id),
		type TEXT NOT NULL,
		identifier TEXT NOT NULL,
		risk_weight DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		priority INT NOT NULL DEFAULT 0,
		frequency TEXT NOT NULL,
		status TEXT NOT NULL,
		last_scan_at TIMESTAMPTZ,
		next_scan_at TIMESTAMPTZ,
		last_risk_score INT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assets_org ON assets(org_id)`,
	`CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		github_org TEXT NOT NULL DEFAULT '',
		risk_score INT NOT NULL,
		category_scores JSONB NOT NULL,
		signals JSONB NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		breach_likelihood_30d DOUBLE PRECISION NOT NULL DEFAULT 0,
		breach_likelihood_90d DOUBLE PRECISION NOT NULL DEFAULT 0,
		raw_payload JSONB NOT NULL,
		partial_failures INT NOT NULL DEFAULT 0,
		ai_score INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scans_domain_created ON scans(domain, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_scans_org_created ON scans(org_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		scan_id TEXT NOT NULL,
		org_id TEXT NOT NULL,
		asset_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		action_id TEXT NOT NULL,
		title TEXT NOT NULL,
		recommended_fix TEXT NOT NULL DEFAULT '',
		effort TEXT NOT NULL DEFAULT '',
		estimated_reduction INT NOT NULL DEFAULT 0,
		priority INT NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		before_score INT NOT NULL DEFAULT 0,
		after_score INT,
		resolved_at TIMESTAMPTZ,
		accepted_at TIMESTAMPTZ,
		verified_at TIMESTAMPTZ,
		verification_scan_id TEXT,
		confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		confidence_reason TEXT NOT NULL DEFAULT '',
		business_impact TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_scan ON decisions(scan_id)`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_asset ON decisions(asset_id)`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_org_created ON decisions(org_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS decision_impacts (
		id TEXT PRIMARY KEY,
		decision_id TEXT NOT NULL UNIQUE,
		risk_before INT NOT NULL,
		risk_after INT,
		delta INT,
		confidence DOUBLE PRECISION NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS decision_verification_runs (
		id TEXT PRIMARY KEY,
		decision_id TEXT NOT NULL,
		result TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_verification_runs_decision ON decision_verification_runs(decision_id)`,
	`CREATE TABLE IF NOT EXISTS decision_evidence (
		id TEXT PRIMARY KEY,
		decision_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scan_schedules (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL UNIQUE,
		frequency TEXT NOT NULL,
		next_run_at TIMESTAMPTZ NOT NULL,
		last_run_at TIMESTAMPTZ,
		last_scan_id TEXT,
		status TEXT NOT NULL,
		run_count INT NOT NULL DEFAULT 0,
		error_count INT NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS webhooks (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		url TEXT NOT NULL,
		secret TEXT NOT NULL,
		subscribed_to TEXT[] NOT NULL,
		custom_headers JSONB NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_deliveries (
		id TEXT PRIMARY KEY,
		webhook_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL,
		attempts INT NOT NULL DEFAULT 0,
		max_attempts INT NOT NULL DEFAULT 3,
		response_code INT,
		response_body TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS connectors (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		encrypted_credentials BYTEA NOT NULL,
		config JSONB NOT NULL,
		last_sync_at TIMESTAMPTZ,
		last_error TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		details JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_org_created ON audit_log(org_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value BYTEA NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
}
