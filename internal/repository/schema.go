package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaFindingDefs = `
CREATE TABLE IF NOT EXISTS finding_defs (
    finding_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    title TEXT NOT NULL,
    system_group TEXT,
    space_group TEXT,
    tags TEXT,
    response TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (finding_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_finding_defs_tenant ON finding_defs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_finding_defs_group ON finding_defs(tenant_id, system_group);
`

const schemaSeedProfiles = `
CREATE TABLE IF NOT EXISTS seed_profiles (
    finding_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    profile TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (finding_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_seed_profiles_tenant ON seed_profiles(tenant_id);
`

// schemaDimensionOverrides holds the append-only override history. At most
// one row per (tenant, finding) has active = 1 and at most one has draft = 1.
const schemaDimensionOverrides = `
CREATE TABLE IF NOT EXISTS dimension_overrides (
    tenant_id TEXT NOT NULL,
    finding_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    dimensions TEXT NOT NULL,
    note TEXT,
    updated_by TEXT,
    created_at TIMESTAMP NOT NULL,
    active INTEGER NOT NULL DEFAULT 0,
    draft INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (tenant_id, finding_id, version)
);

CREATE INDEX IF NOT EXISTS idx_overrides_tenant ON dimension_overrides(tenant_id);
CREATE INDEX IF NOT EXISTS idx_overrides_finding ON dimension_overrides(tenant_id, finding_id);
CREATE INDEX IF NOT EXISTS idx_overrides_active ON dimension_overrides(tenant_id, active);
`

const schemaResolutions = `
CREATE TABLE IF NOT EXISTS resolutions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    inspection_id TEXT,
    findings TEXT NOT NULL,
    selection TEXT,
    plan TEXT,
    diagnostics TEXT,
    metadata TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolutions_tenant ON resolutions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_resolutions_inspection ON resolutions(tenant_id, inspection_id);
CREATE INDEX IF NOT EXISTS idx_resolutions_created ON resolutions(tenant_id, created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaFindingDefs,
		schemaSeedProfiles,
		schemaDimensionOverrides,
		schemaResolutions,
	}
}
