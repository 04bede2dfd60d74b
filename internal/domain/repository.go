package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Finding catalog
	SaveFindingDef(ctx context.Context, tenantID string, def *FindingDef) error
	GetFindingDef(ctx context.Context, tenantID string, findingID string) (*FindingDef, error)
	ListFindingDefs(ctx context.Context, tenantID string) ([]*FindingDef, error)

	// Seed 9-dimension profiles
	SaveSeedProfile(ctx context.Context, tenantID string, findingID string, profile *Profile) error
	ListSeedProfiles(ctx context.Context, tenantID string) (map[string]Profile, error)

	// Dimension override versioning
	GetOverrideState(ctx context.Context, tenantID string, findingID string) (*OverrideState, error)
	ListOverrideStates(ctx context.Context, tenantID string) (map[string]*OverrideState, error)
	SaveDraft(ctx context.Context, tenantID string, ov *DimensionOverride) error
	DiscardDraft(ctx context.Context, tenantID string, findingID string) error

	// Publish promotes the draft with exactly the given version to active.
	// A missing or superseded draft version yields ErrConflict; the active
	// version is left unchanged.
	Publish(ctx context.Context, tenantID string, findingID string, version int) error

	// InsertVersion appends a new override version (the rollback copy),
	// deactivating the previous active row when the new row is active.
	InsertVersion(ctx context.Context, tenantID string, ov *DimensionOverride) error

	// Resolution results
	SaveResolution(ctx context.Context, tenantID string, res *Resolution) error
	GetResolution(ctx context.Context, tenantID string, resID string) (*Resolution, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
