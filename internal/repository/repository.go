// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/openinspect/kestrel/internal/domain"
)

var ErrInvalidInput = errors.New("invalid input")

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveFindingDef upserts a catalog entry with tenant isolation.
func (r *SQLRepository) SaveFindingDef(ctx context.Context, tenantID string, def *domain.FindingDef) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tags, _ := json.Marshal(def.Tags)
	response, _ := json.Marshal(def.Response)
	now := time.Now().UTC()

	query := `
		INSERT INTO finding_defs (
			finding_id, tenant_id, title, system_group, space_group,
			tags, response, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(finding_id, tenant_id) DO UPDATE SET
			title = excluded.title,
			system_group = excluded.system_group,
			space_group = excluded.space_group,
			tags = excluded.tags,
			response = excluded.response,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		def.FindingID, tenantID, def.Title, def.SystemGroup, def.SpaceGroup,
		string(tags), string(response), now, now,
	)
	return err
}

// GetFindingDef retrieves one catalog entry with tenant isolation.
func (r *SQLRepository) GetFindingDef(ctx context.Context, tenantID string, findingID string) (*domain.FindingDef, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT finding_id, title, system_group, space_group, tags, response
		FROM finding_defs
		WHERE tenant_id = ? AND finding_id = ?
	`

	var def domain.FindingDef
	var tags, response string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, findingID).Scan(
		&def.FindingID, &def.Title, &def.SystemGroup, &def.SpaceGroup,
		&tags, &response,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if tags != "" {
		json.Unmarshal([]byte(tags), &def.Tags)
	}
	if response != "" {
		json.Unmarshal([]byte(response), &def.Response)
	}
	return &def, nil
}

// ListFindingDefs retrieves all catalog entries for a tenant ordered by id.
func (r *SQLRepository) ListFindingDefs(ctx context.Context, tenantID string) ([]*domain.FindingDef, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT finding_id, title, system_group, space_group, tags, response
		FROM finding_defs
		WHERE tenant_id = ?
		ORDER BY finding_id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*domain.FindingDef
	for rows.Next() {
		var def domain.FindingDef
		var tags, response string
		if err := rows.Scan(
			&def.FindingID, &def.Title, &def.SystemGroup, &def.SpaceGroup,
			&tags, &response,
		); err != nil {
			return nil, err
		}
		if tags != "" {
			json.Unmarshal([]byte(tags), &def.Tags)
		}
		if response != "" {
			json.Unmarshal([]byte(response), &def.Response)
		}
		defs = append(defs, &def)
	}
	return defs, rows.Err()
}

// SaveSeedProfile upserts the seed 9-dimension profile for a finding.
func (r *SQLRepository) SaveSeedProfile(ctx context.Context, tenantID string, findingID string, profile *domain.Profile) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	body, _ := json.Marshal(profile)

	query := `
		INSERT INTO seed_profiles (finding_id, tenant_id, profile, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(finding_id, tenant_id) DO UPDATE SET
			profile = excluded.profile,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		findingID, tenantID, string(body), time.Now().UTC())
	return err
}

// ListSeedProfiles returns all seed profiles for a tenant keyed by finding.
func (r *SQLRepository) ListSeedProfiles(ctx context.Context, tenantID string) (map[string]domain.Profile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT finding_id, profile FROM seed_profiles WHERE tenant_id = ?`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.Profile)
	for rows.Next() {
		var findingID, body string
		if err := rows.Scan(&findingID, &body); err != nil {
			return nil, err
		}
		var p domain.Profile
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return nil, fmt.Errorf("seed profile %s: %w", findingID, err)
		}
		out[findingID] = p
	}
	return out, rows.Err()
}

// GetOverrideState loads the full override history for one finding and
// derives the active/draft pointers. A finding with no rows yields an empty
// state, not ErrNotFound.
func (r *SQLRepository) GetOverrideState(ctx context.Context, tenantID string, findingID string) (*domain.OverrideState, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT finding_id, version, dimensions, note, updated_by, created_at, active, draft
		FROM dimension_overrides
		WHERE tenant_id = ? AND finding_id = ?
		ORDER BY version
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, findingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOverrideState(rows)
}

// ListOverrideStates loads override state for every finding with history.
func (r *SQLRepository) ListOverrideStates(ctx context.Context, tenantID string) (map[string]*domain.OverrideState, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT finding_id, version, dimensions, note, updated_by, created_at, active, draft
		FROM dimension_overrides
		WHERE tenant_id = ?
		ORDER BY finding_id, version
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := map[string][]domain.DimensionOverride{}
	for rows.Next() {
		ov, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		grouped[ov.FindingID] = append(grouped[ov.FindingID], ov)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.OverrideState, len(grouped))
	for findingID, history := range grouped {
		sort.Slice(history, func(i, j int) bool { return history[i].Version < history[j].Version })
		out[findingID] = buildState(history)
	}
	return out, nil
}

// SaveDraft replaces the finding's draft row. Published rows are untouched.
func (r *SQLRepository) SaveDraft(ctx context.Context, tenantID string, ov *domain.DimensionOverride) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	del := `DELETE FROM dimension_overrides WHERE tenant_id = ? AND finding_id = ? AND draft = 1`
	if _, err := tx.ExecContext(ctx, r.rebind(del), tenantID, ov.FindingID); err != nil {
		return err
	}

	dims, _ := json.Marshal(ov.Dimensions)
	ins := `
		INSERT INTO dimension_overrides (
			tenant_id, finding_id, version, dimensions, note, updated_by,
			created_at, active, draft
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, 1)
	`
	if _, err := tx.ExecContext(ctx, r.rebind(ins),
		tenantID, ov.FindingID, ov.Version, string(dims),
		ov.Note, ov.UpdatedBy, ov.CreatedAt,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// DiscardDraft deletes the draft row, if any.
func (r *SQLRepository) DiscardDraft(ctx context.Context, tenantID string, findingID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `DELETE FROM dimension_overrides WHERE tenant_id = ? AND finding_id = ? AND draft = 1`
	_, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, findingID)
	return err
}

// Publish promotes the draft with exactly the given version to active. A
// missing or superseded draft version yields ErrConflict and no change.
func (r *SQLRepository) Publish(ctx context.Context, tenantID string, findingID string, version int) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	promote := `
		UPDATE dimension_overrides
		SET draft = 0, active = 1
		WHERE tenant_id = ? AND finding_id = ? AND version = ? AND draft = 1
	`
	result, err := tx.ExecContext(ctx, r.rebind(promote), tenantID, findingID, version)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: draft version %d for finding %s", domain.ErrConflict, version, findingID)
	}

	demote := `
		UPDATE dimension_overrides
		SET active = 0
		WHERE tenant_id = ? AND finding_id = ? AND active = 1 AND version != ?
	`
	if _, err := tx.ExecContext(ctx, r.rebind(demote), tenantID, findingID, version); err != nil {
		return err
	}

	return tx.Commit()
}

// InsertVersion appends a new override version (the rollback or reset copy),
// deactivating the previous active row. History is never rewritten.
func (r *SQLRepository) InsertVersion(ctx context.Context, tenantID string, ov *domain.DimensionOverride) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	demote := `UPDATE dimension_overrides SET active = 0 WHERE tenant_id = ? AND finding_id = ? AND active = 1`
	if _, err := tx.ExecContext(ctx, r.rebind(demote), tenantID, ov.FindingID); err != nil {
		return err
	}

	active := 0
	if ov.Active {
		active = 1
	}
	dims, _ := json.Marshal(ov.Dimensions)

	ins := `
		INSERT INTO dimension_overrides (
			tenant_id, finding_id, version, dimensions, note, updated_by,
			created_at, active, draft
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
	`
	if _, err := tx.ExecContext(ctx, r.rebind(ins),
		tenantID, ov.FindingID, ov.Version, string(dims),
		ov.Note, ov.UpdatedBy, ov.CreatedAt, active,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// SaveResolution stores a resolution result with tenant isolation.
func (r *SQLRepository) SaveResolution(ctx context.Context, tenantID string, res *domain.Resolution) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	findings, _ := json.Marshal(res.Findings)
	selection, _ := json.Marshal(res.Selection)
	plan, _ := json.Marshal(res.Plan)
	diagnostics, _ := json.Marshal(res.Diagnostics)
	metadata, _ := json.Marshal(res.Metadata)

	query := `
		INSERT INTO resolutions (
			id, tenant_id, inspection_id, findings, selection, plan,
			diagnostics, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		res.ID, tenantID, res.InspectionID,
		string(findings), string(selection), string(plan),
		string(diagnostics), string(metadata), res.CreatedAt,
	)
	return err
}

// GetResolution retrieves a resolution by ID with tenant isolation.
func (r *SQLRepository) GetResolution(ctx context.Context, tenantID string, resID string) (*domain.Resolution, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, inspection_id, findings, selection, plan,
			   diagnostics, metadata, created_at
		FROM resolutions
		WHERE tenant_id = ? AND id = ?
	`

	var res domain.Resolution
	var findings, selection, plan, diagnostics, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, resID).Scan(
		&res.ID, &res.TenantID, &res.InspectionID,
		&findings, &selection, &plan, &diagnostics, &metadata,
		&res.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(findings), &res.Findings)
	if selection != "" && selection != "null" {
		json.Unmarshal([]byte(selection), &res.Selection)
	}
	if plan != "" && plan != "null" {
		json.Unmarshal([]byte(plan), &res.Plan)
	}
	if diagnostics != "" && diagnostics != "null" {
		json.Unmarshal([]byte(diagnostics), &res.Diagnostics)
	}
	json.Unmarshal([]byte(metadata), &res.Metadata)

	return &res, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func scanOverride(rows *sql.Rows) (domain.DimensionOverride, error) {
	var ov domain.DimensionOverride
	var dims string
	var active, draft int
	if err := rows.Scan(
		&ov.FindingID, &ov.Version, &dims, &ov.Note, &ov.UpdatedBy,
		&ov.CreatedAt, &active, &draft,
	); err != nil {
		return ov, err
	}
	ov.Active = active == 1
	ov.Draft = draft == 1
	if err := json.Unmarshal([]byte(dims), &ov.Dimensions); err != nil {
		return ov, fmt.Errorf("override %s v%d: %w", ov.FindingID, ov.Version, err)
	}
	return ov, nil
}

func scanOverrideState(rows *sql.Rows) (*domain.OverrideState, error) {
	var history []domain.DimensionOverride
	for rows.Next() {
		ov, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, ov)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buildState(history), nil
}

func buildState(history []domain.DimensionOverride) *domain.OverrideState {
	state := &domain.OverrideState{History: history}
	for i := range state.History {
		ov := &state.History[i]
		switch {
		case ov.Draft:
			state.Draft = ov
		case ov.Active:
			state.Active = ov
		}
	}
	return state
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
