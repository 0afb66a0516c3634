package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// defaultRunLimit caps ListRuns when the caller passes a non-positive limit.
	defaultRunLimit = 50

	// timeFormat is fixed width so timestamps sort as text and keep
	// nanoseconds across a round trip.
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// Repository defines the interface for project persistence operations.
type Repository interface {
	// GetByID retrieves a project by its unique identifier.
	// Returns ErrProjectNotFound if the project does not exist.
	GetByID(ctx context.Context, id string) (*Project, error)

	// List retrieves all projects ordered by name.
	List(ctx context.Context) ([]Project, error)

	// Create inserts a new project.
	// Returns ErrProjectExists if a project with the same ID already exists.
	Create(ctx context.Context, p *Project) error

	// Update modifies an existing project.
	// Returns ErrProjectNotFound if the project does not exist.
	Update(ctx context.Context, p *Project) error

	// Delete removes a project and its runs.
	// Returns ErrProjectNotFound if the project does not exist.
	Delete(ctx context.Context, id string) error

	// RecordRun stores an allocation run.
	RecordRun(ctx context.Context, run *Run) error

	// ListRuns returns the most recent runs of a project, newest first.
	ListRuns(ctx context.Context, projectID string, limit int) ([]Run, error)

	// LatestRun returns the newest run of a project.
	// Returns ErrRunNotFound if the project has never been allocated.
	LatestRun(ctx context.Context, projectID string) (*Run, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the
// projects and allocation_runs tables migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const projectColumns = `id, name, description, mcu_id, spec, created_at, updated_at`

// GetByID retrieves a project by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

	p, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("querying project by id: %w", err)
	}
	return p, nil
}

// List retrieves all projects.
func (r *SQLiteRepository) List(ctx context.Context) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return projects, nil
}

// Create inserts a new project.
func (r *SQLiteRepository) Create(ctx context.Context, p *Project) error {
	specJSON, err := json.Marshal(p.Spec)
	if err != nil {
		return fmt.Errorf("marshalling spec: %w", err)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = now

	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.MCUID,
		string(specJSON),
		p.CreatedAt.Format(timeFormat),
		p.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrProjectExists
		}
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// Update modifies an existing project. CreatedAt is never changed.
func (r *SQLiteRepository) Update(ctx context.Context, p *Project) error {
	specJSON, err := json.Marshal(p.Spec)
	if err != nil {
		return fmt.Errorf("marshalling spec: %w", err)
	}

	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE projects SET
			name = ?, description = ?, mcu_id = ?, spec = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		p.Name,
		p.Description,
		p.MCUID,
		string(specJSON),
		p.UpdatedAt.Format(timeFormat),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	return requireRow(result, ErrProjectNotFound)
}

// Delete removes a project by ID. Its runs are removed by the foreign key.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return requireRow(result, ErrProjectNotFound)
}

// RecordRun stores an allocation run. The project must exist.
func (r *SQLiteRepository) RecordRun(ctx context.Context, run *Run) error {
	exists, err := r.exists(ctx, run.ProjectID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrProjectNotFound
	}

	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("marshalling result: %w", err)
	}
	specJSON, err := json.Marshal(run.Spec)
	if err != nil {
		return fmt.Errorf("marshalling spec: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO allocation_runs (
			id, project_id, mcu_id, allocated, conflicts, warnings, result, spec, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.ProjectID,
		run.MCUID,
		run.Allocated,
		run.Conflicts,
		run.Warnings,
		string(resultJSON),
		string(specJSON),
		run.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting allocation run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs of a project, newest first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, projectID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	query := `
		SELECT id, project_id, mcu_id, allocated, conflicts, warnings, result, spec, created_at
		FROM allocation_runs
		WHERE project_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying allocation runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning allocation run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating allocation runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the newest run of a project.
func (r *SQLiteRepository) LatestRun(ctx context.Context, projectID string) (*Run, error) {
	runs, err := r.ListRuns(ctx, projectID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

// exists checks if a project with the given ID exists.
func (r *SQLiteRepository) exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking project exists: %w", err)
	}
	return count > 0, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(scanner rowScanner) (*Project, error) {
	var p Project
	var specJSON, createdAt, updatedAt string
	var mcuID string

	if err := scanner.Scan(&p.ID, &p.Name, &p.Description, &mcuID, &specJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(specJSON), &p.Spec); err != nil {
		return nil, fmt.Errorf("unmarshalling spec: %w", err)
	}
	p.MCUID = mcuID

	var err error
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &p, nil
}

func scanRun(scanner rowScanner) (*Run, error) {
	var run Run
	var resultJSON, specJSON, createdAt string

	err := scanner.Scan(
		&run.ID,
		&run.ProjectID,
		&run.MCUID,
		&run.Allocated,
		&run.Conflicts,
		&run.Warnings,
		&resultJSON,
		&specJSON,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(resultJSON), &run.Result); err != nil {
		return nil, fmt.Errorf("unmarshalling result: %w", err)
	}
	if err := json.Unmarshal([]byte(specJSON), &run.Spec); err != nil {
		return nil, fmt.Errorf("unmarshalling spec: %w", err)
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &run, nil
}

// requireRow maps zero affected rows to notFound.
func requireRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
