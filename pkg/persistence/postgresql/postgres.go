// Package postgresql provides PostgreSQL persistence for certification
// workflows.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/lib/pq" // postgres driver

	"github.com/mbarrin/certflow/pkg/models"
	"github.com/mbarrin/certflow/pkg/persistence"
	"github.com/mbarrin/certflow/pkg/persistence/sqlbase"
)

// Repository implements persistence.Repository on PostgreSQL. Workflow
// sub-documents (git, stages, stage results, metadata, notification) are
// stored as JSONB so list filters can reach into them without joins.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRepository connects to PostgreSQL and runs pending migrations.
func NewRepository(ctx context.Context, logger *slog.Logger, databaseURL string) (*Repository, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Repository{
		db:     database,
		logger: logger,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close(ctx context.Context) error {
	if r.db != nil {
		err := r.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (r *Repository) HealthCheck(ctx context.Context) error {
	err := r.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Create inserts a new workflow record.
func (r *Repository) Create(ctx context.Context, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflows (
			id, correlate_run_id, domain, status,
			git, stages, stage_results, metadata, notification,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	columns, err := marshalWorkflow(workflow)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.CorrelateRunID,
		string(workflow.Domain),
		string(workflow.Status),
		columns.git,
		columns.stages,
		columns.stageResults,
		columns.metadata,
		columns.notification,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("create", workflow.ID, fmt.Errorf("failed to insert workflow: %w", err))
	}

	return nil
}

// Update replaces the full workflow record under its id.
func (r *Repository) Update(ctx context.Context, workflow *models.Workflow) error {
	query := `
		UPDATE workflows SET
			correlate_run_id = $2,
			domain = $3,
			status = $4,
			git = $5,
			stages = $6,
			stage_results = $7,
			metadata = $8,
			notification = $9,
			updated_at = $10
		WHERE id = $1
	`

	columns, err := marshalWorkflow(workflow)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.CorrelateRunID,
		string(workflow.Domain),
		string(workflow.Status),
		columns.git,
		columns.stages,
		columns.stageResults,
		columns.metadata,
		columns.notification,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("update", workflow.ID, fmt.Errorf("failed to update workflow: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("update", workflow.ID, fmt.Errorf("failed to read affected rows: %w", err))
	}

	if affected == 0 {
		return persistence.NewWorkflowError("update", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// GetByID returns the workflow, or (nil, nil) when the id is unknown.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := selectColumns + " FROM workflows WHERE id = $1"

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewWorkflowError("get", id, err)
	}

	return workflow, nil
}

// List returns matching workflows in insertion order. Filters are pushed
// into SQL; the JSONB columns carry the git and metadata fields the
// filters reach into.
func (r *Repository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Workflow, error) {
	opts.Normalize()

	conditions := make([]string, 0, 7)
	args := make([]any, 0, 7)

	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}

	if opts.Domain != nil {
		addCondition("domain = ?", string(*opts.Domain))
	}

	if opts.Author != "" {
		addCondition("LOWER(git->>'author') = LOWER(?)", opts.Author)
	}

	if opts.Branch != "" {
		addCondition("git->>'branch' = ?", opts.Branch)
	}

	if opts.CommitSHA != "" {
		addCondition("git->>'commit_sha' = ?", opts.CommitSHA)
	}

	if opts.Status != nil {
		addCondition("status = ?", string(*opts.Status))
	}

	if opts.ScriptPath != "" {
		addCondition("metadata->>'script_path' = ?", opts.ScriptPath)
	}

	if opts.Stage != nil {
		// jsonb_exists instead of the ? operator, which collides with
		// placeholder rewriting.
		addCondition("jsonb_exists(stage_results, ?)", string(*opts.Stage))
	}

	query := selectColumns + " FROM workflows"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, opts.Limit, opts.Offset)
	query += fmt.Sprintf(" ORDER BY created_at ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

const selectColumns = `
	SELECT
		id
	  , correlate_run_id
	  , domain
	  , status
	  , git
	  , stages
	  , stage_results
	  , metadata
	  , notification
	  , created_at
	  , updated_at
`

type workflowColumns struct {
	git          []byte
	stages       []byte
	stageResults []byte
	metadata     []byte
	notification []byte
}

func marshalWorkflow(workflow *models.Workflow) (*workflowColumns, error) {
	gitJSON, err := json.Marshal(workflow.Git)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal git info: %w", err)
	}

	stagesJSON, err := json.Marshal(workflow.Stages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stages: %w", err)
	}

	resultsJSON, err := json.Marshal(workflow.StageResults)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stage results: %w", err)
	}

	metadataJSON, err := json.Marshal(workflow.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var notificationJSON []byte

	if workflow.Notification != nil {
		notificationJSON, err = json.Marshal(workflow.Notification)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notification config: %w", err)
		}
	}

	return &workflowColumns{
		git:          gitJSON,
		stages:       stagesJSON,
		stageResults: resultsJSON,
		metadata:     metadataJSON,
		notification: notificationJSON,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow         models.Workflow
		gitJSON          []byte
		stagesJSON       []byte
		resultsJSON      []byte
		metadataJSON     []byte
		notificationJSON []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.CorrelateRunID,
		&workflow.Domain,
		&workflow.Status,
		&gitJSON,
		&stagesJSON,
		&resultsJSON,
		&metadataJSON,
		&notificationJSON,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(gitJSON, &workflow.Git)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal git info: %w", err)
	}

	err = json.Unmarshal(stagesJSON, &workflow.Stages)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal stages: %w", err)
	}

	err = json.Unmarshal(resultsJSON, &workflow.StageResults)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal stage results: %w", err)
	}

	if len(metadataJSON) > 0 {
		err = json.Unmarshal(metadataJSON, &workflow.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	if len(notificationJSON) > 0 {
		workflow.Notification = &models.NotificationConfig{}

		err = json.Unmarshal(notificationJSON, workflow.Notification)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification config: %w", err)
		}
	}

	return &workflow, nil
}
