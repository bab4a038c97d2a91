package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shaiso/Flowkit/internal/domain"
)

// finalSummaryKey — ключ состояния с итогом REDUCE.
const finalSummaryKey = "final_summary"

// ArchivedRun — снимок завершённого workflow.
type ArchivedRun struct {
	WorkflowID string
	Name       string
	Status     domain.WorkflowStatus

	// Snapshot — полный JSON workflow на момент архивации.
	Snapshot domain.Value

	// FinalSummary — final_summary из состояния, если был.
	FinalSummary domain.Value

	MapResults int64
	MapErrors  int64

	StartedAt   *time.Time
	CompletedAt *time.Time
	ArchivedAt  time.Time
}

// NewArchivedRun строит запись из workflow. Незавершённый workflow
// отклоняется с ErrNotTerminal, если не задан force.
func NewArchivedRun(wf *domain.Workflow, at time.Time, force bool) (*ArchivedRun, error) {
	if !force && !wf.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotTerminal, wf.ID, wf.Status)
	}

	snapshot, err := json.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow %s: %w", wf.ID, err)
	}

	run := &ArchivedRun{
		WorkflowID:  wf.ID,
		Name:        wf.Name,
		Status:      wf.Status,
		Snapshot:    snapshot,
		StartedAt:   wf.StartedAt,
		CompletedAt: wf.CompletedAt,
		ArchivedAt:  at.UTC(),
	}
	if v, ok := wf.State[finalSummaryKey]; ok && !v.IsNull() {
		run.FinalSummary = v
	}
	return run, nil
}

// ArchiveRepo хранит снимки в таблице workflow_archive.
type ArchiveRepo struct {
	db DBTX
}

// NewArchiveRepo создаёт ArchiveRepo.
func NewArchiveRepo(db DBTX) *ArchiveRepo {
	return &ArchiveRepo{db: db}
}

// EnsureSchema создаёт таблицу, если её нет.
func (r *ArchiveRepo) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS workflow_archive (
			workflow_id   TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			status        TEXT NOT NULL,
			snapshot      JSONB NOT NULL,
			final_summary JSONB,
			map_results   BIGINT NOT NULL DEFAULT 0,
			map_errors    BIGINT NOT NULL DEFAULT 0,
			started_at    TIMESTAMPTZ,
			completed_at  TIMESTAMPTZ,
			archived_at   TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create workflow_archive: %w", err)
	}
	return nil
}

// Save вставляет или перезаписывает снимок workflow.
func (r *ArchiveRepo) Save(ctx context.Context, run *ArchivedRun) error {
	query := `
		INSERT INTO workflow_archive (workflow_id, name, status, snapshot, final_summary,
		                              map_results, map_errors, started_at, completed_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (workflow_id) DO UPDATE
		SET name = EXCLUDED.name,
		    status = EXCLUDED.status,
		    snapshot = EXCLUDED.snapshot,
		    final_summary = EXCLUDED.final_summary,
		    map_results = EXCLUDED.map_results,
		    map_errors = EXCLUDED.map_errors,
		    started_at = EXCLUDED.started_at,
		    completed_at = EXCLUDED.completed_at,
		    archived_at = EXCLUDED.archived_at
	`
	_, err := r.db.Exec(ctx, query,
		run.WorkflowID,
		run.Name,
		string(run.Status),
		[]byte(run.Snapshot),
		nullJSON(run.FinalSummary),
		run.MapResults,
		run.MapErrors,
		run.StartedAt,
		run.CompletedAt,
		run.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("save archive %s: %w", run.WorkflowID, err)
	}
	return nil
}

const selectArchive = `
	SELECT workflow_id, name, status, snapshot, final_summary,
	       map_results, map_errors, started_at, completed_at, archived_at
	FROM workflow_archive
`

// Get возвращает снимок по ID workflow.
func (r *ArchiveRepo) Get(ctx context.Context, workflowID string) (*ArchivedRun, error) {
	run, err := scanArchive(r.db.QueryRow(ctx, selectArchive+` WHERE workflow_id = $1`, workflowID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("archive %s: %w", workflowID, ErrNotFound)
		}
		return nil, fmt.Errorf("get archive %s: %w", workflowID, err)
	}
	return run, nil
}

// List возвращает последние limit снимков, новые первыми.
func (r *ArchiveRepo) List(ctx context.Context, limit int) ([]ArchivedRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, selectArchive+` ORDER BY archived_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	defer rows.Close()

	var runs []ArchivedRun
	for rows.Next() {
		run, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanArchive(row pgx.Row) (*ArchivedRun, error) {
	var (
		run      ArchivedRun
		status   string
		snapshot []byte
		summary  []byte
	)
	err := row.Scan(
		&run.WorkflowID,
		&run.Name,
		&status,
		&snapshot,
		&summary,
		&run.MapResults,
		&run.MapErrors,
		&run.StartedAt,
		&run.CompletedAt,
		&run.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = domain.WorkflowStatus(status)
	run.Snapshot = snapshot
	if len(summary) > 0 {
		run.FinalSummary = summary
	}
	return &run, nil
}

func nullJSON(v domain.Value) any {
	if v.IsNull() {
		return nil
	}
	return []byte(v)
}
