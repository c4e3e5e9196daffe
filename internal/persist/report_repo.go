package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/quarkgo/quark/internal/core/schedule"
	coresys "github.com/quarkgo/quark/internal/core/system"
)

// RunRow is one stored list run.
type RunRow struct {
	ID        int64
	Tick      uint64
	State     string
	List      string
	Systems   int
	Waves     int
	Workers   int
	Peak      int
	Failed    int
	Cancelled int
	Elapsed   time.Duration
	StartedAt time.Time
}

// OutcomeRow is one system's outcome inside a stored run.
type OutcomeRow struct {
	SystemID int
	Name     string
	State    string
	Wave     int
	Seq      int
	Worker   int
	Duration time.Duration
	Error    *string
}

// ReportRepo stores executor reports. It implements the runner's report
// sink; with OnlyFailures set, clean runs are skipped.
type ReportRepo struct {
	db           *DB
	log          *zap.Logger
	OnlyFailures bool
}

func NewReportRepo(db *DB, log *zap.Logger) *ReportRepo {
	return &ReportRepo{db: db, log: log}
}

var _ coresys.ReportSink = (*ReportRepo)(nil)

// Record writes the run and all of its outcomes in one transaction.
func (r *ReportRepo) Record(ctx context.Context, rec coresys.Record) error {
	if r.OnlyFailures && rec.Report.OK() {
		return nil
	}
	run, outcomes := buildRows(rec)

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("report begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`INSERT INTO schedule_runs (tick, state, list, systems, waves, workers, peak, failed, cancelled, elapsed_us, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		int64(run.Tick), run.State, run.List, run.Systems, run.Waves, run.Workers, run.Peak,
		run.Failed, run.Cancelled, run.Elapsed.Microseconds(), run.StartedAt,
	).Scan(&run.ID); err != nil {
		return fmt.Errorf("report insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, o := range outcomes {
		batch.Queue(
			`INSERT INTO schedule_outcomes (run_id, system_id, name, state, wave, seq, worker, duration_us, error)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			run.ID, o.SystemID, o.Name, o.State, o.Wave, o.Seq, o.Worker, o.Duration.Microseconds(), o.Error,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("report insert outcomes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("report commit: %w", err)
	}
	r.log.Debug("report stored", zap.Int64("run", run.ID), zap.String("list", run.List), zap.Int("outcomes", len(outcomes)))
	return nil
}

// RecentRuns returns the latest runs of a list, newest first.
func (r *ReportRepo) RecentRuns(ctx context.Context, list string, limit int) ([]RunRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, tick, state, list, systems, waves, workers, peak, failed, cancelled, elapsed_us, started_at
		 FROM schedule_runs WHERE list = $1 ORDER BY id DESC LIMIT $2`,
		list, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var (
			row     RunRow
			tick    int64
			elapsed int64
		)
		if err := rows.Scan(&row.ID, &tick, &row.State, &row.List, &row.Systems, &row.Waves,
			&row.Workers, &row.Peak, &row.Failed, &row.Cancelled, &elapsed, &row.StartedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		row.Tick = uint64(tick)
		row.Elapsed = time.Duration(elapsed) * time.Microsecond
		out = append(out, row)
	}
	return out, rows.Err()
}

// buildRows flattens a record into table rows.
func buildRows(rec coresys.Record) (RunRow, []OutcomeRow) {
	rep := rec.Report
	run := RunRow{
		Tick:      rec.Tick,
		State:     rec.State,
		List:      rec.List,
		Systems:   len(rep.Outcomes),
		Workers:   rep.Workers,
		Peak:      rep.PeakConcurrency,
		Failed:    rep.Count(schedule.Failed),
		Cancelled: rep.Count(schedule.Cancelled),
		Elapsed:   rep.Elapsed,
		StartedAt: rep.Started,
	}
	if rec.Graph != nil {
		run.Waves = len(rec.Graph.Waves())
	}

	outcomes := make([]OutcomeRow, len(rep.Outcomes))
	for i, o := range rep.Outcomes {
		row := OutcomeRow{
			SystemID: int(o.System),
			Name:     o.Name,
			State:    o.State.String(),
			Wave:     o.Wave,
			Seq:      o.Seq,
			Worker:   o.Worker,
			Duration: o.Duration,
		}
		if o.Err != nil {
			msg := o.Err.Error()
			row.Error = &msg
		}
		outcomes[i] = row
	}
	return run, outcomes
}
