package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/plantnode/internal/sensor"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500

	// timeLayout is fixed-width UTC so stored stamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrInvalidArgument is returned for malformed requests.
var ErrInvalidArgument = errors.New("invalid argument")

// Logger is the logging interface used by the journal sink.
type Logger interface {
	Warn(msg string, args ...any)
}

// Entry is one stored reading.
type Entry struct {
	ID      int64     `json:"id"`
	CycleID string    `json:"cycle_id"`
	Sensor  string    `json:"sensor"`
	Value   int       `json:"value"`
	Text    string    `json:"text"`
	TakenAt time.Time `json:"taken_at"`
}

// Journal stores readings in the readings table.
type Journal struct {
	db *sql.DB
}

// New creates a Journal over an open connection with the schema applied.
func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Record stores every reading of snap under cycleID in one transaction.
func (j *Journal) Record(ctx context.Context, cycleID string, snap sensor.Snapshot) error {
	if cycleID == "" {
		return fmt.Errorf("%w: cycle id is required", ErrInvalidArgument)
	}
	if snap.Len() == 0 {
		return nil
	}

	takenAt := snap.TakenAt
	if takenAt.IsZero() {
		takenAt = time.Now()
	}
	stamp := takenAt.UTC().Format(timeLayout)

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	for _, r := range snap.Readings {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO readings (cycle_id, sensor, value, text, taken_at) VALUES (?, ?, ?, ?, ?)",
			cycleID,
			r.Kind.Key(),
			r.Value,
			r.Text(),
			stamp,
		); err != nil {
			return fmt.Errorf("inserting reading %s: %w", r.Kind.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing readings: %w", err)
	}
	return nil
}

// Recent returns the newest entries first. An empty sensorKey means all
// sensors. limit defaults to 50 and is clamped to 500.
func (j *Journal) Recent(ctx context.Context, sensorKey string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	query := `SELECT id, cycle_id, sensor, value, text, taken_at FROM readings`
	args := []any{}
	if sensorKey != "" {
		if _, ok := sensor.KindByKey(sensorKey); !ok {
			return nil, fmt.Errorf("%w: unknown sensor %q", ErrInvalidArgument, sensorKey)
		}
		query += ` WHERE sensor = ?`
		args = append(args, sensorKey)
	}
	query += ` ORDER BY taken_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var takenAt string
		if err := rows.Scan(&e.ID, &e.CycleID, &e.Sensor, &e.Value, &e.Text, &takenAt); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		e.TakenAt, err = time.Parse(timeLayout, takenAt)
		if err != nil {
			return nil, fmt.Errorf("parsing taken_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return entries, nil
}

// Prune deletes entries taken before now minus olderThan and reports how
// many rows went.
func (j *Journal) Prune(ctx context.Context, now time.Time, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: olderThan must be positive", ErrInvalidArgument)
	}

	cutoff := now.UTC().Add(-olderThan).Format(timeLayout)
	result, err := j.db.ExecContext(ctx,
		"DELETE FROM readings WHERE taken_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting readings: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// CycleSink records snapshots for one cycle. It implements broker.Sink.
type CycleSink struct {
	journal *Journal
	cycleID string
	logger  Logger
}

// ForCycle returns a sink that records under cycleID.
func (j *Journal) ForCycle(cycleID string, logger Logger) *CycleSink {
	return &CycleSink{journal: j, cycleID: cycleID, logger: logger}
}

// HandleSnapshot records snap. Failures are logged and dropped.
func (s *CycleSink) HandleSnapshot(ctx context.Context, snap sensor.Snapshot) {
	if err := s.journal.Record(ctx, s.cycleID, snap); err != nil {
		s.logger.Warn("journal write failed", "cycle_id", s.cycleID, "error", err)
	}
}
