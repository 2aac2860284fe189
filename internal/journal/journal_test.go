package journal

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/plantnode/internal/infrastructure/logging"
	"github.com/nerrad567/plantnode/internal/sensor"
)

// setupTestDB creates an in-memory SQLite database with the readings table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// Each new connection to :memory: is a fresh database
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id TEXT NOT NULL,
			sensor TEXT NOT NULL,
			value INTEGER NOT NULL,
			text TEXT NOT NULL,
			taken_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func snapshotAt(at time.Time, readings ...sensor.Reading) sensor.Snapshot {
	return sensor.Snapshot{TakenAt: at, Readings: readings}
}

func TestRecordAndRecent(t *testing.T) {
	j := New(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	if err := j.Record(ctx, "cycle-1", snapshotAt(base,
		sensor.Reading{Kind: sensor.AirTemperature, Value: 21},
		sensor.Reading{Kind: sensor.SoilMoisture, Value: int(sensor.Dry)},
	)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := j.Record(ctx, "cycle-1", snapshotAt(base.Add(500*time.Millisecond),
		sensor.Reading{Kind: sensor.AirTemperature, Value: 22},
	)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := j.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}

	newest := entries[0]
	if newest.Sensor != "temperature" || newest.Value != 22 || newest.Text != "22" {
		t.Errorf("newest = %+v", newest)
	}
	if !newest.TakenAt.Equal(base.Add(500 * time.Millisecond)) {
		t.Errorf("TakenAt = %v, want %v", newest.TakenAt, base.Add(500*time.Millisecond))
	}
	if newest.CycleID != "cycle-1" {
		t.Errorf("CycleID = %q", newest.CycleID)
	}

	moisture, err := j.Recent(ctx, "moisture", 10)
	if err != nil {
		t.Fatalf("Recent(moisture) error = %v", err)
	}
	if len(moisture) != 1 || moisture[0].Text != "Dry" {
		t.Errorf("Recent(moisture) = %+v", moisture)
	}
}

func TestRecordValidation(t *testing.T) {
	j := New(setupTestDB(t))
	ctx := context.Background()

	err := j.Record(ctx, "", snapshotAt(time.Now(), sensor.Reading{Kind: sensor.AirHumidity, Value: 40}))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Record() without cycle id error = %v, want ErrInvalidArgument", err)
	}

	// Empty snapshot is a no-op
	if err := j.Record(ctx, "cycle-1", sensor.Snapshot{}); err != nil {
		t.Errorf("Record(empty) error = %v", err)
	}
	entries, _ := j.Recent(ctx, "", 0)
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}

func TestRecentLimits(t *testing.T) {
	j := New(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	for i := range 60 {
		snap := snapshotAt(base.Add(time.Duration(i)*time.Second),
			sensor.Reading{Kind: sensor.BatteryVoltage, Value: 3700 + i})
		if err := j.Record(ctx, "cycle-1", snap); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		limit int
		want  int
	}{
		{0, defaultRecentLimit},
		{-1, defaultRecentLimit},
		{5, 5},
		{1000, 60},
	}
	for _, tt := range tests {
		entries, err := j.Recent(ctx, "", tt.limit)
		if err != nil {
			t.Fatalf("Recent(%d) error = %v", tt.limit, err)
		}
		if len(entries) != tt.want {
			t.Errorf("Recent(%d) = %d entries, want %d", tt.limit, len(entries), tt.want)
		}
	}

	if _, err := j.Recent(ctx, "rainfall", 5); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Recent(unknown) error = %v, want ErrInvalidArgument", err)
	}
}

func TestPrune(t *testing.T) {
	j := New(setupTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	old := snapshotAt(now.Add(-40*24*time.Hour), sensor.Reading{Kind: sensor.WaterLevel, Value: int(sensor.Empty)})
	fresh := snapshotAt(now.Add(-time.Hour), sensor.Reading{Kind: sensor.WaterLevel, Value: int(sensor.Full)})
	for _, snap := range []sensor.Snapshot{old, fresh} {
		if err := j.Record(ctx, "cycle-1", snap); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	n, err := j.Prune(ctx, now, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() deleted %d, want 1", n)
	}

	entries, _ := j.Recent(ctx, "", 10)
	if len(entries) != 1 || entries[0].Text != "Full" {
		t.Errorf("remaining = %+v", entries)
	}

	if _, err := j.Prune(ctx, now, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Prune(0) error = %v, want ErrInvalidArgument", err)
	}
}

func TestCycleSink(t *testing.T) {
	db := setupTestDB(t)
	j := New(db)
	ctx := context.Background()

	sink := j.ForCycle("cycle-7", logging.Discard())
	sink.HandleSnapshot(ctx, snapshotAt(time.Now(), sensor.Reading{Kind: sensor.PumpTrigger, Value: 1}))

	entries, err := j.Recent(ctx, "pumptrigger", 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 || entries[0].CycleID != "cycle-7" || entries[0].Text != "true" {
		t.Errorf("entries = %+v", entries)
	}

	// A broken table is logged, not returned
	if _, err := db.Exec("DROP TABLE readings"); err != nil {
		t.Fatalf("dropping table: %v", err)
	}
	sink.HandleSnapshot(ctx, snapshotAt(time.Now(), sensor.Reading{Kind: sensor.PumpTrigger, Value: 0}))
}
