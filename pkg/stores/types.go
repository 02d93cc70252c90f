package stores

import (
	"context"
	"errors"
	"time"

	"github.com/hostconform/hostconform/pkg/report"
)

// ErrNotFound is returned when a run ID has no stored report.
var ErrNotFound = errors.New("run not found")

// RunRecord is the summary row of one stored reconciliation run.
type RunRecord struct {
	// ID is the run ID.
	ID string `json:"id"`

	// Hostname is the reconciled host.
	Hostname string `json:"hostname"`

	// Mode records how the run ended (diff, dry-run, apply).
	Mode string `json:"mode"`

	// OverallStatus is the run's overall severity name.
	OverallStatus string `json:"overall_status"`

	// Generated is when the report was produced.
	Generated time.Time `json:"generated"`
}

// Store persists reconciliation reports. Persistence is a reporter-side
// concern: the reconciliation core itself never requires a store.
type Store interface {
	// Init opens the underlying database.
	Init(ctx context.Context) error

	// Migrate applies pending schema migrations.
	Migrate(ctx context.Context) error

	// SaveReport persists a finalized report.
	SaveReport(ctx context.Context, r *report.Report) error

	// ListRuns returns the most recent run records, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// GetReport loads a stored report by run ID.
	GetReport(ctx context.Context, runID string) (*report.Report, error)

	// Close closes the database.
	Close() error
}
