package migrate

import (
	"time"

	"github.com/gorgen-health/migrator/pkg/normalize"
)

const defaultBatchSize = 500

// Options carries the run-scoped configuration threaded into every
// migration component: tenant scope, validation date range, synonym tables
// and run mode. There is no process-wide migration state.
type Options struct {
	TenantID  int64
	BatchSize int

	// Limit caps the number of processed rows; zero means all.
	Limit int

	// DryRun resolves, validates and counts but never writes.
	DryRun bool

	// Upsert updates existing patients on identifier conflict instead of
	// suffixing a new identifier.
	Upsert bool

	// Verbose traces every processed row.
	Verbose bool

	MinBirthDate time.Time
	MaxBirthDate time.Time

	Mappings normalize.Mappings
}

func (o Options) Mode() string {
	switch {
	case o.DryRun:
		return "simulate"
	case o.Upsert:
		return "upsert"
	default:
		return "production"
	}
}

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return defaultBatchSize
	}
	return o.BatchSize
}

func (o Options) limitRows(n int) int {
	if o.Limit > 0 && o.Limit < n {
		return o.Limit
	}
	return n
}
