package repository

import (
	"context"
	"time"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/history"
)

// HistoryRepository manages the append-only transition ledger. Entries are
// never updated or deleted; retention is an external concern.
type HistoryRepository interface {
	// Append adds a new entry to the ledger
	Append(ctx context.Context, entry *history.Entry) error

	// FindByJob retrieves all entries for a job ordered by timestamp ascending
	FindByJob(ctx context.Context, jobID model.JobID) ([]*history.Entry, error)

	// FindSince retrieves all entries recorded at or after the given time,
	// ordered by timestamp ascending
	FindSince(ctx context.Context, since time.Time) ([]*history.Entry, error)
}
