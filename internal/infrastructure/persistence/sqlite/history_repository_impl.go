package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldworks/jobflow/internal/domain/model"
	"github.com/fieldworks/jobflow/internal/domain/model/history"
	"github.com/fieldworks/jobflow/internal/domain/model/phase"
	"github.com/fieldworks/jobflow/internal/domain/repository"
	"github.com/fieldworks/jobflow/internal/infrastructure/transaction"
)

// HistoryRepositoryImpl implements repository.HistoryRepository with
// SQLite. The table is append-only: no UPDATE or DELETE statements exist
// in this file, and none should be added.
type HistoryRepositoryImpl struct {
	db *sql.DB
}

// NewHistoryRepository creates a new SQLite-based history repository
func NewHistoryRepository(db *sql.DB) repository.HistoryRepository {
	return &HistoryRepositoryImpl{db: db}
}

// getDB returns the appropriate database executor from context
func (r *HistoryRepositoryImpl) getDB(ctx context.Context) dbExecutor {
	if tx, ok := transaction.TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// Append adds a new entry to the ledger
func (r *HistoryRepositoryImpl) Append(ctx context.Context, entry *history.Entry) error {
	rolesJSON, err := json.Marshal(entry.ActorRoles().Strings())
	if err != nil {
		return fmt.Errorf("marshal actor roles: %w", err)
	}

	query := `
		INSERT INTO job_history (id, job_id, from_phase, to_phase, actor, actor_roles, timestamp, outcome, reason, comment, source_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	db := r.getDB(ctx)
	_, err = db.ExecContext(ctx, query,
		entry.ID(),
		entry.JobID().String(),
		phaseToNull(entry.FromPhase()),
		entry.ToPhase().String(),
		entry.Actor(),
		string(rolesJSON),
		entry.Timestamp().Format(time.RFC3339Nano),
		entry.Outcome().String(),
		entry.Reason(),
		entry.Comment(),
		entry.SourceIP(),
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// FindByJob retrieves all entries for a job ordered by timestamp ascending.
// The entry id breaks ties so same-instant entries keep insertion order.
func (r *HistoryRepositoryImpl) FindByJob(ctx context.Context, jobID model.JobID) ([]*history.Entry, error) {
	query := `
		SELECT id, job_id, from_phase, to_phase, actor, actor_roles, timestamp, outcome, reason, comment, source_ip
		FROM job_history
		WHERE job_id = ?
		ORDER BY timestamp, id
	`

	db := r.getDB(ctx)
	rows, err := db.QueryContext(ctx, query, jobID.String())
	if err != nil {
		return nil, fmt.Errorf("query history by job: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// FindSince retrieves all entries recorded at or after the given time
func (r *HistoryRepositoryImpl) FindSince(ctx context.Context, since time.Time) ([]*history.Entry, error) {
	query := `
		SELECT id, job_id, from_phase, to_phase, actor, actor_roles, timestamp, outcome, reason, comment, source_ip
		FROM job_history
		WHERE timestamp >= ?
		ORDER BY timestamp, id
	`

	db := r.getDB(ctx)
	rows, err := db.QueryContext(ctx, query, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("query history since: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func scanEntry(row rowScanner) (*history.Entry, error) {
	var (
		id        string
		jobIDStr  string
		fromPhase sql.NullString
		toPhase   string
		actor     string
		rolesJSON string
		timestamp string
		outcome   string
		reason    string
		comment   string
		sourceIP  string
	)

	if err := row.Scan(&id, &jobIDStr, &fromPhase, &toPhase, &actor, &rolesJSON, &timestamp, &outcome, &reason, &comment, &sourceIP); err != nil {
		return nil, err
	}

	jobID, err := model.NewJobIDFromString(jobIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse job ID: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp: %w", err)
	}

	var roleStrs []string
	if rolesJSON != "" {
		if err := json.Unmarshal([]byte(rolesJSON), &roleStrs); err != nil {
			return nil, fmt.Errorf("unmarshal actor roles: %w", err)
		}
	}

	var from *phase.Name
	if fromPhase.Valid && fromPhase.String != "" {
		p := phase.Name(fromPhase.String)
		from = &p
	}

	return history.ReconstructEntry(
		id,
		jobID,
		from,
		phase.Name(toPhase),
		actor,
		model.RolesFromStrings(roleStrs),
		ts,
		model.Outcome(outcome),
		reason,
		comment,
		sourceIP,
	), nil
}

func collectEntries(rows *sql.Rows) ([]*history.Entry, error) {
	var entries []*history.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history entries: %w", err)
	}
	return entries, nil
}
