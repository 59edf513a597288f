package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/username/nestegg/backend/src/models"
)

type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Record stores a confirmed import and returns its ID.
func (s *HistoryStore) Record(ctx context.Context, e models.HistoryEntry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO import_history
			(session_id, institution_key, file_name, account_id, rows_total, rows_submitted, rows_failed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, nullString(e.InstitutionKey), e.FileName, e.AccountID,
		e.RowsTotal, e.RowsSubmitted, e.RowsFailed, e.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record import history: %w", err)
	}
	return res.LastInsertId()
}

// List returns the most recent imports first.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, institution_key, file_name, account_id,
			rows_total, rows_submitted, rows_failed, created_at
		FROM import_history
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query import history: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var (
			e              models.HistoryEntry
			institutionKey sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &institutionKey, &e.FileName, &e.AccountID,
			&e.RowsTotal, &e.RowsSubmitted, &e.RowsFailed, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import history row: %w", err)
		}
		e.InstitutionKey = institutionKey.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating import history: %w", err)
	}
	return entries, nil
}
