package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/username/nestegg/backend/src/institutions"
	"github.com/username/nestegg/backend/src/models"
)

// Fingerprint identifies a header layout independently of case, surrounding
// whitespace and the file it came from.
func Fingerprint(headers []string) string {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}
	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

// MappingStore remembers the column mapping a user confirmed for a header layout.
type MappingStore struct {
	db *sql.DB
}

func NewMappingStore(db *sql.DB) *MappingStore {
	return &MappingStore{db: db}
}

// Get returns the saved mapping for fingerprint. ok is false when none exists.
func (s *MappingStore) Get(ctx context.Context, fingerprint string) (*models.SavedMapping, bool, error) {
	var (
		institutionKey sql.NullString
		mappingJSON    string
		updatedAt      time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT institution_key, mapping_json, updated_at FROM saved_mappings WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&institutionKey, &mappingJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load saved mapping: %w", err)
	}

	var mapping institutions.ColumnMapping
	if err := json.Unmarshal([]byte(mappingJSON), &mapping); err != nil {
		return nil, false, fmt.Errorf("failed to decode saved mapping: %w", err)
	}
	return &models.SavedMapping{
		Fingerprint:    fingerprint,
		InstitutionKey: institutionKey.String,
		Mapping:        mapping,
		UpdatedAt:      updatedAt,
	}, true, nil
}

// Save inserts or replaces the mapping for m.Fingerprint.
func (s *MappingStore) Save(ctx context.Context, m models.SavedMapping) error {
	mappingJSON, err := json.Marshal(m.Mapping)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saved_mappings (fingerprint, institution_key, mapping_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			institution_key = excluded.institution_key,
			mapping_json = excluded.mapping_json,
			updated_at = excluded.updated_at`,
		m.Fingerprint, nullString(m.InstitutionKey), string(mappingJSON), m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save mapping: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
