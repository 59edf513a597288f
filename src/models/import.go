package models

import (
	"time"

	"github.com/username/nestegg/backend/src/institutions"
	"github.com/username/nestegg/backend/src/parsers"
)

// MappingSource tells the UI where a proposed column mapping came from.
type MappingSource string

const (
	MappingSourceAuto  MappingSource = "auto"
	MappingSourceSaved MappingSource = "saved"
)

// ImportPreview is returned after an upload so the user can review the
// detected institution and mapping before anything is submitted.
type ImportPreview struct {
	SessionID       string                        `json:"sessionId"`
	FileName        string                        `json:"fileName"`
	Format          string                        `json:"format"`
	Encoding        string                        `json:"encoding,omitempty"`
	Institution     *institutions.InstitutionInfo `json:"institution,omitempty"`
	Headers         []string                      `json:"headers"`
	Mapping         institutions.ColumnMapping    `json:"mapping"`
	MappingSource   MappingSource                 `json:"mappingSource"`
	MissingRequired []institutions.CanonicalField `json:"missingRequired"`
	TotalRows       int                           `json:"totalRows"`
	Sample          []PositionRecord              `json:"sample"`
	RowErrors       []RowError                    `json:"rowErrors,omitempty"`
	Warnings        []parsers.ParseWarning        `json:"warnings,omitempty"`
	ExpiresAt       time.Time                     `json:"expiresAt"`
}

// SubmissionResult is the outcome of posting one asset group to the
// position backend.
type SubmissionResult struct {
	AssetType institutions.AssetType `json:"assetType"`
	Endpoint  string                 `json:"endpoint"`
	Submitted int                    `json:"submitted"`
	Error     string                 `json:"error,omitempty"`
}

type ImportResult struct {
	SessionID    string             `json:"sessionId"`
	Institution  string             `json:"institution,omitempty"`
	AccountID    string             `json:"accountId"`
	RowsTotal    int                `json:"rowsTotal"`
	Submitted    int                `json:"submitted"`
	Failed       int                `json:"failed"`
	Groups       []SubmissionResult `json:"groups"`
	RowErrors    []RowError         `json:"rowErrors,omitempty"`
	MappingSaved bool               `json:"mappingSaved"`
}

// SavedMapping is a column mapping remembered for a header layout.
type SavedMapping struct {
	Fingerprint    string                     `json:"fingerprint"`
	InstitutionKey string                     `json:"institutionKey,omitempty"`
	Mapping        institutions.ColumnMapping `json:"mapping"`
	UpdatedAt      time.Time                  `json:"updatedAt"`
}

// HistoryEntry records one confirmed import.
type HistoryEntry struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"sessionId"`
	InstitutionKey string    `json:"institutionKey,omitempty"`
	FileName       string    `json:"fileName"`
	AccountID      string    `json:"accountId"`
	RowsTotal      int       `json:"rowsTotal"`
	RowsSubmitted  int       `json:"rowsSubmitted"`
	RowsFailed     int       `json:"rowsFailed"`
	CreatedAt      time.Time `json:"createdAt"`
}
