package services

import (
	"context"
	"errors"

	"github.com/username/nestegg/backend/src/institutions"
	"github.com/username/nestegg/backend/src/models"
)

var (
	ErrParsingFailed    = errors.New("failed to parse statement file")
	ErrSessionNotFound  = errors.New("import session not found or expired")
	ErrInvalidRequest   = errors.New("invalid import request")
	ErrInvalidMapping   = errors.New("invalid column mapping")
	ErrNothingToImport  = errors.New("no rows could be imported")
	ErrSubmissionFailed = errors.New("position backend rejected the import")
)

// PreviewRequest is an uploaded statement awaiting review.
type PreviewRequest struct {
	FileName string
	Data     []byte
	// Institution forces a template when it names a known institution key.
	Institution string
}

// ConfirmRequest carries the user's decisions for a previewed import.
type ConfirmRequest struct {
	AccountID string `json:"accountId"`
	// Mapping replaces the proposed mapping when non-empty.
	Mapping institutions.ColumnMapping `json:"mapping,omitempty"`
	// AssetTypes overrides the detected asset type per source line.
	AssetTypes map[int]string `json:"assetTypes,omitempty"`
	Remember   bool           `json:"remember"`
	AuthToken  string         `json:"-"`
}

// ImportService drives the upload, review and confirm flow.
type ImportService interface {
	Preview(ctx context.Context, req PreviewRequest) (*models.ImportPreview, error)
	Confirm(ctx context.Context, sessionID string, req ConfirmRequest) (*models.ImportResult, error)
	Cancel(sessionID string) error
	History(ctx context.Context, limit int) ([]models.HistoryEntry, error)
}

// PositionSubmitter creates positions in the portfolio backend.
type PositionSubmitter interface {
	Submit(ctx context.Context, accountID, authToken string, rec models.PositionRecord) error
}

type MappingRepository interface {
	Get(ctx context.Context, fingerprint string) (*models.SavedMapping, bool, error)
	Save(ctx context.Context, m models.SavedMapping) error
}

type HistoryRepository interface {
	Record(ctx context.Context, e models.HistoryEntry) (int64, error)
	List(ctx context.Context, limit int) ([]models.HistoryEntry, error)
}
