// backend/src/services/import_service.go
package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/username/nestegg/backend/src/database"
	"github.com/username/nestegg/backend/src/institutions"
	"github.com/username/nestegg/backend/src/logger"
	"github.com/username/nestegg/backend/src/models"
	"github.com/username/nestegg/backend/src/parsers"
	"github.com/username/nestegg/backend/src/processors"
)

const (
	DefaultSessionTTL      = 30 * time.Minute
	DefaultPreviewRowLimit = 25
	SessionCleanupInterval = 10 * time.Minute
)

// submissionOrder fixes the order in which asset groups are posted.
var submissionOrder = []institutions.AssetType{
	institutions.AssetSecurity,
	institutions.AssetOther,
	institutions.AssetCrypto,
	institutions.AssetMetal,
	institutions.AssetCash,
	institutions.AssetRealEstate,
}

type importSession struct {
	ID             string
	FileName       string
	Table          *parsers.Table
	InstitutionKey string
	Mapping        institutions.ColumnMapping
	ExpiresAt      time.Time
}

type ImportServiceOptions struct {
	SessionTTL      time.Duration
	PreviewRowLimit int
}

type importServiceImpl struct {
	engine     *institutions.Engine
	normalizer *processors.PositionNormalizer
	submitter  PositionSubmitter
	mappings   MappingRepository
	history    HistoryRepository
	sessions   *cache.Cache
	opts       ImportServiceOptions

	// claimMu makes taking a session out of the cache atomic.
	claimMu sync.Mutex
}

// NewImportService wires the import flow. mappings and history may be nil,
// in which case mappings are not remembered and history is empty.
func NewImportService(
	engine *institutions.Engine,
	submitter PositionSubmitter,
	mappings MappingRepository,
	history HistoryRepository,
	opts ImportServiceOptions,
) ImportService {
	if engine == nil {
		engine = institutions.Default()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.PreviewRowLimit <= 0 {
		opts.PreviewRowLimit = DefaultPreviewRowLimit
	}
	return &importServiceImpl{
		engine:     engine,
		normalizer: processors.NewPositionNormalizer(engine),
		submitter:  submitter,
		mappings:   mappings,
		history:    history,
		sessions:   cache.New(opts.SessionTTL, SessionCleanupInterval),
		opts:       opts,
	}
}

func (s *importServiceImpl) Preview(ctx context.Context, req PreviewRequest) (*models.ImportPreview, error) {
	startTime := time.Now()
	log := logger.FromContext(ctx)
	log.Info("Preview START", "fileName", req.FileName, "size", len(req.Data))

	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrParsingFailed)
	}
	table, err := parsers.ParseFile(req.FileName, req.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	institutionKey := s.resolveInstitution(ctx, table, req)
	mapping := s.engine.AutoMapColumns(table.Headers, institutionKey)
	source := models.MappingSourceAuto

	if saved := s.savedMapping(ctx, table.Headers); saved != nil {
		mapping = saved.Mapping
		source = models.MappingSourceSaved
		if institutionKey == "" && saved.InstitutionKey != "" {
			institutionKey = saved.InstitutionKey
		}
	}

	preview := &models.ImportPreview{
		FileName:        req.FileName,
		Format:          table.Format,
		Encoding:        table.Encoding,
		Headers:         table.Headers,
		Mapping:         mapping,
		MappingSource:   source,
		MissingRequired: mapping.RequiredMissing(),
		TotalRows:       len(table.Rows),
		Sample:          []models.PositionRecord{},
		Warnings:        table.Warnings,
	}
	if tpl, ok := s.engine.Template(institutionKey); ok {
		preview.Institution = &institutions.InstitutionInfo{Key: tpl.Key, Name: tpl.Name}
	}
	if mapping.HasRequired() {
		preview.Sample, preview.RowErrors = s.normalizer.Normalize(table, mapping, processors.Options{
			InstitutionKey: institutionKey,
			Limit:          s.opts.PreviewRowLimit,
		})
	}

	session := &importSession{
		ID:             uuid.NewString(),
		FileName:       req.FileName,
		Table:          table,
		InstitutionKey: institutionKey,
		Mapping:        mapping,
		ExpiresAt:      time.Now().Add(s.opts.SessionTTL),
	}
	s.sessions.Set(session.ID, session, s.opts.SessionTTL)
	preview.SessionID = session.ID
	preview.ExpiresAt = session.ExpiresAt

	log.Info("Preview END",
		"sessionID", session.ID,
		"institution", institutionKey,
		"mappingSource", source,
		"rows", len(table.Rows),
		"duration", time.Since(startTime))
	return preview, nil
}

func (s *importServiceImpl) resolveInstitution(ctx context.Context, table *parsers.Table, req PreviewRequest) string {
	if req.Institution != "" {
		if _, ok := s.engine.Template(req.Institution); ok {
			return req.Institution
		}
		logger.FromContext(ctx).Warn("Ignoring unknown institution override", "institution", req.Institution)
	}
	key, _ := s.engine.DetectInstitution(table.DetectionRows(), req.FileName)
	return key
}

// savedMapping returns a remembered mapping for headers when every column it
// refers to is still present.
func (s *importServiceImpl) savedMapping(ctx context.Context, headers []string) *models.SavedMapping {
	if s.mappings == nil {
		return nil
	}
	saved, ok, err := s.mappings.Get(ctx, database.Fingerprint(headers))
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to load saved mapping", "error", err)
		return nil
	}
	if !ok || validateMapping(saved.Mapping, headers) != nil {
		return nil
	}
	return saved
}

func (s *importServiceImpl) Confirm(ctx context.Context, sessionID string, req ConfirmRequest) (*models.ImportResult, error) {
	log := logger.FromContext(ctx).With("sessionID", sessionID)

	if req.AccountID == "" {
		return nil, fmt.Errorf("%w: accountId is required", ErrInvalidRequest)
	}
	overrides, err := parseAssetOverrides(req.AssetTypes)
	if err != nil {
		return nil, err
	}

	session, ok := s.claimSession(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	// Put the session back unless the import went through, so that the user
	// can correct the request and retry.
	done := false
	defer func() {
		if !done {
			s.restoreSession(session)
		}
	}()

	mapping := session.Mapping
	if len(req.Mapping) > 0 {
		mapping = req.Mapping
	}
	if err := validateMapping(mapping, session.Table.Headers); err != nil {
		return nil, err
	}

	records, rowErrors := s.normalizer.Normalize(session.Table, mapping, processors.Options{
		InstitutionKey:     session.InstitutionKey,
		AssetTypeOverrides: overrides,
	})
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %d rows failed validation", ErrNothingToImport, len(rowErrors))
	}

	result := &models.ImportResult{
		SessionID:   session.ID,
		Institution: session.InstitutionKey,
		AccountID:   req.AccountID,
		RowsTotal:   len(session.Table.Rows),
		Groups:      []models.SubmissionResult{},
	}
	groups := groupByAssetType(records)
	for _, assetType := range submissionOrder {
		group, ok := groups[assetType]
		if !ok {
			continue
		}
		gr := models.SubmissionResult{AssetType: assetType, Endpoint: EndpointFor(assetType)}
		for _, rec := range group {
			if err := ctx.Err(); err != nil {
				// Positions already created must not be submitted again on retry.
				done = result.Submitted+gr.Submitted > 0
				return nil, err
			}
			if err := s.submitter.Submit(ctx, req.AccountID, req.AuthToken, rec); err != nil {
				log.Warn("Position submission failed", "line", rec.Line, "symbol", rec.Symbol, "error", err)
				rowErrors = append(rowErrors, models.RowError{Line: rec.Line, Message: err.Error()})
				gr.Error = err.Error()
				continue
			}
			gr.Submitted++
		}
		result.Submitted += gr.Submitted
		result.Groups = append(result.Groups, gr)
	}

	sort.SliceStable(rowErrors, func(i, j int) bool { return rowErrors[i].Line < rowErrors[j].Line })
	result.RowErrors = rowErrors
	result.Failed = len(rowErrors)

	if result.Submitted == 0 {
		reason := "no position was accepted"
		if len(result.Groups) > 0 {
			reason = result.Groups[0].Error
		}
		return result, fmt.Errorf("%w: %s", ErrSubmissionFailed, reason)
	}
	done = true
	s.sessions.Delete(session.ID)

	if req.Remember && s.mappings != nil {
		err := s.mappings.Save(ctx, models.SavedMapping{
			Fingerprint:    database.Fingerprint(session.Table.Headers),
			InstitutionKey: session.InstitutionKey,
			Mapping:        mapping,
		})
		if err != nil {
			log.Warn("Failed to remember mapping", "error", err)
		} else {
			result.MappingSaved = true
		}
	}

	if s.history != nil {
		_, err := s.history.Record(ctx, models.HistoryEntry{
			SessionID:      session.ID,
			InstitutionKey: session.InstitutionKey,
			FileName:       session.FileName,
			AccountID:      req.AccountID,
			RowsTotal:      result.RowsTotal,
			RowsSubmitted:  result.Submitted,
			RowsFailed:     result.Failed,
		})
		if err != nil {
			log.Warn("Failed to record import history", "error", err)
		}
	}

	log.Info("Import confirmed",
		"institution", session.InstitutionKey,
		"submitted", result.Submitted,
		"failed", result.Failed)
	return result, nil
}

func (s *importServiceImpl) claimSession(id string) (*importSession, bool) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()
	v, found := s.sessions.Get(id)
	if !found {
		return nil, false
	}
	s.sessions.Delete(id)
	return v.(*importSession), true
}

func (s *importServiceImpl) restoreSession(session *importSession) {
	if ttl := time.Until(session.ExpiresAt); ttl > 0 {
		s.sessions.Set(session.ID, session, ttl)
	}
}

func (s *importServiceImpl) Cancel(sessionID string) error {
	if _, ok := s.claimSession(sessionID); !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (s *importServiceImpl) History(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if s.history == nil {
		return []models.HistoryEntry{}, nil
	}
	return s.history.List(ctx, limit)
}

// validateMapping checks that every mapped field is canonical, refers to an
// existing header, and that the required fields are present.
func validateMapping(mapping institutions.ColumnMapping, headers []string) error {
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	for field, header := range mapping {
		if !field.Valid() {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidMapping, field)
		}
		if !known[header] {
			return fmt.Errorf("%w: column %q for %s is not in the file", ErrInvalidMapping, header, field)
		}
	}
	if missing := mapping.RequiredMissing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields %v", ErrInvalidMapping, missing)
	}
	return nil
}

func parseAssetOverrides(raw map[int]string) (map[int]institutions.AssetType, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[int]institutions.AssetType, len(raw))
	for line, v := range raw {
		t, ok := institutions.ParseAssetType(v)
		if !ok {
			return nil, fmt.Errorf("%w: unknown asset type %q for line %d", ErrInvalidRequest, v, line)
		}
		out[line] = t
	}
	return out, nil
}

func groupByAssetType(records []models.PositionRecord) map[institutions.AssetType][]models.PositionRecord {
	groups := make(map[institutions.AssetType][]models.PositionRecord)
	for _, rec := range records {
		groups[rec.AssetType] = append(groups[rec.AssetType], rec)
	}
	return groups
}
