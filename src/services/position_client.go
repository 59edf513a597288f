// backend/src/services/position_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/username/nestegg/backend/src/institutions"
	"github.com/username/nestegg/backend/src/logger"
	"github.com/username/nestegg/backend/src/models"
)

// EndpointFor returns the backend collection that positions of assetType
// are created in.
func EndpointFor(assetType institutions.AssetType) string {
	switch assetType {
	case institutions.AssetCrypto:
		return "/crypto"
	case institutions.AssetMetal:
		return "/metals"
	case institutions.AssetCash:
		return "/cash"
	case institutions.AssetRealEstate:
		return "/realestate"
	default:
		return "/positions"
	}
}

type positionPayload struct {
	Symbol        string   `json:"symbol"`
	Description   string   `json:"description,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty"`
	PurchasePrice *float64 `json:"purchase_price,omitempty"`
	CurrentValue  *float64 `json:"current_value,omitempty"`
	CostBasis     *float64 `json:"cost_basis,omitempty"`
	PurchaseDate  string   `json:"purchase_date,omitempty"`
	AssetType     string   `json:"asset_type"`
	SourceHash    string   `json:"source_hash"`
}

func newPositionPayload(rec models.PositionRecord) positionPayload {
	p := positionPayload{
		Symbol:        rec.Symbol,
		Description:   rec.Description,
		Quantity:      floatPtr(rec.Quantity.Valid, rec.Quantity.Decimal.InexactFloat64()),
		PurchasePrice: floatPtr(rec.PurchasePrice.Valid, rec.PurchasePrice.Decimal.InexactFloat64()),
		CurrentValue:  floatPtr(rec.CurrentValue.Valid, rec.CurrentValue.Decimal.InexactFloat64()),
		CostBasis:     floatPtr(rec.CostBasis.Valid, rec.CostBasis.Decimal.InexactFloat64()),
		AssetType:     string(rec.AssetType),
		SourceHash:    rec.HashID,
	}
	if rec.PurchaseDate != nil {
		p.PurchaseDate = rec.PurchaseDate.Format("2006-01-02")
	}
	return p
}

func floatPtr(valid bool, f float64) *float64 {
	if !valid {
		return nil
	}
	return &f
}

// PositionClient posts normalized positions to the portfolio REST backend.
type PositionClient struct {
	baseURL    string
	httpClient http.Client
}

func NewPositionClient(baseURL string, timeout time.Duration) *PositionClient {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}
	return &PositionClient{
		baseURL: baseURL,
		httpClient: http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
	}
}

// Submit creates one position. The caller's bearer token is forwarded as is.
func (c *PositionClient) Submit(ctx context.Context, accountID, authToken string, rec models.PositionRecord) error {
	body, err := json.Marshal(newPositionPayload(rec))
	if err != nil {
		return fmt.Errorf("failed to encode position: %w", err)
	}

	endpoint := c.baseURL + EndpointFor(rec.AssetType) + "/" + url.PathEscape(accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend returned %d for %s: %s", resp.StatusCode, EndpointFor(rec.AssetType), bytes.TrimSpace(msg))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
