package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/nestegg/backend/src/institutions"
	"github.com/username/nestegg/backend/src/logger"
	"github.com/username/nestegg/backend/src/utils"
)

type InstitutionHandler struct {
	engine *institutions.Engine
}

func NewInstitutionHandler(engine *institutions.Engine) *InstitutionHandler {
	if engine == nil {
		engine = institutions.Default()
	}
	return &InstitutionHandler{engine: engine}
}

// HandleListInstitutions returns the supported institutions in registry
// order, with ETag support since the list only changes on restart.
func (h *InstitutionHandler) HandleListInstitutions(w http.ResponseWriter, r *http.Request) {
	infos := h.engine.SupportedInstitutions()

	currentETag, etagErr := utils.GenerateETag(infos)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag for institutions", "error", etagErr)
	}
	w.Header().Set("Cache-Control", "no-cache")
	if etagErr == nil {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}
	utils.SendJSON(w, infos, http.StatusOK)
}

type classifyRequest struct {
	Description string `json:"description"`
	Symbol      string `json:"symbol"`
}

type classifyResponse struct {
	AssetType institutions.AssetType `json:"assetType"`
}

func (h *InstitutionHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfirmBodyBytes)).Decode(&req); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	utils.SendJSON(w, classifyResponse{AssetType: h.engine.DetectAssetType(req.Description, req.Symbol)}, http.StatusOK)
}

type mapRequest struct {
	Headers     []string           `json:"headers"`
	Institution string             `json:"institution"`
	FileName    string             `json:"fileName"`
	Rows        []institutions.Row `json:"rows"`
}

type mapResponse struct {
	Institution *institutions.InstitutionInfo `json:"institution"`
	Mapping     institutions.ColumnMapping    `json:"mapping"`
	Missing     []institutions.CanonicalField `json:"missing"`
}

// HandleMap runs detection and auto-mapping without creating a session, for
// clients that parse files themselves.
func (h *InstitutionHandler) HandleMap(w http.ResponseWriter, r *http.Request) {
	var req mapRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfirmBodyBytes)).Decode(&req); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Headers) == 0 {
		utils.SendJSONError(w, "headers are required", http.StatusBadRequest)
		return
	}

	key := req.Institution
	if _, ok := h.engine.Template(key); !ok {
		key, _ = h.engine.DetectInstitution(req.Rows, req.FileName)
	}

	resp := mapResponse{
		Mapping: h.engine.AutoMapColumns(req.Headers, key),
	}
	resp.Missing = resp.Mapping.RequiredMissing()
	if tpl, ok := h.engine.Template(key); ok {
		resp.Institution = &institutions.InstitutionInfo{Key: tpl.Key, Name: tpl.Name}
	}
	utils.SendJSON(w, resp, http.StatusOK)
}
