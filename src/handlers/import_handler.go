// backend/src/handlers/import_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/username/nestegg/backend/src/logger"
	"github.com/username/nestegg/backend/src/security/validation"
	"github.com/username/nestegg/backend/src/services"
	"github.com/username/nestegg/backend/src/utils"
)

const maxConfirmBodyBytes = 1 << 20

type ImportHandler struct {
	importService services.ImportService
	maxUploadSize int64
}

func NewImportHandler(service services.ImportService, maxUploadSize int64) *ImportHandler {
	return &ImportHandler{
		importService: service,
		maxUploadSize: maxUploadSize,
	}
}

func (h *ImportHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	limit := humanize.IBytes(uint64(h.maxUploadSize))

	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+64*1024)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		log.Warn("Failed to parse multipart form or request too large", "error", err, "limit", h.maxUploadSize)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %s)", limit), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		log.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > h.maxUploadSize {
		log.Warn("Uploaded file too large", "fileSize", fileHeader.Size, "limit", h.maxUploadSize)
		utils.SendJSONError(w, fmt.Sprintf("File too large (%s), max %s", humanize.IBytes(uint64(fileHeader.Size)), limit), http.StatusRequestEntityTooLarge)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		log.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error("Failed to read uploaded file", "error", err)
		utils.SendJSONError(w, "Failed to read uploaded file", http.StatusInternalServerError)
		return
	}

	fileName := validation.SanitizeFileName(fileHeader.Filename)
	log.Info("Processing import preview", "filename", fileName, "size", humanize.IBytes(uint64(len(data))), "detectedType", detectedContentType)

	preview, err := h.importService.Preview(r.Context(), services.PreviewRequest{
		FileName:    fileName,
		Data:        data,
		Institution: r.FormValue("institution"),
	})
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, preview, http.StatusOK)
}

func (h *ImportHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req services.ConfirmRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxConfirmBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	req.AuthToken = AuthTokenFromContext(r.Context())

	result, err := h.importService.Confirm(r.Context(), sessionID, req)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}

func (h *ImportHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.importService.Cancel(chi.URLParam(r, "sessionID")); err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ImportHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			utils.SendJSONError(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.importService.History(r.Context(), limit)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, entries, http.StatusOK)
}

// sendServiceError maps service sentinel errors to HTTP status codes.
func (h *ImportHandler) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrParsingFailed):
		log.Warn("Import failed due to parsing errors", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error parsing statement file: %v", err), http.StatusBadRequest)
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrInvalidMapping),
		errors.Is(err, services.ErrNothingToImport):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrSubmissionFailed):
		log.Warn("Position backend rejected the import", "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadGateway)
	default:
		log.Error("Internal error processing import", "error", err)
		utils.SendJSONError(w, "An internal error occurred while processing the import. Please try again later.", http.StatusInternalServerError)
	}
}
