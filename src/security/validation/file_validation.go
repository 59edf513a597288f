package validation

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/nestegg/backend/src/logger"
)

var ErrValidationFailed = errors.New("file validation failed")

// AllowedClientContentTypes is a map for quick lookup of allowed client-declared MIME types.
var AllowedClientContentTypes = map[string]bool{
	"text/csv":                                                          true,
	"application/csv":                                                   true,
	"text/plain":                                                        true, // CSVs are often plain text
	"text/tab-separated-values":                                         true,
	"application/vnd.ms-excel":                                          true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/octet-stream":                                          true, // Fallback, the magic byte check follows
	"":                                                                  true, // Some browsers send no type for .csv
}

// allowedDetectedTypes are the sniffed content types of CSV, XLSX (a ZIP
// container) and XLS (an OLE2 container that sniffs as octet-stream).
var allowedDetectedTypes = map[string]bool{
	"text/plain":               true,
	"text/csv":                 true,
	"application/csv":          true,
	"application/zip":          true,
	"application/octet-stream": true,
}

// ValidateClientContentType checks the Content-Type header provided by the client.
func ValidateClientContentType(contentType string) error {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if allowed, exists := AllowedClientContentTypes[mediaType]; !exists || !allowed {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		return fmt.Errorf("%w: client-declared file type '%s' is not allowed for statement upload", ErrValidationFailed, contentType)
	}
	return nil
}

// ValidateFileContentByMagicBytes checks the actual file content signature (magic bytes).
// It returns the detected content type and an error if validation fails.
func ValidateFileContentByMagicBytes(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("%w: file is nil", ErrValidationFailed)
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	// Reset the read pointer so the parser can read the full file.
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", err)
	}

	detectedContentType := http.DetectContentType(buffer[:n])
	detectedContentType = strings.ToLower(strings.Split(detectedContentType, ";")[0])

	if !allowedDetectedTypes[detectedContentType] {
		logger.L.Warn("Disallowed detected file content type (magic bytes)", "detectedContentType", detectedContentType)
		return detectedContentType, fmt.Errorf("%w: detected file content type '%s' is not a CSV or Excel statement", ErrValidationFailed, detectedContentType)
	}

	logger.L.Debug("File content type (magic bytes) validated", "detectedContentType", detectedContentType)
	return detectedContentType, nil
}
