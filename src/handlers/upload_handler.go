package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/username/stocktracker/src/logger"
	"github.com/username/stocktracker/src/models"
	"github.com/username/stocktracker/src/parsers"
	"github.com/username/stocktracker/src/security/validation"
	"github.com/username/stocktracker/src/services"
	"github.com/username/stocktracker/src/utils"
)

type UploadHandler struct {
	ledger        services.LedgerService
	maxUploadSize int64
}

func NewUploadHandler(ledger services.LedgerService, maxUploadSize int64) *UploadHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = 10 * 1024 * 1024
	}
	return &UploadHandler{ledger: ledger, maxUploadSize: maxUploadSize}
}

type importResponse struct {
	Imported     int                  `json:"imported"`
	Transactions []models.Transaction `json:"transactions"`
}

// HandleImport reads a multipart "file" field. The format comes from the
// format query parameter, else from the file extension.
func (h *UploadHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1024*1024)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		log.Warn("Failed to parse multipart form or request too large", "error", err, "limit", h.maxUploadSize)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", h.maxUploadSize/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		log.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > h.maxUploadSize {
		log.Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", h.maxUploadSize)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB (header check)", h.maxUploadSize/(1024*1024)), http.StatusBadRequest)
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

	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatFromFilename(fileHeader.Filename)
	}
	log.Info("Processing import request", "filename", fileHeader.Filename, "format", format, "clientType", clientContentType, "detectedType", detectedContentType)

	txs, err := h.ledger.Import(r.Context(), format, file)
	if err != nil {
		writeServiceError(w, r, err, "import transactions")
		return
	}
	utils.WriteJSON(w, http.StatusOK, importResponse{Imported: len(txs), Transactions: txs})
}

// HandleExport streams the ledger as an attachment. CSV cells that a
// spreadsheet would evaluate are neutralised.
func (h *UploadHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = parsers.FormatCSV
	}
	codec, err := parsers.GetCodec(format, parsers.ExportOptions{})
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	filter := models.TransactionFilter{PortfolioID: q.Get("portfolio_id"), Symbol: q.Get("symbol")}
	var buf bytes.Buffer
	n, err := h.ledger.Export(r.Context(), format, &buf, filter, parsers.ExportOptions{SanitizeFormulas: true})
	if err != nil {
		writeServiceError(w, r, err, "export transactions")
		return
	}

	filename := "transactions-" + time.Now().UTC().Format("20060102") + codec.Extension()
	w.Header().Set("Content-Type", codec.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.FromContext(r.Context()).Error("Failed to write export", "error", err)
		return
	}
	logger.FromContext(r.Context()).Info("Transactions exported", "format", format, "count", n)
}

func formatFromFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return parsers.FormatJSON
	case ".xml":
		return parsers.FormatIBKR
	default:
		return parsers.FormatCSV
	}
}
