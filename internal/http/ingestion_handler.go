package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/FallyxInc/cortex-behaviours/internal/domain"
	"github.com/FallyxInc/cortex-behaviours/internal/service"

	"go.uber.org/zap"
)

const (
	pdfFieldPrefix   = "pdf_"
	excelFieldPrefix = "excel_"

	// multipartMemory is held in memory; larger parts spill to temp files.
	multipartMemory = 32 << 20
)

type IngestionHandler struct {
	ingestion     service.IngestionService
	maxUploadSize int64
	logger        *zap.Logger
}

func NewIngestionHandler(ingestion service.IngestionService, maxUploadSize int64, logger *zap.Logger) *IngestionHandler {
	return &IngestionHandler{ingestion: ingestion, maxUploadSize: maxUploadSize, logger: logger}
}

type processResponse struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	MetricsSaved bool                `json:"metricsSaved"`
	FileCounts   *service.FileCounts `json:"fileCounts,omitempty"`
}

// ProcessBehaviours POST /api/admin/process-behaviours (multipart/form-data)
func (h *IngestionHandler) ProcessBehaviours(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Error: "Upload too large", Kind: string(service.KindValidation),
			})
			return
		}
		writeValidation(w, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req := parseIngestionForm(r.MultipartForm)
	if req.Home == "" {
		writeValidation(w, "Home is required")
		return
	}

	res, err := h.ingestion.Process(r.Context(), req)
	if err != nil {
		h.logger.Error("Error processing files", zap.String("home", req.Home), zap.Error(err))
		writeError(w, err, "Failed to process files")
		return
	}

	writeJSON(w, http.StatusOK, processResponse{
		Success:      true,
		Message:      res.Message,
		MetricsSaved: res.MetricsSaved,
		FileCounts:   res.FileCounts,
	})
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func parseIngestionForm(form *multipart.Form) service.IngestionRequest {
	req := service.IngestionRequest{
		Home:       strings.TrimSpace(formValue(form, "home")),
		PDFCount:   domain.ParseLenientInt(formValue(form, "pdfCount")),
		ExcelCount: domain.ParseLenientInt(formValue(form, "excelCount")),
		Metrics:    domain.MetricsUpdate{},
	}
	for _, c := range domain.MetricCategories {
		req.Metrics[c] = domain.MetricInput{
			Percentage: formValue(form, c+"Percentage"),
			Change:     formValue(form, c+"Change"),
			Residents:  formValue(form, c+"Residents"),
		}
	}
	if req.HasFiles() {
		req.PDFs = collectFiles(form, pdfFieldPrefix, req.PDFCount)
		req.Excels = collectFiles(form, excelFieldPrefix, req.ExcelCount)
	}
	return req
}

// collectFiles returns the parts named <prefix><i> for i < count in index
// order. Missing indices are skipped.
func collectFiles(form *multipart.Form, prefix string, count int) []service.FilePart {
	type indexed struct {
		idx  int
		part service.FilePart
	}
	var found []indexed
	for key, headers := range form.File {
		suffix, ok := strings.CutPrefix(key, prefix)
		if !ok || len(headers) == 0 {
			continue
		}
		idx, err := strconv.Atoi(suffix)
		if err != nil || idx < 0 || idx >= count {
			continue
		}
		fh := headers[0]
		found = append(found, indexed{idx: idx, part: service.FilePart{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		}})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].idx < found[j].idx })

	parts := make([]service.FilePart, 0, len(found))
	for _, f := range found {
		parts = append(parts, f.part)
	}
	return parts
}
