package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/athro-ingest/internal/domain"
	"github.com/yungbote/athro-ingest/internal/http/response"
	"github.com/yungbote/athro-ingest/internal/ingestion/pipeline"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

// DocumentExtractor is the slice of the extraction pipeline the handler serves.
type DocumentExtractor interface {
	ProcessDocument(ctx context.Context, res domain.Resource) (domain.ExtractionResult, error)
	ProcessBytes(ctx context.Context, res domain.Resource, fileName string, data []byte) (domain.ExtractionResult, error)
	BuildContext(ctx context.Context, resources []domain.Resource) string
}

type DocumentHandler struct {
	log            *logger.Logger
	docs           DocumentExtractor
	maxUploadBytes int64
	maxBatch       int
}

func NewDocumentHandler(log *logger.Logger, docs DocumentExtractor, maxUploadBytes int64, maxBatch int) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	if maxBatch <= 0 {
		maxBatch = 20
	}
	return &DocumentHandler{
		log:            log.With("handler", "DocumentHandler"),
		docs:           docs,
		maxUploadBytes: maxUploadBytes,
		maxBatch:       maxBatch,
	}
}

// POST /api/v1/documents/extract
func (h *DocumentHandler) Extract(c *gin.Context) {
	var res domain.Resource
	if err := c.ShouldBindJSON(&res); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, err := h.docs.ProcessDocument(c.Request.Context(), res)
	if err != nil {
		h.respondExtractionError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// POST /api/v1/documents/extract/upload (multipart: file + resource fields)
func (h *DocumentHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondError(c, http.StatusRequestEntityTooLarge, "document_too_large", nil)
			return
		}
		response.RespondError(c, http.StatusBadRequest, "invalid_multipart_form", err)
		return
	}
	form := c.Request.MultipartForm
	if form == nil || len(form.File["file"]) == 0 {
		response.RespondError(c, http.StatusBadRequest, "missing_file", nil)
		return
	}
	fh := form.File["file"][0]
	if fh.Size > h.maxUploadBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "document_too_large", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "could_not_read_file", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "could_not_read_file", err)
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "document_too_large", nil)
		return
	}

	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	res := domain.Resource{
		ID:           value("id"),
		AthroID:      value("athroId"),
		Subject:      value("subject"),
		Topic:        value("topic"),
		ResourceType: value("resourceType"),
		ResourcePath: value("resourcePath"),
	}
	if res.ResourceType == "" {
		res.ResourceType = fh.Header.Get("Content-Type")
	}
	if res.ResourceType == "" || res.ResourceType == "application/octet-stream" {
		res.ResourceType = http.DetectContentType(data)
	}

	result, err := h.docs.ProcessBytes(c.Request.Context(), res, fh.Filename, data)
	if err != nil {
		h.respondExtractionError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type contextRequest struct {
	Resources []domain.Resource `json:"resources"`
}

// POST /api/v1/documents/context
func (h *DocumentHandler) Context(c *gin.Context) {
	var req contextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(req.Resources) == 0 {
		response.RespondError(c, http.StatusBadRequest, "no_resources", nil)
		return
	}
	if len(req.Resources) > h.maxBatch {
		response.RespondError(c, http.StatusBadRequest, "too_many_resources", fmt.Errorf("at most %d resources per request", h.maxBatch))
		return
	}
	response.RespondOK(c, gin.H{"context": h.docs.BuildContext(c.Request.Context(), req.Resources)})
}

func (h *DocumentHandler) respondExtractionError(c *gin.Context, err error) {
	var fe *pipeline.StorageFetchError
	switch {
	case errors.As(err, &fe):
		response.RespondError(c, http.StatusNotFound, "document_not_found", errors.New(pipeline.ErrorSummary(err)))
	case errors.Is(err, domain.ErrInvalidResource):
		response.RespondError(c, http.StatusBadRequest, "invalid_resource", err)
	default:
		h.log.Error("document extraction failed", "error", err)
		_ = c.Error(err)
		response.RespondError(c, http.StatusInternalServerError, "extraction_failed", errors.New(pipeline.ErrorSummary(err)))
	}
}
