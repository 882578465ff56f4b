package extractor

import (
	"context"
	"errors"

	"github.com/yungbote/athro-ingest/internal/domain"
	"github.com/yungbote/athro-ingest/internal/ingestion/layout"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

const cloudExtractorName = "cloud_ocr"

// TextDetector runs remote text detection over a whole PDF.
type TextDetector interface {
	DetectText(ctx context.Context, data []byte) (*domain.Detection, error)
}

// remoteReasoner is implemented by detector errors that already know which
// failure class they belong to.
type remoteReasoner interface {
	RemoteReason() string
}

type CloudOCRExtractor struct {
	log      *logger.Logger
	detector TextDetector
	analyzer *layout.Analyzer
}

// NewCloudOCRExtractor returns nil when detector is nil so callers can treat the
// capability as switched off.
func NewCloudOCRExtractor(log *logger.Logger, detector TextDetector, analyzer *layout.Analyzer) *CloudOCRExtractor {
	if detector == nil {
		return nil
	}
	if analyzer == nil {
		analyzer = layout.New(layout.DefaultConfig())
	}
	return &CloudOCRExtractor{
		log:      log.With("component", "CloudOCRExtractor"),
		detector: detector,
		analyzer: analyzer,
	}
}

func (c *CloudOCRExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	if !IsPDFHeader(data) {
		return Extraction{}, newError(cloudExtractorName, CodeInvalidFormat, ReasonBadHeader, nil)
	}

	det, err := c.detector.DetectText(ctx, data)
	if err != nil {
		reason := ReasonUnavailable
		var rr remoteReasoner
		if errors.As(err, &rr) && rr.RemoteReason() != "" {
			reason = rr.RemoteReason()
		}
		c.log.Warn("remote text detection failed", "reason", reason, "error", err)
		return Extraction{}, newError(cloudExtractorName, CodeRemoteService, reason, err)
	}
	if det == nil || len(det.Blocks) == 0 {
		return Extraction{}, newError(cloudExtractorName, CodeRemoteService, ReasonEmpty, nil)
	}

	doc := c.analyzer.RenderPages(detectionPages(det))
	if !doc.HasText() {
		return Extraction{}, newError(cloudExtractorName, CodeRemoteService, ReasonEmpty, nil)
	}
	c.log.Debug("cloud text detection done",
		"pages", doc.Pages,
		"text_pages", doc.TextPages,
		"two_column_pages", doc.TwoColumnPages,
		"bilingual_pages", doc.BilingualPages,
	)
	return Extraction{Text: doc.Text, Pages: doc.Pages, Source: SourceCloudOCR}, nil
}

// detectionPages lays blocks out on pages 1..N, where N covers both the reported
// page count and the highest page any block claims.
func detectionPages(det *domain.Detection) []layout.Page {
	n := det.Pages
	for _, b := range det.Blocks {
		if b.Page > n {
			n = b.Page
		}
	}
	if n < 1 {
		n = 1
	}
	pages := make([]layout.Page, n)
	for i := range pages {
		pages[i].Number = i + 1
	}
	for _, b := range det.Blocks {
		idx := b.Page - 1
		if idx < 0 {
			idx = 0
		}
		pages[idx].Blocks = append(pages[idx].Blocks, b)
	}
	return pages
}
