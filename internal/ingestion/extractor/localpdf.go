package extractor

import (
	"context"
	"errors"
	"math"

	"github.com/yungbote/athro-ingest/internal/domain"
	"github.com/yungbote/athro-ingest/internal/ingestion/layout"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

const localExtractorName = "local_pdf"

type LocalPDFExtractor struct {
	log      *logger.Logger
	renderer Renderer
	analyzer *layout.Analyzer
	prober   Prober
}

func NewLocalPDFExtractor(log *logger.Logger, renderer Renderer, analyzer *layout.Analyzer, prober Prober) *LocalPDFExtractor {
	if analyzer == nil {
		analyzer = layout.New(layout.DefaultConfig())
	}
	return &LocalPDFExtractor{
		log:      log.With("component", "LocalPDFExtractor"),
		renderer: renderer,
		analyzer: analyzer,
		prober:   prober,
	}
}

// Extract renders the PDF on a worker and retries once inline when no worker
// could be started.
func (l *LocalPDFExtractor) Extract(ctx context.Context, data []byte) (Extraction, error) {
	if !IsPDFHeader(data) {
		return Extraction{}, newError(localExtractorName, CodeInvalidFormat, ReasonBadHeader, nil)
	}

	ex, err := l.extract(ctx, data, RenderModeWorker)
	if errors.Is(err, ErrWorkerLoad) {
		l.log.Warn("pdf render worker unavailable, retrying inline", "error", err)
		ex, err = l.extract(ctx, data, RenderModeInline)
	}
	return ex, err
}

func (l *LocalPDFExtractor) extract(ctx context.Context, data []byte, mode RenderMode) (Extraction, error) {
	doc, err := l.renderer.Load(ctx, data, mode)
	if err != nil {
		var ee *ExtractionError
		if errors.As(err, &ee) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Extraction{}, err
		}
		if probe, perr := l.probe(data); perr == nil && probe.Encrypted {
			return Extraction{}, newError(localExtractorName, CodeNoExtractableText, ReasonEncrypted, err)
		}
		return Extraction{}, newError(localExtractorName, CodeInvalidFormat, ReasonDecode, err)
	}

	n := doc.NumPages()
	pages := make([]layout.Page, 0, n)
	for i := 1; i <= n; i++ {
		items, err := doc.TextContent(i)
		if err != nil {
			l.log.Warn("pdf page decode failed", "page", i, "error", err)
			pages = append(pages, layout.Page{Number: i})
			continue
		}
		w, h := doc.PageSize(i)
		pages = append(pages, layout.Page{Number: i, Blocks: itemsToBlocks(items, w, h, i)})
	}

	out := l.analyzer.RenderPages(pages)
	if !out.HasText() {
		reason := ReasonEmpty
		if probe, perr := l.probe(data); perr == nil {
			switch {
			case probe.Encrypted:
				reason = ReasonEncrypted
			case probe.HasImages:
				reason = ReasonImageOnly
			}
		}
		return Extraction{}, newError(localExtractorName, CodeNoExtractableText, reason, nil)
	}

	source := SourceLocalPDFWorker
	if mode == RenderModeInline {
		source = SourceLocalPDFInline
	}
	l.log.Debug("local pdf extraction done",
		"mode", mode.String(),
		"pages", out.Pages,
		"text_pages", out.TextPages,
		"two_column_pages", out.TwoColumnPages,
		"bilingual_pages", out.BilingualPages,
	)
	return Extraction{Text: out.Text, Pages: out.Pages, Source: source}, nil
}

func (l *LocalPDFExtractor) probe(data []byte) (PDFProbe, error) {
	if l.prober == nil {
		return PDFProbe{}, errors.New("no prober configured")
	}
	return l.prober.Probe(data)
}

// itemsToBlocks normalizes bottom-up page coordinates into top-down 0..1 boxes.
func itemsToBlocks(items []TextItem, pageW, pageH float64, page int) []domain.TextBlock {
	if pageW <= 0 {
		pageW = defaultPageWidth
	}
	if pageH <= 0 {
		pageH = defaultPageHeight
	}
	out := make([]domain.TextBlock, 0, len(items))
	for _, it := range items {
		if it.Str == "" {
			continue
		}
		x := it.Transform[4]
		y := it.Transform[5]
		h := it.Height
		if h <= 0 {
			h = math.Abs(it.Transform[3])
		}
		out = append(out, domain.TextBlock{
			Text: it.Str,
			Page: page,
			BoundingBox: domain.BoundingBox{
				Top:    clamp01(1 - (y+h)/pageH),
				Left:   clamp01(x / pageW),
				Width:  clamp01(it.Width / pageW),
				Height: clamp01(h / pageH),
			},
		})
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
