// Package pipeline turns stored study documents into ExtractionResults. It owns
// classification, the per-kind fallback chain and the user-facing wording.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/athro-ingest/internal/domain"
	"github.com/yungbote/athro-ingest/internal/ingestion/extractor"
	"github.com/yungbote/athro-ingest/internal/ingestion/layout"
	"github.com/yungbote/athro-ingest/internal/observability"
	"github.com/yungbote/athro-ingest/internal/platform/ctxutil"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

const (
	StepDocx      = "docx"
	StepCloudOCR  = "cloud_ocr"
	StepLocalPDF  = "local_pdf"
	StepPlainText = "plain_text"
	StepTextSniff = "text_sniff"
)

// Deps is everything the orchestrator is built from. A nil Detector switches
// cloud OCR off; nil Renderer and Prober fall back to the built-in ones.
type Deps struct {
	Log      *logger.Logger
	Source   ByteSource
	Detector extractor.TextDetector
	Renderer extractor.Renderer
	Prober   extractor.Prober

	Layout                 layout.Config
	Response               ResponseConfig
	MaxConcurrentDocuments int
}

type Orchestrator struct {
	log      *logger.Logger
	source   ByteSource
	docx     *extractor.MarkupExtractor
	cloud    *extractor.CloudOCRExtractor
	local    *extractor.LocalPDFExtractor
	text     *extractor.PlainTextExtractor
	response *ResponseBuilder
	tracer   trace.Tracer
	limit    int
}

func New(deps Deps) (*Orchestrator, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = extractor.NewPDFRenderer(extractor.PDFRendererConfig{})
	}
	prober := deps.Prober
	if prober == nil {
		prober = extractor.PDFCPUProber{}
	}
	limit := deps.MaxConcurrentDocuments
	if limit <= 0 {
		limit = 4
	}
	analyzer := layout.New(deps.Layout)
	return &Orchestrator{
		log:      deps.Log.With("component", "ExtractionOrchestrator"),
		source:   deps.Source,
		docx:     extractor.NewMarkupExtractor(),
		cloud:    extractor.NewCloudOCRExtractor(deps.Log, deps.Detector, analyzer),
		local:    extractor.NewLocalPDFExtractor(deps.Log, renderer, analyzer, prober),
		text:     extractor.NewPlainTextExtractor(),
		response: NewResponseBuilder(deps.Response),
		tracer:   observability.Tracer("github.com/yungbote/athro-ingest/internal/ingestion/pipeline"),
		limit:    limit,
	}, nil
}

// CloudOCREnabled reports whether a remote text detector was configured.
func (o *Orchestrator) CloudOCREnabled() bool { return o.cloud != nil }

type step struct {
	name       string
	pdf        bool
	applicable func() bool
	run        func(ctx context.Context, data []byte) (extractor.Extraction, error)
}

func always() bool { return true }

// chain lists the extractors to try for a kind, in order.
func (o *Orchestrator) chain(kind domain.DocumentKind, fileName string) []step {
	docx := step{name: StepDocx, applicable: always, run: func(_ context.Context, data []byte) (extractor.Extraction, error) {
		return o.docx.Extract(data)
	}}
	cloud := step{name: StepCloudOCR, pdf: true, applicable: o.CloudOCREnabled, run: func(ctx context.Context, data []byte) (extractor.Extraction, error) {
		return o.cloud.Extract(ctx, data)
	}}
	local := step{name: StepLocalPDF, pdf: true, applicable: always, run: o.local.Extract}
	text := step{name: StepPlainText, applicable: always, run: func(_ context.Context, data []byte) (extractor.Extraction, error) {
		return o.text.Extract(fileName, data)
	}}
	sniff := step{name: StepTextSniff, applicable: always, run: func(_ context.Context, data []byte) (extractor.Extraction, error) {
		return o.text.Sniff(data)
	}}

	switch kind {
	case domain.KindWord:
		return []step{docx}
	case domain.KindPDF:
		return []step{cloud, local}
	case domain.KindText:
		return []step{text}
	default:
		return []step{cloud, local, sniff}
	}
}

// ProcessDocument fetches the resource's bytes and extracts them. Only storage
// failures, invalid resources and internal errors come back as errors.
func (o *Orchestrator) ProcessDocument(ctx context.Context, res domain.Resource) (domain.ExtractionResult, error) {
	ctx = ctxutil.Default(ctx)
	if err := res.Validate(); err != nil {
		return domain.ExtractionResult{}, err
	}
	if o.source == nil {
		return domain.ExtractionResult{}, fmt.Errorf("no byte source configured")
	}
	data, err := o.source.Fetch(ctx, res.ResourcePath)
	if err != nil {
		o.log.Warn("document fetch failed",
			"resource_id", res.ID,
			"path", res.ResourcePath,
			"request_id", ctxutil.RequestID(ctx),
			"error", err,
		)
		return domain.ExtractionResult{}, err
	}
	return o.ProcessBytes(ctx, res, res.FileName(), data)
}

// ProcessBytes runs extraction on bytes the caller already holds.
func (o *Orchestrator) ProcessBytes(ctx context.Context, res domain.Resource, fileName string, data []byte) (domain.ExtractionResult, error) {
	ctx = ctxutil.Default(ctx)
	if fileName == "" {
		fileName = res.FileName()
	}
	if fileName == "" {
		return domain.ExtractionResult{}, errors.Join(domain.ErrInvalidResource, errors.New("file name is required"))
	}

	started := time.Now()
	kind := extractor.ClassifyResource(res, fileName)
	ctx, span := o.tracer.Start(ctx, "pipeline.ProcessBytes", trace.WithAttributes(
		attribute.String("document.kind", kind.String()),
		attribute.String("document.file", fileName),
		attribute.Int("document.bytes", len(data)),
	))
	defer span.End()

	ex, lastErr, err := o.runChain(ctx, kind, fileName, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		observability.Current().ObserveExtraction(kind.String(), "", observability.OutcomeError, time.Since(started))
		return domain.ExtractionResult{}, err
	}

	if lastErr != nil {
		reason := extractor.ReasonOf(lastErr)
		span.SetAttributes(attribute.String("extraction.failure_reason", reason))
		o.log.Info("document extraction failed, returning template",
			"file", fileName,
			"kind", kind.String(),
			"reason", reason,
			"request_id", ctxutil.RequestID(ctx),
			"error", lastErr,
		)
		observability.Current().ObserveExtraction(kind.String(), "", observability.OutcomeTemplate, time.Since(started))
		return FailureTemplate(kind, fileName, res.Topic, reason), nil
	}

	span.SetAttributes(
		attribute.String("extraction.source", ex.Source),
		attribute.Int("extraction.pages", ex.Pages),
	)
	o.log.Info("document extracted",
		"file", fileName,
		"kind", kind.String(),
		"source", ex.Source,
		"pages", ex.Pages,
		"request_id", ctxutil.RequestID(ctx),
	)
	observability.Current().ObserveExtraction(kind.String(), ex.Source, observability.OutcomeContent, time.Since(started))
	return o.response.Build(ex.Text, fileName, responseKind(kind, ex.Source), ex.Pages, res), nil
}

// runChain returns the first successful extraction. When every step fails it
// returns the last step error as lastErr; err is set only for conditions the
// caller has to see (cancellation, internal failures).
func (o *Orchestrator) runChain(ctx context.Context, kind domain.DocumentKind, fileName string, data []byte) (ex extractor.Extraction, lastErr error, err error) {
	skipPDF := false
	for _, st := range o.chain(kind, fileName) {
		if !st.applicable() || (st.pdf && skipPDF) {
			continue
		}
		got, stepErr := o.runStep(ctx, st, data)
		if stepErr == nil {
			return got, nil, nil
		}
		if errors.Is(stepErr, context.Canceled) || errors.Is(stepErr, context.DeadlineExceeded) {
			return extractor.Extraction{}, nil, stepErr
		}
		var ee *extractor.ExtractionError
		if !errors.As(stepErr, &ee) {
			return extractor.Extraction{}, nil, fmt.Errorf("%s: %w", st.name, stepErr)
		}
		observability.Current().IncStepFailure(st.name, string(ee.Code), ee.Reason)
		o.log.Debug("extraction step failed", "step", st.name, "file", fileName, "code", ee.Code, "reason", ee.Reason)
		if st.pdf && errors.Is(stepErr, extractor.ErrInvalidFormat) {
			skipPDF = true
		}
		lastErr = stepErr
	}
	if lastErr == nil {
		lastErr = &extractor.ExtractionError{Code: extractor.CodeNoExtractableText, Extractor: "pipeline", Reason: extractor.ReasonUnsupported}
	}
	return extractor.Extraction{}, lastErr, nil
}

func (o *Orchestrator) runStep(ctx context.Context, st step, data []byte) (ex extractor.Extraction, err error) {
	ctx, span := o.tracer.Start(ctx, "extract."+st.name)
	defer span.End()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("extractor panic: %v", rec)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
	}()
	return st.run(ctx, data)
}

// responseKind picks the truncation policy. Unknown files that rendered as a
// PDF are treated as PDFs.
func responseKind(kind domain.DocumentKind, source string) domain.DocumentKind {
	if kind != domain.KindUnknown {
		return kind
	}
	switch source {
	case extractor.SourceCloudOCR, extractor.SourceLocalPDFWorker, extractor.SourceLocalPDFInline:
		return domain.KindPDF
	}
	return kind
}
