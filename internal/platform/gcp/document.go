package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/fieldmaskpb"

	"github.com/yungbote/athro-ingest/internal/domain"
	"github.com/yungbote/athro-ingest/internal/platform/ctxutil"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

type DocumentConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	Timeout          time.Duration
}

type processDocumentFunc func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error)

// DocumentDetector sends raw PDF bytes to a Document AI OCR processor and returns
// one block per detected line.
type DocumentDetector struct {
	log       *logger.Logger
	client    *documentai.DocumentProcessorClient
	process   processDocumentFunc
	processor string
	timeout   time.Duration
}

// lineFieldMask limits the response to what line blocks need.
var lineFieldMask = []string{"text", "pages.page_number", "pages.dimension", "pages.lines"}

func NewDocumentDetector(ctx context.Context, log *logger.Logger, cfg DocumentConfig) (*DocumentDetector, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "us"
	}
	cfg.Location = location
	name := processorName(cfg.ProjectID, location, cfg.ProcessorID, cfg.ProcessorVersion)
	if name == "" {
		return nil, fmt.Errorf("documentai: project and processor id are required")
	}

	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, ClientOptionsFromEnv()...)
	client, err := documentai.NewDocumentProcessorClient(ctxutil.Default(ctx), opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}

	d := newDocumentDetector(log, func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
		return client.ProcessDocument(ctx, req)
	}, name, cfg.Timeout)
	d.client = client
	d.log.Info("Document AI initialized", "endpoint", endpoint, "processor", name)
	return d, nil
}

func newDocumentDetector(log *logger.Logger, process processDocumentFunc, processor string, timeout time.Duration) *DocumentDetector {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &DocumentDetector{
		log:       log.With("service", "gcp.Document"),
		process:   process,
		processor: processor,
		timeout:   timeout,
	}
}

func (d *DocumentDetector) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *DocumentDetector) DetectText(ctx context.Context, data []byte) (*domain.Detection, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), d.timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: d.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: "application/pdf",
			},
		},
		FieldMask: &fieldmaskpb.FieldMask{Paths: lineFieldMask},
	}
	resp, err := d.process(ctx, req)
	if err != nil {
		return nil, classifyRemote("documentai ProcessDocument", err)
	}
	if resp == nil || resp.Document == nil {
		return &domain.Detection{}, nil
	}
	out := documentLines(resp.Document)
	d.log.Debug("documentai text detection done", "pages", out.Pages, "blocks", len(out.Blocks))
	return out, nil
}

func documentLines(doc *documentaipb.Document) *domain.Detection {
	out := &domain.Detection{}
	for i, p := range doc.Pages {
		if p == nil {
			continue
		}
		page := int(p.PageNumber)
		if page <= 0 {
			page = i + 1
		}
		if page > out.Pages {
			out.Pages = page
		}
		var w, h float64
		if p.Dimension != nil {
			w, h = float64(p.Dimension.Width), float64(p.Dimension.Height)
		}
		for _, ln := range p.Lines {
			if ln == nil || ln.Layout == nil {
				continue
			}
			text := collapseWhitespace(textFromAnchor(doc.Text, ln.Layout.TextAnchor))
			if text == "" {
				continue
			}
			box, ok := documentBox(ln.Layout.BoundingPoly, w, h)
			if !ok {
				continue
			}
			out.Blocks = append(out.Blocks, domain.TextBlock{Text: text, BoundingBox: box, Page: page})
		}
	}
	return out
}

func documentBox(bp *documentaipb.BoundingPoly, width, height float64) (domain.BoundingBox, bool) {
	if bp == nil {
		return domain.BoundingBox{}, false
	}
	var xs, ys []float64
	if len(bp.NormalizedVertices) > 0 {
		for _, v := range bp.NormalizedVertices {
			if v == nil {
				continue
			}
			xs = append(xs, float64(v.X))
			ys = append(ys, float64(v.Y))
		}
		return normalizedBox(xs, ys)
	}
	if width <= 0 || height <= 0 {
		return domain.BoundingBox{}, false
	}
	for _, v := range bp.Vertices {
		if v == nil {
			continue
		}
		xs = append(xs, float64(v.X)/width)
		ys = append(ys, float64(v.Y)/height)
	}
	return normalizedBox(xs, ys)
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(anchor.TextSegments) == 0 || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func processorName(project, location, processorID, version string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	version = strings.TrimSpace(version)

	if project == "" || location == "" || processorID == "" {
		return ""
	}
	base := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
	if version != "" {
		return base + "/processorVersions/" + version
	}
	return base
}
