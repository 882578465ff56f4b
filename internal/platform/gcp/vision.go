package gcp

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/yungbote/athro-ingest/internal/domain"
	"github.com/yungbote/athro-ingest/internal/platform/ctxutil"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

// Vision's synchronous file annotation accepts at most five pages per request.
const visionPagesPerRequest = 5

type VisionConfig struct {
	MaxPages int
	Timeout  time.Duration
}

type annotateFilesFunc func(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error)

// VisionDetector runs DOCUMENT_TEXT_DETECTION over inline PDF bytes and returns
// one block per detected text line.
type VisionDetector struct {
	log      *logger.Logger
	client   *vision.ImageAnnotatorClient
	annotate annotateFilesFunc
	maxPages int
	timeout  time.Duration
}

func NewVisionDetector(ctx context.Context, log *logger.Logger, cfg VisionConfig) (*VisionDetector, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	client, err := vision.NewImageAnnotatorClient(ctxutil.Default(ctx), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	d := newVisionDetector(log, func(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error) {
		return client.BatchAnnotateFiles(ctx, req)
	}, cfg)
	d.client = client
	return d, nil
}

func newVisionDetector(log *logger.Logger, annotate annotateFilesFunc, cfg VisionConfig) *VisionDetector {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &VisionDetector{
		log:      log.With("service", "gcp.Vision"),
		annotate: annotate,
		maxPages: cfg.MaxPages,
		timeout:  cfg.Timeout,
	}
}

func (d *VisionDetector) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *VisionDetector) DetectText(ctx context.Context, data []byte) (*domain.Detection, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), d.timeout)
	defer cancel()

	out := &domain.Detection{}
	total := 0
	for first := 1; first <= d.maxPages; first += visionPagesPerRequest {
		if total > 0 && first > total {
			break
		}
		var pages []int32
		if first > 1 {
			last := first + visionPagesPerRequest - 1
			if total > 0 && last > total {
				last = total
			}
			if last > d.maxPages {
				last = d.maxPages
			}
			for p := first; p <= last; p++ {
				pages = append(pages, int32(p))
			}
		}

		resp, err := d.annotate(ctx, fileRequest(data, pages))
		if err != nil {
			return nil, classifyRemote("vision BatchAnnotateFiles", err)
		}
		if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
			break
		}
		fr := resp.Responses[0]
		if fr.Error != nil && fr.Error.GetMessage() != "" {
			return nil, classifyRemote("vision BatchAnnotateFiles", statusError(fr.Error.GetCode(), fr.Error.GetMessage()))
		}
		if fr.TotalPages > 0 {
			total = int(fr.TotalPages)
		}
		for i, ir := range fr.Responses {
			if ir == nil {
				continue
			}
			if ir.Error != nil && ir.Error.GetMessage() != "" {
				d.log.Warn("vision page annotate error", "error", ir.Error.GetMessage())
				continue
			}
			page := first + i
			if ir.Context != nil && ir.Context.PageNumber > 0 {
				page = int(ir.Context.PageNumber)
			}
			out.Blocks = append(out.Blocks, visionLines(ir.FullTextAnnotation, page)...)
			if page > out.Pages {
				out.Pages = page
			}
		}
		if total == 0 {
			break
		}
	}
	if total > 0 && total < d.maxPages {
		out.Pages = total
	}
	d.log.Debug("vision text detection done", "pages", out.Pages, "blocks", len(out.Blocks))
	return out, nil
}

func fileRequest(data []byte, pages []int32) *visionpb.BatchAnnotateFilesRequest {
	return &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{Content: data, MimeType: "application/pdf"},
			Features: []*visionpb.Feature{
				{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
			},
			Pages: pages,
		}},
	}
}

// visionLines flattens a page annotation into line blocks. Vision groups text
// into paragraphs; lines end at EOL_SURE_SPACE, LINE_BREAK or HYPHEN breaks and
// take the union of their words' boxes.
func visionLines(fta *visionpb.TextAnnotation, page int) []domain.TextBlock {
	if fta == nil {
		return nil
	}
	var out []domain.TextBlock
	for _, pg := range fta.Pages {
		if pg == nil {
			continue
		}
		for _, b := range pg.Blocks {
			if b == nil {
				continue
			}
			for _, para := range b.Paragraphs {
				if para == nil {
					continue
				}
				out = append(out, paragraphLines(para, pg.Width, pg.Height, page)...)
			}
		}
	}
	return out
}

func paragraphLines(para *visionpb.Paragraph, width, height int32, page int) []domain.TextBlock {
	var (
		out    []domain.TextBlock
		text   strings.Builder
		box    domain.BoundingBox
		hasBox bool
	)
	flush := func() {
		line := collapseWhitespace(text.String())
		text.Reset()
		if line == "" {
			hasBox = false
			return
		}
		if !hasBox {
			box, hasBox = visionBox(para.BoundingBox, width, height)
		}
		if hasBox {
			out = append(out, domain.TextBlock{Text: line, BoundingBox: box, Page: page})
		}
		hasBox = false
	}

	for _, w := range para.Words {
		if w == nil {
			continue
		}
		if wb, ok := visionBox(w.BoundingBox, width, height); ok {
			if hasBox {
				box = unionBox(box, wb)
			} else {
				box, hasBox = wb, true
			}
		}
		endsLine := false
		for _, s := range w.Symbols {
			if s == nil {
				continue
			}
			text.WriteString(s.Text)
			if s.Property == nil || s.Property.DetectedBreak == nil {
				continue
			}
			switch s.Property.DetectedBreak.Type {
			case visionpb.TextAnnotation_DetectedBreak_SPACE,
				visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
				text.WriteByte(' ')
			case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
				visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
				endsLine = true
			case visionpb.TextAnnotation_DetectedBreak_HYPHEN:
				text.WriteByte('-')
				endsLine = true
			}
		}
		if endsLine {
			flush()
		}
	}
	flush()
	return out
}

func unionBox(a, b domain.BoundingBox) domain.BoundingBox {
	left := math.Min(a.Left, b.Left)
	top := math.Min(a.Top, b.Top)
	right := math.Max(a.Left+a.Width, b.Left+b.Width)
	bottom := math.Max(a.Top+a.Height, b.Top+b.Height)
	return domain.BoundingBox{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

// visionBox prefers normalized vertices (PDF input) and falls back to pixel
// vertices scaled by the page size.
func visionBox(bp *visionpb.BoundingPoly, width, height int32) (domain.BoundingBox, bool) {
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
		xs = append(xs, float64(v.X)/float64(width))
		ys = append(ys, float64(v.Y)/float64(height))
	}
	return normalizedBox(xs, ys)
}
