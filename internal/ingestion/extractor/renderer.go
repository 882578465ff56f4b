package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/semaphore"

	"github.com/yungbote/athro-ingest/internal/platform/ctxutil"
)

type RenderMode int

const (
	// RenderModeWorker parses on a dedicated goroutine that must win a worker slot.
	RenderModeWorker RenderMode = iota
	// RenderModeInline parses on the caller's goroutine.
	RenderModeInline
)

func (m RenderMode) String() string {
	if m == RenderModeInline {
		return "inline"
	}
	return "worker"
}

// TextItem is one positioned run of text. Transform follows the PDF text matrix
// layout [a b c d e f]; e/f are the origin in page units, y growing upwards.
type TextItem struct {
	Str       string
	Transform [6]float64
	Width     float64
	Height    float64
}

type RenderedDocument interface {
	NumPages() int
	PageSize(page int) (width, height float64)
	TextContent(page int) ([]TextItem, error)
}

type Renderer interface {
	Load(ctx context.Context, data []byte, mode RenderMode) (RenderedDocument, error)
}

type PDFRendererConfig struct {
	MaxWorkers         int
	WorkerStartTimeout time.Duration
	MaxPages           int
}

// PDFRenderer decodes PDFs with ledongthuc/pdf. Every page is decoded up front so
// the worker goroutine carries the whole parse.
type PDFRenderer struct {
	slots        *semaphore.Weighted
	startTimeout time.Duration
	maxPages     int
}

func NewPDFRenderer(cfg PDFRendererConfig) *PDFRenderer {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.WorkerStartTimeout <= 0 {
		cfg.WorkerStartTimeout = 2 * time.Second
	}
	return &PDFRenderer{
		slots:        semaphore.NewWeighted(int64(cfg.MaxWorkers)),
		startTimeout: cfg.WorkerStartTimeout,
		maxPages:     cfg.MaxPages,
	}
}

type parseResult struct {
	doc *renderedPDF
	err error
}

func (r *PDFRenderer) Load(ctx context.Context, data []byte, mode RenderMode) (RenderedDocument, error) {
	ctx = ctxutil.Default(ctx)
	if mode == RenderModeInline {
		return r.parse(data)
	}

	startCtx, cancel := context.WithTimeout(ctx, r.startTimeout)
	err := r.slots.Acquire(startCtx, 1)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, newError(localExtractorName, CodeWorkerLoad, ReasonWorkerTimeout, err)
	}

	done := make(chan parseResult, 1)
	go func() {
		defer r.slots.Release(1)
		doc, err := parseDocument(data, r.maxPages)
		done <- parseResult{doc: doc, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return res.doc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *PDFRenderer) parse(data []byte) (RenderedDocument, error) {
	doc, err := parseDocument(data, r.maxPages)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type renderedPage struct {
	width  float64
	height float64
	items  []TextItem
	err    error
}

type renderedPDF struct {
	pages []renderedPage
}

func (d *renderedPDF) NumPages() int { return len(d.pages) }

func (d *renderedPDF) PageSize(page int) (float64, float64) {
	if page < 1 || page > len(d.pages) {
		return defaultPageWidth, defaultPageHeight
	}
	p := d.pages[page-1]
	return p.width, p.height
}

func (d *renderedPDF) TextContent(page int) ([]TextItem, error) {
	if page < 1 || page > len(d.pages) {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	p := d.pages[page-1]
	return p.items, p.err
}

const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0

	// Gaps are measured in multiples of the font size.
	wordGap  = 0.2
	runSplit = 2.0
)

func parseDocument(data []byte, maxPages int) (doc *renderedPDF, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = newError(localExtractorName, CodeInvalidFormat, ReasonDecode, fmt.Errorf("pdf reader panic: %v", rec))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, newError(localExtractorName, CodeNoExtractableText, ReasonEncrypted, err)
		}
		return nil, newError(localExtractorName, CodeInvalidFormat, ReasonDecode, err)
	}

	n := r.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	doc = &renderedPDF{pages: make([]renderedPage, n)}
	for i := 1; i <= n; i++ {
		doc.pages[i-1] = decodePage(r.Page(i))
	}
	return doc, nil
}

func decodePage(p pdf.Page) (rp renderedPage) {
	rp.width, rp.height = defaultPageWidth, defaultPageHeight
	defer func() {
		if rec := recover(); rec != nil {
			rp.items = nil
			rp.err = fmt.Errorf("decode page: %v", rec)
		}
	}()
	if p.V.IsNull() {
		rp.err = errors.New("page not found")
		return rp
	}
	w, h, ox, oy := mediaBox(p)
	rp.width, rp.height = w, h
	rp.items = mergeRuns(p.Content().Text, ox, oy)
	return rp
}

// mediaBox resolves the inherited /MediaBox, falling back to US Letter.
func mediaBox(p pdf.Page) (w, h, ox, oy float64) {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() != 4 {
			continue
		}
		llx, lly := box.Index(0).Float64(), box.Index(1).Float64()
		urx, ury := box.Index(2).Float64(), box.Index(3).Float64()
		if urx-llx > 0 && ury-lly > 0 {
			return urx - llx, ury - lly, llx, lly
		}
		break
	}
	return defaultPageWidth, defaultPageHeight, 0, 0
}

type run struct {
	b        strings.Builder
	x, y     float64
	w        float64
	fontSize float64
}

// mergeRuns joins per-glyph text into runs: glyphs on the same baseline are
// ordered by x and joined, inserting a space on word-sized gaps and starting a
// new run on gaps wider than runSplit font sizes.
func mergeRuns(texts []pdf.Text, ox, oy float64) []TextItem {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			glyphs = append(glyphs, t)
		}
	}
	if len(glyphs) == 0 {
		return nil
	}
	sort.SliceStable(glyphs, func(i, j int) bool {
		if glyphs[i].Y != glyphs[j].Y {
			return glyphs[i].Y > glyphs[j].Y
		}
		return glyphs[i].X < glyphs[j].X
	})

	var lines [][]pdf.Text
	var cur []pdf.Text
	lineY := 0.0
	for _, g := range glyphs {
		tol := math.Max(g.FontSize*0.5, 1)
		if len(cur) > 0 && math.Abs(g.Y-lineY) >= tol {
			lines = append(lines, cur)
			cur = nil
		}
		if len(cur) == 0 {
			lineY = g.Y
		}
		cur = append(cur, g)
	}
	lines = append(lines, cur)

	var out []TextItem
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })
		var r *run
		flush := func() {
			if r == nil {
				return
			}
			if s := strings.TrimSpace(r.b.String()); s != "" {
				fs := math.Max(r.fontSize, 1)
				out = append(out, TextItem{
					Str:       s,
					Transform: [6]float64{fs, 0, 0, fs, r.x - ox, r.y - oy},
					Width:     r.w,
					Height:    fs,
				})
			}
			r = nil
		}
		for _, g := range line {
			if r != nil {
				fs := math.Max(r.fontSize, 1)
				gap := g.X - (r.x + r.w)
				if gap > fs*runSplit {
					flush()
				} else if gap > fs*wordGap && g.S != " " && !strings.HasSuffix(r.b.String(), " ") {
					r.b.WriteByte(' ')
				}
			}
			if r == nil {
				r = &run{x: g.X, y: g.Y, fontSize: g.FontSize}
			}
			r.b.WriteString(g.S)
			if end := g.X + g.W - r.x; end > r.w {
				r.w = end
			}
			if g.FontSize > r.fontSize {
				r.fontSize = g.FontSize
			}
		}
		flush()
	}
	return out
}
