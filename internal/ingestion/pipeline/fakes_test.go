package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/athro-ingest/internal/domain"
	"github.com/yungbote/athro-ingest/internal/ingestion/extractor"
	"github.com/yungbote/athro-ingest/internal/platform/gcp"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

var pdfHeader = []byte("%PDF-1.4\n")

type fakeDetector struct {
	calls int
	det   *domain.Detection
	err   error
}

func (f *fakeDetector) DetectText(ctx context.Context, data []byte) (*domain.Detection, error) {
	f.calls++
	return f.det, f.err
}

type fakeDoc struct {
	items map[int][]extractor.TextItem
	n     int
}

func (d *fakeDoc) NumPages() int                   { return d.n }
func (d *fakeDoc) PageSize(int) (float64, float64) { return 600, 800 }
func (d *fakeDoc) TextContent(p int) ([]extractor.TextItem, error) {
	return d.items[p], nil
}

type fakeRenderer struct {
	modes  []extractor.RenderMode
	byMode map[extractor.RenderMode]error
	doc    extractor.RenderedDocument
	panics bool
}

func (r *fakeRenderer) Load(ctx context.Context, data []byte, mode extractor.RenderMode) (extractor.RenderedDocument, error) {
	r.modes = append(r.modes, mode)
	if r.panics {
		panic("renderer blew up")
	}
	if err := r.byMode[mode]; err != nil {
		return nil, err
	}
	return r.doc, nil
}

type fakeProber struct{ probe extractor.PDFProbe }

func (p fakeProber) Probe([]byte) (extractor.PDFProbe, error) { return p.probe, nil }

// fakeBucket serves objects from an in-memory bucket -> key -> bytes map.
type fakeBucket struct {
	objects map[string]map[string][]byte
	calls   []string
}

func (b *fakeBucket) Download(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error) {
	b.calls = append(b.calls, bucket+"/"+key)
	data, ok := b.objects[bucket][key]
	if !ok {
		return nil, fmt.Errorf("gs://%s/%s: %w", bucket, key, gcp.ErrObjectNotFound)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, gcp.ErrObjectTooLarge
	}
	return data, nil
}

func (b *fakeBucket) Close() error { return nil }

func textItem(s string, x, y float64) extractor.TextItem {
	return extractor.TextItem{Str: s, Transform: [6]float64{10, 0, 0, 10, x, y}, Width: 100, Height: 10}
}

func renderedDoc(lines ...string) *fakeDoc {
	items := make([]extractor.TextItem, 0, len(lines))
	for i, l := range lines {
		items = append(items, textItem(l, 50, 700-float64(i)*20))
	}
	return &fakeDoc{n: 1, items: map[int][]extractor.TextItem{1: items}}
}

func newTestOrchestrator(t *testing.T, deps Deps) *Orchestrator {
	t.Helper()
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Prober == nil {
		deps.Prober = fakeProber{}
	}
	o, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i+1)
	}
	return strings.Join(parts, " ")
}

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		fmt.Fprintf(&body, "<w:p><w:r><w:t>%s</w:t></w:r></w:p>", p)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"word/document.xml":            body.String(),
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func containsAlternative(content string) bool {
	for _, alt := range Alternatives {
		if strings.Contains(content, alt) {
			return true
		}
	}
	return false
}
