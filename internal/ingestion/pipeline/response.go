package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/yungbote/athro-ingest/internal/domain"
)

// ResponseConfig bounds how much extracted text is handed on. PDFs get a page
// cap on top of the word cap.
type ResponseConfig struct {
	MaxFullWords    int `yaml:"maxFullWords"`
	MaxFullPDFWords int `yaml:"maxFullPdfWords"`
	MaxFullPDFPages int `yaml:"maxFullPdfPages"`
	PreviewWords    int `yaml:"previewWords"`
	PDFPreviewWords int `yaml:"pdfPreviewWords"`
}

func DefaultResponseConfig() ResponseConfig {
	return ResponseConfig{
		MaxFullWords:    500,
		MaxFullPDFWords: 1000,
		MaxFullPDFPages: 5,
		PreviewWords:    300,
		PDFPreviewWords: 250,
	}
}

func (c ResponseConfig) withDefaults() ResponseConfig {
	d := DefaultResponseConfig()
	if c.MaxFullWords <= 0 {
		c.MaxFullWords = d.MaxFullWords
	}
	if c.MaxFullPDFWords <= 0 {
		c.MaxFullPDFWords = d.MaxFullPDFWords
	}
	if c.MaxFullPDFPages <= 0 {
		c.MaxFullPDFPages = d.MaxFullPDFPages
	}
	if c.PreviewWords <= 0 {
		c.PreviewWords = d.PreviewWords
	}
	if c.PDFPreviewWords <= 0 {
		c.PDFPreviewWords = d.PDFPreviewWords
	}
	return c
}

type ResponseBuilder struct {
	cfg ResponseConfig
}

func NewResponseBuilder(cfg ResponseConfig) *ResponseBuilder {
	return &ResponseBuilder{cfg: cfg.withDefaults()}
}

// Build wraps successfully extracted text. Long documents are cut to a leading
// preview followed by a notice saying how much was left out.
func (b *ResponseBuilder) Build(text, fileName string, kind domain.DocumentKind, pages int, res domain.Resource) domain.ExtractionResult {
	text = strings.TrimSpace(norm.NFC.String(text))
	words := len(strings.Fields(text))

	var out strings.Builder
	if kind == domain.KindUnknown {
		fmt.Fprintf(&out, "Document: %s\n", fileName)
	} else {
		fmt.Fprintf(&out, "%s document: %s\n", kind.Label(), fileName)
	}
	if topic := strings.TrimSpace(res.Topic); topic != "" {
		fmt.Fprintf(&out, "Topic: %s\n", topic)
	}
	if kind == domain.KindPDF && pages > 0 {
		fmt.Fprintf(&out, "Pages: %d\n", pages)
	}
	fmt.Fprintf(&out, "Word count: %d\n\n", words)

	n := b.cfg.PreviewWords
	if kind == domain.KindPDF {
		n = b.cfg.PDFPreviewWords
	}
	// A page-capped PDF shorter than its preview is shown whole.
	if b.fitsWhole(kind, words, pages) || words <= n {
		out.WriteString("Content:\n")
		out.WriteString(text)
		return domain.ExtractionResult{Content: out.String(), IsActualContent: true}
	}

	fmt.Fprintf(&out, "Content preview (first %d of %d words):\n", n, words)
	out.WriteString(leadingWords(text, n))
	fmt.Fprintf(&out, "\n\n[Document continues: the remaining %d words are not shown here but the full document is available for reference.]", words-n)
	return domain.ExtractionResult{Content: out.String(), IsActualContent: true}
}

func (b *ResponseBuilder) fitsWhole(kind domain.DocumentKind, words, pages int) bool {
	if kind == domain.KindPDF {
		return words <= b.cfg.MaxFullPDFWords && pages <= b.cfg.MaxFullPDFPages
	}
	return words <= b.cfg.MaxFullWords
}

// leadingWords returns s up to the end of its n-th word, keeping the original
// line breaks.
func leadingWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	inWord := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			if inWord {
				count++
				if count == n {
					return s[:i]
				}
			}
			inWord = false
			continue
		}
		inWord = true
	}
	return s
}
