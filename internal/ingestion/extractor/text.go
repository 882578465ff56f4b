package extractor

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	textExtractorName  = "plain_text"
	sniffExtractorName = "text_sniff"
)

var htmlTagRE = regexp.MustCompile(`(?s)<[^>]*>`)

// PlainTextExtractor decodes text files: UTF-8, UTF-16 with a BOM, or
// Windows-1252 when the bytes are not valid UTF-8.
type PlainTextExtractor struct{}

func NewPlainTextExtractor() *PlainTextExtractor { return &PlainTextExtractor{} }

func (p *PlainTextExtractor) Extract(fileName string, data []byte) (Extraction, error) {
	if len(data) == 0 {
		return Extraction{}, newError(textExtractorName, CodeNoExtractableText, ReasonEmpty, nil)
	}
	s, err := decodeText(data)
	if err != nil {
		return Extraction{}, newError(textExtractorName, CodeNoExtractableText, ReasonDecode, err)
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == ".html" || ext == ".htm" {
		s = htmlTagRE.ReplaceAllString(s, " ")
	}
	s = cleanText(s)
	if s == "" {
		return Extraction{}, newError(textExtractorName, CodeNoExtractableText, ReasonEmpty, nil)
	}
	return Extraction{Text: s, Pages: 1, Source: SourceText}, nil
}

// Sniff is the last resort for unrecognized files: bytes that look like text
// are decoded, anything else is reported as having no extractable text.
func (p *PlainTextExtractor) Sniff(data []byte) (Extraction, error) {
	if !LooksLikeText(data) {
		return Extraction{}, newError(sniffExtractorName, CodeNoExtractableText, ReasonUnsupported, nil)
	}
	ex, err := p.Extract("", data)
	if err != nil {
		return Extraction{}, err
	}
	ex.Source = SourceTextSniff
	return ex, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) && !bytes.HasPrefix(data, utf8BOM) {
		return string(data), nil
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(charmap.Windows1252.NewDecoder()), data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
