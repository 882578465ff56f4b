package extractor

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

const docxExtractorName = "docx"

// MarkupExtractor pulls plain text out of WordprocessingML (.docx) archives.
type MarkupExtractor struct{}

func NewMarkupExtractor() *MarkupExtractor { return &MarkupExtractor{} }

func (m *MarkupExtractor) Extract(data []byte) (Extraction, error) {
	if !isZip(data) {
		return Extraction{}, newError(docxExtractorName, CodeUnpack, ReasonNotArchive, nil)
	}

	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Extraction{}, newError(docxExtractorName, CodeUnpack, ReasonMissingBody, err)
	}
	defer r.Close()

	text, err := wordprocessingText(r.Editable().GetContent())
	if err != nil {
		return Extraction{}, newError(docxExtractorName, CodeUnpack, ReasonDecode, err)
	}
	text = cleanText(text)
	if text == "" {
		return Extraction{}, newError(docxExtractorName, CodeUnpack, ReasonEmpty, nil)
	}
	return Extraction{Text: text, Pages: 1, Source: SourceDocx}, nil
}

// wordprocessingText walks document.xml: w:t runs become text, w:tab a tab,
// w:br/w:cr a newline, and every closed paragraph ends a line. Deleted runs
// (w:delText) and field instructions (w:instrText) are skipped.
func wordprocessingText(body string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(body))
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(el)
			}
		}
	}
	return b.String(), nil
}
