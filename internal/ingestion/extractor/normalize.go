package extractor

import (
	"bytes"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/yungbote/athro-ingest/internal/domain"
)

// -------------------- Kind detection --------------------

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".log": true, ".json": true,
	".xml": true, ".html": true, ".htm": true, ".rtf": true,
}

// Classify maps a declared MIME type and file extension onto a DocumentKind.
// A recognized extension wins over a disagreeing MIME type.
func Classify(resourceType, fileExtension string) domain.DocumentKind {
	m := strings.ToLower(strings.TrimSpace(resourceType))
	ext := strings.ToLower(strings.TrimSpace(fileExtension))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	switch {
	case ext == ".docx" || ext == ".doc":
		return domain.KindWord
	case ext == ".pdf":
		return domain.KindPDF
	case textExtensions[ext]:
		return domain.KindText
	}

	switch {
	case strings.Contains(m, "wordprocessingml") || strings.Contains(m, "msword"):
		return domain.KindWord
	case strings.Contains(m, "pdf"):
		return domain.KindPDF
	case strings.HasPrefix(m, "text/"):
		return domain.KindText
	}
	return domain.KindUnknown
}

// ClassifyResource classifies using the resource's declared type and file name.
func ClassifyResource(res domain.Resource, fileName string) domain.DocumentKind {
	if fileName == "" {
		fileName = res.FileName()
	}
	return Classify(res.ResourceType, path.Ext(fileName))
}

func IsPDFHeader(b []byte) bool {
	if len(b) < 5 {
		return false
	}
	return string(b[:5]) == "%PDF-"
}

var zipSignature = []byte("PK\x03\x04")

func isZip(b []byte) bool {
	return bytes.HasPrefix(b, zipSignature)
}

// LooksLikeText reports whether more than 90% of the decoded runes are printable.
func LooksLikeText(data []byte) bool {
	if len(data) == 0 || bytes.IndexByte(data, 0) >= 0 {
		return false
	}
	printable := 0
	total := 0
	for _, r := range string(data) {
		total++
		if r == '\n' || r == '\r' || r == '\t' || r == ' ' {
			printable++
			continue
		}
		if r >= 32 && r != 127 && r != utf8.RuneError {
			printable++
		}
	}
	return total > 0 && float64(printable)/float64(total) > 0.90
}

// -------------------- Text cleanup --------------------

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

func sanitizeUTF8(s string) string {
	if s == "" {
		return s
	}
	if utf8.ValidString(s) {
		return s
	}
	// Replace invalid byte sequences with a space (keeps words separated)
	return strings.ToValidUTF8(s, " ")
}

// cleanText NFC-normalizes, unifies line endings, collapses runs of blank lines
// and trims each line.
func cleanText(s string) string {
	s = norm.NFC.String(sanitizeUTF8(s))
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, ln := range lines {
		ln = strings.TrimRight(strings.ReplaceAll(ln, "\u00a0", " "), " \t")
		if strings.TrimSpace(ln) == "" {
			blank++
			if blank > 1 {
				continue
			}
			ln = ""
		} else {
			blank = 0
		}
		out = append(out, ln)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
