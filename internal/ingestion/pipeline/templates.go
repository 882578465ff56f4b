package pipeline

import (
	"fmt"
	"strings"

	"github.com/yungbote/athro-ingest/internal/domain"
	"github.com/yungbote/athro-ingest/internal/ingestion/extractor"
)

// Alternatives offered whenever a document cannot be read.
var Alternatives = []string{
	"Discuss the topic with you directly",
	"Create study materials based on your description of the document",
	"Prepare practice questions on the subject",
	"Help you organize a study approach for this material",
}

const pasteTextHint = "If you can open the document yourself, copy and paste its text into the chat and I will work with it directly."

// FailureTemplate explains in plain language why a document could not be read
// and what can still be done. It never carries extracted text.
func FailureTemplate(kind domain.DocumentKind, fileName, topic, reason string) domain.ExtractionResult {
	if strings.TrimSpace(fileName) == "" {
		fileName = "(unnamed file)"
	}

	var b strings.Builder
	switch kind {
	case domain.KindWord:
		fmt.Fprintf(&b, "I wasn't able to read the text of the Word document \"%s\".\n", fileName)
	case domain.KindPDF:
		fmt.Fprintf(&b, "I wasn't able to extract text from the PDF \"%s\".\n", fileName)
	default:
		fmt.Fprintf(&b, "I wasn't able to process the document \"%s\".\n", fileName)
	}
	if topic = strings.TrimSpace(topic); topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", topic)
	}
	b.WriteString("\n")
	b.WriteString(reasonText(kind, reason))
	b.WriteString("\n\nI can still help you in other ways:\n")
	for i, alt := range Alternatives {
		fmt.Fprintf(&b, "%d. %s\n", i+1, alt)
	}
	if kind == domain.KindWord {
		b.WriteString("\n")
		b.WriteString(pasteTextHint)
	}
	return domain.ExtractionResult{Content: strings.TrimRight(b.String(), "\n"), IsActualContent: false}
}

func reasonText(kind domain.DocumentKind, reason string) string {
	switch reason {
	case extractor.ReasonEncrypted:
		return "The file appears to be password-protected or encrypted, so its text cannot be read."
	case extractor.ReasonImageOnly:
		return "The file appears to contain scanned images rather than selectable text, so there was no text to read."
	case extractor.ReasonBadHeader, extractor.ReasonDecode, extractor.ReasonInvalidDoc:
		return fmt.Sprintf("The file does not look like a valid %s file. It may be corrupted or saved in a different format.", fileKindName(kind))
	case extractor.ReasonNotArchive, extractor.ReasonMissingBody:
		return "The document could not be unpacked. It may be damaged or saved in an older format that is not supported."
	case extractor.ReasonUnsupported:
		return "This file type is not supported for text extraction."
	case extractor.ReasonTooLarge:
		return "The document is too large to process."
	case extractor.ReasonEmpty:
		return "No readable text was found in the file."
	default:
		return "The text could not be extracted from this file."
	}
}

func fileKindName(kind domain.DocumentKind) string {
	switch kind {
	case domain.KindWord, domain.KindPDF:
		return kind.Label()
	case domain.KindText:
		return "text"
	default:
		return "document"
	}
}
