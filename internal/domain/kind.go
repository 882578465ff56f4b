package domain

type DocumentKind int

const (
	KindUnknown DocumentKind = iota
	KindWord
	KindPDF
	KindText
)

func (k DocumentKind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindPDF:
		return "pdf"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Label is the human-facing name used in response headers and templates.
func (k DocumentKind) Label() string {
	switch k {
	case KindWord:
		return "Word"
	case KindPDF:
		return "PDF"
	case KindText:
		return "Text"
	default:
		return "Document"
	}
}
