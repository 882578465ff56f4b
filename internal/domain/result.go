package domain

// ExtractionResult is the only value that leaves the ingestion pipeline. When
// IsActualContent is false, Content is an explanatory template, never raw text.
type ExtractionResult struct {
	Content         string `json:"content"`
	IsActualContent bool   `json:"isActualContent"`
}
