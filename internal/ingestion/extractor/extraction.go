package extractor

const (
	SourceCloudOCR       = "cloud_ocr"
	SourceLocalPDFWorker = "local_pdf_worker"
	SourceLocalPDFInline = "local_pdf_inline"
	SourceDocx           = "docx"
	SourceText           = "text"
	SourceTextSniff      = "text_sniff"
)

// Extraction is what every extractor hands back to the orchestrator.
type Extraction struct {
	Text   string
	Pages  int
	Source string
}
