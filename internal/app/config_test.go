package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/yungbote/athro-ingest/internal/ingestion/layout"
	"github.com/yungbote/athro-ingest/internal/ingestion/pipeline"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "OCR_PROVIDER", "STORAGE_BUCKETS", "CONFIG_FILE", "MAX_CONCURRENT_DOCUMENTS"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadConfig(logger.Nop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port: want=%q got=%q", "8080", cfg.Port)
	}
	if cfg.OCRProvider != OCRProviderAuto {
		t.Fatalf("ocr provider: want=auto got=%q", cfg.OCRProvider)
	}
	if cfg.MaxConcurrentDocuments != 4 {
		t.Fatalf("max concurrent: want=4 got=%d", cfg.MaxConcurrentDocuments)
	}
	if cfg.Layout != layout.DefaultConfig() {
		t.Fatalf("layout: want defaults got=%+v", cfg.Layout)
	}
	if cfg.Response != pipeline.DefaultResponseConfig() {
		t.Fatalf("response: want defaults got=%+v", cfg.Response)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("OCR_PROVIDER", "DocumentAI")
	t.Setenv("DOCUMENTAI_PROJECT_ID", "proj")
	t.Setenv("DOCUMENTAI_PROCESSOR_ID", "proc")
	t.Setenv("OCR_TIMEOUT", "90")
	t.Setenv("STORAGE_BUCKETS", "primary, legacy ,")
	t.Setenv("PDF_WORKER_START_TIMEOUT", "250ms")

	cfg, err := LoadConfig(logger.Nop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.OCRProvider != OCRProviderDocumentAI {
		t.Fatalf("ocr provider: want=%q got=%q", OCRProviderDocumentAI, cfg.OCRProvider)
	}
	if cfg.DocumentAI.ProjectID != "proj" || cfg.DocumentAI.ProcessorID != "proc" {
		t.Fatalf("documentai: got=%+v", cfg.DocumentAI)
	}
	if cfg.DocumentAI.Timeout != 90*time.Second {
		t.Fatalf("documentai timeout: want=90s got=%s", cfg.DocumentAI.Timeout)
	}
	if !reflect.DeepEqual(cfg.StorageBuckets, []string{"primary", "legacy"}) {
		t.Fatalf("buckets: got=%v", cfg.StorageBuckets)
	}
	if cfg.PDF.WorkerStartTimeout != 250*time.Millisecond {
		t.Fatalf("worker start timeout: want=250ms got=%s", cfg.PDF.WorkerStartTimeout)
	}
}

func TestLoadConfigRejectsUnknownOCRProvider(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("OCR_PROVIDER", "tesseract")
	if _, err := LoadConfig(logger.Nop()); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestLoadConfigFileOverlaysThresholds(t *testing.T) {
	t.Setenv("OCR_PROVIDER", "")
	path := filepath.Join(t.TempDir(), "ingest.yaml")
	body := "layout:\n  minBilingualWords: 25\nresponse:\n  maxFullWords: 800\n  previewWords: 120\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig(logger.Nop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Layout.MinBilingualWords != 25 {
		t.Fatalf("minBilingualWords: want=25 got=%d", cfg.Layout.MinBilingualWords)
	}
	if cfg.Layout.Midline != layout.DefaultConfig().Midline {
		t.Fatalf("midline should keep its default, got=%v", cfg.Layout.Midline)
	}
	if cfg.Response.MaxFullWords != 800 || cfg.Response.PreviewWords != 120 {
		t.Fatalf("response: got=%+v", cfg.Response)
	}
	if cfg.Response.MaxFullPDFPages != pipeline.DefaultResponseConfig().MaxFullPDFPages {
		t.Fatalf("maxFullPdfPages should keep its default, got=%d", cfg.Response.MaxFullPDFPages)
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	t.Setenv("OCR_PROVIDER", "")
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("layout: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	if _, err := LoadConfig(logger.Nop()); err == nil {
		t.Fatalf("expected parse error")
	}

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(logger.Nop()); err == nil {
		t.Fatalf("expected read error")
	}
}
