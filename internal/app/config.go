package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/athro-ingest/internal/ingestion/extractor"
	"github.com/yungbote/athro-ingest/internal/ingestion/layout"
	"github.com/yungbote/athro-ingest/internal/ingestion/pipeline"
	"github.com/yungbote/athro-ingest/internal/platform/envutil"
	"github.com/yungbote/athro-ingest/internal/platform/gcp"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

const (
	OCRProviderAuto       = ""
	OCRProviderVision     = "vision"
	OCRProviderDocumentAI = "documentai"
	OCRProviderNone       = "none"
)

type Config struct {
	Port        string
	ServiceName string
	Environment string
	Version     string

	ObjectStorageMode   string
	StorageEmulatorHost string
	StorageBuckets      []string
	DocumentRoot        string
	MaxDownloadBytes    int64
	MaxUploadBytes      int64

	OCRProvider    string
	OCRTimeout     time.Duration
	VisionMaxPages int
	DocumentAI     gcp.DocumentConfig

	MaxConcurrentDocuments int
	MaxBatch               int
	PDF                    extractor.PDFRendererConfig
	Layout                 layout.Config
	Response               pipeline.ResponseConfig

	AllowedOrigins []string
	MetricsAddr    string
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE. It only carries
// tuning knobs; deployment settings stay in the environment.
type fileConfig struct {
	Layout   layout.Config           `yaml:"layout"`
	Response pipeline.ResponseConfig `yaml:"response"`
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		ServiceName: envutil.String("SERVICE_NAME", "athro-ingest"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", ""),

		ObjectStorageMode:   envutil.String("OBJECT_STORAGE_MODE", ""),
		StorageEmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", ""),
		StorageBuckets:      envutil.List("STORAGE_BUCKETS"),
		DocumentRoot:        envutil.String("DOCUMENT_ROOT", ""),
		MaxDownloadBytes:    envutil.Int64("MAX_DOWNLOAD_BYTES", 50<<20),
		MaxUploadBytes:      envutil.Int64("MAX_UPLOAD_BYTES", 50<<20),

		OCRProvider:    strings.ToLower(envutil.String("OCR_PROVIDER", OCRProviderAuto)),
		OCRTimeout:     envutil.Duration("OCR_TIMEOUT", 0),
		VisionMaxPages: envutil.Int("VISION_MAX_PAGES", 50),
		DocumentAI: gcp.DocumentConfig{
			ProjectID:        envutil.String("DOCUMENTAI_PROJECT_ID", ""),
			Location:         envutil.String("DOCUMENTAI_LOCATION", "us"),
			ProcessorID:      envutil.String("DOCUMENTAI_PROCESSOR_ID", ""),
			ProcessorVersion: envutil.String("DOCUMENTAI_PROCESSOR_VERSION", ""),
		},

		MaxConcurrentDocuments: envutil.Int("MAX_CONCURRENT_DOCUMENTS", 4),
		MaxBatch:               envutil.Int("MAX_BATCH", 20),
		PDF: extractor.PDFRendererConfig{
			MaxWorkers:         envutil.Int("PDF_MAX_WORKERS", 4),
			WorkerStartTimeout: envutil.Duration("PDF_WORKER_START_TIMEOUT", 10*time.Second),
			MaxPages:           envutil.Int("PDF_MAX_PAGES", 0),
		},
		Layout:   layout.DefaultConfig(),
		Response: pipeline.DefaultResponseConfig(),

		AllowedOrigins: envutil.List("CORS_ALLOWED_ORIGINS"),
		MetricsAddr:    envutil.String("METRICS_ADDR", ":9090"),
	}
	cfg.DocumentAI.Timeout = cfg.OCRTimeout

	switch cfg.OCRProvider {
	case OCRProviderAuto, OCRProviderVision, OCRProviderDocumentAI, OCRProviderNone:
	default:
		return cfg, fmt.Errorf("unsupported OCR_PROVIDER %q", cfg.OCRProvider)
	}

	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, err
		}
		if log != nil {
			log.Info("Loaded config file", "path", path)
		}
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	fc := fileConfig{Layout: c.Layout, Response: c.Response}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.Layout = fc.Layout
	c.Response = fc.Response
	return nil
}
