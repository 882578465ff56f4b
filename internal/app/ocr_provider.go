package app

import (
	"context"
	"fmt"
	"io"

	"github.com/yungbote/athro-ingest/internal/ingestion/extractor"
	"github.com/yungbote/athro-ingest/internal/platform/gcp"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

type closingDetector interface {
	extractor.TextDetector
	io.Closer
}

var (
	newVisionDetector = func(ctx context.Context, log *logger.Logger, cfg gcp.VisionConfig) (closingDetector, error) {
		return gcp.NewVisionDetector(ctx, log, cfg)
	}
	newDocumentDetector = func(ctx context.Context, log *logger.Logger, cfg gcp.DocumentConfig) (closingDetector, error) {
		return gcp.NewDocumentDetector(ctx, log, cfg)
	}
	hasCloudCredentials = gcp.HasCredentials
)

// resolveDetector returns nil when cloud OCR is off. An explicitly requested
// provider that cannot start is an error; in auto mode Vision is used only when
// credentials are configured, and a failed start just disables cloud OCR.
func resolveDetector(ctx context.Context, log *logger.Logger, cfg Config) (closingDetector, error) {
	provider := cfg.OCRProvider
	if provider == OCRProviderAuto {
		if !hasCloudCredentials() {
			log.Info("No Google credentials configured; cloud OCR disabled")
			return nil, nil
		}
		provider = OCRProviderVision
	}

	var (
		det closingDetector
		err error
	)
	switch provider {
	case OCRProviderNone:
		log.Info("Cloud OCR disabled by configuration")
		return nil, nil
	case OCRProviderVision:
		det, err = newVisionDetector(ctx, log, gcp.VisionConfig{MaxPages: cfg.VisionMaxPages, Timeout: cfg.OCRTimeout})
	case OCRProviderDocumentAI:
		det, err = newDocumentDetector(ctx, log, cfg.DocumentAI)
	default:
		return nil, fmt.Errorf("unsupported OCR provider %q", provider)
	}
	if err != nil {
		if cfg.OCRProvider == OCRProviderAuto {
			log.Warn("Cloud OCR unavailable; continuing with local extraction only", "provider", provider, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("init %s OCR: %w", provider, err)
	}
	log.Info("Cloud OCR enabled", "provider", provider)
	return det, nil
}
