package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/athro-ingest/internal/domain"
	"github.com/yungbote/athro-ingest/internal/platform/gcp"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

type stubDetector struct{ name string }

func (d *stubDetector) DetectText(ctx context.Context, data []byte) (*domain.Detection, error) {
	return &domain.Detection{}, nil
}

func (d *stubDetector) Close() error { return nil }

func stubDetectors(t *testing.T, creds bool, visionErr, docErr error) {
	t.Helper()
	origVision, origDoc, origCreds := newVisionDetector, newDocumentDetector, hasCloudCredentials
	t.Cleanup(func() {
		newVisionDetector, newDocumentDetector, hasCloudCredentials = origVision, origDoc, origCreds
	})
	hasCloudCredentials = func() bool { return creds }
	newVisionDetector = func(context.Context, *logger.Logger, gcp.VisionConfig) (closingDetector, error) {
		if visionErr != nil {
			return nil, visionErr
		}
		return &stubDetector{name: OCRProviderVision}, nil
	}
	newDocumentDetector = func(context.Context, *logger.Logger, gcp.DocumentConfig) (closingDetector, error) {
		if docErr != nil {
			return nil, docErr
		}
		return &stubDetector{name: OCRProviderDocumentAI}, nil
	}
}

func detectorName(t *testing.T, det closingDetector) string {
	t.Helper()
	if det == nil {
		return ""
	}
	return det.(*stubDetector).name
}

func TestResolveDetector(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name      string
		provider  string
		creds     bool
		visionErr error
		want      string
		wantErr   bool
	}{
		{"auto without credentials", OCRProviderAuto, false, nil, "", false},
		{"auto with credentials", OCRProviderAuto, true, nil, OCRProviderVision, false},
		{"auto tolerates client failure", OCRProviderAuto, true, boom, "", false},
		{"explicit vision failure", OCRProviderVision, false, boom, "", true},
		{"explicit documentai", OCRProviderDocumentAI, false, nil, OCRProviderDocumentAI, false},
		{"none", OCRProviderNone, true, nil, "", false},
	}
	for _, c := range cases {
		stubDetectors(t, c.creds, c.visionErr, nil)
		det, err := resolveDetector(context.Background(), logger.Nop(), Config{OCRProvider: c.provider})
		if (err != nil) != c.wantErr {
			t.Fatalf("%s: err=%v wantErr=%v", c.name, err, c.wantErr)
		}
		if got := detectorName(t, det); got != c.want {
			t.Fatalf("%s: detector want=%q got=%q", c.name, c.want, got)
		}
	}
}
