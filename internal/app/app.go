package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	apihttp "github.com/yungbote/athro-ingest/internal/http"
	httpH "github.com/yungbote/athro-ingest/internal/http/handlers"
	"github.com/yungbote/athro-ingest/internal/ingestion/extractor"
	"github.com/yungbote/athro-ingest/internal/ingestion/pipeline"
	"github.com/yungbote/athro-ingest/internal/observability"
	"github.com/yungbote/athro-ingest/internal/platform/envutil"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

type App struct {
	Log          *logger.Logger
	Cfg          Config
	Orchestrator *pipeline.Orchestrator
	Server       *apihttp.Server
	Metrics      *observability.Metrics

	closers      []io.Closer
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &App{Log: log, Cfg: cfg}
	a.otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	a.Metrics = observability.Init(log)

	orch, err := a.wirePipeline(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Orchestrator = orch

	a.Server = apihttp.NewServer(":"+cfg.Port, apihttp.RouterConfig{
		Log:             log,
		ServiceName:     cfg.ServiceName,
		AllowedOrigins:  cfg.AllowedOrigins,
		Metrics:         a.Metrics,
		DocumentHandler: httpH.NewDocumentHandler(log, orch, cfg.MaxUploadBytes, cfg.MaxBatch),
		HealthHandler:   httpH.NewHealthHandler(orch.CloudOCREnabled()),
	})
	return a, nil
}

func (a *App) wirePipeline(ctx context.Context) (*pipeline.Orchestrator, error) {
	source, bucket, err := resolveByteSource(a.Log, a.Cfg)
	if err != nil {
		return nil, fmt.Errorf("init document storage: %w", err)
	}
	if bucket != nil {
		a.closers = append(a.closers, bucket)
	}
	orch, closers, err := NewOrchestrator(ctx, a.Log, a.Cfg, source)
	a.closers = append(a.closers, closers...)
	return orch, err
}

// NewOrchestrator builds the extraction pipeline over source. The returned
// closers release the cloud OCR client, if one was started.
func NewOrchestrator(ctx context.Context, log *logger.Logger, cfg Config, source pipeline.ByteSource) (*pipeline.Orchestrator, []io.Closer, error) {
	det, err := resolveDetector(ctx, log, cfg)
	if err != nil {
		return nil, nil, err
	}
	// A nil *VisionDetector inside the interface would look configured.
	var (
		detector extractor.TextDetector
		closers  []io.Closer
	)
	if det != nil {
		detector = det
		closers = append(closers, det)
	}

	orch, err := pipeline.New(pipeline.Deps{
		Log:                    log,
		Source:                 source,
		Detector:               detector,
		Renderer:               extractor.NewPDFRenderer(cfg.PDF),
		Layout:                 cfg.Layout,
		Response:               cfg.Response,
		MaxConcurrentDocuments: cfg.MaxConcurrentDocuments,
	})
	return orch, closers, err
}

// Start launches background servers that live until ctx ends or Close is called.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "port", a.Cfg.Port)
	return a.Server.Run()
}

func (a *App) Shutdown(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return nil
	}
	return a.Server.Shutdown(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	if a.otelShutdown != nil {
		errs = append(errs, a.otelShutdown(context.Background()))
	}
	if err := errors.Join(errs...); err != nil && a.Log != nil {
		a.Log.Warn("shutdown cleanup failed", "error", err)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
