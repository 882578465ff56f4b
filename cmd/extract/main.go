package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/yungbote/athro-ingest/internal/app"
	"github.com/yungbote/athro-ingest/internal/domain"
	"github.com/yungbote/athro-ingest/internal/ingestion/pipeline"
	"github.com/yungbote/athro-ingest/internal/platform/envutil"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

type fileList []string

func (l *fileList) String() string { return strings.Join(*l, ",") }
func (l *fileList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var files fileList
	var mime, topic, root string
	var asContext bool
	flag.Var(&files, "file", "document to extract (repeatable)")
	flag.StringVar(&mime, "mime", "", "declared MIME type (default: guessed from the extension)")
	flag.StringVar(&topic, "topic", "", "study topic shown in the output header")
	flag.StringVar(&root, "root", "", "resolve -file paths below this directory")
	flag.BoolVar(&asContext, "context", false, "print the combined tutoring context instead of JSON results")
	flag.Parse()

	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: extract -file path [-file path ...] [-mime type] [-topic t] [-root dir] [-context]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := app.LoadConfig(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	resources := make([]domain.Resource, 0, len(files))
	for _, f := range files {
		p := f
		if root == "" {
			if p, err = filepath.Abs(f); err != nil {
				fmt.Fprintf(os.Stderr, "resolve %s: %v\n", f, err)
				os.Exit(1)
			}
		}
		resources = append(resources, domain.Resource{
			ID:           f,
			Topic:        topic,
			ResourceType: mime,
			ResourcePath: filepath.ToSlash(p),
		})
	}
	if root == "" {
		root = string(filepath.Separator)
	}

	source := pipeline.FileByteSource{Root: root, MaxBytes: cfg.MaxDownloadBytes}
	orch, closers, err := app.NewOrchestrator(ctx, log, cfg, source)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init pipeline: %v\n", err)
		os.Exit(1)
	}

	if asContext {
		fmt.Println(orch.BuildContext(ctx, resources))
		return
	}

	type output struct {
		File string `json:"file"`
		domain.ExtractionResult
		Error string `json:"error,omitempty"`
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := false
	for _, item := range orch.ProcessBatch(ctx, resources) {
		out := output{File: item.Resource.ID, ExtractionResult: item.Result}
		if item.Err != nil {
			failed = true
			out.Error = item.Err.Error()
		}
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "write result: %v\n", err)
			os.Exit(1)
		}
	}
	if failed {
		os.Exit(1)
	}
}
