package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/athro-ingest/internal/domain"
	"github.com/yungbote/athro-ingest/internal/platform/ctxutil"
)

type BatchItem struct {
	Resource domain.Resource
	FileName string
	Result   domain.ExtractionResult
	Err      error
}

// ProcessBatch extracts every resource, at most MaxConcurrentDocuments at a
// time. Results keep the input order; one failure does not stop the others.
func (o *Orchestrator) ProcessBatch(ctx context.Context, resources []domain.Resource) []BatchItem {
	ctx = ctxutil.Default(ctx)
	out := make([]BatchItem, len(resources))

	var g errgroup.Group
	g.SetLimit(o.limit)
	for i, res := range resources {
		out[i] = BatchItem{Resource: res, FileName: displayName(res)}
		g.Go(func() error {
			result, err := o.ProcessDocument(ctx, res)
			out[i].Result = result
			out[i].Err = err
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// BuildContext renders a batch as one text block for a tutoring prompt.
func (o *Orchestrator) BuildContext(ctx context.Context, resources []domain.Resource) string {
	items := o.ProcessBatch(ctx, resources)
	parts := make([]string, 0, len(items))
	for _, it := range items {
		var body string
		if it.Err != nil {
			o.log.Warn("document skipped in context", "file", it.FileName, "error", it.Err)
			body = fmt.Sprintf("[Error processing document %s: %s]", it.FileName, ErrorSummary(it.Err))
		} else {
			body = it.Result.Content
		}
		parts = append(parts, fmt.Sprintf("Document: %s\n%s", it.FileName, body))
	}
	return strings.Join(parts, "\n\n")
}

// ErrorSummary is a short, user-safe description of an error returned by
// ProcessDocument.
func ErrorSummary(err error) string {
	var fe *StorageFetchError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fe) && fe.NotFound():
		return "file not found in storage"
	case errors.As(err, &fe):
		return "file could not be downloaded"
	case errors.Is(err, domain.ErrInvalidResource):
		return "invalid resource"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "processing was cancelled"
	default:
		return "internal error"
	}
}

func displayName(res domain.Resource) string {
	if name := res.FileName(); name != "" {
		return name
	}
	if res.ID != "" {
		return res.ID
	}
	return "unnamed document"
}
