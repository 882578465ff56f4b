package gcp

import (
	"context"
	"errors"
	"testing"

	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/athro-ingest/internal/ingestion/layout"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

func symbols(word string, brk visionpb.TextAnnotation_DetectedBreak_BreakType) *visionpb.Word {
	w := &visionpb.Word{}
	runes := []rune(word)
	for i, r := range runes {
		s := &visionpb.Symbol{Text: string(r)}
		if i == len(runes)-1 && brk != visionpb.TextAnnotation_DetectedBreak_UNKNOWN {
			s.Property = &visionpb.TextAnnotation_TextProperty{
				DetectedBreak: &visionpb.TextAnnotation_DetectedBreak{Type: brk},
			}
		}
		w.Symbols = append(w.Symbols, s)
	}
	return w
}

func paragraph(x0, y0, x1, y1 float32, words ...*visionpb.Word) *visionpb.Paragraph {
	return &visionpb.Paragraph{
		BoundingBox: &visionpb.BoundingPoly{NormalizedVertices: []*visionpb.NormalizedVertex{
			{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
		}},
		Words: words,
	}
}

func pageResponse(page int32, paras ...*visionpb.Paragraph) *visionpb.AnnotateImageResponse {
	return &visionpb.AnnotateImageResponse{
		Context: &visionpb.ImageAnnotationContext{PageNumber: page},
		FullTextAnnotation: &visionpb.TextAnnotation{
			Pages: []*visionpb.Page{{Blocks: []*visionpb.Block{{Paragraphs: paras}}}},
		},
	}
}

func TestVisionDetectorWindowsPages(t *testing.T) {
	var requested [][]int32
	annotate := func(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error) {
		pages := req.Requests[0].Pages
		requested = append(requested, pages)
		fr := &visionpb.AnnotateFileResponse{TotalPages: 7}
		if len(pages) == 0 {
			for p := int32(1); p <= 5; p++ {
				fr.Responses = append(fr.Responses, pageResponse(p))
			}
			fr.Responses[0] = pageResponse(1, paragraph(0.1, 0.1, 0.4, 0.15,
				symbols("Hello", visionpb.TextAnnotation_DetectedBreak_SPACE),
				symbols("world", visionpb.TextAnnotation_DetectedBreak_UNKNOWN)))
		} else {
			for _, p := range pages {
				fr.Responses = append(fr.Responses, pageResponse(p))
			}
			fr.Responses[1] = pageResponse(7, paragraph(0.2, 0.5, 0.6, 0.55, symbols("Seven", visionpb.TextAnnotation_DetectedBreak_UNKNOWN)))
		}
		return &visionpb.BatchAnnotateFilesResponse{Responses: []*visionpb.AnnotateFileResponse{fr}}, nil
	}

	d := newVisionDetector(logger.Nop(), annotate, VisionConfig{})
	det, err := d.DetectText(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("DetectText: %v", err)
	}
	if len(requested) != 2 || len(requested[0]) != 0 || len(requested[1]) != 2 || requested[1][0] != 6 {
		t.Fatalf("requested windows: got=%v", requested)
	}
	if det.Pages != 7 {
		t.Fatalf("pages: want=7 got=%d", det.Pages)
	}
	if len(det.Blocks) != 2 {
		t.Fatalf("blocks: want=2 got=%d", len(det.Blocks))
	}
	b := det.Blocks[0]
	if b.Text != "Hello world" || b.Page != 1 {
		t.Fatalf("block 0: got=%+v", b)
	}
	if b.BoundingBox.Left < 0.099 || b.BoundingBox.Left > 0.101 || b.BoundingBox.Width < 0.299 || b.BoundingBox.Width > 0.301 {
		t.Fatalf("block 0 box: got=%+v", b.BoundingBox)
	}
	if det.Blocks[1].Page != 7 || det.Blocks[1].Text != "Seven" {
		t.Fatalf("block 1: got=%+v", det.Blocks[1])
	}
}

func TestVisionDetectorClassifiesErrors(t *testing.T) {
	annotate := func(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error) {
		return nil, status.Error(codes.InvalidArgument, "Unsupported input file format.")
	}
	d := newVisionDetector(logger.Nop(), annotate, VisionConfig{})
	_, err := d.DetectText(context.Background(), []byte("%PDF-1.4"))
	var re *RemoteError
	if !errors.As(err, &re) || re.Reason != RemoteReasonUnsupportedFormat {
		t.Fatalf("want unsupported_format RemoteError got=%v", err)
	}
}

func boxedWord(word string, brk visionpb.TextAnnotation_DetectedBreak_BreakType, x0, y0, x1, y1 float32) *visionpb.Word {
	w := symbols(word, brk)
	w.BoundingBox = &visionpb.BoundingPoly{NormalizedVertices: []*visionpb.NormalizedVertex{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
	}}
	return w
}

// column builds a paragraph of two-word lines starting at x, one line per
// 0.05 of page height.
func column(x, y float32, lines ...[2]string) *visionpb.Paragraph {
	var ws []*visionpb.Word
	for i, l := range lines {
		top := y + float32(i)*0.05
		ws = append(ws,
			boxedWord(l[0], visionpb.TextAnnotation_DetectedBreak_SPACE, x, top, x+0.1, top+0.02),
			boxedWord(l[1], visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE, x+0.12, top, x+0.3, top+0.02),
		)
	}
	return paragraph(x, y, x+0.3, y+float32(len(lines))*0.05, ws...)
}

func TestVisionLinesSplitParagraphs(t *testing.T) {
	fta := &visionpb.TextAnnotation{Pages: []*visionpb.Page{{Blocks: []*visionpb.Block{
		{Paragraphs: []*visionpb.Paragraph{
			column(0.05, 0.10, [2]string{"The", "cell"}, [2]string{"has", "organelles"}),
			column(0.05, 0.30, [2]string{"Energy", "flows"}, [2]string{"through", "mitochondria"}),
		}},
		{Paragraphs: []*visionpb.Paragraph{
			column(0.55, 0.10, [2]string{"La", "cellule"}, [2]string{"contient", "organites"}),
			column(0.55, 0.30, [2]string{"L'énergie", "circule"}, [2]string{"dans", "mitochondries"}),
		}},
	}}}}

	blocks := visionLines(fta, 3)
	if len(blocks) != 8 {
		t.Fatalf("blocks: want=8 got=%d", len(blocks))
	}
	first := blocks[0]
	if first.Text != "The cell" || first.Page != 3 {
		t.Fatalf("line 0: got=%+v", first)
	}
	if first.BoundingBox.Left < 0.049 || first.BoundingBox.Left > 0.051 || first.BoundingBox.Width < 0.299 || first.BoundingBox.Width > 0.301 {
		t.Fatalf("line 0 box: got=%+v", first.BoundingBox)
	}
	if first.BoundingBox.Height < 0.019 || first.BoundingBox.Height > 0.021 {
		t.Fatalf("line 0 height: want=0.02 got=%v", first.BoundingBox.Height)
	}
	if blocks[1].Text != "has organelles" || blocks[1].BoundingBox.Top < 0.149 || blocks[1].BoundingBox.Top > 0.151 {
		t.Fatalf("line 1: got=%+v", blocks[1])
	}

	split := layout.New(layout.DefaultConfig()).Split(blocks)
	if !split.IsTwoColumn {
		t.Fatalf("IsTwoColumn: want=true for 4 lines per column")
	}
}

func TestVisionLinesEndAtHyphen(t *testing.T) {
	para := paragraph(0.1, 0.1, 0.5, 0.2,
		symbols("photo", visionpb.TextAnnotation_DetectedBreak_HYPHEN),
		symbols("synthesis", visionpb.TextAnnotation_DetectedBreak_UNKNOWN),
	)
	blocks := paragraphLines(para, 0, 0, 1)
	if len(blocks) != 2 || blocks[0].Text != "photo-" || blocks[1].Text != "synthesis" {
		t.Fatalf("lines: got=%+v", blocks)
	}
}
