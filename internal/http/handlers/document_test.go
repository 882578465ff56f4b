package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/athro-ingest/internal/domain"
	"github.com/yungbote/athro-ingest/internal/http/response"
	"github.com/yungbote/athro-ingest/internal/ingestion/pipeline"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

type fakeExtractor struct {
	result   domain.ExtractionResult
	err      error
	res      domain.Resource
	fileName string
	data     []byte
	batch    []domain.Resource
}

func (f *fakeExtractor) ProcessDocument(ctx context.Context, res domain.Resource) (domain.ExtractionResult, error) {
	f.res = res
	return f.result, f.err
}

func (f *fakeExtractor) ProcessBytes(ctx context.Context, res domain.Resource, fileName string, data []byte) (domain.ExtractionResult, error) {
	f.res, f.fileName, f.data = res, fileName, data
	return f.result, f.err
}

func (f *fakeExtractor) BuildContext(ctx context.Context, resources []domain.Resource) string {
	f.batch = resources
	return "ctx for " + resources[0].ResourcePath
}

func newEngine(h *DocumentHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/extract", h.Extract)
	r.POST("/extract/upload", h.Upload)
	r.POST("/context", h.Context)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.APIError {
	t.Helper()
	var env response.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return env.Error
}

func TestExtractReturnsResult(t *testing.T) {
	fx := &fakeExtractor{result: domain.ExtractionResult{Content: "PDF document: a.pdf", IsActualContent: true}}
	r := newEngine(NewDocumentHandler(logger.Nop(), fx, 0, 0))

	rec := postJSON(r, "/extract", `{"id":"1","topic":"Cells","resourceType":"application/pdf","resourcePath":"u/a.pdf"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d (%s)", http.StatusOK, rec.Code, rec.Body.String())
	}
	var got domain.ExtractionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != fx.result {
		t.Fatalf("result: want=%+v got=%+v", fx.result, got)
	}
	if fx.res.ResourcePath != "u/a.pdf" || fx.res.Topic != "Cells" {
		t.Fatalf("resource: got=%+v", fx.res)
	}
}

func TestExtractErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&pipeline.StorageFetchError{Path: "u/a.pdf"}, http.StatusNotFound, "document_not_found"},
		{errors.Join(domain.ErrInvalidResource, errors.New("resourcePath is required")), http.StatusBadRequest, "invalid_resource"},
		{errors.New("local_pdf: extractor panic"), http.StatusInternalServerError, "extraction_failed"},
	}
	for _, c := range cases {
		fx := &fakeExtractor{err: c.err}
		r := newEngine(NewDocumentHandler(logger.Nop(), fx, 0, 0))
		rec := postJSON(r, "/extract", `{"resourcePath":"u/a.pdf"}`)
		if rec.Code != c.status {
			t.Fatalf("%v: status want=%d got=%d", c.err, c.status, rec.Code)
		}
		if got := decodeError(t, rec); got.Code != c.code {
			t.Fatalf("%v: code want=%q got=%q", c.err, c.code, got.Code)
		}
	}
}

func TestExtractRejectsMalformedJSON(t *testing.T) {
	r := newEngine(NewDocumentHandler(logger.Nop(), &fakeExtractor{}, 0, 0))
	rec := postJSON(r, "/extract", `{`)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "invalid_request" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func multipartBody(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("field %s: %v", k, err)
		}
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadPassesBytesAndFields(t *testing.T) {
	fx := &fakeExtractor{result: domain.ExtractionResult{Content: "ok", IsActualContent: true}}
	r := newEngine(NewDocumentHandler(logger.Nop(), fx, 1024, 0))

	body, ct := multipartBody(t, "notes.txt", []byte("hello world"), map[string]string{"topic": "Greetings", "athroId": "a1"})
	req := httptest.NewRequest(http.MethodPost, "/extract/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d (%s)", http.StatusOK, rec.Code, rec.Body.String())
	}
	if fx.fileName != "notes.txt" || string(fx.data) != "hello world" {
		t.Fatalf("forwarded: name=%q data=%q", fx.fileName, fx.data)
	}
	if fx.res.Topic != "Greetings" || fx.res.AthroID != "a1" {
		t.Fatalf("resource: got=%+v", fx.res)
	}
	if !strings.HasPrefix(fx.res.ResourceType, "text/plain") {
		t.Fatalf("resourceType should be sniffed, got=%q", fx.res.ResourceType)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	r := newEngine(NewDocumentHandler(logger.Nop(), &fakeExtractor{}, 8, 0))
	body, ct := multipartBody(t, "big.txt", bytes.Repeat([]byte("x"), 64), nil)
	req := httptest.NewRequest(http.MethodPost, "/extract/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status: want=%d got=%d", http.StatusRequestEntityTooLarge, rec.Code)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	r := newEngine(NewDocumentHandler(logger.Nop(), &fakeExtractor{}, 0, 0))
	body, ct := multipartBody(t, "", nil, map[string]string{"topic": "x"})
	req := httptest.NewRequest(http.MethodPost, "/extract/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "missing_file" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestContextBuildsFromResources(t *testing.T) {
	fx := &fakeExtractor{}
	r := newEngine(NewDocumentHandler(logger.Nop(), fx, 0, 2))

	rec := postJSON(r, "/context", `{"resources":[{"resourcePath":"u/a.pdf"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d", http.StatusOK, rec.Code)
	}
	var got struct {
		Context string `json:"context"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Context != "ctx for u/a.pdf" {
		t.Fatalf("context: got=%q", got.Context)
	}

	rec = postJSON(r, "/context", `{"resources":[{},{},{}]}`)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "too_many_resources" {
		t.Fatalf("batch limit: status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = postJSON(r, "/context", `{"resources":[]}`)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "no_resources" {
		t.Fatalf("empty batch: status=%d body=%s", rec.Code, rec.Body.String())
	}
}
