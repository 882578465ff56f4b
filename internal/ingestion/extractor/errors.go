package extractor

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInvalidFormat     Code = "invalid_format"
	CodeRemoteService     Code = "remote_service"
	CodeWorkerLoad        Code = "worker_load"
	CodeNoExtractableText Code = "no_extractable_text"
	CodeUnpack            Code = "unpack"
)

var (
	ErrInvalidFormat     = errors.New("invalid document format")
	ErrRemoteService     = errors.New("remote text detection failed")
	ErrWorkerLoad        = errors.New("render worker failed to start")
	ErrNoExtractableText = errors.New("no extractable text")
	ErrUnpack            = errors.New("document archive could not be unpacked")
)

// Reasons attached to ExtractionError. They drive the user-facing failure wording.
const (
	ReasonBadHeader     = "bad_header"
	ReasonEncrypted     = "encrypted"
	ReasonImageOnly     = "image_only"
	ReasonEmpty         = "empty"
	ReasonNotArchive    = "not_archive"
	ReasonMissingBody   = "missing_body"
	ReasonWorkerTimeout = "worker_timeout"
	ReasonUnsupported   = "unsupported_format"
	ReasonInvalidDoc    = "invalid_document"
	ReasonTooLarge      = "document_too_large"
	ReasonUnavailable   = "unavailable"
	ReasonDecode        = "decode_failed"
)

// ExtractionError is the only error an extractor returns. Code selects the sentinel
// for errors.Is, Reason is a short machine-readable qualifier.
type ExtractionError struct {
	Code      Code
	Extractor string
	Reason    string
	Cause     error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Extractor, e.Code)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

func (e *ExtractionError) Is(target error) bool {
	switch e.Code {
	case CodeInvalidFormat:
		return target == ErrInvalidFormat
	case CodeRemoteService:
		return target == ErrRemoteService
	case CodeWorkerLoad:
		return target == ErrWorkerLoad
	case CodeNoExtractableText:
		return target == ErrNoExtractableText
	case CodeUnpack:
		return target == ErrUnpack
	}
	return false
}

func newError(extractor string, code Code, reason string, cause error) *ExtractionError {
	return &ExtractionError{Code: code, Extractor: extractor, Reason: reason, Cause: cause}
}

// ReasonOf returns the Reason of the first ExtractionError in err's chain.
func ReasonOf(err error) string {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Reason
	}
	return ""
}
