package gcp

import (
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	RemoteReasonUnsupportedFormat = "unsupported_format"
	RemoteReasonInvalidDocument   = "invalid_document"
	RemoteReasonTooLarge          = "document_too_large"
	RemoteReasonUnavailable       = "unavailable"
)

// RemoteError is a classified failure of a Vision or Document AI call.
type RemoteError struct {
	Op     string
	Reason string
	Code   codes.Code
	Cause  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s (grpc=%s): %v", e.Op, e.Reason, e.Code, e.Cause)
}

func (e *RemoteError) Unwrap() error { return e.Cause }

func (e *RemoteError) RemoteReason() string { return e.Reason }

func classifyRemote(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return &RemoteError{Op: op, Reason: RemoteReasonUnavailable, Code: codes.Unknown, Cause: err}
	}
	return &RemoteError{Op: op, Reason: reasonForStatus(st.Code(), st.Message()), Code: st.Code(), Cause: err}
}

func reasonForStatus(code codes.Code, msg string) string {
	msg = strings.ToLower(msg)
	switch code {
	case codes.InvalidArgument:
		switch {
		case strings.Contains(msg, "mime") || strings.Contains(msg, "unsupported"):
			return RemoteReasonUnsupportedFormat
		case strings.Contains(msg, "too large") || strings.Contains(msg, "exceed") || strings.Contains(msg, "limit"):
			return RemoteReasonTooLarge
		default:
			return RemoteReasonInvalidDocument
		}
	case codes.OutOfRange:
		return RemoteReasonTooLarge
	case codes.FailedPrecondition:
		return RemoteReasonInvalidDocument
	default:
		return RemoteReasonUnavailable
	}
}

// statusError rebuilds a gRPC error from a status embedded in a response body.
func statusError(code int32, msg string) error {
	return status.Error(codes.Code(code), msg)
}
