package rankings

import (
	"errors"
	"fmt"
)

// HandleNotFoundBody is the exact failure body the API sends for unknown
// handles. Any other spelling or whitespace is treated as a real failure.
const HandleNotFoundBody = "Handle does not exist"

// Sentinel errors. Use errors.Is to classify a returned error.
var (
	// ErrRequestFailed is wrapped by every *RequestError.
	ErrRequestFailed = errors.New("rankings request failed")

	// ErrDecode indicates a success response whose body could not be decoded.
	ErrDecode = errors.New("rankings response decode failed")
)

// Operation names a client operation. It is used in errors, logs, spans
// and metric labels.
type Operation string

// Client operations.
const (
	OpGlobalRankings       Operation = "global_rankings"
	OpRankingsCount        Operation = "rankings_count"
	OpGlobalRankByHandle   Operation = "ranking_index"
	OpPersonalisedRankings Operation = "personalised_rankings"
)

// FailureMessage is the caller-facing description of a failed operation.
func (o Operation) FailureMessage() string {
	switch o {
	case OpGlobalRankings:
		return "Error fetching the profile global rankings"
	case OpRankingsCount:
		return "Error fetching rankings count"
	case OpGlobalRankByHandle:
		return "Error fetching ranking index"
	case OpPersonalisedRankings:
		return "Error fetching personalised profiles"
	default:
		return "Error fetching " + string(o)
	}
}

// RequestError reports a non-success response from the API.
// The response body is not part of the error; the client logs it.
type RequestError struct {
	Op         Operation
	URL        string
	StatusCode int
}

func (e *RequestError) Error() string {
	return e.Op.FailureMessage()
}

func (e *RequestError) Unwrap() error {
	return ErrRequestFailed
}

// IsHandleNotFound reports whether a failure body is the API's
// unknown-handle marker.
func IsHandleNotFound(body []byte) bool {
	return string(body) == HandleNotFoundBody
}

func decodeError(op Operation, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDecode, err)
}
