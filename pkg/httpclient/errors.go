package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/AGtheOG/ikarus3d-advisorBot/pkg/errors"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// StatusError is a non-2xx answer from a downstream server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// errorBody covers the shapes inference servers use for errors:
// {"error": "..."} from text-embeddings-inference and
// {"error": {"code", "message"}} from services using the httputil envelope.
type errorBody struct {
	Error json.RawMessage `json:"error"`
}

// ReadStatusError consumes and closes resp.Body and returns a *StatusError
// carrying the most specific message it can find.
func ReadStatusError(resp *http.Response) *StatusError {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &StatusError{StatusCode: resp.StatusCode, Message: "read body: " + err.Error()}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
}

func errorMessage(raw []byte) string {
	var body errorBody
	if json.Unmarshal(raw, &body) == nil && len(body.Error) > 0 && string(body.Error) != "null" {
		var s string
		if json.Unmarshal(body.Error, &s) == nil {
			return s
		}
		var env struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &env) == nil && env.Message != "" {
			return env.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

// ParseResponseError turns a non-2xx response from service into an AppError.
// Overload answers (429, 502, 503, 504) are connection-kind; everything
// else is an upstream failure.
func ParseResponseError(resp *http.Response, service string) error {
	return Classify(ReadStatusError(resp), service)
}

// Classify maps a StatusError from service onto the application error kinds.
func Classify(se *StatusError, service string) error {
	switch se.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return apperrors.Unavailable(service, se.Error())
	default:
		return apperrors.Upstream(service, se.Error())
	}
}
