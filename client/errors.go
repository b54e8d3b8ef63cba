package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrSessionEnded is matched by errors.Is for every request that failed because the
// session could not be kept alive.
var ErrSessionEnded = errors.New("session ended, please login again")

// NetworkError means no HTTP response was received at all.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Body holds the raw payload; Detail the server's
// human-readable message when one could be found.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: HTTP %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// SessionEndedError is returned when a 401 could not be recovered by refreshing.
// It unwraps to the 401 the request was rejected with.
type SessionEndedError struct {
	Rejected *HTTPError
	// Reason is why no replay happened (refresh failure, no refresh token); nil when
	// the replayed request itself was rejected.
	Reason error
}

func (e *SessionEndedError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("%s (%v)", ErrSessionEnded.Error(), e.Reason)
	}
	return ErrSessionEnded.Error()
}

func (e *SessionEndedError) Unwrap() error { return e.Rejected }

func (e *SessionEndedError) Is(target error) bool { return target == ErrSessionEnded }

// IsStatus reports whether err carries an HTTP response with the given status.
func IsStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == status
}

// parseDetail extracts the error message of a backend error body. The backend
// answers {"detail": "..."} for most errors and {"detail": [{"msg": "..."}]} for
// validation failures; some proxies use "message" or "error" instead.
func parseDetail(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "message", "error"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var text string
		if json.Unmarshal(raw, &text) == nil && text != "" {
			return text
		}
		var items []struct {
			Msg string `json:"msg"`
			Loc []any  `json:"loc"`
		}
		if json.Unmarshal(raw, &items) == nil && len(items) > 0 {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg == "" {
					continue
				}
				if field := locField(it.Loc); field != "" {
					msgs = append(msgs, field+": "+it.Msg)
				} else {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return ""
}

// locField returns the last string element of a validation error location.
func locField(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok && s != "body" && s != "query" {
			return s
		}
	}
	return ""
}
