package taiga

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// RemoteError is a failed exchange with the service: a non-2xx response
// other than a version conflict, an undecodable body, or a transport error.
type RemoteError struct {
	// StatusCode is zero when no response was received.
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("remote error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("remote error (status %d): %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("remote error: %s: %v", e.Message, e.Err)
	}
	return "remote error: " + e.Message
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ConflictError reports that a task changed remotely since it was cached.
// The mutation was not applied and is never retried.
type ConflictError struct {
	TaskID  int
	Version int
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %d changed remotely since version %d: %s", e.TaskID, e.Version, e.Message)
}

// checkResponse classifies a non-2xx response. It returns nil for success.
func checkResponse(resp *http.Response) error {
	err := googleapi.CheckResponse(resp)
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &RemoteError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Err: err}
	}

	msg, versionField := describe(gerr.Body)
	if msg == "" {
		msg = http.StatusText(gerr.Code)
	}
	if gerr.Code == http.StatusConflict ||
		((gerr.Code == http.StatusBadRequest || gerr.Code == http.StatusPreconditionFailed) && versionField) {
		return &ConflictError{Message: msg}
	}
	return &RemoteError{StatusCode: gerr.Code, Message: msg}
}

// describe extracts a human readable message from a Taiga error body and
// reports whether the body complains about the version field.
func describe(body string) (string, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return strings.TrimSpace(body), strings.Contains(strings.ToLower(body), "version")
	}
	if v, ok := fields["version"]; ok {
		return fieldText(v), true
	}
	for _, key := range []string{"_error_message", "detail"} {
		if v, ok := fields[key]; ok {
			return fieldText(v), false
		}
	}
	return strings.TrimSpace(body), false
}

func fieldText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fieldText(p))
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprint(v)
}
