package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrDecode marks feed frames that could not be decoded.
var ErrDecode = errors.New("feed: cannot decode frame")

// RequestError is a non-2xx REST response. Detail holds the backend's
// human-readable message when it sent one.
type RequestError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *RequestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d", e.Method, e.Path, e.Status)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Status == http.StatusUnauthorized
}

// Message returns the text to show the user for err: the backend detail
// when there is one, otherwise fallback.
func Message(err error, fallback string) string {
	var re *RequestError
	if errors.As(err, &re) && re.Detail != "" {
		return re.Detail
	}
	return fallback
}

// parseDetail extracts {"detail": ...} from an error body. A string detail
// is used as-is; a validation array is reduced to its first message.
func parseDetail(body []byte) string {
	var doc struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || len(doc.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(doc.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(doc.Detail, &items); err == nil && len(items) > 0 {
		return items[0].Msg
	}
	return ""
}
