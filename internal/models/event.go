package models

import (
	"net/http"
	"strings"
	"time"
)

// AllowedMethods are the HTTP methods the ingest path captures.
// GET is deliberately included: some producers probe webhook URLs with GET.
var AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch}

func MethodAllowed(method string) bool {
	for _, m := range AllowedMethods {
		if m == method {
			return true
		}
	}
	return false
}

// Headers is a case-insensitive multi-value header map. Keys are stored
// lowercased; values keep their received order.
type Headers map[string][]string

// NewHeaders copies an http.Header, lowercasing keys.
func NewHeaders(h http.Header) Headers {
	out := make(Headers, len(h))
	for k, vs := range h {
		key := strings.ToLower(k)
		out[key] = append(out[key], vs...)
	}
	return out
}

// Get returns the first value for name, or "" if absent.
func (h Headers) Get(name string) string {
	vs := h[strings.ToLower(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Event is one captured inbound request, stored verbatim. Events are
// append-only: no field mutates after the insert.
type Event struct {
	// Seq is the storage-native key; it breaks received_at ties when listing.
	Seq int64 `json:"-"`

	ID          string              `json:"id"`
	EndpointID  string              `json:"endpoint_id"`
	ReceivedAt  time.Time           `json:"received_at"`
	Method      string              `json:"method"`
	OriginalURL string              `json:"original_url"`
	SourceURL   string              `json:"source_url,omitempty"`
	Path        string              `json:"path"`
	Query       map[string][]string `json:"query"`
	Headers     Headers             `json:"headers"`
	Body        []byte              `json:"-"`
	SourceIP    string              `json:"source_ip"`
	UserAgent   string              `json:"user_agent"`
	SizeBytes   int                 `json:"size_bytes"`
}
