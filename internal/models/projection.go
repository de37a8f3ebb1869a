package models

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"encoding/json"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
)

// ProjectResponseBody renders a recorded response body for API consumption:
// the parsed value when the bytes are JSON, a string when they are text,
// the raw bytes otherwise, nil when empty.
func ProjectResponseBody(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		return parsed
	}
	return textOrBytes(body)
}

// ProjectEventBody decodes a captured body by its Content-Encoding, then
// best-effort parses JSON payloads. Decode failures fall back to the raw
// bytes: projection must never lose the event.
func ProjectEventBody(body []byte, headers Headers) interface{} {
	if len(body) == 0 {
		return nil
	}
	decoded := decodeContentEncoding(body, headers.Get("content-encoding"))
	if looksLikeJSON(decoded, headers.Get("content-type")) {
		var parsed interface{}
		if err := json.Unmarshal(decoded, &parsed); err == nil {
			return parsed
		}
	}
	return textOrBytes(decoded)
}

// textOrBytes keeps binary payloads intact: a string would smuggle U+FFFD
// replacements into every invalid byte, while raw bytes serialize as base64
// and round-trip losslessly.
func textOrBytes(body []byte) interface{} {
	if utf8.Valid(body) {
		return string(body)
	}
	return body
}

func decodeContentEncoding(body []byte, encoding string) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return body
		}
		defer r.Close()
		decoded, err := io.ReadAll(r)
		if err != nil {
			return body
		}
		return decoded
	case "deflate":
		// HTTP deflate is zlib-wrapped, but some producers send raw DEFLATE
		if r, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer r.Close()
			if decoded, err := io.ReadAll(r); err == nil {
				return decoded
			}
		}
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		decoded, err := io.ReadAll(r)
		if err != nil {
			return body
		}
		return decoded
	case "br":
		decoded, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return body
		}
		return decoded
	default:
		// identity, unknown, or absent: passthrough
		return body
	}
}

func looksLikeJSON(body []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
