package models_test

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func brotliBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestProjectResponseBody(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want interface{}
	}{
		{"empty is null", nil, nil},
		{"json object", []byte(`{"ok":true}`), map[string]interface{}{"ok": true}},
		{"json array", []byte(`[1,2]`), []interface{}{float64(1), float64(2)}},
		{"plain text", []byte("created"), "created"},
		{"invalid json falls back to string", []byte(`{"broken`), `{"broken`},
		{"binary stays raw bytes", []byte{0x01, 0xff, 0xfe}, []byte{0x01, 0xff, 0xfe}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, models.ProjectResponseBody(tt.body))
		})
	}
}

func TestProjectEventBody(t *testing.T) {
	payload := []byte(`{"order":"ord_123","total":42}`)
	wantParsed := map[string]interface{}{"order": "ord_123", "total": float64(42)}

	tests := []struct {
		name    string
		body    []byte
		headers models.Headers
		want    interface{}
	}{
		{
			name:    "empty body",
			body:    nil,
			headers: models.Headers{},
			want:    nil,
		},
		{
			name:    "identity json by content type",
			body:    payload,
			headers: models.Headers{"content-type": {"application/json"}},
			want:    wantParsed,
		},
		{
			name:    "json sniffed without content type",
			body:    payload,
			headers: models.Headers{},
			want:    wantParsed,
		},
		{
			name:    "json array sniffed with leading whitespace",
			body:    []byte("  \n[true]"),
			headers: models.Headers{},
			want:    []interface{}{true},
		},
		{
			name:    "gzip decoded then parsed",
			body:    gzipBytes(t, payload),
			headers: models.Headers{"content-encoding": {"gzip"}, "content-type": {"application/json"}},
			want:    wantParsed,
		},
		{
			name:    "deflate decoded then parsed",
			body:    zlibBytes(t, payload),
			headers: models.Headers{"content-encoding": {"deflate"}, "content-type": {"application/json"}},
			want:    wantParsed,
		},
		{
			name:    "brotli decoded then parsed",
			body:    brotliBytes(t, payload),
			headers: models.Headers{"content-encoding": {"br"}, "content-type": {"application/json"}},
			want:    wantParsed,
		},
		{
			name:    "unknown encoding passes through",
			body:    []byte("raw-bytes"),
			headers: models.Headers{"content-encoding": {"zstd"}},
			want:    "raw-bytes",
		},
		{
			name:    "corrupt gzip passes through raw",
			body:    []byte("not-gzip"),
			headers: models.Headers{"content-encoding": {"gzip"}},
			want:    "not-gzip",
		},
		{
			name:    "non-json text stays a string",
			body:    []byte("hello=world"),
			headers: models.Headers{"content-type": {"application/x-www-form-urlencoded"}},
			want:    "hello=world",
		},
		{
			name:    "binary body stays raw bytes",
			body:    []byte{0x78, 0x9c, 0xff, 0xfe, 0x00, 0x01, 0x02},
			headers: models.Headers{"content-type": {"application/octet-stream"}},
			want:    []byte{0x78, 0x9c, 0xff, 0xfe, 0x00, 0x01, 0x02},
		},
		{
			name:    "binary body without content type stays raw bytes",
			body:    []byte{0x78, 0x9c, 0xff, 0xfe, 0x00, 0x01, 0x02},
			headers: models.Headers{},
			want:    []byte{0x78, 0x9c, 0xff, 0xfe, 0x00, 0x01, 0x02},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, models.ProjectEventBody(tt.body, tt.headers))
		})
	}
}

// A binary body must survive JSON serialization byte for byte. Rendering it
// as a Go string would replace every invalid-UTF8 byte with U+FFFD.
func TestProjectEventBodyBinaryLossless(t *testing.T) {
	raw := []byte{0x78, 0x9c, 0xff, 0xfe, 0x00, 0x01, 0x02}

	projected := models.ProjectEventBody(raw, models.Headers{})
	serialized, err := json.Marshal(projected)
	require.NoError(t, err)

	var rendered string
	require.NoError(t, json.Unmarshal(serialized, &rendered))
	decoded, err := base64.StdEncoding.DecodeString(rendered)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}
