package apirouter_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/hookfreight/hookfreight/internal/idgen"
	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/hookfreight/hookfreight/internal/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestListEventsByEndpoint(t *testing.T) {
	t.Parallel()
	env := setupAPI(t)
	ctx := context.Background()
	endpoint := seedEndpoint(t, env)

	base := time.Now().UTC().Truncate(time.Second)
	var ids []string
	for i := 0; i < 3; i++ {
		event := testutil.EventFactory.AnyPointer(
			testutil.EventFactory.WithEndpointID(endpoint.ID),
			testutil.EventFactory.WithReceivedAt(base.Add(-time.Duration(i)*time.Minute)),
		)
		require.NoError(t, env.store.InsertEvent(ctx, event))
		ids = append(ids, event.ID)
	}

	w := doRequest(env, http.MethodGet, "/api/v1/endpoints/"+endpoint.ID+"/events", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := dataObject(t, w)
	assert.Equal(t, false, data["has_next"])
	events, ok := data["events"].([]interface{})
	require.True(t, ok)
	require.Len(t, events, 3)

	// Newest first: ids[0] has the latest received_at.
	for i, id := range ids {
		entry, ok := events[i].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, id, entry["id"], "position %d", i)
	}
}

func TestListEventsPagination(t *testing.T) {
	t.Parallel()
	env := setupAPI(t)
	ctx := context.Background()
	endpoint := seedEndpoint(t, env)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		event := testutil.EventFactory.AnyPointer(
			testutil.EventFactory.WithEndpointID(endpoint.ID),
			testutil.EventFactory.WithReceivedAt(base.Add(-time.Duration(i)*time.Second)),
		)
		require.NoError(t, env.store.InsertEvent(ctx, event))
	}

	w := doRequest(env, http.MethodGet, "/api/v1/endpoints/"+endpoint.ID+"/events?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataObject(t, w)
	assert.Equal(t, true, data["has_next"])
	assert.Len(t, data["events"], 2)

	w = doRequest(env, http.MethodGet, "/api/v1/endpoints/"+endpoint.ID+"/events?limit=2&offset=4", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = dataObject(t, w)
	assert.Equal(t, false, data["has_next"])
	assert.Len(t, data["events"], 1)

	w = doRequest(env, http.MethodGet, "/api/v1/endpoints/"+endpoint.ID+"/events?limit=oops", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := errorFields(t, w)
	require.Len(t, fields, 1)
	assert.Equal(t, "limit", fields[0]["field"])
	assert.Equal(t, "invalid_type", fields[0]["code"])
	assert.Equal(t, "oops", fields[0]["received"])
}

func TestListEventsTiesBreakBySequence(t *testing.T) {
	t.Parallel()
	env := setupAPI(t)
	ctx := context.Background()
	endpoint := seedEndpoint(t, env)

	// Same received_at for all three: insert order decides, newest insert
	// first.
	at := time.Now().UTC()
	var ids []string
	for i := 0; i < 3; i++ {
		event := testutil.EventFactory.AnyPointer(
			testutil.EventFactory.WithEndpointID(endpoint.ID),
			testutil.EventFactory.WithReceivedAt(at),
		)
		require.NoError(t, env.store.InsertEvent(ctx, event))
		ids = append(ids, event.ID)
	}

	w := doRequest(env, http.MethodGet, "/api/v1/endpoints/"+endpoint.ID+"/events", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	events, ok := dataObject(t, w)["events"].([]interface{})
	require.True(t, ok)
	require.Len(t, events, 3)
	for i := 0; i < 3; i++ {
		entry := events[i].(map[string]interface{})
		assert.Equal(t, ids[2-i], entry["id"], "position %d", i)
	}
}

func TestListEventsEndpointNotFound(t *testing.T) {
	t.Parallel()
	env := setupAPI(t)

	w := doRequest(env, http.MethodGet, "/api/v1/endpoints/"+idgen.Endpoint()+"/events", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "endpoint_not_found", parseBody(t, w)["message"])
}

func TestRetrieveEventProjectsBody(t *testing.T) {
	t.Parallel()
	env := setupAPI(t)
	ctx := context.Background()
	endpoint := seedEndpoint(t, env)

	t.Run("json body", func(t *testing.T) {
		event := testutil.EventFactory.AnyPointer(
			testutil.EventFactory.WithEndpointID(endpoint.ID),
			testutil.EventFactory.WithBody([]byte(`{"hello": "world", "n": 7}`)),
		)
		require.NoError(t, env.store.InsertEvent(ctx, event))

		w := doRequest(env, http.MethodGet, "/api/v1/events/"+event.ID, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := dataObject(t, w)
		assert.Equal(t, event.ID, data["id"])
		body, ok := data["body"].(map[string]interface{})
		require.True(t, ok, "body not an object: %v", data["body"])
		assert.Equal(t, "world", body["hello"])
		assert.Equal(t, float64(7), body["n"])
	})

	t.Run("gzip json body", func(t *testing.T) {
		raw := []byte(`{"compressed": true}`)
		event := testutil.EventFactory.AnyPointer(
			testutil.EventFactory.WithEndpointID(endpoint.ID),
			testutil.EventFactory.WithBody(gzipBytes(t, raw)),
			testutil.EventFactory.WithHeaders(models.Headers{
				"content-type":     {"application/json"},
				"content-encoding": {"gzip"},
			}),
		)
		require.NoError(t, env.store.InsertEvent(ctx, event))

		w := doRequest(env, http.MethodGet, "/api/v1/events/"+event.ID, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		body, ok := dataObject(t, w)["body"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, true, body["compressed"])
	})

	t.Run("text body", func(t *testing.T) {
		event := testutil.EventFactory.AnyPointer(
			testutil.EventFactory.WithEndpointID(endpoint.ID),
			testutil.EventFactory.WithBody([]byte("plain text payload")),
			testutil.EventFactory.WithHeaders(models.Headers{
				"content-type": {"text/plain"},
			}),
		)
		require.NoError(t, env.store.InsertEvent(ctx, event))

		w := doRequest(env, http.MethodGet, "/api/v1/events/"+event.ID, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "plain text payload", dataObject(t, w)["body"])
	})

	t.Run("binary body survives as base64", func(t *testing.T) {
		raw := []byte{0x78, 0x9c, 0xff, 0xfe, 0x00, 0x01, 0x02}
		event := testutil.EventFactory.AnyPointer(
			testutil.EventFactory.WithEndpointID(endpoint.ID),
			testutil.EventFactory.WithBody(raw),
			testutil.EventFactory.WithHeaders(models.Headers{
				"content-type": {"application/octet-stream"},
			}),
		)
		require.NoError(t, env.store.InsertEvent(ctx, event))

		w := doRequest(env, http.MethodGet, "/api/v1/events/"+event.ID, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		body, ok := dataObject(t, w)["body"].(string)
		require.True(t, ok, "binary body should render as a base64 string")
		decoded, err := base64.StdEncoding.DecodeString(body)
		require.NoError(t, err)
		assert.Equal(t, raw, decoded)
	})

	t.Run("empty body", func(t *testing.T) {
		event := testutil.EventFactory.AnyPointer(
			testutil.EventFactory.WithEndpointID(endpoint.ID),
			testutil.EventFactory.WithBody(nil),
		)
		require.NoError(t, env.store.InsertEvent(ctx, event))

		w := doRequest(env, http.MethodGet, "/api/v1/events/"+event.ID, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, dataObject(t, w)["body"])
	})
}

func TestRetrieveEventNotFound(t *testing.T) {
	t.Parallel()
	env := setupAPI(t)

	w := doRequest(env, http.MethodGet, "/api/v1/events/"+idgen.Event(), nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "event_not_found", parseBody(t, w)["message"])
}

func TestEventResponseOmitsRawBytes(t *testing.T) {
	t.Parallel()
	env := setupAPI(t)
	ctx := context.Background()
	endpoint := seedEndpoint(t, env)

	event := testutil.EventFactory.AnyPointer(
		testutil.EventFactory.WithEndpointID(endpoint.ID),
		testutil.EventFactory.WithBody([]byte(`{"k": "v"}`)),
	)
	require.NoError(t, env.store.InsertEvent(ctx, event))

	w := doRequest(env, http.MethodGet, "/api/v1/events/"+event.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// No base64 leak of the raw []byte and no storage sequence.
	assert.NotContains(t, w.Body.String(), "seq")
	assert.NotContains(t, w.Body.String(), base64.StdEncoding.EncodeToString(event.Body))
	data := dataObject(t, w)
	assert.Equal(t, float64(len(event.Body)), data["size_bytes"])
}
