package forwarder_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hookfreight/hookfreight/internal/forwarder"
	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/hookfreight/hookfreight/internal/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forwarderSuite struct {
	server          *httptest.Server
	request         *http.Request
	requestBody     []byte
	hits            int
	responseCode    int
	responseHeaders map[string]string
	responseBody    []byte
	responseDelay   time.Duration
}

func (suite *forwarderSuite) SetupTest(t *testing.T) {
	if suite.responseCode == 0 {
		suite.responseCode = http.StatusOK
	}

	suite.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.hits++
		suite.request = r
		var err error
		suite.requestBody, err = io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if suite.responseDelay > 0 {
			time.Sleep(suite.responseDelay)
		}

		for name, value := range suite.responseHeaders {
			w.Header().Set(name, value)
		}
		w.WriteHeader(suite.responseCode)
		if len(suite.responseBody) > 0 {
			w.Write(suite.responseBody)
		}
	}))
}

func (suite *forwarderSuite) TearDownTest(t *testing.T) {
	suite.server.Close()
}

func TestForwarder_Delivered(t *testing.T) {
	t.Parallel()

	suite := &forwarderSuite{
		responseCode:    http.StatusCreated,
		responseHeaders: map[string]string{"X-Request-Id": "req-abc", "Content-Type": "application/json"},
		responseBody:    []byte(`{"ok":true}`),
	}
	suite.SetupTest(t)
	defer suite.TearDownTest(t)

	fwd, err := forwarder.New("http://relay.example.com")
	require.NoError(t, err)

	event := testutil.EventFactory.AnyPointer(
		testutil.EventFactory.WithMethod("PUT"),
		testutil.EventFactory.WithBody([]byte(`{"n":1}`)),
		testutil.EventFactory.WithHeaders(models.Headers{
			"content-type": {"application/json"},
			"accept":       {"application/json", "text/html"},
			"user-agent":   {"curl/8.4.0"},
			"x-api-key":    {"supersecret"},
		}),
	)
	endpoint := testutil.EndpointFactory.AnyPointer(
		testutil.EndpointFactory.WithForwardURL(suite.server.URL+"/hooks/in"),
		testutil.EndpointFactory.WithForwardingEnabled(true),
	)

	result, err := fwd.Forward(context.Background(), endpoint, event)
	require.NoError(t, err)
	require.NotNil(t, result)

	t.Run("sends original method and body verbatim", func(t *testing.T) {
		require.NotNil(t, suite.request)
		assert.Equal(t, "PUT", suite.request.Method)
		assert.Equal(t, "/hooks/in", suite.request.URL.Path)
		assert.Equal(t, []byte(`{"n":1}`), suite.requestBody)
	})

	t.Run("copies only the header allow-list", func(t *testing.T) {
		assert.Equal(t, "application/json", suite.request.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", suite.request.Header.Get("Accept"))
		assert.Equal(t, "curl/8.4.0", suite.request.Header.Get("User-Agent"))
		assert.Empty(t, suite.request.Header.Get("X-Api-Key"))
	})

	t.Run("adds forwarding markers", func(t *testing.T) {
		assert.Equal(t, "true", suite.request.Header.Get(forwarder.HeaderForwarded))
		timestamp := suite.request.Header.Get(forwarder.HeaderTimestamp)
		require.NotEmpty(t, timestamp)
		_, err := time.Parse(time.RFC3339, timestamp)
		assert.NoError(t, err)
	})

	t.Run("captures the response", func(t *testing.T) {
		assert.Equal(t, models.DeliveryStatusDelivered, result.Status)
		require.NotNil(t, result.ResponseStatus)
		assert.Equal(t, http.StatusCreated, *result.ResponseStatus)
		assert.Equal(t, "req-abc", result.ResponseHeaders["x-request-id"])
		assert.Equal(t, "application/json", result.ResponseHeaders["content-type"])
		assert.Equal(t, []byte(`{"ok":true}`), result.ResponseBody)
		assert.Equal(t, suite.server.URL+"/hooks/in", result.DestinationURL)
		assert.Empty(t, result.ErrorMessage)
	})
}

func TestForwarder_AuthenticationHeaderWins(t *testing.T) {
	t.Parallel()

	suite := &forwarderSuite{}
	suite.SetupTest(t)
	defer suite.TearDownTest(t)

	fwd, err := forwarder.New("")
	require.NoError(t, err)

	event := testutil.EventFactory.AnyPointer(
		testutil.EventFactory.WithHeaders(models.Headers{
			"user-agent": {"curl/8.4.0"},
		}),
	)
	endpoint := testutil.EndpointFactory.AnyPointer(
		testutil.EndpointFactory.WithForwardURL(suite.server.URL),
		testutil.EndpointFactory.WithForwardingEnabled(true),
		testutil.EndpointFactory.WithAuthentication("User-Agent", "hookfreight-agent"),
	)

	result, err := fwd.Forward(context.Background(), endpoint, event)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusDelivered, result.Status)

	require.NotNil(t, suite.request)
	assert.Equal(t, "hookfreight-agent", suite.request.Header.Get("User-Agent"))
}

func TestForwarder_StatusClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		code          int
		wantStatus    string
		wantRetryable bool
	}{
		{code: http.StatusOK, wantStatus: models.DeliveryStatusDelivered, wantRetryable: false},
		{code: http.StatusNoContent, wantStatus: models.DeliveryStatusDelivered, wantRetryable: false},
		{code: http.StatusNotModified, wantStatus: models.DeliveryStatusFailed, wantRetryable: false},
		{code: http.StatusNotFound, wantStatus: models.DeliveryStatusFailed, wantRetryable: false},
		{code: http.StatusUnprocessableEntity, wantStatus: models.DeliveryStatusFailed, wantRetryable: false},
		{code: http.StatusInternalServerError, wantStatus: models.DeliveryStatusFailed, wantRetryable: true},
		{code: http.StatusServiceUnavailable, wantStatus: models.DeliveryStatusFailed, wantRetryable: true},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("status %d", tc.code), func(t *testing.T) {
			suite := &forwarderSuite{responseCode: tc.code}
			suite.SetupTest(t)
			defer suite.TearDownTest(t)

			fwd, err := forwarder.New("")
			require.NoError(t, err)

			event := testutil.EventFactory.AnyPointer()
			endpoint := testutil.EndpointFactory.AnyPointer(
				testutil.EndpointFactory.WithForwardURL(suite.server.URL),
				testutil.EndpointFactory.WithForwardingEnabled(true),
			)

			result, err := fwd.Forward(context.Background(), endpoint, event)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, result.Status)
			assert.Equal(t, tc.wantRetryable, result.Retryable)
			require.NotNil(t, result.ResponseStatus)
			assert.Equal(t, tc.code, *result.ResponseStatus)
			if tc.wantStatus == models.DeliveryStatusFailed {
				assert.Equal(t, fmt.Sprintf("request failed with status %d", tc.code), result.ErrorMessage)
			}
		})
	}
}

func TestForwarder_Timeout(t *testing.T) {
	t.Parallel()

	suite := &forwarderSuite{responseDelay: 300 * time.Millisecond}
	suite.SetupTest(t)
	defer suite.TearDownTest(t)

	fwd, err := forwarder.New("")
	require.NoError(t, err)

	event := testutil.EventFactory.AnyPointer()
	endpoint := testutil.EndpointFactory.AnyPointer(
		testutil.EndpointFactory.WithForwardURL(suite.server.URL),
		testutil.EndpointFactory.WithForwardingEnabled(true),
		testutil.EndpointFactory.WithHTTPTimeoutMs(50),
	)

	result, err := fwd.Forward(context.Background(), endpoint, event)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusTimeout, result.Status)
	assert.True(t, result.Retryable)
	assert.Equal(t, "request timed out after 50ms", result.ErrorMessage)
	assert.Nil(t, result.ResponseStatus)
	assert.GreaterOrEqual(t, result.DurationMs, int64(40))
}

func TestForwarder_ConnectionRefused(t *testing.T) {
	t.Parallel()

	fwd, err := forwarder.New("")
	require.NoError(t, err)

	event := testutil.EventFactory.AnyPointer()
	endpoint := testutil.EndpointFactory.AnyPointer(
		testutil.EndpointFactory.WithForwardURL(fmt.Sprintf("http://127.0.0.1:%d", testutil.RandomPortNumber())),
		testutil.EndpointFactory.WithForwardingEnabled(true),
	)

	result, err := fwd.Forward(context.Background(), endpoint, event)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusFailed, result.Status)
	assert.True(t, result.Retryable)
	assert.Nil(t, result.ResponseStatus)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestForwarder_SelfForwardGuard(t *testing.T) {
	t.Parallel()

	const token = "a1b2c3d4e5f60718293a4b5c"

	t.Run("refuses a forward URL shaped like a capture URL", func(t *testing.T) {
		suite := &forwarderSuite{}
		suite.SetupTest(t)
		defer suite.TearDownTest(t)

		fwd, err := forwarder.New(suite.server.URL)
		require.NoError(t, err)

		event := testutil.EventFactory.AnyPointer()
		endpoint := testutil.EndpointFactory.AnyPointer(
			testutil.EndpointFactory.WithForwardURL(suite.server.URL+"/"+token),
			testutil.EndpointFactory.WithForwardingEnabled(true),
		)

		result, err := fwd.Forward(context.Background(), endpoint, event)
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryStatusFailed, result.Status)
		assert.False(t, result.Retryable)
		assert.Equal(t, forwarder.ErrMessageSelfForward, result.ErrorMessage)
		assert.Equal(t, 0, suite.hits)
	})

	t.Run("infers default ports from the scheme", func(t *testing.T) {
		fwd, err := forwarder.New("http://relay.example.com")
		require.NoError(t, err)

		event := testutil.EventFactory.AnyPointer()
		endpoint := testutil.EndpointFactory.AnyPointer(
			testutil.EndpointFactory.WithForwardURL("http://relay.example.com:80/"+token),
			testutil.EndpointFactory.WithForwardingEnabled(true),
		)

		result, err := fwd.Forward(context.Background(), endpoint, event)
		require.NoError(t, err)
		assert.Equal(t, forwarder.ErrMessageSelfForward, result.ErrorMessage)
	})

	t.Run("allows same host when the path is not a token", func(t *testing.T) {
		suite := &forwarderSuite{}
		suite.SetupTest(t)
		defer suite.TearDownTest(t)

		fwd, err := forwarder.New(suite.server.URL)
		require.NoError(t, err)

		event := testutil.EventFactory.AnyPointer()
		endpoint := testutil.EndpointFactory.AnyPointer(
			testutil.EndpointFactory.WithForwardURL(suite.server.URL+"/internal/receiver"),
			testutil.EndpointFactory.WithForwardingEnabled(true),
		)

		result, err := fwd.Forward(context.Background(), endpoint, event)
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryStatusDelivered, result.Status)
		assert.Equal(t, 1, suite.hits)
	})
}

func TestForwarder_ResponseBodyCapped(t *testing.T) {
	t.Parallel()

	suite := &forwarderSuite{responseBody: []byte(strings.Repeat("x", 64))}
	suite.SetupTest(t)
	defer suite.TearDownTest(t)

	fwd, err := forwarder.New("", forwarder.WithMaxResponseBytes(16))
	require.NoError(t, err)

	event := testutil.EventFactory.AnyPointer()
	endpoint := testutil.EndpointFactory.AnyPointer(
		testutil.EndpointFactory.WithForwardURL(suite.server.URL),
		testutil.EndpointFactory.WithForwardingEnabled(true),
	)

	result, err := fwd.Forward(context.Background(), endpoint, event)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusDelivered, result.Status)
	assert.Len(t, result.ResponseBody, 16)
}

func TestForwarder_InvalidForwardURL(t *testing.T) {
	t.Parallel()

	fwd, err := forwarder.New("")
	require.NoError(t, err)

	event := testutil.EventFactory.AnyPointer()
	endpoint := testutil.EndpointFactory.AnyPointer(
		testutil.EndpointFactory.WithForwardURL("://not-a-url"),
		testutil.EndpointFactory.WithForwardingEnabled(true),
	)

	result, err := fwd.Forward(context.Background(), endpoint, event)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusFailed, result.Status)
	assert.False(t, result.Retryable)
	assert.Contains(t, result.ErrorMessage, "invalid forward URL")
}
