package models_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/hookfreight/hookfreight/internal/idgen"
	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodAllowed(t *testing.T) {
	for _, method := range []string{"GET", "POST", "PUT", "PATCH"} {
		assert.True(t, models.MethodAllowed(method), method)
	}
	for _, method := range []string{"DELETE", "HEAD", "OPTIONS", "TRACE", ""} {
		assert.False(t, models.MethodAllowed(method), method)
	}
}

func TestHeadersCaseInsensitive(t *testing.T) {
	h := models.NewHeaders(http.Header{
		"Content-Type":    []string{"application/json"},
		"X-Custom-Header": []string{"one", "two"},
	})

	assert.Equal(t, "application/json", h.Get("content-type"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "one", h.Get("X-CUSTOM-HEADER"))
	assert.Equal(t, []string{"one", "two"}, h["x-custom-header"])
	assert.Empty(t, h.Get("missing"))
}

func TestDeliveryTaskJobID(t *testing.T) {
	eventID := idgen.Event()
	endpointID := idgen.Endpoint()

	auto := models.NewDeliveryTask(eventID, endpointID)
	assert.Equal(t, "delivery-"+eventID, auto.JobID())
	assert.Equal(t, 1, auto.Attempt)

	// A second automatic enqueue of the same event shares the job id, so the
	// queue deduplicates it.
	again := models.NewDeliveryTask(eventID, endpointID)
	assert.Equal(t, auto.JobID(), again.JobID())

	manual := models.NewManualDeliveryTask(eventID, endpointID, "dlv_parent")
	assert.True(t, manual.Manual)
	assert.Contains(t, manual.JobID(), "retry-dlv_parent-")
	assert.NotEqual(t, auto.JobID(), manual.JobID())
}

func TestDeliveryTaskRoundTrip(t *testing.T) {
	task := models.NewManualDeliveryTask("evt_1", "end_1", "dlv_1")

	s, err := task.ToString()
	require.NoError(t, err)

	var decoded models.DeliveryTask
	require.NoError(t, decoded.FromString(s))
	assert.Equal(t, task, decoded)
}

func TestEndpointTimeout(t *testing.T) {
	tests := []struct {
		name      string
		timeoutMs int
		want      time.Duration
	}{
		{"unset uses default", 0, 10 * time.Second},
		{"negative uses default", -1, 10 * time.Second},
		{"custom", 5_000, 5 * time.Second},
		{"capped at max", 600_000, 120 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := models.Endpoint{HTTPTimeoutMs: tt.timeoutMs}
			assert.Equal(t, tt.want, e.Timeout())
		})
	}
}

func TestNewEndpointDefaults(t *testing.T) {
	e := models.NewEndpoint("app_1")

	assert.Equal(t, "app_1", e.AppID)
	assert.True(t, idgen.Valid(idgen.PrefixEndpoint, e.ID))
	assert.True(t, idgen.ValidHookToken(e.HookToken))
	assert.True(t, e.IsActive)
	assert.False(t, e.ForwardingEnabled)
	assert.Equal(t, models.DefaultHTTPTimeoutMs, e.HTTPTimeoutMs)
}
