package testutil

import (
	"time"

	"github.com/hookfreight/hookfreight/internal/idgen"
	"github.com/hookfreight/hookfreight/internal/models"
)

// ============================== Mock App ==============================

var AppFactory = &mockAppFactory{}

type mockAppFactory struct {
}

func (f *mockAppFactory) Any(opts ...func(*models.App)) models.App {
	now := time.Now().UTC()
	app := models.App{
		ID:        idgen.App(),
		Name:      "test-app",
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, opt := range opts {
		opt(&app)
	}

	return app
}

func (f *mockAppFactory) AnyPointer(opts ...func(*models.App)) *models.App {
	app := f.Any(opts...)
	return &app
}

func (f *mockAppFactory) WithID(id string) func(*models.App) {
	return func(app *models.App) {
		app.ID = id
	}
}

func (f *mockAppFactory) WithName(name string) func(*models.App) {
	return func(app *models.App) {
		app.Name = name
	}
}

// ============================== Mock Endpoint ==============================

var EndpointFactory = &mockEndpointFactory{}

type mockEndpointFactory struct {
}

func (f *mockEndpointFactory) Any(opts ...func(*models.Endpoint)) models.Endpoint {
	now := time.Now().UTC()
	endpoint := models.Endpoint{
		ID:            idgen.Endpoint(),
		AppID:         idgen.App(),
		HookToken:     idgen.HookToken(),
		HTTPTimeoutMs: models.DefaultHTTPTimeoutMs,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, opt := range opts {
		opt(&endpoint)
	}

	return endpoint
}

func (f *mockEndpointFactory) AnyPointer(opts ...func(*models.Endpoint)) *models.Endpoint {
	endpoint := f.Any(opts...)
	return &endpoint
}

func (f *mockEndpointFactory) WithID(id string) func(*models.Endpoint) {
	return func(endpoint *models.Endpoint) {
		endpoint.ID = id
	}
}

func (f *mockEndpointFactory) WithAppID(appID string) func(*models.Endpoint) {
	return func(endpoint *models.Endpoint) {
		endpoint.AppID = appID
	}
}

func (f *mockEndpointFactory) WithHookToken(hookToken string) func(*models.Endpoint) {
	return func(endpoint *models.Endpoint) {
		endpoint.HookToken = hookToken
	}
}

func (f *mockEndpointFactory) WithForwardURL(forwardURL string) func(*models.Endpoint) {
	return func(endpoint *models.Endpoint) {
		endpoint.ForwardURL = forwardURL
	}
}

func (f *mockEndpointFactory) WithForwardingEnabled(enabled bool) func(*models.Endpoint) {
	return func(endpoint *models.Endpoint) {
		endpoint.ForwardingEnabled = enabled
	}
}

func (f *mockEndpointFactory) WithAuthentication(name, value string) func(*models.Endpoint) {
	return func(endpoint *models.Endpoint) {
		endpoint.Authentication = &models.EndpointAuth{
			HeaderName:  name,
			HeaderValue: value,
		}
	}
}

func (f *mockEndpointFactory) WithHTTPTimeoutMs(timeoutMs int) func(*models.Endpoint) {
	return func(endpoint *models.Endpoint) {
		endpoint.HTTPTimeoutMs = timeoutMs
	}
}

func (f *mockEndpointFactory) WithIsActive(isActive bool) func(*models.Endpoint) {
	return func(endpoint *models.Endpoint) {
		endpoint.IsActive = isActive
	}
}

// ============================== Mock Event ==============================

var EventFactory = &mockEventFactory{}

type mockEventFactory struct {
}

func (f *mockEventFactory) Any(opts ...func(*models.Event)) models.Event {
	token := idgen.HookToken()
	body := []byte(`{"hello":"world"}`)
	event := models.Event{
		ID:          idgen.Event(),
		EndpointID:  idgen.Endpoint(),
		ReceivedAt:  time.Now().UTC(),
		Method:      "POST",
		OriginalURL: "http://localhost:3030/" + token,
		Path:        "/" + token,
		Query:       map[string][]string{},
		Headers: models.Headers{
			"content-type": {"application/json"},
		},
		Body:      body,
		SourceIP:  "203.0.113.7",
		UserAgent: "curl/8.4.0",
		SizeBytes: len(body),
	}

	for _, opt := range opts {
		opt(&event)
	}

	return event
}

func (f *mockEventFactory) AnyPointer(opts ...func(*models.Event)) *models.Event {
	event := f.Any(opts...)
	return &event
}

func (f *mockEventFactory) WithID(id string) func(*models.Event) {
	return func(event *models.Event) {
		event.ID = id
	}
}

func (f *mockEventFactory) WithEndpointID(endpointID string) func(*models.Event) {
	return func(event *models.Event) {
		event.EndpointID = endpointID
	}
}

func (f *mockEventFactory) WithReceivedAt(receivedAt time.Time) func(*models.Event) {
	return func(event *models.Event) {
		event.ReceivedAt = receivedAt
	}
}

func (f *mockEventFactory) WithMethod(method string) func(*models.Event) {
	return func(event *models.Event) {
		event.Method = method
	}
}

// WithBody sets the raw body and keeps SizeBytes in sync.
func (f *mockEventFactory) WithBody(body []byte) func(*models.Event) {
	return func(event *models.Event) {
		event.Body = body
		event.SizeBytes = len(body)
	}
}

func (f *mockEventFactory) WithHeaders(headers models.Headers) func(*models.Event) {
	return func(event *models.Event) {
		event.Headers = headers
	}
}

func (f *mockEventFactory) WithQuery(query map[string][]string) func(*models.Event) {
	return func(event *models.Event) {
		event.Query = query
	}
}

func (f *mockEventFactory) WithSourceURL(sourceURL string) func(*models.Event) {
	return func(event *models.Event) {
		event.SourceURL = sourceURL
	}
}

// ============================== Mock Delivery ==============================

var DeliveryFactory = &mockDeliveryFactory{}

type mockDeliveryFactory struct {
}

func (f *mockDeliveryFactory) Any(opts ...func(*models.Delivery)) models.Delivery {
	status := 200
	delivery := models.Delivery{
		ID:             idgen.Delivery(),
		EventID:        idgen.Event(),
		Status:         models.DeliveryStatusDelivered,
		DestinationURL: "http://localhost:8080/webhook",
		ResponseStatus: &status,
		ResponseHeaders: map[string]string{
			"content-type": "application/json",
		},
		ResponseBody: []byte(`{"ok":true}`),
		DurationMs:   12,
		CreatedAt:    time.Now().UTC(),
	}

	for _, opt := range opts {
		opt(&delivery)
	}

	return delivery
}

func (f *mockDeliveryFactory) AnyPointer(opts ...func(*models.Delivery)) *models.Delivery {
	delivery := f.Any(opts...)
	return &delivery
}

func (f *mockDeliveryFactory) WithID(id string) func(*models.Delivery) {
	return func(delivery *models.Delivery) {
		delivery.ID = id
	}
}

func (f *mockDeliveryFactory) WithEventID(eventID string) func(*models.Delivery) {
	return func(delivery *models.Delivery) {
		delivery.EventID = eventID
	}
}

func (f *mockDeliveryFactory) WithParentDeliveryID(parentDeliveryID string) func(*models.Delivery) {
	return func(delivery *models.Delivery) {
		delivery.ParentDeliveryID = parentDeliveryID
	}
}

func (f *mockDeliveryFactory) WithStatus(status string) func(*models.Delivery) {
	return func(delivery *models.Delivery) {
		delivery.Status = status
	}
}

func (f *mockDeliveryFactory) WithResponseStatus(responseStatus int) func(*models.Delivery) {
	return func(delivery *models.Delivery) {
		delivery.ResponseStatus = &responseStatus
	}
}

func (f *mockDeliveryFactory) WithErrorMessage(errorMessage string) func(*models.Delivery) {
	return func(delivery *models.Delivery) {
		delivery.ErrorMessage = errorMessage
	}
}

func (f *mockDeliveryFactory) WithCreatedAt(createdAt time.Time) func(*models.Delivery) {
	return func(delivery *models.Delivery) {
		delivery.CreatedAt = createdAt
	}
}

func (f *mockDeliveryFactory) WithDestinationURL(destinationURL string) func(*models.Delivery) {
	return func(delivery *models.Delivery) {
		delivery.DestinationURL = destinationURL
	}
}
