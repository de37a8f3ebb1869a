package models

import "time"

const (
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
	DeliveryStatusTimeout   = "timeout"
)

// Delivery is one forwarding attempt and its outcome. Deliveries are
// append-only; retry chains link through ParentDeliveryID.
type Delivery struct {
	Seq int64 `json:"-"`

	ID               string            `json:"id"`
	EventID          string            `json:"event_id"`
	ParentDeliveryID string            `json:"parent_delivery_id,omitempty"`
	Status           string            `json:"status"`
	DestinationURL   string            `json:"destination_url"`
	ResponseStatus   *int              `json:"response_status,omitempty"`
	ResponseHeaders  map[string]string `json:"response_headers,omitempty"`
	ResponseBody     []byte            `json:"-"`
	DurationMs       int64             `json:"duration_ms"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}
