package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeliveryTask is the job payload the scheduler carries for one forward
// attempt. Attempt is 1-based; a retry re-enqueue increments it and rewrites
// ParentDeliveryID so the next delivery links into the chain.
type DeliveryTask struct {
	EventID          string `json:"event_id"`
	EndpointID       string `json:"endpoint_id"`
	ParentDeliveryID string `json:"parent_delivery_id,omitempty"`
	Attempt          int    `json:"attempt"`
	Manual           bool   `json:"manual,omitempty"`
	Nonce            int64  `json:"nonce,omitempty"`
}

// JobID doubles as the idempotency key. Automatic enqueues use one id per
// event so a duplicate ingest can't start a second chain; manual retries get
// a fresh id per request via the creation-time nonce.
func (t DeliveryTask) JobID() string {
	if t.Manual {
		return fmt.Sprintf("retry-%s-%d", t.ParentDeliveryID, t.Nonce)
	}
	return "delivery-" + t.EventID
}

func (t DeliveryTask) ToString() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (t *DeliveryTask) FromString(s string) error {
	return json.Unmarshal([]byte(s), t)
}

func NewDeliveryTask(eventID, endpointID string) DeliveryTask {
	return DeliveryTask{
		EventID:    eventID,
		EndpointID: endpointID,
		Attempt:    1,
	}
}

// NewManualDeliveryTask starts a fresh chain rooted at a recorded delivery.
func NewManualDeliveryTask(eventID, endpointID, parentDeliveryID string) DeliveryTask {
	return DeliveryTask{
		EventID:          eventID,
		EndpointID:       endpointID,
		ParentDeliveryID: parentDeliveryID,
		Attempt:          1,
		Manual:           true,
		Nonce:            time.Now().UnixMilli(),
	}
}
