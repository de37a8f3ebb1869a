package models

import "errors"

// ErrDuplicateDelivery is returned when an insert would violate the
// (event_id, parent_delivery_id) uniqueness of the delivery ledger.
var ErrDuplicateDelivery = errors.New("delivery already recorded for this event and parent")
