package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	defaultDeliveryListLimit = 20
	maxDeliveryListLimit     = 1000
)

type ListDeliveriesRequest struct {
	EventID string
	Limit   int
	Offset  int
}

const deliveryColumns = `seq, id, event_id, parent_delivery_id, status, destination_url,
	response_status, response_headers, response_body, duration_ms, error_message, created_at`

// InsertDelivery appends one delivery record. At most one delivery may exist
// per (event, parent) link; a second insert for the same link returns
// models.ErrDuplicateDelivery.
func (s *store) InsertDelivery(ctx context.Context, delivery *models.Delivery) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO deliveries (id, event_id, parent_delivery_id, status, destination_url,
			response_status, response_headers, response_body, duration_ms, error_message, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11)
		RETURNING seq
	`, delivery.ID, delivery.EventID, delivery.ParentDeliveryID, delivery.Status, delivery.DestinationURL,
		delivery.ResponseStatus, delivery.ResponseHeaders, delivery.ResponseBody, delivery.DurationMs,
		delivery.ErrorMessage, delivery.CreatedAt)

	if err := row.Scan(&delivery.Seq); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return models.ErrDuplicateDelivery
		}
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (s *store) RetrieveDelivery(ctx context.Context, deliveryID string) (*models.Delivery, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE id = $1
	`, deliveryID)

	delivery, err := scanDelivery(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// ListDeliveries returns an event's deliveries, newest first. The limit
// defaults to 20 and is capped at 1000.
func (s *store) ListDeliveries(ctx context.Context, req ListDeliveriesRequest) ([]*models.Delivery, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultDeliveryListLimit
	}
	if limit > maxDeliveryListLimit {
		limit = maxDeliveryListLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+deliveryColumns+`
		FROM deliveries
		WHERE event_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`, req.EventID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*models.Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, delivery)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return deliveries, nil
}

func scanDelivery(row pgx.Row) (*models.Delivery, error) {
	var (
		delivery         models.Delivery
		parentDeliveryID *string
		errorMessage     *string
	)

	err := row.Scan(
		&delivery.Seq,
		&delivery.ID,
		&delivery.EventID,
		&parentDeliveryID,
		&delivery.Status,
		&delivery.DestinationURL,
		&delivery.ResponseStatus,
		&delivery.ResponseHeaders,
		&delivery.ResponseBody,
		&delivery.DurationMs,
		&errorMessage,
		&delivery.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan delivery: %w", err)
	}

	if parentDeliveryID != nil {
		delivery.ParentDeliveryID = *parentDeliveryID
	}
	if errorMessage != nil {
		delivery.ErrorMessage = *errorMessage
	}

	return &delivery, nil
}
