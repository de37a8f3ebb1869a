package pgstore

import (
	"context"
	"fmt"

	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/jackc/pgx/v5"
)

const (
	defaultEventListLimit = 20
	maxEventListLimit     = 50
)

type ListEventsRequest struct {
	EndpointID string
	Limit      int
	Offset     int
}

type ListEventsResponse struct {
	Data    []*models.Event
	HasNext bool
}

const eventColumns = `seq, id, endpoint_id, received_at, method, original_url, source_url,
	path, query, headers, body, source_ip, user_agent, size_bytes`

func (s *store) InsertEvent(ctx context.Context, event *models.Event) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO events (id, endpoint_id, received_at, method, original_url, source_url,
			path, query, headers, body, source_ip, user_agent, size_bytes)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, $13)
		RETURNING seq
	`, event.ID, event.EndpointID, event.ReceivedAt, event.Method, event.OriginalURL, event.SourceURL,
		event.Path, event.Query, event.Headers, event.Body, event.SourceIP, event.UserAgent, event.SizeBytes)

	if err := row.Scan(&event.Seq); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *store) RetrieveEvent(ctx context.Context, eventID string) (*models.Event, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1
	`, eventID)

	event, err := scanEvent(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

// ListEvents returns events for an endpoint, newest first. Rows sharing a
// received_at are ordered by insert order. The limit defaults to 20 and is
// capped at 50; one extra row is fetched to decide HasNext.
func (s *store) ListEvents(ctx context.Context, req ListEventsRequest) (ListEventsResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultEventListLimit
	}
	if limit > maxEventListLimit {
		limit = maxEventListLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE endpoint_id = $1
		ORDER BY received_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`, req.EndpointID, limit+1, offset)
	if err != nil {
		return ListEventsResponse{}, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return ListEventsResponse{}, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return ListEventsResponse{}, fmt.Errorf("rows error: %w", err)
	}

	hasNext := len(events) > limit
	if hasNext {
		events = events[:limit]
	}

	return ListEventsResponse{
		Data:    events,
		HasNext: hasNext,
	}, nil
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var (
		event     models.Event
		sourceURL *string
	)

	err := row.Scan(
		&event.Seq,
		&event.ID,
		&event.EndpointID,
		&event.ReceivedAt,
		&event.Method,
		&event.OriginalURL,
		&sourceURL,
		&event.Path,
		&event.Query,
		&event.Headers,
		&event.Body,
		&event.SourceIP,
		&event.UserAgent,
		&event.SizeBytes,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}

	if sourceURL != nil {
		event.SourceURL = *sourceURL
	}

	return &event, nil
}
