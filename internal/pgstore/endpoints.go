package pgstore

import (
	"context"
	"fmt"

	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/jackc/pgx/v5"
)

const endpointColumns = `id, app_id, hook_token, forward_url, forwarding_enabled,
	auth_header_name, auth_header_value, http_timeout_ms, is_active, created_at, updated_at`

func (s *store) CreateEndpoint(ctx context.Context, endpoint *models.Endpoint) error {
	var authName, authValue *string
	if endpoint.Authentication != nil {
		authName = &endpoint.Authentication.HeaderName
		authValue = &endpoint.Authentication.HeaderValue
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO endpoints (`+endpointColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, endpoint.ID, endpoint.AppID, endpoint.HookToken, endpoint.ForwardURL, endpoint.ForwardingEnabled,
		authName, authValue, endpoint.HTTPTimeoutMs, endpoint.IsActive, endpoint.CreatedAt, endpoint.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert endpoint: %w", err)
	}
	return nil
}

func (s *store) RetrieveEndpoint(ctx context.Context, endpointID string) (*models.Endpoint, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+endpointColumns+`
		FROM endpoints
		WHERE id = $1
	`, endpointID)
	return scanEndpoint(row)
}

func (s *store) RetrieveEndpointByToken(ctx context.Context, hookToken string) (*models.Endpoint, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+endpointColumns+`
		FROM endpoints
		WHERE hook_token = $1
	`, hookToken)
	return scanEndpoint(row)
}

func (s *store) ListEndpoints(ctx context.Context, appID string) ([]*models.Endpoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+endpointColumns+`
		FROM endpoints
		WHERE app_id = $1
		ORDER BY created_at DESC, id DESC
	`, appID)
	if err != nil {
		return nil, fmt.Errorf("query endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []*models.Endpoint
	for rows.Next() {
		endpoint, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, endpoint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return endpoints, nil
}

// UpdateEndpoint writes the mutable endpoint fields. hook_token is assigned at
// creation and deliberately not part of the update.
func (s *store) UpdateEndpoint(ctx context.Context, endpoint *models.Endpoint) error {
	var authName, authValue *string
	if endpoint.Authentication != nil {
		authName = &endpoint.Authentication.HeaderName
		authValue = &endpoint.Authentication.HeaderValue
	}

	_, err := s.db.Exec(ctx, `
		UPDATE endpoints
		SET forward_url = $2,
			forwarding_enabled = $3,
			auth_header_name = $4,
			auth_header_value = $5,
			http_timeout_ms = $6,
			is_active = $7,
			updated_at = $8
		WHERE id = $1
	`, endpoint.ID, endpoint.ForwardURL, endpoint.ForwardingEnabled,
		authName, authValue, endpoint.HTTPTimeoutMs, endpoint.IsActive, endpoint.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update endpoint: %w", err)
	}
	return nil
}

func (s *store) DeleteEndpoint(ctx context.Context, endpointID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := deleteEndpointTraffic(ctx, tx, []string{endpointID}); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM endpoints WHERE id = $1`, endpointID); err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}

	return tx.Commit(ctx)
}

func scanEndpoint(row pgx.Row) (*models.Endpoint, error) {
	var (
		endpoint  models.Endpoint
		authName  *string
		authValue *string
	)

	err := row.Scan(
		&endpoint.ID,
		&endpoint.AppID,
		&endpoint.HookToken,
		&endpoint.ForwardURL,
		&endpoint.ForwardingEnabled,
		&authName,
		&authValue,
		&endpoint.HTTPTimeoutMs,
		&endpoint.IsActive,
		&endpoint.CreatedAt,
		&endpoint.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan endpoint: %w", err)
	}

	if authName != nil {
		auth := &models.EndpointAuth{HeaderName: *authName}
		if authValue != nil {
			auth.HeaderValue = *authValue
		}
		endpoint.Authentication = auth
	}

	return &endpoint, nil
}
