package pgstore

import (
	"context"
	"fmt"

	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/jackc/pgx/v5"
)

func (s *store) CreateApp(ctx context.Context, app *models.App) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO apps (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, app.ID, app.Name, app.CreatedAt, app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert app: %w", err)
	}
	return nil
}

func (s *store) RetrieveApp(ctx context.Context, appID string) (*models.App, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM apps
		WHERE id = $1
	`, appID)

	app := &models.App{}
	err := row.Scan(&app.ID, &app.Name, &app.CreatedAt, &app.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan app: %w", err)
	}
	return app, nil
}

func (s *store) ListApps(ctx context.Context) ([]*models.App, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM apps
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query apps: %w", err)
	}
	defer rows.Close()

	var apps []*models.App
	for rows.Next() {
		app := &models.App{}
		if err := rows.Scan(&app.ID, &app.Name, &app.CreatedAt, &app.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return apps, nil
}

func (s *store) UpdateApp(ctx context.Context, app *models.App) error {
	_, err := s.db.Exec(ctx, `
		UPDATE apps
		SET name = $2, updated_at = $3
		WHERE id = $1
	`, app.ID, app.Name, app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update app: %w", err)
	}
	return nil
}

// DeleteApp removes the app along with its endpoints, their events, and those
// events' deliveries in one transaction. Event and delivery deletes run in
// endpoint-id batches so the statements stay bounded for large apps.
func (s *store) DeleteApp(ctx context.Context, appID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT id FROM endpoints WHERE app_id = $1`, appID)
	if err != nil {
		return fmt.Errorf("query endpoint ids: %w", err)
	}
	endpointIDs, err := scanIDs(rows)
	if err != nil {
		return err
	}

	for start := 0; start < len(endpointIDs); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(endpointIDs) {
			end = len(endpointIDs)
		}
		if err := deleteEndpointTraffic(ctx, tx, endpointIDs[start:end]); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM endpoints WHERE app_id = $1`, appID); err != nil {
		return fmt.Errorf("delete endpoints: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM apps WHERE id = $1`, appID); err != nil {
		return fmt.Errorf("delete app: %w", err)
	}

	return tx.Commit(ctx)
}

func deleteEndpointTraffic(ctx context.Context, tx pgx.Tx, endpointIDs []string) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM deliveries
		WHERE event_id IN (SELECT id FROM events WHERE endpoint_id = ANY($1))
	`, endpointIDs)
	if err != nil {
		return fmt.Errorf("delete deliveries: %w", err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM events WHERE endpoint_id = ANY($1)`, endpointIDs)
	if err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}
