package pgstore

import (
	"context"

	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// deleteBatchSize bounds the endpoint-id batches used by cascade deletes so
	// a large app cannot produce an unbounded IN clause.
	deleteBatchSize = 1000

	pgUniqueViolation = "23505"
)

// Store is the Postgres persistence layer. Retrieve methods return (nil, nil)
// when the row does not exist.
type Store interface {
	CreateApp(ctx context.Context, app *models.App) error
	RetrieveApp(ctx context.Context, appID string) (*models.App, error)
	ListApps(ctx context.Context) ([]*models.App, error)
	UpdateApp(ctx context.Context, app *models.App) error
	DeleteApp(ctx context.Context, appID string) error

	CreateEndpoint(ctx context.Context, endpoint *models.Endpoint) error
	RetrieveEndpoint(ctx context.Context, endpointID string) (*models.Endpoint, error)
	RetrieveEndpointByToken(ctx context.Context, hookToken string) (*models.Endpoint, error)
	ListEndpoints(ctx context.Context, appID string) ([]*models.Endpoint, error)
	UpdateEndpoint(ctx context.Context, endpoint *models.Endpoint) error
	DeleteEndpoint(ctx context.Context, endpointID string) error

	InsertEvent(ctx context.Context, event *models.Event) error
	RetrieveEvent(ctx context.Context, eventID string) (*models.Event, error)
	ListEvents(ctx context.Context, req ListEventsRequest) (ListEventsResponse, error)

	InsertDelivery(ctx context.Context, delivery *models.Delivery) error
	RetrieveDelivery(ctx context.Context, deliveryID string) (*models.Delivery, error)
	ListDeliveries(ctx context.Context, req ListDeliveriesRequest) ([]*models.Delivery, error)
}

type store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) Store {
	return &store{
		db: db,
	}
}
