package apirouter_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/hookfreight/hookfreight/internal/idgen"
	"github.com/hookfreight/hookfreight/internal/models"
	"github.com/hookfreight/hookfreight/internal/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedApp(t *testing.T, env *testEnv, opts ...func(*models.App)) *models.App {
	t.Helper()
	app := testutil.AppFactory.AnyPointer(opts...)
	require.NoError(t, env.store.CreateApp(context.Background(), app))
	return app
}

func TestCreateApp(t *testing.T) {
	t.Parallel()
	env := setupAPI(t)

	w := doJSON(env, http.MethodPost, "/api/v1/apps", `{"name": "checkout"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	body := parseBody(t, w)
	assert.Equal(t, "app_created", body["message"])

	data := dataObject(t, w)
	assert.Equal(t, "checkout", data["name"])
	appID, _ := data["id"].(string)
	assert.True(t, idgen.Valid(idgen.PrefixApp, appID), "unexpected id %q", appID)
	assert.NotEmpty(t, data["created_at"])

	stored, err := env.store.RetrieveApp(context.Background(), appID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "checkout", stored.Name)
}

func TestCreateAppValidation(t *testing.T) {
	t.Parallel()
	env := setupAPI(t)

	t.Run("missing name", func(t *testing.T) {
		w := doJSON(env, http.MethodPost, "/api/v1/apps", `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", parseBody(t, w)["message"])

		fields := errorFields(t, w)
		require.Len(t, fields, 1)
		assert.Equal(t, "name", fields[0]["field"])
		assert.Equal(t, "required", fields[0]["code"])
		assert.Equal(t, "name is required", fields[0]["message"])
	})

	t.Run("name too long", func(t *testing.T) {
		w := doJSON(env, http.MethodPost, "/api/v1/apps", `{"name": "`+strings.Repeat("a", 256)+`"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		fields := errorFields(t, w)
		require.Len(t, fields, 1)
		assert.Equal(t, "name", fields[0]["field"])
		assert.Equal(t, "max", fields[0]["code"])
		assert.Equal(t, "255", fields[0]["expected"])
	})

	t.Run("malformed json", func(t *testing.T) {
		w := doJSON(env, http.MethodPost, "/api/v1/apps", `{"name": `)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_json", parseBody(t, w)["message"])
	})

	t.Run("wrong type", func(t *testing.T) {
		w := doJSON(env, http.MethodPost, "/api/v1/apps", `{"name": 7}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		fields := errorFields(t, w)
		require.Len(t, fields, 1)
		assert.Equal(t, "name", fields[0]["field"])
		assert.Equal(t, "invalid_type", fields[0]["code"])
		assert.Equal(t, "string", fields[0]["expected"])
		assert.Equal(t, "number", fields[0]["received"])
	})
}

func TestListApps(t *testing.T) {
	t.Parallel()
	env := setupAPI(t)

	w := doRequest(env, http.MethodGet, "/api/v1/apps", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := parseBody(t, w)
	assert.Equal(t, "success", body["message"])
	assert.Equal(t, []interface{}{}, body["data"])

	seedApp(t, env, testutil.AppFactory.WithName("billing"))
	seedApp(t, env, testutil.AppFactory.WithName("checkout"))

	w = doRequest(env, http.MethodGet, "/api/v1/apps", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data, ok := parseBody(t, w)["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestRetrieveApp(t *testing.T) {
	t.Parallel()
	env := setupAPI(t)
	app := seedApp(t, env)

	w := doRequest(env, http.MethodGet, "/api/v1/apps/"+app.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, app.ID, dataObject(t, w)["id"])

	w = doRequest(env, http.MethodGet, "/api/v1/apps/"+idgen.App(), nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "app_not_found", parseBody(t, w)["message"])
}

func TestUpdateApp(t *testing.T) {
	t.Parallel()
	env := setupAPI(t)
	app := seedApp(t, env, testutil.AppFactory.WithName("old-name"))

	w := doJSON(env, http.MethodPatch, "/api/v1/apps/"+app.ID, `{"name": "new-name"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "app_updated", parseBody(t, w)["message"])
	assert.Equal(t, "new-name", dataObject(t, w)["name"])

	stored, err := env.store.RetrieveApp(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-name", stored.Name)
	assert.True(t, stored.UpdatedAt.After(app.UpdatedAt) || stored.UpdatedAt.Equal(app.UpdatedAt))
}

func TestDeleteAppCascades(t *testing.T) {
	t.Parallel()
	env := setupAPI(t)
	ctx := context.Background()

	app := seedApp(t, env)
	endpoint := seedEndpoint(t, env, testutil.EndpointFactory.WithAppID(app.ID))
	event := testutil.EventFactory.AnyPointer(testutil.EventFactory.WithEndpointID(endpoint.ID))
	require.NoError(t, env.store.InsertEvent(ctx, event))
	delivery := testutil.DeliveryFactory.AnyPointer(testutil.DeliveryFactory.WithEventID(event.ID))
	require.NoError(t, env.store.InsertDelivery(ctx, delivery))

	w := doRequest(env, http.MethodDelete, "/api/v1/apps/"+app.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "app_deleted", parseBody(t, w)["message"])

	storedApp, err := env.store.RetrieveApp(ctx, app.ID)
	require.NoError(t, err)
	assert.Nil(t, storedApp)
	storedEndpoint, err := env.store.RetrieveEndpoint(ctx, endpoint.ID)
	require.NoError(t, err)
	assert.Nil(t, storedEndpoint)
	storedEvent, err := env.store.RetrieveEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Nil(t, storedEvent)
	storedDelivery, err := env.store.RetrieveDelivery(ctx, delivery.ID)
	require.NoError(t, err)
	assert.Nil(t, storedDelivery)

	w = doRequest(env, http.MethodDelete, "/api/v1/apps/"+app.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
