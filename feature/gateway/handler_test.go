package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/simrailtools/backend-sub003/feature/tracker/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticArchive struct {
	payload string
}

func (a *staticArchive) Latest(_ context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(a.payload)), nil
}

func newHandlerApp(t *testing.T, archive ArchiveSource) *fiber.App {
	t.Helper()
	cache, hub := newHubFixture(t)
	handler := NewHandler(cache, hub, archive, zap.NewNop())

	app := fiber.New()
	handler.RegisterRoutes(app)
	return app
}

func TestHandlerServers(t *testing.T) {
	app := newHandlerApp(t, nil)

	t.Run("List", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/servers", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var servers []models.ServerView
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&servers))
		require.Len(t, servers, 1)
		assert.Equal(t, "srv-1", servers[0].ID)
	})

	t.Run("ByID", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/servers/srv-1", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("NotFound", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/servers/srv-404", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func TestHandlerJourneysFilter(t *testing.T) {
	app := newHandlerApp(t, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/journeys?server_id=srv-1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var journeys []models.JourneyView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&journeys))
	require.Len(t, journeys, 1)
	assert.Equal(t, "jrn-1", journeys[0].ID)

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/journeys", nil))
	require.NoError(t, err)
	journeys = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&journeys))
	assert.Len(t, journeys, 2)
}

func TestHandlerStatus(t *testing.T) {
	app := newHandlerApp(t, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/status", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var status struct {
		Cache    map[string]int `json:"cache"`
		Sessions int            `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 1, status.Cache["servers"])
	assert.Equal(t, 2, status.Cache["journeys"])
	assert.Equal(t, 0, status.Sessions)
}

func TestHandlerArchiveLatest(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		app := newHandlerApp(t, nil)
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/archive/latest", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("StreamsLatestDump", func(t *testing.T) {
		app := newHandlerApp(t, &staticArchive{payload: `{"taken_at":"2026-08-29T00:00:00Z"}`})
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/archive/latest", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "2026-08-29")
	})
}
