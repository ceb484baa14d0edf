package rayid_test

import (
	"net/http/httptest"
	"testing"

	"github.com/simrailtools/backend-sub003/core/middleware/rayid"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("GeneratesRayID", func(t *testing.T) {
		app := fiber.New()
		app.Use(rayid.New())

		var captured string
		app.Get("/", func(c *fiber.Ctx) error {
			captured, _ = c.Locals(rayid.LocalsKey).(string)
			return c.SendStatus(fiber.StatusOK)
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.NotEmpty(t, captured)
		assert.Equal(t, captured, resp.Header.Get(rayid.HeaderName))
	})

	t.Run("KeepsSuppliedRayID", func(t *testing.T) {
		app := fiber.New()
		app.Use(rayid.New())
		app.Get("/", func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(rayid.HeaderName, "upstream-ray")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, "upstream-ray", resp.Header.Get(rayid.HeaderName))
	})
}
