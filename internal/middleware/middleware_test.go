package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/localnerve/settingsdb/internal/services"
	"github.com/localnerve/settingsdb/internal/settings"
	"github.com/localnerve/settingsdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator map[string]*services.SessionUser

func (v fakeValidator) ValidateSession(_, cookie string) (*services.SessionUser, error) {
	if u, ok := v[cookie]; ok {
		return u, nil
	}
	return nil, errors.New("session is not valid")
}

func newApp(required bool) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var ce *types.CustomError
			if errors.As(err, &ce) {
				return c.Status(ce.Code).SendString(ce.Type)
			}
			return fiber.DefaultErrorHandler(c, err)
		},
	})
	validator := fakeValidator{"good": {ID: "u42", Roles: []string{"admin", "editor"}}}
	app.Use(RequestContext(), Authenticate(validator, required))
	app.Get("/", func(c *fiber.Ctx) error {
		req := settings.FromContext(c.UserContext())
		return c.JSON(fiber.Map{
			"id":        req.ID,
			"principal": req.PrincipalID,
			"admin":     req.Grants().Contains("role.admin"),
			"version":   c.Locals("apiVersion"),
		})
	})
	return app
}

func TestRequestContext(t *testing.T) {
	app := newApp(false)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, err = uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, id)
	req.Header.Set("X-Api-Version", "1.0")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, id, resp.Header.Get(RequestIDHeader))
}

func TestAuthenticate(t *testing.T) {
	app := newApp(true)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", SessionCookie+"=bad")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", SessionCookie+"=good")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthenticateGrantsRoles(t *testing.T) {
	var got *settings.Request
	app := fiber.New()
	app.Use(RequestContext(), Authenticate(fakeValidator{"good": {ID: "u42", Roles: []string{"admin"}}}, false))
	app.Get("/", func(c *fiber.Ctx) error {
		got = SettingsRequest(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", SessionCookie+"=good")
	_, err := app.Test(req)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u42", got.PrincipalID)
	assert.True(t, got.Grants().Contains("role.admin"))

	_, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.True(t, got.Anonymous(), "optional authentication lets anonymous requests through")
}
