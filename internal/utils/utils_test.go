package utils

import (
	"encoding/json"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))

	log, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestPingAddress(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	assert.NoError(t, PingService("http://"+l.Addr().String(), time.Second))

	addr := l.Addr().String()
	require.NoError(t, l.Close())
	assert.Error(t, PingAddress(addr, 200*time.Millisecond))
	assert.Error(t, PingService("://bad", time.Second))
}

func TestErrorResponse(t *testing.T) {
	app := fiber.New()
	app.Get("/x", func(c *fiber.Ctx) error {
		return ErrorResponse(c, "nope", fiber.StatusForbidden, "settings.denied")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/x?y=1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var body ErrorResponseStruct
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "nope", body.Message)
	assert.Equal(t, "/x?y=1", body.URL)
	assert.Equal(t, "settings.denied", body.Type)
	assert.False(t, body.Ok)
}
