package services

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/localnerve/settingsdb/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type downCache struct{}

func (downCache) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthCheck(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := &config.Config{DBType: "sqlite", DBDatabase: ":memory:", CacheType: "memory", AuthzURL: "http://" + l.Addr().String()}
	db := setupTestDB(t)

	result := HealthCheck(context.Background(), cfg, db, NewMemoryCache(), zaptest.NewLogger(t))
	assert.Equal(t, "healthy", result.Status)
	assert.Equal(t, "ok", result.Database)
	assert.Equal(t, "ok", result.Cache)
	assert.Equal(t, "ok", result.Authorizer)

	result = HealthCheck(context.Background(), cfg, db, downCache{}, zaptest.NewLogger(t))
	assert.Equal(t, "unhealthy", result.Status)
	assert.Equal(t, "unreachable", result.Cache)
	assert.Contains(t, result.ErrorMessage, "Cache ping failed")

	addr := l.Addr().String()
	require.NoError(t, l.Close())
	cfg.AuthzURL = "http://" + addr
	result = HealthCheck(context.Background(), cfg, db, downCache{}, zaptest.NewLogger(t))
	assert.Equal(t, "unreachable", result.Authorizer)
	assert.Contains(t, result.ErrorMessage, "; Authorizer ping failed")
}
