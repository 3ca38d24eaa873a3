package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTrip(t *testing.T) {
	j, err := NewJSON(map[string]any{"theme": "dark", "size": 12})
	require.NoError(t, err)

	m, err := j.Map()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark", "size": 12.0}, m)
}

func TestJSONEmpty(t *testing.T) {
	j, err := NewJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(j.JSON))

	m, err := JSON{}.Map()
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = JSON{JSON: []byte("[1")}.Map()
	assert.Error(t, err)
}
