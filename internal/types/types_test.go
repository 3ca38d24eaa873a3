package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexList(t *testing.T) {
	var body struct {
		Properties FlexList[string] `json:"properties"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"properties": "theme"}`), &body))
	assert.Equal(t, FlexList[string]{"theme"}, body.Properties)

	require.NoError(t, json.Unmarshal([]byte(`{"properties": ["theme", "compact", "theme"]}`), &body))
	assert.Equal(t, FlexList[string]{"theme", "compact", "theme"}, body.Properties)
	assert.Equal(t, []string{"theme", "compact"}, body.Properties.Unique())

	require.NoError(t, json.Unmarshal([]byte(`{"properties": null}`), &body))
	assert.Empty(t, body.Properties)

	assert.Error(t, json.Unmarshal([]byte(`{"properties": 12}`), &body))
	assert.Error(t, json.Unmarshal([]byte(`{"properties": [1]}`), &body))
}

func TestCustomError(t *testing.T) {
	cause := errors.New("session expired")
	err := &CustomError{Code: 403, Message: "Invalid session", Type: "settings.authorization", Err: cause}

	assert.Equal(t, "403: Invalid session [type: settings.authorization]", err.Error())
	assert.ErrorIs(t, err, cause)

	var target *CustomError
	require.ErrorAs(t, error(err), &target)
	assert.Equal(t, 403, target.Code)
}
