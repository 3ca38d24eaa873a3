package settings

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedNumberValidate(t *testing.T) {
	p := BoundedNumberProperty{Meta: Meta{Caption: "Size"}, Min: 8, Max: 24, Step: 2}

	tests := []struct {
		name  string
		value any
		want  float64
		ok    bool
	}{
		{"lower bound", 8, 8, true},
		{"upper bound", 24, 24, true},
		{"stepped", int64(12), 12, true},
		{"json float", 18.0, 18, true},
		{"json number", json.Number("10"), 10, true},
		{"above max", 25, 0, false},
		{"below min", 6, 0, false},
		{"off step", 9, 0, false},
		{"fraction", 12.5, 0, false},
		{"string", "12", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Validate(tt.value)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoundedNumberZeroStep(t *testing.T) {
	p := BoundedNumberProperty{Min: 1, Max: 3}
	_, err := p.Validate(2)
	assert.NoError(t, err)
	assert.Equal(t, 1, p.Schema()["step"])
}

func TestChoiceValidate(t *testing.T) {
	p := ChoiceProperty{Options: []Option{{Key: "light"}, {Key: "dark"}}}

	got, err := p.Validate("dark")
	require.NoError(t, err)
	assert.Equal(t, "dark", got)

	_, err = p.Validate("blue")
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = p.Validate(1)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestScalarValidate(t *testing.T) {
	_, err := StringProperty{}.Validate(3)
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = TextProperty{}.Validate(true)
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = BooleanProperty{}.Validate("true")
	assert.ErrorIs(t, err, ErrInvalidValue)

	n, err := NumberProperty{}.Validate(uint8(7))
	require.NoError(t, err)
	assert.Equal(t, 7.0, n)
	_, err = NumberProperty{}.Validate("7")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestStringListValidate(t *testing.T) {
	got, err := StringListProperty{}.Validate([]any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = StringListProperty{}.Validate([]any{"a", 2})
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = StringListProperty{}.Validate("a")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestFileValidate(t *testing.T) {
	got, err := FileProperty{Entity: "docs"}.Validate(nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = ImageProperty{Entity: "branding"}.Validate("f-001")
	require.NoError(t, err)
	assert.Equal(t, "f-001", got)

	_, err = ImageProperty{}.Validate(42)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestPropertySchema(t *testing.T) {
	s := BoundedNumberProperty{Meta: Meta{Caption: "Size", Order: 5}, Min: 8, Max: 24, Step: 2}.Schema()
	assert.Equal(t, Schema{
		"fieldType": "number-mm",
		"caption":   "Size",
		"order":     5,
		"minValue":  8,
		"maxValue":  24,
		"step":      2,
	}, s)

	img := ImageProperty{Meta: Meta{Caption: "Logo"}, Entity: "branding", Cover: true, Height: 64, Width: 128}.Schema()
	assert.Equal(t, "image", img["fieldType"])
	assert.Equal(t, "branding", img["entity"])
	assert.Equal(t, true, img["cover"])
	assert.Equal(t, false, img["clearable"])
	assert.Equal(t, 64, img["height"])
	assert.Equal(t, 128, img["width"])

	choice := ChoiceProperty{Options: []Option{{Key: "a", Caption: "A"}}}.Schema()
	raw, err := json.Marshal(choice)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fieldType":"choice","caption":"","order":0,"options":[{"key":"a","caption":"A"}]}`, string(raw))

	assert.Equal(t, Schema{"fieldType": "file", "caption": "Doc", "order": 0, "entity": "docs"},
		FileProperty{Meta: Meta{Caption: "Doc"}, Entity: "docs"}.Schema())
	assert.Equal(t, true, BooleanProperty{Inline: true}.Schema()["inline"])
}

func TestSortSchemas(t *testing.T) {
	schemas := []Schema{
		{"order": 2, "caption": "b"},
		{"order": 1, "caption": "z"},
		{"order": 2, "caption": "a"},
	}
	sortSchemas(schemas)
	assert.Equal(t, "z", schemas[0]["caption"])
	assert.Equal(t, "a", schemas[1]["caption"])
	assert.Equal(t, "b", schemas[2]["caption"])
}
