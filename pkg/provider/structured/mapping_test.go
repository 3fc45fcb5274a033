package structured

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		unit string
		want *int
	}{
		{name: "wrapped number", in: map[string]any{"cm": 30.0}, unit: "cm", want: intp(30)},
		{name: "wrapped string", in: map[string]any{"mm": " 1200 "}, unit: "mm", want: intp(1200)},
		{name: "wrapped null", in: map[string]any{"cm": nil}, unit: "cm", want: nil},
		{name: "other unit only", in: map[string]any{"deg_f": 50.0}, unit: "deg_c", want: nil},
		{name: "bare number truncates", in: 12.7, unit: "cm", want: intp(12)},
		{name: "negative", in: map[string]any{"deg_c": -5.0}, unit: "deg_c", want: intp(-5)},
		{name: "negative truncates toward zero", in: map[string]any{"deg_c": -3.5}, unit: "deg_c", want: intp(-3)},
		{name: "garbage", in: "tall", unit: "cm", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unitValue(tt.in, tt.unit)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestNameValue(t *testing.T) {
	assert.Equal(t, "Ficus", *nameValue("Ficus"))
	assert.Equal(t, "Moraceae", *nameValue(map[string]any{"name": "Moraceae"}))
	assert.Nil(t, nameValue(map[string]any{"id": 4.0}))
	assert.Nil(t, nameValue(""))
}

func TestMapDetail_SpecificationsFallback(t *testing.T) {
	data := object{
		"main_species": map[string]any{
			"growth":         map[string]any{"light": 4.0},
			"specifications": map[string]any{"spread": map[string]any{"cm": 45.0}},
			"observations":   "Native to West Africa",
		},
	}

	f := mapDetail(data)
	require.NotNil(t, f.Details.SpreadCm)
	assert.Equal(t, 45, *f.Details.SpreadCm)
	assert.Equal(t, 4, *f.Details.Light)
	assert.Equal(t, "Native to West Africa", *f.Details.Description)
}

func TestPickHit(t *testing.T) {
	hits := []searchHit{
		{Slug: "a", ScientificName: "Ficus elastica"},
		{Slug: "b", ScientificName: "Ficus lyrata"},
	}

	h, ok := pickHit(hits, "FICUS LYRATA")
	require.True(t, ok)
	assert.Equal(t, "b", h.Slug)

	h, ok = pickHit(hits, "Ficus benjamina")
	require.True(t, ok)
	assert.Equal(t, "a", h.Slug)

	_, ok = pickHit(nil, "x")
	assert.False(t, ok)
}

func intp(v int) *int { return &v }
