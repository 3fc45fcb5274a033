package structured

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/plantcare/pkg/care"
	"github.com/Sternrassler/plantcare/pkg/client"
)

const testBase = "https://trefle.test/api/v1"

// setupProvider returns a provider whose transport is intercepted by httpmock.
func setupProvider(t *testing.T, token string) *Provider {
	t.Helper()

	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)

	cfg := DefaultConfig()
	cfg.Token = token
	cfg.BaseURL = testBase
	cfg.HTTPClient = hc

	p, err := New(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func registerSearch(status int, body string) {
	httpmock.RegisterResponder("GET", testBase+"/plants/search",
		httpmock.NewStringResponder(status, body))
}

func registerDetail(slug string, status int, body string) {
	httpmock.RegisterResponder("GET", testBase+"/plants/"+slug,
		httpmock.NewStringResponder(status, body))
}

const searchBody = `{
  "data": [
    {"id": 1, "slug": "hibiscus-syriacus", "scientific_name": "Hibiscus syriacus", "common_name": "Rose of Sharon"},
    {"id": 2, "slug": "hibiscus-rosa-sinensis", "scientific_name": "Hibiscus rosa-sinensis", "common_name": "Chinese hibiscus"}
  ]
}`

const detailBody = `{
  "data": {
    "id": 2,
    "slug": "hibiscus-rosa-sinensis",
    "scientific_name": "Hibiscus rosa-sinensis",
    "common_name": "Chinese hibiscus",
    "observations": "Widely cultivated in tropical and subtropical regions",
    "genus": {"id": 11, "name": "Hibiscus"},
    "family": {"id": 7, "name": "Malvaceae"},
    "main_species": {
      "growth": {
        "sowing": "Sow seeds in warm, moist soil",
        "days_to_harvest": 90.0,
        "row_spacing": {"cm": 60},
        "spread": {"cm": "150"},
        "ph_minimum": 6.0,
        "ph_maximum": 7.5,
        "light": 8,
        "atmospheric_humidity": 6,
        "growth_months": ["apr", "may", "jun"],
        "bloom_months": ["jun", "jul"],
        "fruit_months": null,
        "minimum_precipitation": {"mm": 800},
        "maximum_precipitation": {"mm": null},
        "minimum_temperature": {"deg_c": 10.4, "deg_f": 50.7},
        "maximum_temperature": {"deg_c": 35},
        "soil_nutriments": 6,
        "soil_salinity": null,
        "soil_texture": 5,
        "soil_humidity": 7
      },
      "specifications": {"growth_habit": "Shrub"}
    }
  }
}`

func TestFetch_Success(t *testing.T) {
	p := setupProvider(t, "tok")
	registerSearch(http.StatusOK, searchBody)
	registerDetail("hibiscus-rosa-sinensis", http.StatusOK, detailBody)

	fetched, err := p.Fetch(context.Background(), care.Query{ScientificName: "hibiscus ROSA-sinensis"})
	require.NoError(t, err)

	d := fetched.Details
	require.NotNil(t, d.Description)
	assert.Equal(t, "Widely cultivated in tropical and subtropical regions", *d.Description)
	assert.Equal(t, "Sow seeds in warm, moist soil", *d.Sowing)
	assert.Equal(t, 90, *d.DaysToHarvest)
	assert.Equal(t, 60, *d.RowSpacingCm)
	assert.Equal(t, 150, *d.SpreadCm)
	assert.InDelta(t, 6.0, *d.PHMinimum, 0.001)
	assert.InDelta(t, 7.5, *d.PHMaximum, 0.001)
	assert.Equal(t, 8, *d.Light)
	assert.Equal(t, []string{"apr", "may", "jun"}, d.GrowthMonths)
	assert.Equal(t, []string{"jun", "jul"}, d.BloomMonths)
	assert.Nil(t, d.FruitMonths)
	assert.Equal(t, 800, *d.MinimumPrecipitationMm)
	assert.Nil(t, d.MaximumPrecipitationMm)
	assert.Equal(t, 10, *d.MinimumTemperatureCelsius)
	assert.Equal(t, 35, *d.MaximumTemperatureCelsius)
	assert.Nil(t, d.SoilSalinity)
	assert.Equal(t, 7, *d.SoilHumidity)
	assert.Nil(t, d.WateringGuide)
	assert.True(t, d.IsUseful())

	require.NotNil(t, fetched.Identity.Genus)
	assert.Equal(t, "Hibiscus", *fetched.Identity.Genus)
	assert.Equal(t, "Malvaceae", *fetched.Identity.Family)
	assert.Equal(t, "Chinese hibiscus", *fetched.Identity.CommonName)

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["GET "+testBase+"/plants/search"])
	assert.Equal(t, 1, info["GET "+testBase+"/plants/hibiscus-rosa-sinensis"])
}

func TestFetch_FallsBackToFirstHit(t *testing.T) {
	p := setupProvider(t, "tok")
	registerSearch(http.StatusOK, searchBody)
	registerDetail("hibiscus-syriacus", http.StatusOK, `{"data": {"family": "Malvaceae", "growth": {"ph_minimum": 5.5}}}`)

	fetched, err := p.Fetch(context.Background(), care.Query{ScientificName: "Hibiscus"})
	require.NoError(t, err)

	require.NotNil(t, fetched.Details.PHMinimum, "top-level growth should be used without main_species")
	assert.InDelta(t, 5.5, *fetched.Details.PHMinimum, 0.001)
	assert.Equal(t, "Malvaceae", *fetched.Identity.Family)
	assert.Equal(t, "Rose of Sharon", *fetched.Identity.CommonName, "search hit common name backfills identity")
}

func TestFetch_SendsToken(t *testing.T) {
	p := setupProvider(t, "secret-token")
	httpmock.RegisterResponderWithQuery("GET", testBase+"/plants/search",
		map[string]string{"q": "Ficus lyrata", "token": "secret-token"},
		httpmock.NewStringResponder(http.StatusOK, `{"data": []}`))

	_, err := p.Fetch(context.Background(), care.Query{ScientificName: " Ficus lyrata "})
	require.ErrorIs(t, err, client.ErrNoData)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetch_NoData(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
	}{
		{
			name:  "empty search",
			setup: func() { registerSearch(http.StatusOK, `{"data": []}`) },
		},
		{
			name:  "missing slug",
			setup: func() { registerSearch(http.StatusOK, `{"data": [{"id": 3, "scientific_name": "Unknown plantus"}]}`) },
		},
		{
			name: "detail fetch fails",
			setup: func() {
				registerSearch(http.StatusOK, searchBody)
				registerDetail("hibiscus-syriacus", http.StatusNotFound, `{"error": true}`)
			},
		},
		{
			name: "empty detail",
			setup: func() {
				registerSearch(http.StatusOK, searchBody)
				registerDetail("hibiscus-syriacus", http.StatusOK, `{"data": {}}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := setupProvider(t, "tok")
			tt.setup()

			fetched, err := p.Fetch(context.Background(), care.Query{ScientificName: "Unknown plantus"})
			require.ErrorIs(t, err, client.ErrNoData)
			assert.Nil(t, fetched)
		})
	}
}

func TestFetch_SearchErrorsNotRetried(t *testing.T) {
	p := setupProvider(t, "tok")
	registerSearch(http.StatusServiceUnavailable, `{"error": "maintenance"}`)

	_, err := p.Fetch(context.Background(), care.Query{ScientificName: "Ficus lyrata"})
	require.Error(t, err)
	assert.Equal(t, client.ErrorClassServer, client.ClassOf(err))
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "structured provider makes a single attempt by default")
}

func TestFetch_MissingToken(t *testing.T) {
	p := setupProvider(t, "")

	_, err := p.Fetch(context.Background(), care.Query{ScientificName: "Ficus lyrata"})
	require.ErrorIs(t, err, client.ErrNotConfigured)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestFetch_MalformedSearch(t *testing.T) {
	p := setupProvider(t, "tok")
	registerSearch(http.StatusOK, `<html>oops</html>`)

	_, err := p.Fetch(context.Background(), care.Query{ScientificName: "Ficus lyrata"})
	require.ErrorIs(t, err, client.ErrMalformedResponse)
}
