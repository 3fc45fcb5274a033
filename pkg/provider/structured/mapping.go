package structured

import (
	"math"
	"strconv"
	"strings"

	"github.com/Sternrassler/plantcare/pkg/care"
)

// object is a decoded JSON object.
type object map[string]any

// obj returns the nested object at key, or nil.
func (o object) obj(key string) object {
	if o == nil {
		return nil
	}
	if m, ok := o[key].(map[string]any); ok {
		return object(m)
	}
	return nil
}

// lookup returns the first present value for key across sources.
func lookup(key string, sources ...object) any {
	for _, src := range sources {
		if src == nil {
			continue
		}
		if v, ok := src[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// toFloat coerces JSON numbers and numeric strings.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func intValue(v any) *int {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return care.IntPtr(int(math.Trunc(f)))
}

func floatValue(v any) *float64 {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return care.FloatPtr(f)
}

// unitValue reads a unit-wrapped value such as {"cm": 30} as an integer,
// truncated toward zero.
// Bare numbers are accepted too.
func unitValue(v any, unit string) *int {
	if m, ok := v.(map[string]any); ok {
		return intValue(m[unit])
	}
	return intValue(v)
}

func stringValue(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return care.StringPtr(strings.TrimSpace(s))
}

// nameValue reads a taxon given either as a string or as {"name": ...}.
func nameValue(v any) *string {
	if m, ok := v.(map[string]any); ok {
		return stringValue(m["name"])
	}
	return stringValue(v)
}

func months(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// mapDetail flattens a species detail document onto the care schema.
// Growth attributes come from main_species.growth (or the top-level growth
// when there is no main species), falling back to specifications.
func mapDetail(data object) care.Fetched {
	main := data.obj("main_species")
	if main == nil {
		main = data
	}
	growth := main.obj("growth")
	specs := main.obj("specifications")

	g := func(key string) any { return lookup(key, growth, specs) }

	d := care.Details{
		Description: stringValue(lookup("observations", data, main)),

		Sowing:              stringValue(g("sowing")),
		DaysToHarvest:       intValue(g("days_to_harvest")),
		RowSpacingCm:        unitValue(g("row_spacing"), "cm"),
		SpreadCm:            unitValue(g("spread"), "cm"),
		PHMinimum:           floatValue(g("ph_minimum")),
		PHMaximum:           floatValue(g("ph_maximum")),
		Light:               intValue(g("light")),
		AtmosphericHumidity: intValue(g("atmospheric_humidity")),

		GrowthMonths: months(g("growth_months")),
		BloomMonths:  months(g("bloom_months")),
		FruitMonths:  months(g("fruit_months")),

		MinimumPrecipitationMm:    unitValue(g("minimum_precipitation"), "mm"),
		MaximumPrecipitationMm:    unitValue(g("maximum_precipitation"), "mm"),
		MinimumTemperatureCelsius: unitValue(g("minimum_temperature"), "deg_c"),
		MaximumTemperatureCelsius: unitValue(g("maximum_temperature"), "deg_c"),

		SoilNutriments: intValue(g("soil_nutriments")),
		SoilSalinity:   intValue(g("soil_salinity")),
		SoilTexture:    intValue(g("soil_texture")),
		SoilHumidity:   intValue(g("soil_humidity")),
	}

	identity := care.Identity{
		CommonName: stringValue(lookup("common_name", data, main)),
		Family:     nameValue(lookup("family", data, main)),
		Genus:      nameValue(lookup("genus", data, main)),
	}

	return care.Fetched{Details: d, Identity: identity}
}
