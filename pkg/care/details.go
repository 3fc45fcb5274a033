package care

// MinUsefulTextLength is the length a text field must exceed to count as
// useful content.
const MinUsefulTextLength = 10

// Details is the flat set of care attributes returned to callers and
// persisted on a Record. Every field is nullable; a nil pointer serializes as
// JSON null so the key is always present.
type Details struct {
	// Shared short description (structured observations or generated text).
	Description *string `json:"description" gorm:"column:description;type:text"`

	// Structured attributes
	Sowing                    *string  `json:"sowing" gorm:"column:sowing"`
	DaysToHarvest             *int     `json:"days_to_harvest" gorm:"column:days_to_harvest"`
	RowSpacingCm              *int     `json:"row_spacing_cm" gorm:"column:row_spacing_cm"`
	SpreadCm                  *int     `json:"spread_cm" gorm:"column:spread_cm"`
	PHMinimum                 *float64 `json:"ph_minimum" gorm:"column:ph_minimum;type:decimal(3,1)"`
	PHMaximum                 *float64 `json:"ph_maximum" gorm:"column:ph_maximum;type:decimal(3,1)"`
	Light                     *int     `json:"light" gorm:"column:light"`
	AtmosphericHumidity       *int     `json:"atmospheric_humidity" gorm:"column:atmospheric_humidity"`
	GrowthMonths              []string `json:"growth_months" gorm:"column:growth_months;serializer:json;type:text"`
	BloomMonths               []string `json:"bloom_months" gorm:"column:bloom_months;serializer:json;type:text"`
	FruitMonths               []string `json:"fruit_months" gorm:"column:fruit_months;serializer:json;type:text"`
	MinimumPrecipitationMm    *int     `json:"minimum_precipitation_mm" gorm:"column:minimum_precipitation_mm"`
	MaximumPrecipitationMm    *int     `json:"maximum_precipitation_mm" gorm:"column:maximum_precipitation_mm"`
	MinimumTemperatureCelsius *int     `json:"minimum_temperature_celsius" gorm:"column:minimum_temperature_celsius"`
	MaximumTemperatureCelsius *int     `json:"maximum_temperature_celsius" gorm:"column:maximum_temperature_celsius"`
	SoilNutriments            *int     `json:"soil_nutriments" gorm:"column:soil_nutriments"`
	SoilSalinity              *int     `json:"soil_salinity" gorm:"column:soil_salinity"`
	SoilTexture               *int     `json:"soil_texture" gorm:"column:soil_texture"`
	SoilHumidity              *int     `json:"soil_humidity" gorm:"column:soil_humidity"`

	// Generated guidance
	WateringGuide    *string `json:"watering_guide" gorm:"column:watering_guide;type:text"`
	SunlightGuide    *string `json:"sunlight_guide" gorm:"column:sunlight_guide;type:text"`
	SoilGuide        *string `json:"soil_guide" gorm:"column:soil_guide;type:text"`
	TemperatureGuide *string `json:"temperature_guide" gorm:"column:temperature_guide;type:text"`
	CareSummary      *string `json:"care_summary" gorm:"column:care_summary;type:text"`
	CareTips         *string `json:"care_tips" gorm:"column:care_tips;type:text"`
}

// GenerativeFields lists the keys the generative provider is asked to fill.
var GenerativeFields = []string{
	"description",
	"watering_guide",
	"sunlight_guide",
	"soil_guide",
	"temperature_guide",
	"care_summary",
	"care_tips",
}

// TextFields returns the free-text attributes keyed by their JSON name.
func (d *Details) TextFields() map[string]*string {
	return map[string]*string{
		"description":       d.Description,
		"care_tips":         d.CareTips,
		"watering_guide":    d.WateringGuide,
		"sunlight_guide":    d.SunlightGuide,
		"soil_guide":        d.SoilGuide,
		"temperature_guide": d.TemperatureGuide,
		"care_summary":      d.CareSummary,
	}
}

// textTargets maps generative keys to the fields they populate.
func (d *Details) textTargets() map[string]**string {
	return map[string]**string{
		"description":       &d.Description,
		"care_tips":         &d.CareTips,
		"watering_guide":    &d.WateringGuide,
		"sunlight_guide":    &d.SunlightGuide,
		"soil_guide":        &d.SoilGuide,
		"temperature_guide": &d.TemperatureGuide,
		"care_summary":      &d.CareSummary,
	}
}

// SetText assigns a generative text field by key. Unknown keys are ignored
// and reported as false.
func (d *Details) SetText(key string, value *string) bool {
	target, ok := d.textTargets()[key]
	if !ok {
		return false
	}
	*target = value
	return true
}

// hasNumeric reports whether any numeric attribute is present.
func (d *Details) hasNumeric() bool {
	ints := []*int{
		d.DaysToHarvest, d.RowSpacingCm, d.SpreadCm,
		d.Light, d.AtmosphericHumidity,
		d.MinimumPrecipitationMm, d.MaximumPrecipitationMm,
		d.MinimumTemperatureCelsius, d.MaximumTemperatureCelsius,
		d.SoilNutriments, d.SoilSalinity, d.SoilTexture, d.SoilHumidity,
	}
	for _, v := range ints {
		if v != nil {
			return true
		}
	}
	return d.PHMinimum != nil || d.PHMaximum != nil
}

// IsUseful reports whether the details carry enough content to be accepted
// from a provider: a text field longer than MinUsefulTextLength or any
// present numeric attribute.
func (d *Details) IsUseful() bool {
	if d == nil {
		return false
	}
	for _, v := range d.TextFields() {
		if v != nil && len(*v) > MinUsefulTextLength {
			return true
		}
	}
	return d.hasNumeric()
}

// Clone returns a deep copy of d.
func (d *Details) Clone() *Details {
	if d == nil {
		return nil
	}
	c := *d
	c.GrowthMonths = cloneStrings(d.GrowthMonths)
	c.BloomMonths = cloneStrings(d.BloomMonths)
	c.FruitMonths = cloneStrings(d.FruitMonths)
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Identity holds the taxonomic fields of a species, all optional.
type Identity struct {
	CommonName *string `json:"common_name,omitempty"`
	Family     *string `json:"family,omitempty"`
	Genus      *string `json:"genus,omitempty"`
}

// Fetched is what a provider returns on success.
type Fetched struct {
	Details  Details
	Identity Identity
}

// Query describes a single provider lookup.
type Query struct {
	ScientificName string
	CommonName     string
	Family         string
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 {
	return &v
}
