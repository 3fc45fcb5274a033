package generative

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/plantcare/pkg/care"
)

// fieldHints describes what each requested field should contain.
var fieldHints = map[string]string{
	"description":       "2-3 sentence description of the plant, its appearance, and origin",
	"watering_guide":    "Describe watering needs in detail (frequency, amount, seasonal adjustments, signs of over/under watering)",
	"sunlight_guide":    "Describe light requirements (full sun, partial shade, indoor lighting tips, ideal placement)",
	"soil_guide":        "Describe ideal soil conditions (type, pH, drainage, amendments, potting mix recommendations)",
	"temperature_guide": "Describe temperature tolerance (ideal ranges, frost sensitivity, humidity preferences, seasonal care)",
	"care_summary":      "A brief 1-2 sentence summary of the most important care considerations for this plant",
	"care_tips":         "3-4 practical care tips for keeping this plant healthy",
}

// plantLabel renders "Scientific (Common) from the Family family".
func plantLabel(q care.Query) string {
	name := strings.TrimSpace(q.ScientificName)
	if common := strings.TrimSpace(q.CommonName); common != "" {
		name = fmt.Sprintf("%s (%s)", name, common)
	}
	if family := strings.TrimSpace(q.Family); family != "" {
		name += fmt.Sprintf(" from the %s family", family)
	}
	return name
}

// BuildPrompt returns the generation prompt for q.
func BuildPrompt(q care.Query) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a botanical expert. Provide practical care guidance for the plant: %s.\n\n", plantLabel(q))
	b.WriteString("Return ONLY a valid JSON object with descriptive text fields. ")
	b.WriteString("Do not include any markdown formatting, backticks, or explanations. Just the raw JSON.\n\n")

	b.WriteString("{\n")
	for i, key := range care.GenerativeFields {
		sep := ","
		if i == len(care.GenerativeFields)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "    %q: %q%s\n", key, fieldHints[key], sep)
	}
	b.WriteString("}\n\n")

	b.WriteString("Make each field informative and practical for a home gardener. ")
	b.WriteString("Always provide useful content even for less common plants.")

	return b.String()
}
