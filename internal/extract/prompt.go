// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"text/template"
)

const systemPrompt = `You are an expert materials scientist extracting mechanical property data from academic papers.
Report only values the text states explicitly, with the unit as written. Prefer values reported in tables.
Respond with a single JSON object and no other text.`

// userPromptTmpl carries the record schema, few-shot examples and the
// excerpt. The examples fix the output shape across providers.
var userPromptTmpl = template.Must(template.New("extraction").Parse(`Extract every mechanical property measurement from the paper excerpt below.

Return a JSON object with a "properties" array. Each element has these fields:
- property_name: string (as written, e.g. "Yield Strength", "UTS", "Vickers hardness")
- value: number or string as written (e.g. 250, "1,250", "250 ± 5")
- unit: string (e.g. "MPa", "GPa", "HV", "%")
- material: string (material or alloy designation)
- condition: string or null (processing condition or treatment)
- temperature: number, string or null (test temperature; "room temperature" if stated so)
- temperature_unit: string or null ("°C", "K", "°F")
- strain_rate: string or null
- confidence_notes: string or null (anything uncertain about this entry)
- additional_info: object (other reported parameters)

If the excerpt reports no mechanical properties, return {"properties": []}.

Example excerpt:
"Table 2. Tensile properties of AZ31 alloy after ECAP. As-rolled: YS 182 MPa, UTS 265 MPa, elongation 14.5%. Tests were run at room temperature."

Example response:
{"properties": [
  {"property_name": "YS", "value": 182, "unit": "MPa", "material": "AZ31", "condition": "as-rolled", "temperature": "room temperature", "temperature_unit": null, "strain_rate": null, "confidence_notes": null, "additional_info": {}},
  {"property_name": "UTS", "value": 265, "unit": "MPa", "material": "AZ31", "condition": "as-rolled", "temperature": "room temperature", "temperature_unit": null, "strain_rate": null, "confidence_notes": null, "additional_info": {}},
  {"property_name": "Elongation", "value": 14.5, "unit": "%", "material": "AZ31", "condition": "as-rolled", "temperature": "room temperature", "temperature_unit": null, "strain_rate": null, "confidence_notes": null, "additional_info": {}}
]}

Example excerpt:
"The hardness of the Ti-6Al-4V samples annealed at 800 °C was 340 HV, measured at 400 °C."

Example response:
{"properties": [
  {"property_name": "Hardness", "value": 340, "unit": "HV", "material": "Ti-6Al-4V", "condition": "annealed at 800 °C", "temperature": 400, "temperature_unit": "°C", "strain_rate": null, "confidence_notes": null, "additional_info": {}}
]}
{{if .Title}}
Paper title: {{.Title}}
{{end}}
Paper excerpt{{if .Truncated}} (first {{.Chars}} characters){{end}}:
{{.Excerpt}}
`))

type promptData struct {
	Title     string
	Excerpt   string
	Truncated bool
	Chars     int
}

// renderPrompt executes the extraction prompt template.
func renderPrompt(d promptData) (string, error) {
	var buf bytes.Buffer
	if err := userPromptTmpl.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}
