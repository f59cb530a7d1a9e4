package usecase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmlens/backend/internal/domain"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"surrounded by prose", `Here you go: {"a":{"b":2}} hope that helps`, `{"a":{"b":2}}`, true},
		{"braces in strings", `{"text":"a } b {"}`, `{"text":"a } b {"}`, true},
		{"escaped quote", `{"text":"say \"}\""}`, `{"text":"say \"}\""}`, true},
		{"skips invalid first object", `{not json} {"ok":true}`, `{"ok":true}`, true},
		{"no object", "12.5 kg", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONObject(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, "no fences", stripCodeFences("  no fences \n"))
}

func TestParseWeightReply(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValue float64
		wantUnit  string
		wantKg    float64
		wantConf  float64
		wantErrIs error
	}{
		{
			name:      "json number",
			input:     `{"weight": 12.5, "unit": "kg", "confidence": 0.95}`,
			wantValue: 12.5, wantUnit: "kg", wantKg: 12.5, wantConf: 0.95,
		},
		{
			name:      "json string with unit",
			input:     "```json\n{\"weight\": \"3.2 lbs\"}\n```",
			wantValue: 3.2, wantUnit: "lb", wantKg: 3.2 * 0.45359237, wantConf: 0.8,
		},
		{
			name:      "json value key and grams",
			input:     `{"value": 500, "unit": "grams", "confidence": 90}`,
			wantValue: 500, wantUnit: "g", wantKg: 0.5, wantConf: 0.9,
		},
		{
			name:      "json without weight falls back to display text",
			input:     `{"display_text": "NET 4.75 kg", "confidence": 0.7}`,
			wantValue: 4.75, wantUnit: "kg", wantKg: 4.75, wantConf: 0.7,
		},
		{
			name:      "free text with unit",
			input:     "The scale shows 8.40 kilograms.",
			wantValue: 8.4, wantUnit: "kg", wantKg: 8.4, wantConf: 0.8,
		},
		{
			name:      "comma decimal",
			input:     "12,5 kg",
			wantValue: 12.5, wantUnit: "kg", wantKg: 12.5, wantConf: 0.8,
		},
		{
			name:      "thousands separator",
			input:     "1,234.5 g",
			wantValue: 1234.5, wantUnit: "g", wantKg: 1.2345, wantConf: 0.8,
		},
		{
			name:      "thousands separator on net line",
			input:     "NET 1,250.0 g",
			wantValue: 1250, wantUnit: "g", wantKg: 1.25, wantConf: 0.8,
		},
		{
			name:      "net line wins over tare",
			input:     "TARE -0.20 kg\nNET 2.50 kg",
			wantValue: 2.5, wantUnit: "kg", wantKg: 2.5, wantConf: 0.8,
		},
		{
			name:      "first positive reading",
			input:     "-0.20 kg\n3.10 kg",
			wantValue: 3.1, wantUnit: "kg", wantKg: 3.1, wantConf: 0.8,
		},
		{
			name:      "lone grouped number uses default unit",
			input:     "1,234.5",
			wantValue: 1234.5, wantUnit: "kg", wantKg: 1234.5, wantConf: 0.8,
		},
		{
			name:      "ounces",
			input:     "16 oz",
			wantValue: 16, wantUnit: "oz", wantKg: 16 * 0.028349523125, wantConf: 0.8,
		},
		{
			name:      "lone decimal uses default unit",
			input:     "TARE\n12.45\nZERO 1",
			wantValue: 12.45, wantUnit: "kg", wantKg: 12.45, wantConf: 0.8,
		},
		{
			name:      "readable false",
			input:     `{"readable": false, "weight": null}`,
			wantErrIs: domain.ErrUnparseableReply,
		},
		{
			name:      "null weight",
			input:     `{"weight": null, "unit": "kg"}`,
			wantErrIs: domain.ErrUnparseableReply,
		},
		{
			name:      "no number",
			input:     "I cannot see a scale in this image",
			wantErrIs: domain.ErrUnparseableReply,
		},
		{
			name:      "ambiguous numbers",
			input:     "1.25 and 3.50",
			wantErrIs: domain.ErrUnparseableReply,
		},
		{
			name:      "unknown unit",
			input:     `{"weight": 3, "unit": "stone"}`,
			wantErrIs: domain.ErrUnparseableReply,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reading, err := ParseWeightReply(tt.input, "kg", DefaultLLMConfidence)

			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs), "got %v", err)
				assert.Nil(t, reading)
				return
			}

			require.NoError(t, err)
			assert.InDelta(t, tt.wantValue, reading.Value, 1e-9)
			assert.Equal(t, tt.wantUnit, reading.Unit)
			assert.InDelta(t, tt.wantKg, reading.WeightKg, 1e-9)
			assert.InDelta(t, tt.wantConf, reading.Confidence, 1e-9)
		})
	}
}

func TestParseWeightReply_OCRDefaults(t *testing.T) {
	reading, err := ParseWeightReply("3.20\nlb", "kg", DefaultOCRConfidence)

	require.NoError(t, err)
	assert.Equal(t, "lb", reading.Unit)
	assert.Equal(t, 0.5, reading.Confidence)
}

func TestNormalizeUnit(t *testing.T) {
	assert.Equal(t, "kg", normalizeUnit("KGS"))
	assert.Equal(t, "kg", normalizeUnit(" kilogram "))
	assert.Equal(t, "lb", normalizeUnit("lbs."))
	assert.Equal(t, "oz", normalizeUnit("ounces"))
	assert.Equal(t, "g", normalizeUnit("g"))
	assert.Equal(t, "", normalizeUnit("stone"))
}

func TestParseCSVAnalytics(t *testing.T) {
	reply := `{
		"insights": [{"title": "Tomato surplus", "explanation": "Supply exceeds sales."}],
		"forecast": [{"week_start": "2024-06-03", "crop": "tomato", "kg": 120}],
		"recommendations": ["Lower tomato prices"]
	}`

	result, err := ParseCSVAnalytics(reply)

	require.NoError(t, err)
	require.Len(t, result.Insights, 1)
	assert.Equal(t, "Tomato surplus", result.Insights[0].Title)
	assert.Equal(t, 120.0, result.Forecast[0].Kg)
	assert.Equal(t, []string{"Lower tomato prices"}, result.Recommendations)
}

func TestParseCSVAnalytics_MissingKey(t *testing.T) {
	_, err := ParseCSVAnalytics(`{"insights": [], "forecast": []}`)

	assert.True(t, errors.Is(err, domain.ErrUnparseableReply))
	assert.Contains(t, err.Error(), "recommendations")
}

func TestParseImageAnalytics(t *testing.T) {
	reply := `{"crate_count": 4, "estimated_total_weight_kg": 60, "quality_score": "Good", "confidence": 0.85, "notes": "ripe"}`

	result, err := ParseImageAnalytics(reply, nil)

	require.NoError(t, err)
	assert.Equal(t, 4, result.CrateCount)
	assert.Equal(t, domain.QualityGood, result.QualityScore)
	assert.Equal(t, 15.0, result.PerCrateEstimateKg)
	assert.Equal(t, 0.85, result.Confidence)
}

func TestParseImageAnalytics_InvalidQualityAndConfidence(t *testing.T) {
	reply := `{"crate_count": 1, "estimated_total_weight_kg": 10, "per_crate_estimate_kg": 10, "quality_score": "superb", "confidence": 7}`

	result, err := ParseImageAnalytics(reply, nil)

	require.NoError(t, err)
	assert.Equal(t, domain.QualityAverage, result.QualityScore)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestParseImageAnalytics_MissingKey(t *testing.T) {
	_, err := ParseImageAnalytics(`{"crate_count": 1}`, nil)

	assert.True(t, errors.Is(err, domain.ErrUnparseableReply))
}

func TestParseClassification(t *testing.T) {
	reply := `{"produce_type": "Tomato", "variety": "roma", "confidence": 0.9, "objects": [{"class": "tomato", "confidence": 0.9, "count": 12}]}`

	result, err := ParseClassification(reply)

	require.NoError(t, err)
	assert.Equal(t, "tomato", result.ProduceType)
	assert.Equal(t, "roma", result.Variety)
	require.Len(t, result.Objects, 1)
	assert.Equal(t, 12, result.Objects[0].Count)
}

func TestParseClassification_MissingProduceType(t *testing.T) {
	_, err := ParseClassification(`{"variety": "roma"}`)

	assert.True(t, errors.Is(err, domain.ErrUnparseableReply))
}
