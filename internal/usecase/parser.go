package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/farmlens/backend/internal/domain"
)

// Default confidences for readings whose backend reported none
const (
	DefaultOCRConfidence = 0.5
	DefaultLLMConfidence = 0.8
)

var (
	codeFenceRegex  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")
	weightUnitRegex = regexp.MustCompile(`(?i)(?:^|[^\d.,])` + numberPattern + `\s*(kilograms?|kgs?|grams?|g|pounds?|lbs?|ounces?|oz)\b`)
	numberRegex     = regexp.MustCompile(`(?:^|[^\d.,])` + numberPattern)
	netLineRegex    = regexp.MustCompile(`(?i)\bnet\b`)
)

// numberPattern matches a whole number; a match never starts inside digits
// or separators, and "1,234.5" style grouping is one number
const numberPattern = `(-?\d{1,3}(?:,\d{3})+(?:\.\d+)?|-?\d+(?:[.,]\d+)?)`

var unitAliases = map[string]string{
	"kg":        "kg",
	"kgs":       "kg",
	"kilogram":  "kg",
	"kilograms": "kg",
	"g":         "g",
	"gram":      "g",
	"grams":     "g",
	"lb":        "lb",
	"lbs":       "lb",
	"pound":     "lb",
	"pounds":    "lb",
	"oz":        "oz",
	"ounce":     "oz",
	"ounces":    "oz",
}

var kgPerUnit = map[string]float64{
	"kg": 1,
	"g":  0.001,
	"lb": 0.45359237,
	"oz": 0.028349523125,
}

// stripCodeFences returns the body of the first markdown code fence, or text unchanged
func stripCodeFences(text string) string {
	if m := codeFenceRegex.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return strings.TrimSpace(text)
}

// extractJSONObject returns the first balanced {...} object in text.
// Braces inside JSON strings are ignored.
func extractJSONObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchingBrace(text, start); end > 0 {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchingBrace returns the index of the brace closing text[start], or -1
func matchingBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// decodeReply extracts the JSON object from a model reply and decodes it into out
func decodeReply(text string, out interface{}) (map[string]json.RawMessage, error) {
	obj, ok := extractJSONObject(stripCodeFences(text))
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in reply", domain.ErrUnparseableReply)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnparseableReply, err)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(obj), out); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnparseableReply, err)
		}
	}
	return fields, nil
}

func requireKeys(fields map[string]json.RawMessage, keys ...string) error {
	for _, key := range keys {
		if _, ok := fields[key]; !ok {
			return fmt.Errorf("%w: missing required key %q", domain.ErrUnparseableReply, key)
		}
	}
	return nil
}

// ParseWeightReply turns a backend reply into a weight reading.
// JSON replies are read first; free text falls back to a "<number> <unit>" scan.
// A lone number with no unit is read in defaultUnit.
func ParseWeightReply(text, defaultUnit string, defaultConfidence float64) (*domain.WeightReading, error) {
	reading := &domain.WeightReading{Confidence: defaultConfidence}
	scanText := text

	if obj, ok := extractJSONObject(stripCodeFences(text)); ok {
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(obj), &fields); err == nil {
			found, err := readWeightFields(fields, reading)
			if err != nil {
				return nil, err
			}
			if found {
				return finishReading(reading, defaultUnit)
			}
			if reading.DisplayText != "" {
				scanText = reading.DisplayText
			}
		}
	}

	value, unit, ok := scanWeight(scanText)
	if !ok {
		return nil, fmt.Errorf("%w: no weight found in %q", domain.ErrUnparseableReply, truncate(text, 80))
	}
	reading.Value = value
	if reading.Unit == "" {
		reading.Unit = unit
	}
	if reading.DisplayText == "" {
		reading.DisplayText = strings.TrimSpace(scanText)
	}
	return finishReading(reading, defaultUnit)
}

// readWeightFields copies weight fields from a decoded JSON reply.
// found is false when the reply names no weight at all.
func readWeightFields(fields map[string]interface{}, reading *domain.WeightReading) (found bool, err error) {
	if readable, ok := fields["readable"].(bool); ok && !readable {
		return false, fmt.Errorf("%w: display not readable", domain.ErrUnparseableReply)
	}

	if unit, ok := fields["unit"].(string); ok {
		reading.Unit = unit
	}
	if c, ok := fields["confidence"].(float64); ok {
		if c > 1 && c <= 100 {
			c /= 100
		}
		reading.Confidence = c
	}
	for _, key := range []string{"display_text", "raw_text"} {
		if s, ok := fields[key].(string); ok && s != "" {
			reading.DisplayText = s
			break
		}
	}

	for _, key := range []string{"weight", "value"} {
		raw, present := fields[key]
		if !present {
			continue
		}
		switch v := raw.(type) {
		case nil:
			return false, fmt.Errorf("%w: %s is null", domain.ErrUnparseableReply, key)
		case float64:
			reading.Value = v
			return true, nil
		case string:
			value, unit, ok := scanWeight(v)
			if !ok {
				return false, fmt.Errorf("%w: %s %q is not a number", domain.ErrUnparseableReply, key, v)
			}
			reading.Value = value
			if reading.Unit == "" {
				reading.Unit = unit
			}
			return true, nil
		default:
			return false, fmt.Errorf("%w: %s has type %T", domain.ErrUnparseableReply, key, raw)
		}
	}
	return false, nil
}

// scanWeight finds "<number> <unit>" in text, or a lone number with an empty unit.
// A line marked NET wins over other readings such as TARE, then the first
// positive reading.
func scanWeight(text string) (float64, string, bool) {
	if value, unit, ok := scanUnitWeight(text); ok {
		return value, unit, true
	}

	var numbers, decimals []string
	for _, m := range numberRegex.FindAllStringSubmatch(text, -1) {
		numbers = append(numbers, m[1])
		if strings.ContainsAny(m[1], ".,") {
			decimals = append(decimals, m[1])
		}
	}

	var lone string
	switch {
	case len(decimals) == 1:
		lone = decimals[0]
	case len(numbers) == 1:
		lone = numbers[0]
	default:
		return 0, "", false
	}

	value, err := parseNumber(lone)
	if err != nil {
		return 0, "", false
	}
	return value, "", true
}

func scanUnitWeight(text string) (float64, string, bool) {
	type match struct {
		value float64
		unit  string
	}
	var first, positive *match

	for _, line := range strings.Split(text, "\n") {
		for _, m := range weightUnitRegex.FindAllStringSubmatch(line, -1) {
			value, err := parseNumber(m[1])
			if err != nil {
				continue
			}
			found := &match{value: value, unit: strings.ToLower(m[2])}
			if netLineRegex.MatchString(line) {
				return found.value, found.unit, true
			}
			if first == nil {
				first = found
			}
			if positive == nil && value > 0 {
				positive = found
			}
		}
	}

	switch {
	case positive != nil:
		return positive.value, positive.unit, true
	case first != nil:
		return first.value, first.unit, true
	}
	return 0, "", false
}

// parseNumber reads "," as the decimal separator only when it is the single
// separator; alongside "." or repeated it groups digits
func parseNumber(s string) (float64, error) {
	if strings.Contains(s, ".") || strings.Count(s, ",") > 1 {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}

func finishReading(reading *domain.WeightReading, defaultUnit string) (*domain.WeightReading, error) {
	unit := reading.Unit
	if unit == "" {
		unit = defaultUnit
	}
	normalized := normalizeUnit(unit)
	if normalized == "" {
		return nil, fmt.Errorf("%w: unknown unit %q", domain.ErrUnparseableReply, unit)
	}

	reading.Unit = normalized
	reading.WeightKg = toKg(reading.Value, normalized)
	reading.Confidence = clamp01(reading.Confidence)
	return reading, nil
}

// normalizeUnit maps unit spellings to kg, g, lb or oz. Unknown units return "".
func normalizeUnit(unit string) string {
	return unitAliases[strings.ToLower(strings.TrimSpace(strings.TrimSuffix(unit, ".")))]
}

func toKg(value float64, unit string) float64 {
	return value * kgPerUnit[unit]
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ParseCSVAnalytics parses an insights/forecast/recommendations reply
func ParseCSVAnalytics(text string) (*domain.CSVAnalytics, error) {
	var result domain.CSVAnalytics
	fields, err := decodeReply(text, &result)
	if err != nil {
		return nil, err
	}
	if err := requireKeys(fields, "insights", "forecast", "recommendations"); err != nil {
		return nil, err
	}
	return &result, nil
}

var validQualities = map[string]bool{
	domain.QualityExcellent: true,
	domain.QualityGood:      true,
	domain.QualityAverage:   true,
	domain.QualityFair:      true,
	domain.QualityPoor:      true,
}

// ParseImageAnalytics parses a crate/weight/quality reply.
// An unknown quality score is replaced with "average".
func ParseImageAnalytics(text string, logger *zap.Logger) (*domain.ImageAnalytics, error) {
	var result domain.ImageAnalytics
	fields, err := decodeReply(text, &result)
	if err != nil {
		return nil, err
	}
	if err := requireKeys(fields, "crate_count", "estimated_total_weight_kg", "quality_score", "confidence"); err != nil {
		return nil, err
	}

	quality := strings.ToLower(strings.TrimSpace(result.QualityScore))
	if !validQualities[quality] {
		if logger != nil {
			logger.Warn("invalid quality score, using average", zap.String("quality_score", result.QualityScore))
		}
		quality = domain.QualityAverage
	}
	result.QualityScore = quality
	result.Confidence = clamp01(result.Confidence)
	if result.CrateCount < 0 {
		result.CrateCount = 0
	}
	if result.PerCrateEstimateKg == 0 && result.CrateCount > 0 {
		result.PerCrateEstimateKg = roundTo(result.EstimatedTotalWeightKg/float64(result.CrateCount), 2)
	}
	return &result, nil
}

// ParseClassification parses a produce classification reply
func ParseClassification(text string) (*domain.ProduceClassification, error) {
	var result domain.ProduceClassification
	if _, err := decodeReply(text, &result); err != nil {
		return nil, err
	}

	result.ProduceType = strings.ToLower(strings.TrimSpace(result.ProduceType))
	if result.ProduceType == "" {
		return nil, fmt.Errorf("%w: missing produce_type", domain.ErrUnparseableReply)
	}
	result.Confidence = clamp01(result.Confidence)
	if result.Objects == nil {
		result.Objects = []domain.DetectedObject{}
	}
	return &result, nil
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
