package domain

import "time"

// Quality scores accepted from image analysis
const (
	QualityExcellent = "excellent"
	QualityGood      = "good"
	QualityAverage   = "average"
	QualityFair      = "fair"
	QualityPoor      = "poor"
)

// ImageAnalytics is the crate/weight/quality assessment of a produce photo
type ImageAnalytics struct {
	CrateCount             int     `json:"crate_count"`
	EstimatedTotalWeightKg float64 `json:"estimated_total_weight_kg"`
	PerCrateEstimateKg     float64 `json:"per_crate_estimate_kg"`
	QualityScore           string  `json:"quality_score"`
	Confidence             float64 `json:"confidence"`
	Notes                  string  `json:"notes,omitempty"`
}

// ListingSuggestion is a marketplace listing derived from image analytics
type ListingSuggestion struct {
	QualityGrade        string  `json:"quality_grade"`
	EstimatedWeightKg   float64 `json:"estimated_weight_kg"`
	CrateCount          int     `json:"crate_count"`
	SuggestedPricePerKg float64 `json:"suggested_price_per_kg"`
	TotalEstimatedValue float64 `json:"total_estimated_value"`
	Confidence          float64 `json:"confidence"`
}

// Insight is a single observation from tabular analytics
type Insight struct {
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
}

// ForecastPoint is a forecast supply value for one crop and week
type ForecastPoint struct {
	WeekStart string  `json:"week_start"`
	Crop      string  `json:"crop"`
	Kg        float64 `json:"kg"`
}

// CSVAnalytics is the structured result of analyzing sales data
type CSVAnalytics struct {
	Insights        []Insight       `json:"insights"`
	Forecast        []ForecastPoint `json:"forecast"`
	Recommendations []string        `json:"recommendations"`
}

// WeeklyRecord is one week of supply/sales data for one crop
type WeeklyRecord struct {
	WeekStart           string  `json:"week_start"` // YYYY-MM-DD
	Crop                string  `json:"crop"`
	TotalSuppliedKg     float64 `json:"total_supplied_kg"`
	TotalSoldKg         float64 `json:"total_sold_kg"`
	AvgDeliveryDelayMin float64 `json:"avg_delivery_delay_min"`
}

// FarmerData holds the weekly records stored for a farmer
type FarmerData struct {
	FarmerID   string         `json:"farmer_id"`
	FarmerName string         `json:"farmer_name"`
	Records    []WeeklyRecord `json:"data"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// FarmerSummary is the list view of a stored farmer
type FarmerSummary struct {
	FarmerID   string    `json:"farmer_id"`
	FarmerName string    `json:"farmer_name"`
	Records    int       `json:"records"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ChartData is chart-ready series data for the dashboard
type ChartData struct {
	ChartType string           `json:"chart_type"` // line, bar, pie
	Title     string           `json:"title"`
	Data      []map[string]any `json:"data"`
}

// DashboardMetrics are the headline numbers shown on the farmer dashboard
type DashboardMetrics struct {
	TotalSupplyKg       float64 `json:"total_supply_kg"`
	TotalSoldKg         float64 `json:"total_sold_kg"`
	SalesRatePct        float64 `json:"sales_rate_pct"`
	AvgDeliveryDelayMin float64 `json:"avg_delivery_delay_min"`
	Records             int     `json:"records"`
}

// FarmerAnalytics is the combined AI analytics and chart payload for a farmer
type FarmerAnalytics struct {
	FarmerID        string               `json:"farmer_id"`
	FarmerName      string               `json:"farmer_name"`
	Insights        []Insight            `json:"insights"`
	Forecast        []ForecastPoint      `json:"forecast"`
	Recommendations []string             `json:"recommendations"`
	Charts          map[string]ChartData `json:"charts"`
	Source          string               `json:"source"`
}

// Dashboard is the non-AI dashboard view for a farmer
type Dashboard struct {
	FarmerID   string               `json:"farmer_id"`
	FarmerName string               `json:"farmer_name"`
	Metrics    DashboardMetrics     `json:"metrics"`
	Charts     map[string]ChartData `json:"charts"`
}

// BulkUploadResult reports the outcome for one farmer in a bulk upload
type BulkUploadResult struct {
	FarmerID string `json:"farmer_id"`
	Accepted bool   `json:"accepted"`
	Records  int    `json:"records"`
	Error    string `json:"error,omitempty"`
}

// AnalyticsStatus reports which model backs the analytics endpoints
type AnalyticsStatus struct {
	Backend   string `json:"backend"`
	Available bool   `json:"available"`
	Message   string `json:"message"`
}
