package usecase

import (
	"context"
	"fmt"
	"sort"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/farmlens/backend/internal/domain"
)

// DefaultAnalyticsWeeks is the number of most recent weeks analyzed when none is given
const DefaultAnalyticsWeeks = 12

const unknownFarmerName = "Unknown Farmer"

var recordCSVHeader = []string{"week_start", "crop", "total_supplied_kg", "total_sold_kg", "avg_delivery_delay_min"}

// CSVAnalyzer produces AI analytics from CSV text
type CSVAnalyzer interface {
	AnalyzeCSV(ctx context.Context, csvData, crop string) (*domain.CSVAnalytics, error)
	Status() domain.AnalyticsStatus
}

// FarmerService stores weekly farmer data and builds dashboards from it
type FarmerService struct {
	repo     domain.FarmerRepository
	analyzer CSVAnalyzer
	logger   *zap.Logger
	now      func() time.Time
}

// NewFarmerService creates a farmer data service. analyzer may be nil, in
// which case GenerateAnalytics returns ErrBackendUnavailable.
func NewFarmerService(repo domain.FarmerRepository, analyzer CSVAnalyzer, logger *zap.Logger) *FarmerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FarmerService{
		repo:     repo,
		analyzer: analyzer,
		logger:   logger.Named("farmer"),
		now:      time.Now,
	}
}

// SendData validates and stores a farmer's weekly records, replacing earlier data
func (s *FarmerService) SendData(ctx context.Context, data *domain.FarmerData) (*domain.FarmerData, error) {
	if err := normalizeFarmerData(data); err != nil {
		return nil, err
	}
	data.UpdatedAt = s.now().UTC()

	if err := s.repo.Upsert(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to store farmer data: %w", err)
	}

	s.logger.Info("farmer data stored", zap.String("farmer_id", data.FarmerID), zap.Int("records", len(data.Records)))
	return data, nil
}

// BulkUpload stores each entry independently and reports per-farmer results
func (s *FarmerService) BulkUpload(ctx context.Context, entries []domain.FarmerData) ([]domain.BulkUploadResult, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no farmer data provided", domain.ErrInvalidRequest)
	}

	results := make([]domain.BulkUploadResult, 0, len(entries))
	for i := range entries {
		entry := entries[i]
		entry.Records = slices.Clone(entry.Records)
		result := domain.BulkUploadResult{FarmerID: entry.FarmerID, Records: len(entry.Records)}

		if _, err := s.SendData(ctx, &entry); err != nil {
			result.Error = err.Error()
		} else {
			result.Accepted = true
		}
		results = append(results, result)
	}
	return results, nil
}

// normalizeFarmerData checks required fields and trims values in place
func normalizeFarmerData(data *domain.FarmerData) error {
	if data == nil {
		return fmt.Errorf("%w: farmer data is required", domain.ErrInvalidRequest)
	}
	data.FarmerID = strings.TrimSpace(data.FarmerID)
	if data.FarmerID == "" {
		return fmt.Errorf("%w: farmer_id is required", domain.ErrInvalidRequest)
	}
	if len(data.Records) == 0 {
		return fmt.Errorf("%w: at least one record is required", domain.ErrInvalidRequest)
	}
	data.FarmerName = strings.TrimSpace(data.FarmerName)
	if data.FarmerName == "" {
		data.FarmerName = unknownFarmerName
	}

	for i := range data.Records {
		r := &data.Records[i]
		r.Crop = strings.ToLower(strings.TrimSpace(r.Crop))
		r.WeekStart = strings.TrimSpace(r.WeekStart)

		if _, err := time.Parse(time.DateOnly, r.WeekStart); err != nil {
			return fmt.Errorf("%w: record %d: week_start %q is not YYYY-MM-DD", domain.ErrInvalidRequest, i, r.WeekStart)
		}
		if r.Crop == "" {
			return fmt.Errorf("%w: record %d: crop is required", domain.ErrInvalidRequest, i)
		}
		if r.TotalSuppliedKg < 0 || r.TotalSoldKg < 0 || r.AvgDeliveryDelayMin < 0 {
			return fmt.Errorf("%w: record %d: quantities must not be negative", domain.ErrInvalidRequest, i)
		}
	}
	return nil
}

// ListFarmers returns a summary of every stored farmer
func (s *FarmerService) ListFarmers(ctx context.Context) ([]domain.FarmerSummary, error) {
	return s.repo.List(ctx)
}

// GetFarmerData returns a farmer's stored data
func (s *FarmerService) GetFarmerData(ctx context.Context, farmerID string) (*domain.FarmerData, error) {
	if strings.TrimSpace(farmerID) == "" {
		return nil, fmt.Errorf("%w: farmer_id is required", domain.ErrInvalidRequest)
	}
	return s.repo.Get(ctx, farmerID)
}

// DeleteFarmer removes a farmer's stored data
func (s *FarmerService) DeleteFarmer(ctx context.Context, farmerID string) error {
	if strings.TrimSpace(farmerID) == "" {
		return fmt.Errorf("%w: farmer_id is required", domain.ErrInvalidRequest)
	}
	return s.repo.Delete(ctx, farmerID)
}

// GenerateAnalytics runs AI analytics over a farmer's recent records and adds chart data
func (s *FarmerService) GenerateAnalytics(ctx context.Context, farmerID, cropFilter string, weeks int) (*domain.FarmerAnalytics, error) {
	if s.analyzer == nil {
		return nil, fmt.Errorf("%w: no analytics backend configured", domain.ErrBackendUnavailable)
	}

	data, records, err := s.loadRecords(ctx, farmerID, cropFilter, weeks)
	if err != nil {
		return nil, err
	}

	analytics, err := s.analyzer.AnalyzeCSV(ctx, recordsToCSV(records), cropFilter)
	if err != nil {
		return nil, err
	}

	charts := BuildCharts(records)
	charts["forecast"] = forecastChart(analytics.Forecast)

	return &domain.FarmerAnalytics{
		FarmerID:        data.FarmerID,
		FarmerName:      data.FarmerName,
		Insights:        analytics.Insights,
		Forecast:        analytics.Forecast,
		Recommendations: analytics.Recommendations,
		Charts:          charts,
		Source:          s.analyzer.Status().Backend,
	}, nil
}

// Dashboard returns headline metrics and charts without calling a model
func (s *FarmerService) Dashboard(ctx context.Context, farmerID, cropFilter string, weeks int) (*domain.Dashboard, error) {
	data, records, err := s.loadRecords(ctx, farmerID, cropFilter, weeks)
	if err != nil {
		return nil, err
	}

	return &domain.Dashboard{
		FarmerID:   data.FarmerID,
		FarmerName: data.FarmerName,
		Metrics:    ComputeMetrics(records),
		Charts:     BuildCharts(records),
	}, nil
}

func (s *FarmerService) loadRecords(ctx context.Context, farmerID, cropFilter string, weeks int) (*domain.FarmerData, []domain.WeeklyRecord, error) {
	data, err := s.GetFarmerData(ctx, farmerID)
	if err != nil {
		return nil, nil, err
	}

	records := FilterRecords(data.Records, cropFilter, weeks)
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: no records for farmer %s matching crop %q", domain.ErrNotFound, farmerID, cropFilter)
	}
	return data, records, nil
}

// FilterRecords keeps records for crop (all crops when empty) within the
// latest weeks distinct week starts
func FilterRecords(records []domain.WeeklyRecord, crop string, weeks int) []domain.WeeklyRecord {
	if weeks <= 0 {
		weeks = DefaultAnalyticsWeeks
	}
	crop = strings.ToLower(strings.TrimSpace(crop))

	var matched []domain.WeeklyRecord
	weekSet := make(map[string]bool)
	for _, r := range records {
		if crop != "" && r.Crop != crop {
			continue
		}
		matched = append(matched, r)
		weekSet[r.WeekStart] = true
	}

	allWeeks := make([]string, 0, len(weekSet))
	for w := range weekSet {
		allWeeks = append(allWeeks, w)
	}
	sort.Strings(allWeeks)
	if len(allWeeks) <= weeks {
		return sortRecords(matched)
	}

	cutoff := allWeeks[len(allWeeks)-weeks]
	kept := matched[:0:0]
	for _, r := range matched {
		if r.WeekStart >= cutoff {
			kept = append(kept, r)
		}
	}
	return sortRecords(kept)
}

// sortRecords orders records by crop, then week
func sortRecords(records []domain.WeeklyRecord) []domain.WeeklyRecord {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Crop != records[j].Crop {
			return records[i].Crop < records[j].Crop
		}
		return records[i].WeekStart < records[j].WeekStart
	})
	return records
}

func recordsToCSV(records []domain.WeeklyRecord) string {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			r.WeekStart,
			r.Crop,
			formatFloat(r.TotalSuppliedKg),
			formatFloat(r.TotalSoldKg),
			formatFloat(r.AvgDeliveryDelayMin),
		}
	}
	out, _ := renderCSV(recordCSVHeader, rows)
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ComputeMetrics totals supply and sales across records
func ComputeMetrics(records []domain.WeeklyRecord) domain.DashboardMetrics {
	var m domain.DashboardMetrics
	var delay float64
	for _, r := range records {
		m.TotalSupplyKg += r.TotalSuppliedKg
		m.TotalSoldKg += r.TotalSoldKg
		delay += r.AvgDeliveryDelayMin
	}
	m.Records = len(records)
	if m.TotalSupplyKg > 0 {
		m.SalesRatePct = roundTo(m.TotalSoldKg/m.TotalSupplyKg*100, 1)
	}
	if len(records) > 0 {
		m.AvgDeliveryDelayMin = roundTo(delay/float64(len(records)), 1)
	}
	m.TotalSupplyKg = roundTo(m.TotalSupplyKg, 2)
	m.TotalSoldKg = roundTo(m.TotalSoldKg, 2)
	return m
}

// BuildCharts returns the supply_trend, sales_performance and distribution charts.
// records must already be sorted by crop, then week.
func BuildCharts(records []domain.WeeklyRecord) map[string]domain.ChartData {
	supply := make([]map[string]any, 0, len(records))
	sales := make([]map[string]any, 0, len(records))
	totals := make(map[string]float64)
	var crops []string

	for _, r := range records {
		supply = append(supply, map[string]any{"x": r.WeekStart, "y": r.TotalSuppliedKg, "crop": r.Crop})
		sales = append(sales, map[string]any{"x": r.WeekStart, "y": r.TotalSoldKg, "crop": r.Crop})
		if _, seen := totals[r.Crop]; !seen {
			crops = append(crops, r.Crop)
		}
		totals[r.Crop] += r.TotalSuppliedKg
	}

	distribution := make([]map[string]any, 0, len(crops))
	for _, crop := range crops {
		distribution = append(distribution, map[string]any{"label": crop, "value": totals[crop]})
	}

	return map[string]domain.ChartData{
		"supply_trend":      {ChartType: "line", Title: "Supply Trend", Data: supply},
		"sales_performance": {ChartType: "bar", Title: "Sales Performance", Data: sales},
		"distribution":      {ChartType: "pie", Title: "Supply Distribution by Crop", Data: distribution},
	}
}

func forecastChart(forecast []domain.ForecastPoint) domain.ChartData {
	data := make([]map[string]any, 0, len(forecast))
	for _, f := range forecast {
		data = append(data, map[string]any{"x": f.WeekStart, "y": f.Kg, "crop": f.Crop, "is_forecast": true})
	}
	return domain.ChartData{ChartType: "line", Title: "2-Week Forecast", Data: data}
}
