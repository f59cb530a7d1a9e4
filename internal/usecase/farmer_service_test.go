package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/farmlens/backend/internal/domain"
)

func sampleFarmerData() *domain.FarmerData {
	return &domain.FarmerData{
		FarmerID: "farmer123",
		Records: []domain.WeeklyRecord{
			{WeekStart: "2024-06-10", Crop: "Tomato", TotalSuppliedKg: 100, TotalSoldKg: 80, AvgDeliveryDelayMin: 10},
			{WeekStart: "2024-06-03", Crop: "tomato", TotalSuppliedKg: 120, TotalSoldKg: 90, AvgDeliveryDelayMin: 20},
			{WeekStart: "2024-06-03", Crop: "carrot", TotalSuppliedKg: 80, TotalSoldKg: 30, AvgDeliveryDelayMin: 30},
		},
	}
}

func TestSendData(t *testing.T) {
	ctx := context.Background()

	t.Run("stores normalized data", func(t *testing.T) {
		repo := NewMockFarmerRepository()
		svc := NewFarmerService(repo, nil, nil)
		svc.now = func() time.Time { return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC) }

		stored, err := svc.SendData(ctx, sampleFarmerData())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stored.FarmerName != "Unknown Farmer" {
			t.Errorf("FarmerName = %q, want Unknown Farmer", stored.FarmerName)
		}
		if stored.Records[0].Crop != "tomato" {
			t.Errorf("crop not normalized: %q", stored.Records[0].Crop)
		}
		if stored.UpdatedAt.IsZero() {
			t.Error("UpdatedAt not stamped")
		}
		if _, err := repo.Get(ctx, "farmer123"); err != nil {
			t.Errorf("data not stored: %v", err)
		}
	})

	invalid := []struct {
		name   string
		mutate func(*domain.FarmerData)
	}{
		{"missing farmer id", func(d *domain.FarmerData) { d.FarmerID = "" }},
		{"no records", func(d *domain.FarmerData) { d.Records = nil }},
		{"bad week", func(d *domain.FarmerData) { d.Records[0].WeekStart = "06/10/2024" }},
		{"missing crop", func(d *domain.FarmerData) { d.Records[1].Crop = " " }},
		{"negative supply", func(d *domain.FarmerData) { d.Records[2].TotalSuppliedKg = -1 }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			data := sampleFarmerData()
			tt.mutate(data)

			_, err := NewFarmerService(NewMockFarmerRepository(), nil, nil).SendData(ctx, data)
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestBulkUpload(t *testing.T) {
	ctx := context.Background()
	repo := NewMockFarmerRepository()
	svc := NewFarmerService(repo, nil, nil)

	good := *sampleFarmerData()
	bad := domain.FarmerData{FarmerID: "farmer456"}

	results, err := svc.BulkUpload(ctx, []domain.FarmerData{good, bad})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if !results[0].Accepted || results[0].Records != 3 {
		t.Errorf("results[0] = %+v, want accepted with 3 records", results[0])
	}
	if results[1].Accepted || results[1].Error == "" {
		t.Errorf("results[1] = %+v, want rejection", results[1])
	}
	if _, err := repo.Get(ctx, "farmer456"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("rejected farmer should not be stored")
	}

	if _, err := svc.BulkUpload(ctx, nil); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
}

func TestBulkUpload_LeavesInputUntouched(t *testing.T) {
	svc := NewFarmerService(NewMockFarmerRepository(), nil, nil)
	entries := []domain.FarmerData{{
		FarmerID: "farmer-9",
		Records:  []domain.WeeklyRecord{{WeekStart: " 2024-06-03 ", Crop: " Tomato ", TotalSuppliedKg: 10, TotalSoldKg: 5}},
	}}

	results, err := svc.BulkUpload(context.Background(), entries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !results[0].Accepted {
		t.Fatalf("results[0] = %+v, want accepted", results[0])
	}
	if got := entries[0].Records[0]; got.Crop != " Tomato " || got.WeekStart != " 2024-06-03 " {
		t.Errorf("caller record modified: %+v", got)
	}
}

func TestFilterRecords(t *testing.T) {
	records := []domain.WeeklyRecord{
		{WeekStart: "2024-05-27", Crop: "tomato"},
		{WeekStart: "2024-06-10", Crop: "tomato"},
		{WeekStart: "2024-06-03", Crop: "tomato"},
		{WeekStart: "2024-06-03", Crop: "carrot"},
	}

	t.Run("latest weeks sorted by crop then week", func(t *testing.T) {
		got := FilterRecords(records, "", 2)
		want := []string{"carrot 2024-06-03", "tomato 2024-06-03", "tomato 2024-06-10"}
		if len(got) != len(want) {
			t.Fatalf("got %d records, want %d", len(got), len(want))
		}
		for i, r := range got {
			if r.Crop+" "+r.WeekStart != want[i] {
				t.Errorf("record %d = %s %s, want %s", i, r.Crop, r.WeekStart, want[i])
			}
		}
	})

	t.Run("crop filter", func(t *testing.T) {
		got := FilterRecords(records, " Carrot ", 0)
		if len(got) != 1 || got[0].Crop != "carrot" {
			t.Errorf("got %+v, want one carrot record", got)
		}
	})

	t.Run("does not reorder input", func(t *testing.T) {
		FilterRecords(records, "", 0)
		if records[0].WeekStart != "2024-05-27" || records[1].WeekStart != "2024-06-10" {
			t.Error("input slice was modified")
		}
	})
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	svc := NewFarmerService(NewMockFarmerRepository(), nil, nil)
	if _, err := svc.SendData(ctx, sampleFarmerData()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("metrics and charts", func(t *testing.T) {
		dash, err := svc.Dashboard(ctx, "farmer123", "", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m := dash.Metrics
		if m.TotalSupplyKg != 300 || m.TotalSoldKg != 200 || m.Records != 3 {
			t.Errorf("metrics = %+v", m)
		}
		if m.SalesRatePct != 66.7 {
			t.Errorf("SalesRatePct = %v, want 66.7", m.SalesRatePct)
		}
		if m.AvgDeliveryDelayMin != 20 {
			t.Errorf("AvgDeliveryDelayMin = %v, want 20", m.AvgDeliveryDelayMin)
		}

		if _, ok := dash.Charts["forecast"]; ok {
			t.Error("dashboard should not include a forecast chart")
		}
		dist := dash.Charts["distribution"]
		if dist.ChartType != "pie" || len(dist.Data) != 2 {
			t.Fatalf("distribution = %+v", dist)
		}
		if dist.Data[0]["label"] != "carrot" || dist.Data[1]["value"] != 220.0 {
			t.Errorf("distribution data = %v", dist.Data)
		}
		trend := dash.Charts["supply_trend"]
		if trend.ChartType != "line" || trend.Data[1]["x"] != "2024-06-03" || trend.Data[2]["x"] != "2024-06-10" {
			t.Errorf("supply_trend data = %v", trend.Data)
		}
		if dash.Charts["sales_performance"].ChartType != "bar" {
			t.Error("sales_performance should be a bar chart")
		}
	})

	t.Run("unknown farmer", func(t *testing.T) {
		_, err := svc.Dashboard(ctx, "nobody", "", 0)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("crop with no records", func(t *testing.T) {
		_, err := svc.Dashboard(ctx, "farmer123", "mango", 0)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestGenerateAnalytics(t *testing.T) {
	ctx := context.Background()

	t.Run("no analyzer", func(t *testing.T) {
		svc := NewFarmerService(NewMockFarmerRepository(), nil, nil)

		_, err := svc.GenerateAnalytics(ctx, "farmer123", "", 0)
		if !errors.Is(err, domain.ErrBackendUnavailable) {
			t.Errorf("error = %v, want ErrBackendUnavailable", err)
		}
	})

	t.Run("analyzes records and adds forecast chart", func(t *testing.T) {
		model := NewMockVisionModel("gemini", csvReply)
		svc := NewFarmerService(NewMockFarmerRepository(), NewAnalyticsService(model, nil, 0, nil), nil)
		data := sampleFarmerData()
		data.FarmerName = "Green Acres"
		if _, err := svc.SendData(ctx, data); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		result, err := svc.GenerateAnalytics(ctx, "farmer123", "tomato", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.FarmerName != "Green Acres" || result.Source != "gemini" {
			t.Errorf("result = %+v", result)
		}
		if len(result.Charts) != 4 {
			t.Errorf("got %d charts, want 4", len(result.Charts))
		}
		forecast := result.Charts["forecast"]
		if len(forecast.Data) != 1 || forecast.Data[0]["is_forecast"] != true {
			t.Errorf("forecast chart = %+v", forecast)
		}

		prompt := model.requests[0].Prompt
		if !strings.Contains(prompt, "2024-06-10,tomato,100,80,10") {
			t.Error("prompt should carry the farmer records as CSV")
		}
		if strings.Contains(prompt, "carrot") {
			t.Error("crop filter should drop other crops")
		}
	})
}
