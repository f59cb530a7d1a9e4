// Package creao converts Creao marketplace exports into weekly farmer data.
package creao

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/farmlens/backend/internal/domain"
)

// ErrMissingColumn is returned when a CSV export lacks a required column
var ErrMissingColumn = errors.New("missing required column")

const statusCompleted = "completed"

// User is one row of the Creao users export
type User struct {
	ID      string
	Email   string
	Role    string
	Name    string
	Created string
	Updated string
}

// IsFarmer reports whether the user sells on the marketplace
func (u User) IsFarmer() bool {
	return strings.EqualFold(u.Role, "farmer") || strings.EqualFold(u.Role, "seller")
}

// UserStats summarizes a loaded users export
type UserStats struct {
	TotalUsers int `json:"total_users"`
	Farmers    int `json:"farmers"`
	Buyers     int `json:"buyers"`
}

// TransactionStats summarizes a loaded transactions export
type TransactionStats struct {
	FarmersWithTransactions int `json:"farmers_with_transactions"`
	TotalOrders             int `json:"total_orders"`
	Skipped                 int `json:"skipped"`
}

type weekCrop struct {
	week string
	crop string
}

type weekAggregate struct {
	supplied   float64
	sold       float64
	delaySum   float64
	delayCount int
}

type farmerAggregate struct {
	weeks   map[weekCrop]*weekAggregate
	orders  int
	revenue float64
}

// Adapter accumulates Creao users and transactions
type Adapter struct {
	users   map[string]User
	farmers map[string]*farmerAggregate
}

// NewAdapter creates an empty adapter
func NewAdapter() *Adapter {
	return &Adapter{
		users:   make(map[string]User),
		farmers: make(map[string]*farmerAggregate),
	}
}

// LoadUsers reads a users export with ID, Email, Role, Name, Created and Updated columns
func (a *Adapter) LoadUsers(r io.Reader) (UserStats, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return UserStats{}, err
	}
	cols, err := columnIndex(header, []string{"id", "role", "name"}, "email", "created", "updated")
	if err != nil {
		return UserStats{}, err
	}

	for _, row := range rows {
		u := User{
			ID:      field(row, cols, "id"),
			Email:   field(row, cols, "email"),
			Role:    field(row, cols, "role"),
			Name:    field(row, cols, "name"),
			Created: field(row, cols, "created"),
			Updated: field(row, cols, "updated"),
		}
		if u.ID == "" {
			continue
		}
		a.users[u.ID] = u
	}

	var stats UserStats
	stats.TotalUsers = len(a.users)
	for _, u := range a.users {
		switch {
		case u.IsFarmer():
			stats.Farmers++
		case strings.EqualFold(u.Role, "buyer"):
			stats.Buyers++
		}
	}
	return stats, nil
}

// LoadTransactions reads an orders export and aggregates it per farmer into
// Monday-start weeks per crop. Rows with unusable values are skipped.
func (a *Adapter) LoadTransactions(r io.Reader) (TransactionStats, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return TransactionStats{}, err
	}
	cols, err := columnIndex(header, []string{"farmer_id", "quantity_kg", "order_date"},
		"crop", "product", "total_revenue", "status", "delivery_time")
	if err != nil {
		return TransactionStats{}, err
	}
	if _, ok := cols["crop"]; !ok {
		if _, ok := cols["product"]; !ok {
			return TransactionStats{}, fmt.Errorf("%w: crop", ErrMissingColumn)
		}
	}

	var stats TransactionStats
	for _, row := range rows {
		farmerID := field(row, cols, "farmer_id")
		crop := strings.ToLower(field(row, cols, "crop"))
		if crop == "" {
			crop = strings.ToLower(field(row, cols, "product"))
		}
		qty, qtyErr := strconv.ParseFloat(field(row, cols, "quantity_kg"), 64)
		ts, tsErr := strconv.ParseInt(field(row, cols, "order_date"), 10, 64)
		if farmerID == "" || crop == "" || qtyErr != nil || tsErr != nil {
			stats.Skipped++
			continue
		}

		agg := a.farmers[farmerID]
		if agg == nil {
			agg = &farmerAggregate{weeks: make(map[weekCrop]*weekAggregate)}
			a.farmers[farmerID] = agg
		}
		key := weekCrop{week: WeekStart(time.Unix(ts, 0)), crop: crop}
		week := agg.weeks[key]
		if week == nil {
			week = &weekAggregate{}
			agg.weeks[key] = week
		}

		week.supplied += qty
		if strings.EqualFold(field(row, cols, "status"), statusCompleted) {
			week.sold += qty
		}
		if delay, err := strconv.ParseFloat(field(row, cols, "delivery_time"), 64); err == nil {
			week.delaySum += delay
			week.delayCount++
		}
		if revenue, err := strconv.ParseFloat(field(row, cols, "total_revenue"), 64); err == nil {
			agg.revenue += revenue
		}
		agg.orders++
		stats.TotalOrders++
	}

	stats.FarmersWithTransactions = len(a.farmers)
	return stats, nil
}

// Users returns the loaded users
func (a *Adapter) Users() []User {
	users := make([]User, 0, len(a.users))
	for _, u := range a.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// Farmers returns one FarmerData per farmer with transactions, ordered by ID
func (a *Adapter) Farmers() []domain.FarmerData {
	ids := make([]string, 0, len(a.farmers))
	for id := range a.farmers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]domain.FarmerData, 0, len(ids))
	for _, id := range ids {
		agg := a.farmers[id]
		out = append(out, domain.FarmerData{
			FarmerID:   id,
			FarmerName: a.farmerName(id),
			Records:    agg.records(),
			Metadata: map[string]any{
				"total_orders":  agg.orders,
				"total_revenue": agg.revenue,
				"source":        "creao",
			},
		})
	}
	return out
}

func (a *Adapter) farmerName(id string) string {
	if u, ok := a.users[id]; ok && u.Name != "" {
		return u.Name
	}
	return "Farmer " + id
}

func (f *farmerAggregate) records() []domain.WeeklyRecord {
	records := make([]domain.WeeklyRecord, 0, len(f.weeks))
	for key, w := range f.weeks {
		r := domain.WeeklyRecord{
			WeekStart:       key.week,
			Crop:            key.crop,
			TotalSuppliedKg: w.supplied,
			TotalSoldKg:     w.sold,
		}
		if w.delayCount > 0 {
			r.AvgDeliveryDelayMin = w.delaySum / float64(w.delayCount)
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].WeekStart != records[j].WeekStart {
			return records[i].WeekStart < records[j].WeekStart
		}
		return records[i].Crop < records[j].Crop
	})
	return records
}

// WeekStart returns the Monday (UTC) of the week containing t as YYYY-MM-DD
func WeekStart(t time.Time) string {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	monday := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	return monday.Format(time.DateOnly)
}

func readCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV rows: %w", err)
	}
	return header, rows, nil
}

// columnIndex maps lowercase column names to positions and checks required ones
func columnIndex(header []string, required []string, optional ...string) (map[string]int, error) {
	wanted := make(map[string]bool)
	for _, name := range append(required, optional...) {
		wanted[name] = true
	}

	cols := make(map[string]int)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if wanted[name] {
			if _, dup := cols[name]; !dup {
				cols[name] = i
			}
		}
	}

	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return cols, nil
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
