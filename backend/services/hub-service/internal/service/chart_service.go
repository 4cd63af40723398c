package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sensegrid/backend/services/hub-service/internal/models"
	"sensegrid/backend/services/hub-service/internal/repository"
	"sensegrid/backend/services/hub-service/internal/tenancy"
)

// Interval selects the chart time window and bucket width.
type Interval string

const (
	IntervalHour       Interval = "hour"
	IntervalDay        Interval = "day"
	IntervalWeek       Interval = "week"
	IntervalMonth      Interval = "month"
	IntervalThreeMonth Interval = "3months"
	IntervalSixMonth   Interval = "6months"
	IntervalYear       Interval = "year"
)

// Trend directions.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// trendDeadBand is the change below which a value counts as stable.
const trendDeadBand = 0.1

const defaultColor = "#607D8B"

// measurementColors keys a display color by measurement type.
var measurementColors = map[string]string{
	"temperature":       "#FF5722",
	"water_temperature": "#00BCD4",
	"humidity":          "#2196F3",
	"pressure":          "#9C27B0",
	"co2":               "#4CAF50",
	"pm25":              "#795548",
	"pm10":              "#607D8B",
	"soil_moisture":     "#8BC34A",
	"light":             "#FFC107",
	"illuminance":       "#FFC107",
	"uv":                "#E91E63",
	"wind_speed":        "#00BCD4",
	"rainfall":          "#3F51B5",
	"water_level":       "#009688",
	"battery":           "#CDDC39",
	"rssi":              "#9E9E9E",
}

type intervalParams struct {
	window time.Duration
	bucket time.Duration
}

// Bucket widths keep the point count bounded for each window.
var intervalTable = map[Interval]intervalParams{
	IntervalHour:       {window: time.Hour, bucket: time.Minute},
	IntervalDay:        {window: 24 * time.Hour, bucket: 15 * time.Minute},
	IntervalWeek:       {window: 7 * 24 * time.Hour, bucket: time.Hour},
	IntervalMonth:      {window: 30 * 24 * time.Hour, bucket: 6 * time.Hour},
	IntervalThreeMonth: {window: 90 * 24 * time.Hour, bucket: 24 * time.Hour},
	IntervalSixMonth:   {window: 180 * 24 * time.Hour, bucket: 24 * time.Hour},
	IntervalYear:       {window: 365 * 24 * time.Hour, bucket: 7 * 24 * time.Hour},
}

func (i Interval) params() intervalParams {
	if p, ok := intervalTable[i]; ok {
		return p
	}
	return intervalTable[IntervalDay]
}

// ChartPoint is one aggregated bucket. Min/Max are only set when the bucket
// holds more than one raw reading.
type ChartPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Min       *float64  `json:"min,omitempty"`
	Max       *float64  `json:"max,omitempty"`
}

// ChartStats summarizes the raw reading set.
type ChartStats struct {
	MinValue     float64   `json:"minValue"`
	MinTimestamp time.Time `json:"minTimestamp"`
	MaxValue     float64   `json:"maxValue"`
	MaxTimestamp time.Time `json:"maxTimestamp"`
	AvgValue     float64   `json:"avgValue"`
}

// Trend compares the latest value against a reference point one interval back.
type Trend struct {
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Direction     string  `json:"direction"`
}

// ChartData is the full chart payload for one selector.
type ChartData struct {
	NodeID          uuid.UUID    `json:"nodeId"`
	NodeName        string       `json:"nodeName"`
	BindingID       uuid.UUID    `json:"bindingId"`
	SensorID        uuid.UUID    `json:"sensorId"`
	SensorName      string       `json:"sensorName"`
	MeasurementType string       `json:"measurementType"`
	LocationName    string       `json:"locationName"`
	Unit            string       `json:"unit"`
	Color           string       `json:"color"`
	CurrentValue    float64      `json:"currentValue"`
	LastUpdate      time.Time    `json:"lastUpdate"`
	Stats           ChartStats   `json:"stats"`
	Trend           Trend        `json:"trend"`
	DataPoints      []ChartPoint `json:"dataPoints"`
}

// ReadingListItem is one row of the paginated readings listing.
type ReadingListItem struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Value          float64   `json:"value"`
	Unit           string    `json:"unit"`
	TrendDirection *string   `json:"trendDirection"`
}

// ReadingsList is a page of readings plus paging metadata.
type ReadingsList struct {
	Items      []ReadingListItem `json:"items"`
	TotalCount int               `json:"totalCount"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

// ReadingsListRequest selects a page of the readings listing.
type ReadingsListRequest struct {
	Page     int
	PageSize int
	From     *time.Time
	To       *time.Time
}

// ChartService aggregates readings into chart payloads, paginated listings
// and CSV exports.
type ChartService struct {
	nodes    NodeStore
	bindings BindingStore
	readings ReadingStore
	logger   *zap.Logger
}

func NewChartService(nodes NodeStore, bindings BindingStore, readings ReadingStore, logger *zap.Logger) *ChartService {
	return &ChartService{nodes: nodes, bindings: bindings, readings: readings, logger: logger}
}

// ChartData builds the aggregated chart payload. A missing node, binding or
// empty reading set returns (nil, nil): no data is not a fault.
func (s *ChartService) ChartData(ctx context.Context, nodeID, bindingID uuid.UUID, measurementType string, interval Interval) (*ChartData, error) {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	params := interval.params()
	now := time.Now().UTC()
	from := now.Add(-params.window)

	node, err := s.nodes.GetByID(ctx, tenantID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("load node: %w", err)
	}
	if node == nil {
		s.logger.Debug("chart node not found", zap.String("node_id", nodeID.String()))
		return nil, nil
	}
	binding, err := s.bindings.GetByID(ctx, nodeID, bindingID)
	if err != nil {
		return nil, fmt.Errorf("load binding: %w", err)
	}
	if binding == nil || binding.Sensor == nil {
		s.logger.Debug("chart binding not found", zap.String("binding_id", bindingID.String()))
		return nil, nil
	}

	mtype := strings.ToLower(strings.TrimSpace(measurementType))
	readings, err := s.readings.Series(ctx, tenantID, nodeID, bindingID, mtype, from)
	if err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}
	if len(readings) == 0 {
		return nil, nil
	}

	latest := readings[len(readings)-1]
	color := colorFor(mtype)
	if binding.Sensor.Color != nil {
		color = *binding.Sensor.Color
	}
	return &ChartData{
		NodeID:          nodeID,
		NodeName:        node.Name,
		BindingID:       bindingID,
		SensorID:        binding.SensorID,
		SensorName:      binding.Sensor.Name,
		MeasurementType: mtype,
		LocationName:    node.Location(),
		Unit:            latest.Unit,
		Color:           color,
		CurrentValue:    round2(latest.Value),
		LastUpdate:      latest.Timestamp,
		Stats:           calculateStats(readings),
		Trend:           calculateTrend(readings, interval, now),
		DataPoints:      bucketReadings(readings, params.bucket),
	}, nil
}

// ReadingsList returns one page of readings, newest first, each annotated
// with a trend direction relative to the next older row on the page.
func (s *ChartService) ReadingsList(ctx context.Context, nodeID, bindingID uuid.UUID, measurementType string, req ReadingsListRequest) (*ReadingsList, error) {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 50
	}
	mtype := strings.ToLower(strings.TrimSpace(measurementType))
	filter := repository.WindowFilter{From: req.From, To: req.To}

	total, err := s.readings.CountWindow(ctx, tenantID, nodeID, bindingID, mtype, filter)
	if err != nil {
		return nil, fmt.Errorf("count readings: %w", err)
	}
	rows, err := s.readings.Window(ctx, tenantID, nodeID, bindingID, mtype, filter, req.PageSize, (req.Page-1)*req.PageSize)
	if err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}

	items := make([]ReadingListItem, 0, len(rows))
	for i, r := range rows {
		var direction *string
		if i < len(rows)-1 {
			d := directionBetween(r.Value, rows[i+1].Value)
			direction = &d
		}
		items = append(items, ReadingListItem{
			ID:             r.ID,
			Timestamp:      r.Timestamp,
			Value:          round2(r.Value),
			Unit:           r.Unit,
			TrendDirection: direction,
		})
	}

	totalPages := (total + req.PageSize - 1) / req.PageSize
	return &ReadingsList{
		Items:      items,
		TotalCount: total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	}, nil
}

// ExportCSV renders all matching readings as semicolon-separated UTF-8 text.
// The header row is always present, even for an empty result.
func (s *ChartService) ExportCSV(ctx context.Context, nodeID, bindingID uuid.UUID, measurementType string, from, to *time.Time) ([]byte, error) {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	mtype := strings.ToLower(strings.TrimSpace(measurementType))
	filter := repository.WindowFilter{From: from, To: to}

	rows, err := s.readings.Window(ctx, tenantID, nodeID, bindingID, mtype, filter, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}

	var b strings.Builder
	b.WriteString("Zeitstempel;Wert;Einheit\n")
	for _, r := range rows {
		b.WriteString(r.Timestamp.Format("02.01.2006 15:04:05"))
		b.WriteByte(';')
		fmt.Fprintf(&b, "%.2f", r.Value)
		b.WriteByte(';')
		b.WriteString(r.Unit)
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

// bucketReadings groups readings into fixed time slices and averages each
// slice. Readings are assumed sorted ascending.
func bucketReadings(readings []models.Reading, bucket time.Duration) []ChartPoint {
	if len(readings) == 0 {
		return []ChartPoint{}
	}
	type agg struct {
		sum   float64
		min   float64
		max   float64
		count int
	}
	buckets := make(map[time.Time]*agg)
	for _, r := range readings {
		key := r.Timestamp.Truncate(bucket)
		a, ok := buckets[key]
		if !ok {
			buckets[key] = &agg{sum: r.Value, min: r.Value, max: r.Value, count: 1}
			continue
		}
		a.sum += r.Value
		a.count++
		if r.Value < a.min {
			a.min = r.Value
		}
		if r.Value > a.max {
			a.max = r.Value
		}
	}

	points := make([]ChartPoint, 0, len(buckets))
	for ts, a := range buckets {
		p := ChartPoint{Timestamp: ts, Value: round2(a.sum / float64(a.count))}
		if a.count > 1 {
			mn, mx := round2(a.min), round2(a.max)
			p.Min, p.Max = &mn, &mx
		}
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points
}

func calculateStats(readings []models.Reading) ChartStats {
	if len(readings) == 0 {
		now := time.Now().UTC()
		return ChartStats{MinTimestamp: now, MaxTimestamp: now}
	}
	minR, maxR := readings[0], readings[0]
	sum := 0.0
	for _, r := range readings {
		if r.Value < minR.Value {
			minR = r
		}
		if r.Value > maxR.Value {
			maxR = r
		}
		sum += r.Value
	}
	return ChartStats{
		MinValue:     round2(minR.Value),
		MinTimestamp: minR.Timestamp,
		MaxValue:     round2(maxR.Value),
		MaxTimestamp: maxR.Timestamp,
		AvgValue:     round2(sum / float64(len(readings))),
	}
}

// calculateTrend compares the newest value against the newest reading at
// least one interval old. The reference lookback is capped at a month.
func calculateTrend(readings []models.Reading, interval Interval, now time.Time) Trend {
	if len(readings) == 0 {
		return Trend{Direction: TrendStable}
	}
	current := readings[len(readings)-1].Value

	var lookback time.Duration
	switch interval {
	case IntervalHour:
		lookback = time.Hour
	case IntervalWeek:
		lookback = 7 * 24 * time.Hour
	case IntervalMonth, IntervalThreeMonth, IntervalSixMonth, IntervalYear:
		lookback = 30 * 24 * time.Hour
	default:
		lookback = 24 * time.Hour
	}
	compareTime := now.Add(-lookback)

	previous := current
	for i := len(readings) - 1; i >= 0; i-- {
		if !readings[i].Timestamp.After(compareTime) {
			previous = readings[i].Value
			break
		}
	}

	change := current - previous
	changePercent := 0.0
	if previous != 0 {
		changePercent = change / math.Abs(previous) * 100
	}
	return Trend{
		Change:        round2(change),
		ChangePercent: round1(changePercent),
		Direction:     directionFor(change),
	}
}

func directionBetween(newer, older float64) string {
	return directionFor(newer - older)
}

func directionFor(change float64) string {
	switch {
	case change > trendDeadBand:
		return TrendUp
	case change < -trendDeadBand:
		return TrendDown
	default:
		return TrendStable
	}
}

func colorFor(measurementType string) string {
	if c, ok := measurementColors[measurementType]; ok {
		return c
	}
	return defaultColor
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
