package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sensegrid/backend/services/hub-service/internal/models"
	"sensegrid/backend/services/hub-service/internal/tenancy"
)

type chartFixture struct {
	tenantID uuid.UUID
	node     *models.Node
	binding  *models.Binding
	nodes    *fakeNodeStore
	bindings *fakeBindingStore
	readings *fakeReadingStore
	svc      *ChartService
}

func newChartFixture() *chartFixture {
	f := &chartFixture{
		tenantID: uuid.New(),
		nodes:    &fakeNodeStore{},
		bindings: &fakeBindingStore{},
		readings: &fakeReadingStore{},
	}
	location := "Garten"
	f.node = &models.Node{ID: uuid.New(), ExternalID: "node-01", Name: "Node 01", LocationName: &location}
	f.nodes.nodes = append(f.nodes.nodes, f.node)

	sensor := tempSensor()
	f.binding = &models.Binding{
		ID:         uuid.New(),
		NodeID:     f.node.ID,
		SensorID:   sensor.ID,
		EndpointID: 1,
		Active:     true,
		Sensor:     sensor,
	}
	f.bindings.bindings = append(f.bindings.bindings, f.binding)

	f.svc = NewChartService(f.nodes, f.bindings, f.readings, zap.NewNop())
	return f
}

func (f *chartFixture) ctx() context.Context {
	return tenancy.WithTenant(context.Background(), f.tenantID)
}

func (f *chartFixture) addReading(value float64, ts time.Time) {
	f.readings.readings = append(f.readings.readings, models.Reading{
		ID:              int64(len(f.readings.readings) + 1),
		TenantID:        f.tenantID,
		NodeID:          f.node.ID,
		BindingID:       &f.binding.ID,
		MeasurementType: "temperature",
		RawValue:        value,
		Value:           value,
		Unit:            "°C",
		Timestamp:       ts,
	})
}

func TestChartDataNoDataReturnsNil(t *testing.T) {
	f := newChartFixture()

	data, err := f.svc.ChartData(f.ctx(), f.node.ID, f.binding.ID, "temperature", IntervalDay)
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = f.svc.ChartData(f.ctx(), uuid.New(), f.binding.ID, "temperature", IntervalDay)
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = f.svc.ChartData(f.ctx(), f.node.ID, uuid.New(), "temperature", IntervalDay)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestChartDataAggregatesReducesCardinality(t *testing.T) {
	f := newChartFixture()
	now := time.Now().UTC()
	for i := 0; i < 100; i++ {
		f.addReading(20.0+float64(i%10), now.Add(-time.Duration(100-i)*10*time.Second))
	}

	data, err := f.svc.ChartData(f.ctx(), f.node.ID, f.binding.ID, "temperature", IntervalDay)
	require.NoError(t, err)
	require.NotNil(t, data)

	assert.Less(t, len(data.DataPoints), 100)
	assert.NotEmpty(t, data.DataPoints)
	assert.LessOrEqual(t, data.Stats.MinValue, data.Stats.AvgValue)
	assert.LessOrEqual(t, data.Stats.AvgValue, data.Stats.MaxValue)
	for i := 1; i < len(data.DataPoints); i++ {
		assert.True(t, data.DataPoints[i-1].Timestamp.Before(data.DataPoints[i].Timestamp))
	}
}

func TestChartDataStatsAndCurrent(t *testing.T) {
	f := newChartFixture()
	now := time.Now().UTC()
	f.addReading(18.0, now.Add(-3*time.Hour))
	f.addReading(25.0, now.Add(-2*time.Hour))
	f.addReading(21.0, now.Add(-time.Minute))

	data, err := f.svc.ChartData(f.ctx(), f.node.ID, f.binding.ID, "temperature", IntervalDay)
	require.NoError(t, err)
	require.NotNil(t, data)

	assert.Equal(t, 18.0, data.Stats.MinValue)
	assert.Equal(t, 25.0, data.Stats.MaxValue)
	assert.InDelta(t, 21.33, data.Stats.AvgValue, 0.01)
	assert.Equal(t, 21.0, data.CurrentValue)
	assert.Equal(t, "Node 01", data.NodeName)
	assert.Equal(t, "Garten", data.LocationName)
	assert.Equal(t, "°C", data.Unit)
	assert.Equal(t, "#FF5722", data.Color)
}

func TestChartDataSensorColorOverride(t *testing.T) {
	f := newChartFixture()
	color := "#123456"
	f.binding.Sensor.Color = &color
	f.addReading(20.0, time.Now().UTC().Add(-time.Minute))

	data, err := f.svc.ChartData(f.ctx(), f.node.ID, f.binding.ID, "temperature", IntervalDay)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, "#123456", data.Color)
}

func TestChartTrendDirections(t *testing.T) {
	now := time.Now().UTC()
	mk := func(older, newer float64) []models.Reading {
		return []models.Reading{
			{Value: older, Timestamp: now.Add(-2 * time.Hour)},
			{Value: newer, Timestamp: now.Add(-10 * time.Minute)},
		}
	}

	trend := calculateTrend(mk(20.0, 25.0), IntervalHour, now)
	assert.Equal(t, TrendUp, trend.Direction)
	assert.InDelta(t, 5.0, trend.Change, 1e-9)
	assert.InDelta(t, 25.0, trend.ChangePercent, 1e-9)

	trend = calculateTrend(mk(25.0, 20.0), IntervalHour, now)
	assert.Equal(t, TrendDown, trend.Direction)

	// Changes inside the dead band count as stable.
	trend = calculateTrend(mk(20.0, 20.05), IntervalHour, now)
	assert.Equal(t, TrendStable, trend.Direction)
}

func TestChartTrendWithoutReferenceIsStable(t *testing.T) {
	now := time.Now().UTC()
	readings := []models.Reading{
		{Value: 20.0, Timestamp: now.Add(-10 * time.Minute)},
		{Value: 30.0, Timestamp: now.Add(-5 * time.Minute)},
	}

	// No reading is old enough to serve as a day-interval reference.
	trend := calculateTrend(readings, IntervalDay, now)
	assert.Equal(t, TrendStable, trend.Direction)
	assert.Equal(t, 0.0, trend.Change)
}

func TestReadingsListPaginationAndTrend(t *testing.T) {
	f := newChartFixture()
	now := time.Now().UTC()
	values := []float64{20.0, 21.0, 20.9, 25.0}
	for i, v := range values {
		f.addReading(v, now.Add(-time.Duration(len(values)-i)*time.Minute))
	}

	list, err := f.svc.ReadingsList(f.ctx(), f.node.ID, f.binding.ID, "temperature", ReadingsListRequest{Page: 1, PageSize: 3})
	require.NoError(t, err)

	assert.Equal(t, 4, list.TotalCount)
	assert.Equal(t, 2, list.TotalPages)
	require.Len(t, list.Items, 3)

	// Newest first: 25.0, 20.9, 21.0.
	assert.Equal(t, 25.0, list.Items[0].Value)
	require.NotNil(t, list.Items[0].TrendDirection)
	assert.Equal(t, TrendUp, *list.Items[0].TrendDirection)
	require.NotNil(t, list.Items[1].TrendDirection)
	assert.Equal(t, TrendStable, *list.Items[1].TrendDirection)
	// Oldest fetched row has nothing to compare against.
	assert.Nil(t, list.Items[2].TrendDirection)
}

func TestExportCSVFormat(t *testing.T) {
	f := newChartFixture()
	ts := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	f.addReading(22.425, ts)

	data, err := f.svc.ExportCSV(f.ctx(), f.node.ID, f.binding.ID, "temperature", nil, nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Zeitstempel;Wert;Einheit", lines[0])
	assert.Equal(t, "15.03.2026 14:30:00;22.43;°C", lines[1])
}

func TestExportCSVEmptyIsHeaderOnly(t *testing.T) {
	f := newChartFixture()

	data, err := f.svc.ExportCSV(f.ctx(), f.node.ID, f.binding.ID, "temperature", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Zeitstempel;Wert;Einheit\n", string(data))
}

func TestExportCSVRowCountMatchesReadings(t *testing.T) {
	f := newChartFixture()
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		f.addReading(20.0+float64(i), now.Add(-time.Duration(i)*time.Minute))
	}

	data, err := f.svc.ExportCSV(f.ctx(), f.node.ID, f.binding.ID, "temperature", nil, nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 6)
}

func TestBucketReadingsMinMaxOnlyForMultiPointBuckets(t *testing.T) {
	base := time.Date(2026, 3, 15, 14, 0, 0, 0, time.UTC)
	readings := []models.Reading{
		{Value: 20.0, Timestamp: base.Add(1 * time.Minute)},
		{Value: 24.0, Timestamp: base.Add(5 * time.Minute)},
		{Value: 30.0, Timestamp: base.Add(20 * time.Minute)},
	}

	points := bucketReadings(readings, 15*time.Minute)
	require.Len(t, points, 2)

	// First bucket holds two readings.
	assert.Equal(t, 22.0, points[0].Value)
	require.NotNil(t, points[0].Min)
	assert.Equal(t, 20.0, *points[0].Min)
	require.NotNil(t, points[0].Max)
	assert.Equal(t, 24.0, *points[0].Max)

	// Second bucket holds one reading, no spread.
	assert.Equal(t, 30.0, points[1].Value)
	assert.Nil(t, points[1].Min)
	assert.Nil(t, points[1].Max)
}
