package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sensegrid/backend/services/hub-service/internal/models"
	"sensegrid/backend/services/hub-service/internal/tenancy"
)

// SparklinePeriod selects the dashboard sparkline window.
type SparklinePeriod string

const (
	SparklineHour SparklinePeriod = "hour"
	SparklineDay  SparklinePeriod = "day"
	SparklineWeek SparklinePeriod = "week"
)

func (p SparklinePeriod) params() intervalParams {
	switch p {
	case SparklineHour:
		return intervalParams{window: time.Hour, bucket: time.Minute}
	case SparklineWeek:
		return intervalParams{window: 7 * 24 * time.Hour, bucket: time.Hour}
	default:
		return intervalParams{window: 24 * time.Hour, bucket: 15 * time.Minute}
	}
}

const defaultLocationIcon = "location_on"

// heroLocations are rendered first, full width.
var heroLocations = map[string]bool{
	"außen":   true,
	"draußen": true,
	"garten":  true,
	"outside": true,
	"outdoor": true,
	"garden":  true,
}

var locationIcons = map[string]string{
	"außen":         "home",
	"draußen":       "home",
	"garten":        "yard",
	"terrasse":      "deck",
	"balkon":        "balcony",
	"wohnzimmer":    "weekend",
	"schlafzimmer":  "bedroom_parent",
	"kinderzimmer":  "bedroom_child",
	"küche":         "kitchen",
	"bad":           "bathroom",
	"badezimmer":    "bathroom",
	"büro":          "work",
	"arbeitszimmer": "work",
	"keller":        "foundation",
	"dachboden":     "roofing",
	"garage":        "garage",
	"flur":          "meeting_room",
	"eingang":       "door_front",
	"gewächshaus":   "eco",
	"outside":       "home",
	"outdoor":       "home",
	"garden":        "yard",
	"terrace":       "deck",
	"balcony":       "balcony",
	"living room":   "weekend",
	"bedroom":       "bedroom_parent",
	"kitchen":       "kitchen",
	"bathroom":      "bathroom",
	"bath room":     "bathroom",
	"office":        "work",
	"basement":      "foundation",
	"attic":         "roofing",
	"hallway":       "meeting_room",
	"entrance":      "door_front",
	"greenhouse":    "eco",
}

// validMeasurementTypes filters out sensor model names (dht22, bme280)
// that some firmwares report as a measurement type.
var validMeasurementTypes = map[string]bool{
	"temperature": true, "water_temperature": true, "humidity": true,
	"pressure": true, "co2": true, "pm25": true, "pm10": true,
	"soil_moisture": true, "light": true, "illuminance": true, "uv": true,
	"wind_speed": true, "rainfall": true, "water_level": true,
	"battery": true, "rssi": true, "speed": true,
	"latitude": true, "longitude": true, "altitude": true,
}

var measurementDisplayNames = map[string]string{
	"temperature":       "Temperatur",
	"water_temperature": "Wassertemperatur",
	"humidity":          "Luftfeuchtigkeit",
	"pressure":          "Luftdruck",
	"co2":               "CO₂",
	"pm25":              "Feinstaub PM2.5",
	"pm10":              "Feinstaub PM10",
	"soil_moisture":     "Bodenfeuchtigkeit",
	"light":             "Helligkeit",
	"illuminance":       "Helligkeit",
	"uv":                "UV-Index",
	"wind_speed":        "Windgeschwindigkeit",
	"rainfall":          "Niederschlag",
	"water_level":       "Wasserstand",
	"battery":           "Batterie",
	"rssi":              "Signalstärke",
	"speed":             "Geschwindigkeit",
	"latitude":          "Breitengrad",
	"longitude":         "Längengrad",
	"altitude":          "Höhe",
}

// SparklinePoint is one bucketed sparkline sample.
type SparklinePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MinMax carries window extremes with their timestamps.
type MinMax struct {
	MinValue     float64   `json:"minValue"`
	MinTimestamp time.Time `json:"minTimestamp"`
	MaxValue     float64   `json:"maxValue"`
	MaxTimestamp time.Time `json:"maxTimestamp"`
}

// SensorWidget is one dashboard tile for a (node, binding, measurement type).
type SensorWidget struct {
	WidgetID        string           `json:"widgetId"`
	NodeID          uuid.UUID        `json:"nodeId"`
	NodeName        string           `json:"nodeName"`
	BindingID       uuid.UUID        `json:"bindingId"`
	SensorID        uuid.UUID        `json:"sensorId"`
	MeasurementType string           `json:"measurementType"`
	SensorName      string           `json:"sensorName"`
	Label           string           `json:"label"`
	LocationName    string           `json:"locationName"`
	Unit            string           `json:"unit"`
	Color           string           `json:"color"`
	CurrentValue    float64          `json:"currentValue"`
	LastUpdate      time.Time        `json:"lastUpdate"`
	MinMax          MinMax           `json:"minMax"`
	DataPoints      []SparklinePoint `json:"dataPoints"`
}

// LocationGroup is all widgets of one declared location.
type LocationGroup struct {
	LocationName string         `json:"locationName"`
	LocationIcon string         `json:"locationIcon"`
	IsHero       bool           `json:"isHero"`
	Widgets      []SensorWidget `json:"widgets"`
}

// Dashboard is the location-grouped widget payload.
type Dashboard struct {
	Locations []LocationGroup `json:"locations"`
}

// DashboardFilter narrows the dashboard to selected locations and types.
type DashboardFilter struct {
	Locations        []string
	MeasurementTypes []string
	Period           SparklinePeriod
}

// FilterOptions lists the selectable dashboard filter values.
type FilterOptions struct {
	Locations        []string `json:"locations"`
	MeasurementTypes []string `json:"measurementTypes"`
}

// DashboardService builds the location-grouped live dashboard.
type DashboardService struct {
	nodes    NodeStore
	bindings BindingStore
	readings ReadingStore
	logger   *zap.Logger
}

func NewDashboardService(nodes NodeStore, bindings BindingStore, readings ReadingStore, logger *zap.Logger) *DashboardService {
	return &DashboardService{nodes: nodes, bindings: bindings, readings: readings, logger: logger}
}

// Dashboard returns the unfiltered location dashboard.
func (s *DashboardService) Dashboard(ctx context.Context, period SparklinePeriod) (*Dashboard, error) {
	return s.FilteredDashboard(ctx, DashboardFilter{Period: period})
}

// FilteredDashboard groups widgets by node location. Locations without any
// qualifying widget are dropped, hero locations sort first.
func (s *DashboardService) FilteredDashboard(ctx context.Context, filter DashboardFilter) (*Dashboard, error) {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	params := filter.Period.params()
	since := time.Now().UTC().Add(-params.window)

	nodes, err := s.nodes.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	nodes = filterNodesByLocation(nodes, filter.Locations)

	typeFilter := lowerSet(filter.MeasurementTypes)
	readings, err := s.readings.ListSince(ctx, tenantID, since, filter.MeasurementTypes)
	if err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}

	type seriesKey struct {
		nodeID    uuid.UUID
		bindingID uuid.UUID
		mtype     string
	}
	series := make(map[seriesKey][]models.Reading)
	for _, r := range readings {
		if r.BindingID == nil {
			continue
		}
		key := seriesKey{nodeID: r.NodeID, bindingID: *r.BindingID, mtype: r.MeasurementType}
		series[key] = append(series[key], r)
	}

	byLocation := make(map[string][]SensorWidget)
	for _, node := range nodes {
		bindings, err := s.bindings.ListActiveByNode(ctx, node.ID)
		if err != nil {
			return nil, fmt.Errorf("load bindings for node %s: %w", node.ID, err)
		}
		location := node.Location()
		for _, binding := range bindings {
			if binding.Sensor == nil {
				continue
			}
			for _, capability := range binding.Sensor.Capabilities {
				mtype := strings.ToLower(capability.MeasurementType)
				if !validMeasurementTypes[mtype] {
					continue
				}
				if len(typeFilter) > 0 && !typeFilter[mtype] {
					continue
				}
				rows := series[seriesKey{nodeID: node.ID, bindingID: binding.ID, mtype: mtype}]
				if len(rows) == 0 {
					continue
				}
				byLocation[location] = append(byLocation[location], buildWidget(node, binding, mtype, location, rows, params.bucket))
			}
		}
	}

	groups := make([]LocationGroup, 0, len(byLocation))
	for location, widgets := range byLocation {
		sort.Slice(widgets, func(i, j int) bool {
			if widgets[i].NodeName != widgets[j].NodeName {
				return widgets[i].NodeName < widgets[j].NodeName
			}
			return widgets[i].MeasurementType < widgets[j].MeasurementType
		})
		groups = append(groups, LocationGroup{
			LocationName: location,
			LocationIcon: locationIcon(location),
			IsHero:       heroLocations[strings.ToLower(location)],
			Widgets:      widgets,
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].IsHero != groups[j].IsHero {
			return groups[i].IsHero
		}
		return groups[i].LocationName < groups[j].LocationName
	})
	return &Dashboard{Locations: groups}, nil
}

// FilterOptions lists distinct node locations and the known measurement
// types with recorded readings.
func (s *DashboardService) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	tenantID, err := tenancy.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant is required", ErrValidation)
	}
	locations, err := s.nodes.Locations(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	types, err := s.readings.MeasurementTypes(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load measurement types: %w", err)
	}
	valid := make([]string, 0, len(types))
	for _, t := range types {
		if validMeasurementTypes[strings.ToLower(t)] {
			valid = append(valid, strings.ToLower(t))
		}
	}
	sort.Slice(valid, func(i, j int) bool {
		return displayNameFor(valid[i]) < displayNameFor(valid[j])
	})
	return &FilterOptions{Locations: locations, MeasurementTypes: valid}, nil
}

func buildWidget(node *models.Node, binding *models.Binding, mtype, location string, rows []models.Reading, bucket time.Duration) SensorWidget {
	latest := rows[0]
	minR, maxR := rows[0], rows[0]
	for _, r := range rows {
		if r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
		if r.Value < minR.Value {
			minR = r
		}
		if r.Value > maxR.Value {
			maxR = r
		}
	}

	points := bucketReadings(rows, bucket)
	sparkline := make([]SparklinePoint, len(points))
	for i, p := range points {
		sparkline[i] = SparklinePoint{Timestamp: p.Timestamp, Value: p.Value}
	}

	color := colorFor(mtype)
	if binding.Sensor.Color != nil {
		color = *binding.Sensor.Color
	}

	return SensorWidget{
		WidgetID:        strings.ToLower(fmt.Sprintf("%s_%s_%s", node.ID, binding.ID, mtype)),
		NodeID:          node.ID,
		NodeName:        node.Name,
		BindingID:       binding.ID,
		SensorID:        binding.SensorID,
		MeasurementType: mtype,
		SensorName:      binding.Sensor.Name,
		Label:           binding.Sensor.Name,
		LocationName:    location,
		Unit:            latest.Unit,
		Color:           color,
		CurrentValue:    round2(latest.Value),
		LastUpdate:      latest.Timestamp,
		MinMax: MinMax{
			MinValue:     round2(minR.Value),
			MinTimestamp: minR.Timestamp,
			MaxValue:     round2(maxR.Value),
			MaxTimestamp: maxR.Timestamp,
		},
		DataPoints: sparkline,
	}
}

func filterNodesByLocation(nodes []*models.Node, locations []string) []*models.Node {
	if len(locations) == 0 {
		return nodes
	}
	wanted := lowerSet(locations)
	filtered := make([]*models.Node, 0, len(nodes))
	for _, n := range nodes {
		if wanted[strings.ToLower(n.Location())] {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

func lowerSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}

func locationIcon(name string) string {
	if icon, ok := locationIcons[strings.ToLower(name)]; ok {
		return icon
	}
	return defaultLocationIcon
}

func displayNameFor(measurementType string) string {
	if name, ok := measurementDisplayNames[measurementType]; ok {
		return name
	}
	words := strings.Split(measurementType, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
