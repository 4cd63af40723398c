package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"sensegrid/backend/services/hub-service/internal/models"
	"sensegrid/backend/services/hub-service/internal/repository"
)

type fakeHubStore struct {
	hubs []*models.Hub
}

func (f *fakeHubStore) GetByExternalID(_ context.Context, tenantID uuid.UUID, externalID string) (*models.Hub, error) {
	for _, h := range f.hubs {
		if h.TenantID == tenantID && h.ExternalID == externalID {
			return h, nil
		}
	}
	return nil, nil
}

func (f *fakeHubStore) GetByID(_ context.Context, tenantID, id uuid.UUID) (*models.Hub, error) {
	for _, h := range f.hubs {
		if h.TenantID == tenantID && h.ID == id {
			return h, nil
		}
	}
	return nil, nil
}

func (f *fakeHubStore) GetDefault(_ context.Context, tenantID uuid.UUID) (*models.Hub, error) {
	for _, h := range f.hubs {
		if h.TenantID == tenantID && h.IsDefault {
			return h, nil
		}
	}
	return nil, nil
}

func (f *fakeHubStore) GetOrCreate(ctx context.Context, tenantID uuid.UUID, externalID string) (*models.Hub, error) {
	if h, _ := f.GetByExternalID(ctx, tenantID, externalID); h != nil {
		return h, nil
	}
	h := &models.Hub{ID: uuid.New(), TenantID: tenantID, ExternalID: externalID, Name: externalID}
	f.hubs = append(f.hubs, h)
	return h, nil
}

type fakeNodeStore struct {
	nodes   []*models.Node
	touched map[uuid.UUID]time.Time
}

func (f *fakeNodeStore) GetByID(_ context.Context, _ uuid.UUID, id uuid.UUID) (*models.Node, error) {
	for _, n := range f.nodes {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, nil
}

func (f *fakeNodeStore) GetByExternalID(_ context.Context, _ uuid.UUID, externalID string) (*models.Node, error) {
	for _, n := range f.nodes {
		if n.ExternalID == externalID {
			return n, nil
		}
	}
	return nil, nil
}

func (f *fakeNodeStore) GetOrCreate(ctx context.Context, hubID uuid.UUID, externalID string) (*models.Node, error) {
	if n, _ := f.GetByExternalID(ctx, uuid.Nil, externalID); n != nil {
		return n, nil
	}
	n := &models.Node{ID: uuid.New(), HubID: hubID, ExternalID: externalID, Name: externalID}
	f.nodes = append(f.nodes, n)
	return n, nil
}

func (f *fakeNodeStore) TouchLastSeen(_ context.Context, id uuid.UUID, at time.Time) error {
	if f.touched == nil {
		f.touched = make(map[uuid.UUID]time.Time)
	}
	f.touched[id] = at
	return nil
}

func (f *fakeNodeStore) ListByTenant(_ context.Context, _ uuid.UUID) ([]*models.Node, error) {
	return f.nodes, nil
}

func (f *fakeNodeStore) Locations(_ context.Context, _ uuid.UUID) ([]string, error) {
	seen := make(map[string]bool)
	var locations []string
	for _, n := range f.nodes {
		if n.LocationName == nil || *n.LocationName == "" {
			continue
		}
		if !seen[*n.LocationName] {
			seen[*n.LocationName] = true
			locations = append(locations, *n.LocationName)
		}
	}
	sort.Strings(locations)
	return locations, nil
}

type fakeBindingStore struct {
	bindings []*models.Binding
}

func (f *fakeBindingStore) GetByEndpoint(_ context.Context, nodeID uuid.UUID, endpointID int) (*models.Binding, error) {
	for _, b := range f.bindings {
		if b.NodeID == nodeID && b.EndpointID == endpointID {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakeBindingStore) GetByID(_ context.Context, nodeID, bindingID uuid.UUID) (*models.Binding, error) {
	for _, b := range f.bindings {
		if b.NodeID == nodeID && b.ID == bindingID {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakeBindingStore) ListActiveByNode(_ context.Context, nodeID uuid.UUID) ([]*models.Binding, error) {
	var active []*models.Binding
	for _, b := range f.bindings {
		if b.NodeID == nodeID && b.Active {
			active = append(active, b)
		}
	}
	return active, nil
}

func (f *fakeBindingStore) FindActiveByCapability(_ context.Context, nodeID uuid.UUID, measurementType string) (*models.Binding, error) {
	for _, b := range f.bindings {
		if b.NodeID == nodeID && b.Active && b.Sensor != nil && b.Sensor.Capability(measurementType) != nil {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakeBindingStore) Create(_ context.Context, b *models.Binding) error {
	for _, existing := range f.bindings {
		if existing.NodeID == b.NodeID && existing.EndpointID == b.EndpointID {
			return repository.ErrDuplicateEndpoint
		}
	}
	f.bindings = append(f.bindings, b)
	return nil
}

type fakeReadingStore struct {
	readings []models.Reading
	nextID   int64
}

func (f *fakeReadingStore) Insert(_ context.Context, reading *models.Reading) error {
	f.nextID++
	reading.ID = f.nextID
	f.readings = append(f.readings, *reading)
	return nil
}

func (f *fakeReadingStore) InsertBatch(ctx context.Context, readings []*models.Reading) error {
	for _, r := range readings {
		if err := f.Insert(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeReadingStore) matches(r models.Reading, tenantID, nodeID, bindingID uuid.UUID, measurementType string) bool {
	return r.TenantID == tenantID &&
		r.NodeID == nodeID &&
		r.BindingID != nil && *r.BindingID == bindingID &&
		strings.EqualFold(r.MeasurementType, measurementType)
}

func (f *fakeReadingStore) Series(_ context.Context, tenantID, nodeID, bindingID uuid.UUID, measurementType string, from time.Time) ([]models.Reading, error) {
	var out []models.Reading
	for _, r := range f.readings {
		if f.matches(r, tenantID, nodeID, bindingID, measurementType) && !r.Timestamp.Before(from) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (f *fakeReadingStore) window(tenantID, nodeID, bindingID uuid.UUID, measurementType string, filter repository.WindowFilter) []models.Reading {
	var out []models.Reading
	for _, r := range f.readings {
		if !f.matches(r, tenantID, nodeID, bindingID, measurementType) {
			continue
		}
		if filter.From != nil && r.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && r.Timestamp.After(*filter.To) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (f *fakeReadingStore) CountWindow(_ context.Context, tenantID, nodeID, bindingID uuid.UUID, measurementType string, filter repository.WindowFilter) (int, error) {
	return len(f.window(tenantID, nodeID, bindingID, measurementType, filter)), nil
}

func (f *fakeReadingStore) Window(_ context.Context, tenantID, nodeID, bindingID uuid.UUID, measurementType string, filter repository.WindowFilter, limit, offset int) ([]models.Reading, error) {
	out := f.window(tenantID, nodeID, bindingID, measurementType, filter)
	if limit <= 0 {
		return out, nil
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (f *fakeReadingStore) ListSince(_ context.Context, tenantID uuid.UUID, since time.Time, measurementTypes []string) ([]models.Reading, error) {
	wanted := make(map[string]bool)
	for _, t := range measurementTypes {
		wanted[strings.ToLower(t)] = true
	}
	var out []models.Reading
	for _, r := range f.readings {
		if r.TenantID != tenantID || r.Timestamp.Before(since) {
			continue
		}
		if len(wanted) > 0 && !wanted[strings.ToLower(r.MeasurementType)] {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (f *fakeReadingStore) MeasurementTypes(_ context.Context, tenantID uuid.UUID) ([]string, error) {
	seen := make(map[string]bool)
	var types []string
	for _, r := range f.readings {
		if r.TenantID != tenantID {
			continue
		}
		t := strings.ToLower(r.MeasurementType)
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types, nil
}

func (f *fakeReadingStore) ListUnsynced(_ context.Context, tenantID uuid.UUID, limit int) ([]models.Reading, error) {
	var out []models.Reading
	for _, r := range f.readings {
		if r.TenantID == tenantID && !r.Synced {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeReadingStore) MarkSynced(_ context.Context, ids []int64) error {
	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	for i := range f.readings {
		if wanted[f.readings[i].ID] {
			f.readings[i].Synced = true
		}
	}
	return nil
}

func (f *fakeReadingStore) DeleteRange(_ context.Context, tenantID, nodeID uuid.UUID, from, to time.Time, bindingID *uuid.UUID, measurementType string) (int64, error) {
	var kept []models.Reading
	var deleted int64
	for _, r := range f.readings {
		drop := r.TenantID == tenantID && r.NodeID == nodeID &&
			!r.Timestamp.Before(from) && !r.Timestamp.After(to)
		if drop && bindingID != nil {
			drop = r.BindingID != nil && *r.BindingID == *bindingID
		}
		if drop && measurementType != "" {
			drop = strings.EqualFold(r.MeasurementType, measurementType)
		}
		if drop {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.readings = kept
	return deleted, nil
}

type fakeAlertTypeStore struct {
	types []*models.AlertType
}

func (f *fakeAlertTypeStore) GetByCode(_ context.Context, code string) (*models.AlertType, error) {
	for _, t := range f.types {
		if t.Code == strings.ToLower(code) {
			return t, nil
		}
	}
	return nil, nil
}

type fakeAlertStore struct {
	alerts []*models.Alert
}

func (f *fakeAlertStore) Insert(_ context.Context, a *models.Alert) error {
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeAlertStore) GetByID(_ context.Context, tenantID, id uuid.UUID) (*models.Alert, error) {
	for _, a := range f.alerts {
		if a.TenantID == tenantID && a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func sameScope(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeAlertStore) GetActiveByScope(_ context.Context, tenantID, alertTypeID uuid.UUID, hubID, nodeID *uuid.UUID) (*models.Alert, error) {
	for _, a := range f.alerts {
		if a.TenantID == tenantID && a.AlertTypeID == alertTypeID && a.Active &&
			sameScope(a.HubID, hubID) && sameScope(a.NodeID, nodeID) {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeAlertStore) Acknowledge(_ context.Context, tenantID, id uuid.UUID, at time.Time) (bool, error) {
	for _, a := range f.alerts {
		if a.TenantID == tenantID && a.ID == id {
			a.Active = false
			a.AcknowledgedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAlertStore) ListActive(_ context.Context, tenantID uuid.UUID) ([]models.Alert, error) {
	var out []models.Alert
	for _, a := range f.alerts {
		if a.TenantID == tenantID && a.Active {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeAlertStore) filtered(tenantID uuid.UUID, filter repository.AlertFilter) []models.Alert {
	var out []models.Alert
	for _, a := range f.alerts {
		if a.TenantID != tenantID {
			continue
		}
		if filter.HubID != nil && !sameScope(a.HubID, filter.HubID) {
			continue
		}
		if filter.NodeID != nil && !sameScope(a.NodeID, filter.NodeID) {
			continue
		}
		if filter.TypeCode != nil && a.TypeCode != strings.ToLower(*filter.TypeCode) {
			continue
		}
		if filter.Severity != nil && a.Severity != *filter.Severity {
			continue
		}
		if filter.Source != nil && a.Source != *filter.Source {
			continue
		}
		if filter.Active != nil && a.Active != *filter.Active {
			continue
		}
		if filter.Acknowledged != nil && (a.AcknowledgedAt != nil) != *filter.Acknowledged {
			continue
		}
		if filter.From != nil && a.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && a.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (f *fakeAlertStore) CountFiltered(_ context.Context, tenantID uuid.UUID, filter repository.AlertFilter) (int, error) {
	return len(f.filtered(tenantID, filter)), nil
}

func (f *fakeAlertStore) ListFiltered(_ context.Context, tenantID uuid.UUID, filter repository.AlertFilter, limit, offset int) ([]models.Alert, error) {
	out := f.filtered(tenantID, filter)
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (f *fakeAlertStore) DeactivateScope(_ context.Context, tenantID, alertTypeID uuid.UUID, hubID, nodeID *uuid.UUID) error {
	for _, a := range f.alerts {
		if a.TenantID == tenantID && a.AlertTypeID == alertTypeID && a.Active &&
			sameScope(a.HubID, hubID) && sameScope(a.NodeID, nodeID) {
			a.Active = false
		}
	}
	return nil
}

type fakeNotifier struct {
	readings     []*models.Reading
	raised       []*models.Alert
	acknowledged []*models.Alert
}

func (f *fakeNotifier) ReadingCreated(r *models.Reading) { f.readings = append(f.readings, r) }

func (f *fakeNotifier) AlertRaised(a *models.Alert) { f.raised = append(f.raised, a) }

func (f *fakeNotifier) AlertAcknowledged(a *models.Alert) {
	f.acknowledged = append(f.acknowledged, a)
}

// syncDispatcher runs dispatched tasks inline so tests can assert on their
// effects without waiting.
type syncDispatcher struct {
	names []string
}

func (d *syncDispatcher) Dispatch(name string, run func(ctx context.Context) error) {
	d.names = append(d.names, name)
	_ = run(context.Background())
}

type fakeBridge struct {
	registered []string
	states     map[string]bool
	err        error
}

func (f *fakeBridge) RegisterContact(_ context.Context, deviceID, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.registered = append(f.registered, deviceID)
	return nil
}

func (f *fakeBridge) SetContactState(_ context.Context, deviceID string, open bool) error {
	if f.err != nil {
		return f.err
	}
	if f.states == nil {
		f.states = make(map[string]bool)
	}
	f.states[deviceID] = open
	return nil
}

type pushMessage struct {
	title    string
	body     string
	severity string
}

type fakePusher struct {
	sent []pushMessage
	err  error
}

func (f *fakePusher) Send(_ context.Context, title, body, severity string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, pushMessage{title: title, body: body, severity: severity})
	return nil
}

type fakeLiveness struct {
	touched map[uuid.UUID]time.Time
}

func (f *fakeLiveness) Touch(_ context.Context, nodeID uuid.UUID, at time.Time) error {
	if f.touched == nil {
		f.touched = make(map[uuid.UUID]time.Time)
	}
	f.touched[nodeID] = at
	return nil
}

func (f *fakeLiveness) LastSeen(_ context.Context, nodeID uuid.UUID) (*time.Time, error) {
	if at, ok := f.touched[nodeID]; ok {
		return &at, nil
	}
	return nil, nil
}
