package appointments

import (
	"context"
	"sync"
	"time"

	"evms-backend/internal/auth"
	"evms-backend/internal/events"
	"evms-backend/internal/httpx"
	"evms-backend/internal/schedule"
	"evms-backend/internal/servicepackages"
	"evms-backend/internal/users"
	"evms-backend/internal/vehicles"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type memoryRepo struct {
	mu     sync.Mutex
	items  map[string]Appointment
	writes int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[string]Appointment{}}
}

func (m *memoryRepo) put(appt Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[appt.ID] = appt
}

func (m *memoryRepo) Create(_ context.Context, appt Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.items[appt.ID] = appt
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return Appointment{}, mongo.ErrNoDocuments
	}
	return a, nil
}

func (m *memoryRepo) matches(a Appointment, f ListFilter) bool {
	if f.UserID != "" && a.UserID != f.UserID {
		return false
	}
	if f.TechnicianID != "" && !a.HasTechnician(f.TechnicianID) {
		return false
	}
	if f.VehicleID != "" && a.VehicleID != f.VehicleID {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, a.Status) {
		return false
	}
	if f.From != nil && a.BookingTime.Before(*f.From) {
		return false
	}
	if f.To != nil && a.BookingTime.After(*f.To) {
		return false
	}
	return true
}

func (m *memoryRepo) List(_ context.Context, f ListFilter, _ httpx.Page, _ httpx.Sort) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Appointment{}
	for _, a := range m.items {
		if m.matches(a, f) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRepo) Count(ctx context.Context, f ListFilter) (int64, error) {
	items, _ := m.List(ctx, f, httpx.Page{}, httpx.Sort{})
	return int64(len(items)), nil
}

func (m *memoryRepo) FindConflicts(_ context.Context, excludeID string, technicianIDs []string, window schedule.Window) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Appointment{}
	for _, a := range m.items {
		if a.ID == excludeID || !contains(BusyStatuses, a.Status) || !window.Contains(a.BookingTime) {
			continue
		}
		for _, id := range technicianIDs {
			if a.HasTechnician(id) {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (m *memoryRepo) UpdateIfStatus(_ context.Context, id string, expected []string, set bson.M) (Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok || !contains(expected, a.Status) {
		return Appointment{}, mongo.ErrNoDocuments
	}
	m.writes++
	for k, v := range set {
		switch k {
		case "status":
			a.Status = v.(string)
		case "reason":
			a.Reason = v.(string)
		case "updatedAt":
			a.UpdatedAt = v.(time.Time)
		case "technicianLeadId":
			a.TechnicianLeadID = v.(string)
		case "technicianSupport1Id":
			a.TechnicianSupport1ID = v.(string)
		case "technicianSupport2Id":
			a.TechnicianSupport2ID = v.(string)
		}
	}
	m.items[id] = a
	return a, nil
}

func (m *memoryRepo) CountActiveForVehicle(_ context.Context, vehicleID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.items {
		if a.VehicleID == vehicleID && contains(ActiveStatuses, a.Status) {
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type staticUsers map[string]users.User

func (s staticUsers) Get(_ context.Context, id string) (users.User, error) {
	u, ok := s[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

type staticVehicles map[string]vehicles.Vehicle

func (s staticVehicles) Get(_ context.Context, caller auth.Principal, id string) (vehicles.Vehicle, error) {
	v, ok := s[id]
	if !ok {
		return vehicles.Vehicle{}, vehicles.ErrNotFound
	}
	if caller.Is(auth.RoleCustomer) && v.OwnerID != caller.UserID {
		return vehicles.Vehicle{}, vehicles.ErrForbidden
	}
	return v, nil
}

func (s staticVehicles) GetMany(_ context.Context, ids []string) (map[string]vehicles.Vehicle, error) {
	out := map[string]vehicles.Vehicle{}
	for _, id := range ids {
		if v, ok := s[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type staticPackages map[string]servicepackages.Package

func (s staticPackages) Get(_ context.Context, id string) (servicepackages.Package, error) {
	p, ok := s[id]
	if !ok {
		return servicepackages.Package{}, servicepackages.ErrNotFound
	}
	return p, nil
}

func (s staticPackages) GetActive(ctx context.Context, id string) (servicepackages.Package, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return p, err
	}
	if !p.Active {
		return servicepackages.Package{}, servicepackages.ErrInactive
	}
	return p, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
