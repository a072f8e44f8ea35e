package vehicles

import (
	"context"
	"errors"
	"strings"
	"time"

	"evms-backend/internal/auth"
	"evms-backend/internal/httpx"
	"evms-backend/internal/users"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound              = errors.New("vehicle not found")
	ErrForbidden             = errors.New("forbidden")
	ErrDuplicatePlate        = errors.New("license plate already registered")
	ErrOwnerRequired         = errors.New("owner required")
	ErrOwnerNotFound         = errors.New("owner not found")
	ErrHasActiveAppointments = errors.New("vehicle has active appointments")
)

var SortFields = []string{"createdAt", "licensePlate", "brand", "year"}

type UserReader interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// ActiveAppointments reports how many pending, confirmed or in-progress appointments reference a vehicle.
type ActiveAppointments interface {
	CountActiveForVehicle(ctx context.Context, vehicleID string) (int64, error)
}

type Service struct {
	repo         Repository
	users        UserReader
	appointments ActiveAppointments
	location     *time.Location
	now          func() time.Time
}

func NewService(repo Repository, userReader UserReader, appointments ActiveAppointments, location *time.Location) *Service {
	return &Service{
		repo:         repo,
		users:        userReader,
		appointments: appointments,
		location:     location,
		now:          time.Now,
	}
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

func (s *Service) Create(ctx context.Context, caller auth.Principal, req CreateRequest) (Vehicle, error) {
	ownerID := strings.TrimSpace(req.OwnerID)
	switch {
	case caller.Is(auth.RoleCustomer):
		ownerID = caller.UserID
	case caller.IsBackOffice():
		if ownerID == "" {
			return Vehicle{}, ErrOwnerRequired
		}
		owner, err := s.users.Get(ctx, ownerID)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				return Vehicle{}, ErrOwnerNotFound
			}
			return Vehicle{}, err
		}
		if owner.Role != auth.RoleCustomer {
			return Vehicle{}, ErrOwnerNotFound
		}
	default:
		return Vehicle{}, ErrForbidden
	}

	now := s.now().In(s.location)
	vehicle := Vehicle{
		ID:                 primitive.NewObjectID().Hex(),
		OwnerID:            ownerID,
		Brand:              strings.TrimSpace(req.Brand),
		Model:              strings.TrimSpace(req.Model),
		Year:               req.Year,
		LicensePlate:       normalizePlate(req.LicensePlate),
		VIN:                strings.ToUpper(strings.TrimSpace(req.VIN)),
		BatteryCapacityKwh: req.BatteryCapacityKwh,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, vehicle); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Vehicle{}, ErrDuplicatePlate
		}
		return Vehicle{}, err
	}
	return vehicle, nil
}

func (s *Service) List(ctx context.Context, caller auth.Principal, filter ListFilter, page httpx.Page, sort httpx.Sort) ([]Vehicle, int64, error) {
	filter.OwnerID = strings.TrimSpace(filter.OwnerID)
	filter.Query = strings.TrimSpace(filter.Query)
	switch {
	case caller.Is(auth.RoleCustomer):
		filter.OwnerID = caller.UserID
	case caller.IsBackOffice():
	default:
		return nil, 0, ErrForbidden
	}

	items, err := s.repo.List(ctx, filter, page, sort)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Get returns a vehicle visible to the caller. Technicians may read vehicles for their jobs.
func (s *Service) Get(ctx context.Context, caller auth.Principal, id string) (Vehicle, error) {
	vehicle, err := s.get(ctx, id)
	if err != nil {
		return Vehicle{}, err
	}
	if caller.Is(auth.RoleCustomer) && vehicle.OwnerID != caller.UserID {
		return Vehicle{}, ErrForbidden
	}
	return vehicle, nil
}

// GetMany is used to embed vehicles in appointment listings; missing ids are skipped.
func (s *Service) GetMany(ctx context.Context, ids []string) (map[string]Vehicle, error) {
	out := make(map[string]Vehicle, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	items, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, v := range items {
		out[v.ID] = v
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, caller auth.Principal, id string, req UpdateRequest) (Vehicle, error) {
	vehicle, err := s.get(ctx, id)
	if err != nil {
		return Vehicle{}, err
	}
	if !(caller.IsBackOffice() || (caller.Is(auth.RoleCustomer) && vehicle.OwnerID == caller.UserID)) {
		return Vehicle{}, ErrForbidden
	}

	updated, err := s.repo.Update(ctx, vehicle.ID, bson.M{
		"brand":              strings.TrimSpace(req.Brand),
		"model":              strings.TrimSpace(req.Model),
		"year":               req.Year,
		"licensePlate":       normalizePlate(req.LicensePlate),
		"vin":                strings.ToUpper(strings.TrimSpace(req.VIN)),
		"batteryCapacityKwh": req.BatteryCapacityKwh,
		"updatedAt":          s.now().In(s.location),
	})
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return Vehicle{}, ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return Vehicle{}, ErrDuplicatePlate
		}
		return Vehicle{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, caller auth.Principal, id string) error {
	vehicle, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !(caller.Is(auth.RoleAdmin) || (caller.Is(auth.RoleCustomer) && vehicle.OwnerID == caller.UserID)) {
		return ErrForbidden
	}

	active, err := s.appointments.CountActiveForVehicle(ctx, vehicle.ID)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrHasActiveAppointments
	}

	if err := s.repo.Delete(ctx, vehicle.ID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Service) get(ctx context.Context, id string) (Vehicle, error) {
	vehicle, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Vehicle{}, ErrNotFound
		}
		return Vehicle{}, err
	}
	return vehicle, nil
}
