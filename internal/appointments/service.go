package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"evms-backend/internal/auth"
	"evms-backend/internal/events"
	"evms-backend/internal/httpx"
	"evms-backend/internal/lock"
	"evms-backend/internal/notifications"
	"evms-backend/internal/schedule"
	"evms-backend/internal/servicepackages"
	"evms-backend/internal/users"
	"evms-backend/internal/vehicles"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound            = errors.New("appointment not found")
	ErrForbidden           = errors.New("forbidden")
	ErrBookingInPast       = errors.New("booking time must be in the future")
	ErrOutsideOpeningHours = errors.New("booking time outside opening hours")
	ErrServiceRequired     = errors.New("service type or package required")
	ErrPackageUnavailable  = errors.New("service package unavailable")
	ErrVehicleNotFound     = errors.New("vehicle not found")
	ErrVehicleNotOwned     = errors.New("vehicle does not belong to user")
	ErrNoTechnician        = errors.New("at least one technician required")
	ErrDuplicateTechnician = errors.New("technician ids must be distinct")
	ErrInvalidTechnician   = errors.New("technician not found or disabled")
	ErrTechnicianConflict  = errors.New("technician schedule conflict")
	ErrNotAssignable       = errors.New("appointment cannot be assigned")
	ErrNotCancellable      = errors.New("appointment cannot be cancelled")
	ErrCancelCutoff        = errors.New("appointments cannot be cancelled less than 2 hours before booking")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrStatusChanged       = errors.New("appointment changed concurrently")
	ErrAssignmentBusy      = errors.New("technician assignment in progress")
)

var SortFields = []string{"bookingTime", "createdAt", "status"}

type UserReader interface {
	Get(ctx context.Context, id string) (users.User, error)
}

type VehicleReader interface {
	Get(ctx context.Context, caller auth.Principal, id string) (vehicles.Vehicle, error)
	GetMany(ctx context.Context, ids []string) (map[string]vehicles.Vehicle, error)
}

type PackageReader interface {
	Get(ctx context.Context, id string) (servicepackages.Package, error)
	GetActive(ctx context.Context, id string) (servicepackages.Package, error)
}

type Notifier interface {
	SendAppointmentBooked(ctx context.Context, notice notifications.AppointmentNotice) (string, error)
	SendAppointmentAssigned(ctx context.Context, notice notifications.AppointmentNotice) (string, error)
	SendAppointmentCancelled(ctx context.Context, notice notifications.AppointmentNotice) (string, error)
}

type Deps struct {
	Users    UserReader
	Vehicles VehicleReader
	Packages PackageReader
	Locker   lock.Locker
	LockTTL  time.Duration
	Events   events.Publisher
	Notifier Notifier
	Location *time.Location
	Log      *slog.Logger
}

type Service struct {
	repo     Repository
	users    UserReader
	vehicles VehicleReader
	packages PackageReader
	locker   lock.Locker
	lockTTL  time.Duration
	events   events.Publisher
	notifier Notifier
	location *time.Location
	log      *slog.Logger
	now      func() time.Time
	async    func(func())
}

func NewService(repo Repository, deps Deps) *Service {
	s := &Service{
		repo:     repo,
		users:    deps.Users,
		vehicles: deps.Vehicles,
		packages: deps.Packages,
		locker:   deps.Locker,
		lockTTL:  deps.LockTTL,
		events:   deps.Events,
		notifier: deps.Notifier,
		location: deps.Location,
		log:      deps.Log,
		now:      time.Now,
		async:    func(f func()) { go f() },
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 10 * time.Second
	}
	if s.events == nil {
		s.events = events.NewNoop()
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

func (s *Service) Create(ctx context.Context, caller auth.Principal, req CreateRequest) (Appointment, error) {
	if !caller.Is(auth.RoleCustomer, auth.RoleStaff, auth.RoleAdmin) {
		return Appointment{}, ErrForbidden
	}

	booking := stamp(req.BookingTime)
	if schedule.IsPast(booking, s.now()) {
		return Appointment{}, ErrBookingInPast
	}
	if !schedule.IsWithinOpeningHours(booking, s.location) {
		return Appointment{}, ErrOutsideOpeningHours
	}

	serviceType := strings.TrimSpace(req.ServiceType)
	packageID := strings.TrimSpace(req.PackageID)
	if serviceType == "" && packageID == "" {
		return Appointment{}, ErrServiceRequired
	}
	if packageID != "" {
		if _, err := s.packages.GetActive(ctx, packageID); err != nil {
			if errors.Is(err, servicepackages.ErrNotFound) || errors.Is(err, servicepackages.ErrInactive) {
				return Appointment{}, ErrPackageUnavailable
			}
			return Appointment{}, err
		}
	}

	vehicle, err := s.vehicles.Get(ctx, caller, strings.TrimSpace(req.VehicleID))
	if err != nil {
		switch {
		case errors.Is(err, vehicles.ErrNotFound):
			return Appointment{}, ErrVehicleNotFound
		case errors.Is(err, vehicles.ErrForbidden):
			return Appointment{}, ErrVehicleNotOwned
		}
		return Appointment{}, err
	}

	userID := caller.UserID
	if caller.IsBackOffice() {
		userID = strings.TrimSpace(req.UserID)
		if userID == "" {
			userID = vehicle.OwnerID
		}
	}
	if vehicle.OwnerID != userID {
		return Appointment{}, ErrVehicleNotOwned
	}

	now := stamp(s.now())
	appt := Appointment{
		ID:          primitive.NewObjectID().Hex(),
		UserID:      userID,
		VehicleID:   vehicle.ID,
		ServiceType: serviceType,
		PackageID:   packageID,
		BookingTime: booking,
		Status:      StatusPending,
		Reason:      strings.TrimSpace(req.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return Appointment{}, err
	}

	s.afterWrite(events.AppointmentCreated, caller.UserID, appt, Notifier.SendAppointmentBooked)
	return appt, nil
}

func (s *Service) Get(ctx context.Context, caller auth.Principal, id string) (Appointment, error) {
	appt, err := s.get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if !canView(caller, appt) {
		return Appointment{}, ErrForbidden
	}
	return appt, nil
}

func (s *Service) List(ctx context.Context, caller auth.Principal, filter ListFilter, page httpx.Page, sort httpx.Sort, withVehicle bool) ([]View, int64, error) {
	switch {
	case caller.Is(auth.RoleCustomer):
		filter.UserID = caller.UserID
	case caller.Is(auth.RoleTechnician):
		filter.TechnicianID = caller.UserID
	case caller.IsBackOffice():
	default:
		return nil, 0, ErrForbidden
	}
	for i, st := range filter.Statuses {
		st = strings.ToLower(strings.TrimSpace(st))
		if !IsValidStatus(st) {
			return nil, 0, ErrInvalidStatus
		}
		filter.Statuses[i] = st
	}

	items, err := s.repo.List(ctx, filter, page, sort)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	views := make([]View, len(items))
	for i, appt := range items {
		views[i] = View{Appointment: appt}
	}
	if withVehicle && len(items) > 0 {
		ids := make([]string, 0, len(items))
		for _, appt := range items {
			ids = append(ids, appt.VehicleID)
		}
		byID, err := s.vehicles.GetMany(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for i := range views {
			if v, ok := byID[views[i].VehicleID]; ok {
				v := v
				views[i].Vehicle = &v
			}
		}
	}
	return views, total, nil
}

// Assign sets the supplied technician slots after checking that none of them is busy
// inside the booking's conflict window. The check and the write run under a per-technician lock.
func (s *Service) Assign(ctx context.Context, caller auth.Principal, id string, req AssignRequest) (Appointment, error) {
	supplied := req.Supplied()
	if len(supplied) == 0 {
		return Appointment{}, ErrNoTechnician
	}
	requested := make([]string, 0, len(supplied))
	for _, field := range technicianFields {
		if techID, ok := supplied[field]; ok {
			requested = append(requested, techID)
		}
	}
	if !distinct(requested) {
		return Appointment{}, ErrDuplicateTechnician
	}
	for _, techID := range requested {
		if err := s.checkTechnician(ctx, techID); err != nil {
			return Appointment{}, err
		}
	}

	// Checked once before locking to fail fast, and again under the lock.
	appt, err := s.get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if err := checkAssignable(appt, supplied); err != nil {
		return Appointment{}, err
	}

	keys := make([]string, 0, len(requested)+1)
	keys = append(keys, "appointment:"+appt.ID)
	for _, techID := range requested {
		keys = append(keys, "technician:"+techID)
	}
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTTL)
	release, err := s.locker.Acquire(lockCtx, keys, s.lockTTL)
	cancel()
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return Appointment{}, ErrAssignmentBusy
		}
		return Appointment{}, fmt.Errorf("acquire technician lock: %w", err)
	}
	defer release()

	appt, err = s.get(ctx, appt.ID)
	if err != nil {
		return Appointment{}, err
	}
	if err := checkAssignable(appt, supplied); err != nil {
		return Appointment{}, err
	}

	conflicts, err := s.repo.FindConflicts(ctx, appt.ID, requested, schedule.ConflictWindow(appt.BookingTime))
	if err != nil {
		return Appointment{}, err
	}
	if len(conflicts) > 0 {
		return Appointment{}, &ConflictError{Conflicts: conflicts}
	}

	set := bson.M{"updatedAt": stamp(s.now())}
	for field, techID := range supplied {
		set[field] = techID
	}
	if appt.Status == StatusPending {
		set["status"] = StatusConfirmed
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		set["reason"] = appendReason(appt.Reason, "Assignment note: "+notes)
	}

	updated, err := s.repo.UpdateIfStatus(ctx, appt.ID, []string{appt.Status}, set)
	if err != nil {
		return Appointment{}, s.updateError(ctx, appt.ID, err)
	}

	s.afterWrite(events.AppointmentAssigned, caller.UserID, updated, Notifier.SendAppointmentAssigned)
	return updated, nil
}

// checkAssignable rejects closed appointments and assignments that would list one technician twice.
func checkAssignable(appt Appointment, supplied map[string]string) error {
	if appt.Status == StatusCancelled || appt.Status == StatusCompleted {
		return ErrNotAssignable
	}
	merged := appt
	if v, ok := supplied["technicianLeadId"]; ok {
		merged.TechnicianLeadID = v
	}
	if v, ok := supplied["technicianSupport1Id"]; ok {
		merged.TechnicianSupport1ID = v
	}
	if v, ok := supplied["technicianSupport2Id"]; ok {
		merged.TechnicianSupport2ID = v
	}
	if !distinct(merged.TechnicianIDs()) {
		return ErrDuplicateTechnician
	}
	return nil
}

func (s *Service) Cancel(ctx context.Context, caller auth.Principal, id, reason string) (Appointment, error) {
	appt, err := s.get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	switch {
	case caller.IsBackOffice():
	case caller.Is(auth.RoleCustomer) && appt.UserID == caller.UserID:
	default:
		return Appointment{}, ErrForbidden
	}

	switch appt.Status {
	case StatusCancelled, StatusCompleted, StatusInProgress:
		return Appointment{}, ErrNotCancellable
	}
	if caller.Is(auth.RoleCustomer) && !schedule.CanCustomerCancel(appt.BookingTime, s.now()) {
		return Appointment{}, ErrCancelCutoff
	}

	set := bson.M{
		"status":    StatusCancelled,
		"updatedAt": stamp(s.now()),
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		set["reason"] = appendReason(appt.Reason, "Cancellation reason: "+reason)
	}

	updated, err := s.repo.UpdateIfStatus(ctx, appt.ID, []string{appt.Status}, set)
	if err != nil {
		return Appointment{}, s.updateError(ctx, appt.ID, err)
	}

	s.afterWrite(events.AppointmentCancelled, caller.UserID, updated, Notifier.SendAppointmentCancelled)
	return updated, nil
}

// UpdateStatus moves an appointment along pending → confirmed → in_progress → completed.
// Technicians may only start or complete work they are assigned to.
func (s *Service) UpdateStatus(ctx context.Context, caller auth.Principal, id, status string) (Appointment, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !IsValidStatus(status) {
		return Appointment{}, ErrInvalidStatus
	}
	appt, err := s.get(ctx, id)
	if err != nil {
		return Appointment{}, err
	}

	switch {
	case caller.IsBackOffice():
	case caller.Is(auth.RoleTechnician) && appt.HasTechnician(caller.UserID):
		if status != StatusInProgress && status != StatusCompleted {
			return Appointment{}, ErrForbidden
		}
	default:
		return Appointment{}, ErrForbidden
	}
	if !CanTransition(appt.Status, status) {
		return Appointment{}, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateIfStatus(ctx, appt.ID, []string{appt.Status}, bson.M{
		"status":    status,
		"updatedAt": stamp(s.now()),
	})
	if err != nil {
		return Appointment{}, s.updateError(ctx, appt.ID, err)
	}

	if status == StatusCancelled {
		s.afterWrite(events.AppointmentCancelled, caller.UserID, updated, Notifier.SendAppointmentCancelled)
	} else {
		s.afterWrite(events.AppointmentStatusChanged, caller.UserID, updated, nil)
	}
	return updated, nil
}

// CountActiveForVehicle backs the vehicle delete guard.
func (s *Service) CountActiveForVehicle(ctx context.Context, vehicleID string) (int64, error) {
	return s.repo.CountActiveForVehicle(ctx, vehicleID)
}

func (s *Service) checkTechnician(ctx context.Context, id string) error {
	user, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrInvalidTechnician, id)
		}
		return err
	}
	if user.Role != auth.RoleTechnician || user.Disabled {
		return fmt.Errorf("%w: %s", ErrInvalidTechnician, id)
	}
	return nil
}

func (s *Service) get(ctx context.Context, id string) (Appointment, error) {
	appt, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, err
	}
	return appt, nil
}

// updateError tells a vanished appointment apart from one whose status moved under us.
func (s *Service) updateError(ctx context.Context, id string, err error) error {
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	if _, getErr := s.get(ctx, id); getErr != nil {
		return getErr
	}
	return ErrStatusChanged
}

type sendFunc func(Notifier, context.Context, notifications.AppointmentNotice) (string, error)

func (s *Service) afterWrite(eventType, actorID string, appt Appointment, send sendFunc) {
	s.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()

		err := s.events.Publish(ctx, events.Event{
			Type:       eventType,
			Key:        appt.ID,
			ActorID:    actorID,
			OccurredAt: s.now().UTC(),
			Payload:    appt,
		})
		if err != nil {
			s.log.Warn("appointments: event publish failed",
				slog.String("event", eventType),
				slog.String("appointment_id", appt.ID),
				slog.String("error", err.Error()),
			)
		}

		if send == nil || s.notifier == nil {
			return
		}
		notice, err := s.notice(ctx, appt)
		if err != nil {
			s.log.Warn("appointments: notification skipped",
				slog.String("appointment_id", appt.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		if _, err := send(s.notifier, ctx, notice); err != nil {
			s.log.Warn("appointments: notification failed",
				slog.String("event", eventType),
				slog.String("appointment_id", appt.ID),
				slog.String("error", err.Error()),
			)
		}
	})
}

func (s *Service) notice(ctx context.Context, appt Appointment) (notifications.AppointmentNotice, error) {
	customer, err := s.users.Get(ctx, appt.UserID)
	if err != nil {
		return notifications.AppointmentNotice{}, err
	}
	notice := notifications.AppointmentNotice{
		AppointmentID: appt.ID,
		CustomerName:  customer.FullName,
		CustomerEmail: customer.Email,
		BookingTime:   appt.BookingTime,
		Location:      s.location,
		Service:       appt.ServiceType,
		Reason:        appt.Reason,
	}
	if appt.PackageID != "" {
		if pkg, err := s.packages.Get(ctx, appt.PackageID); err == nil {
			notice.Service = pkg.Name
		}
	}
	if byID, err := s.vehicles.GetMany(ctx, []string{appt.VehicleID}); err == nil {
		notice.LicensePlate = byID[appt.VehicleID].LicensePlate
	}
	for _, techID := range appt.TechnicianIDs() {
		if tech, err := s.users.Get(ctx, techID); err == nil {
			notice.Technicians = append(notice.Technicians, tech.FullName)
		}
	}
	return notice, nil
}

func canView(caller auth.Principal, appt Appointment) bool {
	switch {
	case caller.IsBackOffice():
		return true
	case caller.Is(auth.RoleCustomer):
		return appt.UserID == caller.UserID
	case caller.Is(auth.RoleTechnician):
		return appt.HasTechnician(caller.UserID)
	default:
		return false
	}
}

func distinct(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

func appendReason(existing, line string) string {
	if strings.TrimSpace(existing) == "" {
		return line
	}
	return existing + "\n" + line
}
