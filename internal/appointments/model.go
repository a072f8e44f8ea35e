package appointments

import (
	"fmt"
	"time"

	"evms-backend/internal/vehicles"
)

const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var transitions = map[string][]string{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

// ActiveStatuses are the statuses that still hold a vehicle in the workshop schedule.
var ActiveStatuses = []string{StatusPending, StatusConfirmed, StatusInProgress}

// BusyStatuses are the statuses that occupy a technician's conflict window.
var BusyStatuses = []string{StatusConfirmed, StatusInProgress}

func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID                   string    `bson:"_id,omitempty" json:"id"`
	UserID               string    `bson:"userId" json:"userId"`
	VehicleID            string    `bson:"vehicleId" json:"vehicleId"`
	TechnicianLeadID     string    `bson:"technicianLeadId,omitempty" json:"technicianLeadId,omitempty"`
	TechnicianSupport1ID string    `bson:"technicianSupport1Id,omitempty" json:"technicianSupport1Id,omitempty"`
	TechnicianSupport2ID string    `bson:"technicianSupport2Id,omitempty" json:"technicianSupport2Id,omitempty"`
	ServiceType          string    `bson:"serviceType,omitempty" json:"serviceType,omitempty"`
	PackageID            string    `bson:"packageId,omitempty" json:"packageId,omitempty"`
	BookingTime          time.Time `bson:"bookingTime" json:"bookingTime"`
	Status               string    `bson:"status" json:"status"`
	Reason               string    `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt            time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TechnicianIDs lists the assigned technicians in lead, support1, support2 order.
func (a Appointment) TechnicianIDs() []string {
	out := make([]string, 0, 3)
	for _, id := range []string{a.TechnicianLeadID, a.TechnicianSupport1ID, a.TechnicianSupport2ID} {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

func (a Appointment) HasTechnician(userID string) bool {
	for _, id := range a.TechnicianIDs() {
		if id == userID {
			return true
		}
	}
	return false
}

type View struct {
	Appointment
	Vehicle *vehicles.Vehicle `json:"vehicle,omitempty"`
}

type CreateRequest struct {
	UserID      string    `json:"userId" validate:"omitempty,objectid"`
	VehicleID   string    `json:"vehicleId" validate:"required,objectid"`
	ServiceType string    `json:"serviceType" validate:"max=200"`
	PackageID   string    `json:"packageId" validate:"omitempty,objectid"`
	BookingTime time.Time `json:"bookingTime" validate:"required"`
	Notes       string    `json:"notes" validate:"max=1000"`
}

type AssignRequest struct {
	TechnicianLeadID     string `json:"technicianLeadId" validate:"omitempty,objectid"`
	TechnicianSupport1ID string `json:"technicianSupport1Id" validate:"omitempty,objectid"`
	TechnicianSupport2ID string `json:"technicianSupport2Id" validate:"omitempty,objectid"`
	Notes                string `json:"notes" validate:"max=1000"`
}

// Supplied returns the non-empty technician ids of the request keyed by appointment field.
func (r AssignRequest) Supplied() map[string]string {
	out := map[string]string{}
	if r.TechnicianLeadID != "" {
		out["technicianLeadId"] = r.TechnicianLeadID
	}
	if r.TechnicianSupport1ID != "" {
		out["technicianSupport1Id"] = r.TechnicianSupport1ID
	}
	if r.TechnicianSupport2ID != "" {
		out["technicianSupport2Id"] = r.TechnicianSupport2ID
	}
	return out
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed in_progress completed cancelled"`
}

type ListFilter struct {
	UserID       string
	TechnicianID string
	VehicleID    string
	Statuses     []string
	From         *time.Time
	To           *time.Time
}

// ConflictError carries the appointments that already hold a requested technician.
type ConflictError struct {
	Conflicts []Appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("technician schedule conflict with %d appointment(s)", len(e.Conflicts))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrTechnicianConflict
}
