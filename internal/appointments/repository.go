package appointments

import (
	"context"
	"time"

	"evms-backend/internal/httpx"
	"evms-backend/internal/schedule"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var technicianFields = []string{"technicianLeadId", "technicianSupport1Id", "technicianSupport2Id"}

type Repository interface {
	Create(ctx context.Context, appt Appointment) error
	GetByID(ctx context.Context, id string) (Appointment, error)
	List(ctx context.Context, filter ListFilter, page httpx.Page, sort httpx.Sort) ([]Appointment, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	// FindConflicts returns busy appointments other than excludeID that share a technician and start inside the window.
	FindConflicts(ctx context.Context, excludeID string, technicianIDs []string, window schedule.Window) ([]Appointment, error)
	// UpdateIfStatus applies set only while the stored status is one of expected.
	UpdateIfStatus(ctx context.Context, id string, expected []string, set bson.M) (Appointment, error)
	CountActiveForVehicle(ctx context.Context, vehicleID string) (int64, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, appt Appointment) error {
	_, err := r.col.InsertOne(ctx, appt)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Appointment, error) {
	var appt Appointment
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&appt); err != nil {
		return Appointment{}, err
	}
	return appt, nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, page httpx.Page, sort httpx.Sort) ([]Appointment, error) {
	direction := 1
	if sort.Desc {
		direction = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: sort.Field, Value: direction}, {Key: "_id", Value: 1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit)

	cursor, err := r.col.Find(ctx, filterToBSON(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []Appointment{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return r.col.CountDocuments(ctx, filterToBSON(filter))
}

func (r *MongoRepository) FindConflicts(ctx context.Context, excludeID string, technicianIDs []string, window schedule.Window) ([]Appointment, error) {
	cursor, err := r.col.Find(ctx, conflictFilter(excludeID, technicianIDs, window),
		options.Find().SetSort(bson.D{{Key: "bookingTime", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []Appointment{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) UpdateIfStatus(ctx context.Context, id string, expected []string, set bson.M) (Appointment, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": id, "status": bson.M{"$in": expected}}

	var updated Appointment
	if err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return Appointment{}, err
	}
	return updated, nil
}

func (r *MongoRepository) CountActiveForVehicle(ctx context.Context, vehicleID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{
		"vehicleId": vehicleID,
		"status":    bson.M{"$in": ActiveStatuses},
	})
}

func anyTechnician(ids interface{}) bson.A {
	or := bson.A{}
	for _, field := range technicianFields {
		or = append(or, bson.M{field: ids})
	}
	return or
}

func conflictFilter(excludeID string, technicianIDs []string, window schedule.Window) bson.M {
	return bson.M{
		"_id":         bson.M{"$ne": excludeID},
		"status":      bson.M{"$in": BusyStatuses},
		"bookingTime": bson.M{"$gte": window.Start, "$lte": window.End},
		"$or":         anyTechnician(bson.M{"$in": technicianIDs}),
	}
}

func filterToBSON(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.UserID != "" {
		query["userId"] = filter.UserID
	}
	if filter.VehicleID != "" {
		query["vehicleId"] = filter.VehicleID
	}
	if filter.TechnicianID != "" {
		query["$or"] = anyTechnician(filter.TechnicianID)
	}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.From != nil || filter.To != nil {
		rng := bson.M{}
		if filter.From != nil {
			rng["$gte"] = filter.From.UTC()
		}
		if filter.To != nil {
			rng["$lte"] = filter.To.UTC()
		}
		query["bookingTime"] = rng
	}
	return query
}

// stamp is the stored form of an instant: UTC with millisecond precision, as BSON dates hold it.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
