package vehicles

import (
	"context"
	"regexp"

	"evms-backend/internal/httpx"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, vehicle Vehicle) error
	GetByID(ctx context.Context, id string) (Vehicle, error)
	GetMany(ctx context.Context, ids []string) ([]Vehicle, error)
	List(ctx context.Context, filter ListFilter, page httpx.Page, sort httpx.Sort) ([]Vehicle, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	Update(ctx context.Context, id string, set bson.M) (Vehicle, error)
	Delete(ctx context.Context, id string) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, vehicle Vehicle) error {
	_, err := r.col.InsertOne(ctx, vehicle)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Vehicle, error) {
	var v Vehicle
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&v); err != nil {
		return Vehicle{}, err
	}
	return v, nil
}

func (r *MongoRepository) GetMany(ctx context.Context, ids []string) ([]Vehicle, error) {
	cursor, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []Vehicle{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, page httpx.Page, sort httpx.Sort) ([]Vehicle, error) {
	direction := 1
	if sort.Desc {
		direction = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: sort.Field, Value: direction}, {Key: "_id", Value: 1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit)

	cursor, err := r.col.Find(ctx, r.filterToBSON(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []Vehicle{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return r.col.CountDocuments(ctx, r.filterToBSON(filter))
}

func (r *MongoRepository) Update(ctx context.Context, id string, set bson.M) (Vehicle, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Vehicle
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return Vehicle{}, err
	}
	return updated, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRepository) filterToBSON(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.OwnerID != "" {
		query["ownerId"] = filter.OwnerID
	}
	if filter.Query != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Query), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"licensePlate": pattern},
			bson.M{"brand": pattern},
			bson.M{"model": pattern},
			bson.M{"vin": pattern},
		}
	}
	return query
}
