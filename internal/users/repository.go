package users

import (
	"context"
	"regexp"

	"evms-backend/internal/httpx"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, filter ListFilter, page httpx.Page, sort httpx.Sort) ([]User, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	Update(ctx context.Context, id string, set bson.M) (User, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, user User) error {
	_, err := r.col.InsertOne(ctx, user)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (User, error) {
	var user User
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	var user User
	if err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, page httpx.Page, sort httpx.Sort) ([]User, error) {
	dir := 1
	if sort.Desc {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: sort.Field, Value: dir}}).
		SetLimit(page.Limit).
		SetSkip(page.Skip())

	cursor, err := r.col.Find(ctx, r.filterToBSON(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]User, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return r.col.CountDocuments(ctx, r.filterToBSON(filter))
}

func (r *MongoRepository) Update(ctx context.Context, id string, set bson.M) (User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated User
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return User{}, err
	}
	return updated, nil
}

func (r *MongoRepository) filterToBSON(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.Disabled != nil {
		query["disabled"] = *filter.Disabled
	}
	if filter.Query != "" {
		pattern := searchPattern(filter.Query)
		query["$or"] = bson.A{
			bson.M{"email": pattern},
			bson.M{"fullName": pattern},
			bson.M{"phone": pattern},
		}
	}
	return query
}

func searchPattern(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
}
