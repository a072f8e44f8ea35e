package servicepackages

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, pkg Package) error
	GetByID(ctx context.Context, id string) (Package, error)
	List(ctx context.Context, activeOnly bool) ([]Package, error)
	Update(ctx context.Context, id string, set bson.M) (Package, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, pkg Package) error {
	_, err := r.col.InsertOne(ctx, pkg)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Package, error) {
	var pkg Package
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&pkg); err != nil {
		return Package{}, err
	}
	return pkg, nil
}

func (r *MongoRepository) List(ctx context.Context, activeOnly bool) ([]Package, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	cursor, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []Package{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) Update(ctx context.Context, id string, set bson.M) (Package, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Package
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		return Package{}, err
	}
	return updated, nil
}
