package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collections struct {
	Users           *mongo.Collection
	Technicians     *mongo.Collection
	Certificates    *mongo.Collection
	Vehicles        *mongo.Collection
	Appointments    *mongo.Collection
	ServicePackages *mongo.Collection
	Conversations   *mongo.Collection
	Messages        *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *Collections, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}

	return client, CollectionsFor(client.Database(dbName)), nil
}

func CollectionsFor(db *mongo.Database) *Collections {
	return &Collections{
		Users:           db.Collection("users"),
		Technicians:     db.Collection("technicians"),
		Certificates:    db.Collection("certificates"),
		Vehicles:        db.Collection("vehicles"),
		Appointments:    db.Collection("appointments"),
		ServicePackages: db.Collection("service_packages"),
		Conversations:   db.Collection("conversations"),
		Messages:        db.Collection("messages"),
	}
}

func EnsureIndexes(ctx context.Context, cols *Collections) error {
	indexTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	plan := []struct {
		col    *mongo.Collection
		models []mongo.IndexModel
	}{
		{cols.Users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		}},
		{cols.Technicians, []mongo.IndexModel{
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{cols.Certificates, []mongo.IndexModel{
			{Keys: bson.D{{Key: "technicianId", Value: 1}}},
		}},
		{cols.Vehicles, []mongo.IndexModel{
			{Keys: bson.D{{Key: "licensePlate", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "ownerId", Value: 1}}},
		}},
		{cols.Appointments, []mongo.IndexModel{
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "bookingTime", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "bookingTime", Value: 1}}},
			{Keys: bson.D{{Key: "technicianLeadId", Value: 1}}},
			{Keys: bson.D{{Key: "technicianSupport1Id", Value: 1}}},
			{Keys: bson.D{{Key: "technicianSupport2Id", Value: 1}}},
		}},
		{cols.ServicePackages, []mongo.IndexModel{
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{cols.Conversations, []mongo.IndexModel{
			{Keys: bson.D{{Key: "customerId", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "staffId", Value: 1}}},
		}},
		{cols.Messages, []mongo.IndexModel{
			{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}}},
		}},
	}

	for _, p := range plan {
		if _, err := p.col.Indexes().CreateMany(indexTimeout, p.models); err != nil {
			return err
		}
	}
	return nil
}
