package conversations

import (
	"context"
	"time"

	"evms-backend/internal/httpx"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, conv Conversation) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Conversation, error)
	List(ctx context.Context, filter ListFilter, page httpx.Page) ([]Conversation, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	// Claim assigns staffID to an open, unclaimed conversation in one conditional update.
	Claim(ctx context.Context, id, staffID string, at time.Time) (Conversation, error)
	Close(ctx context.Context, id string, at time.Time) (Conversation, error)
	Touch(ctx context.Context, id string, at time.Time) error
	CreateMessage(ctx context.Context, msg Message) error
	ListMessages(ctx context.Context, conversationID string, page httpx.Page) ([]Message, error)
	CountMessages(ctx context.Context, conversationID string) (int64, error)
}

type MongoRepository struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewRepository(conversations, messages *mongo.Collection) *MongoRepository {
	return &MongoRepository{conversations: conversations, messages: messages}
}

func (r *MongoRepository) Create(ctx context.Context, conv Conversation) error {
	_, err := r.conversations.InsertOne(ctx, conv)
	return err
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.conversations.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Conversation, error) {
	var conv Conversation
	if err := r.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&conv); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter, page httpx.Page) ([]Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "lastMessageAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit)

	cursor, err := r.conversations.Find(ctx, filterToBSON(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []Conversation{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return r.conversations.CountDocuments(ctx, filterToBSON(filter))
}

func (r *MongoRepository) Claim(ctx context.Context, id, staffID string, at time.Time) (Conversation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{
		"staffId":   staffID,
		"status":    StatusAssigned,
		"updatedAt": at,
	}}

	var conv Conversation
	if err := r.conversations.FindOneAndUpdate(ctx, claimFilter(id), update, opts).Decode(&conv); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

func (r *MongoRepository) Close(ctx context.Context, id string, at time.Time) (Conversation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{"_id": id, "status": bson.M{"$ne": StatusClosed}}
	update := bson.M{"$set": bson.M{"status": StatusClosed, "updatedAt": at}}

	var conv Conversation
	if err := r.conversations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

func (r *MongoRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.conversations.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"lastMessageAt": at,
		"updatedAt":     at,
	}})
	return err
}

func (r *MongoRepository) CreateMessage(ctx context.Context, msg Message) error {
	_, err := r.messages.InsertOne(ctx, msg)
	return err
}

func (r *MongoRepository) ListMessages(ctx context.Context, conversationID string, page httpx.Page) ([]Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit)

	cursor, err := r.messages.Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []Message{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) CountMessages(ctx context.Context, conversationID string) (int64, error) {
	return r.messages.CountDocuments(ctx, bson.M{"conversationId": conversationID})
}

func claimFilter(id string) bson.M {
	return bson.M{
		"_id":    id,
		"status": StatusOpen,
		"$or": bson.A{
			bson.M{"staffId": bson.M{"$exists": false}},
			bson.M{"staffId": ""},
			bson.M{"staffId": nil},
		},
	}
}

func filterToBSON(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.CustomerID != "" {
		query["customerId"] = filter.CustomerID
	}
	if filter.VisibleToStaff != "" {
		query["$or"] = bson.A{
			bson.M{"status": StatusOpen},
			bson.M{"staffId": filter.VisibleToStaff},
		}
	}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	return query
}
