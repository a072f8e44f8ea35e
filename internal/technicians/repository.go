package technicians

import (
	"context"

	"evms-backend/internal/httpx"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, tech Technician) error
	GetByID(ctx context.Context, id string) (Technician, error)
	GetByUserID(ctx context.Context, userID string) (Technician, error)
	List(ctx context.Context, page httpx.Page) ([]Technician, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, set bson.M) (Technician, error)

	CreateCertificate(ctx context.Context, cert Certificate) error
	GetCertificate(ctx context.Context, technicianID, id string) (Certificate, error)
	ListCertificates(ctx context.Context, technicianIDs []string) ([]Certificate, error)
	SetCertificateFile(ctx context.Context, technicianID, id, key string) (Certificate, error)
	DeleteCertificate(ctx context.Context, technicianID, id string) error
}

type MongoRepository struct {
	technicians  *mongo.Collection
	certificates *mongo.Collection
}

func NewRepository(technicians, certificates *mongo.Collection) *MongoRepository {
	return &MongoRepository{technicians: technicians, certificates: certificates}
}

func (r *MongoRepository) Create(ctx context.Context, tech Technician) error {
	_, err := r.technicians.InsertOne(ctx, tech)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Technician, error) {
	var tech Technician
	if err := r.technicians.FindOne(ctx, bson.M{"_id": id}).Decode(&tech); err != nil {
		return Technician{}, err
	}
	return tech, nil
}

func (r *MongoRepository) GetByUserID(ctx context.Context, userID string) (Technician, error) {
	var tech Technician
	if err := r.technicians.FindOne(ctx, bson.M{"userId": userID}).Decode(&tech); err != nil {
		return Technician{}, err
	}
	return tech, nil
}

func (r *MongoRepository) List(ctx context.Context, page httpx.Page) ([]Technician, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit)

	cursor, err := r.technicians.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []Technician{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	return r.technicians.CountDocuments(ctx, bson.M{})
}

func (r *MongoRepository) Update(ctx context.Context, id string, set bson.M) (Technician, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Technician
	err := r.technicians.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		return Technician{}, err
	}
	return updated, nil
}

func (r *MongoRepository) CreateCertificate(ctx context.Context, cert Certificate) error {
	_, err := r.certificates.InsertOne(ctx, cert)
	return err
}

func (r *MongoRepository) GetCertificate(ctx context.Context, technicianID, id string) (Certificate, error) {
	var cert Certificate
	if err := r.certificates.FindOne(ctx, bson.M{"_id": id, "technicianId": technicianID}).Decode(&cert); err != nil {
		return Certificate{}, err
	}
	return cert, nil
}

func (r *MongoRepository) ListCertificates(ctx context.Context, technicianIDs []string) ([]Certificate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "issuedAt", Value: -1}})
	cursor, err := r.certificates.Find(ctx, bson.M{"technicianId": bson.M{"$in": technicianIDs}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []Certificate{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) SetCertificateFile(ctx context.Context, technicianID, id, key string) (Certificate, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Certificate
	err := r.certificates.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "technicianId": technicianID},
		bson.M{"$set": bson.M{"fileKey": key}},
		opts,
	).Decode(&updated)
	if err != nil {
		return Certificate{}, err
	}
	return updated, nil
}

func (r *MongoRepository) DeleteCertificate(ctx context.Context, technicianID, id string) error {
	res, err := r.certificates.DeleteOne(ctx, bson.M{"_id": id, "technicianId": technicianID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
