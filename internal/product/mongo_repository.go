package product

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "products"

type DocumentRepository interface {
	Create(ctx context.Context, f DocumentFields) (Document, error)
	List(ctx context.Context, f Filter) ([]Document, error)
	Get(ctx context.Context, id string) (Document, error)
	Replace(ctx context.Context, id string, f DocumentFields) (Document, error)
	Delete(ctx context.Context, id string) (Document, error)
}

type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		coll: db.Collection(CollectionName),
		now: func() time.Time {
			// BSON dates carry millisecond precision.
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (r *MongoRepository) Create(ctx context.Context, f DocumentFields) (Document, error) {
	now := r.now()
	doc := Document{
		ID:        primitive.NewObjectID(),
		Name:      f.Name,
		Price:     f.Price,
		Category:  f.Category,
		InStock:   f.InStock,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (r *MongoRepository) List(ctx context.Context, f Filter) ([]Document, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.InStock != nil {
		filter["inStock"] = *f.InStock
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0)
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (Document, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return Document{}, err
	}

	var doc Document
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return Document{}, notFound(err)
	}
	return doc, nil
}

// Replace overwrites all four business fields; createdAt is kept.
func (r *MongoRepository) Replace(ctx context.Context, id string, f DocumentFields) (Document, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return Document{}, err
	}

	update := bson.M{"$set": bson.M{
		"name":      f.Name,
		"price":     f.Price,
		"category":  f.Category,
		"inStock":   f.InStock,
		"updatedAt": r.now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc Document
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		return Document{}, notFound(err)
	}
	return doc, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) (Document, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return Document{}, err
	}

	var doc Document
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return Document{}, notFound(err)
	}
	return doc, nil
}
