package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/comandaclub/comanda/internal/order"
)

// OrderRepo implements order.OrderRepo using MongoDB.
type OrderRepo struct {
	collection *mongo.Collection
}

func NewOrderRepo(db *mongo.Database) *OrderRepo {
	return &OrderRepo{
		collection: db.Collection("orders"),
	}
}

// EnsureIndexes creates the order indexes. Called once on startup.
func (r *OrderRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "table_ref", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("cannot create order indexes: %w", err)
	}
	return nil
}

func (r *OrderRepo) Create(ctx context.Context, o *order.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}

	if _, err := r.collection.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("cannot create order: %w", err)
	}

	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var o order.Order
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get order: %w", err)
	}
	return &o, nil
}

func (r *OrderRepo) List(ctx context.Context) ([]*order.Order, error) {
	return r.list(ctx, bson.M{})
}

func (r *OrderRepo) ListByTable(ctx context.Context, tableRef string) ([]*order.Order, error) {
	return r.list(ctx, bson.M{"table_ref": tableRef})
}

func (r *OrderRepo) ListByStatus(ctx context.Context, status string) ([]*order.Order, error) {
	return r.list(ctx, bson.M{"status": status})
}

func (r *OrderRepo) list(ctx context.Context, filter bson.M) ([]*order.Order, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("cannot list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*order.Order
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode orders: %w", err)
	}

	return result, nil
}

// Save writes the order back only if the stored model_version still matches
// the version the caller loaded, bumping it on success. A lost race
// surfaces as order.ErrVersionConflict so the caller can reload and retry.
func (r *OrderRepo) Save(ctx context.Context, o *order.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}

	loadedVersion := o.ModelVersion
	o.ModelVersion = loadedVersion + 1

	filter := bson.M{"_id": o.ID, "model_version": loadedVersion}
	update := bson.M{"$set": o}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		o.ModelVersion = loadedVersion
		return fmt.Errorf("cannot update order: %w", err)
	}

	if result.MatchedCount == 0 {
		o.ModelVersion = loadedVersion

		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": o.ID})
		if err != nil {
			return fmt.Errorf("cannot verify order existence: %w", err)
		}
		if count == 0 {
			return order.ErrOrderNotFound
		}
		return order.ErrVersionConflict
	}

	return nil
}
