package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/comandaclub/comanda/internal/kitchen"
)

// TicketRepo implements kitchen.TicketRepository using MongoDB. It also
// serves the order side as its ticket status lister.
type TicketRepo struct {
	collection *mongo.Collection
}

func NewTicketRepo(db *mongo.Database) *TicketRepo {
	return &TicketRepo{
		collection: db.Collection("tickets"),
	}
}

// EnsureIndexes creates the ticket indexes. Called once on startup.
func (r *TicketRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_id", Value: 1}}},
		{Keys: bson.D{{Key: "station", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("cannot create ticket indexes: %w", err)
	}
	return nil
}

func (r *TicketRepo) Create(ctx context.Context, t *kitchen.Ticket) error {
	if t == nil {
		return fmt.Errorf("ticket is nil")
	}

	if _, err := r.collection.InsertOne(ctx, t); err != nil {
		return fmt.Errorf("cannot create ticket: %w", err)
	}

	return nil
}

func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*kitchen.Ticket, error) {
	var t kitchen.Ticket
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, kitchen.ErrTicketNotFound
		}
		return nil, fmt.Errorf("cannot get ticket: %w", err)
	}
	return &t, nil
}

func (r *TicketRepo) List(ctx context.Context, filter kitchen.TicketFilter) ([]kitchen.Ticket, error) {
	query := bson.M{}
	if filter.Station != nil {
		query["station"] = *filter.Station
	}
	if filter.Status != nil {
		query["status"] = *filter.Status
	}
	if filter.OrderID != nil {
		query["order_id"] = *filter.OrderID
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list tickets: %w", err)
	}
	defer cursor.Close(ctx)

	var result []kitchen.Ticket
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode tickets: %w", err)
	}

	return result, nil
}

func (r *TicketRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]kitchen.Ticket, error) {
	return r.List(ctx, kitchen.TicketFilter{OrderID: &orderID})
}

// ListStatusesByOrder projects just the status codes of an order's tickets,
// which is all the order-side reconciler needs.
func (r *TicketRepo) ListStatusesByOrder(ctx context.Context, orderID uuid.UUID) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"status": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list ticket statuses: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		Status string `bson:"status"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("cannot decode ticket statuses: %w", err)
	}

	statuses := make([]string, 0, len(docs))
	for _, doc := range docs {
		statuses = append(statuses, doc.Status)
	}
	return statuses, nil
}

// Save writes the ticket back only if the stored model_version still
// matches, bumping it on success. A lost race surfaces as
// kitchen.ErrVersionConflict.
func (r *TicketRepo) Save(ctx context.Context, t *kitchen.Ticket) error {
	if t == nil {
		return fmt.Errorf("ticket is nil")
	}

	loadedVersion := t.ModelVersion
	t.ModelVersion = loadedVersion + 1

	filter := bson.M{"_id": t.ID, "model_version": loadedVersion}
	update := bson.M{"$set": t}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		t.ModelVersion = loadedVersion
		return fmt.Errorf("cannot update ticket: %w", err)
	}

	if result.MatchedCount == 0 {
		t.ModelVersion = loadedVersion

		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": t.ID})
		if err != nil {
			return fmt.Errorf("cannot verify ticket existence: %w", err)
		}
		if count == 0 {
			return kitchen.ErrTicketNotFound
		}
		return kitchen.ErrVersionConflict
	}

	return nil
}
