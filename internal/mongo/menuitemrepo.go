package mongo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/comandaclub/comanda/internal/catalog"
)

// MenuItemRepo implements catalog.MenuItemRepo using MongoDB.
type MenuItemRepo struct {
	collection *mongo.Collection
}

func NewMenuItemRepo(db *mongo.Database) *MenuItemRepo {
	return &MenuItemRepo{
		collection: db.Collection("menu_items"),
	}
}

// EnsureIndexes creates the menu item indexes. Called once on startup.
func (r *MenuItemRepo) EnsureIndexes(ctx context.Context) error {
	shortCodeIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "short_code", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, shortCodeIndex); err != nil {
		return fmt.Errorf("cannot create short_code index: %w", err)
	}

	stationIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "station", Value: 1}},
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, stationIndex); err != nil {
		return fmt.Errorf("cannot create station index: %w", err)
	}

	return nil
}

func (r *MenuItemRepo) Create(ctx context.Context, item *catalog.MenuItem) error {
	if item == nil {
		return fmt.Errorf("menu item cannot be nil")
	}

	item.BeforeCreate()

	_, err := r.collection.InsertOne(ctx, item)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("menu item with short_code %s already exists", item.ShortCode)
		}
		return fmt.Errorf("could not create menu item: %w", err)
	}
	return nil
}

func (r *MenuItemRepo) Get(ctx context.Context, id uuid.UUID) (*catalog.MenuItem, error) {
	var item catalog.MenuItem

	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("could not get menu item: %w", err)
	}
	return &item, nil
}

func (r *MenuItemRepo) GetByShortCode(ctx context.Context, shortCode string) (*catalog.MenuItem, error) {
	var item catalog.MenuItem

	err := r.collection.FindOne(ctx, bson.M{"short_code": shortCode}).Decode(&item)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("could not get menu item by short_code: %w", err)
	}
	return &item, nil
}

func (r *MenuItemRepo) List(ctx context.Context) ([]*catalog.MenuItem, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("could not list menu items: %w", err)
	}
	defer cursor.Close(ctx)

	var items []*catalog.MenuItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("could not decode menu items: %w", err)
	}
	return items, nil
}

func (r *MenuItemRepo) Save(ctx context.Context, item *catalog.MenuItem) error {
	if item == nil {
		return fmt.Errorf("menu item cannot be nil")
	}

	item.BeforeUpdate()

	opts := options.Replace().SetUpsert(false)
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": item.ID}, item, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("menu item with short_code %s already exists", item.ShortCode)
		}
		return fmt.Errorf("could not save menu item: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("menu item %s not found for update", item.ID)
	}
	return nil
}
