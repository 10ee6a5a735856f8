package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/seed"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/comandaclub/comanda/pkg/enums/station"
)

// Seeds returns all seeds for the menu catalog
func Seeds(db *mongo.Database) []seed.Seed {
	return []seed.Seed{
		{
			ID:          "demo_menu_items_v1",
			Description: "Create a demo menu covering every preparation station",
			Run: func(ctx context.Context) error {
				return seedDemoMenuItems(ctx, db)
			},
		},
	}
}

func seedDemoMenuItems(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection("menu_items")
	now := time.Now()

	items := []struct {
		shortCode  string
		nameEn     string
		nameAr     string
		price      float64
		discounted *float64
		station    station.Station
		prepTime   int
	}{
		{"BRG-01", "Classic Burger", "برغر كلاسيكي", 38.00, nil, station.Stations.Grill, 15},
		{"BRG-02", "Double Smash Burger", "برغر سماش مزدوج", 52.00, ptr(45.00), station.Stations.Grill, 18},
		{"SLD-01", "Caesar Salad", "سلطة سيزر", 28.00, nil, station.Stations.Cold, 8},
		{"SLD-02", "Halloumi Salad", "سلطة حلوم", 32.00, nil, station.Stations.Cold, 8},
		{"PST-01", "Truffle Pasta", "باستا بالكمأ", 46.00, nil, station.Stations.Kitchen, 20},
		{"DST-01", "Cheesecake", "تشيز كيك", 24.00, nil, station.Stations.Dessert, 5},
		{"BEV-01", "Fresh Orange Juice", "عصير برتقال طازج", 16.00, nil, station.Stations.Bar, 4},
		{"COF-01", "Flat White", "فلات وايت", 18.00, nil, station.Stations.Coffee, 5},
	}

	for _, it := range items {
		doc := bson.M{
			"_id":               uuid.New(),
			"short_code":        it.shortCode,
			"name":              bson.M{"en": it.nameEn, "ar": it.nameAr},
			"price":             it.price,
			"station":           it.station.Code(),
			"prep_time_minutes": it.prepTime,
			"enabled":           true,
			"sold_out":          false,
			"schema_version":    CurrentMenuItemSchemaVersion,
			"created_at":        now,
			"updated_at":        now,
		}
		if it.discounted != nil {
			doc["discounted_price"] = *it.discounted
		}

		_, err := collection.UpdateOne(
			ctx,
			bson.M{"short_code": it.shortCode},
			bson.M{"$setOnInsert": doc},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("cannot create demo menu item %s: %w", it.shortCode, err)
		}
	}

	return nil
}

func ptr(v float64) *float64 {
	return &v
}

// ApplyDemoSeeds applies demo seeds if enabled via config
func ApplyDemoSeeds(ctx context.Context, config *aqm.Config, dbFn func() *mongo.Database, logger aqm.Logger) error {
	enabled, _ := config.GetString("seed.demo.enabled")
	if enabled != "true" {
		return nil
	}

	logger.Info("Demo seeding enabled, applying demo menu items...")
	db := dbFn()
	tracker := seed.NewMongoTracker(db)
	seeds := Seeds(db)

	if err := seed.Apply(ctx, tracker, seeds, "catalog"); err != nil {
		return fmt.Errorf("demo seed failed: %w", err)
	}

	logger.Info("Demo menu items seeded successfully")
	return nil
}
