// battle/store/territory_store.go
package store

import (
	"context"
	"fmt"
	"log"

	"github.com/songversus/city-arena/shared/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TerritoryStore represents the MongoDB data store for city territories.
type TerritoryStore struct {
	collection *mongo.Collection
}

// NewTerritoryStore creates a new TerritoryStore instance.
func NewTerritoryStore(collection *mongo.Collection) *TerritoryStore {
	return &TerritoryStore{
		collection: collection,
	}
}

// DefaultTerritories seeds the city map on first boot.
var DefaultTerritories = []models.Territory{
	{ID: "downtown", Name: "Downtown", Genre: "Hip-Hop", Color: "#e74c3c"},
	{ID: "harbor", Name: "The Harbor", Genre: "Electronic", Color: "#3498db"},
	{ID: "uptown", Name: "Uptown", Genre: "R&B", Color: "#9b59b6"},
	{ID: "industrial", Name: "Industrial District", Genre: "Drill", Color: "#95a5a6"},
	{ID: "oldtown", Name: "Old Town", Genre: "Boom Bap", Color: "#e67e22"},
}

// EnsureTerritoriesExist initializes default territory documents if they
// don't exist. Existing control and battle counts are never touched.
func (ts *TerritoryStore) EnsureTerritoriesExist(ctx context.Context, territories []models.Territory) error {
	for _, t := range territories {
		filter := bson.M{"_id": t.ID}
		update := bson.M{
			"$setOnInsert": bson.M{
				"name":         t.Name,
				"genre":        t.Genre,
				"control":      "",
				"color":        t.Color,
				"battle_count": 0,
			},
		}
		opts := options.Update().SetUpsert(true)

		result, err := ts.collection.UpdateOne(ctx, filter, update, opts)
		if err != nil {
			return fmt.Errorf("failed to upsert territory %s: %w", t.ID, err)
		}
		if result.UpsertedID != nil {
			log.Printf("INFO: Initialized territory '%s' in database.", t.Name)
		}
	}
	return nil
}

// ListTerritories returns every territory on the city map.
func (ts *TerritoryStore) ListTerritories(ctx context.Context) ([]models.Territory, error) {
	cursor, err := ts.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list territories: %w", err)
	}
	defer cursor.Close(ctx)

	var territories []models.Territory
	if err := cursor.All(ctx, &territories); err != nil {
		return nil, fmt.Errorf("failed to decode territories: %w", err)
	}
	return territories, nil
}

// IncrementBattleCount atomically increments a territory's battle counter.
func (ts *TerritoryStore) IncrementBattleCount(ctx context.Context, id string) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$inc": bson.M{"battle_count": 1}}
	res, err := ts.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to increment battle count for territory %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("territory %s not found", id)
	}
	return nil
}

// SetControl hands control of a territory to a user or crew.
func (ts *TerritoryStore) SetControl(ctx context.Context, id, control string) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{"control": control}}
	res, err := ts.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set control for territory %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("territory %s not found", id)
	}
	return nil
}
