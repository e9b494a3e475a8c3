// profile/store/profile_store.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/songversus/city-arena/shared/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store-level sentinel errors. The service layer maps these onto its own
// error taxonomy; handlers never see them directly.
var (
	ErrProfileExists     = fmt.Errorf("profile already exists")
	ErrProfileNotFound   = fmt.Errorf("profile not found")
	ErrDuffleNotOpenable = fmt.Errorf("duffle missing or not ready")
	ErrInsufficientCoins = fmt.Errorf("insufficient coins")
	ErrVisualizerLocked  = fmt.Errorf("visualizer not unlocked")
	ErrAlreadyInCrew     = fmt.Errorf("profile already belongs to a crew")
)

// ProfileStore represents the MongoDB data store for profiles.
type ProfileStore struct {
	collection *mongo.Collection
}

// NewProfileStore creates a new ProfileStore instance.
func NewProfileStore(collection *mongo.Collection) *ProfileStore {
	return &ProfileStore{
		collection: collection,
	}
}

// CreateProfile inserts a new profile document into the collection.
func (ps *ProfileStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	_, err := ps.collection.InsertOne(ctx, profile)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrProfileExists, profile.ID)
		}
		return fmt.Errorf("failed to create profile %s: %w", profile.ID, err)
	}
	return nil
}

// GetProfileByID retrieves a profile by its ID.
func (ps *ProfileStore) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	filter := bson.M{"_id": id}
	err := ps.collection.FindOne(ctx, filter).Decode(&profile)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
		}
		return nil, fmt.Errorf("failed to get profile %s: %w", id, err)
	}
	return &profile, nil
}

// GrantDuffle appends a duffle to the profile's list.
func (ps *ProfileStore) GrantDuffle(ctx context.Context, id string, duffle models.Duffle) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$push": bson.M{"duffles": duffle}}
	res, err := ps.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to grant duffle to profile %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return nil
}

// ApplyRewardOutcome consumes a ready duffle and applies its reward in one
// document update: the duffle is pulled, coins incremented, and the unlocked
// visualizer (if any) pushed. The filter requires the duffle to still be in
// the ready state, so two concurrent opens of the same duffle cannot both
// succeed.
func (ps *ProfileStore) ApplyRewardOutcome(ctx context.Context, id, duffleID string, cashAmount int64, unlocked *models.Visualizer) error {
	filter := bson.M{
		"_id": id,
		"duffles": bson.M{"$elemMatch": bson.M{
			"id":     duffleID,
			"status": models.DuffleReady,
		}},
	}
	update := bson.M{
		"$pull": bson.M{"duffles": bson.M{"id": duffleID}},
		"$inc":  bson.M{"coins": cashAmount},
	}
	if unlocked != nil {
		update["$addToSet"] = bson.M{"unlocked_visualizers": *unlocked}
	}

	res, err := ps.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to apply reward for duffle %s on profile %s: %w", duffleID, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: duffle %s on profile %s", ErrDuffleNotOpenable, duffleID, id)
	}
	return nil
}

// MatureDuffles flips every locked duffle whose unlock time has elapsed to
// ready, across all profiles. Returns the number of modified profiles.
func (ps *ProfileStore) MatureDuffles(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{"duffles": bson.M{"$elemMatch": bson.M{
		"status":     models.DuffleLocked,
		"unlocks_at": bson.M{"$lte": now.UnixMilli()},
	}}}
	update := bson.M{"$set": bson.M{"duffles.$[d].status": models.DuffleReady}}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{
			"d.status":     models.DuffleLocked,
			"d.unlocks_at": bson.M{"$lte": now.UnixMilli()},
		}},
	})

	res, err := ps.collection.UpdateMany(ctx, filter, update, arrayFilters)
	if err != nil {
		return 0, fmt.Errorf("failed to mature duffles: %w", err)
	}
	return res.ModifiedCount, nil
}

// SetActiveVisualizer sets the profile's active visualizer. The filter
// requires the visualizer to be unlocked.
func (ps *ProfileStore) SetActiveVisualizer(ctx context.Context, id string, v models.Visualizer) error {
	filter := bson.M{"_id": id, "unlocked_visualizers": v}
	update := bson.M{"$set": bson.M{"active_visualizer": v}}
	res, err := ps.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set active visualizer for profile %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		// Distinguish missing profile from locked visualizer.
		exists, existsErr := ps.profileExists(ctx, id)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
		}
		return fmt.Errorf("%w: %s on profile %s", ErrVisualizerLocked, v, id)
	}
	return nil
}

// CreditCoins atomically adds amount to the profile's coin balance.
func (ps *ProfileStore) CreditCoins(ctx context.Context, id string, amount int64) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$inc": bson.M{"coins": amount}}
	res, err := ps.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to credit coins to profile %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return nil
}

// DebitCoins atomically subtracts amount from the profile's coin balance.
// The filter requires a sufficient balance so the balance can never go
// negative, even under concurrent debits.
func (ps *ProfileStore) DebitCoins(ctx context.Context, id string, amount int64) error {
	filter := bson.M{"_id": id, "coins": bson.M{"$gte": amount}}
	update := bson.M{"$inc": bson.M{"coins": -amount}}
	res, err := ps.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to debit coins from profile %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		exists, existsErr := ps.profileExists(ctx, id)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
		}
		return fmt.Errorf("%w: profile %s, debit %d", ErrInsufficientCoins, id, amount)
	}
	return nil
}

// CreditReputation atomically adds amount to the profile's reputation.
func (ps *ProfileStore) CreditReputation(ctx context.Context, id string, amount int64) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$inc": bson.M{"reputation": amount}}
	res, err := ps.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to credit reputation to profile %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return nil
}

// SetCrew assigns the profile to a crew. The filter requires the profile to
// not already be in one.
func (ps *ProfileStore) SetCrew(ctx context.Context, id, crewName string) error {
	filter := bson.M{"_id": id, "$or": bson.A{
		bson.M{"crew": bson.M{"$exists": false}},
		bson.M{"crew": ""},
	}}
	update := bson.M{"$set": bson.M{"crew": crewName}}
	res, err := ps.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set crew for profile %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		exists, existsErr := ps.profileExists(ctx, id)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
		}
		return fmt.Errorf("%w: %s", ErrAlreadyInCrew, id)
	}
	return nil
}

// RecordResult increments the profile's win or loss counter.
func (ps *ProfileStore) RecordResult(ctx context.Context, id string, won bool) error {
	field := "losses"
	if won {
		field = "wins"
	}
	filter := bson.M{"_id": id}
	update := bson.M{"$inc": bson.M{field: 1}}
	res, err := ps.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to record result for profile %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return nil
}

// UpdateLastSeen stamps the profile's last seen timestamp.
func (ps *ProfileStore) UpdateLastSeen(ctx context.Context, id string) error {
	filter := bson.M{"_id": id}
	now := time.Now()
	update := bson.M{"$set": bson.M{"last_seen_at": &now}}
	res, err := ps.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update last seen for profile %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return nil
}

// TopByReputation returns up to limit profiles ordered by reputation
// descending.
func (ps *ProfileStore) TopByReputation(ctx context.Context, limit int64) ([]models.Profile, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "reputation", Value: -1}}).
		SetLimit(limit)

	cursor, err := ps.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []models.Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode leaderboard profiles: %w", err)
	}
	return profiles, nil
}

func (ps *ProfileStore) profileExists(ctx context.Context, id string) (bool, error) {
	count, err := ps.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to check existence of profile %s: %w", id, err)
	}
	return count > 0, nil
}
