// battle/store/battle_store.go
package store

import (
	"context"
	"fmt"

	"github.com/songversus/city-arena/shared/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store-level sentinel errors for the battle collection.
var (
	ErrBattleExists      = fmt.Errorf("battle already exists")
	ErrBattleNotFound    = fmt.Errorf("battle not found")
	ErrWrongBattleStatus = fmt.Errorf("battle is not in the required status")
)

// BattleStore represents the MongoDB data store for battles.
type BattleStore struct {
	collection *mongo.Collection
}

// NewBattleStore creates a new BattleStore instance.
func NewBattleStore(collection *mongo.Collection) *BattleStore {
	return &BattleStore{
		collection: collection,
	}
}

// CreateBattle inserts a new battle document.
func (bs *BattleStore) CreateBattle(ctx context.Context, battle *models.Battle) error {
	_, err := bs.collection.InsertOne(ctx, battle)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrBattleExists, battle.ID)
		}
		return fmt.Errorf("failed to create battle %s: %w", battle.ID, err)
	}
	return nil
}

// GetBattleByID retrieves a battle by its ID.
func (bs *BattleStore) GetBattleByID(ctx context.Context, id string) (*models.Battle, error) {
	var battle models.Battle
	err := bs.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&battle)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: %s", ErrBattleNotFound, id)
		}
		return nil, fmt.Errorf("failed to get battle %s: %w", id, err)
	}
	return &battle, nil
}

// ListBattles returns battles filtered by status (empty status means all),
// newest first, capped at limit.
func (bs *BattleStore) ListBattles(ctx context.Context, status models.BattleStatus, limit int64) ([]models.Battle, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := bs.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list battles: %w", err)
	}
	defer cursor.Close(ctx)

	var battles []models.Battle
	if err := cursor.All(ctx, &battles); err != nil {
		return nil, fmt.Errorf("failed to decode battles: %w", err)
	}
	return battles, nil
}

// ListTrending returns live featured battles: status hot first, then active,
// newest first within each status, capped at limit.
func (bs *BattleStore) ListTrending(ctx context.Context, limit int64) ([]models.Battle, error) {
	filter := bson.M{"status": bson.M{"$in": bson.A{models.BattleHot, models.BattleActive}}}
	opts := options.Find().
		SetSort(bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := bs.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list trending battles: %w", err)
	}
	defer cursor.Close(ctx)

	var battles []models.Battle
	if err := cursor.All(ctx, &battles); err != nil {
		return nil, fmt.Errorf("failed to decode trending battles: %w", err)
	}
	return battles, nil
}

// ListExpiredLive returns battles that are past their end time but not yet
// ended. The battle closer settles these.
func (bs *BattleStore) ListExpiredLive(ctx context.Context, nowMillis int64) ([]models.Battle, error) {
	filter := bson.M{
		"status":  bson.M{"$ne": models.BattleEnded},
		"ends_at": bson.M{"$lte": nowMillis},
	}
	cursor, err := bs.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired battles: %w", err)
	}
	defer cursor.Close(ctx)

	var battles []models.Battle
	if err := cursor.All(ctx, &battles); err != nil {
		return nil, fmt.Errorf("failed to decode expired battles: %w", err)
	}
	return battles, nil
}

// FillDefender sets the defender slot and moves the battle from open to
// active. The filter requires the open status, so two concurrent joins
// cannot both succeed.
func (bs *BattleStore) FillDefender(ctx context.Context, id string, defender models.Participant) error {
	filter := bson.M{"_id": id, "status": models.BattleOpen}
	update := bson.M{"$set": bson.M{
		"defender": defender,
		"status":   models.BattleActive,
	}}
	res, err := bs.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to fill defender for battle %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		exists, existsErr := bs.battleExists(ctx, id)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrBattleNotFound, id)
		}
		return fmt.Errorf("%w: battle %s is not open", ErrWrongBattleStatus, id)
	}
	return nil
}

// TransitionStatus moves the battle from one status to another. The filter
// requires the expected current status.
func (bs *BattleStore) TransitionStatus(ctx context.Context, id string, from, to models.BattleStatus) error {
	filter := bson.M{"_id": id, "status": from}
	update := bson.M{"$set": bson.M{"status": to}}
	res, err := bs.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to transition battle %s from %s to %s: %w", id, from, to, err)
	}
	if res.MatchedCount == 0 {
		exists, existsErr := bs.battleExists(ctx, id)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrBattleNotFound, id)
		}
		return fmt.Errorf("%w: battle %s is not %s", ErrWrongBattleStatus, id, from)
	}
	return nil
}

// MarkEnded moves a battle to ended from any live status and stamps the
// final tallies in the same update.
func (bs *BattleStore) MarkEnded(ctx context.Context, id string, votesChallenger, votesDefender int64) error {
	filter := bson.M{"_id": id, "status": bson.M{"$ne": models.BattleEnded}}
	update := bson.M{"$set": bson.M{
		"status":           models.BattleEnded,
		"votes_challenger": votesChallenger,
		"votes_defender":   votesDefender,
	}}
	res, err := bs.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark battle %s ended: %w", id, err)
	}
	if res.MatchedCount == 0 {
		exists, existsErr := bs.battleExists(ctx, id)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrBattleNotFound, id)
		}
		return fmt.Errorf("%w: battle %s already ended", ErrWrongBattleStatus, id)
	}
	return nil
}

// UpdateTallies writes a tally snapshot into the battle document. Used by
// the vote syncer; the Redis ledger stays authoritative until settlement.
// Ended battles are never touched: their tallies were stamped final by
// MarkEnded and a stale sync snapshot must not overwrite them.
func (bs *BattleStore) UpdateTallies(ctx context.Context, id string, votesChallenger, votesDefender int64) error {
	filter := bson.M{"_id": id, "status": bson.M{"$ne": models.BattleEnded}}
	update := bson.M{"$set": bson.M{
		"votes_challenger": votesChallenger,
		"votes_defender":   votesDefender,
	}}
	res, err := bs.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update tallies for battle %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		exists, existsErr := bs.battleExists(ctx, id)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrBattleNotFound, id)
		}
		return fmt.Errorf("%w: battle %s already ended", ErrWrongBattleStatus, id)
	}
	return nil
}

func (bs *BattleStore) battleExists(ctx context.Context, id string) (bool, error) {
	count, err := bs.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to check existence of battle %s: %w", id, err)
	}
	return count > 0, nil
}
