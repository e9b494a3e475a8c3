// battle/store/vote_store.go
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/songversus/city-arena/battle/ledger"
	"github.com/songversus/city-arena/shared/models"
	redisu "github.com/songversus/city-arena/shared/redis"
)

// castVoteScript enforces at-most-once voting atomically. All three keys
// carry the same {battleID} hash tag, so they live in one cluster slot and
// the script can touch them in a single step. Returns 'CLOSED' when the
// battle no longer accepts votes, 'DUPLICATE' when the viewer's marker
// already exists, or the side's new tally after recording the vote.
const castVoteScript = `
local status = redis.call('GET', KEYS[3])
if status == 'ended' then
	return 'CLOSED'
end
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 'DUPLICATE'
end
redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[2])
return redis.call('INCR', KEYS[2])
`

// voteKeyTTL bounds how long per-viewer markers and tallies outlive a
// battle. Settlement copies tallies to MongoDB well before this.
const voteKeyTTL = 7 * 24 * time.Hour

// VoteStore is the Redis-backed vote ledger. It is the authority on vote
// admission while a battle is live; MongoDB only sees synced snapshots.
type VoteStore struct {
	redisClient *redis.ClusterClient
	scriptSHA   string
}

// NewVoteStore creates a VoteStore and preloads the vote script.
func NewVoteStore(ctx context.Context, redisClient *redis.ClusterClient) (*VoteStore, error) {
	sha, err := redisClient.ScriptLoad(ctx, castVoteScript).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to preload vote script: %w", err)
	}
	return &VoteStore{
		redisClient: redisClient,
		scriptSHA:   sha,
	}, nil
}

func markerKey(battleID, viewerID string) string {
	return fmt.Sprintf(redisu.VoteMarkerKeyPrefix, battleID) + viewerID
}

func tallyKey(battleID string, side models.BattleSide) string {
	return fmt.Sprintf(redisu.VoteTallyKeyPrefix, battleID) + string(side)
}

func statusKey(battleID string) string {
	return fmt.Sprintf(redisu.BattleStatusKeyPrefix, battleID)
}

// SetBattleStatus caches the battle's lifecycle status next to its tallies
// so the vote script can reject votes on ended battles atomically.
func (vs *VoteStore) SetBattleStatus(ctx context.Context, battleID string, status models.BattleStatus) error {
	err := vs.redisClient.Set(ctx, statusKey(battleID), string(status), voteKeyTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set cached status for battle %s: %w", battleID, err)
	}
	return nil
}

// CastVote records a vote for the given side exactly once per (viewer,
// battle) and returns the side's new tally. A duplicate viewer fails with
// ledger.ErrAlreadyVoted, an ended battle with ledger.ErrBattleClosed; in
// both cases no tally moves.
func (vs *VoteStore) CastVote(ctx context.Context, battleID, viewerID string, side models.BattleSide) (int64, error) {
	keys := []string{
		markerKey(battleID, viewerID),
		tallyKey(battleID, side),
		statusKey(battleID),
	}
	args := []interface{}{string(side), int64(voteKeyTTL.Seconds())}

	result, err := vs.redisClient.EvalSha(ctx, vs.scriptSHA, keys, args...).Result()
	if err != nil && strings.Contains(err.Error(), "NOSCRIPT") {
		// Script cache was flushed (e.g., node restart); reload and retry.
		sha, loadErr := vs.redisClient.ScriptLoad(ctx, castVoteScript).Result()
		if loadErr != nil {
			return 0, fmt.Errorf("failed to reload vote script: %w", loadErr)
		}
		vs.scriptSHA = sha
		result, err = vs.redisClient.EvalSha(ctx, vs.scriptSHA, keys, args...).Result()
	}
	if err != nil {
		return 0, fmt.Errorf("vote script failed for battle %s: %w", battleID, err)
	}

	switch v := result.(type) {
	case string:
		switch v {
		case "CLOSED":
			return 0, fmt.Errorf("%w: %s", ledger.ErrBattleClosed, battleID)
		case "DUPLICATE":
			return 0, fmt.Errorf("%w: viewer %s in battle %s", ledger.ErrAlreadyVoted, viewerID, battleID)
		}
		return 0, fmt.Errorf("unexpected vote script reply %q for battle %s", v, battleID)
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected vote script reply type %T for battle %s", result, battleID)
	}
}

// GetTally returns the battle's current tallies. Missing keys read as zero.
func (vs *VoteStore) GetTally(ctx context.Context, battleID string) (ledger.Tally, error) {
	// Both keys share the battle's hash tag, so a single MGET is valid in
	// cluster mode.
	vals, err := vs.redisClient.MGet(ctx,
		tallyKey(battleID, models.SideChallenger),
		tallyKey(battleID, models.SideDefender),
	).Result()
	if err != nil {
		return ledger.Tally{}, fmt.Errorf("failed to get tallies for battle %s: %w", battleID, err)
	}

	var tally ledger.Tally
	if c, parseErr := parseTallyValue(vals[0]); parseErr == nil {
		tally.Challenger = c
	} else {
		return ledger.Tally{}, fmt.Errorf("bad challenger tally for battle %s: %w", battleID, parseErr)
	}
	if d, parseErr := parseTallyValue(vals[1]); parseErr == nil {
		tally.Defender = d
	} else {
		return ledger.Tally{}, fmt.Errorf("bad defender tally for battle %s: %w", battleID, parseErr)
	}
	return tally, nil
}

func parseTallyValue(v interface{}) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected tally type %T", v)
	}
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("unparseable tally %q: %w", s, err)
	}
	return n, nil
}

// ScanVotedBattleIDs walks every master node for tally keys and returns the
// set of battle IDs with recorded votes. Used by the vote syncer to know
// which battles need flushing to MongoDB.
func (vs *VoteStore) ScanVotedBattleIDs(ctx context.Context) ([]string, error) {
	var mu sync.Mutex
	seen := make(map[string]struct{})

	// ForEachMaster runs the callback concurrently per node.
	err := vs.redisClient.ForEachMaster(ctx, func(ctx context.Context, client *redis.Client) error {
		iter := client.Scan(ctx, 0, "votes:*", 250).Iterator()
		for iter.Next(ctx) {
			if id, ok := battleIDFromTallyKey(iter.Val()); ok {
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}
		return iter.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan vote tally keys: %w", err)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids, nil
}

// battleIDFromTallyKey extracts the battle ID from a key like
// "votes:{<id>}:challenger".
func battleIDFromTallyKey(key string) (string, bool) {
	start := strings.IndexByte(key, '{')
	end := strings.IndexByte(key, '}')
	if start < 0 || end <= start+1 {
		return "", false
	}
	return key[start+1 : end], true
}
