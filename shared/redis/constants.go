// shared/redis/constants.go
package redis

import "fmt"

const (
	// Key constants for Redis battle data. The {%s} hash tag keeps every
	// key of a battle in the same cluster slot so Lua scripts can touch
	// the marker and both tallies atomically.
	VoteMarkerKeyPrefix   = "vote:{%s}:"          // Per-viewer vote marker: vote:{battleID}:<viewerID>
	VoteTallyKeyPrefix    = "votes:{%s}:"         // Per-side running tally: votes:{battleID}:<side>
	BattleStatusKeyPrefix = "battle_status:{%s}:" // Cached battle status for the vote script: battle_status:{battleID}
)

// ErrRedisKeyNotFound is returned when a looked-up key does not exist.
var ErrRedisKeyNotFound = fmt.Errorf("redis key not found")
