// battle/syncer/vote_syncer.go
package syncer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/songversus/city-arena/battle/store"
	"github.com/songversus/city-arena/shared/cluster"
	"github.com/songversus/city-arena/shared/config"
	"github.com/songversus/city-arena/shared/registry"
)

// syncLeaderKey elects one instance for the global tally flush: whichever
// instance the hash ring assigns this constant key to runs the pass.
const syncLeaderKey = "vote-tally-sync"

// VoteSyncer periodically flushes live Redis tallies into the MongoDB
// battle documents, so listings stay roughly current even though the
// ledger is authoritative until settlement. Only the elected leader
// instance performs the flush.
type VoteSyncer struct {
	config            *config.BattleServiceConfig
	voteStore         *store.VoteStore
	battleStore       *store.BattleStore
	assignmentManager *cluster.ServiceAssignmentManager
	serviceRegistrar  *registry.ServiceRegistrar
	ctx               context.Context
	cancel            context.CancelFunc
}

// NewVoteSyncer creates a new VoteSyncer instance.
func NewVoteSyncer(
	cfg *config.BattleServiceConfig,
	voteStore *store.VoteStore,
	battleStore *store.BattleStore,
	registryClient *registry.RegistryClient,
	serviceRegistrar *registry.ServiceRegistrar,
) *VoteSyncer {
	log.Println("VoteSyncer: Initializing.")
	ctx, cancel := context.WithCancel(context.Background())

	assignmentManager := cluster.NewServiceAssignmentManager(
		registryClient,
		serviceRegistrar,
		cfg.HeartbeatInterval, // Use heartbeat interval for consistent hash updates
	)

	return &VoteSyncer{
		config:            cfg,
		voteStore:         voteStore,
		battleStore:       battleStore,
		assignmentManager: assignmentManager,
		serviceRegistrar:  serviceRegistrar,
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Start initiates the sync loop. This should be run in a goroutine.
func (vsy *VoteSyncer) Start() {
	log.Printf("Vote Syncer starting with sync interval: %v", vsy.config.SyncInterval)
	ticker := time.NewTicker(vsy.config.SyncInterval)
	defer ticker.Stop()

	go vsy.assignmentManager.Start()

	for {
		select {
		case <-vsy.ctx.Done():
			log.Println("Vote Syncer shutting down.")
			vsy.assignmentManager.Stop()
			return
		case <-ticker.C:
			vsy.performGlobalSync()
		}
	}
}

// Stop gracefully stops the sync loop.
func (vsy *VoteSyncer) Stop() {
	vsy.cancel()
}

// performGlobalSync flushes tallies for every battle with recorded votes.
// Only the elected leader runs the pass; other instances return
// immediately.
func (vsy *VoteSyncer) performGlobalSync() {
	isLeader, err := vsy.assignmentManager.IsResponsible(syncLeaderKey)
	if err != nil {
		log.Printf("WARNING: VoteSyncer: Failed to check sync leadership: %v", err)
		return
	}
	if !isLeader {
		return
	}

	ctx, cancel := context.WithTimeout(vsy.ctx, vsy.config.SyncTimeout)
	defer cancel()

	battleIDs, err := vsy.voteStore.ScanVotedBattleIDs(ctx)
	if err != nil {
		log.Printf("ERROR: VoteSyncer: Failed to scan voted battles: %v", err)
		return
	}
	if len(battleIDs) == 0 {
		return
	}

	flushed := 0
	for _, battleID := range battleIDs {
		tally, err := vsy.voteStore.GetTally(ctx, battleID)
		if err != nil {
			log.Printf("WARNING: VoteSyncer: Failed to read tally for battle %s: %v", battleID, err)
			continue
		}
		if err := vsy.battleStore.UpdateTallies(ctx, battleID, tally.Challenger, tally.Defender); err != nil {
			if errors.Is(err, store.ErrBattleNotFound) {
				// Ledger keys for a deleted battle; they expire on their own.
				continue
			}
			if errors.Is(err, store.ErrWrongBattleStatus) {
				// Settled while this pass ran; MarkEnded stamped the final
				// tallies and this snapshot must not overwrite them.
				continue
			}
			log.Printf("WARNING: VoteSyncer: Failed to flush tally for battle %s: %v", battleID, err)
			continue
		}
		flushed++
	}

	log.Printf("INFO: VoteSyncer: Flushed tallies for %d battle(s).", flushed)
}
