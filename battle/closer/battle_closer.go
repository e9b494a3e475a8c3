// battle/closer/battle_closer.go
package closer

import (
	"context"
	"log"
	"time"

	"github.com/songversus/city-arena/battle/service"
	"github.com/songversus/city-arena/battle/store"
	"github.com/songversus/city-arena/shared/cluster"
	"github.com/songversus/city-arena/shared/config"
	"github.com/songversus/city-arena/shared/registry"
)

// BattleCloser periodically finds battles past their end time and settles
// them. Responsibility for each battle is sharded across instances via the
// consistent hash ring, so two instances never settle the same battle.
type BattleCloser struct {
	config            *config.BattleServiceConfig
	battleStore       *store.BattleStore
	battleService     *service.BattleService
	assignmentManager *cluster.ServiceAssignmentManager
	serviceRegistrar  *registry.ServiceRegistrar
	ctx               context.Context
	cancel            context.CancelFunc
}

// NewBattleCloser creates a new BattleCloser instance.
func NewBattleCloser(
	cfg *config.BattleServiceConfig,
	battleStore *store.BattleStore,
	battleService *service.BattleService,
	registryClient *registry.RegistryClient,
	serviceRegistrar *registry.ServiceRegistrar,
) *BattleCloser {
	log.Println("BattleCloser: Initialized.")
	ctx, cancel := context.WithCancel(context.Background())

	assignmentManager := cluster.NewServiceAssignmentManager(
		registryClient,
		serviceRegistrar,
		cfg.HeartbeatInterval, // Using heartbeat interval for consistent hash updates
	)

	return &BattleCloser{
		config:            cfg,
		battleStore:       battleStore,
		battleService:     battleService,
		assignmentManager: assignmentManager,
		serviceRegistrar:  serviceRegistrar,
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Start initiates the close loop. This should be run in a goroutine.
func (bc *BattleCloser) Start() {
	log.Printf("Battle Closer starting with close interval: %v", bc.config.CloseInterval)
	ticker := time.NewTicker(bc.config.CloseInterval)
	defer ticker.Stop()

	go bc.assignmentManager.Start()

	for {
		select {
		case <-bc.ctx.Done():
			log.Println("Battle Closer shutting down.")
			bc.assignmentManager.Stop()
			return
		case <-ticker.C:
			bc.performClosePass()
		}
	}
}

// Stop gracefully stops the close loop.
func (bc *BattleCloser) Stop() {
	bc.cancel()
}

// performClosePass settles every expired battle this instance is
// responsible for.
func (bc *BattleCloser) performClosePass() {
	ctx, cancel := context.WithTimeout(bc.ctx, bc.config.SyncTimeout)
	defer cancel()

	expired, err := bc.battleStore.ListExpiredLive(ctx, time.Now().UnixMilli())
	if err != nil {
		log.Printf("ERROR: BattleCloser: Failed to list expired battles: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	settled := 0
	for i := range expired {
		battle := &expired[i]

		isResponsible, err := bc.assignmentManager.IsResponsible(battle.ID)
		if err != nil {
			log.Printf("WARNING: BattleCloser: Failed to check responsibility for battle %s: %v", battle.ID, err)
			continue
		}
		if !isResponsible {
			continue
		}

		if err := bc.battleService.Settle(ctx, battle); err != nil {
			log.Printf("ERROR: BattleCloser: Failed to settle battle %s: %v", battle.ID, err)
			continue
		}
		settled++
	}

	if settled > 0 {
		log.Printf("INFO: BattleCloser: Settled %d expired battle(s).", settled)
	}
}
