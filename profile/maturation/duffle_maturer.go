// profile/maturation/duffle_maturer.go
package maturation

import (
	"context"
	"log"
	"time"

	"github.com/songversus/city-arena/profile/store"
)

// DuffleMaturer periodically flips locked duffles whose unlock time has
// elapsed to ready. Opening stays an explicit user action; this loop only
// performs the locked -> ready status transition.
type DuffleMaturer struct {
	profileStore *store.ProfileStore
	interval     time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewDuffleMaturer creates a new DuffleMaturer.
func NewDuffleMaturer(ps *store.ProfileStore, interval time.Duration) *DuffleMaturer {
	return &DuffleMaturer{
		profileStore: ps,
		interval:     interval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start begins the maturation loop in a goroutine.
func (dm *DuffleMaturer) Start() {
	log.Printf("INFO: Duffle maturation loop starting, checking every %v.", dm.interval)
	go dm.run()
}

// Stop signals the loop to stop and waits for it to finish.
func (dm *DuffleMaturer) Stop() {
	close(dm.stopChan)
	<-dm.doneChan
	log.Println("INFO: Duffle maturation loop stopped.")
}

func (dm *DuffleMaturer) run() {
	defer close(dm.doneChan)

	ticker := time.NewTicker(dm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			dm.matureOnce()
		case <-dm.stopChan:
			return
		}
	}
}

func (dm *DuffleMaturer) matureOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	modified, err := dm.profileStore.MatureDuffles(ctx, time.Now())
	if err != nil {
		log.Printf("ERROR: Duffle maturation pass failed: %v", err)
		return
	}
	if modified > 0 {
		log.Printf("INFO: Duffle maturation pass readied duffles on %d profiles.", modified)
	}
}
