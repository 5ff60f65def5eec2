package payments

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// KeySweeper periodically purges expired idempotency key catalog rows. The
// catalog is observability-only, so sweeping is safe at any time.
type KeySweeper struct {
	svc      *Service
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewKeySweeper creates a sweeper over the given service.
func NewKeySweeper(svc *Service, interval time.Duration) *KeySweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &KeySweeper{
		svc:      svc,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *KeySweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	log.Infof("[KeySweeper] Starting (interval=%s)", s.interval)

	s.wg.Add(1)
	go s.loop()
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *KeySweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
	s.wg.Wait()
	log.Info("[KeySweeper] Stopped")
}

func (s *KeySweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			purged, err := s.svc.PurgeExpiredIdempotencyKeys(context.Background())
			if err != nil {
				log.Errorf("[KeySweeper] Purge failed: %v", err)
				continue
			}
			if purged > 0 {
				log.Infof("[KeySweeper] Purged %d expired idempotency keys", purged)
			}
		}
	}
}
