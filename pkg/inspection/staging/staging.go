// Package staging holds at most one unconfirmed classification per
// principal between the detect POST and the result GET.
package staging

import (
	"fmt"
	"sync"
	"time"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"github.com/jellydator/ttlcache/v3"
)

// Store is a read-once slot per key.
type Store interface {
	// Stage replaces whatever is pending for key.
	Stage(key string, result *models.PendingResult)
	// Consume returns the pending result and clears the slot in one step.
	Consume(key string) (*models.PendingResult, bool)
}

// KeyFor returns the staging key of a user principal.
func KeyFor(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// TTLStore keeps pending results in memory and forgets them after ttl.
type TTLStore struct {
	cache *ttlcache.Cache[string, *models.PendingResult]

	mu      sync.Mutex
	running bool
}

var _ Store = (*TTLStore)(nil)

func NewTTLStore(ttl time.Duration) *TTLStore {
	cache := ttlcache.New[string, *models.PendingResult](
		ttlcache.WithTTL[string, *models.PendingResult](ttl),
		ttlcache.WithDisableTouchOnHit[string, *models.PendingResult](),
	)
	return &TTLStore{cache: cache}
}

// Start runs the expiry janitor in the background.
func (s *TTLStore) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.cache.Start()
}

// Stop ends the janitor started by Start. Safe to call more than once.
func (s *TTLStore) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.cache.Stop()
}

func (s *TTLStore) Stage(key string, result *models.PendingResult) {
	if result == nil {
		s.cache.Delete(key)
		return
	}
	s.cache.Set(key, result, ttlcache.DefaultTTL)
}

func (s *TTLStore) Consume(key string) (*models.PendingResult, bool) {
	item, ok := s.cache.GetAndDelete(key)
	if !ok || item == nil || item.IsExpired() {
		return nil, false
	}
	return item.Value(), true
}

// Len reports the number of staged results, expired ones included until the
// janitor removes them.
func (s *TTLStore) Len() int {
	return s.cache.Len()
}
