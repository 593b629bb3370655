package news

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/infblueocean/watchcrew/internal/logging"
	"github.com/infblueocean/watchcrew/internal/otel"
	"github.com/infblueocean/watchcrew/internal/team"
)

// DefaultMinRefresh is the shortest gap between two summary refreshes.
const DefaultMinRefresh = 30 * time.Minute

// refreshTimeout bounds one background refresh.
const refreshTimeout = 2 * time.Minute

// Cache persists summaries between runs; *store.Store implements it.
type Cache interface {
	News(gameID string) (map[string]string, time.Time, error)
	SaveNews(gameID string, news map[string]string) error
}

// Refresher keeps the cached summaries for one game fresh. Kick never
// blocks its caller; refreshes are rate limited to one per interval.
type Refresher struct {
	provider Provider
	cache    Cache
	game     team.Game
	clock    clockwork.Clock
	limiter  *rate.Limiter
	events   *otel.Logger

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewRefresher creates a refresher. every <= 0 uses DefaultMinRefresh.
func NewRefresher(p Provider, c Cache, game team.Game, every time.Duration, clock clockwork.Clock, events *otel.Logger) *Refresher {
	if every <= 0 {
		every = DefaultMinRefresh
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Refresher{
		provider: p,
		cache:    c,
		game:     game,
		clock:    clock,
		limiter:  rate.NewLimiter(rate.Every(every), 1),
		events:   events,
	}
}

// Kick starts a background refresh when none is running and the limiter
// allows one. It reports whether a refresh was started.
func (r *Refresher) Kick(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running || ctx.Err() != nil {
		return false
	}
	if !r.limiter.AllowN(r.clock.Now(), 1) {
		return false
	}
	r.running = true
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
		_, _ = r.Refresh(ctx)
	}()
	return true
}

// Refresh fetches and caches summaries now, ignoring the limiter.
func (r *Refresher) Refresh(ctx context.Context) (map[string]string, error) {
	start := r.clock.Now()
	summaries, err := r.provider.Summaries(ctx, r.game)
	if err != nil {
		logging.Warn("news: refresh failed", "game", r.game.ID, "error", err)
		r.events.Error(otel.KindNewsError, "news", 0, err)
		return nil, err
	}
	if err := r.cache.SaveNews(r.game.ID, summaries); err != nil {
		logging.Error("news: cache write failed", "game", r.game.ID, "error", err)
		r.events.Error(otel.KindNewsError, "news", 0, err)
		return nil, err
	}
	logging.Info("news: refreshed", "game", r.game.ID, "teams", len(summaries))
	r.events.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindNewsRefresh,
		Comp:  "news",
		Count: len(summaries),
		Dur:   r.clock.Since(start),
	})
	return summaries, nil
}

// Cached returns the last stored summaries; empty when none.
func (r *Refresher) Cached() (map[string]string, error) {
	m, _, err := r.cache.News(r.game.ID)
	return m, err
}

// Wait blocks until a running refresh finishes.
func (r *Refresher) Wait() {
	r.wg.Wait()
}
