package cache

import (
	"context"
	"errors"
	"fmt"
	"hsmeta/pkg/bucket"
	"hsmeta/pkg/gamevalues"
	"hsmeta/pkg/models/meta"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const DefaultDeckClassTTL = time.Hour

type DeckIDReader interface {
	GetJSON(ctx context.Context, key string, out any) error
}

// Maps deck ids to the class directory holding their detailed blob.
// One entry per window (format, rank bracket and period).
type DeckClassCache struct {
	objects DeckIDReader
	prefix  string
	ttl     time.Duration
	logger  *slog.Logger

	loads   singleflight.Group
	mu      sync.RWMutex
	windows map[meta.Selector]*deckClassEntry
}

type deckClassEntry struct {
	classes  map[string]string
	loadedAt time.Time
}

type DeckClassCacheDeps struct {
	Objects DeckIDReader
	Prefix  string
	TTL     time.Duration
	Logger  *slog.Logger
}

func NewDeckClassCache(deps *DeckClassCacheDeps) *DeckClassCache {
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultDeckClassTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DeckClassCache{
		objects: deps.Objects,
		prefix:  deps.Prefix,
		ttl:     ttl,
		logger:  logger,
		windows: make(map[meta.Selector]*deckClassEntry),
	}
}

// Only the format, rank bracket and period of a selector identify a window.
func windowOf(sel meta.Selector) meta.Selector {
	return meta.Selector{
		Format:      sel.Format,
		RankBracket: sel.RankBracket,
		TimePeriod:  sel.TimePeriod,
	}
}

// RefreshIfStale reloads every class's deck id list of the window when the last load is older than the TTL.
// Concurrent refreshes of one window share a single load, other windows are not blocked.
func (c *DeckClassCache) RefreshIfStale(ctx context.Context, window meta.Selector, now time.Time) error {
	window = windowOf(window)
	if c.fresh(window, now) {
		return nil
	}

	_, err, _ := c.loads.Do(window.String(), func() (any, error) {
		if c.fresh(window, now) {
			return nil, nil
		}

		classes, err := c.load(ctx, window)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.windows[window] = &deckClassEntry{
			classes:  classes,
			loadedAt: now,
		}
		c.mu.Unlock()
		return nil, nil
	})
	return err
}

func (c *DeckClassCache) fresh(window meta.Selector, now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.windows[window]
	return exists && now.Sub(entry.loadedAt) < c.ttl
}

// load reads the deck ids of every class, without holding the lock.
func (c *DeckClassCache) load(ctx context.Context, window meta.Selector) (map[string]string, error) {
	classes := make(map[string]string)
	for _, class := range gamevalues.Classes {
		sel := window
		sel.PlayerClass = class
		key := meta.OutputKeys{Prefix: c.prefix, Selector: sel}.AllDeckIDs()

		var deckIDs []string
		err := c.objects.GetJSON(ctx, key, &deckIDs)
		if errors.Is(err, bucket.ErrNotFound) {
			c.logger.Warn("Missing deck ids", "key", key)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("couldn't load the deck ids of %s: %w", class, err)
		}

		for _, deckID := range deckIDs {
			classes[deckID] = class
		}
	}
	return classes, nil
}

// ClassOf returns the class of a deck, refreshing the window first if needed.
func (c *DeckClassCache) ClassOf(ctx context.Context, window meta.Selector, deckID string, now time.Time) (string, bool, error) {
	if err := c.RefreshIfStale(ctx, window, now); err != nil {
		return "", false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	class, exists := c.windows[windowOf(window)].classes[deckID]
	return class, exists, nil
}
