package cards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	ReferenceCacheKey = "cards:reference"
	DefaultCacheTTL   = 24 * time.Hour
)

var ErrEmptyReference = errors.New("reference card list is empty")

// One entry of the reference card database.
type ReferenceCard struct {
	ID                 string `json:"id"`
	DbfID              int    `json:"dbfId"`
	Name               string `json:"name,omitempty"`
	CardClass          string `json:"cardClass,omitempty"`
	Set                string `json:"set,omitempty"`
	DeckDuplicateDbfID int    `json:"deckDuplicateDbfId,omitempty"`
}

type ReferenceRedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Reference card database, indexed by card id and dbf id.
type Service struct {
	redis  ReferenceRedisClient
	http   Fetcher
	url    string
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	byID   map[string]ReferenceCard
	byDbf  map[int]ReferenceCard
	loaded bool
}

type ServiceDeps struct {
	Redis        ReferenceRedisClient
	HTTP         Fetcher
	ReferenceURL string
	CacheTTL     time.Duration
	Logger       *slog.Logger
}

func NewService(deps *ServiceDeps) *Service {
	client := deps.HTTP
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		redis:  deps.Redis,
		http:   client,
		url:    deps.ReferenceURL,
		ttl:    ttl,
		logger: logger,
		byID:   make(map[string]ReferenceCard),
		byDbf:  make(map[int]ReferenceCard),
	}
}

// Build a service over an already known card list.
func NewStaticService(cards []ReferenceCard) *Service {
	s := NewService(&ServiceDeps{})
	s.index(cards)
	return s
}

// Load the reference from redis, downloading it when it's not cached.
func (s *Service) Load(ctx context.Context) error {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, ReferenceCacheKey)
		if err != nil {
			s.logger.Warn("failed to read the card reference cache", "error", err)
		}
		if err == nil && cached != "" {
			var cards []ReferenceCard
			if err := json.Unmarshal([]byte(cached), &cards); err == nil && len(cards) > 0 {
				s.index(cards)
				return nil
			}
			s.logger.Warn("invalid card reference cache, downloading it again")
		}
	}

	return s.RevalidateCache(ctx)
}

// Download the reference again and refresh the redis copy.
func (s *Service) RevalidateCache(ctx context.Context) error {
	cards, raw, err := s.download(ctx)
	if err != nil {
		return err
	}
	s.index(cards)

	if s.redis != nil {
		if err := s.redis.Set(ctx, ReferenceCacheKey, string(raw), s.ttl); err != nil {
			return fmt.Errorf("failed to cache the card reference: %w", err)
		}
	}

	s.logger.Info("card reference revalidated", "cards", len(cards))
	return nil
}

func (s *Service) download(ctx context.Context) ([]ReferenceCard, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't create the reference request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't download the card reference: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status downloading the card reference: %d", resp.StatusCode)
	}

	var cards []ReferenceCard
	if err := json.NewDecoder(resp.Body).Decode(&cards); err != nil {
		return nil, nil, fmt.Errorf("couldn't parse the card reference: %w", err)
	}
	if len(cards) == 0 {
		return nil, nil, ErrEmptyReference
	}

	// Only the fields we use are cached.
	raw, err := json.Marshal(cards)
	if err != nil {
		return nil, nil, err
	}
	return cards, raw, nil
}

func (s *Service) index(cards []ReferenceCard) {
	byID := make(map[string]ReferenceCard, len(cards))
	byDbf := make(map[int]ReferenceCard, len(cards))
	for _, card := range cards {
		if card.ID != "" {
			byID[card.ID] = card
		}
		if card.DbfID != 0 {
			byDbf[card.DbfID] = card
		}
	}

	s.mu.Lock()
	s.byID = byID
	s.byDbf = byDbf
	s.loaded = true
	s.mu.Unlock()
}

func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Service) Card(cardID string) (ReferenceCard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.byID[cardID]
	return card, ok
}

func (s *Service) CardByDbfID(dbfID int) (ReferenceCard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.byDbf[dbfID]
	return card, ok
}

// BaseCardID maps a card to the card it counts as when building decks.
// Unknown cards keep their id.
func (s *Service) BaseCardID(cardID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, ok := s.byID[cardID]
	if !ok || card.DeckDuplicateDbfID == 0 {
		return cardID
	}
	if base, ok := s.byDbf[card.DeckDuplicateDbfID]; ok && base.ID != "" {
		return base.ID
	}
	return cardID
}
