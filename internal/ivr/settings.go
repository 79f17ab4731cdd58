// Package ivr supplies the phone menu: settings fetched from the
// dashboard with a TTL cache, a built-in fallback so calls can always
// proceed, and the menu selection logic driven by gathered digits.
package ivr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheTTL     = 5 * time.Minute
	defaultFetchTimeout = 2 * time.Second

	settingsCacheKey = "ivr-settings"
)

// MenuOption is one entry of the phone menu.
type MenuOption struct {
	KeyPress           string `json:"keyPress"`
	OptionName         string `json:"optionName"`
	OptionText         string `json:"optionText"`
	DepartmentGreeting string `json:"departmentGreeting"`
	IntentType         string `json:"intentType"`
	ActionType         string `json:"actionType,omitempty"`
	TransferNumber     string `json:"transferNumber,omitempty"`
	OrderIndex         int    `json:"orderIndex"`
	IsActive           bool   `json:"isActive"`
}

// ActionTransfer marks an option that hands the call to a human
// instead of continuing automated handling.
const ActionTransfer = "transfer"

// Settings is the menu configuration served by the dashboard.
type Settings struct {
	GreetingText         string       `json:"greetingText"`
	InvalidOptionMessage string       `json:"invalidOptionMessage"`
	ReplayMessage        string       `json:"replayMessage"`
	UseAudioGreeting     bool         `json:"useAudioGreeting"`
	GreetingAudioURL     string       `json:"greetingAudioUrl"`
	MenuOptions          []MenuOption `json:"menuOptions"`
}

// SourceOption configures the source.
type SourceOption func(*Source)

// WithCacheTTL overrides the settings cache TTL.
func WithCacheTTL(ttl time.Duration) SourceOption {
	return func(s *Source) { s.ttl = ttl }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) SourceOption {
	return func(s *Source) { s.httpClient = httpClient }
}

// WithAPIKey adds an x-api-key header to settings fetches.
func WithAPIKey(key string) SourceOption {
	return func(s *Source) { s.apiKey = key }
}

// Source fetches menu settings with a TTL cache. A fetch failure falls
// back to the last good settings if any were ever fetched, and to the
// built-in defaults otherwise, so the call flow never stalls on the
// dashboard being down.
type Source struct {
	url        string
	apiKey     string
	ttl        time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	cache *expirable.LRU[string, *Settings]

	mu   sync.RWMutex
	last *Settings // stale copy kept past TTL for fetch failures
}

// NewSource creates a settings source. An empty url means the built-in
// defaults are always used.
func NewSource(url string, logger *slog.Logger, opts ...SourceOption) *Source {
	s := &Source{
		url:        url,
		ttl:        defaultCacheTTL,
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = expirable.NewLRU[string, *Settings](1, nil, s.ttl)
	return s
}

// Settings returns the current menu settings. It never fails; the
// worst case is the built-in default menu.
func (s *Source) Settings(ctx context.Context) *Settings {
	if s.url == "" {
		return DefaultSettings()
	}

	if cached, ok := s.cache.Get(settingsCacheKey); ok {
		return cached
	}

	fetched, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("ivr settings fetch failed, using fallback",
			slog.String("url", s.url),
			slog.String("error", err.Error()))

		s.mu.RLock()
		stale := s.last
		s.mu.RUnlock()
		if stale != nil {
			return stale
		}
		return DefaultSettings()
	}

	s.cache.Add(settingsCacheKey, fetched)
	s.mu.Lock()
	s.last = fetched
	s.mu.Unlock()
	return fetched
}

func (s *Source) fetch(ctx context.Context) (*Settings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create settings request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("settings request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("settings fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read settings body: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(body, &settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if len(settings.MenuOptions) == 0 {
		return nil, fmt.Errorf("settings contain no menu options")
	}
	return &settings, nil
}

// Invalidate clears the cached settings, forcing the next call to
// fetch fresh ones.
func (s *Source) Invalidate() {
	s.cache.Remove(settingsCacheKey)
}

// DefaultSettings is the built-in fallback menu used whenever the
// dashboard is unreachable: one basketball option, one party option,
// and the operator.
func DefaultSettings() *Settings {
	return &Settings{
		GreetingText:         "Thank you for calling Premier Sports Facility! Please listen carefully to the following options.",
		InvalidOptionMessage: "I'm sorry, that's not a valid option.",
		ReplayMessage:        "I didn't catch that.",
		MenuOptions: []MenuOption{
			{
				KeyPress:           "1",
				OptionName:         "Basketball Court Rentals",
				OptionText:         "Press 1 for basketball court rentals.",
				DepartmentGreeting: "Great choice! I can help you book a basketball court. What date and time would you like to reserve?",
				IntentType:         "basketball_rental",
				OrderIndex:         1,
				IsActive:           true,
			},
			{
				KeyPress:           "2",
				OptionName:         "Birthday Party Packages",
				OptionText:         "Press 2 for birthday party packages.",
				DepartmentGreeting: "Perfect! Let me help you plan an amazing birthday party. How many guests are you expecting?",
				IntentType:         "party_booking",
				OrderIndex:         2,
				IsActive:           true,
			},
			{
				KeyPress:           "0",
				OptionName:         "Live Operator",
				OptionText:         "Or press 0 to speak with a representative.",
				DepartmentGreeting: "Please hold while I transfer you to a representative.",
				IntentType:         "transfer",
				ActionType:         ActionTransfer,
				OrderIndex:         3,
				IsActive:           true,
			},
		},
	}
}

func sortedActiveOptions(opts []MenuOption) []MenuOption {
	active := make([]MenuOption, 0, len(opts))
	for _, o := range opts {
		if o.IsActive {
			active = append(active, o)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].OrderIndex < active[j].OrderIndex
	})
	return active
}
