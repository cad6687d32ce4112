package pktaggroups

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCacheMaxAge is how long a lookup response is used without asking the server again.
	DefaultCacheMaxAge = 10 * time.Minute
	// DefaultCacheStaleReadTime is how long a lookup response may be used when a refresh fails.
	DefaultCacheStaleReadTime = time.Hour
	// DefaultPreferLocalTagDataTime is how long local edits are overlaid on a lookup response older
	// than they are.
	DefaultPreferLocalTagDataTime = 10 * time.Minute
)

var (
	// ErrLookupDisabled is returned by GetTags when lookups are turned off.
	ErrLookupDisabled = errors.New("tag group lookups are disabled")
	// ErrNoChannel is returned by GetTags when the device does not have a channel yet.
	ErrNoChannel = errors.New("channel ID is not available")
)

const lookupCacheKey = "lookup"

type cachedLookup struct {
	requested TagGroups
	response  LookupResponse
}

// LookupConfig configures a LookupManager.
type LookupConfig struct {
	// Client performs the lookups. It is required.
	Client LookupAPIClient
	// History supplies local edits to overlay on responses. It may be nil.
	History *MutationHistory
	// ChannelID returns the device's channel ID, or "" if it has none yet.
	ChannelID func() string
	// CacheMaxAge defaults to DefaultCacheMaxAge.
	CacheMaxAge time.Duration
	// CacheStaleReadTime defaults to DefaultCacheStaleReadTime.
	CacheStaleReadTime time.Duration
	// PreferLocalTagDataTime defaults to DefaultPreferLocalTagDataTime.
	PreferLocalTagDataTime time.Duration
	// Disabled turns lookups off.
	Disabled bool
	Loggers  ldlog.Loggers
}

// LookupManager answers tag-group queries for audience checks, using a cached server response
// corrected by local edits.
type LookupManager struct {
	config   LookupConfig
	cache    *cache.Cache
	requests singleflight.Group
	enabled  bool
	lock     sync.RWMutex
	now      func() time.Time
}

// NewLookupManager creates a LookupManager.
func NewLookupManager(config LookupConfig) *LookupManager {
	if config.CacheMaxAge <= 0 {
		config.CacheMaxAge = DefaultCacheMaxAge
	}
	if config.CacheStaleReadTime <= 0 {
		config.CacheStaleReadTime = DefaultCacheStaleReadTime
	}
	if config.CacheStaleReadTime < config.CacheMaxAge {
		config.CacheStaleReadTime = config.CacheMaxAge
	}
	if config.PreferLocalTagDataTime <= 0 {
		config.PreferLocalTagDataTime = DefaultPreferLocalTagDataTime
	}
	if config.ChannelID == nil {
		config.ChannelID = func() string { return "" }
	}
	return &LookupManager{
		config:  config,
		cache:   cache.New(config.CacheStaleReadTime, 5*time.Minute),
		enabled: !config.Disabled,
		now:     time.Now,
	}
}

// SetEnabled turns lookups on or off. Turning them off discards the cached response.
func (m *LookupManager) SetEnabled(enabled bool) {
	m.lock.Lock()
	m.enabled = enabled
	m.lock.Unlock()
	if !enabled {
		m.cache.Flush()
	}
}

// GetTags returns the channel's current tags within the requested groups.
func (m *LookupManager) GetTags(ctx context.Context, requested TagGroups) (TagGroups, error) {
	m.lock.RLock()
	enabled := m.enabled
	m.lock.RUnlock()
	if !enabled {
		return nil, ErrLookupDisabled
	}
	if requested.IsEmpty() {
		return TagGroups{}, nil
	}
	channelID := m.config.ChannelID()
	if channelID == "" {
		return nil, ErrNoChannel
	}

	cached := m.cachedFor(requested)
	response := cached
	if cached == nil || m.now().Sub(cached.FetchedAt) >= m.config.CacheMaxAge {
		refreshed, err := m.refresh(ctx, channelID, requested, cached)
		switch {
		case err == nil:
			response = refreshed
		case cached != nil && m.now().Sub(cached.FetchedAt) < m.config.CacheStaleReadTime:
			m.config.Loggers.Warnf("Tag group lookup failed (%s); using cached tags", err)
		default:
			return nil, err
		}
	}

	tags := response.TagGroups
	if m.config.History != nil {
		maxAge := m.now().Sub(response.FetchedAt) + m.config.PreferLocalTagDataTime
		tags = m.config.History.ApplyHistory(tags, maxAge)
	}
	return tags.Intersect(requested), nil
}

func (m *LookupManager) cachedFor(requested TagGroups) *LookupResponse {
	value, ok := m.cache.Get(lookupCacheKey)
	if !ok {
		return nil
	}
	entry, ok := value.(cachedLookup)
	if !ok || !entry.requested.ContainsAll(requested) {
		return nil
	}
	response := entry.response
	return &response
}

func (m *LookupManager) refresh(
	ctx context.Context,
	channelID string,
	requested TagGroups,
	cached *LookupResponse,
) (*LookupResponse, error) {
	// Concurrent audience checks asking for the same groups share one request.
	result, err, _ := m.requests.Do(requested.CacheKey(), func() (interface{}, error) {
		response, err := m.config.Client.Lookup(ctx, channelID, requested, cached)
		if err != nil {
			return nil, err
		}
		m.cache.Set(lookupCacheKey, cachedLookup{requested: requested.Clone(), response: response}, cache.DefaultExpiration)
		return response, nil
	})
	if err != nil {
		return nil, err
	}
	response := result.(LookupResponse) //nolint:forcetypeassert
	return &response, nil
}
