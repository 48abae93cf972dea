package cache

import (
	"sync"
	"time"

	"github.com/dlow/portfolio-dashboard/internal/models"
)

// MemoryCache is the in-memory store for provider data. Quotes and FX rates
// expire on a TTL; history (closes plus splits) is keyed by symbol and date
// range and lives for the session.
type MemoryCache struct {
	quotes    map[string]quoteEntry
	history   map[string]historyEntry
	fxRates   map[string]quoteEntry
	quoteMu   sync.RWMutex
	historyMu sync.RWMutex
	fxMu      sync.RWMutex
	quoteTTL  time.Duration
}

type quoteEntry struct {
	price     float64
	fetchedAt time.Time
}

type historyEntry struct {
	prices []models.PricePoint
	splits []models.SplitEvent
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(quoteTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		quotes:   make(map[string]quoteEntry),
		history:  make(map[string]historyEntry),
		fxRates:  make(map[string]quoteEntry),
		quoteTTL: quoteTTL,
	}
}

// historyCacheKey generates a cache key for a symbol's history range
func historyCacheKey(symbol string, startDate, endDate time.Time) string {
	return symbol + "|" + startDate.Format("2006-01-02") + "|" + endDate.Format("2006-01-02")
}

// GetQuote retrieves a cached quote if fresh
func (c *MemoryCache) GetQuote(symbol string) (float64, bool) {
	c.quoteMu.RLock()
	defer c.quoteMu.RUnlock()

	entry, exists := c.quotes[symbol]
	if !exists {
		return 0, false
	}
	if time.Since(entry.fetchedAt) > c.quoteTTL {
		return 0, false
	}
	return entry.price, true
}

// SetQuote caches a quote
func (c *MemoryCache) SetQuote(symbol string, price float64) {
	c.quoteMu.Lock()
	defer c.quoteMu.Unlock()

	c.quotes[symbol] = quoteEntry{
		price:     price,
		fetchedAt: time.Now(),
	}
}

// InvalidateQuote removes a quote from the cache
func (c *MemoryCache) InvalidateQuote(symbol string) {
	c.quoteMu.Lock()
	defer c.quoteMu.Unlock()

	delete(c.quotes, symbol)
}

// GetHistory retrieves cached history if available
func (c *MemoryCache) GetHistory(symbol string, startDate, endDate time.Time) ([]models.PricePoint, []models.SplitEvent, bool) {
	c.historyMu.RLock()
	defer c.historyMu.RUnlock()

	entry, exists := c.history[historyCacheKey(symbol, startDate, endDate)]
	if !exists {
		return nil, nil, false
	}
	return entry.prices, entry.splits, true
}

// SetHistory caches a symbol's history range
func (c *MemoryCache) SetHistory(symbol string, startDate, endDate time.Time, prices []models.PricePoint, splits []models.SplitEvent) {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()

	c.history[historyCacheKey(symbol, startDate, endDate)] = historyEntry{
		prices: prices,
		splits: splits,
	}
}

// GetFXRate retrieves a cached FX rate if fresh
func (c *MemoryCache) GetFXRate(pair string) (float64, bool) {
	c.fxMu.RLock()
	defer c.fxMu.RUnlock()

	entry, exists := c.fxRates[pair]
	if !exists {
		return 0, false
	}
	if time.Since(entry.fetchedAt) > c.quoteTTL {
		return 0, false
	}
	return entry.price, true
}

// SetFXRate caches an FX rate
func (c *MemoryCache) SetFXRate(pair string, rate float64) {
	c.fxMu.Lock()
	defer c.fxMu.Unlock()

	c.fxRates[pair] = quoteEntry{
		price:     rate,
		fetchedAt: time.Now(),
	}
}

// Clear removes all cached data
func (c *MemoryCache) Clear() {
	c.quoteMu.Lock()
	c.quotes = make(map[string]quoteEntry)
	c.quoteMu.Unlock()

	c.historyMu.Lock()
	c.history = make(map[string]historyEntry)
	c.historyMu.Unlock()

	c.fxMu.Lock()
	c.fxRates = make(map[string]quoteEntry)
	c.fxMu.Unlock()
}
