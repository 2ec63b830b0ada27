package cache

import (
	"time"

	"github.com/damon-houk/ptax-enricher/internal/domain/entity"
	gocache "github.com/patrickmn/go-cache"
)

// Entry is a memoized answer of the rate source for one date
type Entry struct {
	Quote     *entity.DailyQuote
	Published bool
}

// QuoteCache memoizes rate source answers by calendar date for one run.
// Entries are write-once: the first answer stored for a date wins. Only
// definitive answers (a published quote or "not published") belong here;
// failed fetches must never be stored.
type QuoteCache struct {
	store *gocache.Cache
}

// NewQuoteCache creates an empty cache whose entries never expire
func NewQuoteCache() *QuoteCache {
	return &QuoteCache{
		store: gocache.New(gocache.NoExpiration, 0),
	}
}

func key(date time.Time) string {
	return entity.Day(date).Format(entity.DateFormat)
}

// Get returns the memoized entry for date
func (c *QuoteCache) Get(date time.Time) (Entry, bool) {
	v, ok := c.store.Get(key(date))
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// PutQuote stores a published quote under its date. It reports false when the
// date already had an entry.
func (c *QuoteCache) PutQuote(quote *entity.DailyQuote) bool {
	if quote == nil {
		return false
	}
	return c.store.Add(key(quote.Date), Entry{Quote: quote, Published: true}, gocache.NoExpiration) == nil
}

// MarkNotPublished records that date has no quote
func (c *QuoteCache) MarkNotPublished(date time.Time) bool {
	return c.store.Add(key(date), Entry{Published: false}, gocache.NoExpiration) == nil
}

// Size returns the number of dates in the cache
func (c *QuoteCache) Size() int {
	return c.store.ItemCount()
}
