// Package collection turns the paginated Discogs collection into a
// de-duplicated, shuffled list of releases held behind a short-lived cache.
package collection

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/pders01/analog/internal/config"
	"github.com/pders01/analog/internal/debuglog"
	"github.com/pders01/analog/internal/discogs"
	"github.com/pders01/analog/internal/storage"
)

const DefaultTTL = 5 * time.Minute

// Source is the paginated catalog the Fetcher reads from.
type Source interface {
	HasCredentials() bool
	CollectionPage(ctx context.Context, page int) (*discogs.CollectionPage, error)
}

// State describes where the items of a Snapshot came from.
type State int

const (
	// StateEmpty: nothing was ever fetched successfully.
	StateEmpty State = iota
	// StateFresh: the items were fetched during this call.
	StateFresh
	// StateCached: the cache was younger than the TTL, no network access.
	StateCached
	// StateStale: the refetch failed and the last good list is served.
	StateStale
	// StateStaleTimeout: like StateStale, but the failure was a timeout.
	StateStaleTimeout
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFresh:
		return "fresh"
	case StateCached:
		return "cached"
	case StateStale:
		return "stale"
	case StateStaleTimeout:
		return "stale (timeout)"
	default:
		return "unknown"
	}
}

// Snapshot is the outcome of one Fetch call.
type Snapshot struct {
	Items     []*storage.Release
	FetchedAt time.Time
	State     State
	Err       error
}

// Cache holds the last good list. Entries are replaced wholesale and never
// modified in place, so a returned slice stays valid after a refresh.
type Cache struct {
	mu          sync.RWMutex
	items       []*storage.Release
	fetchedAt   time.Time
	invalidated bool
	gen         uint64
}

func (c *Cache) load() ([]*storage.Release, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items, c.fetchedAt, c.invalidated
}

// generation counts invalidations. A refresh records it before fetching.
func (c *Cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// store replaces the list. The invalidation flag is only cleared when no
// Invalidate arrived after gen was read.
func (c *Cache) store(items []*storage.Release, at time.Time, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.fetchedAt = at
	if c.gen == gen {
		c.invalidated = false
	}
}

func (c *Cache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.invalidated = true
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// WithShuffle replaces the random permutation applied to every fresh list.
func WithShuffle(shuffle func([]*storage.Release)) Option {
	return func(f *Fetcher) { f.shuffle = shuffle }
}

// WithTTL overrides the freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(f *Fetcher) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

type Fetcher struct {
	source  Source
	ttl     time.Duration
	cache   Cache
	group   singleflight.Group
	now     func() time.Time
	shuffle func([]*storage.Release)

	hookMu sync.RWMutex
	hooks  []func([]*storage.Release)
}

func NewFetcher(source Source, cfg *config.Config, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:  source,
		ttl:     DefaultTTL,
		now:     time.Now,
		shuffle: shuffle,
	}
	if cfg != nil && cfg.Discogs.CacheTTL > 0 {
		f.ttl = cfg.Discogs.CacheTTL
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// OnUpdate registers fn to run with every freshly fetched list.
func (f *Fetcher) OnUpdate(fn func([]*storage.Release)) {
	f.hookMu.Lock()
	defer f.hookMu.Unlock()
	f.hooks = append(f.hooks, fn)
}

// Invalidate makes the next call refetch. The cached list is kept as the
// fallback.
func (f *Fetcher) Invalidate() {
	f.cache.invalidate()
}

// Collection returns the current collection. It never fails: on error the
// last good list is returned, or an empty slice.
func (f *Fetcher) Collection(ctx context.Context) []*storage.Release {
	return f.Fetch(ctx).Items
}

// Fetch is Collection with the provenance of the result attached.
func (f *Fetcher) Fetch(ctx context.Context) Snapshot {
	if items, at, invalidated := f.cache.load(); !at.IsZero() && !invalidated && f.now().Sub(at) < f.ttl {
		return Snapshot{Items: items, FetchedAt: at, State: StateCached}
	}

	v, _, _ := f.group.Do("collection", func() (interface{}, error) {
		return f.refresh(ctx), nil
	})
	return v.(Snapshot)
}

func (f *Fetcher) refresh(ctx context.Context) Snapshot {
	log := debuglog.WithFields(map[string]interface{}{
		"component": "collection",
		"cycle":     uuid.NewString(),
	})
	started := f.now()
	gen := f.cache.generation()

	if !f.source.HasCredentials() {
		return f.fallback(log, discogs.ErrMissingCredentials)
	}

	raw, err := f.fetchAll(ctx, log)
	if err != nil {
		return f.fallback(log, err)
	}

	items := Merge(raw)
	f.shuffle(items)
	f.cache.store(items, started, gen)
	log.Infof("fetched %d records, %d unique releases", len(raw), len(items))

	f.hookMu.RLock()
	hooks := append([]func([]*storage.Release){}, f.hooks...)
	f.hookMu.RUnlock()
	for _, fn := range hooks {
		fn(items)
	}

	return Snapshot{Items: items, FetchedAt: started, State: StateFresh}
}

func (f *Fetcher) fetchAll(ctx context.Context, log *debuglog.FieldLogger) ([]*discogs.CollectionRelease, error) {
	var all []*discogs.CollectionRelease
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := f.source.CollectionPage(ctx, page)
		if err != nil {
			return nil, err
		}
		log.With("page", page).Debugf("page %d/%d: %d records",
			resp.Pagination.Page, resp.Pagination.Pages, len(resp.Releases))
		all = append(all, resp.Releases...)
		if !resp.HasMore() {
			return all, nil
		}
	}
}

func (f *Fetcher) fallback(log *debuglog.FieldLogger, err error) Snapshot {
	items, at, _ := f.cache.load()

	state := StateStale
	switch {
	case discogs.IsTimeout(err):
		state = StateStaleTimeout
	case at.IsZero():
		state = StateEmpty
	}
	if items == nil {
		items = []*storage.Release{}
	}

	if errors.Is(err, discogs.ErrMissingCredentials) {
		log.Warnf("collection fetch skipped: %v", err)
	} else {
		log.Errorf("collection fetch failed (%s, serving %d cached): %v", state, len(items), err)
	}
	return Snapshot{Items: items, FetchedAt: at, State: state, Err: err}
}

// Merge collapses records sharing a release id into one Release whose
// Copies is the number of records with that id. The first record of each
// id is kept as representative and first-seen order is preserved.
func Merge(raw []*discogs.CollectionRelease) []*storage.Release {
	counts := make(map[int64]int, len(raw))
	var order []*discogs.CollectionRelease
	for _, r := range raw {
		if r == nil || r.BasicInformation == nil {
			continue
		}
		id := r.BasicInformation.ID
		if counts[id] == 0 {
			order = append(order, r)
		}
		counts[id]++
	}

	items := make([]*storage.Release, 0, len(order))
	for _, r := range order {
		items = append(items, FromDiscogs(r, counts[r.BasicInformation.ID]))
	}
	return items
}

// FromDiscogs maps one collection record to a Release.
func FromDiscogs(r *discogs.CollectionRelease, copies int) *storage.Release {
	info := r.BasicInformation
	rel := &storage.Release{
		ID:      info.ID,
		Title:   info.Title,
		Year:    info.Year,
		Cover:   info.CoverImage,
		Genres:  nonNil(info.Genres),
		Styles:  nonNil(info.Styles),
		Copies:  copies,
		Raw:     r.Raw,
		Formats: make([]storage.Format, 0, len(info.Formats)),
	}
	if len(info.Artists) > 0 {
		rel.Artist = info.Artists[0].Name
		rel.ArtistID = info.Artists[0].ID
	}
	for _, fmtEntry := range info.Formats {
		qty, err := strconv.Atoi(fmtEntry.Qty.String())
		if err != nil || qty < 1 {
			qty = 1
		}
		rel.Formats = append(rel.Formats, storage.Format{
			Name:         fmtEntry.Name,
			Qty:          qty,
			Descriptions: fmtEntry.Descriptions,
		})
	}
	return rel
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func shuffle(items []*storage.Release) {
	rand.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
