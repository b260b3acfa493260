package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/analog/internal/config"
	"github.com/pders01/analog/internal/discogs"
	"github.com/pders01/analog/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSource struct {
	mu       sync.Mutex
	pages    []*discogs.CollectionPage
	err      error
	errPage  int
	calls    int
	hasCreds bool
}

func (s *fakeSource) HasCredentials() bool { return s.hasCreds }

func (s *fakeSource) CollectionPage(_ context.Context, page int) (*discogs.CollectionPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil && (s.errPage == 0 || s.errPage == page) {
		return nil, s.err
	}
	return s.pages[page-1], nil
}

func (s *fakeSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func record(id int64, title string) *discogs.CollectionRelease {
	return &discogs.CollectionRelease{
		ID: id,
		BasicInformation: &discogs.BasicInformation{
			ID:      id,
			Title:   title,
			Artists: []discogs.ArtistRef{{ID: id * 10, Name: "Artist " + title}},
		},
		Raw: json.RawMessage(fmt.Sprintf(`{"id":%d}`, id)),
	}
}

func pages(perPage int, records ...*discogs.CollectionRelease) []*discogs.CollectionPage {
	total := (len(records) + perPage - 1) / perPage
	if total == 0 {
		total = 1
	}
	out := make([]*discogs.CollectionPage, 0, total)
	for i := 0; i < total; i++ {
		end := (i + 1) * perPage
		if end > len(records) {
			end = len(records)
		}
		out = append(out, &discogs.CollectionPage{
			Pagination: &discogs.Pagination{Page: i + 1, Pages: total},
			Releases:   records[i*perPage : end],
		})
	}
	return out
}

func identity([]*storage.Release) {}

func newTestFetcher(src Source, clock *fakeClock) *Fetcher {
	return NewFetcher(src, config.TestConfig(), WithClock(clock.Now), WithShuffle(identity))
}

func TestFetcher_DeduplicatesAndCountsCopies(t *testing.T) {
	src := &fakeSource{
		hasCreds: true,
		pages: pages(2,
			record(42, "A"), record(7, "B"),
			record(42, "A"), record(42, "A"),
		),
	}
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	f := newTestFetcher(src, clock)

	snap := f.Fetch(context.Background())
	require.NoError(t, snap.Err)
	assert.Equal(t, StateFresh, snap.State)
	assert.Equal(t, 2, src.Calls(), "both pages should be requested")
	require.Len(t, snap.Items, 2)

	copies := map[int64]int{}
	for _, r := range snap.Items {
		copies[r.ID] = r.Copies
	}
	assert.Equal(t, map[int64]int{42: 3, 7: 1}, copies)
}

func TestFetcher_CacheFreshness(t *testing.T) {
	src := &fakeSource{hasCreds: true, pages: pages(100, record(1, "One"), record(2, "Two"))}
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	f := newTestFetcher(src, clock)

	first := f.Collection(context.Background())
	require.Len(t, first, 2)
	require.Equal(t, 1, src.Calls())

	clock.Advance(4*time.Minute + 59*time.Second)
	snap := f.Fetch(context.Background())
	assert.Equal(t, StateCached, snap.State)
	assert.Equal(t, 1, src.Calls(), "cached list must not touch the network")
	require.Len(t, snap.Items, 2)
	assert.Same(t, first[0], snap.Items[0])
	assert.Same(t, &first[0], &snap.Items[0], "cached call should return the same slice")

	clock.Advance(time.Second)
	snap = f.Fetch(context.Background())
	assert.Equal(t, StateFresh, snap.State)
	assert.Equal(t, 2, src.Calls())
}

func TestFetcher_FallbackToPreviousCache(t *testing.T) {
	src := &fakeSource{hasCreds: true, pages: pages(100, record(1, "One"))}
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	f := newTestFetcher(src, clock)

	first := f.Collection(context.Background())
	require.Len(t, first, 1)

	clock.Advance(10 * time.Minute)
	src.err = &discogs.StatusError{StatusCode: http.StatusInternalServerError}

	snap := f.Fetch(context.Background())
	assert.Equal(t, StateStale, snap.State)
	assert.Error(t, snap.Err)
	require.Len(t, snap.Items, 1)
	assert.Same(t, first[0], snap.Items[0])

	// The failed cycle must not refresh the timestamp.
	snap = f.Fetch(context.Background())
	assert.Equal(t, StateStale, snap.State)
	assert.Equal(t, 3, src.Calls())
}

func TestFetcher_FailureWithoutCacheIsEmpty(t *testing.T) {
	src := &fakeSource{hasCreds: true, err: errors.New("boom")}
	clock := &fakeClock{now: time.Now()}
	f := newTestFetcher(src, clock)

	snap := f.Fetch(context.Background())
	assert.Equal(t, StateEmpty, snap.State)
	assert.NotNil(t, snap.Items)
	assert.Empty(t, snap.Items)
}

func TestFetcher_MissingCredentialsMakesNoCalls(t *testing.T) {
	src := &fakeSource{hasCreds: false}
	f := newTestFetcher(src, &fakeClock{now: time.Now()})

	items := f.Collection(context.Background())
	assert.Empty(t, items)
	assert.Zero(t, src.Calls())

	snap := f.Fetch(context.Background())
	assert.ErrorIs(t, snap.Err, discogs.ErrMissingCredentials)
}

func TestFetcher_PageFailureAbortsCycle(t *testing.T) {
	src := &fakeSource{
		hasCreds: true,
		pages:    pages(1, record(1, "One"), record(2, "Two"), record(3, "Three")),
		err:      &discogs.StatusError{StatusCode: http.StatusTooManyRequests},
		errPage:  2,
	}
	f := newTestFetcher(src, &fakeClock{now: time.Now()})

	snap := f.Fetch(context.Background())
	assert.Equal(t, StateEmpty, snap.State)
	assert.Empty(t, snap.Items, "a partial collection must not be cached")
	assert.Equal(t, 2, src.Calls(), "paging stops at the failing page")
}

func TestFetcher_TimeoutState(t *testing.T) {
	src := &fakeSource{hasCreds: true, pages: pages(100, record(1, "One"))}
	clock := &fakeClock{now: time.Now()}
	f := newTestFetcher(src, clock)
	require.Len(t, f.Collection(context.Background()), 1)

	clock.Advance(time.Hour)
	src.err = fmt.Errorf("fetching: %w", context.DeadlineExceeded)

	snap := f.Fetch(context.Background())
	assert.Equal(t, StateStaleTimeout, snap.State)
	assert.Len(t, snap.Items, 1)
}

func TestFetcher_Invalidate(t *testing.T) {
	src := &fakeSource{hasCreds: true, pages: pages(100, record(1, "One"))}
	f := newTestFetcher(src, &fakeClock{now: time.Now()})

	f.Collection(context.Background())
	f.Collection(context.Background())
	assert.Equal(t, 1, src.Calls())

	f.Invalidate()
	snap := f.Fetch(context.Background())
	assert.Equal(t, StateFresh, snap.State)
	assert.Equal(t, 2, src.Calls())
}

// gatedSource holds every page request until gate is closed.
type gatedSource struct {
	*fakeSource
	entered chan struct{}
	gate    chan struct{}
}

func (s *gatedSource) CollectionPage(ctx context.Context, page int) (*discogs.CollectionPage, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.gate
	return s.fakeSource.CollectionPage(ctx, page)
}

func TestFetcher_InvalidateDuringRefresh(t *testing.T) {
	src := &gatedSource{
		fakeSource: &fakeSource{hasCreds: true, pages: pages(100, record(1, "One"))},
		entered:    make(chan struct{}, 1),
		gate:       make(chan struct{}),
	}
	f := newTestFetcher(src, &fakeClock{now: time.Now()})

	done := make(chan Snapshot)
	go func() { done <- f.Fetch(context.Background()) }()

	<-src.entered
	f.Invalidate()
	close(src.gate)

	first := <-done
	assert.Equal(t, StateFresh, first.State)
	assert.Equal(t, 1, src.Calls())

	second := f.Fetch(context.Background())
	assert.Equal(t, StateFresh, second.State)
	assert.Equal(t, 2, src.Calls())

	third := f.Fetch(context.Background())
	assert.Equal(t, StateCached, third.State)
	assert.Equal(t, 2, src.Calls())
}

func TestFetcher_OnUpdateHook(t *testing.T) {
	src := &fakeSource{hasCreds: true, pages: pages(100, record(1, "One"), record(2, "Two"))}
	f := newTestFetcher(src, &fakeClock{now: time.Now()})

	var seen []*storage.Release
	f.OnUpdate(func(items []*storage.Release) { seen = items })

	items := f.Collection(context.Background())
	assert.Equal(t, items, seen)
}

func TestFetcher_MapsFields(t *testing.T) {
	raw := []byte(`{"id":9,"instance_id":99,"basic_information":{"id":9,"title":"Blue Train",
		"year":1958,"cover_image":"https://img/9.jpg","artists":[{"name":"John Coltrane","id":97545}],
		"formats":[{"name":"Vinyl","qty":"2","descriptions":["LP","Album"]}],"genres":["Jazz"]}}`)
	var rec discogs.CollectionRelease
	require.NoError(t, json.Unmarshal(raw, &rec))

	rel := FromDiscogs(&rec, 1)
	assert.Equal(t, int64(9), rel.ID)
	assert.Equal(t, "Blue Train", rel.Title)
	assert.Equal(t, "John Coltrane", rel.Artist)
	assert.Equal(t, int64(97545), rel.ArtistID)
	assert.Equal(t, 1958, rel.Year)
	assert.Equal(t, "https://img/9.jpg", rel.Cover)
	assert.Equal(t, []string{"Jazz"}, rel.Genres)
	assert.NotNil(t, rel.Styles)
	assert.Empty(t, rel.Styles)
	require.Len(t, rel.Formats, 1)
	assert.Equal(t, 2, rel.Formats[0].Qty)
	assert.JSONEq(t, string(raw), string(rel.Raw))
}

func TestFetcher_NoArtists(t *testing.T) {
	rel := FromDiscogs(&discogs.CollectionRelease{BasicInformation: &discogs.BasicInformation{ID: 1}}, 1)
	assert.Empty(t, rel.Artist)
	assert.Zero(t, rel.ArtistID)
}

func TestFetcher_NoArtistsKeepsCycle(t *testing.T) {
	bare := &discogs.CollectionRelease{ID: 2, BasicInformation: &discogs.BasicInformation{ID: 2, Title: "Untitled"}}
	src := &fakeSource{hasCreds: true, pages: pages(100, record(1, "One"), bare)}
	f := newTestFetcher(src, &fakeClock{now: time.Now()})

	snap := f.Fetch(context.Background())
	require.NoError(t, snap.Err)
	assert.Equal(t, StateFresh, snap.State)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "Untitled", snap.Items[1].Title)
	assert.Empty(t, snap.Items[1].Artist)
}

func TestFetcher_ConcurrentCallersShareOneCycle(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		fmt.Fprint(w, `{"pagination":{"page":1,"pages":1},"releases":[{"id":1,"basic_information":{"id":1,"title":"x"}}]}`)
	}))
	defer server.Close()

	cfg := config.TestConfig()
	cfg.Discogs.BaseURL = server.URL
	f := NewFetcher(discogs.NewClient(cfg), cfg)

	var wg sync.WaitGroup
	results := make([][]*storage.Release, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.Collection(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, items := range results {
		assert.Len(t, items, 1)
	}
}

func TestFetcher_EndToEndPaging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"pagination":{"page":1,"pages":2},"releases":[
				{"id":42,"basic_information":{"id":42,"title":"A"}},
				{"id":42,"basic_information":{"id":42,"title":"A"}}]}`)
		case "2":
			fmt.Fprint(w, `{"pagination":{"page":2,"pages":2},"releases":[
				{"id":42,"basic_information":{"id":42,"title":"A"}},
				{"id":7,"basic_information":{"id":7,"title":"B"}}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := config.TestConfig()
	cfg.Discogs.BaseURL = server.URL
	f := NewFetcher(discogs.NewClient(cfg), cfg)

	items := ByID(f.Collection(context.Background()))
	require.Len(t, items, 2)
	assert.Equal(t, int64(7), items[0].ID)
	assert.Equal(t, 1, items[0].Copies)
	assert.Equal(t, int64(42), items[1].ID)
	assert.Equal(t, 3, items[1].Copies)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "fresh", StateFresh.String())
	assert.Equal(t, "stale (timeout)", StateStaleTimeout.String())
	assert.Equal(t, "unknown", State(99).String())
}
