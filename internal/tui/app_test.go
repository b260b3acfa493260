package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/analog/internal/collection"
	"github.com/pders01/analog/internal/config"
	"github.com/pders01/analog/internal/cover"
	"github.com/pders01/analog/internal/discogs"
	"github.com/pders01/analog/internal/pick"
	"github.com/pders01/analog/internal/search"
	"github.com/pders01/analog/internal/storage"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)

type fakeCollection struct {
	snap          collection.Snapshot
	fetches       int
	invalidations int
	ctx           context.Context
}

func (f *fakeCollection) Fetch(ctx context.Context) collection.Snapshot {
	f.fetches++
	f.ctx = ctx
	return f.snap
}

func (f *fakeCollection) Invalidate() { f.invalidations++ }

type fakePicker struct {
	result pick.Result
	got    []*storage.Release
}

func (f *fakePicker) Pick(items []*storage.Release) pick.Result {
	f.got = items
	return f.result
}

type fakeArtists struct {
	artist *discogs.Artist
	err    error
	asked  int64
	ctx    context.Context
}

func (f *fakeArtists) Artist(ctx context.Context, id int64) (*discogs.Artist, error) {
	f.asked = id
	f.ctx = ctx
	return f.artist, f.err
}

type fakeCovers struct {
	color cover.Color
	err   error
}

func (f *fakeCovers) Color(context.Context, string) (cover.Color, error) {
	return f.color, f.err
}

type fakeOpener struct {
	opened []string
	err    error
}

func (f *fakeOpener) Open(target string) error {
	f.opened = append(f.opened, target)
	return f.err
}

func testReleases() []*storage.Release {
	return []*storage.Release{
		{ID: 1, Title: "Kind of Blue", Artist: "Miles Davis", ArtistID: 23755, Year: 1959, Cover: "https://img.example/1.jpg",
			Genres: []string{"Jazz"}, Styles: []string{"Modal"}, Copies: 1,
			Formats: []storage.Format{{Name: "Vinyl", Qty: 1, Descriptions: []string{"LP", "Album"}}}},
		{ID: 2, Title: "Blue Train", Artist: "John Coltrane", Year: 1958,
			Genres: []string{"Jazz"}, Styles: []string{"Hard Bop"}, Copies: 2},
		{ID: 3, Title: "Unknown Pleasures", Artist: "Joy Division", Year: 1979,
			Genres: []string{"Rock"}, Styles: []string{"Post-Punk"}, Copies: 1},
	}
}

type testDeps struct {
	collection *fakeCollection
	picker     *fakePicker
	artists    *fakeArtists
	covers     *fakeCovers
	opener     *fakeOpener
}

func newTestApp(t *testing.T) (*App, *testDeps) {
	t.Helper()
	items := testReleases()
	td := &testDeps{
		collection: &fakeCollection{snap: collection.Snapshot{
			Items:     items,
			FetchedAt: testNow.Add(-2 * time.Minute),
			State:     collection.StateFresh,
		}},
		picker:  &fakePicker{result: pick.Result{Pick: items[0], Date: "2026-03-14", Rolled: true}},
		artists: &fakeArtists{artist: &discogs.Artist{ID: 23755, Name: "Miles Davis", Profile: "Trumpeter and bandleader."}},
		covers:  &fakeCovers{color: cover.Color{R: 20, G: 40, B: 120}},
		opener:  &fakeOpener{},
	}

	engine := search.NewEngine()
	engine.OnCollectionUpdated(items)

	app := NewApp(config.TestConfig(), Deps{
		Collection: td.collection,
		Picker:     td.picker,
		Search:     engine,
		Artists:    td.artists,
		Covers:     td.covers,
		Opener:     td.opener,
	})
	app.now = func() time.Time { return testNow }
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return app, td
}

func loadedApp(t *testing.T) (*App, *testDeps) {
	t.Helper()
	app, td := newTestApp(t)
	msg := app.loadCollection()()
	app.Update(msg)
	require.True(t, app.loaded)
	return app, td
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, app *App, msg tea.Msg) (*App, tea.Cmd) {
	t.Helper()
	model, cmd := app.Update(msg)
	updated, ok := model.(*App)
	require.True(t, ok, "model should be *App")
	return updated, cmd
}

func TestCollectionLoaded(t *testing.T) {
	app, td := loadedApp(t)

	assert.Equal(t, 1, td.collection.fetches)
	assert.Len(t, app.releaseList.Items(), 3)
	assert.False(t, app.loading)

	text, kind := MsgCollectionSummary(app.snapshot, app.now())
	assert.Contains(t, text, "3 records")
	assert.Contains(t, text, "fresh")
	assert.Contains(t, text, "2m ago")
	assert.Equal(t, StatusSuccess, kind)
}

func TestViewStateTransitions(t *testing.T) {
	tests := []struct {
		name         string
		initialView  View
		msg          tea.Msg
		expectedView View
		setupFunc    func(*App)
	}{
		{name: "collection to detail on enter", initialView: ViewCollection, msg: tea.KeyMsg{Type: tea.KeyEnter}, expectedView: ViewDetail},
		{name: "detail back to collection", initialView: ViewDetail, msg: tea.KeyMsg{Type: tea.KeyEsc}, expectedView: ViewCollection},
		{name: "collection to pick on t", initialView: ViewCollection, msg: runes("t"), expectedView: ViewPick},
		{name: "pick back to collection", initialView: ViewPick, msg: tea.KeyMsg{Type: tea.KeyEsc}, expectedView: ViewCollection},
		{name: "collection to genre filter", initialView: ViewCollection, msg: runes("g"), expectedView: ViewFilter},
		{name: "collection to style filter", initialView: ViewCollection, msg: runes("y"), expectedView: ViewFilter},
		{name: "filter back to collection", initialView: ViewFilter, msg: tea.KeyMsg{Type: tea.KeyEsc}, expectedView: ViewCollection},
		{name: "collection to search on ctrl+s", initialView: ViewCollection, msg: tea.KeyMsg{Type: tea.KeyCtrlS}, expectedView: ViewSearch},
		{
			name:         "search back to collection",
			initialView:  ViewSearch,
			msg:          tea.KeyMsg{Type: tea.KeyEsc},
			expectedView: ViewCollection,
			setupFunc:    func(a *App) { a.previousView = ViewCollection },
		},
		{
			name:         "pick to detail on enter",
			initialView:  ViewPick,
			msg:          tea.KeyMsg{Type: tea.KeyEnter},
			expectedView: ViewDetail,
			setupFunc: func(a *App) {
				a.pickResult = &pick.Result{Pick: a.all[0]}
			},
		},
		{
			name:         "detail returns to pick",
			initialView:  ViewDetail,
			msg:          tea.KeyMsg{Type: tea.KeyEsc},
			expectedView: ViewPick,
			setupFunc:    func(a *App) { a.detailReturn = ViewPick },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := loadedApp(t)
			app.view = tt.initialView
			if tt.setupFunc != nil {
				tt.setupFunc(app)
			}

			updated, _ := press(t, app, tt.msg)
			assert.Equal(t, tt.expectedView, updated.view,
				"expected view to be %v but got %v", tt.expectedView, updated.view)
		})
	}
}

func TestOpenDetailRendersRelease(t *testing.T) {
	app, _ := loadedApp(t)

	app, cmd := press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ViewDetail, app.view)
	require.NotNil(t, app.current)
	assert.NotNil(t, cmd)
	assert.True(t, app.loading)

	msg := app.renderRelease(app.current)()
	rendered, ok := msg.(detailRenderedMsg)
	require.True(t, ok)
	assert.Equal(t, app.current.ID, rendered.id)
	assert.Contains(t, rendered.content, "discogs.com/release")

	app, _ = press(t, app, rendered)
	assert.False(t, app.loading)
	assert.NotEmpty(t, app.View())
}

func TestReleaseMarkdown(t *testing.T) {
	r := testReleases()[0]
	r.Copies = 2
	r.Raw = []byte(`{"date_added":"2021-05-01T10:00:00-07:00","rating":4,"basic_information":{"labels":[{"name":"Columbia","catno":"CL 1355"}]}}`)

	md := ReleaseMarkdown(r)
	assert.Contains(t, md, "# Kind of Blue")
	assert.Contains(t, md, "**Miles Davis** · 1959")
	assert.Contains(t, md, "Vinyl - LP, Album")
	assert.Contains(t, md, "Columbia (CL 1355)")
	assert.Contains(t, md, "**Copies:** 2")
	assert.Contains(t, md, "May 1, 2021")
	assert.Contains(t, md, "4/5")
	assert.Contains(t, md, "https://www.discogs.com/release/1")

	bare := ReleaseMarkdown(&storage.Release{ID: 9, Title: "Untitled"})
	assert.Contains(t, bare, "Unknown Artist")
	assert.NotContains(t, bare, "Copies")
}

func TestTintOnlyAppliesToCurrentRelease(t *testing.T) {
	app, _ := loadedApp(t)
	app, _ = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	current := app.current

	msg, ok := app.loadTint(current)().(tintLoadedMsg)
	require.True(t, ok)
	require.NotNil(t, msg.color)

	stale := tintLoadedMsg{id: current.ID + 100, color: &cover.Color{R: 255}}
	app, _ = press(t, app, stale)
	assert.Nil(t, app.tint)

	app, _ = press(t, app, msg)
	require.NotNil(t, app.tint)
	assert.Equal(t, cover.Color{R: 20, G: 40, B: 120}, *app.tint)
}

func TestLoadTintFailureLeavesHeaderPlain(t *testing.T) {
	app, td := loadedApp(t)
	td.covers.err = errors.New("boom")

	msg, ok := app.loadTint(app.all[0])().(tintLoadedMsg)
	require.True(t, ok)
	assert.Nil(t, msg.color)

	assert.Nil(t, app.loadTint(&storage.Release{ID: 5}), "no cover, no command")
}

func TestLoadPick(t *testing.T) {
	app, td := loadedApp(t)
	td.picker.result.History = []*storage.Release{app.all[2]}

	app, cmd := press(t, app, runes("t"))
	require.Equal(t, ViewPick, app.view)
	require.NotNil(t, cmd)

	msg, ok := app.loadPick()().(pickRenderedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	assert.Len(t, td.picker.got, 3)
	assert.Equal(t, int64(23755), td.artists.asked)
	assert.Contains(t, msg.content, "Trumpeter")
	assert.Contains(t, msg.content, "Pleasures")

	app, _ = press(t, app, msg)
	require.NotNil(t, app.pickResult)
	assert.Equal(t, int64(1), app.pickResult.Pick.ID)
	assert.Contains(t, app.status, "New record of the day")
	assert.Equal(t, StatusSuccess, app.statusKind)
}

func TestLoadPickSurvivesArtistFailure(t *testing.T) {
	app, td := loadedApp(t)
	td.artists.err = errors.New("artist lookup failed")

	msg, ok := app.loadPick()().(pickRenderedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	assert.NotContains(t, msg.content, "About")
}

func TestPickMarkdownWithoutPick(t *testing.T) {
	md := PickMarkdown(pick.Result{Date: "2026-03-14"}, nil, 300)
	assert.Contains(t, md, "2026-03-14")
	assert.Contains(t, md, MsgNoPick)
}

func TestPickMarkdownArtistLinks(t *testing.T) {
	res := pick.Result{Date: "2026-03-14", Pick: testReleases()[0]}
	artist := &discogs.Artist{
		Name:    "Miles Davis",
		Profile: strings.Repeat("a", 20),
		URI:     "https://www.discogs.com/artist/23755",
		Images: []discogs.Image{
			{Type: "secondary", URI: "https://i.discogs.com/second.jpg"},
			{Type: "primary", URI: "https://i.discogs.com/first.jpg"},
		},
	}

	md := PickMarkdown(res, artist, 10)
	assert.Contains(t, md, "### About Miles Davis")
	assert.Contains(t, md, strings.Repeat("a", 10)+"...")
	assert.Contains(t, md, "[Photo](https://i.discogs.com/first.jpg) · [Artist on Discogs](https://www.discogs.com/artist/23755)")
}

func TestTintedHeaderFallsBackWithoutTint(t *testing.T) {
	plain := renderTintedHeader("Kind of Blue", "Miles Davis", nil, 40)
	assert.Equal(t, renderHeader("Kind of Blue", "Miles Davis", 40), plain)

	tinted := renderTintedHeader("Kind of Blue", "Miles Davis", &cover.Color{R: 30, G: 60, B: 120}, 40)
	assert.Contains(t, tinted, "Kind of Blue")
	assert.Contains(t, tinted, "Miles Davis")
}

func TestPickBeforeCollectionLoads(t *testing.T) {
	app, td := newTestApp(t)

	app, _ = press(t, app, runes("t"))
	assert.Equal(t, ViewPick, app.view)
	assert.Nil(t, td.picker.got)

	app, cmd := press(t, app, app.loadCollection()())
	assert.True(t, app.loaded)
	assert.NotNil(t, cmd, "pick is requested once the collection arrives")
}

func TestSortCycling(t *testing.T) {
	app, _ := loadedApp(t)

	app, _ = press(t, app, runes("s"))
	assert.Equal(t, collection.SortTitle, app.sortKey)
	assert.Equal(t, int64(2), app.visible[0].ID)
	assert.Contains(t, app.releaseList.Title, "title A→Z")

	app, _ = press(t, app, runes("S"))
	assert.Equal(t, collection.SortNone, app.sortKey)
	assert.Equal(t, int64(1), app.visible[0].ID)

	app, _ = press(t, app, runes("S"))
	assert.Equal(t, collection.SortYearDesc, app.sortKey)
	assert.Equal(t, int64(3), app.visible[0].ID)
}

func selectFilter(t *testing.T, app *App, label string) {
	t.Helper()
	for i, it := range app.filterList.Items() {
		if it.(filterItem).label == label {
			app.filterList.Select(i)
			return
		}
	}
	t.Fatalf("filter option %q not found", label)
}

func TestGenreAndStyleFilters(t *testing.T) {
	app, _ := loadedApp(t)

	app, _ = press(t, app, runes("g"))
	require.Equal(t, ViewFilter, app.view)
	assert.Len(t, app.filterList.Items(), 3, "all + Jazz + Rock")

	selectFilter(t, app, "Jazz")
	app, _ = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ViewCollection, app.view)
	assert.Equal(t, "Jazz", app.genre)
	assert.Len(t, app.visible, 2)

	app, _ = press(t, app, runes("y"))
	require.Equal(t, ViewFilter, app.view)
	assert.Len(t, app.filterList.Items(), 3, "all + Hard Bop + Modal")
	assert.Contains(t, app.filterList.Title, "Jazz")

	selectFilter(t, app, "Modal")
	app, _ = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "Modal", app.style)
	require.Len(t, app.visible, 1)
	assert.Equal(t, int64(1), app.visible[0].ID)

	app, cmd := press(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)
	assert.Empty(t, app.genre)
	assert.Empty(t, app.style)
	assert.Len(t, app.visible, 3)

	_, cmd = press(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRefreshInvalidatesCache(t *testing.T) {
	app, td := loadedApp(t)

	app, cmd := press(t, app, runes("r"))
	require.NotNil(t, cmd)
	assert.True(t, app.loading)
	assert.Equal(t, MsgRefreshing, app.status)

	msg := app.refreshCollection()()
	assert.Equal(t, 1, td.collection.invalidations)
	assert.Equal(t, 2, td.collection.fetches)
	assert.IsType(t, collectionLoadedMsg{}, msg)
}

type programKey struct{}

func TestCommandsUseProgramContext(t *testing.T) {
	app, td := newTestApp(t)
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), programKey{}, "analog"))
	app.deps.Context = ctx

	app.loadCollection()()
	require.NotNil(t, td.collection.ctx)
	assert.NoError(t, td.collection.ctx.Err())

	app.loadPick()()
	require.NotNil(t, td.artists.ctx)
	assert.Equal(t, "analog", td.artists.ctx.Value(programKey{}))

	cancel()
	assert.ErrorIs(t, td.collection.ctx.Err(), context.Canceled)
}

func TestCommandsDefaultToBackgroundContext(t *testing.T) {
	app, td := newTestApp(t)

	app.loadCollection()()
	assert.Equal(t, context.Background(), td.collection.ctx)
}

func TestStaleStateShownInStatusBar(t *testing.T) {
	app, td := newTestApp(t)
	td.collection.snap.State = collection.StateStaleTimeout

	app, _ = press(t, app, app.loadCollection()())
	text, kind := MsgCollectionSummary(app.snapshot, app.now())
	assert.Contains(t, text, "stale (timeout)")
	assert.Equal(t, StatusWarn, kind)
	assert.Contains(t, app.getCustomStatusBar(), "stale (timeout)")
}

func TestEmptyCollectionSummary(t *testing.T) {
	text, kind := MsgCollectionSummary(collection.Snapshot{State: collection.StateEmpty, Err: discogs.ErrMissingCredentials}, testNow)
	assert.Equal(t, MsgNoCredentials, text)
	assert.Equal(t, StatusWarn, kind)

	text, kind = MsgCollectionSummary(collection.Snapshot{State: collection.StateEmpty, Err: errors.New("HTTP error: 500")}, testNow)
	assert.Contains(t, text, "500")
	assert.Equal(t, StatusError, kind)

	text, kind = MsgCollectionSummary(collection.Snapshot{State: collection.StateEmpty}, testNow)
	assert.Equal(t, "Collection is empty", text)
	assert.Equal(t, StatusInfo, kind)
}

func TestOpenRelease(t *testing.T) {
	app, td := loadedApp(t)

	_, cmd := press(t, app, runes("o"))
	require.NotNil(t, cmd)
	msg := cmd()
	require.IsType(t, statusMsg{}, msg)
	require.Len(t, td.opener.opened, 1)
	assert.Equal(t, discogs.ReleaseURL(app.visible[0].ID), td.opener.opened[0])

	td.opener.err = errors.New("no opener")
	msg = app.openRelease(app.all[1])()
	em, ok := msg.(errorMsg)
	require.True(t, ok)
	assert.Contains(t, em.err.Error(), "release/2")

	app, _ = press(t, app, em)
	assert.Contains(t, app.getCustomStatusBar(), "no opener")
}

func TestSearchFlow(t *testing.T) {
	app, _ := loadedApp(t)

	app, _ = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.Equal(t, ViewSearch, app.view)
	assert.True(t, app.searchInput.Focused())

	for _, r := range "coltrane" {
		app, _ = press(t, app, runes(string(r)))
	}
	assert.Equal(t, "coltrane", app.pendingSearchQuery)
	assert.Equal(t, ViewSearch, app.view, "typed letters never trigger shortcuts")

	stale := searchDebounceFireMsg{seq: app.searchSeq - 1}
	_, cmd := press(t, app, stale)
	assert.Nil(t, cmd)

	app, cmd = press(t, app, searchDebounceFireMsg{seq: app.searchSeq})
	require.NotNil(t, cmd)
	app, _ = press(t, app, cmd())
	require.Len(t, app.searchResults, 1)
	assert.Equal(t, int64(2), app.searchResults[0].release.ID)
	assert.Equal(t, MsgResultsCount(1), app.status)

	app, _ = press(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ViewDetail, app.view)
	assert.Equal(t, ViewSearch, app.detailReturn)

	app, _ = press(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewSearch, app.view)
	assert.False(t, app.searchInput.Focused())

	app, _ = press(t, app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewCollection, app.view)
	assert.Empty(t, app.searchInput.Value())
	assert.Empty(t, app.searchResults)
}

func TestSearchResultsForOldQueryAreDropped(t *testing.T) {
	app, _ := loadedApp(t)
	app, _ = press(t, app, tea.KeyMsg{Type: tea.KeyCtrlS})
	app.pendingSearchQuery = "blue"

	app, _ = press(t, app, searchResultsMsg{query: "blu", results: []searchResultItem{{release: app.all[0]}}})
	assert.Empty(t, app.searchResults)
}

func TestViewRendersEachScreen(t *testing.T) {
	app, _ := newTestApp(t)
	assert.Contains(t, app.View(), "Spinning up")

	app, _ = loadedApp(t)
	assert.Contains(t, app.View(), "collection")

	prepareAllViews(app)
	for _, v := range []View{ViewDetail, ViewPick, ViewFilter, ViewSearch} {
		app.view = v
		assert.NotEmpty(t, app.View(), v.String())
	}
}

// prepareAllViews sets up enough state for every view to render.
func prepareAllViews(a *App) {
	a.current = a.all[0]
	a.tint = &cover.Color{R: 250, G: 250, B: 250}
	a.tintID = a.current.ID
	a.filterList.SetItems([]list.Item{filterItem{label: "Jazz", value: "Jazz", kind: filterGenre, count: 2}})
}

func TestEmptyFilterResultView(t *testing.T) {
	app, _ := loadedApp(t)
	app.genre = "Polka"
	app.applyView()
	assert.Contains(t, app.View(), "No records match")
}
