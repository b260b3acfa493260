package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/analog/internal/collection"
	"github.com/pders01/analog/internal/config"
	"github.com/pders01/analog/internal/cover"
	"github.com/pders01/analog/internal/pick"
	"github.com/pders01/analog/internal/search"
	"github.com/pders01/analog/internal/storage"
)

const (
	maxQueryLength        = 256
	defaultSearchDebounce = 200
	chromeHeight          = 3
	detailHeaderHeight    = 2
)

type App struct {
	config     *config.Config
	deps       Deps
	keyHandler *KeyHandler

	releaseList  list.Model
	searchList   list.Model
	filterList   list.Model
	searchInput  textinput.Model
	viewport     viewport.Model
	pickViewport viewport.Model
	spinner      spinner.Model

	view         View
	previousView View
	detailReturn View

	all      []*storage.Release
	visible  []*storage.Release
	snapshot collection.Snapshot
	loaded   bool
	sortKey  string
	genre    string
	style    string

	current    *storage.Release
	tint       *cover.Color
	tintID     int64
	pickResult *pick.Result

	searchResults        []searchResultItem
	pendingSearchQuery   string
	searchSeq            int
	searchDebounceMillis int

	width      int
	height     int
	err        error
	status     string
	statusKind StatusKind
	loading    bool
	now        func() time.Time

	renderMu        sync.Mutex
	glamourRenderer *glamour.TermRenderer
	rendererWidth   int
}

func NewApp(cfg *config.Config, deps Deps) *App {
	releaseList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	releaseList.Title = "› collection"
	releaseList.SetShowStatusBar(true)
	releaseList.SetFilteringEnabled(true)
	releaseList.SetShowHelp(true)

	searchList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	searchList.Title = "› search results"
	searchList.SetShowStatusBar(false)
	searchList.SetShowHelp(false)
	searchList.SetFilteringEnabled(false)

	filterList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	filterList.Title = "› genre"
	filterList.SetShowStatusBar(false)
	filterList.SetFilteringEnabled(true)
	filterList.SetShowHelp(true)

	si := textinput.New()
	si.Placeholder = "Search titles, artists, genres, years..."
	si.CharLimit = maxQueryLength

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(AccentColor)

	app := &App{
		config:               cfg,
		deps:                 deps,
		releaseList:          releaseList,
		searchList:           searchList,
		filterList:           filterList,
		searchInput:          si,
		viewport:             viewport.New(0, 0),
		pickViewport:         viewport.New(0, 0),
		spinner:              sp,
		view:                 ViewCollection,
		previousView:         ViewCollection,
		detailReturn:         ViewCollection,
		searchResults:        []searchResultItem{},
		searchDebounceMillis: defaultSearchDebounce,
		now:                  time.Now,
	}
	app.keyHandler = NewKeyHandler(app)
	return app
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.startSpinner(MsgLoading),
		a.loadCollection(),
	)
}

// getRenderer returns a glamour renderer sized to the window, rebuilt only
// when the width moved noticeably.
func (a *App) getRenderer() (*glamour.TermRenderer, error) {
	minWidth, maxWidth := 40, 120
	if a.config != nil {
		if a.config.UI.Profile.WordWrapMinWidth > 0 {
			minWidth = a.config.UI.Profile.WordWrapMinWidth
		}
		if a.config.UI.Profile.WordWrapMaxWidth > 0 {
			maxWidth = a.config.UI.Profile.WordWrapMaxWidth
		}
	}

	wordWrapWidth := (a.width * 9) / 10
	if wordWrapWidth > maxWidth {
		wordWrapWidth = maxWidth
	}
	if wordWrapWidth < minWidth {
		wordWrapWidth = minWidth
	}
	if a.width > 0 && a.width < 50 {
		wordWrapWidth = a.width - 4
		if wordWrapWidth < 20 {
			wordWrapWidth = 20
		}
	}

	if a.glamourRenderer == nil || abs(a.rendererWidth-wordWrapWidth) > 10 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrapWidth),
		)
		if err != nil {
			return nil, err
		}
		a.glamourRenderer = r
		a.rendererWidth = wordWrapWidth
	}
	return a.glamourRenderer, nil
}

// renderFunc captures the current renderer for use inside a tea.Cmd.
func (a *App) renderFunc() func(string) (string, error) {
	a.renderMu.Lock()
	r, err := a.getRenderer()
	a.renderMu.Unlock()
	return func(md string) (string, error) {
		if err != nil {
			return "", err
		}
		a.renderMu.Lock()
		defer a.renderMu.Unlock()
		return r.Render(md)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		contentHeight := max(msg.Height-chromeHeight, 1)
		a.releaseList.SetSize(msg.Width, contentHeight)
		a.filterList.SetSize(msg.Width, contentHeight)
		a.searchList.SetSize(msg.Width, max(msg.Height-10, 5))
		a.viewport.Width = msg.Width
		a.viewport.Height = max(contentHeight-detailHeaderHeight, 1)
		a.pickViewport.Width = msg.Width
		a.pickViewport.Height = contentHeight
		a.searchInput.Width = max(msg.Width-8, 10)

	case tea.KeyMsg:
		return a.keyHandler.HandleKey(msg)

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case collectionLoadedMsg:
		a.loading = false
		a.loaded = true
		a.snapshot = msg.snap
		a.all = msg.snap.Items
		a.applyView()
		a.status = ""
		if a.view == ViewPick {
			cmds = append(cmds, a.showPick())
		}

	case detailRenderedMsg:
		if a.current != nil && a.current.ID == msg.id {
			a.viewport.SetContent(msg.content)
			a.viewport.GotoTop()
			a.loading = false
			a.status = ""
		}

	case tintLoadedMsg:
		if a.current != nil && a.current.ID == msg.id {
			a.tint = msg.color
			a.tintID = msg.id
		}

	case pickRenderedMsg:
		a.loading = false
		if msg.err != nil {
			a.err = msg.err
			break
		}
		res := msg.result
		a.pickResult = &res
		a.pickViewport.SetContent(msg.content)
		a.pickViewport.GotoTop()
		switch {
		case res.Pick == nil:
			a.setStatus(MsgNoPick, StatusWarn)
		case res.Rolled:
			a.setStatus("New record of the day: "+res.Pick.Title, StatusSuccess)
		default:
			a.status = ""
		}

	case searchDebounceFireMsg:
		if msg.seq != a.searchSeq {
			return a, nil
		}
		if len([]rune(a.pendingSearchQuery)) < 2 {
			a.setSearchResults(nil)
			return a, nil
		}
		return a, a.performSearch(a.pendingSearchQuery)

	case searchResultsMsg:
		if a.view == ViewSearch && msg.query == a.pendingSearchQuery {
			a.setSearchResults(msg.results)
			if len(msg.results) == 0 {
				a.setStatus(MsgNoResults, StatusInfo)
			} else {
				a.setStatus(MsgResultsCount(len(msg.results)), StatusInfo)
			}
		}

	case statusMsg:
		a.setStatus(msg.text, msg.kind)

	case errorMsg:
		a.loading = false
		a.err = msg.err
	}

	switch a.view {
	case ViewCollection:
		newListModel, cmd := a.releaseList.Update(msg)
		a.releaseList = newListModel
		cmds = append(cmds, cmd)
	case ViewFilter:
		newListModel, cmd := a.filterList.Update(msg)
		a.filterList = newListModel
		cmds = append(cmds, cmd)
	case ViewSearch:
		newSearchList, cmd := a.searchList.Update(msg)
		a.searchList = newSearchList
		cmds = append(cmds, cmd)
	case ViewDetail:
		if _, ok := msg.(tea.MouseMsg); ok {
			newViewport, cmd := a.viewport.Update(msg)
			a.viewport = newViewport
			cmds = append(cmds, cmd)
		}
	case ViewPick:
		if _, ok := msg.(tea.MouseMsg); ok {
			newViewport, cmd := a.pickViewport.Update(msg)
			a.pickViewport = newViewport
			cmds = append(cmds, cmd)
		}
	}

	return a, tea.Batch(cmds...)
}

func (a *App) setStatus(text string, kind StatusKind) {
	a.status = text
	a.statusKind = kind
	a.err = nil
}

func (a *App) startSpinner(text string) tea.Cmd {
	a.loading = true
	a.setStatus(text, StatusInfo)
	return a.spinner.Tick
}

// applyView recomputes the visible releases from filters and sort order.
func (a *App) applyView() {
	a.visible = collection.Sort(collection.Filter(a.all, a.genre, a.style), a.sortKey)
	items := make([]list.Item, len(a.visible))
	for i, r := range a.visible {
		items[i] = releaseItem{release: r}
	}
	a.releaseList.SetItems(items)
	a.releaseList.Title = a.collectionTitle()
}

func (a *App) collectionTitle() string {
	parts := []string{"› collection"}
	switch {
	case a.genre != "" && a.style != "":
		parts = append(parts, a.genre+" / "+a.style)
	case a.genre != "":
		parts = append(parts, a.genre)
	case a.style != "":
		parts = append(parts, a.style)
	}
	parts = append(parts, sortLabel(a.sortKey))
	return strings.Join(parts, " · ")
}

func sortLabel(key string) string {
	switch key {
	case collection.SortTitle:
		return "title A→Z"
	case collection.SortTitleDesc:
		return "title Z→A"
	case collection.SortArtist:
		return "artist A→Z"
	case collection.SortArtistDesc:
		return "artist Z→A"
	case collection.SortYear:
		return "oldest first"
	case collection.SortYearDesc:
		return "newest first"
	default:
		return "shuffled"
	}
}

func (a *App) cycleSort(step int) {
	a.sortKey = collection.NextSortKey(a.sortKey, step)
	a.applyView()
	a.releaseList.Select(0)
	a.setStatus("Sorted: "+sortLabel(a.sortKey), StatusInfo)
}

func (a *App) applyFilter(item filterItem) {
	if item.kind == filterGenre {
		a.genre = item.value
		a.style = ""
	} else {
		a.style = item.value
	}
	a.applyView()
	a.releaseList.Select(0)
	a.view = ViewCollection
	a.setStatus(MsgRecordCount(len(a.visible)), StatusInfo)
}

// openDetail switches to the detail view of r and starts rendering it.
func (a *App) openDetail(r *storage.Release, from View) tea.Cmd {
	if r == nil {
		return nil
	}
	a.current = r
	if a.tintID != r.ID {
		a.tint = nil
	}
	a.detailReturn = from
	a.view = ViewDetail
	a.viewport.SetContent("")
	return tea.Batch(a.startSpinner(MsgRendering), a.renderRelease(r), a.loadTint(r))
}

func (a *App) showPick() tea.Cmd {
	if a.view != ViewPick {
		a.previousView = a.view
	}
	a.view = ViewPick
	if !a.loaded {
		return a.startSpinner(MsgLoading)
	}
	return tea.Batch(a.startSpinner(MsgPicking), a.loadPick())
}

func (a *App) resetSearch() {
	a.searchInput.Reset()
	a.pendingSearchQuery = ""
	a.searchSeq++
	a.setSearchResults(nil)
}

func (a *App) setSearchResults(results []searchResultItem) {
	if results == nil {
		results = []searchResultItem{}
	}
	a.searchResults = results
	items := make([]list.Item, len(results))
	for i, r := range results {
		items[i] = r
	}
	a.searchList.SetItems(items)
}

func (a *App) View() string {
	contentHeight := max(a.height-chromeHeight, 0)
	var content string

	switch a.view {
	case ViewCollection:
		switch {
		case !a.loaded:
			content = renderCentered(a.width, contentHeight,
				lipgloss.JoinVertical(lipgloss.Center, GetWelcomeMessage(), "", a.spinner.View()))
		case len(a.all) == 0:
			text, _ := MsgCollectionSummary(a.snapshot, a.now())
			content = renderCentered(a.width, contentHeight,
				GetCompactBanner(text+" • r: refresh"))
		case len(a.visible) == 0:
			content = renderCentered(a.width, contentHeight, lipgloss.JoinVertical(
				lipgloss.Center,
				HeaderStyle.Render("No records match "+strings.TrimPrefix(a.collectionTitle(), "› collection · ")),
				"",
				renderHelp("g: genre • y: style • esc: clear filters"),
			))
		default:
			content = a.releaseList.View()
		}

	case ViewDetail:
		header := renderHeader("", "", a.width)
		if a.current != nil {
			subtitle := orUnknown(a.current.Artist)
			if a.current.Year > 0 {
				subtitle += fmt.Sprintf(" • %d", a.current.Year)
			}
			var tint *cover.Color
			if a.tintID == a.current.ID {
				tint = a.tint
			}
			header = renderTintedHeader(a.current.Title, subtitle, tint, a.width)
		}
		body := a.viewport.View()
		if a.loading {
			body = renderCentered(a.width, max(contentHeight-detailHeaderHeight, 0),
				a.spinner.View()+" "+renderMuted(MsgRendering))
		}
		content = lipgloss.JoinVertical(lipgloss.Top, header, body)

	case ViewPick:
		if a.loading {
			content = renderCentered(a.width, contentHeight, a.spinner.View()+" "+renderMuted(MsgPicking))
		} else {
			content = a.pickViewport.View()
		}

	case ViewFilter:
		content = a.filterList.View()

	case ViewSearch:
		helpText := ""
		switch {
		case a.searchInput.Focused():
			helpText = "Type to search • Tab/↓: results • Esc: back"
		case len(a.searchList.Items()) > 0:
			helpText = "↑↓: navigate • Enter: select • o: discogs • Tab/↑: search box • Esc: back"
		default:
			helpText = "No results found • Tab/↑: search box • Esc: back"
		}

		searchContent := lipgloss.JoinVertical(
			lipgloss.Top,
			renderHeader("› search", "", a.width),
			"",
			renderInputFrame(a.searchInput.View(), a.searchInput.Focused(), a.searchInput.Width),
			renderMuted(helpText),
			"",
			a.searchList.View(),
		)
		content = ContentWrapper(a.width, contentHeight).Render(searchContent)
	}

	customStatus := a.getCustomStatusBar()
	if customStatus == "" {
		return content
	}
	separator := SeparatorStyle.Render(strings.Repeat("─", max(a.width-1, 1)))
	return lipgloss.JoinVertical(lipgloss.Top, content, separator, customStatus)
}

func (a *App) getCustomStatusBar() string {
	if a.err != nil {
		return StatusBarStyle.Width(a.width).Render(ErrorMessageStyle.Render(fmt.Sprintf("✗ %v", a.err)))
	}

	text, kind := a.status, a.statusKind
	if text == "" && a.loaded {
		text, kind = MsgCollectionSummary(a.snapshot, a.now())
	}
	if a.loading {
		text = a.spinner.View() + " " + text
	}

	left := kind.style().Render(text)
	commands := strings.Join(a.keyHandler.GetHelpForCurrentView(), " • ")
	if commands != "" {
		room := a.width - lipgloss.Width(left) - 5
		if room > 10 {
			left += "  " + HelpStyle.Render(truncateEnd(commands, room))
		}
	}
	return StatusBarStyle.Width(a.width).Render(left)
}

type releaseItem struct {
	release *storage.Release
}

func (i releaseItem) Title() string {
	if i.release.Copies > 1 {
		return i.release.Title + CopiesStyle.Render(fmt.Sprintf(" ×%d", i.release.Copies))
	}
	return i.release.Title
}

func (i releaseItem) Description() string {
	parts := []string{orUnknown(i.release.Artist)}
	if i.release.Year > 0 {
		parts = append(parts, YearStyle.Render(fmt.Sprint(i.release.Year)))
	}
	if g := joinTags(i.release.Genres); g != "" {
		parts = append(parts, truncateEnd(g, 40))
	}
	return strings.Join(parts, " • ")
}

func (i releaseItem) FilterValue() string {
	return i.release.Title + " " + i.release.Artist
}

type searchResultItem struct {
	release *storage.Release
	matches []search.Match
}

func (i searchResultItem) Title() string { return i.release.Title }

func (i searchResultItem) Description() string {
	desc := orUnknown(i.release.Artist)
	if i.release.Year > 0 {
		desc += fmt.Sprintf(" • %d", i.release.Year)
	}
	seen := map[string]bool{}
	var fields []string
	for _, m := range i.matches {
		if !seen[m.Field] {
			seen[m.Field] = true
			fields = append(fields, m.Field)
		}
	}
	if len(fields) > 0 {
		desc += " • matched " + strings.Join(fields, ", ")
	}
	return renderMuted(desc)
}

func (i searchResultItem) FilterValue() string { return i.release.Title }

type filterItem struct {
	label string
	value string
	kind  string
	count int
}

func (i filterItem) Title() string       { return i.label }
func (i filterItem) Description() string { return MsgRecordCount(i.count) }
func (i filterItem) FilterValue() string { return i.label }

type collectionLoadedMsg struct {
	snap collection.Snapshot
}

type detailRenderedMsg struct {
	id      int64
	content string
}

type tintLoadedMsg struct {
	id    int64
	color *cover.Color
}

type pickRenderedMsg struct {
	result  pick.Result
	content string
	err     error
}

type searchDebounceFireMsg struct {
	seq int
}

type searchResultsMsg struct {
	query   string
	results []searchResultItem
}

type statusMsg struct {
	text string
	kind StatusKind
}

type errorMsg struct {
	err error
}
