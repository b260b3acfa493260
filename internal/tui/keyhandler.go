package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/analog/internal/collection"
	"github.com/pders01/analog/internal/search"
	"github.com/pders01/analog/internal/storage"
)

const (
	filterGenre = "genre"
	filterStyle = "style"
)

type KeyHandler struct {
	app *App
}

func NewKeyHandler(app *App) *KeyHandler {
	return &KeyHandler{app: app}
}

func (kh *KeyHandler) HandleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if kh.isListFiltering() {
		if key == "ctrl+c" {
			return kh.app, tea.Quit
		}
		return kh.delegateToCharm(msg)
	}

	if kh.isInTextInputMode() {
		return kh.handleTextInputMode(msg)
	}

	if model, cmd, handled := kh.handleCustomKeys(key); handled {
		return model, cmd
	}

	return kh.delegateToCharm(msg)
}

// isListFiltering is true while the user types into a list's own filter prompt.
func (kh *KeyHandler) isListFiltering() bool {
	switch kh.app.view {
	case ViewCollection:
		return kh.app.releaseList.SettingFilter()
	case ViewFilter:
		return kh.app.filterList.SettingFilter()
	default:
		return false
	}
}

func (kh *KeyHandler) isInTextInputMode() bool {
	return kh.app.view == ViewSearch && kh.app.searchInput.Focused()
}

func (kh *KeyHandler) handleTextInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return kh.navigateBack()
	case "ctrl+c":
		return kh.app, tea.Quit
	case "enter":
		if items := kh.app.searchList.Items(); len(items) > 0 {
			if i, ok := items[0].(searchResultItem); ok {
				return kh.app, kh.app.openDetail(i.release, ViewSearch)
			}
		}
		return kh.app, nil
	case "tab", "down":
		if len(kh.app.searchList.Items()) > 0 {
			kh.app.searchInput.Blur()
			kh.app.searchList.Select(0)
		}
		return kh.app, nil
	default:
		return kh.delegateToSearchInput(msg)
	}
}

// delegateToSearchInput feeds the search box and schedules a debounced query.
func (kh *KeyHandler) delegateToSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	prev := kh.app.pendingSearchQuery
	newSearchInput, cmd := kh.app.searchInput.Update(msg)
	kh.app.searchInput = newSearchInput

	newVal := sanitizeQuery(kh.app.searchInput.Value())
	if newVal == prev {
		return kh.app, cmd
	}
	kh.app.pendingSearchQuery = newVal
	kh.app.searchSeq++
	seq := kh.app.searchSeq
	wait := time.Duration(kh.app.searchDebounceMillis) * time.Millisecond
	return kh.app, tea.Batch(cmd, tea.Tick(wait, func(time.Time) tea.Msg { return searchDebounceFireMsg{seq: seq} }))
}

// handleCustomKeys handles only our custom action keys
func (kh *KeyHandler) handleCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	switch key {
	case "ctrl+c", "q":
		return kh.app, tea.Quit, true
	case "esc":
		model, cmd := kh.navigateBack()
		return model, cmd, true
	case "ctrl+s":
		model, cmd := kh.enterSearchMode()
		return model, cmd, true
	case "t":
		return kh.app, kh.app.showPick(), true
	case "r":
		return kh.app, tea.Batch(kh.app.startSpinner(MsgRefreshing), kh.app.refreshCollection()), true
	}

	switch kh.app.view {
	case ViewCollection:
		return kh.handleCollectionKeys(key)
	case ViewDetail:
		if key == "o" {
			return kh.app, kh.app.openRelease(kh.app.current), true
		}
	case ViewPick:
		return kh.handlePickKeys(key)
	case ViewSearch:
		if key == "o" {
			if i, ok := kh.app.searchList.SelectedItem().(searchResultItem); ok {
				return kh.app, kh.app.openRelease(i.release), true
			}
			return kh.app, nil, true
		}
	}
	return kh.app, nil, false
}

func (kh *KeyHandler) handleCollectionKeys(key string) (tea.Model, tea.Cmd, bool) {
	switch key {
	case "s":
		kh.app.cycleSort(1)
		return kh.app, nil, true
	case "S":
		kh.app.cycleSort(-1)
		return kh.app, nil, true
	case "g":
		kh.openFilter(filterGenre)
		return kh.app, nil, true
	case "y":
		kh.openFilter(filterStyle)
		return kh.app, nil, true
	case "o":
		if i, ok := kh.app.releaseList.SelectedItem().(releaseItem); ok {
			return kh.app, kh.app.openRelease(i.release), true
		}
		return kh.app, nil, true
	}
	return kh.app, nil, false
}

func (kh *KeyHandler) handlePickKeys(key string) (tea.Model, tea.Cmd, bool) {
	if kh.app.pickResult == nil || kh.app.pickResult.Pick == nil {
		return kh.app, nil, false
	}
	switch key {
	case "enter":
		return kh.app, kh.app.openDetail(kh.app.pickResult.Pick, ViewPick), true
	case "o":
		return kh.app, kh.app.openRelease(kh.app.pickResult.Pick), true
	}
	return kh.app, nil, false
}

// delegateToCharm lets Charm handle all keys we don't intercept
func (kh *KeyHandler) delegateToCharm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	filtering := kh.isListFiltering()

	switch kh.app.view {
	case ViewCollection:
		kh.app.releaseList, cmd = kh.app.releaseList.Update(msg)
		if msg.String() == "enter" && !filtering {
			if i, ok := kh.app.releaseList.SelectedItem().(releaseItem); ok {
				return kh.app, tea.Batch(cmd, kh.app.openDetail(i.release, ViewCollection))
			}
		}
		return kh.app, cmd

	case ViewFilter:
		kh.app.filterList, cmd = kh.app.filterList.Update(msg)
		if msg.String() == "enter" && !filtering {
			if i, ok := kh.app.filterList.SelectedItem().(filterItem); ok {
				kh.app.applyFilter(i)
			}
		}
		return kh.app, cmd

	case ViewSearch:
		switch msg.String() {
		case "tab", "shift+tab", "/", "i":
			kh.app.searchInput.Focus()
			return kh.app, nil
		case "up":
			if len(kh.app.searchList.Items()) == 0 || kh.app.searchList.Index() == 0 {
				kh.app.searchInput.Focus()
				return kh.app, nil
			}
		}
		kh.app.searchList, cmd = kh.app.searchList.Update(msg)
		if msg.String() == "enter" {
			if i, ok := kh.app.searchList.SelectedItem().(searchResultItem); ok {
				return kh.app, kh.app.openDetail(i.release, ViewSearch)
			}
		}
		return kh.app, cmd

	case ViewDetail:
		kh.app.viewport, cmd = kh.app.viewport.Update(msg)
		return kh.app, cmd

	case ViewPick:
		kh.app.pickViewport, cmd = kh.app.pickViewport.Update(msg)
		return kh.app, cmd

	default:
		return kh.app, nil
	}
}

// navigateBack implements smart back navigation
func (kh *KeyHandler) navigateBack() (tea.Model, tea.Cmd) {
	switch kh.app.view {
	case ViewDetail:
		kh.app.view = kh.app.detailReturn
		if kh.app.view == ViewSearch {
			kh.app.searchInput.Blur()
		}
		return kh.app, nil

	case ViewPick, ViewFilter:
		kh.app.view = ViewCollection
		return kh.app, nil

	case ViewSearch:
		kh.app.view = kh.app.previousView
		kh.app.resetSearch()
		return kh.app, nil

	case ViewCollection:
		if kh.app.genre != "" || kh.app.style != "" {
			kh.app.genre, kh.app.style = "", ""
			kh.app.applyView()
			kh.app.setStatus("Filters cleared", StatusInfo)
			return kh.app, nil
		}
		return kh.app, tea.Quit

	default:
		return kh.app, tea.Quit
	}
}

// enterSearchMode transitions to search view
func (kh *KeyHandler) enterSearchMode() (tea.Model, tea.Cmd) {
	if kh.app.view != ViewSearch {
		kh.app.previousView = kh.app.view
		if kh.app.previousView == ViewDetail || kh.app.previousView == ViewFilter {
			kh.app.previousView = ViewCollection
		}
	}
	kh.app.view = ViewSearch
	kh.app.resetSearch()
	kh.app.searchInput.Focus()

	engineName := fmt.Sprintf("%T", kh.app.deps.Search)
	if ds, ok := kh.app.deps.Search.(search.DebugStatser); ok {
		if n, err := ds.DocCount(); err == nil {
			kh.app.setStatus(fmt.Sprintf("Search: %s • idx: %d", engineName, n), StatusInfo)
			return kh.app, nil
		}
	}
	kh.app.setStatus(fmt.Sprintf("Search: %s", engineName), StatusInfo)
	return kh.app, nil
}

// openFilter lists the genres, or the styles within the chosen genre.
func (kh *KeyHandler) openFilter(kind string) {
	a := kh.app
	var values []string
	var current, all string
	var pool []*storage.Release

	switch kind {
	case filterGenre:
		values = collection.Genres(a.all)
		current, all = a.genre, "All genres"
		pool = a.all
	default:
		values = collection.Styles(a.all, a.genre)
		current, all = a.style, "All styles"
		pool = collection.Filter(a.all, a.genre, "")
	}

	items := make([]list.Item, 0, len(values)+1)
	items = append(items, filterItem{label: all, kind: kind, count: len(pool)})
	selected := 0
	for i, v := range values {
		var n int
		if kind == filterGenre {
			n = len(collection.Filter(pool, v, ""))
		} else {
			n = len(collection.Filter(pool, "", v))
		}
		items = append(items, filterItem{label: v, value: v, kind: kind, count: n})
		if v == current {
			selected = i + 1
		}
	}

	a.filterList.ResetFilter()
	a.filterList.SetItems(items)
	a.filterList.Select(selected)
	a.filterList.Title = "› " + kind
	if kind == filterStyle && a.genre != "" {
		a.filterList.Title = fmt.Sprintf("› style in %s", a.genre)
	}
	a.view = ViewFilter
}

// GetHelpForCurrentView returns only our custom help text (Charm handles the rest)
func (kh *KeyHandler) GetHelpForCurrentView() []string {
	switch kh.app.view {
	case ViewCollection:
		return []string{"t: today", "s/S: sort", "g: genre", "y: style", "o: discogs", "ctrl+s: search", "r: refresh"}
	case ViewDetail:
		return []string{"o: open on discogs", "t: today", "esc: back"}
	case ViewPick:
		if kh.app.pickResult != nil && kh.app.pickResult.Pick != nil {
			return []string{"enter: details", "o: open on discogs", "esc: back"}
		}
		return []string{"r: refresh", "esc: back"}
	case ViewFilter:
		return []string{"enter: apply", "esc: cancel"}
	case ViewSearch:
		return []string{"ctrl+s: new search", "esc: back"}
	default:
		return []string{}
	}
}
