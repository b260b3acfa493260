package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/analog/internal/collection"
	"github.com/pders01/analog/internal/debuglog"
	"github.com/pders01/analog/internal/discogs"
	"github.com/pders01/analog/internal/pick"
	"github.com/pders01/analog/internal/storage"
)

const (
	artistTimeout = 10 * time.Second
	coverTimeout  = 10 * time.Second
	searchLimit   = 50
)

// wrapErr formats an error with a contextual prefix.
func wrapErr(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// ctx is the program's context; quitting cancels it.
func (a *App) ctx() context.Context {
	if a.deps.Context != nil {
		return a.deps.Context
	}
	return context.Background()
}

func (a *App) loadCollection() tea.Cmd {
	src := a.deps.Collection
	ctx := a.ctx()
	return func() tea.Msg {
		if src == nil {
			return collectionLoadedMsg{snap: collection.Snapshot{State: collection.StateEmpty}}
		}
		return collectionLoadedMsg{snap: src.Fetch(ctx)}
	}
}

// refreshCollection drops the cached list so the next fetch goes to the network.
func (a *App) refreshCollection() tea.Cmd {
	src := a.deps.Collection
	load := a.loadCollection()
	return func() tea.Msg {
		if src != nil {
			src.Invalidate()
		}
		return load()
	}
}

func (a *App) renderRelease(r *storage.Release) tea.Cmd {
	render := a.renderFunc()
	return func() tea.Msg {
		content, err := render(ReleaseMarkdown(r))
		if err != nil {
			content = fmt.Sprintf("Failed to render release: %v\n\nPress Escape to go back.", err)
		}
		return detailRenderedMsg{id: r.ID, content: content}
	}
}

func (a *App) loadTint(r *storage.Release) tea.Cmd {
	covers := a.deps.Covers
	if covers == nil || r == nil || r.Cover == "" {
		return nil
	}
	parent := a.ctx()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, coverTimeout)
		defer cancel()
		c, err := covers.Color(ctx, r.Cover)
		if err != nil {
			debuglog.Debugf("tui: no tint for %d: %v", r.ID, err)
			return tintLoadedMsg{id: r.ID}
		}
		return tintLoadedMsg{id: r.ID, color: &c}
	}
}

func (a *App) loadPick() tea.Cmd {
	picker := a.deps.Picker
	artists := a.deps.Artists
	items := a.all
	profileLen := a.config.UI.Profile.MaxLength
	render := a.renderFunc()
	parent := a.ctx()

	return func() tea.Msg {
		if picker == nil {
			return pickRenderedMsg{content: MsgNoPick}
		}
		res := picker.Pick(items)

		var artist *discogs.Artist
		if res.Pick != nil && res.Pick.ArtistID > 0 && artists != nil {
			ctx, cancel := context.WithTimeout(parent, artistTimeout)
			ar, err := artists.Artist(ctx, res.Pick.ArtistID)
			cancel()
			if err != nil {
				debuglog.Warnf("tui: artist %d: %v", res.Pick.ArtistID, err)
			} else {
				artist = ar
			}
		}

		content, err := render(PickMarkdown(res, artist, profileLen))
		if err != nil {
			return pickRenderedMsg{result: res, err: wrapErr("rendering pick", err)}
		}
		return pickRenderedMsg{result: res, content: content}
	}
}

func (a *App) performSearch(query string) tea.Cmd {
	searcher := a.deps.Search
	return func() tea.Msg {
		if searcher == nil {
			return searchResultsMsg{query: query}
		}
		results, err := searcher.Search(query, searchLimit)
		if err != nil {
			return errorMsg{err: wrapErr("search", err)}
		}
		items := make([]searchResultItem, 0, len(results))
		for _, r := range results {
			if r.Release != nil {
				items = append(items, searchResultItem{release: r.Release, matches: r.Matches})
			}
		}
		return searchResultsMsg{query: query, results: items}
	}
}

func (a *App) openRelease(r *storage.Release) tea.Cmd {
	opener := a.deps.Opener
	if opener == nil || r == nil {
		return nil
	}
	target := discogs.ReleaseURL(r.ID)
	return func() tea.Msg {
		if err := opener.Open(target); err != nil {
			return errorMsg{err: wrapErr("failed to open "+target, err)}
		}
		return statusMsg{text: MsgOpening(target), kind: StatusInfo}
	}
}

// ReleaseMarkdown is the detail page of r, also printed by `analog show`.
func ReleaseMarkdown(r *storage.Release) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Title)

	byline := "**" + orUnknown(r.Artist) + "**"
	if r.Year > 0 {
		byline += fmt.Sprintf(" · %d", r.Year)
	}
	b.WriteString(byline + "\n\n")

	if len(r.Formats) > 0 {
		lines := make([]string, len(r.Formats))
		for i, f := range r.Formats {
			lines[i] = collection.FormatLine(f)
		}
		fmt.Fprintf(&b, "- **Format:** %s\n", strings.Join(lines, "; "))
	}
	if g := joinTags(r.Genres); g != "" {
		fmt.Fprintf(&b, "- **Genres:** %s\n", g)
	}
	if s := joinTags(r.Styles); s != "" {
		fmt.Fprintf(&b, "- **Styles:** %s\n", s)
	}
	if labels := collection.Labels(r); len(labels) > 0 {
		fmt.Fprintf(&b, "- **Labels:** %s\n", strings.Join(labels, ", "))
	}
	if r.Copies > 1 {
		fmt.Fprintf(&b, "- **Copies:** %d\n", r.Copies)
	}
	if added := collection.RawString(r, "date_added"); added != "" {
		if t, err := time.Parse(time.RFC3339, added); err == nil {
			added = t.Format("Jan 2, 2006")
		}
		fmt.Fprintf(&b, "- **Added:** %s\n", added)
	}
	if rating := collection.RawString(r, "rating"); rating != "" && rating != "0" {
		fmt.Fprintf(&b, "- **Rating:** %s/5\n", rating)
	}

	fmt.Fprintf(&b, "\n[View on Discogs](%s)\n", discogs.ReleaseURL(r.ID))
	return b.String()
}

// PickMarkdown renders today's pick, the artist blurb when known, and the
// earlier picks.
func PickMarkdown(res pick.Result, artist *discogs.Artist, profileLen int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Record of the day · %s\n\n", res.Date)

	if res.Pick == nil {
		b.WriteString(MsgNoPick + "\n")
	} else {
		p := res.Pick
		fmt.Fprintf(&b, "## %s\n\n**%s**", p.Title, orUnknown(p.Artist))
		if p.Year > 0 {
			fmt.Fprintf(&b, " · %d", p.Year)
		}
		b.WriteString("\n\n")
		if g := joinTags(append(append([]string{}, p.Genres...), p.Styles...)); g != "" {
			fmt.Fprintf(&b, "*%s*\n\n", g)
		}
		fmt.Fprintf(&b, "[View on Discogs](%s)\n\n", discogs.ReleaseURL(p.ID))

		if artist != nil {
			fmt.Fprintf(&b, "### About %s\n\n", artist.Name)
			if profile := artist.ShortProfile(profileLen); profile != "" {
				b.WriteString(profile + "\n\n")
			}
			links := make([]string, 0, 2)
			if img := artist.PrimaryImage(); img != "" {
				links = append(links, fmt.Sprintf("[Photo](%s)", img))
			}
			if artist.URI != "" {
				links = append(links, fmt.Sprintf("[Artist on Discogs](%s)", artist.URI))
			}
			if len(links) > 0 {
				b.WriteString(strings.Join(links, " · ") + "\n\n")
			}
		}
	}

	if len(res.History) > 0 {
		b.WriteString("### Earlier picks\n\n")
		for i, h := range res.History {
			line := fmt.Sprintf("%d. %s · %s", i+1, h.Title, orUnknown(h.Artist))
			if h.Year > 0 {
				line += fmt.Sprintf(" (%d)", h.Year)
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown Artist"
	}
	return s
}
