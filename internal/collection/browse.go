package collection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pders01/analog/internal/storage"
)

// Sort keys accepted by Sort, in the order the UI cycles through them.
const (
	SortNone       = ""
	SortTitle      = "title"
	SortTitleDesc  = "title-desc"
	SortArtist     = "artist"
	SortArtistDesc = "artist-desc"
	SortYear       = "year"
	SortYearDesc   = "year-desc"
)

var SortKeys = []string{SortNone, SortTitle, SortTitleDesc, SortArtist, SortArtistDesc, SortYear, SortYearDesc}

// NextSortKey returns the key after key in SortKeys, wrapping around.
func NextSortKey(key string, step int) string {
	idx := 0
	for i, k := range SortKeys {
		if k == key {
			idx = i
			break
		}
	}
	n := len(SortKeys)
	return SortKeys[((idx+step)%n+n)%n]
}

// Sort returns a sorted copy of items. Unknown keys keep the input order.
func Sort(items []*storage.Release, key string) []*storage.Release {
	out := make([]*storage.Release, len(items))
	copy(out, items)

	var less func(a, b *storage.Release) bool
	switch key {
	case SortTitle:
		less = func(a, b *storage.Release) bool { return fold(a.Title) < fold(b.Title) }
	case SortTitleDesc:
		less = func(a, b *storage.Release) bool { return fold(a.Title) > fold(b.Title) }
	case SortArtist:
		less = func(a, b *storage.Release) bool { return fold(a.Artist) < fold(b.Artist) }
	case SortArtistDesc:
		less = func(a, b *storage.Release) bool { return fold(a.Artist) > fold(b.Artist) }
	case SortYear:
		less = func(a, b *storage.Release) bool { return a.Year < b.Year }
	case SortYearDesc:
		less = func(a, b *storage.Release) bool { return a.Year > b.Year }
	default:
		return out
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// ByID returns a copy of items in ascending id order.
func ByID(items []*storage.Release) []*storage.Release {
	out := make([]*storage.Release, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Genres lists every genre in items, sorted and unique.
func Genres(items []*storage.Release) []string {
	set := map[string]struct{}{}
	for _, r := range items {
		for _, g := range r.Genres {
			set[g] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Styles lists every style in items, narrowed to releases tagged with genre
// when genre is not empty.
func Styles(items []*storage.Release, genre string) []string {
	set := map[string]struct{}{}
	for _, r := range items {
		if genre != "" && !r.HasGenre(genre) {
			continue
		}
		for _, s := range r.Styles {
			set[s] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Filter keeps releases matching genre and style. Empty values match all.
func Filter(items []*storage.Release, genre, style string) []*storage.Release {
	out := make([]*storage.Release, 0, len(items))
	for _, r := range items {
		if genre != "" && !r.HasGenre(genre) {
			continue
		}
		if style != "" && !r.HasStyle(style) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Find looks a release up by its id as it appears in links and arguments.
func Find(items []*storage.Release, id string) (*storage.Release, bool) {
	want, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return nil, false
	}
	for _, r := range items {
		if r.ID == want {
			return r, true
		}
	}
	return nil, false
}

// FormatLine renders a format as "Vinyl (2) - LP, Album".
func FormatLine(f storage.Format) string {
	var b strings.Builder
	b.WriteString(f.Name)
	if f.Qty > 1 {
		fmt.Fprintf(&b, " (%d)", f.Qty)
	}
	if len(f.Descriptions) > 0 {
		b.WriteString(" - ")
		b.WriteString(strings.Join(f.Descriptions, ", "))
	}
	return b.String()
}

// RawString reads a gjson path from the release's original payload, e.g.
// "basic_information.labels.0.name".
func RawString(r *storage.Release, path string) string {
	if r == nil || len(r.Raw) == 0 {
		return ""
	}
	return gjson.GetBytes(r.Raw, path).String()
}

// Labels returns "Label (catno)" entries from the original payload.
func Labels(r *storage.Release) []string {
	if r == nil || len(r.Raw) == 0 {
		return nil
	}
	var out []string
	gjson.GetBytes(r.Raw, "basic_information.labels").ForEach(func(_, v gjson.Result) bool {
		name := v.Get("name").String()
		if name == "" {
			return true
		}
		if catno := v.Get("catno").String(); catno != "" && catno != "none" {
			name = fmt.Sprintf("%s (%s)", name, catno)
		}
		out = append(out, name)
		return true
	})
	return out
}
