package storage

import (
	"encoding/json"
	"strconv"
)

// Release is one catalog entry of the collection. Several physical copies
// of the same pressing collapse into a single Release with Copies > 1.
type Release struct {
	ID       int64           `json:"id"`
	Title    string          `json:"title"`
	Artist   string          `json:"artist"`
	ArtistID int64           `json:"artist_id,omitempty"`
	Year     int             `json:"year"`
	Cover    string          `json:"cover"`
	Formats  []Format        `json:"formats,omitempty"`
	Genres   []string        `json:"genres"`
	Styles   []string        `json:"styles"`
	Copies   int             `json:"copies"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// Format is a physical format line, e.g. Vinyl ×2 with LP, Album.
type Format struct {
	Name         string   `json:"name"`
	Qty          int      `json:"qty"`
	Descriptions []string `json:"descriptions,omitempty"`
}

// Key returns the release id as the string used in lookups and links.
func (r *Release) Key() string {
	return strconv.FormatInt(r.ID, 10)
}

// HasGenre reports whether the release is tagged with genre.
func (r *Release) HasGenre(genre string) bool {
	for _, g := range r.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

// HasStyle reports whether the release is tagged with style.
func (r *Release) HasStyle(style string) bool {
	for _, s := range r.Styles {
		if s == style {
			return true
		}
	}
	return false
}
