package tui

import (
	"context"

	"github.com/pders01/analog/internal/collection"
	"github.com/pders01/analog/internal/cover"
	"github.com/pders01/analog/internal/discogs"
	"github.com/pders01/analog/internal/pick"
	"github.com/pders01/analog/internal/search"
	"github.com/pders01/analog/internal/storage"
)

type View int

const (
	ViewCollection View = iota
	ViewDetail
	ViewPick
	ViewFilter
	ViewSearch
)

func (v View) String() string {
	switch v {
	case ViewCollection:
		return "collection"
	case ViewDetail:
		return "detail"
	case ViewPick:
		return "pick"
	case ViewFilter:
		return "filter"
	case ViewSearch:
		return "search"
	default:
		return "unknown"
	}
}

// CollectionSource is satisfied by *collection.Fetcher.
type CollectionSource interface {
	Fetch(ctx context.Context) collection.Snapshot
	Invalidate()
}

// PickSource is satisfied by *pick.Selector.
type PickSource interface {
	Pick(items []*storage.Release) pick.Result
}

// ArtistSource is satisfied by *discogs.Client.
type ArtistSource interface {
	Artist(ctx context.Context, id int64) (*discogs.Artist, error)
}

// ColorSource is satisfied by *cover.Fetcher.
type ColorSource interface {
	Color(ctx context.Context, url string) (cover.Color, error)
}

// URLOpener is satisfied by *media.Opener.
type URLOpener interface {
	Open(target string) error
}

// Deps are the collaborators the App drives. Artists, Covers and Opener may
// be nil; the matching features are then skipped. Context bounds every
// network call the App starts and defaults to context.Background.
type Deps struct {
	Context    context.Context
	Collection CollectionSource
	Picker     PickSource
	Search     search.Searcher
	Artists    ArtistSource
	Covers     ColorSource
	Opener     URLOpener
}
