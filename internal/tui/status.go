package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pders01/analog/internal/collection"
	"github.com/pders01/analog/internal/discogs"
)

// Canonical short status messages used across the app.
const (
	MsgLoading       = "Loading collection…"
	MsgRefreshing    = "Refreshing…"
	MsgRendering     = "Rendering…"
	MsgPicking       = "Picking today's record…"
	MsgNoResults     = "No results"
	MsgNoPick        = "Nothing to pick from yet"
	MsgNoCredentials = "Set discogs.token and discogs.username to load your collection"
)

func MsgResultsCount(n int) string {
	if n == 1 {
		return "1 result"
	}
	return fmt.Sprintf("%d results", n)
}

func MsgRecordCount(n int) string {
	if n == 1 {
		return "1 record"
	}
	return fmt.Sprintf("%d records", n)
}

func MsgOpening(target string) string {
	return "Opening " + truncateMiddle(target, 48)
}

// MsgCollectionSummary describes a fetch outcome for the status bar.
func MsgCollectionSummary(snap collection.Snapshot, now time.Time) (string, StatusKind) {
	if snap.State == collection.StateEmpty {
		switch {
		case errors.Is(snap.Err, discogs.ErrMissingCredentials):
			return MsgNoCredentials, StatusWarn
		case snap.Err != nil:
			return fmt.Sprintf("No records: %v", snap.Err), StatusError
		default:
			return "Collection is empty", StatusInfo
		}
	}

	parts := []string{MsgRecordCount(len(snap.Items)), snap.State.String()}
	if !snap.FetchedAt.IsZero() {
		parts = append(parts, "fetched "+ago(now.Sub(snap.FetchedAt)))
	}
	line := strings.Join(parts, " • ")

	switch snap.State {
	case collection.StateFresh:
		return line, StatusSuccess
	case collection.StateStale, collection.StateStaleTimeout:
		return line, StatusWarn
	default:
		return line, StatusInfo
	}
}

func ago(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
