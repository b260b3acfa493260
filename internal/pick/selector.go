// Package pick chooses the record of the day. The choice is a pure function
// of the calendar date and the collection, and is persisted so it stays the
// same for the whole day even if the collection is refetched.
package pick

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pders01/analog/internal/collection"
	"github.com/pders01/analog/internal/debuglog"
	"github.com/pders01/analog/internal/storage"
)

const (
	KeyPick    = "record_of_the_day"
	KeyDate    = "record_of_the_day_date"
	KeyHistory = "record_history"

	DefaultHistorySize = 10
	dateLayout         = "2006-01-02"
)

// KV is the persistence the selector needs. storage.Store and
// storage.MemoryKV both satisfy it.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Result is today's pick plus earlier picks, most recent first.
type Result struct {
	Pick    *storage.Release
	History []*storage.Release
	Date    string
	// Rolled is true when this call chose a new pick.
	Rolled bool
}

type Selector struct {
	kv          KV
	historySize int
	now         func() time.Time
}

func NewSelector(kv KV, historySize int, now func() time.Time) *Selector {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	if now == nil {
		now = time.Now
	}
	return &Selector{kv: kv, historySize: historySize, now: now}
}

// DateKey is the local calendar date of t.
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// Seed is year*1000 + day of year.
func Seed(t time.Time) int {
	return t.Year()*1000 + t.YearDay()
}

// Choose returns the release for the given date. Candidates are taken in
// ascending id order so reshuffled fetches keep the same answer.
func Choose(items []*storage.Release, t time.Time) *storage.Release {
	if len(items) == 0 {
		return nil
	}
	ordered := collection.ByID(items)
	return ordered[Seed(t)%len(ordered)]
}

// Pick returns today's record, choosing and persisting a new one when the
// stored pick belongs to another day. Storage errors are logged and never
// returned.
func (s *Selector) Pick(items []*storage.Release) Result {
	now := s.now()
	today := DateKey(now)

	stored := s.loadPick()
	storedDate := s.loadString(KeyDate)
	history := s.History()

	if len(items) == 0 {
		return Result{History: history, Date: today}
	}

	if stored != nil && storedDate == today {
		return Result{Pick: stored, History: history, Date: today}
	}

	choice := Choose(items, now)

	if stored != nil {
		history = append([]*storage.Release{stored}, history...)
		if len(history) > s.historySize {
			history = history[:s.historySize]
		}
		s.save(KeyHistory, history)
	}

	s.save(KeyPick, choice)
	s.set(KeyDate, today)

	debuglog.Infof("record of the day for %s: %d %q", today, choice.ID, choice.Title)
	return Result{Pick: choice, History: history, Date: today, Rolled: true}
}

// History returns the stored history. A corrupt value reads as empty.
func (s *Selector) History() []*storage.Release {
	raw := s.loadString(KeyHistory)
	if raw == "" {
		return []*storage.Release{}
	}
	var history []*storage.Release
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		debuglog.Warnf("discarding corrupt %s: %v", KeyHistory, err)
		return []*storage.Release{}
	}
	out := history[:0]
	for _, r := range history {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) > s.historySize {
		out = out[:s.historySize]
	}
	return out
}

// Reset forgets today's pick and the history. The next Pick rolls a new
// record without a previous day to archive.
func (s *Selector) Reset() error {
	for _, key := range []string{KeyPick, KeyDate, KeyHistory} {
		if err := s.kv.Delete(key); err != nil {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
	}
	debuglog.Infof("record of the day state cleared")
	return nil
}

func (s *Selector) loadPick() *storage.Release {
	raw := s.loadString(KeyPick)
	if raw == "" {
		return nil
	}
	var r storage.Release
	if err := json.Unmarshal([]byte(raw), &r); err != nil || r.ID == 0 {
		debuglog.Warnf("discarding unreadable %s: %v", KeyPick, err)
		return nil
	}
	return &r
}

func (s *Selector) loadString(key string) string {
	v, ok, err := s.kv.Get(key)
	if err != nil {
		debuglog.Errorf("reading %s: %v", key, err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (s *Selector) save(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		debuglog.Errorf("encoding %s: %v", key, err)
		return
	}
	s.set(key, string(data))
}

func (s *Selector) set(key, value string) {
	if err := s.kv.Set(key, value); err != nil {
		debuglog.Errorf("writing %s: %v", key, err)
	}
}
