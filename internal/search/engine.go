package search

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/pders01/analog/internal/storage"
)

// Result represents a search match with relevance scoring
type Result struct {
	Release *storage.Release
	Score   float64
	Matches []Match
}

// Match represents where text was found
type Match struct {
	Field  string // "title", "artist", "genre", "style", "year"
	Text   string
	Weight float64
}

// Engine scores releases in memory without an index.
type Engine struct {
	mu    sync.RWMutex
	items []*storage.Release
}

func NewEngine() *Engine {
	return &Engine{}
}

// OnCollectionUpdated replaces the releases the engine searches.
func (e *Engine) OnCollectionUpdated(items []*storage.Release) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = items
}

func (e *Engine) DocCount() (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.items), nil
}

// Search ranks releases against query, best first.
func (e *Engine) Search(query string, limit int) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}, nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return []*Result{}, nil
	}

	e.mu.RLock()
	items := e.items
	e.mu.RUnlock()

	results := make([]*Result, 0)
	for _, r := range items {
		if res := scoreRelease(r, terms); res != nil {
			results = append(results, res)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func scoreRelease(r *storage.Release, terms []string) *Result {
	var matches []Match
	var total float64

	add := func(field, text string, weight float64) {
		if s := scoreField(text, terms, weight); s > 0 {
			matches = append(matches, Match{Field: field, Text: text, Weight: s})
			total += s
		}
	}

	add("title", r.Title, 4.0)
	add("artist", r.Artist, 3.0)
	for _, g := range r.Genres {
		add("genre", g, 2.0)
	}
	for _, s := range r.Styles {
		add("style", s, 2.0)
	}
	if r.Year > 0 {
		add("year", strconv.Itoa(r.Year), 1.0)
	}

	if total == 0 {
		return nil
	}
	return &Result{Release: r, Score: total, Matches: matches}
}

// scoreField calculates relevance score for a field
func scoreField(text string, terms []string, weight float64) float64 {
	if text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	words := tokenize(text)
	if len(words) == 0 {
		return 0
	}

	var score float64
	matchedTerms := 0

	for _, term := range terms {
		if strings.Contains(lower, term) {
			score += 2.0
			matchedTerms++
		}

		for _, word := range words {
			switch {
			case word == term:
				score += 1.5
				matchedTerms++
			case strings.HasPrefix(word, term) || strings.HasSuffix(word, term):
				score += 1.0
				matchedTerms++
			case strings.Contains(word, term):
				score += 0.5
				matchedTerms++
			}
		}
	}

	if len(terms) > 1 && matchedTerms > 1 {
		score *= 1.0 + float64(matchedTerms)/float64(len(terms))
	}

	// Shorter fields with the same hits rank higher.
	tf := float64(matchedTerms) / float64(len(words))
	score *= 1.0 + math.Log(1.0+tf)

	return score * weight
}

// tokenize breaks text into lower-cased searchable terms
func tokenize(text string) []string {
	var terms []string
	current := strings.Builder{}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
		} else if current.Len() > 0 {
			if term := current.String(); len(term) > 1 {
				terms = append(terms, term)
			}
			current.Reset()
		}
	}

	if current.Len() > 1 {
		terms = append(terms, current.String())
	}

	return terms
}
