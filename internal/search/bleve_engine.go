package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/analog/internal/debuglog"
	"github.com/pders01/analog/internal/storage"
)

type BleveEngine struct {
	idx bleve.Index

	mu    sync.RWMutex
	byKey map[string]*storage.Release
}

// NewBleveEngine creates or opens a Bleve index at indexPath. An empty path
// keeps the index in memory.
func NewBleveEngine(indexPath string) (*BleveEngine, error) {
	var idx bleve.Index
	var err error

	if indexPath == "" {
		idx, err = bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating in-memory index: %w", err)
		}
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(indexPath), 0o755); mkErr != nil {
			return nil, fmt.Errorf("creating index directory: %w", mkErr)
		}
		idx, err = bleve.Open(indexPath)
		if err != nil {
			idx, err = bleve.New(indexPath, buildIndexMapping())
			if err != nil {
				return nil, fmt.Errorf("creating index: %w", err)
			}
		}
	}

	return &BleveEngine{idx: idx, byKey: map[string]*storage.Release{}}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Store = true
	title.IncludeTermVectors = true

	artist := bleve.NewTextFieldMapping()
	artist.Analyzer = standard.Name
	artist.Store = true

	genres := bleve.NewTextFieldMapping()
	genres.Analyzer = standard.Name
	genres.Store = false

	styles := bleve.NewTextFieldMapping()
	styles.Analyzer = standard.Name
	styles.Store = false

	year := bleve.NewTextFieldMapping()
	year.Analyzer = keyword.Name
	year.Store = false

	dm.AddFieldMappingsAt("title", title)
	dm.AddFieldMappingsAt("artist", artist)
	dm.AddFieldMappingsAt("genres", genres)
	dm.AddFieldMappingsAt("styles", styles)
	dm.AddFieldMappingsAt("year", year)

	im.DefaultMapping = dm
	return im
}

// OnCollectionUpdated reindexes the collection. Releases that disappeared
// from the collection are dropped from the index.
func (b *BleveEngine) OnCollectionUpdated(items []*storage.Release) {
	next := make(map[string]*storage.Release, len(items))
	batch := b.idx.NewBatch()
	for _, r := range items {
		key := r.Key()
		next[key] = r
		doc := map[string]any{
			"title":  r.Title,
			"artist": r.Artist,
			"genres": strings.Join(r.Genres, " "),
			"styles": strings.Join(r.Styles, " "),
		}
		if r.Year > 0 {
			doc["year"] = strconv.Itoa(r.Year)
		}
		_ = batch.Index(key, doc)
	}

	b.mu.Lock()
	for _, key := range b.indexedKeys() {
		if _, ok := next[key]; !ok {
			batch.Delete(key)
		}
	}
	b.byKey = next
	b.mu.Unlock()

	if err := b.idx.Batch(batch); err != nil {
		debuglog.Errorf("search: indexing %d releases failed: %v", len(items), err)
		return
	}
	debuglog.Debugf("search: indexed %d releases", len(items))
}

func (b *BleveEngine) Search(query string, limit int) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	tokens := tokenize(query)
	var qs []bleveQuery.Query
	for _, tok := range tokens {
		qs = append(qs,
			fieldMatch("title", tok, 4.0),
			fieldPrefix("title", tok, 3.5),
			fieldMatch("artist", tok, 3.0),
			fieldPrefix("artist", tok, 2.5),
			fieldMatch("genres", tok, 2.0),
			fieldMatch("styles", tok, 2.0),
			fieldPrefix("styles", tok, 1.5),
			fieldTerm("year", tok, 1.0),
		)
	}
	if len(qs) == 0 {
		return []*Result{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), limit, 0, false)
	res, err := b.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		r, ok := b.byKey[h.ID]
		if !ok {
			// Left over from an earlier run of a persistent index.
			continue
		}
		out = append(out, &Result{Release: r, Score: h.Score})
	}
	return out, nil
}

// indexedKeys lists the ids currently in the index. A persistent index can
// hold releases from an earlier session that byKey never saw.
func (b *BleveEngine) indexedKeys() []string {
	if len(b.byKey) > 0 {
		keys := make([]string, 0, len(b.byKey))
		for k := range b.byKey {
			keys = append(keys, k)
		}
		return keys
	}

	n, err := b.idx.DocCount()
	if err != nil || n == 0 {
		return nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(n), 0, false)
	res, err := b.idx.Search(req)
	if err != nil {
		debuglog.Warnf("search: listing indexed releases: %v", err)
		return nil
	}
	keys := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		keys = append(keys, h.ID)
	}
	return keys
}

// DocCount reports total documents in the index.
func (b *BleveEngine) DocCount() (int, error) {
	n, err := b.idx.DocCount()
	return int(n), err
}

func (b *BleveEngine) Close() error {
	return b.idx.Close()
}

func fieldMatch(field, tok string, boost float64) bleveQuery.Query {
	q := bleve.NewMatchQuery(tok)
	q.SetField(field)
	q.SetBoost(boost)
	return q
}

func fieldPrefix(field, tok string, boost float64) bleveQuery.Query {
	q := bleve.NewPrefixQuery(strings.ToLower(tok))
	q.SetField(field)
	q.SetBoost(boost)
	return q
}

func fieldTerm(field, tok string, boost float64) bleveQuery.Query {
	q := bleve.NewTermQuery(tok)
	q.SetField(field)
	q.SetBoost(boost)
	return q
}
