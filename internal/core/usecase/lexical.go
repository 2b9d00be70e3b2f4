package usecase

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/antonkh/filings-qa/internal/core/domain"
	"github.com/antonkh/filings-qa/internal/core/ports"
)

const (
	lexicalBM25K1 = 1.2
	lexicalBM25B  = 0.75
)

// lexicalIndex ranks the passages of a single document by BM25. Embedding
// similarity under-ranks exact numeric and ticker-like tokens; this index
// recovers them.
type lexicalIndex struct {
	passages  []domain.Passage
	termFreqs []map[string]int
	lengths   []int
	avgLength float64
	docFreq   map[string]int
}

func buildLexicalIndex(passages []domain.Passage) *lexicalIndex {
	idx := &lexicalIndex{
		passages:  passages,
		termFreqs: make([]map[string]int, len(passages)),
		lengths:   make([]int, len(passages)),
		docFreq:   make(map[string]int, 256),
	}

	totalLength := 0
	for i, p := range passages {
		tokens := tokenizeAlphaNumLower(p.Text)
		tf := make(map[string]int, len(tokens))
		for _, token := range tokens {
			tf[token]++
		}
		idx.termFreqs[i] = tf
		idx.lengths[i] = len(tokens)
		totalLength += len(tokens)
		for token := range tf {
			idx.docFreq[token]++
		}
	}
	if len(passages) > 0 {
		idx.avgLength = float64(totalLength) / float64(len(passages))
	}
	return idx
}

// Query scores every passage against the tokenized query and returns up to
// limit passages with a strictly positive score, best first. A zero score
// means no query term occurred in the passage at all. Ties keep the
// original passage order.
func (idx *lexicalIndex) Query(text string, limit int) []domain.Passage {
	if len(idx.passages) == 0 || limit <= 0 {
		return nil
	}

	queryTokens := tokenizeAlphaNumLower(text)
	if len(queryTokens) == 0 {
		return nil
	}

	type scored struct {
		position int
		score    float64
	}

	n := float64(len(idx.passages))
	results := make([]scored, 0, len(idx.passages))
	for i := range idx.passages {
		score := 0.0
		for _, token := range queryTokens {
			tf := idx.termFreqs[i][token]
			if tf == 0 {
				continue
			}
			df := float64(idx.docFreq[token])
			idf := math.Log(1.0 + (n-df+0.5)/(df+0.5))
			norm := 1.0 - lexicalBM25B + lexicalBM25B*float64(idx.lengths[i])/idx.avgLength
			score += idf * float64(tf) * (lexicalBM25K1 + 1.0) / (float64(tf) + lexicalBM25K1*norm)
		}
		if score > 0 {
			results = append(results, scored{position: i, score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > limit {
		results = results[:limit]
	}

	out := make([]domain.Passage, 0, len(results))
	for _, r := range results {
		out = append(out, idx.passages[r.position])
	}
	return out
}

// LexicalSearch lazily builds one lexicalIndex per document and serves
// keyword-ranked retrieval from it. Passage sets are immutable per session,
// so built indexes are never invalidated.
type LexicalSearch struct {
	store ports.PassageStore

	mu      sync.Mutex
	entries map[string]*lexicalEntry
}

type lexicalEntry struct {
	mu    sync.Mutex
	index *lexicalIndex
}

func NewLexicalSearch(store ports.PassageStore) *LexicalSearch {
	return &LexicalSearch{
		store:   store,
		entries: make(map[string]*lexicalEntry),
	}
}

// Query retrieves the top keyword matches for the query within one
// document, building the index on first access. A document with no indexed
// passages yields an empty result, not an error.
func (s *LexicalSearch) Query(ctx context.Context, documentID, text string, limit int) ([]domain.Passage, error) {
	index, err := s.indexFor(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(index.passages) == 0 {
		slog.Warn("lexical_index_empty", "document_id", documentID)
		return nil, nil
	}
	return index.Query(text, limit), nil
}

func (s *LexicalSearch) indexFor(ctx context.Context, documentID string) (*lexicalIndex, error) {
	s.mu.Lock()
	entry, ok := s.entries[documentID]
	if !ok {
		entry = &lexicalEntry{}
		s.entries[documentID] = entry
	}
	s.mu.Unlock()

	// Per-key lock so concurrent sub-pipelines don't build the same
	// document index twice.
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.index != nil {
		return entry.index, nil
	}

	passages, err := s.store.FetchByDocument(ctx, documentID)
	if err != nil {
		// Not cached: the store may recover on a later question.
		return nil, domain.WrapError(domain.ErrTemporary, "fetch passages", err)
	}

	entry.index = buildLexicalIndex(passages)
	return entry.index, nil
}

func tokenizeAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
