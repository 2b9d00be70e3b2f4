package usecase

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/antonkh/filings-qa/internal/core/domain"
	"github.com/antonkh/filings-qa/internal/core/ports"
)

const (
	DefaultTopK   = 5
	DefaultFetchK = 30
)

// HybridRetriever merges lexical and semantic candidate pools for one
// (query, entity) pair, deduplicates by passage text, reranks the union and
// returns a bounded evidence set. The two modalities have complementary
// failure modes, so the union is reranked as a whole: pool membership only
// determines recall, the reranker decides the final order.
type HybridRetriever struct {
	directory *EntityDirectory
	semantic  ports.SemanticSearcher
	lexical   *LexicalSearch
	reranker  ports.Reranker

	topK   int
	fetchK int
}

func NewHybridRetriever(
	directory *EntityDirectory,
	semantic ports.SemanticSearcher,
	lexical *LexicalSearch,
	reranker ports.Reranker,
	topK, fetchK int,
) *HybridRetriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if fetchK <= 0 {
		fetchK = DefaultFetchK
	}
	return &HybridRetriever{
		directory: directory,
		semantic:  semantic,
		lexical:   lexical,
		reranker:  reranker,
		topK:      topK,
		fetchK:    fetchK,
	}
}

// Retrieve returns the ranked evidence set for the query scoped to the
// named entity's document. An unknown entity, empty pools or a failed
// collaborator all degrade to an empty set; callers treat that as
// "no evidence", never as an error.
func (r *HybridRetriever) Retrieve(ctx context.Context, query, entityName string) []domain.RetrievedCandidate {
	documentID, ok := r.directory.Resolve(entityName)
	if !ok {
		slog.Warn("entity_unresolved", "entity", entityName)
		return nil
	}

	semanticPool, err := r.semantic.Search(ctx, query, documentID, r.fetchK)
	if err != nil {
		slog.Error("semantic_pool_failed", "entity", entityName, "error", err)
		semanticPool = nil
	}

	lexicalPool, err := r.lexical.Query(ctx, documentID, query, r.fetchK)
	if err != nil {
		slog.Error("lexical_pool_failed", "entity", entityName, "error", err)
		lexicalPool = nil
	}

	merged := mergeCandidatePools(semanticPool, lexicalPool)
	if len(merged) == 0 {
		return nil
	}

	texts := make([]string, len(merged))
	for i, c := range merged {
		texts[i] = c.Text
	}
	scores, err := r.reranker.Score(ctx, query, texts)
	if err != nil || len(scores) != len(merged) {
		slog.Error("rerank_failed", "entity", entityName, "candidates", len(merged), "error", err)
		return nil
	}

	for i := range merged {
		merged[i].Score = roundScore(scores[i])
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > r.topK {
		merged = merged[:r.topK]
	}
	return merged
}

// mergeCandidatePools unions the two pools, deduplicating by exact passage
// text. Two candidates with identical text are the same evidence item no
// matter which modality found them.
func mergeCandidatePools(semantic, lexical []domain.Passage) []domain.RetrievedCandidate {
	seen := make(map[string]int, len(semantic)+len(lexical))
	out := make([]domain.RetrievedCandidate, 0, len(semantic)+len(lexical))

	add := func(passages []domain.Passage, provenance domain.Provenance) {
		for _, p := range passages {
			if pos, ok := seen[p.Text]; ok {
				if out[pos].Provenance != provenance {
					out[pos].Provenance = domain.ProvenanceBoth
				}
				continue
			}
			seen[p.Text] = len(out)
			out = append(out, domain.RetrievedCandidate{Passage: p, Provenance: provenance})
		}
	}

	add(semantic, domain.ProvenanceSemantic)
	add(lexical, domain.ProvenanceLexical)
	return out
}

func roundScore(score float64) float64 {
	return math.Round(score*10000) / 10000
}
