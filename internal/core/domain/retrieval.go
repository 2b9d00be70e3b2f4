package domain

// Passage is one indexed chunk of a filing, tied to a document and a
// physical page. Produced by the external chunking pipeline; immutable here.
type Passage struct {
	Text       string `json:"text"`
	DocumentID string `json:"document_id"`
	PageIndex  int    `json:"page_index"`
}

// Provenance records which retrieval modality produced a candidate.
type Provenance string

const (
	ProvenanceLexical  Provenance = "lexical"
	ProvenanceSemantic Provenance = "semantic"
	ProvenanceBoth     Provenance = "both"
)

// RetrievedCandidate is a passage with its reranker relevance score.
type RetrievedCandidate struct {
	Passage
	Score      float64    `json:"score"`
	Provenance Provenance `json:"provenance"`
}
