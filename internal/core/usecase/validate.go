package usecase

import "github.com/antonkh/filings-qa/internal/core/domain"

// validateReferences intersects the pages claimed by the extractor with the
// pages of the evidence actually shown to it. A claim about a page the
// model was never shown must not surface. A negative answer never carries
// references, since there is nothing to support.
func validateReferences(
	kind domain.QuestionKind,
	evidence []domain.RetrievedCandidate,
	claimedPages []int,
	value any,
) []domain.Reference {
	if len(claimedPages) == 0 {
		return nil
	}
	if domain.IsNegativeValue(kind, value) {
		return nil
	}

	claimed := make(map[int]struct{}, len(claimedPages))
	for _, page := range claimedPages {
		claimed[page] = struct{}{}
	}

	emitted := make(map[int]struct{}, len(claimed))
	out := make([]domain.Reference, 0, len(claimed))
	for _, c := range evidence {
		if _, ok := claimed[c.PageIndex]; !ok {
			continue
		}
		if _, dup := emitted[c.PageIndex]; dup {
			continue
		}
		emitted[c.PageIndex] = struct{}{}
		out = append(out, domain.Reference{DocumentID: c.DocumentID, PageIndex: c.PageIndex})
	}
	return out
}
