package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antonkh/filings-qa/internal/core/domain"
)

// EntityDirectory maps canonical entity display names to document
// identifiers. Read-only after construction, safe for concurrent use.
type EntityDirectory struct {
	byName map[string]string
	// names sorted longest-first so that "Acme Inc Holdings" claims its
	// span before "Acme Inc" gets a chance to double-match inside it.
	ordered []string
}

func NewEntityDirectory(entries map[string]string) (*EntityDirectory, error) {
	if len(entries) == 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "entity directory", fmt.Errorf("empty entity mapping"))
	}

	byName := make(map[string]string, len(entries))
	ordered := make([]string, 0, len(entries))
	for name, documentID := range entries {
		name = strings.TrimSpace(strings.Trim(name, `"`))
		if name == "" {
			return nil, domain.WrapError(domain.ErrConfiguration, "entity directory", fmt.Errorf("blank entity name"))
		}
		if documentID == "" {
			return nil, domain.WrapError(domain.ErrConfiguration, "entity directory", fmt.Errorf("entity %q has no document id", name))
		}
		byName[name] = documentID
		ordered = append(ordered, name)
	}

	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i]) != len(ordered[j]) {
			return len(ordered[i]) > len(ordered[j])
		}
		return ordered[i] < ordered[j]
	})

	return &EntityDirectory{byName: byName, ordered: ordered}, nil
}

func (d *EntityDirectory) Len() int {
	return len(d.byName)
}

// Resolve returns the document identifier for an exact entity name.
func (d *EntityDirectory) Resolve(name string) (string, bool) {
	id, ok := d.byName[strings.TrimSpace(strings.Trim(name, `"`))]
	return id, ok
}

type textSpan struct {
	start, end int
}

func (s textSpan) overlaps(o textSpan) bool {
	return s.start < o.end && o.start < s.end
}

// Scan returns the known entity names occurring literally in text, ordered
// by first occurrence. Longer names are matched first and claim their text
// span, so a shorter name that only occurs inside a longer match is not
// reported.
func (d *EntityDirectory) Scan(text string) []string {
	if text == "" {
		return nil
	}

	type match struct {
		name  string
		first int
	}

	var claimed []textSpan
	var matches []match

	for _, name := range d.ordered {
		first := -1
		offset := 0
		for {
			idx := strings.Index(text[offset:], name)
			if idx < 0 {
				break
			}
			span := textSpan{start: offset + idx, end: offset + idx + len(name)}
			offset = span.start + 1

			taken := false
			for _, c := range claimed {
				if span.overlaps(c) {
					taken = true
					break
				}
			}
			if taken {
				continue
			}
			claimed = append(claimed, span)
			if first < 0 {
				first = span.start
			}
		}
		if first >= 0 {
			matches = append(matches, match{name: name, first: first})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].first < matches[j].first })

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.name)
	}
	return out
}
