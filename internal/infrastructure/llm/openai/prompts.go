package openai

import (
	"fmt"
	"strings"

	"github.com/antonkh/filings-qa/internal/core/domain"
)

const basePromptHeader = `You are an expert financial analyst answering questions about annual reports.
You are given extracted pages from one report; each page starts with a "--- Page N ---" marker.
Answer strictly from the provided context. Never use outside knowledge and never guess.
Work through the question step by step before committing to a final answer.`

const numberInstruction = `The question asks for a single numeric metric.
Return the value exactly as reported, normalised as follows:
- percentages as plain numbers: "58.3%" becomes 58.3
- negatives in parentheses: "(2,124)" becomes -2124
- values stated in thousands or millions scaled to units: "4,970.5 thousands" becomes 4970500
If the metric is reported in a currency different from the one in the question,
or is not directly stated on any page, answer "N/A". Do not derive the metric
from other figures unless the text itself performs the calculation.`

const nameInstruction = `The question asks for a single name (an entity, person, or product).
Extract it exactly as written in the context, without honorifics or commentary.
If no page states it, answer "N/A".`

const booleanInstruction = `The question asks whether something happened or holds.
Answer true only if the context states it directly. Answer false if the context
states the opposite or says nothing about it. A missing mention is false, not "N/A".`

const namesInstruction = `The question asks for a list of names (people, positions, or products).
Extract each exactly as written, without duplicates. For leadership changes
return position titles only. If the context mentions none, answer "N/A".`

const comparativeInstruction = `The question compares a metric across several companies.
You are given one summary block per company, separated by "---" lines, each
containing extracted data and supporting context. Decide which company wins the
comparison asked about. Answer with that company's name exactly as it is
written in the question, or "N/A" when the summaries do not support a
comparison (for example when a value is missing or currencies differ).`

func systemPrompt(kind domain.QuestionKind) string {
	instruction := nameInstruction
	switch kind {
	case domain.KindNumber:
		instruction = numberInstruction
	case domain.KindBoolean:
		instruction = booleanInstruction
	case domain.KindNames:
		instruction = namesInstruction
	case domain.KindComparative:
		instruction = comparativeInstruction
	}
	return basePromptHeader + "\n\n" + instruction
}

func userPrompt(question, contextText string) string {
	return fmt.Sprintf("Here is the context:\n\"\"\"\n%s\n\"\"\"\n\nHere is the question:\n\"%s\"", contextText, question)
}

const rephrasingSystemPrompt = `You rewrite one comparative question about several companies into
standalone per-company questions. Each rewritten question must mention exactly
one company, preserve the metric, period and units of the original, and be
answerable from that company's annual report alone. Keep company names exactly
as they appear in the original question.`

func rephrasingUserPrompt(question string, entityNames []string) string {
	quoted := make([]string, len(entityNames))
	for i, name := range entityNames {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	return fmt.Sprintf("Original comparative question:\n%q\n\nCompanies mentioned: %s\n\nRewrite it into one question per company.",
		question, strings.Join(quoted, ", "))
}
