package controller

import (
	"fmt"
	"strings"

	"github.com/uavlogviewer/chatbot/pkg/docindex"
	"github.com/uavlogviewer/chatbot/pkg/safety"
	"github.com/uavlogviewer/chatbot/pkg/session"
	"github.com/uavlogviewer/chatbot/pkg/validator"
)

const systemPromptTemplate = `You are a flight-log analysis assistant. You answer questions about one ingested UAV flight log using the three tools available to you: getDataSchema, getMessageTypes, queryData.

Rules:
1. Asking the user a clarifying question is a first-class outcome, equal in status to answering. If the question is ambiguous, ask instead of guessing.
2. Call getDataSchema before querying any field you have not already confirmed exists. Never guess a column name.
3. If a field the user asks about does not appear in the schema, say so plainly. Never invent a field name or a value.
4. Every factual claim about the data must be backed by a queryData call you actually made in this turn.
5. End your final response in exactly one of these two shapes, with no other top-level text:
ANSWER: <your answer>
DATA SOURCE: <the table(s) and field(s) the answer came from>

or

CLARIFICATION: <your question>
REASON: <why you need this to proceed>

Tables available in this session: %s`

func buildSystemPrompt(tablesAvailable []string) string {
	tables := "(none ingested)"
	if len(tablesAvailable) > 0 {
		tables = strings.Join(tablesAvailable, ", ")
	}
	return fmt.Sprintf(systemPromptTemplate, tables)
}

// buildDocContext renders retrieved documentation chunks as a system-role
// addendum, or "" if nothing was found.
func buildDocContext(results []docindex.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Reference documentation for interpreting this log's fields:\n\n")
	for _, r := range results {
		b.WriteString(r.Chunk.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

// buildHistoryContext renders a session's retained turns as a flat
// transcript, used as conversational context for BUILD_PROMPT.
func buildHistoryContext(turns []session.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
	}
	return b.String()
}

// buildQueryCorrectionPrompt quotes the original assistant text, the
// validator verdict, and corrective guidance, and reasserts tool
// availability.
func buildQueryCorrectionPrompt(original string, report validator.Report) string {
	var b strings.Builder
	b.WriteString("Your previous response contained a numeric claim that does not match the data. Here is what you said:\n\n")
	b.WriteString(original)
	b.WriteString("\n\nValidation found the following discrepancies:\n")
	for _, v := range report.Validations {
		for _, d := range v.Discrepancies {
			fmt.Fprintf(&b, "- query %q: you claimed %g but the closest actual value was %g\n", v.ExtractedSQL, d.Claimed, d.Closest)
		}
		if v.QueryError != "" {
			fmt.Fprintf(&b, "- query %q failed: %s\n", v.ExtractedSQL, v.QueryError)
		}
	}
	b.WriteString("\nRe-run queryData to get the correct value and restate your answer in the required ANSWER/DATA SOURCE or CLARIFICATION/REASON shape. getDataSchema and getMessageTypes are still available to you.")
	return b.String()
}

// buildAnswerCorrectionPrompt quotes the original text and the classifier's
// verdict and suggestion.
func buildAnswerCorrectionPrompt(original string, verdict safety.AnswerVerdict) string {
	var b strings.Builder
	b.WriteString("Your previous response was classified as ")
	b.WriteString(string(verdict.Shape))
	b.WriteString(", which is not a valid terminal answer. Here is what you said:\n\n")
	b.WriteString(original)
	b.WriteString("\n\n")
	if verdict.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", verdict.Reason)
	}
	if verdict.Suggestion != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", verdict.Suggestion)
	}
	b.WriteString("\nRestate your response in exactly one of the two required shapes: ANSWER: .../DATA SOURCE: ... or CLARIFICATION: .../REASON: .... getDataSchema, getMessageTypes, and queryData are still available to you.")
	return b.String()
}
