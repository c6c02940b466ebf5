package search

import (
	"fmt"
	"strings"
)

// SourcesHeader labels the URL list the answer prompt asks the model to
// append; the flow re-appends it when the model leaves it out.
const SourcesHeader = "**Sources:**"

const queryPrompt = `Generate search queries to find the information needed to answer the question below.
Output the most relevant search queries, one per line, at most three.
Output only the queries themselves, with no preamble such as "Here are the queries".

Question: %s`

const queryWithHistoryPrompt = `Information is still needed to answer the original question below.

These search queries were already tried without finding enough:
%s

The previous results were judged to be missing the following:
%s

Taking those attempts and the missing information into account, generate new, highly relevant search queries for what has not been found yet.
Output the new queries, one per line, at most three.
Output only the queries themselves, with no other text.

Original Question: %s

New Search Queries:`

const answerPrompt = `You are the AI assistant "Plana". Using the search results and the original question below, write a comprehensive report for the user.
Combine the information from the results; integrate rather than copy, and explain clearly. Reflect Plana's personality (concise, rather quiet, a little sharp-tongued but kind).

At the end, list the source URLs the answer was based on in exactly this form. Always include the list.
` + "```markdown" + `
**Sources:**
- <URL1>
- <URL2>
...
` + "```" + `

If the search results do not contain what is needed, say honestly that a complete answer could not be found in them, and still list any URLs you consulted.

Search Results:
---
%s
---

Original Question: %s`

const assessmentPrompt = `Analyze the original question and the search results collected so far.
Decide whether the results are sufficient to answer the question completely.

- If the information is sufficient: output only the word "COMPLETE".
- If it is not: output "INCOMPLETE: " followed by a short note on what is still missing or what to search for next.

Include nothing else in the response.

Original Question: %s

Search Results:
---
%s
---

Assessment:`

func buildQueryPrompt(question string) string {
	return fmt.Sprintf(queryPrompt, question)
}

func buildQueryWithHistoryPrompt(question string, usedQueries []string, missingInfo string) string {
	formatted := make([]string, 0, len(usedQueries))
	for _, q := range usedQueries {
		formatted = append(formatted, "- "+q)
	}
	if missingInfo == "" {
		missingInfo = "nothing specific noted"
	}
	return fmt.Sprintf(queryWithHistoryPrompt, strings.Join(formatted, "\n"), missingInfo, question)
}

func buildAnswerPrompt(question, results string) string {
	return fmt.Sprintf(answerPrompt, results, question)
}

func buildAssessmentPrompt(question, results string) string {
	return fmt.Sprintf(assessmentPrompt, question, results)
}

// parseQueries splits model output into clean queries, newline or comma
// separated, capped at three.
func parseQueries(raw string) []string {
	normalized := strings.ReplaceAll(raw, "\n", ",")
	var queries []string
	for _, q := range strings.Split(normalized, ",") {
		q = strings.Trim(strings.TrimSpace(q), `"`)
		if q == "" {
			continue
		}
		queries = append(queries, q)
		if len(queries) == 3 {
			break
		}
	}
	return queries
}
