package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/plana-bot/plana/src/llm/core"
)

// Mode selects how much effort a search run spends.
type Mode int

const (
	// ModeQuick runs one iteration on the lowload model.
	ModeQuick Mode = iota
	// ModeDeep iterates on the primary model until the results are judged
	// complete or the iteration cap is reached.
	ModeDeep
)

func (m Mode) String() string {
	if m == ModeDeep {
		return "dsrc"
	}
	return "src"
}

// Failure modes a caller is expected to explain to the user.
var (
	ErrNotConfigured   = errors.New("search: API key not configured")
	ErrQueryGeneration = errors.New("search: query generation failed")
	ErrNoResults       = errors.New("search: no results found")
	ErrNoContent       = errors.New("search: no usable content extracted")
	ErrAnswerFailed    = errors.New("search: answer generation failed")
)

// LLM is the slice of the model manager the search flow needs.
type LLM interface {
	Dispatch(ctx context.Context, req core.Request) core.Result
	Lowload(ctx context.Context, prompt string) (string, bool)
	Active() (core.Provider, bool)
}

// Report is the outcome of a completed search run.
type Report struct {
	Answer     string
	Sources    []string
	Queries    []string
	Iterations int
	Model      string
}

// Searcher drives the query-generate / search / extract / answer flow.
type Searcher struct {
	brave *BraveClient
	pages *PageFetcher
	llm   LLM

	maxTotalContent int
	maxIterations   int
}

// New wires a searcher over the Brave client and page fetcher.
func New(brave *BraveClient, pages *PageFetcher, llm LLM, maxTotalContent, maxIterations int) *Searcher {
	if maxIterations < 1 {
		maxIterations = 1
	}
	return &Searcher{
		brave:           brave,
		pages:           pages,
		llm:             llm,
		maxTotalContent: maxTotalContent,
		maxIterations:   maxIterations,
	}
}

// Run executes one search. The report's Answer always ends with a
// sources list; the flow appends one when the model forgets.
func (s *Searcher) Run(ctx context.Context, mode Mode, question string) (*Report, error) {
	if !s.brave.Configured() {
		return nil, ErrNotConfigured
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("search: empty question")
	}

	maxIterations := 1
	if mode == ModeDeep {
		maxIterations = s.maxIterations
	}

	var usedQueries []string
	content := newContentSet()
	missingInfo := ""
	iteration := 0
	searching := true

	for searching && iteration < maxIterations {
		iteration++

		prompt := buildQueryPrompt(question)
		if mode == ModeDeep && iteration > 1 && len(usedQueries) > 0 {
			prompt = buildQueryWithHistoryPrompt(question, usedQueries, missingInfo)
		}

		raw, ok := s.generate(ctx, mode, prompt)
		if !ok {
			if iteration == 1 {
				return nil, ErrQueryGeneration
			}
			log.Printf("search: [%s] query generation failed in iteration %d, answering with what we have", mode, iteration)
			break
		}

		queries := parseQueries(raw)
		if len(queries) == 0 {
			if iteration == 1 {
				return nil, ErrQueryGeneration
			}
			break
		}
		for _, q := range queries {
			if !contains(usedQueries, q) {
				usedQueries = append(usedQueries, q)
			}
		}
		log.Printf("search: [%s] iteration %d queries: %v", mode, iteration, queries)

		var hits []SearchResult
		for _, q := range queries {
			results, err := s.brave.Search(ctx, q)
			if err != nil {
				log.Printf("search: [%s] query %q failed: %v", mode, q, err)
				continue
			}
			hits = append(hits, results...)
		}

		if len(hits) == 0 {
			if content.empty() {
				if mode == ModeQuick || iteration == 1 {
					return nil, ErrNoResults
				}
			}
			break
		}

		fetched := 0
		for _, hit := range hits {
			if content.has(hit.URL) {
				continue
			}
			if text, ok := s.pages.Extract(ctx, hit.URL); ok {
				content.add(hit.URL, text)
				fetched++
			}
		}
		log.Printf("search: [%s] iteration %d extracted %d new pages (%d total)", mode, iteration, fetched, content.len())

		if content.empty() {
			return nil, ErrNoContent
		}

		if mode == ModeQuick {
			break
		}

		missingInfo = ""
		assessment, ok := s.generate(ctx, mode, buildAssessmentPrompt(question, s.renderContent(content)))
		if !ok {
			log.Printf("search: [%s] assessment failed in iteration %d, stopping", mode, iteration)
			break
		}
		trimmed := strings.TrimSpace(assessment)
		upper := strings.ToUpper(trimmed)
		switch {
		case upper == "COMPLETE":
			log.Printf("search: [%s] assessment complete after iteration %d", mode, iteration)
			searching = false
		case strings.HasPrefix(upper, "INCOMPLETE:"):
			missingInfo = strings.TrimSpace(trimmed[len("INCOMPLETE:"):])
			log.Printf("search: [%s] assessment incomplete: %s", mode, core.TruncateDetail(missingInfo))
		default:
			log.Printf("search: [%s] unexpected assessment %q, continuing", mode, core.TruncateDetail(assessment))
		}
	}

	if content.empty() {
		return nil, ErrNoContent
	}

	combined := s.renderContent(content)
	answer, ok := s.generate(ctx, mode, buildAnswerPrompt(question, combined))
	if !ok || strings.TrimSpace(answer) == "" {
		return nil, ErrAnswerFailed
	}
	answer = strings.TrimSpace(answer)

	if !strings.Contains(answer, SourcesHeader) {
		var list []string
		for _, u := range content.order {
			list = append(list, "- <"+u+">")
		}
		answer += "\n\n" + SourcesHeader + "\n" + strings.Join(list, "\n")
	}

	return &Report{
		Answer:     answer,
		Sources:    append([]string(nil), content.order...),
		Queries:    usedQueries,
		Iterations: iteration,
		Model:      s.modelLabel(mode),
	}, nil
}

// generate routes housekeeping prompts to the model tier the mode uses:
// lowload for quick runs, the full dispatch path for deep runs.
func (s *Searcher) generate(ctx context.Context, mode Mode, prompt string) (string, bool) {
	if mode == ModeQuick {
		return s.llm.Lowload(ctx, prompt)
	}
	res := s.llm.Dispatch(ctx, core.Request{Parts: []core.ContentPart{core.TextPart(prompt)}})
	if res.IsError() {
		return "", false
	}
	return res.Text, true
}

func (s *Searcher) modelLabel(mode Mode) string {
	provider, ok := s.llm.Active()
	if !ok {
		return "n/a"
	}
	if mode == ModeQuick {
		return provider.ModelName(core.ModelLowload)
	}
	return provider.ModelName(core.ModelPrimary)
}

func (s *Searcher) renderContent(c *contentSet) string {
	var b strings.Builder
	for i, u := range c.order {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Content from %s ---\n%s\n--- End of %s ---", u, c.byURL[u], u)
	}
	combined := b.String()
	if runes := []rune(combined); len(runes) > s.maxTotalContent {
		combined = string(runes[:s.maxTotalContent]) + "\n\n... (truncated due to length limit)"
	}
	return combined
}

// contentSet is an insertion-ordered URL -> text map.
type contentSet struct {
	order []string
	byURL map[string]string
}

func newContentSet() *contentSet {
	return &contentSet{byURL: make(map[string]string)}
}

func (c *contentSet) has(u string) bool { _, ok := c.byURL[u]; return ok }
func (c *contentSet) empty() bool       { return len(c.order) == 0 }
func (c *contentSet) len() int          { return len(c.order) }

func (c *contentSet) add(u, text string) {
	if _, ok := c.byURL[u]; ok {
		return
	}
	c.order = append(c.order, u)
	c.byURL[u] = text
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
