package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plana-bot/plana/src/llm/core"
)

type lowReply struct {
	text string
	ok   bool
}

// flowLLM replays scripted replies, lowload and dispatch separately, and
// records every prompt it was given.
type flowLLM struct {
	mu         sync.Mutex
	low        []lowReply
	dispatch   []core.Result
	lowPrompts []string
	dispatched []string
	active     core.Provider
}

func (f *flowLLM) Lowload(_ context.Context, prompt string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lowPrompts = append(f.lowPrompts, prompt)
	if len(f.low) == 0 {
		return "", false
	}
	r := f.low[0]
	f.low = f.low[1:]
	return r.text, r.ok
}

func (f *flowLLM) Dispatch(_ context.Context, req core.Request) core.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	prompt := ""
	if len(req.Parts) > 0 {
		prompt = req.Parts[0].Text
	}
	f.dispatched = append(f.dispatched, prompt)
	if len(f.dispatch) == 0 {
		return core.ErrorResult("fake-pro", core.KindInternal, "script exhausted")
	}
	r := f.dispatch[0]
	f.dispatch = f.dispatch[1:]
	return r
}

func (f *flowLLM) Active() (core.Provider, bool) {
	if f.active == nil {
		return nil, false
	}
	return f.active, true
}

type stubProvider struct{}

func (stubProvider) Name() string { return "fake" }
func (stubProvider) Generate(context.Context, string, core.Request) (core.Result, error) {
	return core.Result{}, nil
}
func (stubProvider) GenerateLowload(context.Context, string) (string, bool) { return "", false }
func (stubProvider) ModelName(kind core.ModelKind) string {
	if kind == core.ModelLowload {
		return "fake-lite"
	}
	return "fake-pro"
}

// flowFixture wires a Searcher against an httptest Brave endpoint and an
// httptest page server. hitsFor maps a query to the pages it should return.
type flowFixture struct {
	llm      *flowLLM
	pageSrv  *httptest.Server
	braveSrv *httptest.Server

	mu         sync.Mutex
	hits       map[string][]string
	braveCalls []string
}

func newFlowFixture(t *testing.T, pages map[string]string) *flowFixture {
	f := &flowFixture{llm: &flowLLM{active: stubProvider{}}, hits: make(map[string][]string)}

	mux := http.NewServeMux()
	for path, body := range pages {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(body))
		})
	}
	f.pageSrv = httptest.NewServer(mux)
	t.Cleanup(f.pageSrv.Close)

	f.braveSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		f.mu.Lock()
		f.braveCalls = append(f.braveCalls, q)
		urls := f.hits[q]
		f.mu.Unlock()

		items := make([]string, 0, len(urls))
		for _, u := range urls {
			items = append(items, fmt.Sprintf(`{"title":"Result","url":%q,"description":"about"}`, u))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"web":{"results":[%s]}}`, strings.Join(items, ","))
	}))
	t.Cleanup(f.braveSrv.Close)

	return f
}

func (f *flowFixture) pageURL(path string) string { return f.pageSrv.URL + path }

func (f *flowFixture) hitsFor(query string, paths ...string) {
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		urls = append(urls, f.pageURL(p))
	}
	f.mu.Lock()
	f.hits[query] = urls
	f.mu.Unlock()
}

func (f *flowFixture) searcher(maxIterations int) *Searcher {
	brave := &BraveClient{
		apiKey:     "test-key",
		endpoint:   f.braveSrv.URL,
		maxResults: 5,
		httpClient: f.braveSrv.Client(),
	}
	pages := &PageFetcher{
		httpClient: f.pageSrv.Client(),
		sanitizer:  bluemonday.StrictPolicy(),
		maxPerURL:  10000,
		minLength:  10,
	}
	return New(brave, pages, f.llm, 50000, maxIterations)
}

func TestRunQuickMode(t *testing.T) {
	f := newFlowFixture(t, map[string]string{
		"/a": "Plana is the OS living in the Shittim Chest tablet.",
		"/b": "The Shittim Chest is a relic entrusted to the Sensei.",
	})
	f.hitsFor("plana blue archive", "/a")
	f.hitsFor("shittim chest", "/a", "/b")
	f.llm.low = []lowReply{
		{text: "plana blue archive\nshittim chest", ok: true},
		{text: "Plana lives inside the Shittim Chest.", ok: true},
	}

	report, err := f.searcher(3).Run(context.Background(), ModeQuick, "who is plana?")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Iterations)
	assert.Equal(t, []string{"plana blue archive", "shittim chest"}, report.Queries)
	assert.Equal(t, []string{"plana blue archive", "shittim chest"}, f.braveCalls)
	assert.Equal(t, []string{f.pageURL("/a"), f.pageURL("/b")}, report.Sources)
	assert.Equal(t, "fake-lite", report.Model)

	// One lowload call for queries, one for the answer, nothing on dispatch.
	require.Len(t, f.llm.lowPrompts, 2)
	assert.Empty(t, f.llm.dispatched)
	assert.Contains(t, f.llm.lowPrompts[0], "who is plana?")
	assert.Contains(t, f.llm.lowPrompts[1], "--- Content from "+f.pageURL("/a")+" ---")
	assert.Contains(t, f.llm.lowPrompts[1], "Plana is the OS living in the Shittim Chest tablet.")

	assert.Contains(t, report.Answer, "Plana lives inside the Shittim Chest.")
	assert.Contains(t, report.Answer, SourcesHeader)
	assert.Contains(t, report.Answer, "- <"+f.pageURL("/a")+">")
	assert.Contains(t, report.Answer, "- <"+f.pageURL("/b")+">")
}

func TestRunKeepsModelSourcesList(t *testing.T) {
	f := newFlowFixture(t, map[string]string{"/a": "Some long enough page content here."})
	f.hitsFor("only query", "/a")
	f.llm.active = nil
	f.llm.low = []lowReply{
		{text: "only query", ok: true},
		{text: "Answer.\n\n**Sources:**\n- <https://example.com/hand-picked>", ok: true},
	}

	report, err := f.searcher(3).Run(context.Background(), ModeQuick, "anything")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(report.Answer, SourcesHeader))
	assert.Contains(t, report.Answer, "hand-picked")
	assert.Equal(t, "n/a", report.Model)
}

func TestRunDeepModeStopsWhenComplete(t *testing.T) {
	f := newFlowFixture(t, map[string]string{"/a": "Everything needed is right here on one page."})
	f.hitsFor("the query", "/a")
	f.llm.dispatch = []core.Result{
		{Model: "fake-pro", Text: "the query"},
		{Model: "fake-pro", Text: "COMPLETE"},
		{Model: "fake-pro", Text: "A thorough report."},
	}

	report, err := f.searcher(3).Run(context.Background(), ModeDeep, "the question")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Iterations)
	assert.Equal(t, "fake-pro", report.Model)
	assert.Empty(t, f.llm.lowPrompts)
	require.Len(t, f.llm.dispatched, 3)
	assert.Contains(t, f.llm.dispatched[1], "Assessment:")
	assert.Contains(t, f.llm.dispatched[2], "Original Question: the question")
}

func TestRunDeepModeIncompleteFeedsNextIteration(t *testing.T) {
	f := newFlowFixture(t, map[string]string{
		"/a": "Background but nothing about the release date.",
		"/b": "The release date was announced as early 2021.",
	})
	f.hitsFor("first query", "/a")
	f.hitsFor("second query", "/b")
	f.llm.dispatch = []core.Result{
		{Model: "fake-pro", Text: "first query"},
		{Model: "fake-pro", Text: "INCOMPLETE: the release date is still missing"},
		{Model: "fake-pro", Text: "second query"},
		{Model: "fake-pro", Text: "COMPLETE"},
		{Model: "fake-pro", Text: "Released in early 2021."},
	}

	report, err := f.searcher(3).Run(context.Background(), ModeDeep, "when was it released?")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Iterations)
	assert.Equal(t, []string{"first query", "second query"}, report.Queries)
	assert.Equal(t, []string{f.pageURL("/a"), f.pageURL("/b")}, report.Sources)

	// The second query prompt carries the used queries and the gap note.
	require.Len(t, f.llm.dispatched, 5)
	assert.Contains(t, f.llm.dispatched[2], "- first query")
	assert.Contains(t, f.llm.dispatched[2], "the release date is still missing")
}

func TestRunDeepModeIterationCap(t *testing.T) {
	f := newFlowFixture(t, map[string]string{
		"/a": "First pile of partial information here.",
		"/b": "Second pile of partial information here.",
	})
	f.hitsFor("q1", "/a")
	f.hitsFor("q2", "/b")
	f.llm.dispatch = []core.Result{
		{Model: "fake-pro", Text: "q1"},
		{Model: "fake-pro", Text: "INCOMPLETE: more"},
		{Model: "fake-pro", Text: "q2"},
		{Model: "fake-pro", Text: "INCOMPLETE: still more"},
		{Model: "fake-pro", Text: "Best effort answer."},
	}

	report, err := f.searcher(2).Run(context.Background(), ModeDeep, "capped question")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Iterations)
	assert.Contains(t, report.Answer, "Best effort answer.")
	require.Len(t, f.llm.dispatched, 5)
}

func TestRunDeepModeAnswersWithPartialResults(t *testing.T) {
	f := newFlowFixture(t, map[string]string{"/a": "The only page that was ever fetched."})
	f.hitsFor("q1", "/a")
	f.llm.dispatch = []core.Result{
		{Model: "fake-pro", Text: "q1"},
		{Model: "fake-pro", Text: "hard to say, maybe"},
		core.ErrorResult("fake-pro", core.KindRateLimit, "slow down"),
		{Model: "fake-pro", Text: "Partial answer from one page."},
	}

	// An off-script assessment keeps searching; a failed query generation
	// in a later iteration falls through to answering with what exists.
	report, err := f.searcher(3).Run(context.Background(), ModeDeep, "vague question")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Iterations)
	assert.Equal(t, []string{f.pageURL("/a")}, report.Sources)
	assert.Contains(t, report.Answer, "Partial answer from one page.")
}

func TestRunQueryGenerationFailure(t *testing.T) {
	f := newFlowFixture(t, nil)

	_, err := f.searcher(3).Run(context.Background(), ModeQuick, "question")
	assert.ErrorIs(t, err, ErrQueryGeneration)
}

func TestRunNoResults(t *testing.T) {
	f := newFlowFixture(t, nil)
	f.llm.low = []lowReply{{text: "query without hits", ok: true}}

	_, err := f.searcher(3).Run(context.Background(), ModeQuick, "question")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestRunNoContent(t *testing.T) {
	f := newFlowFixture(t, map[string]string{"/exists": "irrelevant"})
	f.hitsFor("query", "/missing")
	f.llm.low = []lowReply{{text: "query", ok: true}}

	_, err := f.searcher(3).Run(context.Background(), ModeQuick, "question")
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestRunAnswerFailure(t *testing.T) {
	for name, answer := range map[string]lowReply{
		"generation fails": {text: "", ok: false},
		"empty answer":     {text: "   \n", ok: true},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFlowFixture(t, map[string]string{"/a": "Perfectly reasonable page content."})
			f.hitsFor("query", "/a")
			f.llm.low = []lowReply{{text: "query", ok: true}, answer}

			_, err := f.searcher(3).Run(context.Background(), ModeQuick, "question")
			assert.ErrorIs(t, err, ErrAnswerFailed)
		})
	}
}

func TestRunRequiresConfiguredKey(t *testing.T) {
	s := New(NewBraveClient("", 5), NewPageFetcher(nil, 100, 10), &flowLLM{}, 1000, 3)
	_, err := s.Run(context.Background(), ModeQuick, "question")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRunRejectsEmptyQuestion(t *testing.T) {
	f := newFlowFixture(t, nil)
	_, err := f.searcher(3).Run(context.Background(), ModeQuick, "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty question")
}

func TestParseQueries(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"newlines", "one\ntwo\nthree", []string{"one", "two", "three"}},
		{"commas", "one, two, three", []string{"one", "two", "three"}},
		{"capped at three", "a\nb\nc\nd\ne", []string{"a", "b", "c"}},
		{"quotes stripped", "\"blue archive\"\n\"plana\"", []string{"blue archive", "plana"}},
		{"blanks skipped", "\n\none\n\n", []string{"one"}},
		{"empty", "   \n  ", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseQueries(tc.raw))
		})
	}
}

func TestRenderContentTruncates(t *testing.T) {
	s := &Searcher{maxTotalContent: 60}
	c := newContentSet()
	c.add("https://a.example", strings.Repeat("x", 100))
	c.add("https://b.example", "never reached")

	rendered := s.renderContent(c)
	assert.True(t, strings.HasSuffix(rendered, "\n\n... (truncated due to length limit)"))
	assert.Len(t, []rune(strings.TrimSuffix(rendered, "\n\n... (truncated due to length limit)")), 60)
}

func TestRenderContentWrapsEachPage(t *testing.T) {
	s := &Searcher{maxTotalContent: 10000}
	c := newContentSet()
	c.add("https://a.example", "alpha text")
	c.add("https://b.example", "beta text")

	rendered := s.renderContent(c)
	assert.Equal(t, "--- Content from https://a.example ---\nalpha text\n--- End of https://a.example ---\n\n"+
		"--- Content from https://b.example ---\nbeta text\n--- End of https://b.example ---", rendered)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "src", ModeQuick.String())
	assert.Equal(t, "dsrc", ModeDeep.String())
}
