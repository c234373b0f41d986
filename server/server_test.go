package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/excerpter/core/extraction"
	"github.com/siherrmann/excerpter/core/inference"
	"github.com/siherrmann/excerpter/model"
	"github.com/siherrmann/excerpter/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const question = "What causes fever?"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// phraseAnswer scores texts containing phrase with 0.9 and all others with 0.1
func phraseAnswer(phrase string) func(ctx context.Context, question string, text string) (*model.Answer, error) {
	return func(ctx context.Context, question string, text string) (*model.Answer, error) {
		index := strings.Index(text, phrase)
		if index < 0 {
			return &model.Answer{Start: 0, End: 0, Score: 0.1}, nil
		}
		start := model.RuneLen(text[:index])
		return &model.Answer{Start: start, End: start + model.RuneLen(phrase), Score: 0.9, Text: phrase}, nil
	}
}

type fakePages struct {
	text    string
	err     error
	fetched []string
}

func (p *fakePages) Fetch(ctx context.Context, url string) (*source.Page, error) {
	p.fetched = append(p.fetched, url)
	if p.err != nil {
		return nil, p.err
	}
	return &source.Page{URL: url, Text: p.text}, nil
}

type fakeRetriever struct {
	hits   []*model.PaperHit
	err    error
	limits []int
}

func (r *fakeRetriever) Retrieve(ctx context.Context, question string, limit int) ([]*model.PaperHit, error) {
	r.limits = append(r.limits, limit)
	return r.hits, r.err
}

func newTestServer(t *testing.T, answer func(ctx context.Context, question string, text string) (*model.Answer, error), pages PageSource, retriever *fakeRetriever) *Server {
	t.Helper()

	executor := inference.NewParallelExecutor(answer, 2, testLogger())
	extractor := extraction.NewExtractor(executor, extraction.DefaultSettings(), testLogger())
	options := Options{DefaultURL: "https://example.com/default", SearchNDocs: 3}

	if retriever == nil {
		return NewServer(options, extractor, pages, nil, testLogger())
	}
	return NewServer(options, extractor, pages, retriever, testLogger())
}

func post(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	return response.Error
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, phraseAnswer("infection"), &fakePages{}, nil)

	t.Run("Reports the strategy", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, string(model.StrategyLocalParallel), body["strategy"])
		assert.Equal(t, false, body["store"])
	})

	t.Run("Unknown path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetExcerptsFromDocs(t *testing.T) {
	s := newTestServer(t, phraseAnswer("caused by infection"), &fakePages{}, nil)

	t.Run("Best excerpt first", func(t *testing.T) {
		rec := post(t, s, "/get_excerpts_from_docs", DocsRequest{
			Question: question,
			Docs:     []string{"Unrelated text about weather.", "Fever is caused by infection. It is common."},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var excerpts []model.Excerpt
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&excerpts))
		require.Len(t, excerpts, 2)
		assert.Equal(t, 1, excerpts[0].SourceIndex)
		assert.Equal(t, "caused by infection. It is common.", excerpts[0].Text)
		assert.Equal(t, 0, excerpts[1].SourceIndex)
	})

	t.Run("Top n from the request", func(t *testing.T) {
		topN := 1
		rec := post(t, s, "/get_excerpts_from_docs", DocsRequest{
			Question: question,
			Docs:     []string{"Unrelated text about weather.", "Fever is caused by infection. It is common."},
			TopN:     &topN,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var excerpts []model.Excerpt
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&excerpts))
		assert.Len(t, excerpts, 1)
	})

	t.Run("Missing docs", func(t *testing.T) {
		rec := post(t, s, "/get_excerpts_from_docs", DocsRequest{Question: question})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No question (len=18) or docs (len=0) provided", decodeError(t, rec))
	})

	t.Run("Missing question", func(t *testing.T) {
		rec := post(t, s, "/get_excerpts_from_docs", DocsRequest{Docs: []string{"a", "b"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No question (len=0) or docs (len=2) provided", decodeError(t, rec))
	})

	t.Run("Wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/get_excerpts_from_docs", strings.NewReader("question=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Content type with charset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/get_excerpts_from_docs", strings.NewReader(`{"question":"q","docs":["Some text."]}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Undecodable body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/get_excerpts_from_docs", strings.NewReader(`{"question":`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid JSON body", decodeError(t, rec))
	})

	t.Run("Inference failure", func(t *testing.T) {
		failing := newTestServer(t, func(ctx context.Context, question string, text string) (*model.Answer, error) {
			return nil, errors.New("model crashed")
		}, &fakePages{}, nil)

		rec := post(t, failing, "/get_excerpts_from_docs", DocsRequest{Question: question, Docs: []string{"Some text."}})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, decodeError(t, rec), "model crashed")
	})
}

func TestGetExcerpts(t *testing.T) {
	paper := &model.PaperHit{Paper: &model.Paper{
		RID:  uuid.New(),
		Body: "Fever is caused by infection. It is common.",
	}}

	t.Run("Answer from the page and the store", func(t *testing.T) {
		pages := &fakePages{text: "The weather is nice today."}
		retriever := &fakeRetriever{hits: []*model.PaperHit{paper}}
		s := newTestServer(t, phraseAnswer("caused by infection"), pages, retriever)

		rec := post(t, s, "/get_excerpts", ExcerptsRequest{Question: question})
		require.Equal(t, http.StatusOK, rec.Code)

		var excerpts []model.Excerpt
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&excerpts))
		require.Len(t, excerpts, 1, "Expected one pooled chunk")
		assert.Equal(t, 1, excerpts[0].SourceIndex, "Expected the answer to come from the paper")
		assert.Contains(t, excerpts[0].Text, "caused by infection")

		assert.Equal(t, []string{"https://example.com/default"}, pages.fetched)
		assert.Equal(t, []int{3}, retriever.limits)
	})

	t.Run("Url from the request", func(t *testing.T) {
		pages := &fakePages{text: "Fever is caused by infection."}
		s := newTestServer(t, phraseAnswer("caused by infection"), pages, nil)

		rec := post(t, s, "/get_excerpts", ExcerptsRequest{Question: question, URL: "https://example.com/fever"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"https://example.com/fever"}, pages.fetched)
	})

	t.Run("Store errors fall back to the page", func(t *testing.T) {
		pages := &fakePages{text: "Fever is caused by infection. It is common."}
		retriever := &fakeRetriever{err: errors.New("connection refused")}
		s := newTestServer(t, phraseAnswer("caused by infection"), pages, retriever)

		rec := post(t, s, "/get_excerpts", ExcerptsRequest{Question: question})
		require.Equal(t, http.StatusOK, rec.Code)

		var excerpts []model.Excerpt
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&excerpts))
		require.Len(t, excerpts, 1)
		assert.Equal(t, 0, excerpts[0].SourceIndex)
	})

	t.Run("Page errors", func(t *testing.T) {
		s := newTestServer(t, phraseAnswer("caused by infection"), &fakePages{err: errors.New("timeout")}, nil)

		rec := post(t, s, "/get_excerpts", ExcerptsRequest{Question: question})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("Missing question", func(t *testing.T) {
		pages := &fakePages{text: "Some text."}
		s := newTestServer(t, phraseAnswer("caused by infection"), pages, nil)

		rec := post(t, s, "/get_excerpts", ExcerptsRequest{URL: "https://example.com"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No question provided", decodeError(t, rec))
		assert.Empty(t, pages.fetched)
	})
}

func TestAsk(t *testing.T) {
	s := newTestServer(t, phraseAnswer("infection"), &fakePages{}, nil)

	t.Run("Raw candidates in input order", func(t *testing.T) {
		rec := post(t, s, "/ask", DocsRequest{
			Question: question,
			Docs:     []string{"No match here.", "Fever is caused by infection."},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var raw []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
		require.Len(t, raw, 2)
		assert.NotContains(t, raw[0], "source_index")
		assert.Equal(t, 0.1, raw[0]["score"])
		assert.Equal(t, "infection", raw[1]["answer"])
		assert.Equal(t, float64(19), raw[1]["start"])
		assert.Equal(t, float64(28), raw[1]["end"])
	})

	t.Run("Missing docs", func(t *testing.T) {
		rec := post(t, s, "/ask", DocsRequest{Question: question})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, phraseAnswer("infection"), &fakePages{}, nil)

	t.Run("Generated when missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
		assert.NoError(t, err)
	})

	t.Run("Kept when valid", func(t *testing.T) {
		id := uuid.New().String()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, id)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
	})

	t.Run("Available in the context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), requestIDKey, "abc")
		assert.Equal(t, "abc", RequestID(ctx))
		assert.Equal(t, "", RequestID(context.Background()))
	})
}
