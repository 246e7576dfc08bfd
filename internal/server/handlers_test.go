package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/coursechat/internal/rag"
	"github.com/mohammad-safakhou/coursechat/models"
	"github.com/mohammad-safakhou/coursechat/provider"
	"github.com/mohammad-safakhou/coursechat/session"
	"github.com/mohammad-safakhou/coursechat/session/inmemory"
	"github.com/mohammad-safakhou/coursechat/tools"
)

type fixedModel struct {
	content string
	err     error
}

func (m *fixedModel) ChatWithTools(context.Context, provider.ChatRequest) (*provider.ChatResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &provider.ChatResponse{Content: m.content}, nil
}

type titlesStore struct {
	titles []string
}

func (s *titlesStore) AddCourse(context.Context, models.Course) error        { return nil }
func (s *titlesStore) AddChunks(context.Context, []models.CourseChunk) error { return nil }
func (s *titlesStore) CourseExists(context.Context, string) (bool, error)    { return false, nil }

func (s *titlesStore) ListCourseTitles(context.Context) ([]string, error) {
	return s.titles, nil
}

func (s *titlesStore) GetCourse(context.Context, string) (models.Course, bool, error) {
	return models.Course{}, false, nil
}

func (s *titlesStore) ResolveCourseName(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (s *titlesStore) Search(context.Context, string, models.SearchFilter, int) ([]models.SearchResult, error) {
	return nil, nil
}

func testServer(t *testing.T, model rag.ChatModel, sessions session.Store, titles []string) *httptest.Server {
	t.Helper()
	registry, err := tools.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	logger := log.New(io.Discard, "", 0)
	orch := rag.NewOrchestrator(model, sessions, registry, logger)

	e := newEcho(logger)
	registerRoutes(e, orch, sessions, &titlesStore{titles: titles})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp, decoded
}

func TestQueryEndpoint(t *testing.T) {
	t.Parallel()

	srv := testServer(t, &fixedModel{content: "an answer"}, inmemory.NewStore(2), nil)
	resp, body := postJSON(t, srv.URL+"/api/query", `{"query": "what is RAG?"}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["answer"] != "an answer" {
		t.Fatalf("unexpected answer %v", body["answer"])
	}
	if body["session_id"] == "" || body["session_id"] == nil {
		t.Fatal("response must carry a session id")
	}
	if _, ok := body["sources"].([]any); !ok {
		t.Fatalf("sources must be a JSON array even when empty, got %v", body["sources"])
	}
}

func TestQueryEndpointRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	srv := testServer(t, &fixedModel{content: "x"}, inmemory.NewStore(2), nil)
	resp, body := postJSON(t, srv.URL+"/api/query", `{"query": ""}`)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["error"] == nil {
		t.Fatal("error body must carry an error message")
	}
}

func TestQueryEndpointModelDown(t *testing.T) {
	t.Parallel()

	srv := testServer(t, &fixedModel{err: errors.New("boom")}, inmemory.NewStore(2), nil)
	resp, _ := postJSON(t, srv.URL+"/api/query", `{"query": "q"}`)

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 for model failure, got %d", resp.StatusCode)
	}
}

func TestCoursesEndpoint(t *testing.T) {
	t.Parallel()

	srv := testServer(t, &fixedModel{content: "x"}, inmemory.NewStore(2),
		[]string{"Course A", "Course B"})

	resp, err := http.Get(srv.URL + "/api/courses")
	if err != nil {
		t.Fatalf("GET /api/courses: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body courseStatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body.TotalCourses != 2 || len(body.CourseTitles) != 2 {
		t.Fatalf("unexpected analytics %+v", body)
	}
}

func TestNewChatAndReset(t *testing.T) {
	t.Parallel()

	sessions := inmemory.NewStore(2)
	srv := testServer(t, &fixedModel{content: "x"}, sessions, nil)

	resp, body := postJSON(t, srv.URL+"/api/new-chat", `{}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatal("new-chat must return a session id")
	}

	sessions.AddExchange(id, "q", "a")
	resp, body = postJSON(t, srv.URL+"/api/reset", `{"session_id": "`+id+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	newID, _ := body["session_id"].(string)
	if newID == "" || newID == id {
		t.Fatalf("reset must mint a fresh id, got %q", newID)
	}
	if h := sessions.History(id); len(h) != 0 {
		t.Fatalf("old session must be gone, got %+v", h)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := testServer(t, &fixedModel{content: "x"}, inmemory.NewStore(2), nil)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
