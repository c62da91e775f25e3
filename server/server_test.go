package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/Lava-10/queryCraft/db"
	"github.com/Lava-10/queryCraft/history"
)

type testServer struct {
	*httptest.Server
	history *history.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	d := db.New()
	for _, sql := range []string{
		"CREATE TABLE dummy_table (id INTEGER, name TEXT)",
		"INSERT INTO dummy_table (id, name) VALUES (1, 'a'), (2, 'b')",
	} {
		if _, err := d.Run(sql); err != nil {
			t.Fatal(err)
		}
	}
	h, err := history.New(history.DefaultSize)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := httptest.NewServer(New(d, h, logger))
	t.Cleanup(s.Close)
	return &testServer{Server: s, history: h}
}

// do sends a request with a JSON body and decodes the JSON response into out.
func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s decoding response of %s %s", err, method, path)
		}
	}
	return resp.StatusCode
}

func TestQuery(t *testing.T) {
	s := newTestServer(t)
	var got map[string]any
	status := s.do(t, http.MethodPost, "/api/query", map[string]any{"query": "SELECT * FROM dummy_table"}, &got)
	if status != http.StatusOK {
		t.Fatalf("got status %d body %v", status, got)
	}
	if !reflect.DeepEqual(got["columns"], []any{"id", "name"}) {
		t.Errorf("got columns %v", got["columns"])
	}
	expectRows := []any{[]any{float64(1), "a"}, []any{float64(2), "b"}}
	if !reflect.DeepEqual(got["rows"], expectRows) {
		t.Errorf("got rows %v", got["rows"])
	}
	if _, ok := got["executionTime"].(float64); !ok {
		t.Errorf("want executionTime got %v", got["executionTime"])
	}
	entries := s.history.List()
	if len(entries) != 1 || entries[0].Query != "SELECT * FROM dummy_table" || entries[0].Error != "" {
		t.Fatalf("want query recorded got %#v", entries)
	}
}

func TestQueryArgs(t *testing.T) {
	s := newTestServer(t)
	var got queryResponse
	body := map[string]any{"query": "SELECT name FROM dummy_table WHERE id = ?", "args": []any{2}}
	if status := s.do(t, http.MethodPost, "/api/query", body, &got); status != http.StatusOK {
		t.Fatalf("got status %d", status)
	}
	if !reflect.DeepEqual(got.Rows, [][]any{{"b"}}) {
		t.Fatalf("got rows %v", got.Rows)
	}
}

func TestQueryErrors(t *testing.T) {
	cases := []struct {
		name  string
		body  any
		stage string
	}{
		{name: "missing query", body: map[string]any{}},
		{name: "parse", body: map[string]any{"query": "SELECT FROM"}, stage: "parse"},
		{name: "analyze", body: map[string]any{"query": "SELECT * FROM missing_table"}, stage: "analyze"},
		{
			name:  "execute",
			body:  map[string]any{"query": "SELECT * FROM dummy_table WHERE id = ?", "args": []any{"one"}},
			stage: "execute",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := newTestServer(t)
			var got errorResponse
			if status := s.do(t, http.MethodPost, "/api/query", c.body, &got); status != http.StatusBadRequest {
				t.Fatalf("got status %d", status)
			}
			if got.Error == "" || got.Stage != c.stage {
				t.Fatalf("got %#v want stage %q", got, c.stage)
			}
		})
	}
}

func TestQueryFailureRecordedInHistory(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/query", map[string]any{"query": "SELECT * FROM missing_table"}, nil)
	entries := s.history.List()
	if len(entries) != 1 || entries[0].Error == "" {
		t.Fatalf("want failed query recorded got %#v", entries)
	}
}

func TestPipeline(t *testing.T) {
	s := newTestServer(t)
	var got map[string]any
	body := map[string]any{"query": "SELECT * FROM dummy_table WHERE id = 1"}
	if status := s.do(t, http.MethodPost, "/api/query/pipeline", body, &got); status != http.StatusOK {
		t.Fatalf("got status %d", status)
	}
	for _, k := range []string{"tokens", "ast", "analyzed", "optimized", "prepared", "result"} {
		if _, ok := got[k]; !ok {
			t.Errorf("want %s in pipeline response", k)
		}
	}

	got = nil
	body = map[string]any{"query": "SELECT * FROM missing_table"}
	s.do(t, http.MethodPost, "/api/query/pipeline", body, &got)
	if got["stage"] != "analyze" {
		t.Fatalf("got stage %v", got["stage"])
	}
}

func TestHistoryEndpoints(t *testing.T) {
	s := newTestServer(t)
	var added map[string]string
	body := map[string]any{"query": "SELECT 1", "executionTime": 12.5}
	if status := s.do(t, http.MethodPost, "/api/history", body, &added); status != http.StatusCreated {
		t.Fatalf("got status %d", status)
	}
	id := added["id"]

	var list []entryResponse
	s.do(t, http.MethodGet, "/api/history", nil, &list)
	if len(list) != 1 || list[0].ID != id || list[0].ExecutionTime != 12.5 || list[0].Kind != "SELECT" {
		t.Fatalf("got %#v", list)
	}

	var fav map[string]bool
	if status := s.do(t, http.MethodPatch, "/api/history/"+id+"/favorite", nil, &fav); status != http.StatusOK {
		t.Fatalf("got status %d", status)
	}
	if !fav["isFavorite"] {
		t.Fatal("want favorite")
	}
	s.do(t, http.MethodGet, "/api/history", nil, &list)
	if !list[0].IsFavorite {
		t.Fatal("want favorite listed")
	}

	if status := s.do(t, http.MethodDelete, "/api/history/"+id, nil, nil); status != http.StatusOK {
		t.Fatalf("got status %d", status)
	}
	list = nil
	s.do(t, http.MethodGet, "/api/history", nil, &list)
	if len(list) != 0 {
		t.Fatalf("want empty history got %#v", list)
	}

	if status := s.do(t, http.MethodDelete, "/api/history/"+id, nil, nil); status != http.StatusNotFound {
		t.Fatalf("got status %d want 404", status)
	}
	if status := s.do(t, http.MethodPatch, "/api/history/not-a-uuid/favorite", nil, nil); status != http.StatusBadRequest {
		t.Fatalf("got status %d want 400", status)
	}
}

func TestAnalytics(t *testing.T) {
	s := newTestServer(t)
	for _, q := range []string{"SELECT * FROM dummy_table", "INSERT INTO dummy_table VALUES (3, 'c')", "SELECT id FROM dummy_table"} {
		s.do(t, http.MethodPost, "/api/query", map[string]any{"query": q}, nil)
	}
	var got analyticsResponse
	if status := s.do(t, http.MethodGet, "/api/analytics", nil, &got); status != http.StatusOK {
		t.Fatalf("got status %d", status)
	}
	if got.TotalQueries != 3 {
		t.Errorf("got total %d want 3", got.TotalQueries)
	}
	expectTypes := []queryType{{Type: "SELECT", Count: 2}, {Type: "INSERT", Count: 1}}
	if !reflect.DeepEqual(got.QueryTypes, expectTypes) {
		t.Errorf("got types %v want %v", got.QueryTypes, expectTypes)
	}
	if len(got.SlowestQueries) != 3 {
		t.Errorf("got %d slowest queries want 3", len(got.SlowestQueries))
	}
	if len(got.PerformanceTrends) != 1 || got.PerformanceTrends[0].QueryCount != 3 {
		t.Errorf("got trends %v", got.PerformanceTrends)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	if status := s.do(t, http.MethodGet, "/api/query", nil, nil); status != http.StatusMethodNotAllowed {
		t.Fatalf("got status %d want 405", status)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, s.URL+"/api/query", nil)
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("got status %d headers %v", resp.StatusCode, resp.Header)
	}
}
