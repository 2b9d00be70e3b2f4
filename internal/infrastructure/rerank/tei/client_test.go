package tei

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestScoreMapsResultsToInputOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[{"index":1,"score":0.93},{"index":0,"score":0.11}]`))
	}))
	defer server.Close()

	scores, err := New(server.URL).Score(context.Background(), "revenue", []string{"litigation", "revenue table"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 2 || scores[0] != 0.11 || scores[1] != 0.93 {
		t.Fatalf("scores not mapped to input order: %v", scores)
	}
}

func TestScoreEmptyInput(t *testing.T) {
	scores, err := New("http://unused").Score(context.Background(), "q", nil)
	if err != nil || scores != nil {
		t.Fatalf("expected nil result for empty input, got (%v, %v)", scores, err)
	}
}

func TestScoreRejectsOutOfRangeIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"index":5,"score":1.0}]`))
	}))
	defer server.Close()

	if _, err := New(server.URL).Score(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatalf("expected error for out-of-range index")
	}
}

func TestScoreIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL).Score(context.Background(), "q", []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Fatalf("expected error with body, got %v", err)
	}
}
