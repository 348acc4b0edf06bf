package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

func TestIndexPassagesEnsuresCollectionOncePerNamespace(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/bb_legislation":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/bb_legislation/points":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "bb_")
	doc := &domain.SourceDocument{ID: "src-1", Title: "Ordinance 2024-17"}
	chunks := []string{"a", "b"}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.IndexPassages(context.Background(), "legislation", doc, chunks, vectors); err != nil {
		t.Fatalf("first IndexPassages() error = %v", err)
	}
	if err := client.IndexPassages(context.Background(), "legislation", doc, chunks, vectors); err != nil {
		t.Fatalf("second IndexPassages() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestIndexPassagesRoutesByNamespace(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL, "bb_")
	doc := &domain.SourceDocument{ID: "src-1", Title: "Charter"}
	vectors := [][]float32{{0.1}}

	if err := client.IndexPassages(context.Background(), "legal_code", doc, []string{"a"}, vectors); err != nil {
		t.Fatalf("IndexPassages() error = %v", err)
	}
	found := false
	for _, p := range paths {
		if strings.HasPrefix(p, "/collections/bb_legal_code/points") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected upsert against bb_legal_code collection, got paths %v", paths)
	}
}

func TestSearchMapsPayloadAndTypeFilter(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/bb_news/points/search" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"result": [
				{
					"id": "11111111-1111-4111-8111-111111111111",
					"score": 0.92,
					"payload": {
						"text": "The water fund runs a deficit.",
						"title": "City budget memo",
						"url": "https://example.org/memo",
						"type": "report",
						"source_id": "src-7"
					}
				}
			]
		}`))
	}))
	defer server.Close()

	client := New(server.URL, "bb_")
	got, err := client.Search(context.Background(), "news", []float32{0.1, 0.2}, 5, domain.PassageFilter{Type: "report"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 passage, got %d", len(got))
	}
	p := got[0]
	if p.VectorID != "11111111-1111-4111-8111-111111111111" {
		t.Fatalf("unexpected vector id %q", p.VectorID)
	}
	if p.Title != "City budget memo" || p.URL != "https://example.org/memo" || p.Score != 0.92 {
		t.Fatalf("unexpected passage %+v", p)
	}
	if gotBody["filter"] == nil {
		t.Fatalf("expected type filter in request body")
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/bb_legislation" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "bb_")
	doc := &domain.SourceDocument{ID: "src-1", Title: "Ordinance"}
	err := client.IndexPassages(context.Background(), "legislation", doc, []string{"a"}, [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}
