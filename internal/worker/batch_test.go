package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/genesis/internal/model"
)

type mockAnalyzer struct {
	fail map[string]bool
}

func (m *mockAnalyzer) Analyze(ctx context.Context, query string) (*model.Report, error) {
	if m.fail[query] {
		return nil, errors.New("analysis failed")
	}
	return &model.Report{Subject: query, Status: model.StatusSuccess}, nil
}

func TestBatchProcessor_ProcessQueries(t *testing.T) {
	processor := NewBatchProcessor(&mockAnalyzer{fail: map[string]bool{"Broken": true}}, 2)

	queries := []string{"Atlas", "Broken", "Optimus"}
	results := processor.ProcessQueries(context.Background(), queries)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Query != queries[i] {
			t.Errorf("result %d: expected query %s, got %s", i, queries[i], res.Query)
		}
	}
	if results[0].Error != nil || results[0].Report == nil || results[0].Report.Subject != "Atlas" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].Error == nil || results[1].Report != nil {
		t.Errorf("expected failure for Broken, got %+v", results[1])
	}
}

func TestBatchProcessor_ProcessQueries_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockAnalyzer{}, 2)
	if results := processor.ProcessQueries(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestReadQueriesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robots.txt")
	content := "# humanoids\nAtlas\n\n  Optimus  \natlas\nFigure  02\nfigure 02\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	queries, err := ReadQueriesFromFile(path)
	if err != nil {
		t.Fatalf("ReadQueriesFromFile failed: %v", err)
	}

	want := []string{"Atlas", "Optimus", "Figure  02"}
	if len(queries) != len(want) {
		t.Fatalf("expected %v, got %v", want, queries)
	}
	for i := range want {
		if queries[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], queries[i])
		}
	}
}

func TestBatchProcessor_ProcessFile_Missing(t *testing.T) {
	processor := NewBatchProcessor(&mockAnalyzer{}, 1)
	if _, err := processor.ProcessFile(context.Background(), "/nonexistent/queries.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}
