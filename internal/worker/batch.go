package worker

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/ppiankov/genesis/internal/model"
	"github.com/rotisserie/eris"
)

// Analyzer produces a report for one subject query
type Analyzer interface {
	Analyze(ctx context.Context, query string) (*model.Report, error)
}

// BatchResult is the outcome of analyzing one query
type BatchResult struct {
	Query  string
	Report *model.Report
	Error  error
}

// BatchProcessor analyzes several subjects concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessQueries analyzes every query and returns results in input order
func (b *BatchProcessor) ProcessQueries(ctx context.Context, queries []string) []*BatchResult {
	return Map(ctx, b.concurrency, queries, func(ctx context.Context, query string) *BatchResult {
		report, err := b.analyzer.Analyze(ctx, query)
		return &BatchResult{Query: query, Report: report, Error: err}
	})
}

// ProcessFile reads queries from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*BatchResult, error) {
	queries, err := ReadQueriesFromFile(filePath)
	if err != nil {
		return nil, eris.Wrap(err, "read queries")
	}

	return b.ProcessQueries(ctx, queries), nil
}

// ReadQueriesFromFile reads subject names from a file, one per line.
// Blank lines and # comments are skipped; duplicates are dropped by
// normalized name.
func ReadQueriesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, eris.Wrap(err, "open file")
	}
	defer func() { _ = file.Close() }()

	var queries []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key := model.NormalizeName(line)
		if !seen[key] {
			seen[key] = true
			queries = append(queries, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "scan file")
	}

	return queries, nil
}
