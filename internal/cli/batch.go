package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ppiankov/genesis/internal/model"
	"github.com/ppiankov/genesis/internal/pipeline"
	"github.com/ppiankov/genesis/internal/worker"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze multiple subjects from a file in parallel",
	Long: `Batch processes multiple subjects concurrently:
- Read subjects from input file (one per line, # comments allowed)
- Analyze subjects in parallel with configurable worker count
- Each analysis collects evidence for its entities concurrently
- Write one JSON report per subject

Example:
  genesis batch robots.txt
  genesis batch robots.txt --concurrency 2 --output-dir ./reports
  genesis batch robots.txt --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", min(runtime.NumCPU(), 4), "number of concurrent analyses")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./genesis-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Genesis Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "  Reasoning:    %s\n", appConfig.LLM.Provider)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return eris.Wrap(err, "create output directory")
	}

	return withPipeline(ctx, func(ctx context.Context, p *pipeline.Pipeline) error {
		processor := worker.NewBatchProcessor(p, concurrency)

		results, err := processor.ProcessFile(ctx, file)
		if err != nil {
			return eris.Wrap(err, "process file")
		}

		successCount, partialCount, failureCount := 0, 0, 0
		for _, result := range results {
			if result.Error != nil {
				failureCount++
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Query, result.Error)
				continue
			}

			path := filepath.Join(outputDir, sanitizeFilename(result.Report.Subject)+".json")
			if err := writeOutput(path, result.Report); err != nil {
				failureCount++
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Query, err)
				continue
			}

			if result.Report.Status == model.StatusPartial {
				partialCount++
				fmt.Fprintf(os.Stderr, "~ %s (%d stages failed)\n", result.Report.Subject, result.Report.Stages.Failed())
				continue
			}
			successCount++
			fmt.Fprintf(os.Stderr, "✓ %s\n", result.Report.Subject)
		}

		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
		fmt.Fprintf(os.Stderr, "  Batch Complete\n")
		fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "  Total:     %d subjects\n", len(results))
		fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
		fmt.Fprintf(os.Stderr, "  Partial:   %d\n", partialCount)
		fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
		fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
		fmt.Fprintf(os.Stderr, "\n")
		return nil
	})
}

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	".", "_",
)

// sanitizeFilename turns a subject into a safe file stem
func sanitizeFilename(s string) string {
	s = filenameReplacer.Replace(model.NormalizeName(s))
	if s == "" {
		s = "report"
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
