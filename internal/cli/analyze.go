package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/genesis/internal/model"
	"github.com/ppiankov/genesis/internal/pipeline"
	"github.com/ppiankov/genesis/internal/structured"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	analyzeMode    string
	analyzeRefresh bool
	outPath        string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <subject>",
	Short: "Run a full analysis for a subject",
	Long: `Analyze resolves the comparison set for a subject, gathers web evidence
for every entity and runs the reasoning stages over it.

The report is printed as JSON. Fully successful reports are cached
per subject and mode; partial reports are recomputed on the next request.
Use --refresh to drop a cached report first.

Example:
  genesis analyze "Figure 02"
  genesis analyze optimus --mode single --out optimus.json
  genesis analyze atlas --refresh`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve <subject>",
	Short: "Show the comparison set for a subject",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) error {
			entities, err := p.Resolve(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return writeOutput(outPath, entities)
		})
	},
}

// entityCmd represents the entity command
var entityCmd = &cobra.Command{
	Use:   "entity <name>",
	Short: "Profile a single entity from search snippets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) error {
			profile, err := p.AnalyzeEntity(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return writeOutput(outPath, profile)
		})
	},
}

// deepCmd represents the deep command
var deepCmd = &cobra.Command{
	Use:   "deep <url>...",
	Short: "Analyze the full text of specific pages",
	Long: `Deep fetches every URL in parallel, joins the extracted text and asks the
reasoning provider for a technical breakdown.

Example:
  genesis deep https://example.com/atlas https://example.com/atlas-specs`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) error {
			analysis, err := p.DeepAnalyze(ctx, args)
			if err != nil {
				return err
			}
			return writeOutput(outPath, analysis)
		})
	},
}

// finalCmd represents the final command
var finalCmd = &cobra.Command{
	Use:   "final <file>",
	Short: "Synthesize a final report from collected JSON data",
	Long: `Final reads a JSON document (use - for stdin) holding previously collected
analysis data and asks the reasoning provider for a consolidated report.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}
		v, err := structured.Parse(data)
		if err != nil {
			return eris.Wrapf(pipeline.ErrInput, "invalid JSON in %s: %v", args[0], err)
		}
		return withPipeline(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) error {
			report, err := p.FinalReport(ctx, v)
			if err != nil {
				return err
			}
			return writeOutput(outPath, report)
		})
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(entityCmd)
	rootCmd.AddCommand(deepCmd)
	rootCmd.AddCommand(finalCmd)

	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", "", "orchestration mode (chain, single); defaults to pipeline.mode")
	analyzeCmd.Flags().BoolVar(&analyzeRefresh, "refresh", false, "ignore any cached report for the subject")
	for _, c := range []*cobra.Command{analyzeCmd, resolveCmd, entityCmd, deepCmd, finalCmd} {
		c.Flags().StringVarP(&outPath, "out", "o", "", "write JSON to file instead of stdout")
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	return withPipeline(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) error {
		start := time.Now()
		fmt.Fprintf(os.Stderr, "Analyzing %q...\n", query)

		if analyzeRefresh {
			if err := p.Forget(ctx, query, analyzeMode); err != nil {
				return err
			}
		}

		report, err := p.AnalyzeWithMode(ctx, query, analyzeMode)
		if err != nil {
			return err
		}

		printSummary(report, time.Since(start))
		return writeOutput(outPath, report)
	})
}

// withPipeline builds a pipeline from the resolved configuration,
// hands it to fn and releases it afterwards.
func withPipeline(ctx context.Context, fn func(context.Context, *pipeline.Pipeline) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := pipeline.New(ctx, appConfig, pipeline.WithLogger(zap.L()))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			zap.L().Warn("close pipeline", zap.Error(cerr))
		}
	}()
	return fn(ctx, p)
}

func printSummary(r *model.Report, elapsed time.Duration) {
	names := make([]string, 0, len(r.Entities))
	for _, e := range r.Entities {
		names = append(names, e.Name)
	}
	fmt.Fprintf(os.Stderr, "  Entities:  %s\n", strings.Join(names, ", "))
	fmt.Fprintf(os.Stderr, "  Mode:      %s\n", r.Mode)
	fmt.Fprintf(os.Stderr, "  Status:    %s\n", r.Status)
	fmt.Fprintf(os.Stderr, "  Cached:    %t\n", r.Cached)
	if failed := r.Stages.Failed(); failed > 0 {
		fmt.Fprintf(os.Stderr, "  Failed:    %d of %d stages\n", failed, len(r.Stages))
	}
	fmt.Fprintf(os.Stderr, "  Duration:  %s\n", elapsed.Round(time.Millisecond))
}

func writeOutput(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode output")
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, eris.Wrap(err, "read stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return data, nil
}
