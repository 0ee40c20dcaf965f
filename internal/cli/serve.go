package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ppiankov/genesis/internal/pipeline"
	"github.com/ppiankov/genesis/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	Long: `Serve exposes the pipeline over HTTP:

  GET  /api/start_analysis?robot=<name>
  GET  /api/report?robot=<name>[&mode=chain|single]
  GET  /api/analyze_entity?name=<name>
  POST /api/deep_analyze           {"urls": [...]}
  POST /api/generate_final_report  {...collected data...}
  GET  /health
  GET  /metrics

The server shuts down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPipeline(cmd.Context(), func(ctx context.Context, p *pipeline.Pipeline) error {
			fmt.Fprintf(os.Stderr, "Listening on %s\n", appConfig.Server.Addr)
			return server.New(p, appConfig.Server, zap.L()).Run(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
