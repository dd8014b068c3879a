package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newServeCmd creates the 'serve' subcommand, which exposes run progress,
// gap listings, and Prometheus metrics over HTTP. With --analyze the
// pipeline runs in the background while the server is up.
func newServeCmd() *cobra.Command {
	var runAnalysis bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analysis results and progress over HTTP",
		Long: `Starts the HTTP server on the configured port. Endpoints include
/healthz, /readyz, /metrics, /v1/progress, /v1/gaps, and /v1/summary.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.Logger
			addr := fmt.Sprintf(":%d", appInstance.Config.Server.Port)

			if runAnalysis {
				go func() {
					if _, err := appInstance.Pipeline().Run(cmd.Context()); err != nil {
						logger.Error("background analysis failed", zap.Error(err))
					}
				}()
			}

			logger.Info("http server starting", zap.String("addr", addr))
			return appInstance.Server.Serve(cmd.Context(), addr)
		},
	}

	cmd.Flags().BoolVar(&runAnalysis, "analyze", false, "run an analysis in the background while serving")
	return cmd
}
