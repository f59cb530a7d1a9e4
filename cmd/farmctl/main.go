// farmctl runs FarmLens recognition and analytics from the command line and
// moves Creao exports into a running server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/farmlens/backend/config"
	"github.com/farmlens/backend/internal/app"
	"github.com/farmlens/backend/internal/logging"
)

// options are the persistent flags shared by every command
type options struct {
	verbose bool
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "farmctl",
		Short: "FarmLens command line tools",
		Long: `farmctl reads scale photos, classifies produce and generates sales
analytics with the same backends as the FarmLens server.

Configuration is read from config.yaml, .env and FARMLENS_* variables.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Operation timeout")

	root.AddCommand(
		newAnalyzeCSVCmd(opts),
		newAnalyzeImageCmd(opts),
		newReadWeightCmd(opts),
		newClassifyCmd(opts),
		newImportCreaoCmd(),
		newUploadCmd(opts),
		newTokenCmd(),
	)
	return root
}

// buildApp loads configuration and wires the backends
func buildApp(ctx context.Context, opts *options) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if opts.verbose {
		if logger, err = logging.New("development"); err != nil {
			return nil, err
		}
	}

	return app.Build(ctx, cfg, logger)
}

func (o *options) withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
