package cli

import (
	"github.com/danmuck/plenty/internal/logging"
	"github.com/danmuck/plenty/internal/observability"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// CommonOptions holds flags shared by both commands.
type CommonOptions struct {
	ConfigPath string
	Verbose    bool
}

func (o *CommonOptions) bind(cmd *cobra.Command, defaultConfig string) {
	cmd.Flags().StringVar(&o.ConfigPath, "config", defaultConfig, "path to the TOML config file")
	cmd.Flags().BoolVarP(&o.Verbose, "verbose", "v", false, "debug logging")
}

// setup configures process logging and metrics before a command runs.
func (o *CommonOptions) setup() {
	logging.ConfigureRuntime()
	if o.Verbose {
		logging.SetLevel(zerolog.DebugLevel)
	}
	observability.RegisterMetrics()
}

// exportMetrics writes the textfile when configured. Failures are logged;
// the sync result stands.
func exportMetrics(path string) {
	if path == "" {
		return
	}
	if err := observability.WriteTextfile(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("write metrics textfile")
	}
}
