package cli

import (
	"github.com/danmuck/plenty/internal/config"
	"github.com/danmuck/plenty/internal/server"
	"github.com/spf13/cobra"
)

// ServerOptions holds flags for plentys.
type ServerOptions struct {
	CommonOptions
	DBPath          string
	BatchSize       int
	MaxPayloadBytes uint32
	MetricsTextfile string
}

// NewServerCommand creates the plentys command. It speaks the sync protocol
// on stdin and stdout; logs go to stderr.
func NewServerCommand() *cobra.Command {
	opts := &ServerOptions{}
	defaultConfig, _ := config.DefaultServerConfigPath()

	cmd := &cobra.Command{
		Use:   "plentys",
		Short: "Serve one plenty sync over stdin and stdout",
		Long: "plentys is started by plenty on the remote host, usually through ssh. " +
			"It stores received history in SQLite and answers history requests.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.setup()
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			err = server.New(cfg).Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			exportMetrics(cfg.MetricsTextfile)
			return err
		},
	}

	opts.bind(cmd, defaultConfig)
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database (default $XDG_DATA_HOME/plenty/history.db)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 100, "records per commit")
	cmd.Flags().Uint32Var(&opts.MaxPayloadBytes, "max-payload-bytes", 8<<20, "largest accepted message payload")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write prometheus metrics to this file after the session")

	return cmd
}

func (o *ServerOptions) resolve(cmd *cobra.Command) (config.Server, error) {
	cfg, err := config.LoadServer(o.ConfigPath)
	if err != nil {
		return config.Server{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = o.DBPath
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = o.BatchSize
	}
	if flags.Changed("max-payload-bytes") {
		cfg.MaxPayloadBytes = o.MaxPayloadBytes
	}
	if flags.Changed("metrics-textfile") {
		cfg.MetricsTextfile = o.MetricsTextfile
	}
	if err := cfg.Validate(); err != nil {
		return config.Server{}, err
	}
	return cfg, nil
}
