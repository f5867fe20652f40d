package cli

import (
	"fmt"

	"github.com/danmuck/plenty/internal/client"
	"github.com/danmuck/plenty/internal/config"
	"github.com/spf13/cobra"
)

// ClientOptions holds flags for plenty.
type ClientOptions struct {
	CommonOptions
	HistoryPath     string
	Transport       string
	SSHBinary       string
	RemoteCommand   string
	LocalDBPath     string
	MetricsTextfile string
}

// NewClientCommand creates the plenty command.
func NewClientCommand() *cobra.Command {
	opts := &ClientOptions{}
	defaultConfig, _ := config.DefaultClientConfigPath()

	cmd := &cobra.Command{
		Use:   "plenty [host]",
		Short: "Synchronize fish shell history with a remote plentys store",
		Long: "plenty pushes the local fish history to plentys on the remote host, " +
			"receives the full remote history and rewrites the local history file " +
			"with the union of both.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.setup()
			cfg, err := opts.resolve(cmd, args)
			if err != nil {
				return err
			}
			return runClient(cmd, cfg)
		},
	}

	opts.bind(cmd, defaultConfig)
	cmd.Flags().StringVar(&opts.HistoryPath, "history", "", "fish history file (default $XDG_DATA_HOME/fish/fish_history)")
	cmd.Flags().StringVar(&opts.Transport, "transport", string(config.TransportExec), "transport: exec, ssh or local")
	cmd.Flags().StringVar(&opts.SSHBinary, "ssh", "ssh", "ssh client binary for the exec transport")
	cmd.Flags().StringVar(&opts.RemoteCommand, "remote-command", "plentys", "command started on the remote host")
	cmd.Flags().StringVar(&opts.LocalDBPath, "local-db", "", "database for the local transport (default $XDG_DATA_HOME/plenty/history.db)")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write prometheus metrics to this file after the run")

	return cmd
}

// resolve loads the config file and applies flags the user set explicitly.
func (o *ClientOptions) resolve(cmd *cobra.Command, args []string) (config.Client, error) {
	cfg, err := config.LoadClient(o.ConfigPath)
	if err != nil {
		return config.Client{}, err
	}
	if len(args) == 1 {
		cfg.Host = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("history") {
		cfg.HistoryPath = o.HistoryPath
	}
	if flags.Changed("transport") {
		cfg.Transport = config.TransportKind(o.Transport)
	}
	if flags.Changed("ssh") {
		cfg.SSHBinary = o.SSHBinary
	}
	if flags.Changed("remote-command") {
		cfg.RemoteCommand = o.RemoteCommand
	}
	if flags.Changed("local-db") {
		cfg.LocalDBPath = o.LocalDBPath
	}
	if flags.Changed("metrics-textfile") {
		cfg.MetricsTextfile = o.MetricsTextfile
	}
	if err := cfg.Validate(); err != nil {
		return config.Client{}, err
	}
	if cfg.Host == "" && cfg.Transport != config.TransportLocal {
		return config.Client{}, fmt.Errorf("host is required: pass it as an argument or set host in %s", o.ConfigPath)
	}
	return cfg, nil
}

func runClient(cmd *cobra.Command, cfg config.Client) error {
	tr, err := client.NewTransport(cfg)
	if err != nil {
		return err
	}
	res, err := client.New(cfg, tr).Run(cmd.Context())
	exportMetrics(cfg.MetricsTextfile)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "synced %d local, %d remote, %d written\n", res.Local, res.Received, res.Written)
	return nil
}
