package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"restaurant-ordering/internal/config"
	"restaurant-ordering/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "restaurant-ordering",
		Short:         "Restaurant order intake and lifecycle engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "config.yaml", "path to the YAML config file")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newNotifyCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

// Execute runs the CLI until it finishes or the process is interrupted
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		logger.NewLogger("restaurant-ordering").Error("command_failed", "Command failed", "", err, nil)
	}
	return err
}

// load reads the config and builds the service logger
func (o *rootOptions) load(service string) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(service, cfg.Logging.Level, os.Stdout), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Printf("restaurant-ordering %s (%s)\n", version, commit)
			return nil
		},
	}
}
