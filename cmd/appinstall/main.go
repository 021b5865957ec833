package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/petrijr/appinstall/internal/logging"
	"github.com/petrijr/appinstall/internal/persistence"
)

// errInstallationFailed makes the process exit non-zero after the failure has
// already been printed.
var errInstallationFailed = errors.New("installation failed")

// globals holds the persistent flag values shared by every command.
type globals struct {
	debug  bool
	json   bool
	store  storeFlags
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errInstallationFailed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "appinstall",
		Short:         "Plan, run and inspect application installations",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if g.debug {
				level = logging.LevelDebug
			}
			logger, err := logging.Configure(cmd.ErrOrStderr(), level)
			if err != nil {
				return err
			}
			g.logger = logger
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&g.debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&g.json, "json", false, "Print JSON instead of styled output")
	flags.StringVar(&g.store.kind, "store", storeMemory, "State store: memory, sqlite, postgres, redis or mongo")
	flags.StringVar(&g.store.dsn, "dsn", "", "Connection string for the state store")
	flags.DurationVar(&g.store.ttl, "ttl", persistence.DefaultTTL, "How long installation states are kept")
	flags.StringVar(&g.store.mongoDB, "mongo-db", defaultMongoDB, "MongoDB database name")

	root.AddCommand(newPlanCmd(g))
	root.AddCommand(newRunCmd(g))
	root.AddCommand(newStatusCmd(g))
	return root
}
