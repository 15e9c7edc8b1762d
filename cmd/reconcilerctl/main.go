package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmehra2102/storefront-reconciler/internal/app"
	"github.com/dmehra2102/storefront-reconciler/internal/config"
	orderdomain "github.com/dmehra2102/storefront-reconciler/internal/order/domain"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/application"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
	"github.com/dmehra2102/storefront-reconciler/pkg/logging"
)

var Version = "dev"

const (
	exitFailure       = 1
	exitValidation    = 2
	exitOrderNotFound = 3
	exitNotFound      = 4
)

// errMemoryStore is returned for commands that read or write reconciler
// state when no database is configured.
var errMemoryStore = errors.New("the memory store starts empty on every run; set PG_URL or STORE_BACKEND=postgres")

func main() {
	var configPath string
	root := newRootCmd(configBuilder(&configPath))
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "YAML config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// builder assembles the app for one command. persistent commands refuse a
// store that does not outlive the process.
type builder func(ctx context.Context, persistent bool) (*app.App, error)

func configBuilder(path *string) builder {
	return func(ctx context.Context, persistent bool) (*app.App, error) {
		cfg, err := config.Load(*path)
		if err != nil {
			return nil, err
		}
		if persistent && cfg.StoreBackend == config.StoreMemory {
			return nil, errMemoryStore
		}
		// stdout is reserved for command output
		return app.Build(ctx, cfg, logging.NewWithWriter(os.Stderr, cfg.LogLevel, false))
	}
}

func newRootCmd(build builder) *cobra.Command {
	root := &cobra.Command{
		Use:           "reconcilerctl",
		Short:         "Operate the storefront payment reconciler",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(build))
	root.AddCommand(applyCmd(build))
	root.AddCommand(orderCmd(build))
	root.AddCommand(paymentCmd(build))
	return root
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, application.ErrValidation):
		return exitValidation
	case errors.Is(err, application.ErrStoreUnavailable):
		return exitFailure
	case errors.Is(err, application.ErrOrderNotFound):
		return exitOrderNotFound
	case errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, application.ErrGatewayPaymentMissing):
		return exitNotFound
	}
	return exitFailure
}
