// Command confstore reads and writes versioned configurations
// in a local config store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jrife/confstore/config"
	"github.com/jrife/confstore/configstore"
	"github.com/jrife/confstore/metrics"
	"github.com/jrife/confstore/storage/document/plugins"
	"github.com/jrife/confstore/utils/lockmap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the state shared by every subcommand
type app struct {
	configPath  string
	debug       bool
	metricsFile string
	logger      *zap.Logger
	registry    *prometheus.Registry
	store       *configstore.Store
}

func (app *app) open(ctx context.Context) error {
	conf := config.Default()

	if app.configPath != "" {
		var err error

		if conf, err = config.Load(app.configPath); err != nil {
			return err
		}
	}

	logger, err := newLogger(app.debug)

	if err != nil {
		return fmt.Errorf("could not create logger: %s", err)
	}

	app.logger = logger

	options, err := conf.DataStoreOptions()

	if err != nil {
		return err
	}

	options["logger"] = logger
	plugin := plugins.Plugin(conf.Document.Store.DataStoreType)
	datastore, err := plugin.NewDatastore(options)

	if err != nil {
		return fmt.Errorf("could not open %s datastore: %s", plugin.Name(), err)
	}

	app.registry = prometheus.NewRegistry()
	store, err := configstore.New(ctx, configstore.StoreConfig{
		Datastore:  datastore,
		Logger:     logger,
		Locks:      lockmap.New(lockmap.WithIdleTimeout(conf.Locks.IdleTimeout)),
		Metrics:    metrics.New(app.registry),
		Collection: conf.Document.Store.Collection,
	})

	if err != nil {
		datastore.Close()

		return err
	}

	app.store = store

	return nil
}

// run opens the store, runs fn and closes the store
func (app *app) run(ctx context.Context, fn func(store *configstore.Store) error) error {
	if err := app.open(ctx); err != nil {
		return err
	}

	err := fn(app.store)

	if closeErr := app.close(); err == nil {
		return closeErr
	}

	return err
}

// close closes the store and writes the metrics it
// recorded to the metrics file, if one was given
func (app *app) close() error {
	if app.logger != nil {
		app.logger.Sync()
	}

	if app.store == nil {
		return nil
	}

	store := app.store
	app.store = nil

	if err := store.Close(); err != nil {
		return fmt.Errorf("could not close store: %s", err)
	}

	if app.metricsFile == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(app.metricsFile, app.registry); err != nil {
		return fmt.Errorf("could not write metrics to %s: %s", app.metricsFile, err)
	}

	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.OutputPaths = []string{"stderr"}

	return loggerConfig.Build()
}

func newRootCmd() *cobra.Command {
	app := &app{}

	cmd := &cobra.Command{
		Use:           "confstore",
		Short:         "Read and write versioned configurations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&app.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().BoolVar(&app.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&app.metricsFile, "metrics-file", "", "Write store metrics to this file in the prometheus text format on exit")

	cmd.AddCommand(newWriteCmd(app))
	cmd.AddCommand(newGetCmd(app))
	cmd.AddCommand(newHistoryCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newContextsCmd(app))

	return cmd
}

func main() {
	cmd := newRootCmd()

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
