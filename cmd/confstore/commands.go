package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"text/tabwriter"
	"time"

	"github.com/jrife/confstore/configstore"
	"github.com/spf13/cobra"
)

type resourceFlags struct {
	configstore.Resource
}

func (flags *resourceFlags) register(cmd *cobra.Command) {
	flags.registerContextless(cmd)
	cmd.Flags().StringVar(&flags.Context, "context", "", "Resource context")
}

func (flags *resourceFlags) registerContextless(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flags.ResourceName, "resource", "", "Resource name (required)")
	cmd.Flags().StringVar(&flags.ResourceNamespace, "namespace", "", "Resource namespace (required)")
	cmd.Flags().StringVar(&flags.TenantID, "tenant", "", "Tenant id (required)")
	cmd.MarkFlagRequired("resource")
	cmd.MarkFlagRequired("namespace")
	cmd.MarkFlagRequired("tenant")
}

func formatTimestamp(timestamp int64) string {
	return time.UnixMilli(timestamp).UTC().Format(time.RFC3339)
}

func newWriteCmd(app *app) *cobra.Command {
	var (
		resource resourceFlags
		userID   string
		file     string
	)

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write a new version of a configuration",
		Long: `Write a new version of a configuration. The payload is read from --file
or from stdin when --file is not given and is stored as-is. The new version
number is printed on success.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), file)

			if err != nil {
				return err
			}

			return app.run(cmd.Context(), func(store *configstore.Store) error {
				result, err := store.WriteConfig(cmd.Context(), resource.Resource, userID, payload)

				if err != nil {
					return err
				}

				if !result.Success {
					return fmt.Errorf("version %d was not written", result.Version)
				}

				fmt.Fprintln(cmd.OutOrStdout(), result.Version)

				return nil
			})
		},
	}

	resource.register(cmd)
	cmd.Flags().StringVar(&userID, "user", "", "Id of the user making the change")
	cmd.Flags().StringVar(&file, "file", "", "Read the payload from this file instead of stdin")

	return cmd
}

func readPayload(stdin io.Reader, file string) ([]byte, error) {
	if file == "" {
		payload, err := ioutil.ReadAll(stdin)

		if err != nil {
			return nil, fmt.Errorf("could not read payload from stdin: %s", err)
		}

		return payload, nil
	}

	payload, err := ioutil.ReadFile(file)

	if err != nil {
		return nil, fmt.Errorf("could not read payload from %s: %s", file, err)
	}

	return payload, nil
}

func newGetCmd(app *app) *cobra.Command {
	var (
		resource resourceFlags
		version  int64
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print a version of a configuration",
		Long: `Print a version of a configuration. Without --version the latest
version is printed. Exits with an error if the version does not exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var v *int64

			if cmd.Flags().Changed("version") {
				v = &version
			}

			return app.run(cmd.Context(), func(store *configstore.Store) error {
				payload, ok, err := store.GetConfig(cmd.Context(), resource.Resource, v)

				if err != nil {
					return err
				}

				if !ok {
					return fmt.Errorf("config not found")
				}

				_, err = cmd.OutOrStdout().Write(payload)

				return err
			})
		},
	}

	resource.register(cmd)
	cmd.Flags().Int64Var(&version, "version", 0, "Version to print (default latest)")

	return cmd
}

func newHistoryCmd(app *app) *cobra.Command {
	var (
		resource resourceFlags
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the versions of a configuration, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd.Context(), func(store *configstore.Store) error {
				configs, err := store.ListVersions(cmd.Context(), resource.Resource, limit)

				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tUSER\tCREATED\tSIZE")

				for _, config := range configs {
					size := fmt.Sprint(len(config.Payload))

					if config.Deleted {
						size = "deleted"
					}

					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", config.ConfigVersion, config.UserID, formatTimestamp(config.CreationTimestamp), size)
				}

				return w.Flush()
			})
		},
	}

	resource.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of versions to list (default all)")

	return cmd
}

func newDeleteCmd(app *app) *cobra.Command {
	var (
		resource resourceFlags
		userID   string
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a configuration",
		Long: `Delete a configuration by writing a tombstone as its next version. Earlier
versions stay readable with get --version. The tombstone's version is printed
on success.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd.Context(), func(store *configstore.Store) error {
				result, ok, err := store.DeleteConfig(cmd.Context(), resource.Resource, userID)

				if err != nil {
					return err
				}

				if !ok {
					return fmt.Errorf("config not found")
				}

				if !result.Success {
					return fmt.Errorf("version %d was not written", result.Version)
				}

				fmt.Fprintln(cmd.OutOrStdout(), result.Version)

				return nil
			})
		},
	}

	resource.register(cmd)
	cmd.Flags().StringVar(&userID, "user", "", "Id of the user making the change")

	return cmd
}

func newContextsCmd(app *app) *cobra.Command {
	var resource resourceFlags

	cmd := &cobra.Command{
		Use:   "contexts",
		Short: "List the latest version of every context of a configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd.Context(), func(store *configstore.Store) error {
				configs, err := store.GetAllConfigs(cmd.Context(), resource.ResourceName, resource.ResourceNamespace, resource.TenantID)

				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "CONTEXT\tVERSION\tUSER\tCREATED\tUPDATED")

				for _, config := range configs {
					resourceContext := config.Context

					if resourceContext == "" {
						resourceContext = "-"
					}

					fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", resourceContext, config.ConfigVersion, config.UserID, formatTimestamp(config.ResourceCreationTimestamp), formatTimestamp(config.LastUpdateTimestamp))
				}

				return w.Flush()
			})
		},
	}

	resource.registerContextless(cmd)

	return cmd
}
