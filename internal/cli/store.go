package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/anchorsync/internal/anchorstore"
)

// StoreOptions holds flags shared by the store subcommands.
type StoreOptions struct {
	*RootOptions
	Database string
}

// StoreListing is the data payload of "store list".
type StoreListing struct {
	Entries []anchorstore.Entry `json:"entries"`
}

// NewStoreCommand creates the store command group.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect or clear a persisted anchor store",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List persisted anchors in save order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listStore(opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "clear",
		Short:         "Erase every persisted anchor",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearStore(opts, cmd)
		},
	})

	return cmd
}

func (o *StoreOptions) open() (*anchorstore.Store, error) {
	db := o.Database
	if db == "" {
		db = o.config().DB
	}
	st, err := anchorstore.Open(db, anchorstore.WithLogger(o.logger()))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open store %s", db), err)
	}
	return st, nil
}

func listStore(opts *StoreOptions, cmd *cobra.Command) error {
	st, err := opts.open()
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.Entries(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list store", err)
	}
	if entries == nil {
		entries = []anchorstore.Entry{}
	}

	return opts.formatter(cmd).Success(formatStoreText(entries), StoreListing{Entries: entries})
}

func clearStore(opts *StoreOptions, cmd *cobra.Command) error {
	st, err := opts.open()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Clear(commandContext(cmd)); err != nil {
		return WrapExitError(ExitFailure, "failed to clear store", err)
	}
	opts.logger().Info("store cleared", "db", opts.Database)
	return opts.formatter(cmd).Success("Store cleared.", map[string]bool{"cleared": true})
}

func formatStoreText(entries []anchorstore.Entry) string {
	if len(entries) == 0 {
		return "No persisted anchors."
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-24s %s", e.Name, e.Pose)
	}
	return b.String()
}
