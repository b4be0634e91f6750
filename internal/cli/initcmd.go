package cli

import (
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the local database",
		Long: `Create (or migrate) the local claim database at the configured path.

Running init on an existing database is safe; pending migrations are
applied and existing data is untouched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			st, cfg, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()
			return formatter.SuccessText(
				"Database ready at "+cfg.DBPath,
				map[string]string{"db_path": cfg.DBPath},
			)
		},
	}
}
