package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sitevar/sitevar/internal/record"
	"github.com/sitevar/sitevar/internal/store"
)

// NewProjectCommand creates the project command group.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(newProjectCreateCommand(rootOpts))
	cmd.AddCommand(newProjectListCommand(rootOpts))
	cmd.AddCommand(newProjectArchiveCommand(rootOpts))
	return cmd
}

// ProjectCreateOptions holds flags for project create.
type ProjectCreateOptions struct {
	*RootOptions
	Client    string
	Reference string
	Address   string
}

func newProjectCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProjectCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "create <name>",
		Short:         "Create a project",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectCreate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Client, "client", "", "client name")
	cmd.Flags().StringVar(&opts.Reference, "reference", "", "contract reference code")
	cmd.Flags().StringVar(&opts.Address, "address", "", "site address")

	return cmd
}

func runProjectCreate(opts *ProjectCreateOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	st, _, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	p := record.Project{
		Name:          name,
		Client:        opts.Client,
		ReferenceCode: opts.Reference,
	}
	if opts.Address != "" {
		p.Address = &opts.Address
	}
	if err := st.CreateProject(cmd.Context(), &p); err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "creating project", err)
	}

	return formatter.SuccessText(
		fmt.Sprintf("Created project %s (%s)", p.Name, p.ID),
		p,
	)
}

func newProjectListCommand(rootOpts *RootOptions) *cobra.Command {
	var includeArchived bool

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List projects",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			st, _, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			projects, err := st.ListProjects(cmd.Context(), includeArchived)
			if err != nil {
				formatter.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "listing projects", err)
			}
			return formatter.SuccessText(formatProjects(projects), projects)
		},
	}

	cmd.Flags().BoolVar(&includeArchived, "all", false, "include archived projects")
	return cmd
}

func formatProjects(projects []record.Project) string {
	if len(projects) == 0 {
		return "No projects."
	}
	var b strings.Builder
	for i, p := range projects {
		if i > 0 {
			b.WriteByte('\n')
		}
		state := ""
		if !p.Active {
			state = " [archived]"
		}
		fmt.Fprintf(&b, "%s  %s (%s)%s", p.ID, p.Name, p.ReferenceCode, state)
	}
	return b.String()
}

func newProjectArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "archive <project-id>",
		Short:         "Archive a project",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			st, _, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.ArchiveProject(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					formatter.Error(ErrCodeNotFound, "project not found", args[0])
					return NewExitError(ExitCommandError, "project not found")
				}
				formatter.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "archiving project", err)
			}
			return formatter.SuccessText(
				"Archived project "+args[0],
				map[string]string{"id": args[0]},
			)
		},
	}
}
