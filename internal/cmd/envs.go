package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var envsCmd = &cobra.Command{
	Use:   "envs",
	Short: "List environments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
			envs, err := a.service.Environments(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tACTIVE")
			for _, env := range envs {
				fmt.Fprintf(w, "%d\t%s\t%t\n", env.ID, env.Name, env.IsActive)
			}
			return w.Flush()
		})
	},
}

var stacksCmd = &cobra.Command{
	Use:               "stacks <env>",
	Short:             "List the stacks of an environment",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeEnvAndStack,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
			env, err := resolveEnvironment(ctx, a.store, args[0])
			if err != nil {
				return err
			}
			stacks, err := a.store.ListStacks(ctx, env.ID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tENABLED\tDESCRIPTION")
			for _, st := range stacks {
				fmt.Fprintf(w, "%s\t%t\t%s\n", st.Name, st.Enabled, st.Description)
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(envsCmd)
	rootCmd.AddCommand(stacksCmd)
}
