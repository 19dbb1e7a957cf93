package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Completion timeout to avoid hanging shell.
const completionTimeout = 2 * time.Second

// completeEnvAndStack completes an environment name for the first argument
// and a stack of that environment for the second.
func completeEnvAndStack(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	s, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	var names []string
	if len(args) == 0 {
		envs, err := s.ListEnvironments(ctx)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		for _, env := range envs {
			names = append(names, env.Name)
		}
	} else {
		env, err := resolveEnvironment(ctx, s, args[0])
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		stacks, err := s.ListStacks(ctx, env.ID)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		for _, st := range stacks {
			names = append(names, st.Name)
		}
	}

	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func filterPrefix(names []string, prefix string) []string {
	var out []string
	for _, n := range names {
		if strings.HasPrefix(strings.ToLower(n), strings.ToLower(prefix)) {
			out = append(out, n)
		}
	}
	return out
}
