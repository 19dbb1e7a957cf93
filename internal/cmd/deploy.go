package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lolmeida/kstack/internal/deploy"
	"github.com/lolmeida/kstack/internal/manifest"
	"github.com/lolmeida/kstack/internal/ui"
)

var (
	deployDryRun bool
	deployYes    bool
	deployJSON   bool
)

// deployCmd deploys a stack to an environment.
var deployCmd = &cobra.Command{
	Use:   "deploy <env> <stack>",
	Short: "Deploy a stack",
	Long: `Deploy a stack with the strategy of its environment.

  dev       simulated, nothing is run
  staging   helm upgrade --install --wait against the staging context
  prod      helm upgrade --install --wait --atomic into the prod namespace

Deploying to prod asks for confirmation unless --yes is given.

Examples:
  kstack deploy dev web
  kstack deploy staging web --dry-run
  kstack deploy prod web --yes --json`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeEnvAndStack,
	RunE:              runDeploy,
}

func init() {
	deployCmd.Flags().BoolVarP(&deployDryRun, "dry-run", "n", false, "Print the helm command instead of running it")
	deployCmd.Flags().BoolVarP(&deployYes, "yes", "y", false, "Skip the prod confirmation prompt")
	deployCmd.Flags().BoolVar(&deployJSON, "json", false, "Print the deployment result as JSON")

	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	opts := appOptions{withStates: true}
	if deployDryRun {
		opts.runner = &deploy.PrintRunner{W: cmd.OutOrStdout()}
		opts.noSecrets = true
	}

	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		env, err := resolveEnvironment(ctx, a.store, args[0])
		if err != nil {
			return err
		}
		stack := args[1]

		if strings.EqualFold(env.Name, manifest.ProdEnvironment) && !deployYes && !deployDryRun {
			ok, err := promptYesNo(cmd.InOrStdin(), cmd.ErrOrStderr(),
				fmt.Sprintf("Deploy %s to %s?", stack, env.Name))
			if err != nil {
				return err
			}
			if !ok {
				ui.Warning("Deploy cancelled")
				return nil
			}
		}

		ui.Deploy("Deploying %s to %s", stack, env.Name)
		res := a.service.Deploy(ctx, env.ID, stack)

		if deployJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
		}

		if !res.Success {
			ui.Error("Deploy %s: %s", ui.State(string(res.State)), res.Message)
			return fmt.Errorf("deploy of %s to %s failed: %w", stack, env.Name, res.Err)
		}
		ui.Success("%s %s (deployment %s)", ui.State(string(res.State)), res.Message, res.DeploymentID)
		return nil
	})
}

// isTerminal checks if stdin is a TTY.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptYesNo asks the user a yes/no question.
// Returns error if stdin is not a TTY and cannot read input.
func promptYesNo(in io.Reader, out io.Writer, question string) (bool, error) {
	if in == os.Stdin && !isTerminal() {
		return false, fmt.Errorf("cannot prompt for input: stdin is not a TTY. Use --yes flag to skip interactive prompts")
	}

	fmt.Fprintf(out, "%s [y/N] ", question)

	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read user input: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}
