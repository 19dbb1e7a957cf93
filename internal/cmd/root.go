// Package cmd provides the CLI commands for kstack.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X".
var version = "0.1.0"

var (
	flagDB       string
	flagCatalog  string
	flagStateDir string
	flagVerbose  bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "kstack",
	Short: "Build helm values for a stack and deploy it",
	Long: `kstack - stack values and deployments for Kubernetes

Builds one helm values document per stack from the catalog of environments,
stacks, apps and category defaults, and deploys it with helm.

VALUES
  values <env> <stack>        Print the values document (YAML or JSON)
  render <env> <stack> <tmpl> Render Go templates against the values
  envs                        List environments
  stacks <env>                List the stacks of an environment

DEPLOY
  deploy <env> <stack>        Deploy a stack (dev is simulated)
    --dry-run, -n             Print the helm command instead of running it
    --yes, -y                 Skip the prod confirmation prompt

OPERATIONS
  serve                       Run the HTTP API
  seed                        Load the catalog file into the SQLite store
  doctor                      Check helm, kubectl, sops and kube contexts
  update                      Update kstack to the latest release`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite catalog database (overrides KSTACK_DB)")
	rootCmd.PersistentFlags().StringVar(&flagCatalog, "catalog", "", "Catalog YAML file (overrides KSTACK_CATALOG)")
	rootCmd.PersistentFlags().StringVar(&flagStateDir, "state-dir", "", "Directory for lock files (overrides KSTACK_STATE_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Write structured debug logs to stderr")

	rootCmd.SetVersionTemplate("kstack version {{.Version}}\n")
}
