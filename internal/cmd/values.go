package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lolmeida/kstack/internal/manifest"
	"github.com/lolmeida/kstack/internal/ui"
)

var (
	valuesOutput  string
	valuesFile    string
	valuesOverlay string
)

// valuesCmd prints the values document of a stack.
var valuesCmd = &cobra.Command{
	Use:   "values <env> <stack>",
	Short: "Print the values document of a stack",
	Long: `Build the helm values document of a stack and print it.

The environment may be given by name or id.

Examples:
  kstack values dev web                # YAML to stdout
  kstack values 1 web -o json          # JSON to stdout
  kstack values prod web --out v.yaml  # Write YAML to a file
  kstack values prod web -f local.yaml # Deep-merge an overlay on top`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeEnvAndStack,
	RunE:              runValues,
}

func init() {
	valuesCmd.Flags().StringVarP(&valuesOutput, "output", "o", "yaml", "Output format (yaml or json)")
	valuesCmd.Flags().StringVar(&valuesFile, "out", "", "Write YAML to this file instead of stdout")
	valuesCmd.Flags().StringVarP(&valuesOverlay, "values", "f", "", "Deep-merge a YAML overlay on top of the document")

	rootCmd.AddCommand(valuesCmd)
}

func runValues(cmd *cobra.Command, args []string) error {
	if valuesOutput != "yaml" && valuesOutput != "json" {
		return fmt.Errorf("unknown output format %q (want yaml or json)", valuesOutput)
	}

	return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
		env, err := resolveEnvironment(ctx, a.store, args[0])
		if err != nil {
			return err
		}
		doc, err := a.service.Values(ctx, env.ID, args[1])
		if err != nil {
			return err
		}

		if valuesOverlay != "" {
			overlay, err := manifest.LoadValuesOverlay(valuesOverlay)
			if err != nil {
				return err
			}
			doc = manifest.DeepMerge(doc, overlay)
		}

		if valuesFile != "" {
			if err := manifest.WriteValues(doc, valuesFile); err != nil {
				return err
			}
			ui.Success("Wrote values for %s/%s to %s", env.Name, args[1], valuesFile)
			return nil
		}

		var data []byte
		if valuesOutput == "json" {
			data, err = manifest.EncodeJSON(doc)
		} else {
			data, err = manifest.EncodeYAML(doc)
		}
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	})
}
