package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lolmeida/kstack/internal/preflight"
	"github.com/lolmeida/kstack/internal/ui"
)

// doctorCmd checks that kstack can build values and deploy.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the tools, catalog and kube contexts",
	Long: `Run pre-flight checks:

  - helm is installed (kubectl and sops are optional)
  - the staging and prod kube contexts exist
  - the catalog (or database) loads
  - the charts directory exists`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ui.Header("kstack doctor")

	checker := preflight.NewChecker(
		preflight.DefaultBinaries(cfg.HelmBin),
		[]string{cfg.StagingContext, cfg.ProdContext},
	)
	report := checker.Run(cmd.Context())

	step := 1
	for _, name := range report.Found {
		ui.Step(step, "%s found", name)
		step++
	}

	s, closeStore, err := openStore(cfg)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("catalog: %v", err))
	} else {
		envs, err := s.ListEnvironments(cmd.Context())
		closeStore()
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("catalog: %v", err))
		} else {
			ui.Step(step, "catalog loaded (%d environments)", len(envs))
			step++
		}
	}

	if info, err := os.Stat(cfg.ChartsDir()); err != nil || !info.IsDir() {
		report.Warnings = append(report.Warnings, fmt.Sprintf("charts directory %s not found", cfg.ChartsDir()))
	} else {
		ui.Step(step, "charts directory %s", cfg.ChartsDir())
	}

	for _, w := range report.Warnings {
		ui.Warning("%s", w)
	}
	for _, e := range report.Errors {
		ui.Error("%s", e)
	}

	if !report.OK() {
		return fmt.Errorf("%d check(s) failed", len(report.Errors))
	}
	ui.Success("All checks passed")
	return nil
}
