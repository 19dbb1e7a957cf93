package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lolmeida/kstack/internal/ui"
	"github.com/lolmeida/kstack/internal/update"
)

var updateCmd = &cobra.Command{
	Use:     "update",
	Aliases: []string{"upgrade", "selfupdate"},
	Short:   "Update kstack to the latest version",
	Long: `Update kstack to the latest version from GitHub releases.

Examples:
  kstack update           # Update to latest version
  kstack update --check   # Check for updates without installing`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

var updateCheckOnly bool

func init() {
	updateCmd.Flags().BoolVar(&updateCheckOnly, "check", false, "Only check for updates, don't install")

	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ui.Info("Current version: %s (%s)", version, update.GetPlatformInfo())
	ui.Info("Checking %s for updates...", update.Slug())

	if updateCheckOnly {
		release, available, err := update.CheckForUpdate(ctx, version)
		if err != nil {
			return fmt.Errorf("check for updates: %w", err)
		}
		if !available {
			ui.Success("You're running the latest version!")
			return nil
		}
		ui.Success("New version available: %s (released %s)", release.Version, release.PublishedAt)
		ui.Info("To update, run: kstack update")
		printChangelog(cmd.OutOrStdout(), release.Changelog)
		return nil
	}

	release, err := update.Update(ctx, version)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if release == nil {
		ui.Success("You're already running the latest version!")
		return nil
	}

	ui.Success("Successfully updated to version %s!", release.Version)
	printChangelog(cmd.OutOrStdout(), release.Changelog)
	return nil
}

// maxChangelogLines bounds the release notes shown after an update check.
const maxChangelogLines = 10

func printChangelog(w io.Writer, changelog string) {
	if changelog == "" {
		return
	}
	ui.Header("What's new:")
	lines := strings.Split(changelog, "\n")
	shown := min(len(lines), maxChangelogLines)
	for _, line := range lines[:shown] {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if len(lines) > shown {
		fmt.Fprintf(w, "  ... (%d more lines)\n", len(lines)-shown)
	}
}
