package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lolmeida/kstack/internal/fileutil"
	"github.com/lolmeida/kstack/internal/manifest"
	"github.com/lolmeida/kstack/internal/ui"
)

var renderOutput string

// renderCmd renders templates against the values document of a stack.
var renderCmd = &cobra.Command{
	Use:   "render <env> <stack> <file.tmpl|dir>...",
	Short: "Render templates against a stack's values",
	Long: `Render Go templates with the values document of a stack as data.

Templates have access to:
  - The values document via {{ . }} (e.g. {{ .global.namespace }})
  - All sprig template functions
  - toYaml and toJson

Directories are walked for .tmpl files.

Examples:
  # Render a single template to stdout
  kstack render dev web notes.md.tmpl

  # Render a directory to an output directory (preserves structure, strips .tmpl)
  kstack render prod web -o /tmp/rendered templates/`,
	Args: cobra.MinimumNArgs(3),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Output directory (prints to stdout if not set)")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	templates, err := collectTemplates(args[2:])
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		return fmt.Errorf("no .tmpl files found")
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

		for _, t := range templates {
			out, err := manifest.RenderTemplateFile(t.path, doc)
			if err != nil {
				return fmt.Errorf("%s: %w", t.path, err)
			}

			if renderOutput == "" {
				if len(templates) > 1 {
					fmt.Fprintf(cmd.OutOrStdout(), "# --- %s ---\n", t.path)
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
				continue
			}

			dst := filepath.Join(renderOutput, strings.TrimSuffix(t.rel, ".tmpl"))
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			if err := fileutil.WriteFileAtomic(dst, []byte(out), 0o644); err != nil {
				return err
			}
			ui.Success("Rendered %s", dst)
		}
		return nil
	})
}

type templateFile struct {
	path string
	// rel is the path below the argument it was found under.
	rel string
}

// collectTemplates expands directory arguments into their .tmpl files.
func collectTemplates(args []string) ([]templateFile, error) {
	var templates []templateFile
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", arg, err)
		}
		if !info.IsDir() {
			templates = append(templates, templateFile{path: arg, rel: filepath.Base(arg)})
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".tmpl") {
				rel, err := filepath.Rel(arg, path)
				if err != nil {
					return err
				}
				templates = append(templates, templateFile{path: path, rel: rel})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("find templates in %s: %w", arg, err)
		}
	}
	return templates, nil
}
