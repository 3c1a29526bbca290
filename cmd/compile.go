package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jin-gizmo/docma/internal/compiler"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] [SOURCE TARGET]",
	Short: "Compile a template source directory into a template package",
	Long: `Compile a template source directory into a template package. A target
ending in .zip produces a zip archive, anything else a directory.

Examples:
  docma compile -i src -t report.zip     # Compile to a zip archive
  docma compile src build/report         # Compile to a directory
  docma compile -i src -t pkg --watch    # Recompile on every change`,
	Args: cobra.MaximumNArgs(2),
	RunE: runCompile,
}

var (
	compileInput  string
	compileTarget string
	compileWatch  bool
)

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVarP(&compileInput, "input", "i", "", "Template source directory")
	compileCmd.Flags().StringVarP(&compileTarget, "template", "t", "", "Compiled package (directory or .zip)")
	compileCmd.Flags().BoolVarP(&compileWatch, "watch", "w", false, "Recompile when the source changes")
}

func runCompile(cmd *cobra.Command, args []string) error {
	src, target := compileInput, compileTarget
	if len(args) > 0 {
		src = args[0]
	}
	if len(args) > 1 {
		target = args[1]
	}
	if src == "" || target == "" {
		return fmt.Errorf("a source directory and a target are required")
	}

	opts := compiler.Options{Logger: logger, ImportMaxSize: appConfig.Import.MaxSize}
	if compileWatch {
		return compiler.Watch(cmd.Context(), src, target, opts, compiler.DefaultWatchDelay)
	}
	if err := compiler.Compile(cmd.Context(), src, target, opts); err != nil {
		return err
	}
	logger.Info(cmd.Context(), "Compiled template", "source", src, "target", target)

	return nil
}
