package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/guipack/internal/config"
	"github.com/blackwell-systems/guipack/internal/layout"
	"github.com/blackwell-systems/guipack/internal/output"
)

var (
	cleanAll       bool
	cleanBuildRoot string

	cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Remove build products",
		Long: `Removes dist/, pyi_build/ and generated .spec files from the build root.

The icon cache and build history are kept unless --all is given, in which
case the whole build root is removed. The repository root is never touched.`,
		Example: `  guipack clean
  guipack clean --all`,
		Args: cobra.NoArgs,
		RunE: runClean,
	}
)

func init() {
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "also remove the icon cache and build history")
	cleanCmd.Flags().StringVar(&cleanBuildRoot, "build-root", "", "build output root (default: build)")
}

func runClean(cmd *cobra.Command, args []string) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	buildRoot, err := config.ResolveBuildRoot(root, configFile, cleanBuildRoot)
	if err != nil {
		return err
	}

	removed, err := layout.Clean(root, buildRoot, cleanAll)
	r := output.NewReporter(stdout, output.IsColorEnabled())
	for _, p := range removed {
		r.OK("Removed %s", p)
	}
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		fmt.Fprintln(stdout, "Nothing to clean.")
	}
	return nil
}
