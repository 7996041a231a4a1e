package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/guipack/internal/config"
	"github.com/blackwell-systems/guipack/internal/output"
	"github.com/blackwell-systems/guipack/internal/store"
)

var (
	historyLimit     int
	historyBuildRoot string

	historyCmd = &cobra.Command{
		Use:   "history [build-id]",
		Short: "Show recorded builds",
		Long: `Lists builds recorded in <build root>/history.db, newest first.

Pass a build ID, or any unique prefix of one, to see every detail of that
build including the error of a failed run.`,
		Example: `  guipack history
  guipack history --limit 50
  guipack history 3f1c9a52`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of builds to show (0 for all)")
	historyCmd.Flags().StringVar(&historyBuildRoot, "build-root", "", "build output root (default: build)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	buildRoot, err := config.ResolveBuildRoot(root, configFile, historyBuildRoot)
	if err != nil {
		return err
	}

	dbPath := filepath.Join(buildRoot, store.FileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprint(stdout, "No builds recorded.\n")
		return nil
	}

	st, err := store.New(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if len(args) == 1 {
		rec, err := findBuild(st, args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(stdout, output.RenderBuildDetail(rec))
		return nil
	}

	builds, err := st.ListBuilds(historyLimit)
	if errors.Is(err, store.ErrNotInitialized) {
		fmt.Fprint(stdout, "No builds recorded.\n")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, output.RenderHistoryTable(builds, time.Now(), output.IsColorEnabled()))
	return nil
}

// findBuild looks a build up by full ID or unique prefix.
func findBuild(st *store.Store, prefix string) (*store.BuildRecord, error) {
	builds, err := st.ListBuilds(0)
	if err != nil {
		return nil, err
	}
	var matches []*store.BuildRecord
	for _, b := range builds {
		if b.ID == prefix {
			return b, nil
		}
		if strings.HasPrefix(b.ID, prefix) {
			matches = append(matches, b)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no build matches %q", prefix)
	case 1:
		return matches[0], nil
	}
	return nil, fmt.Errorf("%q matches %d builds; use a longer prefix", prefix, len(matches))
}
