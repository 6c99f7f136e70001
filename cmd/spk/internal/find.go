package internal

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/spk/internal/store"
)

var (
	findLong     bool
	findPaths    bool
	findExplicit bool
	findDeps     bool
)

var findCmd = &cobra.Command{
	Use:   "find [spec | /hash]",
	Short: "List installed specs",
	Long: `Find lists installed specs, optionally those satisfying a spec or
whose hash starts with a prefix.`,
	RunE: runFind,
}

func init() {
	findCmd.Flags().BoolVarP(&findLong, "long", "l", false, "show short hashes")
	findCmd.Flags().BoolVarP(&findPaths, "paths", "p", false, "show install prefixes")
	findCmd.Flags().BoolVarP(&findExplicit, "explicit", "x", false, "only show explicitly installed specs")
	findCmd.Flags().BoolVarP(&findDeps, "deps", "d", false, "show dependency trees")
	rootCmd.AddCommand(findCmd)
}

func runFind(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	t, err := openTree(cfg)
	if err != nil {
		return err
	}
	defer t.Close()

	recs, err := t.db.Query(strings.Join(args, " "))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	n := 0
	for _, rec := range recs {
		if findExplicit && !rec.Explicit {
			continue
		}
		n++
		if err := printRecord(cmd, rec); err != nil {
			return err
		}
	}
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("==> %d installed package(s)", n)))
	return nil
}

func printRecord(cmd *cobra.Command, rec *store.Record) error {
	out := cmd.OutOrStdout()
	d, err := rec.DAG()
	if err != nil {
		return fmt.Errorf("corrupt record %s: %w", rec.Hash, err)
	}
	if findDeps {
		printTree(out, d, treeOptions{hashLen: 7, long: findLong})
		return nil
	}
	line := d.Root().String()
	if findLong {
		line = hashStyle.Render(rec.Hash[:7]) + " " + line
	}
	if findPaths {
		line += "  " + hashStyle.Render(rec.Prefix)
	}
	fmt.Fprintln(out, line)
	return nil
}
