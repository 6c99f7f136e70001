package internal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/spk/internal/install"
	"github.com/goplus/spk/internal/store"
)

var uninstallAll bool

var uninstallCmd = &cobra.Command{
	Use:   "uninstall [flags] <spec | /hash>",
	Short: "Remove installed specs",
	Long: `Uninstall removes installed specs matching the query. A spec other
installed specs depend on is kept.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVarP(&uninstallAll, "all", "a", false, "remove every match instead of requiring a single one")
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	t, err := openTree(cfg)
	if err != nil {
		return err
	}
	defer t.Close()

	query := strings.Join(args, " ")
	recs, err := t.db.Query(query)
	if err != nil {
		return err
	}
	switch {
	case len(recs) == 0:
		return fmt.Errorf("%w: %s", store.ErrNotFound, query)
	case len(recs) > 1 && !uninstallAll:
		return fmt.Errorf("%s matches %d installed specs: use --all or a /hash", query, len(recs))
	}
	in := t.installer(install.FakeBuilder{}, 1)
	out := cmd.OutOrStdout()
	var errs []error
	for _, rec := range recs {
		if err := in.Uninstall(cmd.Context(), rec); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "%s %s@%s /%s\n", successStyle.Render("removed"), rec.Name, rec.Version, rec.Hash[:7])
	}
	return errors.Join(errs...)
}
