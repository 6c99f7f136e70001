package internal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/spk/internal/layout"
	"github.com/goplus/spk/internal/store"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [spec | /hash]...",
	Short: "Check installed prefixes against their manifests",
	Long: `Verify re-hashes the files of installed specs and compares them with the
manifest written at install time. The recorded spec.yaml is decoded and
its hash recomputed, so edited metadata is detected as well. Without
arguments every installed spec is verified.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
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
	if len(args) > 0 && len(recs) == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, strings.Join(args, " "))
	}
	out := cmd.OutOrStdout()
	failed := 0
	for _, rec := range recs {
		label := rec.Name + "@" + rec.Version + " /" + rec.Hash[:7]
		err := layout.VerifyPrefix(rec.Prefix, rec.Hash)
		var verr *layout.VerifyError
		switch {
		case err == nil:
			fmt.Fprintf(out, "%s %s\n", successStyle.Render("ok"), label)
			continue
		case errors.As(err, &verr):
			fmt.Fprintf(out, "%s %s\n", errorStyle.Render("FAILED"), label)
			for _, p := range verr.Problems {
				fmt.Fprintf(out, "    %s: %s\n", p.Path, p.Reason)
			}
		default:
			fmt.Fprintf(out, "%s %s: %v\n", errorStyle.Render("FAILED"), label, err)
		}
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d installs failed verification", failed, len(recs))
	}
	return nil
}
