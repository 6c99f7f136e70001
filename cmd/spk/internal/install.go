package internal

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goplus/spk/internal/install"
)

var (
	installFake  bool
	installJobs  int
	installUnify bool
	installTests string
)

var installCmd = &cobra.Command{
	Use:   "install [flags] <spec>...",
	Short: "Concretize specs and install them",
	Long: `Install concretizes each spec and installs every node of the resulting
DAGs, dependencies first. Specs already installed are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installFake, "fake", false, "populate prefixes with placeholder files instead of building")
	installCmd.Flags().IntVarP(&installJobs, "jobs", "j", 0, "number of parallel installs (default config.build_jobs)")
	installCmd.Flags().BoolVar(&installUnify, "unify", false, "share one configuration of each package across all roots when possible")
	installCmd.Flags().StringVar(&installTests, "test", "", "also install test dependencies of the roots (root) or of every package (all)")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	if !installFake {
		return errors.New("building from source is not available yet: use --fake")
	}
	tests, err := parseTestMode(installTests)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := loadSession(ctx)
	if err != nil {
		return err
	}
	_, dags, err := s.concretize(ctx, args, tests, installUnify)
	if err != nil {
		return err
	}
	t, err := openTree(s.cfg)
	if err != nil {
		return err
	}
	defer t.Close()

	jobs := installJobs
	if jobs <= 0 {
		jobs = s.cfg.BuildJobs()
	}
	outcomes, err := t.installer(install.FakeBuilder{}, jobs).Install(ctx, dags...)
	out := cmd.OutOrStdout()
	for _, o := range outcomes {
		status := successStyle.Render(o.Status.String())
		fmt.Fprintf(out, "%s %s %s\n", status, o.Spec.Format(7), hashStyle.Render(o.Prefix))
	}
	return err
}
