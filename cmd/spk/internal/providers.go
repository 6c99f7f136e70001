package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goplus/spk/pkgs/version"
)

var providersCmd = &cobra.Command{
	Use:   "providers [virtual]",
	Short: "List providers of virtual packages",
	Long:  `Providers lists the packages providing a virtual, or every virtual when none is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProviders,
}

var versionsCmd = &cobra.Command{
	Use:   "versions <package>",
	Short: "List the declared versions of a package",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersions,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available packages",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(providersCmd, versionsCmd, listCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	s, err := loadSession(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	virtuals := args
	if len(virtuals) == 0 {
		virtuals = s.repos.Virtuals()
	}
	for _, v := range virtuals {
		if !s.repos.IsVirtual(v) {
			return fmt.Errorf("%s is not a virtual package", v)
		}
		fmt.Fprintln(out, titleStyle.Render(v+":"))
		for _, p := range s.repos.Providers(v) {
			pkg, err := s.repos.Get(p)
			if err != nil {
				return err
			}
			for _, pr := range pkg.ProvidesFor(v, version.List{}) {
				line := "    " + pkg.Name
				if !pr.Virtual.Versions.IsAny() {
					line += "  " + hashStyle.Render("provides "+pr.Virtual.String())
				}
				if w := pr.When.String(); w != "" {
					line += hashStyle.Render(" when " + w)
				}
				fmt.Fprintln(out, line)
			}
		}
	}
	return nil
}

func runVersions(cmd *cobra.Command, args []string) error {
	s, err := loadSession(cmd.Context())
	if err != nil {
		return err
	}
	pkg, err := s.repos.Get(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, v := range pkg.Versions {
		line := "    " + v.Version.String()
		switch {
		case v.Preferred:
			line += "  " + successStyle.Render("preferred")
		case v.Deprecated:
			line += "  " + errorStyle.Render("deprecated")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := loadSession(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, name := range s.repos.Names() {
		r, _ := s.repos.Repo(name)
		fmt.Fprintf(out, "%s  %s\n", name, hashStyle.Render(r.Namespace))
	}
	return nil
}
