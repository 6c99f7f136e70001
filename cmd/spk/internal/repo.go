package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goplus/spk/internal/repo"
)

var repoBranch string

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage package repositories",
}

var repoCreateCmd = &cobra.Command{
	Use:   "create <namespace>",
	Short: "Create an empty repository in the repository store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := defaultStore()
		if err != nil {
			return err
		}
		r, err := s.Create(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created repository %s\n", r.Namespace)
		return nil
	},
}

var repoAddCmd = &cobra.Command{
	Use:   "add <git-url>",
	Short: "Clone a repository into the repository store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := defaultStore()
		if err != nil {
			return err
		}
		r, err := s.Add(cmd.Context(), repo.NewGitVCS(), args[0], repoBranch)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added repository %s with %d package(s)\n", r.Namespace, len(r.Names()))
		return nil
	},
}

var repoUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Pull every cloned repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := defaultStore()
		if err != nil {
			return err
		}
		updated, err := s.Update(cmd.Context(), repo.NewGitVCS())
		for _, ns := range updated {
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", ns)
		}
		return err
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the repositories in search order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd.Context())
		if err != nil {
			return err
		}
		for _, r := range s.repos {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d package(s)\n", titleStyle.Render(r.Namespace), hashStyle.Render(r.API), len(r.Names()))
		}
		return nil
	},
}

func defaultStore() (*repo.Store, error) {
	dir, err := repo.DefaultDir()
	if err != nil {
		return nil, err
	}
	return repo.NewStore(dir), nil
}

func init() {
	repoAddCmd.Flags().StringVarP(&repoBranch, "branch", "b", "", "branch to check out")
	repoCmd.AddCommand(repoCreateCmd, repoAddCmd, repoUpdateCmd, repoListCmd)
	rootCmd.AddCommand(repoCmd)
}
