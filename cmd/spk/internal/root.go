package internal

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	configFile string
	repoDirs   []string
	rootDir    string
	verbose    bool

	logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "spk"})
)

var rootCmd = &cobra.Command{
	Use:   "spk",
	Short: "spk is a source-based package manager",
	Long: `spk turns abstract package specs into concrete dependency graphs and
installs every node of them into a hash-addressed install tree.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetLevel(log.DebugLevel)
		} else {
			logger.SetLevel(log.InfoLevel)
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "configuration file (default <UserConfigDir>/spk/config.yaml)")
	flags.StringArrayVar(&repoDirs, "repo", nil, "package repository directory, searched before configured ones")
	flags.StringVar(&rootDir, "root", "", "install tree root, overriding the configuration")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal(err)
	}
}
