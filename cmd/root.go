package cmd

import (
	"os"
	"path"

	feedertypes "github.com/Nuklai/nuklai-contracts-bitcoin-form/types"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	sourcesPath string

	conf   *feedertypes.Config
	logger feedertypes.LoggerInf
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "coin-price-fetch",
	Short: "One-time coin price fetch from a chainlink price feed",
	Long: `Deploys and operates a one-time coin price fetcher. The fetcher reads its chainlink
price feed exactly once, on behalf of the forwarder designated by its administrator,
and keeps the captured price and coin pair for everyone to read.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initConfig()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.coin-price-fetch.yaml)")
	rootCmd.PersistentFlags().StringVar(&sourcesPath, "sources", "", "directory of oracle_env_chainlink.yaml (default is the directory of the config file)")

	rootCmd.AddCommand(
		deployCmd,
		setForwarderCmd,
		transferAdminCmd,
		renounceAdminCmd,
		fetchCmd,
		statusCmd,
		mockCmd,
		signCmd,
		startCmd,
		versionCmd,
	)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if len(cfgFile) == 0 {
		// Find home directory.
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		cfgFile = path.Join(home, ".coin-price-fetch.yaml")
	}
	if len(sourcesPath) == 0 {
		sourcesPath = path.Dir(cfgFile)
	}

	var err error
	if conf, err = feedertypes.InitConfig(cfgFile); err != nil {
		return err
	}
	logger = feedertypes.SetLogger(feedertypes.NewLogger(feedertypes.ParseLogLevel(conf.LogLevel)))
	return nil
}
