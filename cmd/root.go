package cmd

import (
	"os"

	"github.com/anoixa/storefront-assets/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd 不带子命令时直接启动服务
var rootCmd = &cobra.Command{
	Use:          "storefront-assets",
	Short:        "Image asset service for the storefront backend",
	Version:      config.Version + " (" + config.CommitHash + ")",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

// Execute 命令行入口
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default .env, eg: /etc/storefront-assets/config.yaml)")
	_ = viper.BindPFlag("config_file_path", rootCmd.PersistentFlags().Lookup("config"))
}
