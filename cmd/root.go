package cmd

import (
	"github.com/robmorgan/orbit/config"
	"github.com/robmorgan/orbit/logger"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	logLevel    string
	orbitConfig config.OrbitConfig
)

var rootCmd = &cobra.Command{
	Use:   "orbit",
	Short: "Transport synchronised event processors",
	Long: `orbit hosts event processing modules that follow a musical transport:
loopers, a disk recorder, beat quantisation and transport tools.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			orbitConfig, err = config.Load(configPath)
		} else {
			orbitConfig, err = config.NewOrbitConfig()
		}
		if err != nil {
			return err
		}
		if logLevel != "" {
			orbitConfig.LogLevel = logLevel
		}
		return logger.SetLevel(orbitConfig.LogLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides the configuration)")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
