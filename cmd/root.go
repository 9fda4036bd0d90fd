package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rulesFile string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "retools",
	Short: "retools - compose regex patterns from typed tokens and rebuild matches as records",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = zap.NewProduction()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rulesFile, "rules", "r", "", "YAML file with token definitions")
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(constructCmd)
}
