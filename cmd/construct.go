package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var constructCmd = &cobra.Command{
	Use:   "construct <token> <text>",
	Short: "Match text against a single token and print its record",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := loadBuilder()
		if err != nil {
			logger.Fatal("Failed to load rules", zap.Error(err))
		}

		token, text := args[0], args[1]
		v, err := b.Construct(token, text)
		if err != nil {
			logger.Fatal("Failed to construct", zap.String("token", token), zap.Error(err))
		}
		if v.IsNone() {
			fmt.Println("no match")
			os.Exit(1)
		}
		fmt.Println(renderValue(v))
	},
}
