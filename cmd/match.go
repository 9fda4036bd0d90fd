package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jihghong/retools"
)

var (
	tokenStyle = color.New(color.FgCyan, color.Bold)
	fieldStyle = color.New(color.FgYellow)
	valueStyle = color.New(color.FgGreen)
	noneStyle  = color.New(color.FgHiBlack)
)

var matchToken string

var matchCmd = &cobra.Command{
	Use:   "match <template> <text>",
	Short: "Match text against a template and print the reconstructed records",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := loadBuilder()
		if err != nil {
			logger.Fatal("Failed to load rules", zap.Error(err))
		}

		template, text := args[0], args[1]
		m, err := b.Match(template, text)
		if err != nil {
			logger.Fatal("Failed to compile template", zap.String("template", template), zap.Error(err))
		}
		if m == nil {
			fmt.Println("no match")
			os.Exit(1)
		}

		fmt.Printf("matched %q\n", m.Text())
		if matchToken != "" {
			printOccurrences(m, matchToken)
			return
		}
		cfg, _ := retools.LoadRules(rulesFile)
		for _, rule := range cfg.Tokens {
			printOccurrences(m, rule.Name)
		}
	},
}

func init() {
	matchCmd.Flags().StringVarP(&matchToken, "token", "t", "", "Only print occurrences of this token")
}

func loadBuilder() (*retools.Builder, error) {
	b := retools.NewBuilder()
	if rulesFile == "" {
		return b, nil
	}
	cfg, err := retools.LoadRules(rulesFile)
	if err != nil {
		return nil, err
	}
	if err := retools.RegisterRules(b, cfg); err != nil {
		return nil, err
	}
	return b, nil
}

func printOccurrences(m *retools.Match, token string) {
	for i := 1; i <= m.Occurrences(token); i++ {
		v, err := m.Get(token, i)
		if err != nil {
			logger.Error("Failed to reconstruct occurrence",
				zap.String("token", token), zap.Int("index", i), zap.Error(err))
			continue
		}
		fmt.Printf("%s[%d] = %s\n", tokenStyle.Sprint(token), i, renderValue(v))
	}
}

func renderValue(v retools.Value) string {
	switch v.Kind {
	case retools.KindNone:
		return noneStyle.Sprint("None")
	case retools.KindToken:
		out := tokenStyle.Sprint(v.Record.Token) + "("
		for i, f := range v.Record.Fields {
			if i > 0 {
				out += ", "
			}
			out += fieldStyle.Sprint(f.Name) + "=" + renderValue(f.Value)
		}
		return out + ")"
	case retools.KindList:
		out := "["
		for i, item := range v.List {
			if i > 0 {
				out += ", "
			}
			out += renderValue(item)
		}
		return out + "]"
	default:
		return valueStyle.Sprint(retools.FormatValue(v))
	}
}
