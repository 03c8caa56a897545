package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <ticker>",
	Short: "Look a ticker up through the provider chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	ticker := strings.ToUpper(strings.TrimSpace(args[0]))

	quote := initProviders(cfg, logger).searchChain(logger).Find(cmd.Context(), ticker)
	if quote == nil {
		return fmt.Errorf("ticker %s not found on any provider", ticker)
	}

	fmt.Printf("%s - %s\n", quote.Ticker, quote.CompanyName)
	fmt.Printf("  Price:     %s %s\n", quote.Price, quote.Currency)
	fmt.Printf("  Exchange:  %s\n", quote.Exchange)
	return nil
}
