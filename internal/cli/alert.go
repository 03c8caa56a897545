package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stockwatch/pkg/model"
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage price alerts",
}

var alertAddCmd = &cobra.Command{
	Use:   "add <ticker> <target-price>",
	Short: "Create a price alert",
	Long: `Resolves the ticker through the provider chain, then creates an
alert that fires once when the price crosses the target. The direction
defaults to "above" when the target is above the current price and
"below" otherwise; use --direction to override.`,
	Args: cobra.ExactArgs(2),
	RunE: runAlertAdd,
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active alerts",
	RunE:  runAlertList,
}

var alertRmCmd = &cobra.Command{
	Use:   "rm <alert-id>",
	Short: "Delete an alert",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertRm,
}

var alertMoveCmd = &cobra.Command{
	Use:   "move <alert-id> <target-price>",
	Short: "Move an alert's target, reactivating it if triggered",
	Args:  cobra.ExactArgs(2),
	RunE:  runAlertMove,
}

func init() {
	rootCmd.AddCommand(alertCmd)
	alertCmd.AddCommand(alertAddCmd)
	alertCmd.AddCommand(alertListCmd)
	alertCmd.AddCommand(alertRmCmd)
	alertCmd.AddCommand(alertMoveCmd)

	alertCmd.PersistentFlags().Int64P("owner", "o", 0, "Owner id")
	_ = alertCmd.MarkPersistentFlagRequired("owner")

	alertAddCmd.Flags().StringP("direction", "d", "", "Trigger direction (above, below)")
	alertMoveCmd.Flags().StringP("direction", "d", "", "New trigger direction (above, below)")
}

func runAlertAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ticker := strings.ToUpper(strings.TrimSpace(args[0]))
	target, err := decimal.NewFromString(args[1])
	if err != nil || !target.IsPositive() {
		return fmt.Errorf("invalid target price %q", args[1])
	}
	ownerID, _ := cmd.Flags().GetInt64("owner")

	logger := newLogger(cfg)

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	quote := initProviders(cfg, logger).searchChain(logger).Find(cmd.Context(), ticker)
	if quote == nil {
		return fmt.Errorf("ticker %s not found on any provider", ticker)
	}

	direction := model.DirectionAbove
	if target.LessThan(quote.Price) {
		direction = model.DirectionBelow
	}
	if flag, _ := cmd.Flags().GetString("direction"); flag != "" {
		direction, err = model.ParseDirection(flag)
		if err != nil {
			return err
		}
	}

	alert := &model.Alert{
		OwnerID:     ownerID,
		Ticker:      quote.Ticker,
		Exchange:    quote.Exchange,
		CompanyName: quote.CompanyName,
		TargetPrice: target,
		Currency:    quote.Currency,
		Direction:   direction,
		LastPrice:   decimal.NewNullDecimal(quote.Price),
		Active:      true,
	}
	if err := store.CreateAlert(cmd.Context(), alert); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}

	fmt.Printf("Alert created:\n")
	fmt.Printf("  ID:        %s\n", alert.ID)
	fmt.Printf("  Ticker:    %s (%s)\n", alert.Ticker, alert.CompanyName)
	fmt.Printf("  Exchange:  %s\n", alert.Exchange)
	fmt.Printf("  Current:   %s %s\n", quote.Price, alert.Currency)
	fmt.Printf("  Target:    %s %s (%s)\n", alert.TargetPrice, alert.Currency, alert.Direction)

	return nil
}

func runAlertList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ownerID, _ := cmd.Flags().GetInt64("owner")

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	alerts, err := store.ListOwnerAlerts(cmd.Context(), ownerID)
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}
	if len(alerts) == 0 {
		fmt.Println("No active alerts.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTICKER\tEXCHANGE\tDIRECTION\tTARGET\tLAST PRICE")
	for _, a := range alerts {
		last := "-"
		if a.LastPrice.Valid {
			last = a.LastPrice.Decimal.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s %s\t%s\n",
			a.ID, a.Ticker, a.Exchange, a.Direction, a.TargetPrice, a.Currency, last)
	}
	return w.Flush()
}

func runAlertRm(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ownerID, _ := cmd.Flags().GetInt64("owner")

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteAlert(cmd.Context(), args[0], ownerID); err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}

	fmt.Printf("Alert %s deleted.\n", args[0])
	return nil
}

func runAlertMove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	target, err := decimal.NewFromString(args[1])
	if err != nil || !target.IsPositive() {
		return fmt.Errorf("invalid target price %q", args[1])
	}
	ownerID, _ := cmd.Flags().GetInt64("owner")

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	alert, err := store.GetAlert(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get alert: %w", err)
	}

	price := alert.LastPrice.Decimal
	if !alert.LastPrice.Valid {
		price = target
	}

	direction := alert.Direction
	if flag, _ := cmd.Flags().GetString("direction"); flag != "" {
		direction, err = model.ParseDirection(flag)
		if err != nil {
			return err
		}
	} else if alert.LastPrice.Valid {
		// Re-derive from the new target's position relative to the
		// last known price.
		direction = model.DirectionAbove
		if target.LessThan(price) {
			direction = model.DirectionBelow
		}
	}

	if err := store.RetargetAlert(cmd.Context(), args[0], ownerID, target, direction, price); err != nil {
		return fmt.Errorf("retarget alert: %w", err)
	}

	fmt.Printf("Alert %s moved to %s %s (%s).\n", args[0], target, alert.Currency, direction)
	return nil
}
