package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage per-owner refresh intervals",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the owner's refresh intervals",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the owner's refresh intervals",
	RunE:  runSettingsSet,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)

	settingsCmd.PersistentFlags().Int64P("owner", "o", 0, "Owner id")
	_ = settingsCmd.MarkPersistentFlagRequired("owner")

	settingsSetCmd.Flags().Duration("domestic", 0, "Domestic tier refresh interval (e.g. 60s)")
	settingsSetCmd.Flags().Duration("foreign", 0, "Foreign tier refresh interval (e.g. 3m)")
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
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

	settings, err := store.GetOwnerSettings(cmd.Context(), ownerID)
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}

	fmt.Printf("Owner %d:\n", ownerID)
	fmt.Printf("  Domestic interval:  %s\n", settings.DomesticInterval)
	fmt.Printf("  Foreign interval:   %s\n", settings.ForeignInterval)
	return nil
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ownerID, _ := cmd.Flags().GetInt64("owner")
	domestic, _ := cmd.Flags().GetDuration("domestic")
	foreign, _ := cmd.Flags().GetDuration("foreign")

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	settings, err := store.GetOwnerSettings(cmd.Context(), ownerID)
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}

	if domestic > 0 {
		settings.DomesticInterval = domestic
	}
	if foreign > 0 {
		settings.ForeignInterval = foreign
	}
	if settings.DomesticInterval < time.Second || settings.ForeignInterval < time.Second {
		return fmt.Errorf("intervals must be at least 1s")
	}

	if err := store.UpsertOwnerSettings(cmd.Context(), settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	fmt.Printf("Owner %d settings saved (domestic %s, foreign %s).\n",
		ownerID, settings.DomesticInterval, settings.ForeignInterval)
	return nil
}
