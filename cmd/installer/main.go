package main

import (
	"context"
	"fmt"
	"os"
	"storefront-payments/internal/client"
	"storefront-payments/internal/config"
	"storefront-payments/internal/installer"
	"storefront-payments/internal/logging"
	"storefront-payments/internal/repository"

	"github.com/spf13/cobra"
)

var Version = "dev"

var databaseURL string

func main() {
	rootCmd := &cobra.Command{
		Use:          "installer",
		Short:        "Install and upgrade storefront payment configuration",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "override DATABASE_URL")

	rootCmd.AddCommand(upgradeCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(removeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func open() (installer.Installer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Log, cfg.Environment.Name)

	dbCfg := cfg.Database
	if databaseURL != "" {
		dbCfg.URL = databaseURL
	}
	db, err := client.OpenDatabase(dbCfg)
	if err != nil {
		return nil, err
	}
	return installer.NewInstaller(db, repository.NewConfigurationRepository(db), installer.Defaults()...)
}

func upgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "upgrade [plugin...]",
		Aliases: []string{"install"},
		Short:   "Install missing plugins and apply pending upgrade steps",
		Long: `Apply every configuration step newer than the installed version.

Without arguments every plugin is upgraded in install order. Re-running
is safe: plugins that are up to date are left untouched.

Examples:
  installer install
  installer upgrade paypalr braintree`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := open()
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = inst.Plugins()
			}

			ctx := context.Background()
			for _, name := range names {
				applied, err := inst.Upgrade(ctx, name)
				if err != nil {
					return fmt.Errorf("upgrade %s: %w", name, err)
				}
				if len(applied) == 0 {
					fmt.Printf("%s: up to date\n", name)
					continue
				}
				fmt.Printf("%s: applied %v\n", name, applied)
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show installed and latest versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := open()
			if err != nil {
				return err
			}
			status, err := inst.Status(context.Background())
			if err != nil {
				return err
			}

			fmt.Printf("%-12s %-10s %-10s %s\n", "PLUGIN", "INSTALLED", "LATEST", "PENDING")
			for _, s := range status {
				installed := s.Installed
				if installed == "" {
					installed = "-"
				}
				fmt.Printf("%-12s %-10s %-10s %d\n", s.Name, installed, s.Latest, s.Pending)
			}
			return nil
		},
	}
}

func removeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "remove <plugin>",
		Short: "Delete every configuration key a plugin owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to remove %s without --yes", args[0])
			}
			inst, err := open()
			if err != nil {
				return err
			}
			removed, err := inst.Remove(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: removed %d keys\n", args[0], removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm removal")
	return cmd
}
