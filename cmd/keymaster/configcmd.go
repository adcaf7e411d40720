package main

import (
	"fmt"
	"os"

	"github.com/keymasterhq/keymaster/internal/config"
	"github.com/spf13/cobra"
)

var (
	initSSID  string
	initPSK   string
	initForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage daemon configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default settings",
	Long: `Write a starter config file. Network credentials for the OTA pull path
can be provided with --ssid and --psk; everything else starts at its default
and can be edited in place afterwards.`,
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().StringVar(&initSSID, "ssid", "", "WiFi network name for OTA updates")
	configInitCmd.Flags().StringVar(&initPSK, "psk", "", "WiFi passphrase for OTA updates")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default()
	cfg.WiFi.SSID = initSSID
	cfg.WiFi.PSK = initPSK

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Printf("Config written to %s\n", path)
	return nil
}
