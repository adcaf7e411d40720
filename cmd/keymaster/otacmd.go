package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/keymasterhq/keymaster/internal/ota"
	"github.com/keymasterhq/keymaster/internal/status"
	"github.com/keymasterhq/keymaster/internal/storage"
	"github.com/spf13/cobra"
)

var otaRepoURL string

var otaCmd = &cobra.Command{
	Use:   "ota",
	Short: "Firmware and asset updates",
}

var otaPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Sync local files from the update repository",
	Long: `Fetch the repository manifest and download every file whose checksum
differs from the local copy. Paths listed under ota.ignore in the config are
never touched. Any failure aborts the sync; already-downloaded files keep
their verified content.`,
	RunE: runOTAPull,
}

func init() {
	otaPullCmd.Flags().StringVar(&otaRepoURL, "repo", "", "update repository URL (overrides config)")
	otaCmd.AddCommand(otaPullCmd)
	rootCmd.AddCommand(otaCmd)
}

func runOTAPull(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	setupLogging(cfg.LogLevel)

	repoURL := cfg.OTA.RepoURL
	if otaRepoURL != "" {
		repoURL = otaRepoURL
	}
	if repoURL == "" {
		return errors.New("no update repository configured (set ota.repo_url or pass --repo)")
	}

	store := status.NewStore(cfg.Core.LogCapacity, cfg.Radio.MaxPayload)
	mgr := storage.NewManager(storage.NewDirDevice(cfg.Storage.Dir), store)
	if err := mgr.Mount(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer mgr.Unmount()

	puller, err := ota.NewHTTPPuller(mgr, ota.Options{
		RepoURL: repoURL,
		Ignore:  cfg.OTA.Ignore,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return err
	}

	if err := puller.Pull(cmd.Context()); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	fmt.Println("Update complete")
	return nil
}
