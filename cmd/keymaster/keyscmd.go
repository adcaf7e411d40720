package main

import (
	"errors"
	"fmt"

	"github.com/keymasterhq/keymaster/internal/keystore"
	"github.com/keymasterhq/keymaster/internal/status"
	"github.com/keymasterhq/keymaster/internal/storage"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the sealed key store",
	Long: `Inspect and edit the key file on removable storage. Values are sealed
under the device secret from the config (keystore.secret); the file on disk
never contains plaintext.`,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored key names",
	RunE: func(cmd *cobra.Command, args []string) error {
		ks, cleanup, err := openKeystore()
		if err != nil {
			return err
		}
		defer cleanup()

		names, err := ks.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("(empty)")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var keysGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print a stored value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ks, cleanup, err := openKeystore()
		if err != nil {
			return err
		}
		defer cleanup()

		value, err := ks.Get(args[0])
		if errors.Is(err, keystore.ErrNotFound) {
			return fmt.Errorf("no key named %q", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var keysAddCmd = &cobra.Command{
	Use:   "add <name> <value>",
	Short: "Store a value, replacing any existing entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ks, cleanup, err := openKeystore()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := ks.Add(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Stored %q\n", args[0])
		return nil
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a stored key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ks, cleanup, err := openKeystore()
		if err != nil {
			return err
		}
		defer cleanup()

		removed, err := ks.Delete(args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("no key named %q", args[0])
		}
		fmt.Printf("Deleted %q\n", args[0])
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysListCmd, keysGetCmd, keysAddCmd, keysDeleteCmd)
	rootCmd.AddCommand(keysCmd)
}

// openKeystore mounts storage and opens the sealed store. The cleanup func
// unmounts when the command is done.
func openKeystore() (*keystore.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	setupLogging(cfg.LogLevel)

	if cfg.Keystore.Secret == "" {
		return nil, nil, errors.New("no device secret configured (set keystore.secret)")
	}

	store := status.NewStore(cfg.Core.LogCapacity, cfg.Radio.MaxPayload)
	mgr := storage.NewManager(storage.NewDirDevice(cfg.Storage.Dir), store)
	if err := mgr.Mount(); err != nil {
		return nil, nil, fmt.Errorf("storage: %w", err)
	}

	ks, err := keystore.New(mgr, cfg.Keystore.Secret)
	if err != nil {
		mgr.Unmount()
		return nil, nil, err
	}
	return ks, mgr.Unmount, nil
}
