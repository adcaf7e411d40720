package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keymasterhq/keymaster/internal/bridge"
	"github.com/keymasterhq/keymaster/internal/button"
	"github.com/keymasterhq/keymaster/internal/config"
	"github.com/keymasterhq/keymaster/internal/core"
	"github.com/keymasterhq/keymaster/internal/display"
	"github.com/keymasterhq/keymaster/internal/gatt"
	"github.com/keymasterhq/keymaster/internal/indicator"
	"github.com/keymasterhq/keymaster/internal/status"
	"github.com/keymasterhq/keymaster/internal/storage"
	"github.com/spf13/cobra"
)

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	setupLogging(cfg.LogLevel)
	printBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := status.NewStore(cfg.Core.LogCapacity, cfg.Radio.MaxPayload)

	radio := gatt.NewTinygoRadio()
	sessOpts := gatt.DefaultOptions()
	sessOpts.MaxPayload = cfg.Radio.MaxPayload
	sessOpts.BackoffBase = time.Duration(cfg.Radio.BackoffBaseMs) * time.Millisecond
	sessOpts.BackoffMax = time.Duration(cfg.Radio.BackoffMaxMs) * time.Millisecond
	session := gatt.NewSession(radio, store, sessOpts)

	ind := indicator.New(indicator.DebugLED{}, indicator.DefaultOptions())

	var screen display.Screen
	if cfg.Display.Enabled {
		screen = display.NewTermScreen(os.Stdout)
	}
	presenter := display.NewPresenter(screen)

	mgr := storage.NewManager(storage.NewDirDevice(cfg.Storage.Dir), store)
	if err := mgr.Mount(); err == nil {
		if free, total, err := mgr.FreeSpace(); err == nil {
			slog.Info("[Storage] mounted", "dir", cfg.Storage.Dir,
				"free_mb", free>>20, "total_mb", total>>20)
		}
	}

	var buttonEvs chan button.Event
	if cfg.Button.ValueFile != "" {
		buttonEvs = make(chan button.Event, 8)
		btnOpts := button.DefaultOptions()
		btnOpts.Debounce = time.Duration(cfg.Button.DebounceMs) * time.Millisecond
		btnOpts.LongPress = time.Duration(cfg.Button.LongPressMs) * time.Millisecond
		line := button.NewSysfsLine(cfg.Button.ValueFile)
		go button.Run(ctx, line, button.SystemClock, btnOpts, buttonEvs)
	}

	c := core.New(store, session, radio.Events(), buttonEvs, ind, presenter, mgr,
		core.Options{Tick: time.Duration(cfg.Core.TickMs) * time.Millisecond})

	if cfg.Bridge.Port != "" {
		port, err := bridge.OpenPort(cfg.Bridge.Port, cfg.Bridge.Baud)
		if err != nil {
			return fmt.Errorf("bridge: %w", err)
		}
		br := bridge.New(port, session)
		c.SetNotifyHandler(br)
		go func() {
			if err := br.Run(ctx); err != nil {
				slog.Error("[Bridge] stopped", "error", err)
			}
		}()
	}

	return c.Run(ctx)
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== keymaster ===")
	fmt.Printf("  Device:  %s\n", cfg.DeviceName)
	fmt.Printf("  Service: %s\n", gatt.ServiceUUID)
	fmt.Printf("  Storage: %s\n", cfg.Storage.Dir)
	if cfg.Bridge.Port != "" {
		fmt.Printf("  Bridge:  %s @ %d\n", cfg.Bridge.Port, cfg.Bridge.Baud)
	}
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("=================")
}
