package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/keymasterhq/keymaster/internal/status"
)

// Manager front-ends a Device with the status store bookkeeping: it flips
// storage presence at mount/unmount, marks the busy flag for the duration of
// every operation, and guarantees the flag clears on every exit path. The
// mutex also serializes the OTA puller against the coordination loop's
// storage access.
type Manager struct {
	mu      sync.Mutex
	dev     Device
	store   *status.Store
	mounted bool
}

// NewManager creates a manager; nothing is mounted yet.
func NewManager(dev Device, store *status.Store) *Manager {
	return &Manager{dev: dev, store: store}
}

// Mount attempts to mount the device. Absence is not an error worth
// stopping for: the flag is recorded and the device keeps running.
func (m *Manager) Mount() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.SetStorage(false, true)
	err := m.dev.Mount()
	if errors.Is(err, ErrAbsent) {
		m.store.SetStorage(false, false)
		m.store.AppendLog("SD: not available")
		slog.Info("[Storage] no card present")
		return ErrAbsent
	}
	if err != nil {
		m.store.SetStorage(false, false)
		m.store.AppendLog("SD: mount failed")
		slog.Warn("[Storage] mount failed", "error", err)
		return fmt.Errorf("storage: mount: %w", err)
	}

	m.mounted = true
	m.store.SetStorage(true, false)
	m.store.AppendLog("SD: mounted")
	slog.Info("[Storage] mounted")
	return nil
}

// Unmount releases the device.
func (m *Manager) Unmount() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.mounted {
		return
	}
	if err := m.dev.Unmount(); err != nil {
		slog.Warn("[Storage] unmount failed", "error", err)
	}
	m.mounted = false
	m.store.SetStorage(false, false)
	m.store.AppendLog("SD: unmounted")
}

// Mounted reports whether storage is currently usable.
func (m *Manager) Mounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

// ReadFile reads a file from storage.
func (m *Manager) ReadFile(name string) ([]byte, error) {
	var data []byte
	err := m.do(func() error {
		var err error
		data, err = m.dev.ReadFile(name)
		return err
	})
	return data, err
}

// WriteFile writes a file to storage.
func (m *Manager) WriteFile(name string, data []byte) error {
	return m.do(func() error { return m.dev.WriteFile(name, data) })
}

// AppendFile appends to a file on storage.
func (m *Manager) AppendFile(name string, data []byte) error {
	return m.do(func() error { return m.dev.AppendFile(name, data) })
}

// List returns the file names at the mount root.
func (m *Manager) List() ([]string, error) {
	var names []string
	err := m.do(func() error {
		var err error
		names, err = m.dev.List()
		return err
	})
	return names, err
}

// FreeSpace returns free and total bytes.
func (m *Manager) FreeSpace() (free, total uint64, err error) {
	err = m.do(func() error {
		var err error
		free, total, err = m.dev.FreeSpace()
		return err
	})
	return free, total, err
}

// do runs one storage operation with the busy flag held. The deferred clear
// covers every exit path, including I/O failure, so the busy indication can
// never stick.
func (m *Manager) do(op func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.mounted {
		return ErrUnavailable
	}

	m.store.SetStorage(true, true)
	defer m.store.SetStorage(true, false)

	if err := op(); err != nil {
		slog.Warn("[Storage] operation failed", "error", err)
		return err
	}
	return nil
}
