package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// DirDevice implements Device over a host directory, the mount point the
// kernel exposes for the SD card. A missing directory means no card.
type DirDevice struct {
	root    string
	mounted bool
}

// NewDirDevice creates a device rooted at dir. Nothing is touched until
// Mount.
func NewDirDevice(dir string) *DirDevice {
	return &DirDevice{root: dir}
}

func (d *DirDevice) Mount() error {
	info, err := os.Stat(d.root)
	if os.IsNotExist(err) {
		return ErrAbsent
	}
	if err != nil {
		return fmt.Errorf("storage: stat %s: %w", d.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage: %s is not a directory", d.root)
	}
	d.mounted = true
	return nil
}

func (d *DirDevice) Unmount() error {
	d.mounted = false
	return nil
}

func (d *DirDevice) ReadFile(name string) ([]byte, error) {
	if !d.mounted {
		return nil, ErrUnavailable
	}
	data, err := os.ReadFile(filepath.Join(d.root, name))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

func (d *DirDevice) WriteFile(name string, data []byte) error {
	if !d.mounted {
		return ErrUnavailable
	}
	path := filepath.Join(d.root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	return nil
}

func (d *DirDevice) AppendFile(name string, data []byte) error {
	if !d.mounted {
		return ErrUnavailable
	}
	f, err := os.OpenFile(filepath.Join(d.root, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("storage: append %s: %w", name, err)
	}
	return nil
}

func (d *DirDevice) List() ([]string, error) {
	if !d.mounted {
		return nil, ErrUnavailable
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", d.root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (d *DirDevice) FreeSpace() (free, total uint64, err error) {
	if !d.mounted {
		return 0, 0, ErrUnavailable
	}
	var st syscall.Statfs_t
	if err := syscall.Statfs(d.root, &st); err != nil {
		return 0, 0, fmt.Errorf("storage: statfs %s: %w", d.root, err)
	}
	bsize := uint64(st.Bsize)
	return st.Bavail * bsize, st.Blocks * bsize, nil
}
