// Package storage wraps the removable storage device. The Device interface
// is the external block-storage collaborator; Manager layers the device
// presence/busy bookkeeping on top so the rest of the firmware sees a
// uniform, absence-tolerant surface.
package storage

import "errors"

var (
	// ErrAbsent means no card is inserted. Startup continues without it.
	ErrAbsent = errors.New("storage: device absent")

	// ErrUnavailable means an operation needs storage that is not mounted.
	ErrUnavailable = errors.New("storage: unavailable")
)

// Device is the external storage collaborator: mount/unmount plus file
// primitives. Paths are relative to the mount point.
type Device interface {
	Mount() error
	Unmount() error
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	AppendFile(name string, data []byte) error
	List() ([]string, error)
	FreeSpace() (free, total uint64, err error)
}
