package button

import (
	"bytes"
	"fmt"
	"os"
)

// SysfsLine reads a GPIO level from a sysfs value file (for example
// /sys/class/gpio/gpio0/value). The line is active-low: a raw "0" means
// the button is held.
type SysfsLine struct {
	path string
}

// NewSysfsLine creates a line backed by the given value file. The file is
// opened per read; sysfs GPIO values cannot be cached.
func NewSysfsLine(path string) *SysfsLine {
	return &SysfsLine{path: path}
}

func (l *SysfsLine) Pressed() (bool, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return false, fmt.Errorf("button: read %s: %w", l.path, err)
	}
	return bytes.HasPrefix(bytes.TrimSpace(raw), []byte("0")), nil
}
