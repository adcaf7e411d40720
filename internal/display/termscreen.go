package display

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// TermScreen renders the zones as styled blocks on a terminal, standing in
// for the hardware panel during development and on headless hosts.
type TermScreen struct {
	w io.Writer

	titleStyle   lipgloss.Style
	connStyle    lipgloss.Style
	logStyle     lipgloss.Style
	storageStyle lipgloss.Style
}

// NewTermScreen creates a terminal screen writing to w.
func NewTermScreen(w io.Writer) *TermScreen {
	return &TermScreen{
		w:            w,
		titleStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("17")).Padding(0, 1),
		connStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		logStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		storageStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

// Init draws the title banner.
func (s *TermScreen) Init() error {
	if s.w == nil {
		return fmt.Errorf("display: no output writer")
	}
	_, err := fmt.Fprintln(s.w, s.titleStyle.Render("KeyMaster BLE Server"))
	if err != nil {
		return fmt.Errorf("display: init: %w", err)
	}
	return nil
}

// DrawZone prints the zone's new content with its style.
func (s *TermScreen) DrawZone(z Zone, text string) error {
	var style lipgloss.Style
	switch z {
	case ZoneConnection:
		style = s.connStyle
	case ZoneLog:
		style = s.logStyle
	case ZoneStorage:
		style = s.storageStyle
	}
	if text == "" {
		return nil
	}
	if _, err := fmt.Fprintln(s.w, style.Render(text)); err != nil {
		return fmt.Errorf("display: draw %s: %w", z, err)
	}
	return nil
}
