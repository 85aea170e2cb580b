package toast

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// ConsoleRenderer prints each new toast as a bordered box, for operators
// running quotesync in a terminal.
type ConsoleRenderer struct {
	mu    sync.Mutex
	w     io.Writer
	box   lipgloss.Style
	title lipgloss.Style
}

func NewConsoleRenderer(w io.Writer) *ConsoleRenderer {
	return &ConsoleRenderer{
		w: w,
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#28a745")).
			Padding(0, 2).
			Width(48),
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#20c997")),
	}
}

func (c *ConsoleRenderer) Shown(t Toast) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body := lipgloss.JoinVertical(lipgloss.Left, c.title.Render("✔ "+t.Title), t.Message)
	fmt.Fprintln(c.w, c.box.Render(body))
}

// Removed is a no-op: terminal output scrolls away on its own.
func (c *ConsoleRenderer) Removed(Toast) {}
