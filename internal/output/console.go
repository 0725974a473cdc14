package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConsoleFormatter writes segments as "index: text" lines. Partials rewrite
// the current line in place.
type ConsoleFormatter struct {
	mu      sync.Mutex
	writer  io.Writer
	opts    Options
	open    int // visible width of the partial line, 0 when none is open
	label   lipgloss.Style
	partial lipgloss.Style
	final   lipgloss.Style
	event   lipgloss.Style
}

// NewConsoleFormatter creates a console formatter. Colours are only emitted
// when writer is a terminal.
func NewConsoleFormatter(writer io.Writer, opts Options) *ConsoleFormatter {
	if writer == nil {
		writer = os.Stdout
	}
	r := lipgloss.NewRenderer(writer)
	return &ConsoleFormatter{
		writer:  writer,
		opts:    opts,
		label:   r.NewStyle().Foreground(lipgloss.Color("#874BFD")).Bold(true),
		partial: r.NewStyle().Foreground(lipgloss.Color("240")),
		final:   r.NewStyle(),
		event:   r.NewStyle().Foreground(lipgloss.Color("#B58900")),
	}
}

func (c *ConsoleFormatter) line(seg Segment, style lipgloss.Style) (string, int) {
	prefix := ""
	if c.opts.ShowTimestamp {
		t := seg.Time
		if t.IsZero() {
			t = time.Now()
		}
		prefix = fmt.Sprintf("[%s] ", t.Format("15:04:05"))
	}
	label := fmt.Sprintf("%d:", seg.Index)
	text := c.opts.text(seg.Text)
	plain := prefix + label + " " + text
	return prefix + c.label.Render(label) + " " + style.Render(text), lipgloss.Width(plain)
}

// WritePartial rewrites the current line with the in-progress text
func (c *ConsoleFormatter) WritePartial(seg Segment) error {
	if !c.opts.Partials {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s, width := c.line(seg, c.partial)
	_, err := fmt.Fprintf(c.writer, "\r%s%s", s, c.pad(width))
	c.open = width
	return err
}

// WriteFinal writes the segment and ends the line
func (c *ConsoleFormatter) WriteFinal(seg Segment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, width := c.line(seg, c.final)
	lead := ""
	if c.open > 0 {
		lead = "\r"
	}
	_, err := fmt.Fprintf(c.writer, "%s%s%s\n", lead, s, c.pad(width))
	c.open = 0
	return err
}

// WriteEvent writes a system event on its own line
func (c *ConsoleFormatter) WriteEvent(eventType, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLine()
	_, err := fmt.Fprintln(c.writer, c.event.Render(fmt.Sprintf("[%s] %s", eventType, message)))
	return err
}

// Close ends a dangling partial line
func (c *ConsoleFormatter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLine()
	return nil
}

// pad blanks whatever is left of a longer previous partial
func (c *ConsoleFormatter) pad(width int) string {
	if c.open > width {
		return strings.Repeat(" ", c.open-width)
	}
	return ""
}

func (c *ConsoleFormatter) closeLine() {
	if c.open > 0 {
		fmt.Fprintln(c.writer)
		c.open = 0
	}
}
