// Package clipboard copies text to the system clipboard, either through the
// platform clipboard tools or through the terminal with OSC 52 sequences.
package clipboard

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"
)

// Backend names accepted by Select.
const (
	BackendSystem = "system"
	BackendOSC52  = "osc52"
)

// ErrUnsupported is returned when no system clipboard tool is available.
var ErrUnsupported = errors.New("no system clipboard available")

// Copier puts text on a clipboard.
type Copier interface {
	Copy(text string) error
}

// Select returns the copier for backend. An empty backend means system.
// The osc52 backend writes to w.
func Select(backend string, w io.Writer, tmux bool) (Copier, error) {
	switch backend {
	case "", BackendSystem:
		return System{}, nil
	case BackendOSC52:
		return New(w, tmux), nil
	}
	return nil, fmt.Errorf("unknown clipboard backend %q", backend)
}

// System copies through the platform clipboard (pbcopy, xclip, xsel,
// wl-copy or the Windows API).
type System struct{}

// Copy puts text on the system clipboard.
func (System) Copy(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write system clipboard: %w", err)
	}
	return nil
}

// OSC52 writes OSC 52 clipboard sequences to a terminal.
type OSC52 struct {
	w    io.Writer
	tmux bool
}

// New returns an OSC52 writer on w. When tmux is set the sequence is wrapped
// in a tmux passthrough.
func New(w io.Writer, tmux bool) *OSC52 {
	return &OSC52{w: w, tmux: tmux}
}

// Default writes to stderr and detects tmux from the environment.
func Default() *OSC52 {
	return New(os.Stderr, os.Getenv("TMUX") != "")
}

// Copy puts text on the clipboard.
func (c *OSC52) Copy(text string) error {
	seq := osc52.New(text)
	if c.tmux {
		seq = seq.Tmux()
	}
	if _, err := seq.WriteTo(c.w); err != nil {
		return fmt.Errorf("write osc52: %w", err)
	}
	return nil
}
