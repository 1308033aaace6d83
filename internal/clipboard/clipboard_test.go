package clipboard

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestCopyWritesSequence(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, false).Copy("Hallo Welt"); err != nil {
		t.Fatalf("Copy: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "\x1b]52;") {
		t.Errorf("output %q does not start with OSC 52", out)
	}
	if !strings.Contains(out, base64.StdEncoding.EncodeToString([]byte("Hallo Welt"))) {
		t.Errorf("output %q does not carry the encoded text", out)
	}
}

func TestCopyTmuxPassthrough(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, true).Copy("x"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "\x1bPtmux;") {
		t.Errorf("output %q not wrapped for tmux", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestCopyWriteError(t *testing.T) {
	if err := New(failingWriter{}, false).Copy("x"); err == nil {
		t.Error("expected write error")
	}
}

func TestSelect(t *testing.T) {
	var buf bytes.Buffer

	for _, backend := range []string{"", BackendSystem} {
		c, err := Select(backend, &buf, false)
		if err != nil {
			t.Fatalf("Select(%q): %v", backend, err)
		}
		if _, ok := c.(System); !ok {
			t.Errorf("Select(%q) = %T, want System", backend, c)
		}
	}

	c, err := Select(BackendOSC52, &buf, true)
	if err != nil {
		t.Fatalf("Select(osc52): %v", err)
	}
	osc, ok := c.(*OSC52)
	if !ok {
		t.Fatalf("Select(osc52) = %T, want *OSC52", c)
	}
	if osc.w != &buf || !osc.tmux {
		t.Error("osc52 copier should keep writer and tmux setting")
	}

	if _, err := Select("pigeon", &buf, false); err == nil {
		t.Error("expected error for unknown backend")
	}
}
