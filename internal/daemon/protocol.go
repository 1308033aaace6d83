// Package daemon provides the client, server and protocol types for the
// steno history daemon, which speaks NDJSON over a Unix socket.
package daemon

import "github.com/jwulff/steno/history/internal/history"

// Command names understood by the daemon.
const (
	CmdHistory   = "history"
	CmdCopy      = "copy"
	CmdDelete    = "delete"
	CmdFavorite  = "favorite"
	CmdClear     = "clear"
	CmdAdd       = "add"
	CmdSubscribe = "subscribe"
)

// MaxLineSize bounds one NDJSON line in either direction. Histories can be
// large.
const MaxLineSize = 16 * 1024 * 1024

// EventHistory is the event carrying the full history after a change.
const EventHistory = "history"

// Command is sent from a client to the daemon.
type Command struct {
	Cmd    string         `json:"cmd"`
	ID     *int64         `json:"id,omitempty"`
	Entry  *history.Entry `json:"entry,omitempty"`
	Events []string       `json:"events,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Entries []history.Entry `json:"entries,omitempty"`
	Entry   *history.Entry  `json:"entry,omitempty"`
}

// Event is streamed from the daemon to subscribed clients.
type Event struct {
	Event   string          `json:"event"`
	Entries []history.Entry `json:"entries"`
}

// IDPtr returns a pointer to an id. Convenience for building commands.
func IDPtr(id int64) *int64 { return &id }
