package app

import "github.com/jwulff/steno/history/internal/daemon"

// DaemonConnectedMsg is sent when the command connection is established.
type DaemonConnectedMsg struct {
	Remote *daemon.Remote
}

// DaemonConnectErrorMsg is sent when the daemon connection fails.
type DaemonConnectErrorMsg struct {
	Err error
}

// SubscriptionErrorMsg is sent when the history push stream breaks.
type SubscriptionErrorMsg struct {
	Err error
}

// HistoryLoadedMsg reports the result of the initial fetch.
type HistoryLoadedMsg struct {
	Err error
}

// StateChangedMsg signals that the controller state changed and the view
// should be redrawn.
type StateChangedMsg struct{}

// CommandErrorMsg carries a failed history command.
type CommandErrorMsg struct {
	Err error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}
