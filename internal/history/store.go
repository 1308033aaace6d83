package history

import "context"

// Store is the external source of truth for the history.
type Store interface {
	// FetchHistory returns the full current history.
	FetchHistory(ctx context.Context) ([]Entry, error)
	// SubscribeHistoryUpdates calls fn with the full history on every
	// store-side change until ctx is cancelled.
	SubscribeHistoryUpdates(ctx context.Context, fn func([]Entry)) error
	// CopyEntry copies the entry's display text to the system clipboard.
	CopyEntry(ctx context.Context, id int64) error
	DeleteEntry(ctx context.Context, id int64) error
	ToggleFavorite(ctx context.Context, id int64) error
	ClearAllHistory(ctx context.Context) error
}

// Confirmer answers a yes/no question, typically by asking the user.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(prompt string) bool

// Confirm calls f(prompt).
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }
