package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CopyMarkerDuration is how long the copied marker stays on an entry.
const CopyMarkerDuration = 1500 * time.Millisecond

// ClearAllPrompt is the question put to a Confirmer before clearing.
const ClearAllPrompt = "Delete all history entries?"

// Timer is the part of *time.Timer the controller needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for command failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithAfterFunc replaces time.AfterFunc for the copy marker timer.
func WithAfterFunc(fn AfterFunc) Option {
	return func(c *Controller) { c.afterFunc = fn }
}

// Controller keeps an in-memory mirror of the store's history. Pushes from
// the store always replace the mirror wholesale; local favorite toggles are
// applied optimistically and never rolled back except by the next push.
type Controller struct {
	store     Store
	log       *zap.Logger
	afterFunc AfterFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	entries      []Entry
	mode         FilterMode
	query        string
	copied       int64
	hasCopied    bool
	copyGen      uint64
	copyTimer    Timer
	clearPending bool
	subscribed   bool
	pushes       uint64

	listenersMu sync.Mutex
	listeners   map[int]func()
	nextID      int
}

// NewController creates a Controller backed by store.
func NewController(store Store, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:     store,
		log:       zap.NewNop(),
		afterFunc: realAfterFunc,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close ends the push subscription and stops the copy marker timer.
func (c *Controller) Close() {
	c.cancel()
	c.mu.Lock()
	if c.copyTimer != nil {
		c.copyTimer.Stop()
		c.copyTimer = nil
	}
	c.mu.Unlock()
}

// OnChange registers fn to be called after every state change and returns
// a function that removes it. Listeners run without the controller lock held.
func (c *Controller) OnChange(fn func()) (cancel func()) {
	c.listenersMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Controller) notify() {
	c.listenersMu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Load subscribes to store pushes (once per controller) and replaces the
// mirror with a fresh fetch. On fetch failure the mirror is emptied. A failed
// subscription is returned as ErrSubscribeFailed, joined with any fetch error,
// and retried by the next Load; the fetched history is still applied.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	subscribe := !c.subscribed
	c.subscribed = true
	pushesBefore := c.pushes
	c.mu.Unlock()

	var subErr error
	if subscribe {
		if err := c.store.SubscribeHistoryUpdates(c.ctx, c.OnExternalUpdate); err != nil {
			c.log.Warn("subscribe history updates", zap.Error(err))
			c.mu.Lock()
			c.subscribed = false
			c.mu.Unlock()
			subErr = fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
		}
	}

	entries, err := c.store.FetchHistory(ctx)

	c.mu.Lock()
	if err != nil {
		c.entries = nil
		c.mu.Unlock()
		c.notify()
		return errors.Join(fmt.Errorf("%w: %w", ErrFetchFailed, err), subErr)
	}
	if c.pushes != pushesBefore {
		// A push landed while fetching and is at least as new.
		c.mu.Unlock()
		return subErr
	}
	c.entries = cloneEntries(entries)
	c.mu.Unlock()

	c.notify()
	return subErr
}

// OnExternalUpdate replaces the mirror with entries pushed by the store.
func (c *Controller) OnExternalUpdate(entries []Entry) {
	c.mu.Lock()
	c.entries = cloneEntries(entries)
	c.pushes++
	c.mu.Unlock()

	c.notify()
}

// Copy asks the store to copy the entry to the clipboard and, once it has
// confirmed, marks id as copied for CopyMarkerDuration.
func (c *Controller) Copy(ctx context.Context, id int64) error {
	if err := c.store.CopyEntry(ctx, id); err != nil {
		return c.commandFailed("copy", id, err)
	}

	c.mu.Lock()
	if c.copyTimer != nil {
		c.copyTimer.Stop()
	}
	c.copyGen++
	gen := c.copyGen
	c.copied = id
	c.hasCopied = true
	c.copyTimer = c.afterFunc(CopyMarkerDuration, func() { c.expireCopy(gen) })
	c.mu.Unlock()

	c.notify()
	return nil
}

func (c *Controller) expireCopy(gen uint64) {
	c.mu.Lock()
	if gen != c.copyGen || !c.hasCopied {
		c.mu.Unlock()
		return
	}
	c.hasCopied = false
	c.copied = 0
	c.copyTimer = nil
	c.mu.Unlock()

	c.notify()
}

// DeleteEntry asks the store to delete id. The mirror changes only when the
// store pushes the new history.
func (c *Controller) DeleteEntry(ctx context.Context, id int64) error {
	if err := c.store.DeleteEntry(ctx, id); err != nil {
		return c.commandFailed("delete", id, err)
	}
	return nil
}

// ToggleFavorite flips the local favorite flag of id immediately and asks
// the store to do the same. A failed command leaves the optimistic value in
// place until the next push.
func (c *Controller) ToggleFavorite(ctx context.Context, id int64) error {
	c.mu.Lock()
	changed := false
	for i := range c.entries {
		if c.entries[i].ID == id {
			c.entries[i].Favorite = !c.entries[i].Favorite
			changed = true
			break
		}
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}

	if err := c.store.ToggleFavorite(ctx, id); err != nil {
		return c.commandFailed("toggle favorite", id, err)
	}
	return nil
}

// RequestClearAll opens the confirmation gate for clearing the history.
func (c *Controller) RequestClearAll() {
	c.setClearPending(true)
}

// CancelClearAll closes the confirmation gate without touching the store.
func (c *Controller) CancelClearAll() {
	c.setClearPending(false)
}

// ClearPending reports whether a clear-all request awaits confirmation.
func (c *Controller) ClearPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearPending
}

func (c *Controller) setClearPending(v bool) {
	c.mu.Lock()
	changed := c.clearPending != v
	c.clearPending = v
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// ConfirmClearAll sends the clear command for a pending request. The mirror
// is left alone until the store pushes the emptied history.
func (c *Controller) ConfirmClearAll(ctx context.Context) error {
	c.mu.Lock()
	if !c.clearPending {
		c.mu.Unlock()
		return ErrNoPendingClear
	}
	c.clearPending = false
	c.mu.Unlock()
	c.notify()

	if err := c.store.ClearAllHistory(ctx); err != nil {
		c.log.Warn("history command failed", zap.String("command", "clear"), zap.Error(err))
		return fmt.Errorf("%w: clear: %w", ErrCommandFailed, err)
	}
	return nil
}

// ClearAll asks gate for confirmation and clears the history if it agrees.
// A declined confirmation returns ErrClearDeclined and sends nothing.
func (c *Controller) ClearAll(ctx context.Context, gate Confirmer) error {
	c.RequestClearAll()
	if gate == nil || !gate.Confirm(ClearAllPrompt) {
		c.CancelClearAll()
		return ErrClearDeclined
	}
	err := c.ConfirmClearAll(ctx)
	if errors.Is(err, ErrNoPendingClear) {
		// Cancelled concurrently while the gate was open.
		return ErrClearDeclined
	}
	return err
}

// SetFilterMode changes which entries View keeps.
func (c *Controller) SetFilterMode(mode FilterMode) {
	c.mu.Lock()
	changed := c.mode != mode
	c.mode = mode
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// FilterMode returns the current filter mode.
func (c *Controller) FilterMode() FilterMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetSearchQuery changes the search applied by View.
func (c *Controller) SetSearchQuery(q string) {
	c.mu.Lock()
	changed := c.query != q
	c.query = q
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// SearchQuery returns the current search query.
func (c *Controller) SearchQuery() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// CopiedID returns the id currently marked as copied, if any.
func (c *Controller) CopiedID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copied, c.hasCopied
}

// Len returns the number of mirrored entries, ignoring filters.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries returns a copy of the unfiltered mirror.
func (c *Controller) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneEntries(c.entries)
}

// View returns the mirror filtered by the current mode and search query.
func (c *Controller) View() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Filter(c.entries, c.mode, c.query)
}

func (c *Controller) commandFailed(cmd string, id int64, err error) error {
	c.log.Warn("history command failed",
		zap.String("command", cmd),
		zap.Int64("id", id),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %s %d: %w", ErrCommandFailed, cmd, id, err)
}

func cloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
