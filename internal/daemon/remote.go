package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwulff/steno/history/internal/history"
	"go.uber.org/zap"
)

// Remote implements history.Store against a running daemon. Commands use one
// connection; the push subscription uses a second one, as in the steno TUI.
type Remote struct {
	socketPath string
	client     *Client
	log        *zap.Logger
	subErr     chan error
}

var _ history.Store = (*Remote)(nil)

// Dial connects the command connection of a Remote.
func Dial(socketPath string, log *zap.Logger) (*Remote, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client, err := Connect(socketPath)
	if err != nil {
		return nil, err
	}
	return &Remote{
		socketPath: socketPath,
		client:     client,
		log:        log,
		subErr:     make(chan error, 1),
	}, nil
}

// Close closes the command connection. Subscriptions end with their context.
func (r *Remote) Close() error {
	return r.client.Close()
}

// SubscriptionErr receives the error that ended a subscription, unless the
// subscription ended because its context was cancelled.
func (r *Remote) SubscriptionErr() <-chan error {
	return r.subErr
}

func (r *Remote) do(ctx context.Context, cmd Command) (Response, error) {
	resp, err := r.client.Do(ctx, cmd)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", cmd.Cmd, err)
	}
	if !resp.OK {
		return resp, fmt.Errorf("daemon: %s", resp.Error)
	}
	return resp, nil
}

// FetchHistory returns the full history.
func (r *Remote) FetchHistory(ctx context.Context) ([]history.Entry, error) {
	resp, err := r.do(ctx, Command{Cmd: CmdHistory})
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// SubscribeHistoryUpdates opens the event connection and calls fn with the
// full history for every history event until ctx is cancelled.
func (r *Remote) SubscribeHistoryUpdates(ctx context.Context, fn func([]history.Entry)) error {
	evClient, err := Connect(r.socketPath)
	if err != nil {
		return err
	}

	resp, err := evClient.Do(ctx, Command{Cmd: CmdSubscribe, Events: []string{EventHistory}})
	if err != nil {
		evClient.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	if !resp.OK {
		evClient.Close()
		return fmt.Errorf("daemon: %s", resp.Error)
	}

	stop := context.AfterFunc(ctx, func() { evClient.Close() })

	go func() {
		defer stop()
		defer evClient.Close()
		for {
			ev, err := evClient.ReadEvent()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.log.Warn("history subscription ended", zap.Error(err))
				select {
				case r.subErr <- err:
				default:
				}
				return
			}
			if ev.Event != EventHistory {
				continue
			}
			fn(ev.Entries)
		}
	}()

	return nil
}

// CopyEntry asks the daemon to copy the entry's display text to the clipboard.
func (r *Remote) CopyEntry(ctx context.Context, id int64) error {
	_, err := r.do(ctx, Command{Cmd: CmdCopy, ID: IDPtr(id)})
	return err
}

// DeleteEntry asks the daemon to delete an entry.
func (r *Remote) DeleteEntry(ctx context.Context, id int64) error {
	_, err := r.do(ctx, Command{Cmd: CmdDelete, ID: IDPtr(id)})
	return err
}

// ToggleFavorite asks the daemon to flip an entry's favorite flag.
func (r *Remote) ToggleFavorite(ctx context.Context, id int64) error {
	_, err := r.do(ctx, Command{Cmd: CmdFavorite, ID: IDPtr(id)})
	return err
}

// ClearAllHistory asks the daemon to delete every entry.
func (r *Remote) ClearAllHistory(ctx context.Context) error {
	_, err := r.do(ctx, Command{Cmd: CmdClear})
	return err
}

// AddEntry inserts a new transcript and returns it as stored.
func (r *Remote) AddEntry(ctx context.Context, e history.Entry) (history.Entry, error) {
	resp, err := r.do(ctx, Command{Cmd: CmdAdd, Entry: &e})
	if err != nil {
		return history.Entry{}, err
	}
	if resp.Entry == nil {
		return history.Entry{}, errors.New("daemon: add returned no entry")
	}
	return *resp.Entry, nil
}
