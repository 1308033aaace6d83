package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jwulff/steno/history/internal/history"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("entry not found")

// memBackend is an in-memory Backend.
type memBackend struct {
	mu      sync.Mutex
	entries map[int64]history.Entry
	nextID  int64
}

func newMemBackend(transcripts ...string) *memBackend {
	b := &memBackend{entries: make(map[int64]history.Entry)}
	for _, tr := range transcripts {
		b.Add(context.Background(), history.Entry{Transcript: tr})
	}
	return b
}

func (b *memBackend) List(ctx context.Context) ([]history.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]history.Entry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (b *memBackend) Get(ctx context.Context, id int64) (history.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return history.Entry{}, errNotFound
	}
	return e, nil
}

func (b *memBackend) Add(ctx context.Context, e history.Entry) (history.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	e.ID = b.nextID
	e.WordCount = history.CountWords(e.Transcript)
	b.entries[e.ID] = e
	return e, nil
}

func (b *memBackend) Delete(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, id)
	return nil
}

func (b *memBackend) ToggleFavorite(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[id]; ok {
		e.Favorite = !e.Favorite
		b.entries[id] = e
	}
	return nil
}

func (b *memBackend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[int64]history.Entry)
	return nil
}

type recordingClipboard struct {
	mu     sync.Mutex
	copied []string
}

func (c *recordingClipboard) Copy(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.copied = append(c.copied, text)
	return nil
}

func (c *recordingClipboard) Last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.copied) == 0 {
		return ""
	}
	return c.copied[len(c.copied)-1]
}

func startServer(t *testing.T, backend Backend, clip Clipboard) string {
	t.Helper()
	return serveTest(t, NewServer(backend, clip, nil))
}

func serveTest(t *testing.T, srv *Server) string {
	t.Helper()

	sockPath := filepath.Join(t.TempDir(), "h.sock")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, sockPath) }()

	require.Eventually(t, func() bool {
		c, err := Connect(sockPath)
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond, "server did not start")

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return sockPath
}

func TestServerHistoryAndCommands(t *testing.T) {
	backend := newMemBackend("first note", "second note")
	clip := &recordingClipboard{}
	sockPath := startServer(t, backend, clip)

	remote, err := Dial(sockPath, nil)
	require.NoError(t, err)
	defer remote.Close()
	ctx := context.Background()

	entries, err := remote.FetchHistory(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(2), entries[0].ID)

	require.NoError(t, remote.ToggleFavorite(ctx, 1))
	e, _ := backend.Get(ctx, 1)
	require.True(t, e.Favorite)

	require.NoError(t, remote.CopyEntry(ctx, 2))
	require.Equal(t, "second note", clip.Last())

	err = remote.CopyEntry(ctx, 99)
	require.ErrorContains(t, err, "entry not found")

	require.NoError(t, remote.DeleteEntry(ctx, 99), "deleting a missing id is a no-op")
	require.NoError(t, remote.DeleteEntry(ctx, 1))

	added, err := remote.AddEntry(ctx, history.Entry{Transcript: "three little words"})
	require.NoError(t, err)
	require.Equal(t, int64(3), added.ID)
	require.Equal(t, 3, added.WordCount)

	require.NoError(t, remote.ClearAllHistory(ctx))
	entries, err = remote.FetchHistory(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestServerUnknownCommand(t *testing.T) {
	sockPath := startServer(t, newMemBackend(), &recordingClipboard{})

	client, err := Connect(sockPath)
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.SendCommand(Command{Cmd: "explode"})
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")

	resp, err = client.SendCommand(Command{Cmd: CmdDelete})
	require.NoError(t, err)
	require.Equal(t, "missing id", resp.Error)
}

func TestServerBroadcastsAfterMutation(t *testing.T) {
	backend := newMemBackend("keep me", "drop me")
	sockPath := startServer(t, backend, &recordingClipboard{})

	remote, err := Dial(sockPath, nil)
	require.NoError(t, err)
	defer remote.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pushes := make(chan []history.Entry, 4)
	require.NoError(t, remote.SubscribeHistoryUpdates(ctx, func(e []history.Entry) { pushes <- e }))

	require.NoError(t, remote.DeleteEntry(context.Background(), 2))

	select {
	case entries := <-pushes:
		require.Len(t, entries, 1)
		require.Equal(t, "keep me", entries[0].Transcript)
	case <-time.After(2 * time.Second):
		t.Fatal("no push after delete")
	}

	require.NoError(t, remote.ClearAllHistory(context.Background()))
	select {
	case entries := <-pushes:
		require.NotNil(t, entries)
		require.Empty(t, entries)
	case <-time.After(2 * time.Second):
		t.Fatal("no push after clear")
	}
}

func TestControllerAgainstServer(t *testing.T) {
	backend := newMemBackend("Hallo Welt", "Zweiter Eintrag")
	sockPath := startServer(t, backend, &recordingClipboard{})

	remote, err := Dial(sockPath, nil)
	require.NoError(t, err)
	defer remote.Close()

	c := history.NewController(remote)
	defer c.Close()

	require.NoError(t, c.Load(context.Background()))
	require.Equal(t, 2, c.Len())

	require.NoError(t, c.ToggleFavorite(context.Background(), 1))
	c.SetFilterMode(history.FilterFavorites)

	require.Eventually(t, func() bool {
		v := c.View()
		return len(v) == 1 && v[0].ID == 1 && v[0].Favorite
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.ClearAll(context.Background(), history.ConfirmFunc(func(string) bool { return true })))
	require.Eventually(t, func() bool { return c.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStalledSubscriberDoesNotBlockCommands(t *testing.T) {
	srv := NewServer(newMemBackend(), &recordingClipboard{}, nil)
	srv.writeTimeout = 200 * time.Millisecond
	sockPath := serveTest(t, srv)

	// Subscribes and then never reads its events.
	stalled, err := Connect(sockPath)
	require.NoError(t, err)
	defer stalled.Close()
	resp, err := stalled.SendCommand(Command{Cmd: CmdSubscribe, Events: []string{EventHistory}})
	require.NoError(t, err)
	require.True(t, resp.OK)

	healthy, err := Dial(sockPath, nil)
	require.NoError(t, err)
	defer healthy.Close()

	subCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var mu sync.Mutex
	var latest []history.Entry
	require.NoError(t, healthy.SubscribeHistoryUpdates(subCtx, func(e []history.Entry) {
		mu.Lock()
		latest = e
		mu.Unlock()
	}))

	writer, err := Dial(sockPath, nil)
	require.NoError(t, err)
	defer writer.Close()

	big := strings.Repeat("wort ", 10*1024)
	const adds = 20
	for i := range adds {
		ctx, cancelAdd := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := writer.AddEntry(ctx, history.Entry{Transcript: fmt.Sprintf("%d %s", i, big)})
		cancelAdd()
		require.NoError(t, err, "add #%d", i)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == adds
	}, 5*time.Second, 20*time.Millisecond, "healthy subscriber should converge")
}

func TestEnqueueKeepsNewestSnapshot(t *testing.T) {
	c := &serverConn{events: make(chan Event, 2), closed: make(chan struct{})}
	for i := range 5 {
		c.enqueue(Event{Event: EventHistory, Entries: make([]history.Entry, i)})
	}
	require.Len(t, c.events, 2)
	<-c.events
	last := <-c.events
	require.Len(t, last.Entries, 4)
}

func TestOversizedCommandGetsErrorResponse(t *testing.T) {
	srv := NewServer(newMemBackend(), &recordingClipboard{}, nil)
	srv.maxLine = 1024
	sockPath := serveTest(t, srv)

	client, err := Connect(sockPath)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Do(ctx, Command{Cmd: CmdAdd, Entry: &history.Entry{Transcript: strings.Repeat("x", 4096)}})
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "exceeds 1024 bytes")
}
