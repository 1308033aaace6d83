package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwulff/steno/history/internal/history"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Backend is the persistent history the daemon serves.
type Backend interface {
	List(ctx context.Context) ([]history.Entry, error)
	Get(ctx context.Context, id int64) (history.Entry, error)
	Add(ctx context.Context, e history.Entry) (history.Entry, error)
	Delete(ctx context.Context, id int64) error
	ToggleFavorite(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
}

// Clipboard receives text copied from the history.
type Clipboard interface {
	Copy(text string) error
}

// Server serves the history protocol and pushes the full history to every
// subscriber after each successful mutation.
type Server struct {
	backend Backend
	clip    Clipboard
	log     *zap.Logger

	maxLine      int
	writeTimeout time.Duration

	mu   sync.Mutex
	subs map[*serverConn]struct{}

	// broadcastMu keeps list-and-enqueue atomic so subscribers never see an
	// older history after a newer one.
	broadcastMu sync.Mutex
}

// eventQueueSize bounds the events waiting for one subscriber. Each event is
// a full snapshot, so a full queue drops its oldest event.
const eventQueueSize = 8

type serverConn struct {
	id           string
	nc           net.Conn
	mu           sync.Mutex
	writeTimeout time.Duration

	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *serverConn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(v)
}

func (c *serverConn) writeLocked(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	_, err = c.nc.Write(data)
	return err
}

func (c *serverConn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.nc.Close()
	})
}

// enqueue queues ev without blocking, discarding the oldest queued snapshot
// when the queue is full. Callers hold broadcastMu.
func (c *serverConn) enqueue(ev Event) {
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case <-c.events:
		default:
		}
	}
}

// writeEvents drains the event queue until the connection closes. A write
// that misses its deadline closes the connection.
func (c *serverConn) writeEvents(log *zap.Logger) {
	for {
		select {
		case ev := <-c.events:
			if err := c.write(ev); err != nil {
				log.Debug("drop subscriber", zap.Error(err))
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

// NewServer creates a Server.
func NewServer(backend Backend, clip Clipboard, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		backend: backend,
		clip:    clip,
		log:     log,
		subs:    make(map[*serverConn]struct{}),

		maxLine:      MaxLineSize,
		writeTimeout: 5 * time.Second,
	}
}

// ListenAndServe removes a stale socket file, listens on socketPath and
// serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, socketPath string) error {
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer os.Remove(socketPath)

	s.log.Info("history daemon listening", zap.String("socket", socketPath))
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or Accept fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		ln.Close()
		return nil
	})

	g.Go(func() error {
		for {
			nc, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			g.Go(func() error {
				s.handleConn(ctx, nc)
				return nil
			})
		}
	})

	return g.Wait()
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	c := &serverConn{
		id:           uuid.NewString(),
		nc:           nc,
		writeTimeout: s.writeTimeout,
		events:       make(chan Event, eventQueueSize),
		closed:       make(chan struct{}),
	}
	log := s.log.With(zap.String("conn", c.id))
	log.Debug("client connected")

	stop := context.AfterFunc(ctx, c.close)
	defer func() {
		stop()
		s.unsubscribe(c)
		c.close()
		log.Debug("client disconnected")
	}()

	scanner := bufio.NewScanner(nc)
	scanner.Buffer(make([]byte, 0, min(64*1024, s.maxLine)), s.maxLine)
	subscribed := false

	for scanner.Scan() {
		var cmd Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			if err := c.write(Response{Error: "invalid command"}); err != nil {
				return
			}
			continue
		}

		if cmd.Cmd == CmdSubscribe {
			// Hold the write lock so no event overtakes the acknowledgement.
			c.mu.Lock()
			s.subscribe(c)
			err := c.writeLocked(Response{OK: true})
			c.mu.Unlock()
			if err != nil {
				return
			}
			if !subscribed {
				subscribed = true
				go c.writeEvents(log)
			}
			continue
		}

		resp, changed := s.dispatch(ctx, cmd)
		if !resp.OK {
			log.Warn("command failed", zap.String("cmd", cmd.Cmd), zap.String("error", resp.Error))
		}
		if err := c.write(resp); err != nil {
			log.Debug("write response", zap.Error(err))
			return
		}

		if changed {
			s.broadcast(ctx)
		}
	}

	if errors.Is(scanner.Err(), bufio.ErrTooLong) {
		log.Warn("command too large", zap.Int("limit", s.maxLine))
		_ = c.write(Response{Error: fmt.Sprintf("command exceeds %d bytes", s.maxLine)})
	}
}

// dispatch runs one command and reports whether the history changed.
func (s *Server) dispatch(ctx context.Context, cmd Command) (Response, bool) {
	switch cmd.Cmd {
	case CmdHistory:
		entries, err := s.backend.List(ctx)
		if err != nil {
			return errorResponse(err), false
		}
		return Response{OK: true, Entries: entries}, false

	case CmdCopy:
		if cmd.ID == nil {
			return Response{Error: "missing id"}, false
		}
		e, err := s.backend.Get(ctx, *cmd.ID)
		if err != nil {
			return errorResponse(err), false
		}
		if err := s.clip.Copy(e.DisplayText()); err != nil {
			return errorResponse(fmt.Errorf("copy to clipboard: %w", err)), false
		}
		return Response{OK: true}, false

	case CmdDelete:
		if cmd.ID == nil {
			return Response{Error: "missing id"}, false
		}
		if err := s.backend.Delete(ctx, *cmd.ID); err != nil {
			return errorResponse(err), false
		}
		return Response{OK: true}, true

	case CmdFavorite:
		if cmd.ID == nil {
			return Response{Error: "missing id"}, false
		}
		if err := s.backend.ToggleFavorite(ctx, *cmd.ID); err != nil {
			return errorResponse(err), false
		}
		return Response{OK: true}, true

	case CmdClear:
		if err := s.backend.Clear(ctx); err != nil {
			return errorResponse(err), false
		}
		return Response{OK: true}, true

	case CmdAdd:
		if cmd.Entry == nil {
			return Response{Error: "missing entry"}, false
		}
		e := *cmd.Entry
		e.ID = 0
		added, err := s.backend.Add(ctx, e)
		if err != nil {
			return errorResponse(err), false
		}
		return Response{OK: true, Entry: &added}, true
	}

	return Response{Error: fmt.Sprintf("unknown command: %q", cmd.Cmd)}, false
}

func errorResponse(err error) Response {
	return Response{Error: err.Error()}
}

func (s *Server) subscribe(c *serverConn) {
	s.mu.Lock()
	s.subs[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) unsubscribe(c *serverConn) {
	s.mu.Lock()
	delete(s.subs, c)
	s.mu.Unlock()
}

func (s *Server) subscribers() []*serverConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*serverConn, 0, len(s.subs))
	for c := range s.subs {
		out = append(out, c)
	}
	return out
}

func (s *Server) broadcast(ctx context.Context) {
	s.broadcastMu.Lock()
	defer s.broadcastMu.Unlock()

	entries, err := s.backend.List(ctx)
	if err != nil {
		s.log.Error("list history for broadcast", zap.Error(err))
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	ev := Event{Event: EventHistory, Entries: entries}
	for _, c := range s.subscribers() {
		c.enqueue(ev)
	}
}
