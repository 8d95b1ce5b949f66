package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/khanglvm/profile-qa/internal/logging"
)

const (
	// DefaultQueryTimeout bounds one query round-trip.
	DefaultQueryTimeout = 15 * time.Second
	// DefaultInitTimeout bounds waiting for the ready signal.
	DefaultInitTimeout = 60 * time.Second

	cleanupWait = 500 * time.Millisecond
)

// Engine is an asynchronous inference backend as seen by the orchestrator.
type Engine interface {
	Name() string
	Start(ctx context.Context) error
	Query(ctx context.Context, req Request) (*Success, error)
	Available() bool
	Close() error
}

// Conn is a bidirectional message stream to one engine. Close terminates it.
type Conn interface {
	io.Reader
	io.Writer
	Close() error
}

// Dialer starts an engine and returns a connection to it.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context) (Conn, error)

// Dial calls f.
func (f DialFunc) Dial(ctx context.Context) (Conn, error) { return f(ctx) }

// Options configures a Client.
type Options struct {
	QueryTimeout time.Duration
	InitTimeout  time.Duration
	Logger       logging.Logger
}

type reply struct {
	result *Success
	err    error
}

// Client is the orchestrator-side handle for one engine.
type Client struct {
	name   string
	dialer Dialer
	opts   Options
	log    logging.Logger

	mu      sync.Mutex
	conn    Conn
	enc     *Encoder
	pending map[string]chan reply
	readyCh chan Ready
	done    chan struct{}
	started bool

	ready     atomic.Bool
	closeOnce sync.Once
}

// NewClient creates a client for the engine reached through dialer.
func NewClient(name string, dialer Dialer, opts Options) *Client {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = DefaultInitTimeout
	}
	return &Client{
		name:    name,
		dialer:  dialer,
		opts:    opts,
		log:     logging.OrDefault(opts.Logger).With("engine", name),
		pending: make(map[string]chan reply),
		readyCh: make(chan Ready, 1),
		done:    make(chan struct{}),
	}
}

// Name returns the engine name.
func (c *Client) Name() string { return c.name }

// Available reports whether the engine is ready and not terminated.
func (c *Client) Available() bool { return c.ready.Load() }

// Start dials the engine and blocks until it signals readiness,
// the init timeout elapses or ctx is done.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("engine %s already started", c.name)
	}
	c.started = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.opts.InitTimeout)
	defer cancel()

	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		c.terminate()
		return &ModelLoadError{Engine: c.name, Reason: err.Error()}
	}

	c.mu.Lock()
	c.conn = conn
	c.enc = NewEncoder(conn)
	c.mu.Unlock()

	go c.readLoop(NewDecoder(conn))

	select {
	case r := <-c.readyCh:
		return c.handleReady(r)
	case <-c.done:
		select {
		case r := <-c.readyCh:
			return c.handleReady(r)
		default:
		}
		return &ModelLoadError{Engine: c.name, Reason: "engine exited before signalling readiness"}
	case <-ctx.Done():
		_ = c.Close()
		return &ModelLoadError{Engine: c.name, Reason: fmt.Sprintf("no ready signal: %v", ctx.Err())}
	}
}

func (c *Client) handleReady(r Ready) error {
	if !r.Success {
		_ = c.Close()
		return &ModelLoadError{Engine: c.name, Reason: r.Error}
	}
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return &ModelLoadError{Engine: c.name, Reason: "engine exited right after signalling readiness"}
	default:
	}
	c.ready.Store(true)
	c.mu.Unlock()

	c.log.Info("engine ready")
	return nil
}

// Query sends req and waits for the matching response.
func (c *Client) Query(ctx context.Context, req Request) (*Success, error) {
	if !c.ready.Load() {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, c.name)
	}

	id := uuid.NewString()
	ch := make(chan reply, 1)

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrEngineTerminated, c.name)
	default:
	}
	c.pending[id] = ch
	enc := c.enc
	c.mu.Unlock()

	if err := enc.Encode(&Envelope{Type: TypeQuery, ID: id, Query: &req}); err != nil {
		c.forget(id)
		return nil, fmt.Errorf("%w: %s: %v", ErrEngineTerminated, c.name, err)
	}

	timer := time.NewTimer(c.opts.QueryTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.result, r.err
	case <-timer.C:
		c.forget(id)
		return nil, fmt.Errorf("%w: %s after %s", ErrEngineTimeout, c.name, c.opts.QueryTimeout)
	case <-ctx.Done():
		c.forget(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: %v", ErrEngineTimeout, c.name, ctx.Err())
		}
		return nil, ctx.Err()
	}
}

// Close sends cleanup, fails in-flight requests and terminates the engine.
// It is safe to call at any time and more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		enc, conn := c.enc, c.conn
		c.mu.Unlock()

		if enc != nil {
			sent := make(chan struct{})
			go func() {
				_ = enc.Encode(&Envelope{Type: TypeCleanup})
				close(sent)
			}()
			select {
			case <-sent:
			case <-time.After(cleanupWait):
				c.log.Warn("engine did not accept cleanup in time")
			}
		}
		c.terminate()
		if conn != nil {
			err = conn.Close()
		}
	})
	return err
}

// Pending returns the number of outstanding requests.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// terminate marks the engine gone and fails every pending request.
func (c *Client) terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ready.Store(false)

	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	for id, ch := range c.pending {
		ch <- reply{err: fmt.Errorf("%w: %s", ErrEngineTerminated, c.name)}
		delete(c.pending, id)
	}
}

func (c *Client) readLoop(dec *Decoder) {
	defer c.terminate()

	readySeen := false
	for {
		env, err := dec.Decode()
		if err != nil {
			if errors.Is(err, ErrMalformed) {
				c.log.Warn("dropping malformed envelope", "error", err)
				if env != nil && env.ID != "" && env.Type != TypeQuery {
					c.deliver(env.ID, reply{err: &EngineError{Engine: c.name, CorrelationID: env.ID, Message: err.Error()}})
				}
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				c.log.Debug("engine stream closed", "error", err)
			}
			return
		}

		switch env.Type {
		case TypeReady:
			if readySeen {
				continue
			}
			readySeen = true
			c.readyCh <- *env.Ready
		case TypeResult:
			c.deliver(env.ID, reply{result: env.Result})
		case TypeError:
			if env.ID == "" {
				c.log.Warn("engine reported error", "error", env.Error.Error)
				continue
			}
			c.deliver(env.ID, reply{err: &EngineError{Engine: c.name, CorrelationID: env.ID, Message: env.Error.Error}})
		default:
			c.log.Debug("ignoring envelope", "type", env.Type)
		}
	}
}

// deliver routes r to the request with id; unknown ids are stale and dropped.
func (c *Client) deliver(id string, r reply) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Debug("discarding response for unknown request", "id", id)
		return
	}
	ch <- r
}
