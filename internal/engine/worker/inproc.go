package worker

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/khanglvm/profile-qa/internal/engine"
)

const pipeCloseWait = 2 * time.Second

// Dialer returns an engine.Dialer that runs h in a goroutine connected by
// a pair of pipes. Nothing but envelopes crosses the boundary.
func Dialer(h Handler, opts Options) engine.Dialer {
	return engine.DialFunc(func(ctx context.Context) (engine.Conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		toWorkerR, toWorkerW := io.Pipe()
		fromWorkerR, fromWorkerW := io.Pipe()

		wctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			err := Serve(wctx, h, toWorkerR, fromWorkerW, opts)
			_ = toWorkerR.CloseWithError(io.ErrClosedPipe)
			if err != nil {
				_ = fromWorkerW.CloseWithError(err)
				return
			}
			_ = fromWorkerW.Close()
		}()

		return &pipeConn{
			r:      fromWorkerR,
			w:      toWorkerW,
			cancel: cancel,
			done:   done,
		}, nil
	})
}

type pipeConn struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (p *pipeConn) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeConn) Write(b []byte) (int, error) { return p.w.Write(b) }

// Close ends the worker's input, waits briefly for it to drain, then
// cancels it outright.
func (p *pipeConn) Close() error {
	p.once.Do(func() {
		_ = p.w.Close()
		select {
		case <-p.done:
		case <-time.After(pipeCloseWait):
		}
		p.cancel()
		_ = p.r.Close()
	})
	return nil
}
