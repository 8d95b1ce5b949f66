package engine

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/profile-qa/internal/logging"
)

// scriptedPeer is a hand-driven engine on the far side of a pipe pair.
type scriptedPeer struct {
	enc *Encoder
	dec *Decoder
}

type pipeConn struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (p *pipeConn) Close() error {
	for _, c := range p.closers {
		_ = c.Close()
	}
	return nil
}

func newScripted(t *testing.T) (*scriptedPeer, Dialer) {
	t.Helper()
	toPeerR, toPeerW := io.Pipe()
	fromPeerR, fromPeerW := io.Pipe()

	peer := &scriptedPeer{enc: NewEncoder(fromPeerW), dec: NewDecoder(toPeerR)}
	conn := &pipeConn{Reader: fromPeerR, Writer: toPeerW, closers: []io.Closer{toPeerW, fromPeerR, toPeerR, fromPeerW}}
	return peer, DialFunc(func(ctx context.Context) (Conn, error) { return conn, nil })
}

func startScripted(t *testing.T, opts Options) (*scriptedPeer, *Client) {
	t.Helper()
	peer, dialer := newScripted(t)
	opts.Logger = logging.Nop()
	c := NewClient("scripted", dialer, opts)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background()) }()
	require.NoError(t, peer.enc.Encode(&Envelope{Type: TypeReady, Ready: &Ready{Success: true}}))
	require.NoError(t, <-errCh)
	t.Cleanup(func() { _ = c.Close() })
	return peer, c
}

func TestStaleResponsesAreDiscarded(t *testing.T) {
	peer, c := startScripted(t, Options{})

	go func() {
		env, err := peer.dec.Decode()
		if err != nil {
			return
		}
		_ = peer.enc.Encode(&Envelope{Type: TypeResult, ID: "stale-id", Result: &Success{Answer: "wrong", Confidence: 0.1}})
		_ = peer.enc.Encode(&Envelope{Type: TypeResult, ID: env.ID, Result: &Success{Answer: "right", Confidence: 0.9}})
	}()

	res, err := c.Query(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "right", res.Answer)
}

func TestMalformedResultFailsRequest(t *testing.T) {
	peer, c := startScripted(t, Options{})

	go func() {
		env, err := peer.dec.Decode()
		if err != nil {
			return
		}
		// Confidence outside [0,1] violates the protocol.
		_, _ = peer.enc.w.Write([]byte(`{"type":"result","id":"` + env.ID + `","result":{"answer":"x","confidence":7}}` + "\n"))
	}()

	_, err := c.Query(context.Background(), Request{Message: "hi"})
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Message, "confidence")
}

func TestPeerExitTerminatesPending(t *testing.T) {
	peer, c := startScripted(t, Options{QueryTimeout: time.Minute})

	go func() {
		if _, err := peer.dec.Decode(); err != nil {
			return
		}
		_ = peer.enc.w.(*io.PipeWriter).Close()
	}()

	_, err := c.Query(context.Background(), Request{Message: "hi"})
	assert.ErrorIs(t, err, ErrEngineTerminated)
	assert.False(t, c.Available())
}

func TestContextDeadlineIsTimeout(t *testing.T) {
	peer, c := startScripted(t, Options{QueryTimeout: time.Minute})
	go func() { _, _ = peer.dec.Decode() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Query(ctx, Request{Message: "hi"})
	assert.ErrorIs(t, err, ErrEngineTimeout)
}

func TestStartWithoutReadyTimesOut(t *testing.T) {
	_, dialer := newScripted(t)
	c := NewClient("silent", dialer, Options{InitTimeout: 20 * time.Millisecond, Logger: logging.Nop()})

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrModelLoad)
}

func TestDialFailureIsModelLoad(t *testing.T) {
	dialer := DialFunc(func(ctx context.Context) (Conn, error) { return nil, errors.New("no such binary") })
	c := NewClient("broken", dialer, Options{Logger: logging.Nop()})

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, ErrModelLoad)
	assert.Error(t, c.Start(context.Background()))
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(&EngineError{Engine: "a", Message: "x"}))
	assert.True(t, Recoverable(ErrEngineTimeout))
	assert.False(t, Recoverable(context.Canceled))
	assert.False(t, Recoverable(nil))
	assert.False(t, Recoverable(errors.New("other")))
}
