/*
Package worker implements the engine side of the envelope protocol.

Serve initializes a Handler (retrying model loads under a policy), emits the
ready signal, then answers queries concurrently until cleanup or end of
input. The same loop runs inside a child process over stdio or inside the
parent process behind an io.Pipe.
*/
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/khanglvm/profile-qa/internal/engine"
	"github.com/khanglvm/profile-qa/internal/logging"
	"github.com/khanglvm/profile-qa/internal/retry"
)

// Handler is an inference backend.
type Handler interface {
	// Init loads models or indexes. It may be retried.
	Init(ctx context.Context) error
	// Answer handles one query.
	Answer(ctx context.Context, req engine.Request) (*engine.Success, error)
}

// Options configures Serve.
type Options struct {
	Name   string
	Policy retry.Policy
	Logger logging.Logger
}

// DefaultOptions retries model loads three times with linear backoff.
func DefaultOptions(name string) Options {
	p := retry.DefaultPolicy()
	p.BaseDelay = 500 * time.Millisecond
	return Options{Name: name, Policy: p}
}

// Serve runs the protocol loop over r and w until cleanup, EOF or ctx ends.
// A handler that implements io.Closer is closed once every query finished.
func Serve(ctx context.Context, h Handler, r io.Reader, w io.Writer, opts Options) error {
	log := logging.OrDefault(opts.Logger).With("worker", opts.Name)
	enc := engine.NewEncoder(w)
	dec := engine.NewDecoder(r)
	defer release(h, log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := retry.Do(ctx, opts.Policy, func(ctx context.Context, attempt int) error {
		if err := h.Init(ctx); err != nil {
			log.Warn("engine init failed", "attempt", attempt, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		_ = enc.Encode(&engine.Envelope{Type: engine.TypeReady, Ready: &engine.Ready{Success: false, Error: err.Error()}})
		return fmt.Errorf("%w: %v", engine.ErrModelLoad, err)
	}
	if err := enc.Encode(&engine.Envelope{Type: engine.TypeReady, Ready: &engine.Ready{Success: true}}); err != nil {
		return err
	}
	log.Debug("worker ready")

	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		env, err := dec.Decode()
		if err != nil {
			if errors.Is(err, engine.ErrMalformed) {
				log.Warn("malformed envelope", "error", err)
				if env != nil && env.ID != "" {
					_ = enc.Encode(errorEnvelope(env.ID, err))
				}
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}

		switch env.Type {
		case engine.TypeCleanup:
			log.Debug("cleanup received")
			cancel()
			return nil
		case engine.TypeQuery:
			wg.Add(1)
			go func(id string, req engine.Request) {
				defer wg.Done()
				answer(ctx, h, enc, id, req, log)
			}(env.ID, *env.Query)
		default:
			log.Debug("ignoring envelope", "type", env.Type)
		}
	}
}

func release(h Handler, log logging.Logger) {
	c, ok := h.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to release engine", "error", err)
	}
}

func answer(ctx context.Context, h Handler, enc *engine.Encoder, id string, req engine.Request, log logging.Logger) {
	start := time.Now()

	res, err := safeAnswer(ctx, h, req)
	if err == nil && res == nil {
		err = errors.New("handler returned no result")
	}
	if err != nil {
		log.Debug("query failed", "id", id, "error", err)
		_ = enc.Encode(errorEnvelope(id, err))
		return
	}

	res.Confidence = math.Max(0, math.Min(1, res.Confidence))
	if res.ProcessingTimeMs == 0 {
		res.ProcessingTimeMs = time.Since(start).Milliseconds()
	}
	if err := enc.Encode(&engine.Envelope{Type: engine.TypeResult, ID: id, Result: res}); err != nil {
		log.Warn("failed to send result", "id", id, "error", err)
	}
}

// safeAnswer keeps a panicking handler from taking the worker down.
func safeAnswer(ctx context.Context, h Handler, req engine.Request) (res *engine.Success, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Answer(ctx, req)
}

func errorEnvelope(id string, err error) *engine.Envelope {
	return &engine.Envelope{Type: engine.TypeError, ID: id, Error: &engine.Failure{Error: err.Error()}}
}

// RunStdio serves h over the process's stdin and stdout.
func RunStdio(ctx context.Context, h Handler, opts Options) error {
	return Serve(ctx, h, os.Stdin, os.Stdout, opts)
}
