package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/khanglvm/profile-qa/internal/logging"
)

// gracefulExitWait is how long Close waits after closing stdin before killing.
const gracefulExitWait = 2 * time.Second

// execCommand is a variable that allows tests to mock exec.Command
var execCommand = exec.Command

// ProcessDialer runs an engine as a child process speaking the envelope
// protocol over stdio.
type ProcessDialer struct {
	Command string
	Args    []string
	Env     map[string]string
	Logger  logging.Logger
}

// Dial starts the child process. The process outlives ctx; Close ends it.
func (d ProcessDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Command == "" {
		return nil, errors.New("engine command is empty")
	}

	cmd := execCommand(d.Command, d.Args...)

	cmd.Env = os.Environ()
	for key, value := range d.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	// stderr must be drained or a chatty child blocks once the pipe buffer fills.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	log := logging.OrDefault(d.Logger).With("pid", cmd.Process.Pid)
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Debug("engine stderr", "line", scanner.Text())
		}
	}()

	return &processConn{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		log:    log,
	}, nil
}

type processConn struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	log    logging.Logger

	closeOnce sync.Once
	closeErr  error
}

func (p *processConn) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *processConn) Write(b []byte) (int, error) { return p.stdin.Write(b) }

// Close implements graceful shutdown: closes stdin first, waits 2s, then force kills.
func (p *processConn) Close() error {
	p.closeOnce.Do(func() {
		// Step 1: Close stdin (graceful signal to child)
		if err := p.stdin.Close(); err != nil {
			p.log.Warn("failed to close engine stdin", "error", err)
		}

		// Step 2: Wait briefly for graceful exit
		exited := make(chan error, 1)
		go func() {
			exited <- p.cmd.Wait()
		}()

		select {
		case err := <-exited:
			if err != nil && !strings.Contains(err.Error(), "signal: killed") {
				p.closeErr = fmt.Errorf("engine process: %w", err)
			}
		case <-time.After(gracefulExitWait):
			p.log.Warn("engine process did not exit gracefully, force killing")
			if p.cmd.Process != nil {
				_ = p.cmd.Process.Kill()
			}
			<-exited
		}
	})
	return p.closeErr
}
