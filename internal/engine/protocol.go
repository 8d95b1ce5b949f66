/*
Package engine talks to inference engines running in isolated execution
contexts (a child process or a goroutine behind a pipe).

Messages are newline-delimited JSON envelopes. Every query carries a
correlation id; responses whose id matches no outstanding request are
discarded. Engines announce readiness once with a ready envelope and accept
a cleanup envelope at any time.
*/
package engine

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/khanglvm/profile-qa/internal/conversation"
	"github.com/khanglvm/profile-qa/internal/knowledge"
)

// MessageType discriminates envelopes.
type MessageType string

const (
	TypeQuery   MessageType = "query"
	TypeResult  MessageType = "result"
	TypeError   MessageType = "error"
	TypeReady   MessageType = "ready"
	TypeCleanup MessageType = "cleanup"
)

// maxMessageSize bounds a single envelope line.
const maxMessageSize = 4 << 20

// MatchRef is a retrieved entry handed to the engine as context.
type MatchRef struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Request is a query sent to an engine.
type Request struct {
	Message string              `json:"message"`
	Context []conversation.Turn `json:"context,omitempty"`
	Style   knowledge.Style     `json:"style"`
	Prompt  string              `json:"prompt,omitempty"`
	Matches []MatchRef          `json:"matches,omitempty"`
}

// EntryScore is an entry the engine based its answer on.
type EntryScore struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// Success is a successful engine answer.
type Success struct {
	Answer           string       `json:"answer"`
	Confidence       float64      `json:"confidence"`
	Matches          []EntryScore `json:"matches"`
	ProcessingTimeMs int64        `json:"processing_time_ms"`
}

// MatchedIDs returns the ids of the entries the answer used.
func (s *Success) MatchedIDs() []string {
	ids := make([]string, 0, len(s.Matches))
	for _, m := range s.Matches {
		ids = append(ids, m.ID)
	}
	return ids
}

// Failure is an engine-reported error for one request.
type Failure struct {
	Error string `json:"error"`
}

// Ready is the one-time readiness signal.
type Ready struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Envelope is the wire frame. Exactly one payload matches Type.
type Envelope struct {
	Type   MessageType `json:"type"`
	ID     string      `json:"id,omitempty"`
	Query  *Request    `json:"query,omitempty"`
	Result *Success    `json:"result,omitempty"`
	Error  *Failure    `json:"error,omitempty"`
	Ready  *Ready      `json:"ready,omitempty"`
}

// ErrMalformed is returned for envelopes that violate the protocol.
var ErrMalformed = errors.New("malformed envelope")

// Validate checks that the envelope carries exactly the payload its type requires.
func (e *Envelope) Validate() error {
	payloads := 0
	for _, present := range []bool{e.Query != nil, e.Result != nil, e.Error != nil, e.Ready != nil} {
		if present {
			payloads++
		}
	}

	switch e.Type {
	case TypeQuery:
		if e.ID == "" || e.Query == nil || payloads != 1 {
			return fmt.Errorf("%w: query needs an id and only a query payload", ErrMalformed)
		}
	case TypeResult:
		if e.ID == "" || e.Result == nil || payloads != 1 {
			return fmt.Errorf("%w: result needs an id and only a result payload", ErrMalformed)
		}
		if e.Result.Confidence < 0 || e.Result.Confidence > 1 {
			return fmt.Errorf("%w: confidence %.3f outside [0,1]", ErrMalformed, e.Result.Confidence)
		}
	case TypeError:
		if e.Error == nil || payloads != 1 {
			return fmt.Errorf("%w: error needs only an error payload", ErrMalformed)
		}
	case TypeReady:
		if e.Ready == nil || payloads != 1 {
			return fmt.Errorf("%w: ready needs only a ready payload", ErrMalformed)
		}
	case TypeCleanup:
		if payloads != 0 {
			return fmt.Errorf("%w: cleanup carries no payload", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, e.Type)
	}
	return nil
}

// Encoder writes envelopes, one per line. Safe for concurrent use.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode validates and writes env.
func (e *Encoder) Encode(env *Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("failed to write envelope: %w", err)
	}
	return nil
}

// Decoder reads envelopes, one per line.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64<<10)}
}

// Decode reads the next envelope. Malformed lines return an error wrapping
// ErrMalformed; the stream stays usable. io.EOF means the peer is gone.
func (d *Decoder) Decode() (*Envelope, error) {
	for {
		line, err := d.readLine()
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := env.Validate(); err != nil {
			return &env, err
		}
		return &env, nil
	}
}

func (d *Decoder) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := d.r.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > maxMessageSize {
			return nil, fmt.Errorf("envelope exceeds %d bytes", maxMessageSize)
		}
		if !isPrefix {
			return line, nil
		}
	}
}
