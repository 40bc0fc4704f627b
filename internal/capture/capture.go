// Package capture models the microphone as a scoped resource: a stream is
// acquired when recording starts and must be closed on every exit path.
package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
)

// Sentinel errors for audio capture.
var (
	ErrBusy = errors.New("microphone already in use")
)

// Stream is an acquired capture. Close stops all tracks.
type Stream interface {
	io.ReadCloser
}

// Microphone hands out capture streams.
type Microphone interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Relay is a Microphone fed by pushed chunks, e.g. WebSocket binary frames
// from a browser that does the actual recording. Only one stream can be held
// at a time; chunks pushed while no stream is held are dropped.
type Relay struct {
	mu     sync.Mutex
	active *relayStream
}

// NewRelay creates a new Relay.
func NewRelay() *Relay {
	return &Relay{}
}

// Acquire opens the relay's single stream.
func (r *Relay) Acquire(ctx context.Context) (Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return nil, ErrBusy
	}
	s := &relayStream{relay: r, chunks: make(chan []byte, 64), done: make(chan struct{})}
	r.active = s
	return s, nil
}

// Push delivers a chunk to the held stream. It reports false when the chunk
// was dropped because no stream is held or the stream's buffer is full.
func (r *Relay) Push(chunk []byte) bool {
	r.mu.Lock()
	s := r.active
	r.mu.Unlock()
	if s == nil || len(chunk) == 0 {
		return false
	}
	cp := append([]byte(nil), chunk...)
	select {
	case <-s.done:
		return false
	case s.chunks <- cp:
		return true
	default:
		return false
	}
}

// Active reports whether a stream is currently held.
func (r *Relay) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

func (r *Relay) release(s *relayStream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == s {
		r.active = nil
	}
}

type relayStream struct {
	relay   *Relay
	chunks  chan []byte
	done    chan struct{}
	pending []byte
	once    sync.Once
}

func (s *relayStream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		select {
		case chunk := <-s.chunks:
			s.pending = chunk
		default:
			select {
			case <-s.done:
				return 0, io.EOF
			case chunk := <-s.chunks:
				s.pending = chunk
			}
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *relayStream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.relay.release(s)
	})
	return nil
}

// FileMicrophone replays a pre-recorded file, used by the terminal client.
type FileMicrophone struct {
	Path string
}

// Acquire opens the file for reading.
func (m FileMicrophone) Acquire(ctx context.Context) (Stream, error) {
	f, err := os.Open(m.Path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
