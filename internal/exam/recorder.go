package exam

import (
	"bytes"
	"context"
	"sync"

	"github.com/stemsi/vocab-runner/internal/capture"
)

// Recorder holds the single audio capture of a translation-audio session.
// The microphone stream it acquires is released by Stop, Reset and Release.
type Recorder struct {
	mic         capture.Microphone
	contentType string
	maxBytes    int

	mu        sync.Mutex
	stream    capture.Stream
	done      chan struct{}
	buf       bytes.Buffer
	recording bool
	paused    bool
	truncated bool
}

// NewRecorder creates a new Recorder. maxBytes <= 0 means unbounded.
func NewRecorder(mic capture.Microphone, contentType string, maxBytes int) *Recorder {
	if contentType == "" {
		contentType = "audio/webm"
	}
	return &Recorder{mic: mic, contentType: contentType, maxBytes: maxBytes}
}

// Start acquires the microphone and begins a fresh capture, discarding any
// previous one.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.mu.Unlock()

	if r.mic == nil {
		return ErrUnsupported
	}
	stream, err := r.mic.Acquire(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.Reset()
	r.truncated = false
	r.paused = false
	r.recording = true
	r.stream = stream
	r.done = make(chan struct{})
	go r.pump(stream, r.done)
	return nil
}

func (r *Recorder) pump(stream capture.Stream, done chan struct{}) {
	defer close(done)
	chunk := make([]byte, 32*1024)
	for {
		n, err := stream.Read(chunk)
		if n > 0 {
			r.mu.Lock()
			switch {
			case r.paused:
			case r.maxBytes > 0 && r.buf.Len()+n > r.maxBytes:
				r.truncated = true
			default:
				r.buf.Write(chunk[:n])
			}
			r.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// Pause keeps the microphone but drops incoming audio.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRecording
	}
	r.paused = true
	return nil
}

// Resume continues a paused capture.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRecording
	}
	r.paused = false
	return nil
}

// Stop finalizes the capture and releases the microphone.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return ErrNotRecording
	}
	stream, done := r.stream, r.done
	r.recording = false
	r.paused = false
	r.stream = nil
	r.done = nil
	r.mu.Unlock()

	err := stream.Close()
	<-done
	return err
}

// Release stops an active capture, keeping whatever was recorded.
func (r *Recorder) Release() {
	_ = r.Stop()
}

// Reset releases the microphone and discards the capture.
func (r *Recorder) Reset() {
	r.Release()
	r.mu.Lock()
	r.buf.Reset()
	r.truncated = false
	r.mu.Unlock()
}

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Paused reports whether the capture is paused.
func (r *Recorder) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// Truncated reports whether audio was dropped because the capture reached
// its size limit.
func (r *Recorder) Truncated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.truncated
}

// Len is the number of captured bytes.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Len()
}

// Blob returns a copy of the finished capture and its content type.
func (r *Recorder) Blob() ([]byte, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.buf.Bytes()...), r.contentType
}
