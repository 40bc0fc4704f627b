package websocket

import (
	"encoding/json"

	"github.com/stemsi/vocab-runner/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────
// Text frames carry a RequestEnvelope. Binary frames are audio chunks for
// the running recording.

type Action string

const (
	ActionSnapshot     Action = "snapshot"
	ActionNext         Action = "next"
	ActionPrevious     Action = "previous"
	ActionAnswer       Action = "answer"
	ActionFlip         Action = "flip"
	ActionAssess       Action = "assess"
	ActionRecordStart  Action = "record_start"
	ActionRecordPause  Action = "record_pause"
	ActionRecordResume Action = "record_resume"
	ActionRecordStop   Action = "record_stop"
	ActionRecordAgain  Action = "record_again"
	ActionSubmit       Action = "submit"
	ActionComplete     Action = "complete"
	ActionPing         Action = "ping"
)

// RequestEnvelope is a client action. Value carries the answer or the
// assessment where the action needs one.
type RequestEnvelope struct {
	Action Action `json:"action"`
	Value  string `json:"value,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSession Event = "session"
	EventAck     Event = "ack"
	EventError   Event = "error"
	EventPong    Event = "pong"
	// EventAudioDropped reports a binary frame that no capture took.
	EventAudioDropped Event = "audio_dropped"
)

// SessionEvent forwards a session tick or transition as published.
type SessionEvent struct {
	Event   Event           `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// AckResponse answers an action with the resulting snapshot.
type AckResponse struct {
	Event    Event                  `json:"event"`
	Action   Action                 `json:"action"`
	Snapshot *model.SessionSnapshot `json:"snapshot"`
}

// ErrorResponse reports a refused action.
type ErrorResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action,omitempty"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}

// AudioDroppedResponse tells the client a chunk was lost, either because no
// recording is running or because the capture is not keeping up.
type AudioDroppedResponse struct {
	Event Event `json:"event"`
	Bytes int   `json:"bytes"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
