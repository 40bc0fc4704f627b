package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/middleware"
	"github.com/stemsi/vocab-runner/internal/model"
	"github.com/stemsi/vocab-runner/internal/response"
	"github.com/stemsi/vocab-runner/internal/service"
	ws "github.com/stemsi/vocab-runner/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a running exam session: ticks and transitions go out,
// actions and recorded audio come in.
type WSHandler struct {
	sessions *service.SessionService
	bus      service.EventBus
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. bus may be nil, in which case only
// action acknowledgements are sent.
func NewWSHandler(sessions *service.SessionService, bus service.EventBus, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		bus:      bus,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream
// Text frames carry actions, binary frames carry audio chunks of the
// running recording.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID := middleware.GetSessionID(c)

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	wsLog := h.log.With().
		Str("user", claims.Scope()).
		Str("session_id", sessionID.String()).
		Logger()
	wsLog.Info().Msg("Session stream connected")

	if h.bus != nil {
		events, unsubscribe := h.bus.Subscribe(ctx, sessionID.String())
		defer unsubscribe()
		go h.forward(conn, events)
	}

	if snap, err := h.sessions.Snapshot(claims, sessionID); err == nil {
		conn.WriteTyped(ws.AckResponse{Event: ws.EventAck, Action: ws.ActionSnapshot, Snapshot: snap})
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if kind == websocket.BinaryMessage {
			taken, err := h.sessions.PushAudio(claims, sessionID, data)
			if err != nil {
				h.writeFailure(conn, "", err)
				return
			}
			if !taken {
				wsLog.Debug().Int("bytes", len(data)).Msg("Audio chunk dropped")
				conn.WriteTyped(ws.AudioDroppedResponse{Event: ws.EventAudioDropped, Bytes: len(data)})
			}
			continue
		}

		var msg ws.RequestEnvelope
		if err := json.Unmarshal(data, &msg); err != nil {
			conn.WriteError("", string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
			continue
		}
		if msg.Action == ws.ActionPing {
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
			continue
		}

		snap, err := h.dispatch(ctx, claims, sessionID, &msg)
		if err != nil {
			wsLog.Debug().Err(err).Str("action", string(msg.Action)).Msg("Action refused")
			h.writeFailure(conn, msg.Action, err)
			continue
		}
		conn.WriteTyped(ws.AckResponse{Event: ws.EventAck, Action: msg.Action, Snapshot: snap})
	}
}

func (h *WSHandler) dispatch(ctx context.Context, claims *service.Claims, id uuid.UUID, msg *ws.RequestEnvelope) (*model.SessionSnapshot, error) {
	switch msg.Action {
	case ws.ActionSnapshot:
		return h.sessions.Snapshot(claims, id)
	case ws.ActionNext:
		return h.sessions.Next(claims, id)
	case ws.ActionPrevious:
		return h.sessions.Previous(claims, id)
	case ws.ActionAnswer:
		return h.sessions.Answer(claims, id, msg.Value)
	case ws.ActionFlip:
		return h.sessions.Flip(claims, id)
	case ws.ActionAssess:
		a := model.Assessment(msg.Value)
		if !a.Valid() {
			return nil, errInvalidAssessment
		}
		return h.sessions.Assess(claims, id, a)
	case ws.ActionRecordStart:
		return h.sessions.StartRecording(ctx, claims, id)
	case ws.ActionRecordPause:
		return h.sessions.PauseRecording(claims, id)
	case ws.ActionRecordResume:
		return h.sessions.ResumeRecording(claims, id)
	case ws.ActionRecordStop:
		return h.sessions.StopRecording(claims, id)
	case ws.ActionRecordAgain:
		return h.sessions.RecordAgain(claims, id)
	case ws.ActionSubmit:
		return h.sessions.Submit(ctx, claims, id)
	case ws.ActionComplete:
		return h.sessions.Complete(claims, id)
	}
	return nil, errUnknownAction
}

// forward relays published session events until the subscription ends.
func (h *WSHandler) forward(conn *ws.Conn, events <-chan []byte) {
	for payload := range events {
		if err := conn.WriteTyped(ws.SessionEvent{Event: ws.EventSession, Payload: payload}); err != nil {
			return
		}
	}
}

func (h *WSHandler) writeFailure(conn *ws.Conn, action ws.Action, err error) {
	switch err {
	case errUnknownAction, errInvalidAssessment:
		conn.WriteError(action, string(response.ErrValidation), err.Error())
		return
	}
	_, code, msg := classify(err)
	if msg == "" {
		msg = response.GetMessage(code)
	}
	conn.WriteError(action, string(code), msg)
}
