package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wirebus/wirebus/internal/broker"
	"github.com/wirebus/wirebus/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// uuidPattern is the RFC-4122 textual form. uuid.Parse alone is too lenient
// for wire validation: it also accepts braced and URN variants.
var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// WebSocketHandler upgrades connections and hands them to sessions.
type WebSocketHandler struct {
	registry *broker.Registry
	opts     SessionOptions
	log      zerolog.Logger
}

// NewWebSocketHandler creates the WebSocket endpoint handler.
func NewWebSocketHandler(registry *broker.Registry, opts SessionOptions, log zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{registry: registry, opts: opts, log: log}
}

// Handle serves GET /ws.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	if h.registry.ShuttingDown() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := newSession(h.registry, conn, h.opts, h.log)
	h.log.Info().Str("session_id", sess.id).Str("remote", c.ClientIP()).Msg("client connected")
	sess.Run()
}

// handleFrame validates one inbound frame and dispatches it. Validation
// failures never reach the registry.
func (s *Session) handleFrame(data []byte) {
	frame, ok := decodeClientFrame(data)
	if !ok {
		_ = s.tr.writeJSON(models.InvalidFrameError{
			Type:  models.FrameError,
			Error: &models.ErrorInfo{Code: models.CodeBadRequest, Message: "Invalid JSON format"},
			TS:    timestamp(),
		})
		return
	}

	switch frame.Type {
	case models.FrameSubscribe:
		s.handleSubscribe(frame)
	case models.FrameUnsubscribe:
		s.handleUnsubscribe(frame)
	case models.FramePublish:
		s.handlePublish(frame)
	case models.FramePing:
		s.sendPong(frame.RequestID)
	case "":
		s.sendError(frame.RequestID, models.CodeBadRequest, "type is required")
	default:
		s.sendError(frame.RequestID, models.CodeBadRequest, "Unknown message type: "+frame.Type)
	}
}

// decodeClientFrame accepts only a JSON object.
func decodeClientFrame(data []byte) (models.ClientFrame, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil || probe == nil {
		return models.ClientFrame{}, false
	}
	var frame models.ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return models.ClientFrame{}, false
	}
	return frame, true
}

func (s *Session) handleSubscribe(frame models.ClientFrame) {
	if frame.Topic == "" {
		s.sendError(frame.RequestID, models.CodeBadRequest, "topic is required")
		return
	}
	if frame.ClientID == "" {
		s.sendError(frame.RequestID, models.CodeBadRequest, "client_id is required")
		return
	}
	if frame.LastN < 0 {
		s.sendError(frame.RequestID, models.CodeBadRequest, "last_n must be >= 0")
		return
	}

	sub, replayed, err := s.registry.Subscribe(frame.ClientID, s.tr, frame.Topic, frame.LastN)
	if err != nil {
		if errors.Is(err, broker.ErrSubscriberGone) {
			// Replay overwhelmed the queue or the transport died during
			// subscribe; the record is removed and the transport closed.
			s.beginClose()
			return
		}
		s.sendRegistryError(frame.RequestID, frame.Topic, err)
		return
	}
	s.bind(sub)
	s.sendAck(frame.RequestID, frame.Topic)
	if replayed > 0 {
		s.log.Info().Str("client_id", frame.ClientID).Str("topic", frame.Topic).Int("replayed", replayed).Msg("replayed history")
	}
}

func (s *Session) handleUnsubscribe(frame models.ClientFrame) {
	if frame.Topic == "" {
		s.sendError(frame.RequestID, models.CodeBadRequest, "topic is required")
		return
	}
	if frame.ClientID == "" {
		s.sendError(frame.RequestID, models.CodeBadRequest, "client_id is required")
		return
	}

	if err := s.registry.Unsubscribe(frame.ClientID, frame.Topic); err != nil {
		s.sendRegistryError(frame.RequestID, frame.Topic, err)
		return
	}
	s.sendAck(frame.RequestID, frame.Topic)
}

func (s *Session) handlePublish(frame models.ClientFrame) {
	if frame.Topic == "" {
		s.sendError(frame.RequestID, models.CodeBadRequest, "topic is required")
		return
	}
	if frame.Message == nil {
		s.sendError(frame.RequestID, models.CodeBadRequest, "message is required")
		return
	}
	if frame.Message.ID == "" {
		s.sendError(frame.RequestID, models.CodeBadRequest, "message.id is required")
		return
	}
	if frame.Message.Payload == nil {
		s.sendError(frame.RequestID, models.CodeBadRequest, "message.payload is required")
		return
	}
	if !uuidPattern.MatchString(frame.Message.ID) {
		s.sendError(frame.RequestID, models.CodeBadRequest, "message.id must be a valid UUID")
		return
	}
	if _, err := uuid.Parse(frame.Message.ID); err != nil {
		s.sendError(frame.RequestID, models.CodeBadRequest, "message.id must be a valid UUID")
		return
	}

	if _, err := s.registry.Publish(frame.Topic, *frame.Message); err != nil {
		s.sendRegistryError(frame.RequestID, frame.Topic, err)
		return
	}
	s.sendAck(frame.RequestID, frame.Topic)
}

// sendRegistryError maps broker failures onto client-visible error codes.
// Both an absent topic and a never-joined pair surface as TOPIC_NOT_FOUND.
func (s *Session) sendRegistryError(requestID, topic string, err error) {
	switch {
	case errors.Is(err, broker.ErrTopicNotFound), errors.Is(err, broker.ErrNotSubscribed):
		s.sendError(requestID, models.CodeTopicNotFound, fmt.Sprintf("Topic '%s' does not exist", topic))
	default:
		s.log.Error().Err(err).Str("topic", topic).Msg("registry operation failed")
		s.sendError(requestID, models.CodeInternal, "internal error")
	}
}

func generateSessionID() string {
	return fmt.Sprintf("client-%s", uuid.NewString()[:8])
}
