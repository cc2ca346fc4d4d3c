package handlers

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wirebus/wirebus/internal/broker"
	"github.com/wirebus/wirebus/internal/models"
)

// Session states.
const (
	stateConnecting int32 = iota
	stateOpen
	stateClosing
	stateClosed
)

// SessionOptions carries the per-connection tunables out of the config.
type SessionOptions struct {
	WriteWait  time.Duration
	PingPeriod time.Duration
	PongWait   time.Duration

	// InboundRate limits client frames per second; zero disables it.
	InboundRate  float64
	InboundBurst int
}

// Session drives one connected client: it owns the transport, parses and
// validates inbound frames, invokes registry operations, and runs the
// heartbeat and the writer goroutines draining outbound queues.
type Session struct {
	id       string
	registry *broker.Registry
	tr       *wsTransport
	opts     SessionOptions

	state   atomic.Int32
	alive   atomic.Bool
	limiter *rate.Limiter

	// client_ids this session has bound via subscribe. Reader goroutine
	// only, except the final cleanup which also runs on the reader.
	bound map[string]*broker.Subscriber

	done     chan struct{}
	doneOnce sync.Once
	log      zerolog.Logger
}

func newSession(registry *broker.Registry, conn *websocket.Conn, opts SessionOptions, log zerolog.Logger) *Session {
	s := &Session{
		id:       generateSessionID(),
		registry: registry,
		tr:       newWSTransport(conn, opts.WriteWait),
		opts:     opts,
		bound:    make(map[string]*broker.Subscriber),
		done:     make(chan struct{}),
	}
	if opts.InboundRate > 0 {
		burst := opts.InboundBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.InboundRate), burst)
	}
	s.log = log.With().Str("session_id", s.id).Logger()
	return s
}

// Run executes the session until the transport closes. Blocking; call on
// the connection's handler goroutine.
func (s *Session) Run() {
	defer s.finish()

	conn := s.tr.conn
	conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		s.alive.Store(true)
		conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
		return nil
	})

	welcome := models.ServerFrame{
		Type:     models.FrameInfo,
		Msg:      models.InfoConnected,
		ClientID: s.id,
		TS:       timestamp(),
	}
	if err := s.tr.WriteFrame(welcome); err != nil {
		return
	}
	s.state.Store(stateOpen)
	s.alive.Store(true)
	go s.heartbeat()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))

		if s.limiter != nil && !s.limiter.Allow() {
			s.log.Warn().Msg("inbound rate limit exceeded, closing")
			s.sendError("", models.CodeBadRequest, "rate limit exceeded")
			_ = s.tr.Close(broker.ClosePolicyViolation, "RATE_LIMIT_EXCEEDED")
			return
		}

		s.handleFrame(data)
	}
}

// heartbeat probes liveness every ping period. A session that produced no
// pong across a full interval is forcibly terminated.
func (s *Session) heartbeat() {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !s.alive.Swap(false) {
				s.log.Warn().Msg("heartbeat missed, terminating session")
				s.beginClose()
				s.tr.markClosed()
				return
			}
			if err := s.tr.Ping(); err != nil {
				s.beginClose()
				return
			}
		case <-s.done:
			return
		}
	}
}

// drainLoop pushes one subscriber's queued frames to the transport. One
// loop per bound subscriber record, living until the session ends.
func (s *Session) drainLoop(sub *broker.Subscriber) {
	for {
		select {
		case <-sub.Wake():
			if err := sub.Drain(); err != nil {
				s.log.Debug().Err(err).Str("client_id", sub.ClientID).Msg("drain failed")
				s.beginClose()
				return
			}
		case <-s.done:
			return
		}
	}
}

// bind registers a subscriber record with this session and starts its
// writer goroutine on first sight.
func (s *Session) bind(sub *broker.Subscriber) {
	if _, seen := s.bound[sub.ClientID]; seen {
		return
	}
	s.bound[sub.ClientID] = sub
	go s.drainLoop(sub)
}

// beginClose moves the session into CLOSING once.
func (s *Session) beginClose() {
	s.state.CompareAndSwap(stateConnecting, stateClosing)
	s.state.CompareAndSwap(stateOpen, stateClosing)
}

// finish releases everything exactly once on the way to CLOSED.
func (s *Session) finish() {
	s.beginClose()
	s.doneOnce.Do(func() { close(s.done) })
	s.tr.markClosed()
	for clientID := range s.bound {
		s.registry.ReleaseSubscriber(clientID)
	}
	s.state.Store(stateClosed)
	s.log.Info().Msg("session closed")
}

func (s *Session) sendAck(requestID, topic string) {
	_ = s.tr.WriteFrame(models.ServerFrame{
		Type:      models.FrameAck,
		RequestID: requestID,
		Topic:     topic,
		Status:    "ok",
		TS:        timestamp(),
	})
}

func (s *Session) sendPong(requestID string) {
	_ = s.tr.WriteFrame(models.ServerFrame{
		Type:      models.FramePong,
		RequestID: requestID,
		TS:        timestamp(),
	})
}

func (s *Session) sendError(requestID, code, message string) {
	_ = s.tr.WriteFrame(models.ServerFrame{
		Type:      models.FrameError,
		RequestID: requestID,
		Error:     &models.ErrorInfo{Code: code, Message: message},
		TS:        timestamp(),
	})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
