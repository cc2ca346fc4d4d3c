package models

// Client frame types accepted over the session transport.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePublish     = "publish"
	FramePing        = "ping"
)

// Server frame types.
const (
	FrameAck   = "ack"
	FrameEvent = "event"
	FrameError = "error"
	FramePong  = "pong"
	FrameInfo  = "info"
)

// Info frame messages.
const (
	InfoConnected    = "connected"
	InfoTopicDeleted = "topic_deleted"
)

// Error codes surfaced to clients.
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeTopicNotFound = "TOPIC_NOT_FOUND"
	CodeSlowConsumer  = "SLOW_CONSUMER"
	CodeInternal      = "INTERNAL_ERROR"
)

// Message is the opaque payload unit carried by publish and event frames.
type Message struct {
	ID      string `json:"id"`
	Payload any    `json:"payload"`
}

// ClientFrame is a frame received from a client. Unknown extra fields are
// ignored by the decoder.
type ClientFrame struct {
	Type      string   `json:"type"`
	Topic     string   `json:"topic,omitempty"`
	Message   *Message `json:"message,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	LastN     int      `json:"last_n,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// ServerFrame is a frame sent to a client.
type ServerFrame struct {
	Type      string     `json:"type"`
	RequestID string     `json:"request_id,omitempty"`
	Topic     string     `json:"topic,omitempty"`
	Message   *Message   `json:"message,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Status    string     `json:"status,omitempty"`
	ClientID  string     `json:"client_id,omitempty"`
	Msg       string     `json:"msg,omitempty"`
	TS        string     `json:"ts"`
}

// InvalidFrameError is the error frame sent for input that does not parse
// as a JSON object. request_id is serialized as an explicit null: no
// identifier could be read from the frame.
type InvalidFrameError struct {
	Type      string     `json:"type"`
	RequestID *string    `json:"request_id"`
	Error     *ErrorInfo `json:"error"`
	TS        string     `json:"ts"`
}

// ErrorInfo carries a typed error to the client.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TopicInfo is one entry in the topic listing.
type TopicInfo struct {
	Name        string `json:"name"`
	Subscribers int    `json:"subscribers"`
}

// TopicStats holds per-topic counters for the stats endpoint.
type TopicStats struct {
	Messages    int64 `json:"messages"`
	Subscribers int   `json:"subscribers"`
}

// StatsResponse is the GET /stats body.
type StatsResponse struct {
	Topics map[string]TopicStats `json:"topics"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	UptimeSec   int `json:"uptime_sec"`
	Topics      int `json:"topics"`
	Subscribers int `json:"subscribers"`
}

// CreateTopicRequest is the POST /topics body.
type CreateTopicRequest struct {
	Name string `json:"name"`
}

// TopicMutationResponse acknowledges a topic create or delete.
type TopicMutationResponse struct {
	Status string `json:"status"`
	Topic  string `json:"topic"`
}

// ListTopicsResponse is the GET /topics body.
type ListTopicsResponse struct {
	Topics []TopicInfo `json:"topics"`
}
