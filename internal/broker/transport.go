package broker

import "github.com/wirebus/wirebus/internal/models"

// WebSocket close codes used by the broker.
const (
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
)

// Close reasons paired with the codes above.
const (
	ReasonShuttingDown = "Server shutting down"
	ReasonSlowConsumer = "SLOW_CONSUMER"
)

// Transport is the broker's non-owning handle to a client connection. The
// session controller owns the underlying connection; the registry only
// issues sends and close requests through this interface. Implementations
// must be safe for concurrent use.
type Transport interface {
	// WriteFrame sends one frame to the peer. It may block up to the
	// transport's write deadline and returns an error once the
	// connection is unusable.
	WriteFrame(frame models.ServerFrame) error

	// Close closes the connection with the given close code and reason.
	// Closing an already-closed transport is a no-op.
	Close(code int, reason string) error

	// IsOpen reports whether the connection is still usable.
	IsOpen() bool
}
