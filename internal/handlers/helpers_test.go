package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/wirebus/wirebus/internal/broker"
	"github.com/wirebus/wirebus/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer starts the full HTTP surface on a random port and returns
// the base URL, the ws:// URL and the registry for direct inspection.
func newTestServer(t *testing.T, opts broker.Options, sess SessionOptions) (string, string, *broker.Registry) {
	t.Helper()

	if sess.WriteWait == 0 {
		sess.WriteWait = 5 * time.Second
	}
	if sess.PingPeriod == 0 {
		sess.PingPeriod = 30 * time.Second
	}
	if sess.PongWait == 0 {
		sess.PongWait = 60 * time.Second
	}

	logger := zerolog.Nop()
	registry := broker.New(opts, logger)
	router := NewRouter(
		NewRESTHandler(registry, false, logger),
		NewWebSocketHandler(registry, sess, logger),
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv.URL, "ws" + strings.TrimPrefix(srv.URL, "http"), registry
}

// dialWS connects a client and consumes the welcome frame.
func dialWS(t *testing.T, wsURL string) (*websocket.Conn, models.ServerFrame) {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws", nil)
	require.NoError(t, err, "websocket dial failed")
	t.Cleanup(func() { conn.Close() })

	welcome := recvFrame(t, conn, 2*time.Second)
	require.Equal(t, models.FrameInfo, welcome.Type)
	require.Equal(t, models.InfoConnected, welcome.Msg)
	return conn, welcome
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame models.ClientFrame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func sendRaw(t *testing.T, conn *websocket.Conn, data string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(data)))
}

func recvFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) models.ServerFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	var frame models.ServerFrame
	require.NoError(t, conn.ReadJSON(&frame), "did not receive frame in time")
	return frame
}

// waitForType scans frames until one of the wanted type arrives.
func waitForType(t *testing.T, conn *websocket.Conn, frameType string, timeout time.Duration) models.ServerFrame {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		frame := recvFrame(t, conn, time.Until(deadline))
		if frame.Type == frameType {
			return frame
		}
	}
	t.Fatalf("no %s frame within %s", frameType, timeout)
	return models.ServerFrame{}
}

func subscribe(t *testing.T, conn *websocket.Conn, clientID, topic string, lastN int, requestID string) {
	t.Helper()
	sendFrame(t, conn, models.ClientFrame{
		Type:      models.FrameSubscribe,
		Topic:     topic,
		ClientID:  clientID,
		LastN:     lastN,
		RequestID: requestID,
	})
	ack := waitForType(t, conn, models.FrameAck, 2*time.Second)
	require.Equal(t, requestID, ack.RequestID)
	require.Equal(t, topic, ack.Topic)
}

func publish(t *testing.T, conn *websocket.Conn, topic, messageID string, payload any, requestID string) {
	t.Helper()
	sendFrame(t, conn, models.ClientFrame{
		Type:      models.FramePublish,
		Topic:     topic,
		Message:   &models.Message{ID: messageID, Payload: payload},
		RequestID: requestID,
	})
	ack := waitForType(t, conn, models.FrameAck, 2*time.Second)
	require.Equal(t, requestID, ack.RequestID)
}

func createTopic(t *testing.T, baseURL, name string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": name})
	resp, err := http.Post(baseURL+"/topics", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func deleteTopic(t *testing.T, baseURL, name string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, baseURL+"/topics/"+name, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
