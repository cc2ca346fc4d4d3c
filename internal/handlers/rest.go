package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/wirebus/wirebus/internal/broker"
	"github.com/wirebus/wirebus/internal/models"
)

// RESTHandler exposes the administrative surface over the registry.
type RESTHandler struct {
	registry *broker.Registry
	devMode  bool
	log      zerolog.Logger
}

// NewRESTHandler creates the admin HTTP handler. In dev mode internal
// failure detail is exposed in 500 bodies.
func NewRESTHandler(registry *broker.Registry, devMode bool, log zerolog.Logger) *RESTHandler {
	return &RESTHandler{registry: registry, devMode: devMode, log: log}
}

// Root handles GET /.
func (h *RESTHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "wirebus",
		"version": "1.0.0",
		"endpoints": gin.H{
			"websocket": "/ws",
			"topics":    "/topics",
			"health":    "/health",
			"stats":     "/stats",
			"metrics":   "/metrics",
		},
	})
}

// CreateTopic handles POST /topics.
func (h *RESTHandler) CreateTopic(c *gin.Context) {
	var req models.CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	switch err := h.registry.CreateTopic(req.Name); {
	case errors.Is(err, broker.ErrInvalidTopicName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "topic name cannot be empty"})
	case errors.Is(err, broker.ErrTopicExists):
		c.JSON(http.StatusConflict, gin.H{"error": "topic already exists"})
	case err != nil:
		h.internalError(c, err)
	default:
		c.JSON(http.StatusCreated, models.TopicMutationResponse{Status: "created", Topic: req.Name})
	}
}

// DeleteTopic handles DELETE /topics/:name.
func (h *RESTHandler) DeleteTopic(c *gin.Context) {
	name := c.Param("name")

	switch err := h.registry.DeleteTopic(name); {
	case errors.Is(err, broker.ErrTopicNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
	case err != nil:
		h.internalError(c, err)
	default:
		c.JSON(http.StatusOK, models.TopicMutationResponse{Status: "deleted", Topic: name})
	}
}

// ListTopics handles GET /topics.
func (h *RESTHandler) ListTopics(c *gin.Context) {
	c.JSON(http.StatusOK, models.ListTopicsResponse{Topics: h.registry.ListTopics()})
}

// Health handles GET /health.
func (h *RESTHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Health())
}

// Stats handles GET /stats.
func (h *RESTHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Stats())
}

func (h *RESTHandler) internalError(c *gin.Context, err error) {
	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("admin request failed")
	body := gin.H{"error": "Internal server error"}
	if h.devMode {
		body["detail"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

// NewRouter assembles the full HTTP surface: admin REST, the WebSocket
// endpoint and Prometheus metrics. Shared by main and the tests.
func NewRouter(rest *RESTHandler, ws *WebSocketHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", rest.Root)
	router.GET("/health", rest.Health)
	router.GET("/stats", rest.Stats)
	router.GET("/topics", rest.ListTopics)
	router.POST("/topics", rest.CreateTopic)
	router.DELETE("/topics/:name", rest.DeleteTopic)
	router.GET("/ws", ws.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})
	return router
}
