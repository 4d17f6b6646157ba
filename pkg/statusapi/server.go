// Package statusapi exposes a running bridge over HTTP for status panels and
// developer tooling.
//
// Routes:
//
//	GET  /status              connection info
//	GET  /roster              cached roster (fetched on first request)
//	POST /connect             connect the bridge
//	POST /disconnect          disconnect the bridge
//	POST /roster/:id/pick     report a pick
//	POST /roster/:id/remove   report a removal
//	GET  /metrics             Prometheus metrics, when configured
package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	bridgeerrors "github.com/ajitpratap0/hostbridge-go/pkg/errors"
	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// Controller is the part of the bridge the API drives
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	FetchRoster(ctx context.Context) ([]roster.Entry, error)
	ReportPick(ctx context.Context, id string) (bool, error)
	ReportRemoval(ctx context.Context, id string) (bool, error)
	ConnectionInfo() protocol.ConnectionInfo
	CachedRoster() []roster.Entry
}

// Options configures the router
type Options struct {
	Logger logging.Logger

	// Metrics serves GET /metrics when set
	Metrics http.Handler

	// Debug enables gin's debug mode and request logging
	Debug bool
}

// RosterResponse is the body of GET /roster
type RosterResponse struct {
	Entries []roster.Entry `json:"entries"`
	Count   int            `json:"count"`
}

// ResultResponse is the body of pick and removal calls
type ResultResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

type handler struct {
	bridge Controller
	logger logging.Logger
}

// NewRouter builds the gin engine serving bridge
func NewRouter(bridge Controller, opts Options) *gin.Engine {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &handler{bridge: bridge, logger: logger.WithFields(logging.String("component", "statusapi"))}

	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Debug {
		r.Use(h.requestLogger())
	}

	r.GET("/status", h.status)
	r.GET("/roster", h.roster)
	r.POST("/connect", h.connect)
	r.POST("/disconnect", h.disconnect)
	r.POST("/roster/:id/pick", h.pick)
	r.POST("/roster/:id/remove", h.remove)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	return r
}

func (h *handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("duration", time.Since(start)))
	}
}

func (h *handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.bridge.ConnectionInfo())
}

func (h *handler) roster(c *gin.Context) {
	entries := h.bridge.CachedRoster()
	if len(entries) == 0 {
		fetched, err := h.bridge.FetchRoster(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		entries = fetched
	}
	c.JSON(http.StatusOK, RosterResponse{Entries: entries, Count: len(entries)})
}

func (h *handler) connect(c *gin.Context) {
	if err := h.bridge.Connect(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.bridge.ConnectionInfo())
}

func (h *handler) disconnect(c *gin.Context) {
	if err := h.bridge.Disconnect(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.bridge.ConnectionInfo())
}

func (h *handler) pick(c *gin.Context) {
	id := c.Param("id")
	ok, err := h.bridge.ReportPick(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ResultResponse{ID: id, Success: ok})
}

func (h *handler) remove(c *gin.Context) {
	id := c.Param("id")
	ok, err := h.bridge.ReportRemoval(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ResultResponse{ID: id, Success: ok})
}

func (h *handler) fail(c *gin.Context, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			logging.String("path", c.FullPath()),
			logging.ErrorField(err))
	}
	body := gin.H{"error": err.Error()}
	if be, ok := bridgeerrors.AsBridgeError(err); ok {
		body = gin.H{"error": be.ToJSON()}
	}
	c.AbortWithStatusJSON(status, body)
}

// HTTPStatus maps a bridge error onto an HTTP status code
func HTTPStatus(err error) int {
	switch bridgeerrors.CodeOf(err) {
	case bridgeerrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case bridgeerrors.CodeMinimumRosterSize:
		return http.StatusConflict
	case bridgeerrors.CodeNotConnected, bridgeerrors.CodeNoHostAvailable, bridgeerrors.CodeConnectionClosed:
		return http.StatusServiceUnavailable
	case bridgeerrors.CodeRequestTimeout:
		return http.StatusGatewayTimeout
	case bridgeerrors.CodeHostCallFailed, bridgeerrors.CodeConnectionFailed, bridgeerrors.CodeConnectionLost:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
