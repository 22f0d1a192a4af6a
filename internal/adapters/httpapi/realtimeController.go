package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vestigia/internal/core/changefeed"
	realtimePort "vestigia/internal/ports/realtime"
)

// keepAlive is how often an idle stream gets a comment line.
var keepAlive = 25 * time.Second

type RealtimeController struct {
	changes realtimePort.Subscriber
	logger  *zap.Logger
}

func NewRealtimeController(changes realtimePort.Subscriber, logger *zap.Logger) *RealtimeController {
	return &RealtimeController{changes: changes, logger: logger}
}

// Stream serves GET /realtime/:table?filter=column=eq.value as server-sent
// events named after the change type.
func (ctl *RealtimeController) Stream(c *gin.Context) {
	table := c.Param("table")
	if !changefeed.KnownTable(table) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown table"})
		return
	}
	filter, err := changefeed.ParseFilter(c.Query("filter"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if ctl.changes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "change feed unavailable"})
		return
	}

	ctx := c.Request.Context()
	events, err := ctl.changes.Subscribe(ctx, table, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"table": table, "filter": filter.String()})
	c.Writer.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				ctl.logger.Debug("Change feed closed", zap.String("table", table))
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			return true
		}
	})
}
