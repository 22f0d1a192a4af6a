package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vestigia/internal/adapters/httpapi/middleware"
	postPort "vestigia/internal/ports/post"
	profilePort "vestigia/internal/ports/profile"
)

type TimelineController struct {
	tc       TimelineUseCase
	profiles ProfileUseCase
}

func NewTimelineController(tc TimelineUseCase, profiles ProfileUseCase) *TimelineController {
	return &TimelineController{tc: tc, profiles: profiles}
}

func (ctrl *TimelineController) Timeline(c *gin.Context) {
	q, ok := bindQuery(c)
	if !ok {
		return
	}
	page, err := ctrl.tc.Timeline(c.Request.Context(), viewerOf(c, ctrl.profiles), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (ctrl *TimelineController) FigureTimeline(c *gin.Context) {
	q, ok := bindQuery(c)
	if !ok {
		return
	}
	page, err := ctrl.tc.FigureTimeline(c.Request.Context(), viewerOf(c, ctrl.profiles), c.Param("id"), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (ctrl *TimelineController) GetPost(c *gin.Context) {
	p, err := ctrl.tc.GetPost(c.Request.Context(), viewerOf(c, ctrl.profiles), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (ctrl *TimelineController) Search(c *gin.Context) {
	q, ok := bindQuery(c)
	if !ok {
		return
	}
	page, err := ctrl.tc.Search(c.Request.Context(), viewerOf(c, ctrl.profiles), c.Query("q"), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// bindQuery reads before, offset and limit. It writes a 400 on bad input.
func bindQuery(c *gin.Context) (postPort.Query, bool) {
	q := postPort.Query{Before: c.Query("before")}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return q, false
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(postPort.PageSize)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return q, false
	}
	q.Offset = offset
	q.Limit = limit
	return q, true
}

func viewerOf(c *gin.Context, profiles ProfileUseCase) profilePort.Viewer {
	return profiles.Viewer(c.Request.Context(), c.GetString(middleware.UserIDKey))
}
