package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// maxCountIDs bounds GET /interactions/counts.
const maxCountIDs = 100

type InteractionController struct {
	ic       InteractionUseCase
	profiles ProfileUseCase
}

func NewInteractionController(ic InteractionUseCase, profiles ProfileUseCase) *InteractionController {
	return &InteractionController{ic: ic, profiles: profiles}
}

func (ctl *InteractionController) ToggleLike(c *gin.Context) {
	res, err := ctl.ic.ToggleLike(c.Request.Context(), viewerOf(c, ctl.profiles), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ctl *InteractionController) AddComment(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	res, err := ctl.ic.AddComment(c.Request.Context(), viewerOf(c, ctl.profiles), c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (ctl *InteractionController) Comments(c *gin.Context) {
	res, err := ctl.ic.Comments(c.Request.Context(), viewerOf(c, ctl.profiles), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": res})
}

func (ctl *InteractionController) DeleteComment(c *gin.Context) {
	if err := ctl.ic.DeleteComment(c.Request.Context(), viewerOf(c, ctl.profiles), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ctl *InteractionController) ToggleCommentLike(c *gin.Context) {
	res, err := ctl.ic.ToggleCommentLike(c.Request.Context(), viewerOf(c, ctl.profiles), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Counts accepts repeated post_id parameters or a comma-separated list.
func (ctl *InteractionController) Counts(c *gin.Context) {
	var ids []string
	for _, v := range c.QueryArray("post_id") {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 || len(ids) > maxCountIDs {
		c.JSON(http.StatusBadRequest, gin.H{"error": "between 1 and 100 post_id values are required"})
		return
	}
	res, err := ctl.ic.Counts(c.Request.Context(), viewerOf(c, ctl.profiles), ids)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": res})
}
