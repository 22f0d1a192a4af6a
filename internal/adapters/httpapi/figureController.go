package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type FigureController struct {
	fc       FigureUseCase
	profiles ProfileUseCase
}

func NewFigureController(fc FigureUseCase, profiles ProfileUseCase) *FigureController {
	return &FigureController{fc: fc, profiles: profiles}
}

// List serves GET /figures; with ?q= it searches instead.
func (ctl *FigureController) List(c *gin.Context) {
	lang := viewerOf(c, ctl.profiles).Language
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if term, ok := c.GetQuery("q"); ok {
		figures, err := ctl.fc.Search(c.Request.Context(), lang, term, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"figures": figures})
		return
	}

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}
	figures, err := ctl.fc.List(c.Request.Context(), lang, offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"figures": figures})
}

func (ctl *FigureController) Get(c *gin.Context) {
	f, err := ctl.fc.Get(c.Request.Context(), viewerOf(c, ctl.profiles).Language, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}
