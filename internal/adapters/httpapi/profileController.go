package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"vestigia/internal/adapters/httpapi/middleware"
	profileapp "vestigia/internal/core/profile/service"
	profilePort "vestigia/internal/ports/profile"
)

type ProfileController struct{ uc ProfileUseCase }

func NewProfileController(uc ProfileUseCase) *ProfileController { return &ProfileController{uc: uc} }

func (ctl *ProfileController) GetProfile(c *gin.Context) {
	p, err := ctl.uc.GetProfile(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (ctl *ProfileController) UpdateSettings(c *gin.Context) {
	var req profilePort.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	p, err := ctl.uc.UpdateSettings(c.Request.Context(), c.GetString(middleware.UserIDKey), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (ctl *ProfileController) ResetStartDate(c *gin.Context) {
	clk, err := ctl.uc.ResetStartDate(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clk)
}

// UploadAvatar takes a multipart "avatar" file.
func (ctl *ProfileController) UploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	if fh.Size > profileapp.MaxAvatarSize {
		respondError(c, profileapp.ErrAvatarTooLarge)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	p, err := ctl.uc.UploadAvatar(c.Request.Context(), c.GetString(middleware.UserIDKey), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (ctl *ProfileController) Clock(c *gin.Context) {
	clk, err := ctl.uc.Clock(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clk)
}

func (ctl *ProfileController) LoadSnapshot(c *gin.Context) {
	payload, err := ctl.uc.LoadSnapshot(c.Request.Context(), c.GetString(middleware.UserIDKey), c.DefaultQuery("view", "timeline"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

func (ctl *ProfileController) SaveSnapshot(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 4<<20))
	if err != nil || len(payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	err = ctl.uc.SaveSnapshot(c.Request.Context(), c.GetString(middleware.UserIDKey), c.DefaultQuery("view", "timeline"), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
