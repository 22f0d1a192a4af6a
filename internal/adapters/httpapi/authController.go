package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vestigia/internal/adapters/httpapi/middleware"
)

type AuthController struct{ uc AuthUseCase }

func NewAuthController(uc AuthUseCase) *AuthController { return &AuthController{uc: uc} }

// Providers is the sign-in landing page.
func (ctl *AuthController) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": []string{"password", "oauth", "id_token"}})
}

func (ctl *AuthController) Register(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required"`
		Password    string `json:"password" binding:"required"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	res, err := ctl.uc.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (ctl *AuthController) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	res, err := ctl.uc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ctl *AuthController) OAuthURL(c *gin.Context) {
	url, state, err := ctl.uc.AuthorizeURL(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "state": state})
}

func (ctl *AuthController) OAuthCallback(c *gin.Context) {
	var req struct {
		Code  string `json:"code" binding:"required"`
		State string `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	res, err := ctl.uc.ExchangeCode(c.Request.Context(), req.Code, req.State)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ctl *AuthController) IDToken(c *gin.Context) {
	var req struct {
		IDToken string `json:"id_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	res, err := ctl.uc.SignInWithIDToken(c.Request.Context(), strings.TrimSpace(req.IDToken))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ctl *AuthController) Session(c *gin.Context) {
	p, err := ctl.uc.Session(c.Request.Context(), c.GetString(middleware.TokenKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":    p.UserID,
		"sessionId": p.SessionID,
		"expiresAt": p.ExpiresAt.Unix(),
	})
}

func (ctl *AuthController) Logout(c *gin.Context) {
	if err := ctl.uc.SignOut(c.Request.Context(), c.GetString(middleware.TokenKey)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
